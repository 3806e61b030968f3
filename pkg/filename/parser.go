package filename

import (
	"path"
	"strings"
	"time"

	"github.com/referral-intake/platform/pkg/common/logger"
	"github.com/referral-intake/platform/pkg/common/models"
)

// TimestampLayout matches the fax gateway's `2021-12-02_13h47m20s` prefix.
const TimestampLayout = "2006-01-02_15h04m05s"

const segmentCount = 5

type Parser struct {
	location *time.Location
}

// NewParser returns a parser interpreting timestamps in loc (UTC when nil).
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{location: loc}
}

// Parse recovers the fax identity encoded in a gateway filename of the form
// `<date>_<time>_<sendingNumber>_<receivingNumber>_<serial>.<ext>`.
// Malformed names yield empty identity fields and a nil timestamp.
func (p *Parser) Parse(name string) models.ReferralFileMetadata {
	meta := models.ReferralFileMetadata{Filename: name}

	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	parts := strings.Split(base, "_")
	if len(parts) != segmentCount {
		logger.WithField("filename", name).Warn("could not parse the filename: unexpected segment count")
		return meta
	}

	raw := parts[0] + "_" + parts[1]
	ts, err := time.ParseInLocation(TimestampLayout, raw, p.location)
	if err != nil {
		logger.WithField("filename", name).WithError(err).Warn("could not parse the filename timestamp")
		return meta
	}

	serial := parts[4]
	if idx := strings.Index(serial, "."); idx >= 0 {
		serial = serial[:idx]
	}
	if serial == "" {
		logger.WithField("filename", name).Warn("could not parse the filename: missing fax serial")
		return meta
	}

	meta.Timestamp = raw
	meta.ParsedTimestamp = &ts
	meta.SendingNumber = parts[2]
	meta.ReceivingNumber = parts[3]
	meta.FaxSerial = serial
	return meta
}
