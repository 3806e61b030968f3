package intake

import (
	"encoding/base64"
	"strconv"
	"time"

	"github.com/referral-intake/platform/pkg/attachment"
	"github.com/referral-intake/platform/pkg/common/models"
	"github.com/referral-intake/platform/pkg/payload"
)

const ResourceType = "ReferralRequest"

// Header builds the payload fields every submission carries regardless of
// what the analysis extracted. Extracted values are merged over it.
func Header(meta models.ReferralFileMetadata, info attachment.Info, content []byte, organization string) *payload.Value {
	h := payload.NewObject()
	set := func(path string, v *payload.Value) {
		// Paths are static and never clash, so Set cannot fail here.
		_ = payload.Set(h, path, v)
	}

	set("resourceType", payload.String(ResourceType))
	set("from.sourceFaxNo", payload.String(meta.SendingNumber))
	if meta.ParsedTimestamp != nil {
		set("from.received", payload.String(meta.ParsedTimestamp.UTC().Format(time.RFC3339)))
	} else if meta.Timestamp != "" {
		set("from.received", payload.String(meta.Timestamp))
	}
	set("to.organization.name", payload.String(organization))
	set("to.destinationFaxNo", payload.String(meta.ReceivingNumber))

	set("payload.filename", payload.String(meta.Filename))
	set("payload.type", payload.String(info.ContentType))
	if info.Pages > 0 {
		set("payload.numberOfPages", payload.String(strconv.Itoa(info.Pages)))
	}
	set("payload.content", payload.String(base64.StdEncoding.EncodeToString(content)))
	return h
}
