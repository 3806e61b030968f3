package attachment

import (
	"bytes"
	"path"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/referral-intake/platform/pkg/common/logger"
)

const (
	TypePDF  = "application/pdf"
	TypeTIFF = "image/tiff"
	TypePNG  = "image/png"
	TypeJPEG = "image/jpeg"
	TypeRaw  = "application/octet-stream"
)

func init() {
	// Page counting must not touch the user's pdfcpu config directory.
	api.DisableConfigDir()
}

// Info describes the faxed file attached to the referral payload.
type Info struct {
	ContentType string `json:"content_type"`
	Pages       int    `json:"pages"`
}

// Inspect derives the content type from the file extension and, for PDFs,
// counts pages. An unreadable PDF reports zero pages.
func Inspect(name string, data []byte) Info {
	info := Info{ContentType: contentType(name)}
	if info.ContentType != TypePDF || len(data) == 0 {
		return info
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		logger.WithDocument(name).WithError(err).Warn("could not read pdf page count")
		return info
	}
	info.Pages = ctx.PageCount
	return info
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return TypePDF
	case ".tif", ".tiff":
		return TypeTIFF
	case ".png":
		return TypePNG
	case ".jpg", ".jpeg":
		return TypeJPEG
	}
	return TypeRaw
}
