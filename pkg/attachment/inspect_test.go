package attachment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentTypeFromExtension(t *testing.T) {
	cases := map[string]string{
		"fax.pdf":  TypePDF,
		"FAX.PDF":  TypePDF,
		"scan.tif": TypeTIFF,
		"a.tiff":   TypeTIFF,
		"a.png":    TypePNG,
		"a.jpeg":   TypeJPEG,
		"a.jpg":    TypeJPEG,
		"noext":    TypeRaw,
	}
	for name, want := range cases {
		assert.Equal(t, want, Inspect(name, nil).ContentType, name)
	}
}

func TestUnreadablePDFHasNoPages(t *testing.T) {
	info := Inspect("broken.pdf", []byte("not a pdf at all"))
	assert.Equal(t, TypePDF, info.ContentType)
	assert.Zero(t, info.Pages)
}

func TestNonPDFSkipsPageCount(t *testing.T) {
	assert.Equal(t, Info{ContentType: TypeTIFF}, Inspect("scan.tiff", []byte{0x49, 0x49, 0x2a, 0x00}))
}
