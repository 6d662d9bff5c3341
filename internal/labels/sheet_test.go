package labels

import (
	"html/template"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaperDimensions(t *testing.T) {
	c := DefaultPageConfiguration()
	w, h, err := c.PaperDimensions()
	require.NoError(t, err)
	assert.InDelta(t, 210, w, 0.01)
	assert.InDelta(t, 297, h, 0.01)

	c.PaperSize = "100,50"
	w, h, err = c.PaperDimensions()
	require.NoError(t, err)
	assert.InDelta(t, 100, w, 0.01)
	assert.InDelta(t, 50, h, 0.01)

	c.PaperSize = "bogus"
	_, _, err = c.PaperDimensions()
	assert.ErrorIs(t, err, ErrBadPaperSize)
}

func TestBoxDimensions(t *testing.T) {
	c := DefaultPageConfiguration()
	boxW, boxH, err := c.BoxDimensions()
	require.NoError(t, err)

	// 3 columns over 210mm minus margins and two gaps.
	assert.InDelta(t, (210-6.5-6.5-2*2.5)/3, boxW, 0.001)
	// 11 rows over 297mm minus margins, no vertical gap.
	assert.InDelta(t, (297-8-8.5)/11, boxH, 0.001)

	c.Rows = 0
	_, _, err = c.BoxDimensions()
	assert.ErrorIs(t, err, ErrBadGrid)
}

func TestBuildSheet(t *testing.T) {
	config := DefaultPageConfiguration()
	entries := []Entry{
		{Code: "895 A848d", Classification: "LIT", Location: "Ground floor", SpecimenNumber: 2},
	}

	html, err := BuildSheet(config, PrintOptions{UseBorder: true}, entries)
	require.NoError(t, err)
	assert.Contains(t, html, "895 A848d")
	assert.Contains(t, html, "Ex. 2")
	assert.Contains(t, html, "border: 0.2mm solid")
	assert.Contains(t, html, "size: 210.00mm 297.00mm")
}

func TestBuildSheetWithBarcode(t *testing.T) {
	config := DefaultPageConfiguration()
	svg, err := BarcodeSVG("9788535902778", 30, 15)
	require.NoError(t, err)

	html, err := BuildSheet(config, PrintOptions{IncludeBarcode: true}, []Entry{
		{Code: "895 A848d", BarcodeSVG: template.HTML(svg), BarcodeText: "9788535902778"},
	})
	require.NoError(t, err)
	assert.Contains(t, html, "<svg", "inline svg must not be escaped")
	assert.Contains(t, html, "9788535902778")
}
