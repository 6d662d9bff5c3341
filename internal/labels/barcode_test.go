package labels

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEAN13Modules(t *testing.T) {
	// Worked example from the EAN-13 standard: 4003994155486.
	modules, err := ean13Modules("4003994155486")
	require.NoError(t, err)
	require.Len(t, modules, 95)

	assert.True(t, strings.HasPrefix(modules, "101"), "start guard")
	assert.True(t, strings.HasSuffix(modules, "101"), "end guard")
	assert.Equal(t, "01010", modules[45:50], "center guard")

	// Leading digit 4 selects parity LGLLGG; first encoded digit is 0.
	assert.Equal(t, ean13L[0], modules[3:10])
	assert.Equal(t, ean13G[0], modules[10:17])
}

func TestEAN13ModulesRejectsBadInput(t *testing.T) {
	_, err := ean13Modules("123")
	assert.ErrorIs(t, err, ErrBadBarcodeNumber)

	_, err = ean13Modules("40039941554x6")
	assert.ErrorIs(t, err, ErrBadBarcodeNumber)
}

func TestBarcodeSVG(t *testing.T) {
	svg, err := BarcodeSVG("9788535902778", 30, 15)
	require.NoError(t, err)
	assert.Contains(t, svg, `<svg xmlns="http://www.w3.org/2000/svg"`)
	assert.Contains(t, svg, `width="30.000mm"`)
	assert.Contains(t, svg, `fill="#000"`)
}

func TestPadBarcodeNumber(t *testing.T) {
	assert.Equal(t, "0000000000042", PadBarcodeNumber(42))
}
