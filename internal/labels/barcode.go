package labels

import (
	"errors"
	"fmt"
	"strings"
)

// EAN-13 encoding tables. Each digit is seven modules; the left half uses
// the L or G set depending on the first digit's parity pattern, the right
// half always uses the R set.
var (
	ean13L = [10]string{
		"0001101", "0011001", "0010011", "0111101", "0100011",
		"0110001", "0101111", "0111011", "0110111", "0001011",
	}
	ean13G = [10]string{
		"0100111", "0110011", "0011011", "0100001", "0011101",
		"0111001", "0000101", "0010001", "0001001", "0010111",
	}
	ean13R = [10]string{
		"1110010", "1100110", "1101100", "1000010", "1011100",
		"1001110", "1010000", "1000100", "1001000", "1110100",
	}
	// Parity of the six left-half digits, selected by the leading digit.
	ean13Parity = [10]string{
		"LLLLLL", "LLGLGG", "LLGGLG", "LLGGGL", "LGLLGG",
		"LGGLLG", "LGGGLL", "LGLGLG", "LGLGGL", "LGGLGL",
	}
)

// ErrBadBarcodeNumber indicates input that is not thirteen digits.
var ErrBadBarcodeNumber = errors.New("labels: barcode number must be 13 digits")

// ean13Modules expands a 13-digit number into the 95-module bar pattern,
// including the guard patterns.
func ean13Modules(number string) (string, error) {
	if len(number) != 13 {
		return "", ErrBadBarcodeNumber
	}
	digits := make([]int, 13)
	for i, r := range number {
		if r < '0' || r > '9' {
			return "", ErrBadBarcodeNumber
		}
		digits[i] = int(r - '0')
	}

	var b strings.Builder
	b.WriteString("101")
	parity := ean13Parity[digits[0]]
	for i := 1; i <= 6; i++ {
		if parity[i-1] == 'L' {
			b.WriteString(ean13L[digits[i]])
		} else {
			b.WriteString(ean13G[digits[i]])
		}
	}
	b.WriteString("01010")
	for i := 7; i <= 12; i++ {
		b.WriteString(ean13R[digits[i]])
	}
	b.WriteString("101")
	return b.String(), nil
}

// BarcodeSVG renders a 13-digit number as an EAN-13 barcode in SVG, sized in
// millimetres. The human-readable digits are left to the caller.
func BarcodeSVG(number string, width, height float64) (string, error) {
	modules, err := ean13Modules(number)
	if err != nil {
		return "", err
	}

	moduleW := width / float64(len(modules))
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%.3fmm" height="%.3fmm" viewBox="0 0 %.3f %.3f">`,
		width, height, width, height)
	fmt.Fprintf(&b, `<rect width="%.3f" height="%.3f" fill="#fff"/>`, width, height)

	// Emit one rect per run of dark modules to keep the file small.
	run := 0
	for i := 0; i <= len(modules); i++ {
		dark := i < len(modules) && modules[i] == '1'
		if dark {
			run++
			continue
		}
		if run > 0 {
			x := float64(i-run) * moduleW
			fmt.Fprintf(&b, `<rect x="%.3f" width="%.3f" height="%.3f" fill="#000"/>`,
				x, float64(run)*moduleW, height)
			run = 0
		}
	}
	b.WriteString(`</svg>`)
	return b.String(), nil
}

// PadBarcodeNumber left-pads a numeric identifier to thirteen digits, the
// form specimen ids are encoded in when ISBNs are not used.
func PadBarcodeNumber(id int64) string {
	return fmt.Sprintf("%013d", id)
}
