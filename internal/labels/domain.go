package labels

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Paper sizes in millimetres.
var paperFormats = map[string][2]float64{
	"a3":     {297, 420},
	"a4":     {210, 297},
	"a5":     {148, 210},
	"letter": {215.9, 279.4},
	"legal":  {215.9, 355.6},
}

// PageConfiguration describes the label sheet geometry. Distances are in
// millimetres.
type PageConfiguration struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	PaperSize     string  `json:"paper_size"`
	Rows          int     `json:"n_rows"`
	Cols          int     `json:"n_cols"`
	MarginTop     float64 `json:"margin_top"`
	MarginBottom  float64 `json:"margin_bottom"`
	MarginLeft    float64 `json:"margin_left"`
	MarginRight   float64 `json:"margin_right"`
	HorizontalGap float64 `json:"horizontal_gap"`
	VerticalGap   float64 `json:"vertical_gap"`
	FontSize      float64 `json:"font_size"`
}

// DefaultPageConfiguration matches an 11x3 sheet of adhesive labels on A4.
func DefaultPageConfiguration() PageConfiguration {
	return PageConfiguration{
		Name:          "default",
		PaperSize:     "a4",
		Rows:          11,
		Cols:          3,
		MarginTop:     8,
		MarginBottom:  8.5,
		MarginLeft:    6.5,
		MarginRight:   6.5,
		HorizontalGap: 2.5,
		VerticalGap:   0,
		FontSize:      8,
	}
}

// PaperDimensions resolves the paper size to width and height in
// millimetres. Either a named format or "width,height".
func (c PageConfiguration) PaperDimensions() (width, height float64, err error) {
	if dims, ok := paperFormats[strings.ToLower(c.PaperSize)]; ok {
		return dims[0], dims[1], nil
	}
	parts := strings.SplitN(c.PaperSize, ",", 2)
	if len(parts) != 2 {
		return 0, 0, ErrBadPaperSize
	}
	width, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || width <= 0 {
		return 0, 0, ErrBadPaperSize
	}
	height, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || height <= 0 {
		return 0, 0, ErrBadPaperSize
	}
	return width, height, nil
}

// BoxDimensions computes the size of one label box from the sheet geometry.
func (c PageConfiguration) BoxDimensions() (boxW, boxH float64, err error) {
	if c.Rows < 1 || c.Cols < 1 {
		return 0, 0, ErrBadGrid
	}
	paperW, paperH, err := c.PaperDimensions()
	if err != nil {
		return 0, 0, err
	}
	boxW = (paperW - c.MarginLeft - c.MarginRight - c.HorizontalGap*float64(c.Cols-1)) / float64(c.Cols)
	boxH = (paperH - c.MarginTop - c.MarginBottom - c.VerticalGap*float64(c.Rows-1)) / float64(c.Rows)
	if boxW <= 0 || boxH <= 0 {
		return 0, 0, ErrBadGrid
	}
	return boxW, boxH, nil
}

// PrintOptions are the per-print rendering switches.
type PrintOptions struct {
	UseColor       bool `json:"use_color"`
	UseBorder      bool `json:"use_border"`
	IncludeBarcode bool `json:"include_barcode"`
	UseISBN        bool `json:"use_isbn"`
}

// Print is one generated label sheet.
type Print struct {
	ID              int64        `json:"id"`
	Name            string       `json:"name"`
	ConfigurationID int64        `json:"configuration_id"`
	SpecimenIDs     []int64      `json:"specimen_ids"`
	Options         PrintOptions `json:"options"`
	FilePath        string       `json:"file_path,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// DefaultPrintName names a print after its date, the way the print list
// sorts naturally.
func DefaultPrintName(t time.Time) string {
	return t.Format("06.01.02") + " - labels"
}

var (
	// ErrBadPaperSize indicates an unparseable paper size.
	ErrBadPaperSize = errors.New("labels: paper size must be a3, a4, a5, letter, legal or two comma-separated numbers")
	// ErrBadGrid indicates a grid that leaves no room for labels.
	ErrBadGrid = errors.New("labels: rows and columns must leave positive label boxes")
	// ErrConfigurationNotFound indicates the page configuration does not exist.
	ErrConfigurationNotFound = errors.New("labels: page configuration not found")
	// ErrPrintNotFound indicates the print does not exist.
	ErrPrintNotFound = errors.New("labels: print not found")
	// ErrNoSpecimens indicates a print without specimens.
	ErrNoSpecimens = errors.New("labels: print needs at least one specimen")
)
