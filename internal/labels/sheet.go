package labels

import (
	"fmt"
	"html/template"
	"strings"
)

// Entry is the data printed on one label.
type Entry struct {
	Code           string
	Classification string
	Location       string
	Color          string
	SpecimenNumber int
	BarcodeSVG     template.HTML
	BarcodeText    string
}

type sheetData struct {
	PaperWidth  float64
	PaperHeight float64
	BoxWidth    float64
	BoxHeight   float64
	Config      PageConfiguration
	Options     PrintOptions
	Entries     []Entry
}

var sheetTemplate = template.Must(template.New("sheet").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
@page {
  size: {{printf "%.2f" .PaperWidth}}mm {{printf "%.2f" .PaperHeight}}mm;
  margin: {{printf "%.2f" .Config.MarginTop}}mm {{printf "%.2f" .Config.MarginRight}}mm {{printf "%.2f" .Config.MarginBottom}}mm {{printf "%.2f" .Config.MarginLeft}}mm;
}
* { margin: 0; padding: 0; box-sizing: border-box; }
body { font-family: Helvetica, Arial, sans-serif; font-size: {{printf "%.2f" .Config.FontSize}}pt; }
.sheet { display: flex; flex-wrap: wrap; column-gap: {{printf "%.2f" .Config.HorizontalGap}}mm; row-gap: {{printf "%.2f" .Config.VerticalGap}}mm; }
.label {
  width: {{printf "%.3f" .BoxWidth}}mm;
  height: {{printf "%.3f" .BoxHeight}}mm;
  overflow: hidden;
  display: flex;
  {{if .Options.UseBorder}}border: 0.2mm solid #000;{{end}}
}
.text { display: flex; flex-direction: column; justify-content: space-between; flex: 1; }
.barcode { width: 66%; text-align: center; padding: 0.5mm; }
.barcode .number { font-size: {{printf "%.2f" .Config.FontSize}}pt; }
</style>
</head>
<body>
<div class="sheet">
{{range .Entries}}<div class="label"{{if .Color}} style="border-color: {{.Color}}"{{end}}>
  <div class="text">
    <span>{{.Code}}</span>
    <span>{{.Classification}}</span>
    <span>{{.Location}}</span>
    <span>Ex. {{.SpecimenNumber}}</span>
  </div>
{{if .BarcodeSVG}}  <div class="barcode">{{.BarcodeSVG}}<div class="number">{{.BarcodeText}}</div></div>
{{end}}</div>
{{end}}</div>
</body>
</html>
`))

// BuildSheet renders the label sheet HTML handed to the PDF renderer.
func BuildSheet(config PageConfiguration, options PrintOptions, entries []Entry) (string, error) {
	boxW, boxH, err := config.BoxDimensions()
	if err != nil {
		return "", err
	}
	paperW, paperH, err := config.PaperDimensions()
	if err != nil {
		return "", err
	}

	data := sheetData{
		PaperWidth:  paperW,
		PaperHeight: paperH,
		BoxWidth:    boxW,
		BoxHeight:   boxH,
		Config:      config,
		Options:     options,
		Entries:     entries,
	}
	var b strings.Builder
	if err := sheetTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("labels: render sheet: %w", err)
	}
	return b.String(), nil
}
