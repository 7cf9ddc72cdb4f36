package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// A4 portrait in points, origin lower left.
const (
	pageWidth  = 595.0
	pageHeight = 842.0
	margin     = 40.0
)

const (
	colorText   = "#000000"
	colorBenign = "#009600"
	colorDanger = "#C80000"
)

// pdfLayout is the JSON page description accepted by pdfcpu's create
// command.
type pdfLayout struct {
	Paper  string             `json:"paper"`
	Origin string             `json:"origin"`
	Pages  map[string]pdfPage `json:"pages"`
}

type pdfPage struct {
	Content pdfContent `json:"content"`
}

type pdfContent struct {
	Text []pdfText `json:"text"`
}

type pdfText struct {
	Value string     `json:"value"`
	Pos   [2]float64 `json:"pos"`
	Font  pdfFont    `json:"font"`
}

type pdfFont struct {
	Name  string `json:"name"`
	Size  int    `json:"size"`
	Color string `json:"col"`
}

// layout flows text lines down A4 pages.
type layout struct {
	pages [][]pdfText
	y     float64
}

func newLayout() *layout {
	l := &layout{}
	l.newPage()
	return l
}

func (l *layout) newPage() {
	l.pages = append(l.pages, nil)
	l.y = pageHeight - margin
}

// line writes text at indent with the given size, wrapping long values,
// then moves down by gap.
func (l *layout) line(text string, indent float64, size int, color string, gap float64) {
	for _, chunk := range wrap(text, indent, size) {
		lineHeight := float64(size) * 1.3
		if l.y-lineHeight < margin {
			l.newPage()
		}
		l.y -= lineHeight
		p := len(l.pages) - 1
		l.pages[p] = append(l.pages[p], pdfText{
			Value: chunk,
			Pos:   [2]float64{margin + indent, l.y},
			Font:  pdfFont{Name: "Helvetica", Size: size, Color: color},
		})
	}
	l.y -= gap
}

// wrap splits s to fit the text column, assuming Helvetica's average
// glyph width of about half the font size.
func wrap(s string, indent float64, size int) []string {
	perLine := int((pageWidth - 2*margin - indent) / (float64(size) * 0.5))
	r := []rune(s)
	if perLine <= 0 || len(r) <= perLine {
		return []string{s}
	}
	var out []string
	for len(r) > perLine {
		out = append(out, string(r[:perLine]))
		r = r[perLine:]
	}
	if len(r) > 0 {
		out = append(out, string(r))
	}
	return out
}

func (l *layout) document() pdfLayout {
	doc := pdfLayout{Paper: "A4P", Origin: "LowerLeft", Pages: make(map[string]pdfPage, len(l.pages))}
	for i, texts := range l.pages {
		doc.Pages[strconv.Itoa(i+1)] = pdfPage{Content: pdfContent{Text: texts}}
	}
	return doc
}

// buildPDFLayout lays the report out as pdfcpu page content.
func buildPDFLayout(r Report) pdfLayout {
	l := newLayout()
	l.line(Title, 0, 16, colorText, 8)
	l.line("Page URL:", 0, 12, colorText, 2)
	l.line(r.PageURL, 0, 10, colorText, 10)
	l.line("Generated: "+r.GeneratedAt.Format("2006-01-02 15:04:05 MST"), 0, 10, colorText, 6)
	l.line(fmt.Sprintf("Total Links Analyzed: %d", r.Total()), 0, 12, colorText, 2)
	l.line(fmt.Sprintf("Malicious Links Found: %d", r.Malicious()), 0, 12, colorText, 12)
	l.line("Link Analysis Results:", 0, 12, colorText, 8)
	for _, link := range r.Links {
		l.line(link.URL, 0, 10, colorText, 1)
		color := colorDanger
		if !link.Classification.Malicious() {
			color = colorBenign
		}
		l.line(fmt.Sprintf("Classification: %s (%.1f%% confidence)", link.Classification.Title(), link.Confidence*100),
			5, 9, color, 8)
	}
	return l.document()
}

// WritePDF renders r as a PDF document.
func WritePDF(w io.Writer, r Report) error {
	doc, err := json.Marshal(buildPDFLayout(r))
	if err != nil {
		return fmt.Errorf("report: pdf layout: %w", err)
	}
	if err := api.Create(nil, bytes.NewReader(doc), w, model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("report: pdf create: %w", err)
	}
	return nil
}
