package pdfutil

import (
	"bytes"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// Link is a URI link rendered as underlined anchor text.
type Link struct {
	Text string
	URI  string
}

// SampleContent describes the content of a generated sample PDF.
type SampleContent struct {
	Title      string
	Paragraphs []string
	Links      []Link
}

// PDFGenerator provides utilities for generating PDF documents.
type PDFGenerator struct {
	pdf *gofpdf.Fpdf
}

// NewPDFGenerator creates a new PDF generator with one A4 page.
func NewPDFGenerator() *PDFGenerator {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	return &PDFGenerator{pdf: pdf}
}

// SetFont sets the font for text rendering.
func (g *PDFGenerator) SetFont(family, style string, size float64) {
	g.pdf.SetFont(family, style, size)
}

// AddParagraph writes a block of flowing text.
func (g *PDFGenerator) AddParagraph(text string) {
	g.pdf.MultiCell(0, 6, text, "", "L", false)
	g.pdf.Ln(2)
}

// AddLink writes anchor text that links to uri.
func (g *PDFGenerator) AddLink(text, uri string) {
	g.pdf.SetTextColor(0, 0, 200)
	g.pdf.SetFont("Arial", "U", 11)
	g.pdf.WriteLinkString(6, text, uri)
	g.pdf.Ln(8)
	g.pdf.SetFont("Arial", "", 11)
	g.pdf.SetTextColor(0, 0, 0)
}

// NewPage starts a new page.
func (g *PDFGenerator) NewPage() {
	g.pdf.AddPage()
}

// SaveToFile saves the PDF to a file.
func (g *PDFGenerator) SaveToFile(filename string) error {
	return g.pdf.OutputFileAndClose(filename)
}

// WriteToWriter writes the PDF to an io.Writer.
func (g *PDFGenerator) WriteToWriter(w io.Writer) error {
	return g.pdf.Output(w)
}

// GetBytes returns the PDF as a byte slice.
func (g *PDFGenerator) GetBytes() ([]byte, error) {
	var buf bytes.Buffer
	err := g.pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GenerateSample builds a single-page PDF with a title, paragraphs and links.
func GenerateSample(content SampleContent) ([]byte, error) {
	g := NewPDFGenerator()
	if content.Title != "" {
		g.SetFont("Arial", "B", 16)
		g.AddParagraph(content.Title)
	}

	g.SetFont("Arial", "", 11)
	for _, p := range content.Paragraphs {
		g.AddParagraph(p)
	}
	for _, l := range content.Links {
		g.AddLink(l.Text, l.URI)
	}

	return g.GetBytes()
}

// DefaultSample is the fixture used by the CLI and tests: the text
// "Hello World" and a "Link" anchor pointing at https://example.com.
func DefaultSample() SampleContent {
	return SampleContent{
		Paragraphs: []string{"Hello World"},
		Links:      []Link{{Text: "Link", URI: "https://example.com"}},
	}
}
