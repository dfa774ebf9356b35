package pdfutil

import (
	"fmt"
	"html"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// PDFParser opens PDF documents for extraction.
type PDFParser interface {
	Open(path string) (Document, error)
}

// Document is an opened PDF. Callers must Close it.
type Document interface {
	// PageCount returns the number of pages.
	PageCount() int

	// Text returns the plain text of every page, pages separated by a newline.
	Text() (string, error)

	// Markup returns the structured (HTML) rendering of every page wrapped in
	// a single HTML document. Pages are concatenated without a boundary marker.
	Markup() (string, error)

	// Close releases the underlying MuPDF handle. Safe to call more than once.
	Close() error
}

// FitzParser implements PDFParser with MuPDF via go-fitz.
type FitzParser struct{}

// NewPDFParser creates a go-fitz backed parser.
func NewPDFParser() PDFParser {
	return &FitzParser{}
}

// Open opens the PDF at path. Corrupt or unsupported files fail here.
func (p *FitzParser) Open(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) PageCount() int {
	if d.doc == nil {
		return 0
	}
	return d.doc.NumPage()
}

func (d *fitzDocument) Text() (string, error) {
	if d.doc == nil {
		return "", fmt.Errorf("document is closed")
	}

	pages := make([]string, 0, d.doc.NumPage())
	for i := 0; i < d.doc.NumPage(); i++ {
		text, err := d.doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("text of page %d: %w", i+1, err)
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), nil
}

func (d *fitzDocument) Markup() (string, error) {
	if d.doc == nil {
		return "", fmt.Errorf("document is closed")
	}

	var b strings.Builder
	b.WriteString(markupHeader)
	for i := 0; i < d.doc.NumPage(); i++ {
		page, err := d.doc.HTML(i, false)
		if err != nil {
			return "", fmt.Errorf("markup of page %d: %w", i+1, err)
		}
		b.WriteString(page)

		// MuPDF's HTML output drops link annotations, so destinations are
		// appended after the page body.
		links, err := d.doc.Links(i)
		if err != nil {
			return "", fmt.Errorf("links of page %d: %w", i+1, err)
		}
		writeLinks(&b, links)
	}
	b.WriteString(markupFooter)
	return b.String(), nil
}

func (d *fitzDocument) Close() error {
	if d.doc == nil {
		return nil
	}
	err := d.doc.Close()
	d.doc = nil
	return err
}

const (
	markupHeader = "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n</head>\n<body>\n"
	markupFooter = "</body>\n</html>\n"
)

func writeLinks(b *strings.Builder, links []fitz.Link) {
	for _, link := range links {
		if link.URI == "" {
			continue
		}
		uri := html.EscapeString(link.URI)
		fmt.Fprintf(b, "<p><a href=\"%s\">%s</a></p>\n", uri, uri)
	}
}
