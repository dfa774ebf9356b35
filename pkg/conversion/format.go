package conversion

import (
	"fmt"
	"strings"
)

// Format is a supported output format.
type Format int

const (
	formatInvalid Format = iota
	Text
	Markdown
	WordProcessorDoc
	OpenDocumentText
)

// Formats lists every supported format in presentation order.
var Formats = []Format{Text, Markdown, WordProcessorDoc, OpenDocumentText}

// ParseFormat maps a requested format name to a Format. Names are the
// artifact extensions (txt, md, docx, odt); "text" and "markdown" are
// accepted as aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "txt", "text":
		return Text, nil
	case "md", "markdown":
		return Markdown, nil
	case "docx":
		return WordProcessorDoc, nil
	case "odt":
		return OpenDocumentText, nil
	}
	return formatInvalid, &Error{
		Kind:   KindUnsupportedFormat,
		Op:     "validate",
		Detail: fmt.Sprintf("%q is not one of %s", name, strings.Join(FormatNames(), ", ")),
	}
}

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	switch f {
	case Text, Markdown, WordProcessorDoc, OpenDocumentText:
		return true
	}
	return false
}

// Extension is the artifact file extension, without the dot.
func (f Format) Extension() string {
	switch f {
	case Text:
		return "txt"
	case Markdown:
		return "md"
	case WordProcessorDoc:
		return "docx"
	case OpenDocumentText:
		return "odt"
	}
	return ""
}

// ConverterToken is the external converter's target-format name. Text has
// none because it never goes through the external tool.
func (f Format) ConverterToken() string {
	switch f {
	case Markdown:
		return "markdown"
	case WordProcessorDoc:
		return "docx"
	case OpenDocumentText:
		return "odt"
	}
	return ""
}

// NeedsMarkup reports whether the format is produced from structured markup.
func (f Format) NeedsMarkup() bool {
	return f.Valid() && f != Text
}

func (f Format) String() string {
	if ext := f.Extension(); ext != "" {
		return ext
	}
	return "invalid"
}

// FormatNames returns the canonical names of all supported formats.
func FormatNames() []string {
	names := make([]string, 0, len(Formats))
	for _, f := range Formats {
		names = append(names, f.Extension())
	}
	return names
}
