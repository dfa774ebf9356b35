package conversion

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Kind classifies a conversion failure.
type Kind int

const (
	KindUnsupportedFormat Kind = iota + 1
	KindExtraction
	KindIO
	KindExternalTool
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedFormat:
		return "unsupported format"
	case KindExtraction:
		return "extraction error"
	case KindIO:
		return "io error"
	case KindExternalTool:
		return "external tool error"
	case KindTimeout:
		return "timeout"
	}
	return "unknown"
}

// Sentinels for errors.Is. A *Error matches the sentinel of its Kind.
var (
	ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat}
	ErrExtraction        = &Error{Kind: KindExtraction}
	ErrIO                = &Error{Kind: KindIO}
	ErrExternalTool      = &Error{Kind: KindExternalTool}
	ErrTimeout           = &Error{Kind: KindTimeout}
)

// Error is returned by every failing conversion.
type Error struct {
	Kind Kind
	Op   string // pipeline step: validate, open, extract, bridge, invoke, write
	Path string

	// Detail is a human readable summary.
	Detail string

	// Diagnostic holds the external tool's captured output, if any.
	Diagnostic string

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(" during ")
		b.WriteString(e.Op)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if d := strings.TrimSpace(e.Diagnostic); d != "" {
		fmt.Fprintf(&b, " (%s)", d)
	}
	return b.String()
}

// Public is Error with the directories of every path involved removed, so
// the message can be returned to clients without exposing server layout.
func (e *Error) Public() string {
	msg := e.Error()

	dirs := []string{filepath.Dir(e.Path)}
	var pe *fs.PathError
	if errors.As(e.Err, &pe) {
		dirs = append(dirs, filepath.Dir(pe.Path))
	}
	var le *os.LinkError
	if errors.As(e.Err, &le) {
		dirs = append(dirs, filepath.Dir(le.Old), filepath.Dir(le.New))
	}

	for _, dir := range dirs {
		if dir == "." || dir == string(filepath.Separator) {
			continue
		}
		msg = strings.ReplaceAll(msg, dir+string(filepath.Separator), "")
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// KindOf returns the Kind of err, or 0 if err is not a conversion error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

func extractionError(op, path string, err error) *Error {
	return &Error{Kind: KindExtraction, Op: op, Path: path, Detail: "cannot read source document", Err: err}
}

func ioError(op, path string, err error) *Error {
	return &Error{Kind: KindIO, Op: op, Path: path, Err: err}
}
