package conversion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/yourorg/pdf-converter-service/pkg/utils"
)

// MarkdownEngine selects how Markdown artifacts are produced.
type MarkdownEngine string

const (
	// EnginePandoc sends Markdown through the external converter like every
	// other markup-based format.
	EnginePandoc MarkdownEngine = "pandoc"
	// EngineNative converts the staged HTML in-process.
	EngineNative MarkdownEngine = "native"
)

// job is one dispatch to the Converter.
type job struct {
	format     Format
	text       string // extracted plain text, used by Text
	markupPath string // staged markup, used by every other format
	outputPath string
}

// Converter writes artifacts, invoking the external tool when needed.
type Converter struct {
	binary  string
	engine  MarkdownEngine
	runner  Runner
	timeout timeoutFunc
}

type timeoutFunc func(context.Context) (context.Context, context.CancelFunc)

// NewConverter creates a Converter. A zero timeout disables the deadline.
func NewConverter(cfg Config, runner Runner) *Converter {
	engine := cfg.MarkdownEngine
	if engine == "" {
		engine = EnginePandoc
	}

	timeout := cfg.ConverterTimeout
	return &Converter{
		binary: cfg.ConverterBinary,
		engine: engine,
		runner: runner,
		timeout: func(ctx context.Context) (context.Context, context.CancelFunc) {
			if timeout <= 0 {
				return context.WithCancel(ctx)
			}
			return context.WithTimeout(ctx, timeout)
		},
	}
}

// Convert dispatches on the job's format.
func (c *Converter) Convert(ctx context.Context, j job) error {
	switch j.format {
	case Text:
		return writeAtomic(j.outputPath, []byte(j.text))
	case Markdown:
		if c.engine == EngineNative {
			return c.nativeMarkdown(j)
		}
		return c.external(ctx, j)
	case WordProcessorDoc, OpenDocumentText:
		return c.external(ctx, j)
	default:
		return &Error{Kind: KindUnsupportedFormat, Op: "validate", Detail: fmt.Sprintf("unsupported output format: %s", j.format)}
	}
}

// external runs: <binary> <input> -f html -t <token> -s -o <staging>, then
// moves the staging file over the artifact. The artifact path is never
// touched when the tool fails.
func (c *Converter) external(ctx context.Context, j job) error {
	ctx, cancel := c.timeout(ctx)
	defer cancel()

	staging := stagingPath(j.outputPath)
	args := []string{j.markupPath, "-f", "html", "-t", j.format.ConverterToken(), "-s", "-o", staging}

	output, err := c.runner.Run(ctx, c.binary, args...)
	if err != nil {
		os.Remove(staging)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &Error{
				Kind:       KindTimeout,
				Op:         "invoke",
				Path:       j.markupPath,
				Detail:     fmt.Sprintf("%s did not finish in time and was terminated", c.binary),
				Diagnostic: string(output),
				Err:        ctx.Err(),
			}
		}
		return &Error{
			Kind:       KindExternalTool,
			Op:         "invoke",
			Path:       j.markupPath,
			Detail:     fmt.Sprintf("%s conversion to %s failed", c.binary, j.format.ConverterToken()),
			Diagnostic: string(output),
			Err:        err,
		}
	}

	if _, err := os.Stat(staging); err != nil {
		return &Error{
			Kind:       KindExternalTool,
			Op:         "invoke",
			Path:       j.markupPath,
			Detail:     fmt.Sprintf("%s exited successfully but wrote no output", c.binary),
			Diagnostic: string(output),
			Err:        err,
		}
	}

	if err := os.Rename(staging, j.outputPath); err != nil {
		os.Remove(staging)
		return ioError("write", j.outputPath, err)
	}
	return nil
}

func (c *Converter) nativeMarkdown(j job) error {
	raw, err := os.ReadFile(j.markupPath)
	if err != nil {
		return ioError("invoke", j.markupPath, err)
	}

	text, err := md.NewConverter("", true, nil).ConvertString(string(raw))
	if err != nil {
		return &Error{Kind: KindExternalTool, Op: "invoke", Path: j.markupPath, Detail: "native markdown conversion failed", Err: err}
	}
	return writeAtomic(j.outputPath, []byte(text))
}

// stagingPath returns a unique hidden sibling of path.
func stagingPath(path string) string {
	dir, name := filepath.Split(path)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.part", name, utils.GenerateUUID()))
}

// writeAtomic replaces path with data so readers never observe a partial file.
func writeAtomic(path string, data []byte) error {
	staging := stagingPath(path)
	if err := os.WriteFile(staging, data, 0o644); err != nil {
		os.Remove(staging)
		return ioError("write", path, err)
	}
	if err := os.Rename(staging, path); err != nil {
		os.Remove(staging)
		return ioError("write", path, err)
	}
	return nil
}
