// Package conversion turns uploaded PDFs into text, Markdown, DOCX or ODT
// artifacts.
//
// A call runs validate, open, extract, bridge, invoke and returns the
// artifact path. It stops at the first failure. The transient markup file
// and the opened document are released on every exit path.
package conversion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yourorg/pdf-converter-service/pkg/logging"
	"github.com/yourorg/pdf-converter-service/pkg/pdfutil"
)

// Config is fixed at process start and shared by all calls.
type Config struct {
	OutputDir        string
	TempDir          string // empty means os.TempDir()
	ConverterBinary  string
	ConverterTimeout time.Duration
	MarkdownEngine   MarkdownEngine
}

// Request is one conversion.
type Request struct {
	SourcePath string
	Format     Format
	OutputDir  string // empty means Config.OutputDir
}

// Result describes a produced artifact.
type Result struct {
	OutputPath string
	Format     Format
	Size       int64
	Pages      int
	Elapsed    time.Duration
}

// FileName is the artifact's base name.
func (r *Result) FileName() string {
	return filepath.Base(r.OutputPath)
}

// Service orchestrates extraction, staging and conversion.
type Service struct {
	cfg       Config
	parser    pdfutil.PDFParser
	converter *Converter
	logger    logging.Logger
}

// NewService creates a conversion service.
func NewService(cfg Config, parser pdfutil.PDFParser, runner Runner, logger logging.Logger) *Service {
	return &Service{
		cfg:       cfg,
		parser:    parser,
		converter: NewConverter(cfg, runner),
		logger:    logger,
	}
}

// ArtifactPath returns {outputDir}/{baseName}.{ext} for a source document.
func ArtifactPath(outputDir, sourcePath string, format Format) string {
	name := filepath.Base(sourcePath)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(outputDir, base+"."+format.Extension())
}

// Convert converts req.SourcePath into req.Format.
func (s *Service) Convert(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	if !req.Format.Valid() {
		return nil, &Error{Kind: KindUnsupportedFormat, Op: "validate", Path: req.SourcePath, Detail: "no output format requested"}
	}

	outDir := req.OutputDir
	if outDir == "" {
		outDir = s.cfg.OutputDir
	}
	outputPath := ArtifactPath(outDir, req.SourcePath, req.Format)

	logger := s.loggerFor(ctx).With(
		logging.NewField("operation", "convert"),
		logging.NewField("source", req.SourcePath),
		logging.NewField("format", req.Format.String()),
	)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, ioError("prepare", outDir, err)
	}

	doc, err := s.parser.Open(req.SourcePath)
	if err != nil {
		return nil, extractionError("open", req.SourcePath, err)
	}
	defer func() {
		if err := doc.Close(); err != nil {
			logger.Warn("Failed to close source document", logging.NewField("error", err))
		}
	}()

	text, err := doc.Text()
	if err != nil {
		return nil, extractionError("extract", req.SourcePath, err)
	}

	j := job{format: req.Format, text: text, outputPath: outputPath}

	if req.Format.NeedsMarkup() {
		markup, err := doc.Markup()
		if err != nil {
			return nil, extractionError("extract", req.SourcePath, err)
		}

		staged, err := materialize(s.cfg.TempDir, markup)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := staged.Release(); err != nil {
				logger.Warn("Failed to remove intermediate markup", logging.NewField("path", staged.Path()), logging.NewField("error", err))
			}
		}()
		j.markupPath = staged.Path()
		logger.Debug("Markup staged", logging.NewField("path", staged.Path()))
	}

	if err := s.converter.Convert(ctx, j); err != nil {
		return nil, err
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, ioError("write", outputPath, err)
	}

	res := &Result{
		OutputPath: outputPath,
		Format:     req.Format,
		Size:       info.Size(),
		Pages:      doc.PageCount(),
		Elapsed:    time.Since(start),
	}

	logger.Info("Conversion completed",
		logging.NewField("output", res.OutputPath),
		logging.NewField("bytes", res.Size),
		logging.NewField("pages", res.Pages),
		logging.NewField("latency_ms", res.Elapsed.Milliseconds()),
	)
	return res, nil
}

// loggerFor prefers the request-scoped logger carried by ctx.
func (s *Service) loggerFor(ctx context.Context) logging.Logger {
	if l, ok := logging.LoggerFromContext(ctx); ok {
		return l
	}
	if s.logger != nil {
		return s.logger
	}
	return logging.FromContext(ctx)
}
