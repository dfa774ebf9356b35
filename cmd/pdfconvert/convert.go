package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/yourorg/pdf-converter-service/pkg/conversion"
	"github.com/yourorg/pdf-converter-service/pkg/logging"
	"github.com/yourorg/pdf-converter-service/pkg/pdfutil"
)

func newConvertCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <file.pdf>",
		Short: "Convert a PDF to one or more formats",
		Long: `Convert writes one artifact per requested format next to the source, or
into --output-dir. Every format is attempted; the command fails if any of
them failed.`,
		Args: cobra.ExactArgs(1),
		RunE: app.runConvert,
	}

	cmd.Flags().StringSliceP("format", "f", []string{"md"}, "output formats: "+strings.Join(conversion.FormatNames(), ", "))
	cmd.Flags().StringP("output-dir", "o", "", "directory for artifacts (default: the source's directory)")
	cmd.Flags().Duration("timeout", 0, "external converter timeout (default CONVERTER_TIMEOUT)")
	cmd.Flags().String("backend", "", "markdown backend: pandoc or native (default CONVERTER_MARKDOWN_BACKEND)")
	cmd.Flags().String("converter", "", "external converter binary (default CONVERTER_BINARY)")
	return cmd
}

func (app *cli) runConvert(cmd *cobra.Command, args []string) error {
	source, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	names, _ := cmd.Flags().GetStringSlice("format")
	formats := make([]conversion.Format, 0, len(names))
	for _, name := range names {
		f, err := conversion.ParseFormat(name)
		if err != nil {
			return err
		}
		formats = append(formats, f)
	}

	outputDir, _ := cmd.Flags().GetString("output-dir")
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}

	svcCfg := conversion.Config{
		OutputDir:        outputDir,
		TempDir:          app.cfg.TempDir,
		ConverterBinary:  app.cfg.ConverterBinary,
		ConverterTimeout: app.cfg.ConverterTimeoutDuration(),
		MarkdownEngine:   conversion.MarkdownEngine(app.cfg.ConverterMarkdownEngine),
	}
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		svcCfg.ConverterTimeout = timeout
	}
	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		switch engine := conversion.MarkdownEngine(strings.ToLower(backend)); engine {
		case conversion.EnginePandoc, conversion.EngineNative:
			svcCfg.MarkdownEngine = engine
		default:
			return fmt.Errorf("unsupported backend %q (use pandoc or native)", backend)
		}
	}
	if binary, _ := cmd.Flags().GetString("converter"); binary != "" {
		svcCfg.ConverterBinary = binary
	}

	svc := conversion.NewService(svcCfg, pdfutil.NewPDFParser(), conversion.NewExecRunner(), app.logger)
	ctx := logging.WithLogger(context.Background(), app.logger)

	out := cmd.OutOrStdout()
	var errs []error
	for _, format := range formats {
		res, err := svc.Convert(ctx, conversion.Request{SourcePath: source, Format: format})
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%-5s failed: %v\n", format, err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "%-5s %s (%d bytes, %d pages, %s)\n",
			format, res.OutputPath, res.Size, res.Pages, res.Elapsed.Round(time.Millisecond))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d of %d conversions failed: %w", len(errs), len(formats), errors.Join(errs...))
	}
	return nil
}
