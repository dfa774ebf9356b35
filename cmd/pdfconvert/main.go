// Package main is the pdfconvert CLI. It runs the same conversion pipeline as
// the HTTP service against local files.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/yourorg/pdf-converter-service/pkg/config"
	"github.com/yourorg/pdf-converter-service/pkg/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// cli holds the state shared by subcommands after PersistentPreRunE.
type cli struct {
	cfg    *config.Config
	logger logging.Logger
}

// newRootCmd builds the command tree. Each call returns independent flag state.
func newRootCmd() *cobra.Command {
	app := &cli{}

	rootCmd := &cobra.Command{
		Use:   "pdfconvert",
		Short: "Convert PDF files to text, Markdown, DOCX or ODT",
		Long: `pdfconvert extracts the content of a PDF and writes it as plain text,
Markdown, DOCX or ODT. Markup formats are produced by pandoc; Markdown can
also be produced in-process with --backend native.

Defaults come from the same environment variables (and .env file) as the
HTTP service.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Ignore error if .env doesn't exist
			_ = godotenv.Load()

			var err error
			cfgFile, _ := cmd.Flags().GetString("config")
			if cfgFile != "" {
				app.cfg, err = config.LoadConfigFromFile(cfgFile)
			} else {
				app.cfg, err = config.LoadConfigFromEnv()
			}
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			level := "warn"
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				level = "debug"
			}
			app.logger, err = logging.NewLogger(level, "console")
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.logger != nil {
				logging.Sync(app.logger)
			}
		},
	}

	rootCmd.PersistentFlags().String("config", "", "JSON or YAML config file; environment variables take precedence")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newConvertCmd(app), newSampleCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
