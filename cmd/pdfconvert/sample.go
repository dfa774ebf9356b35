package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/yourorg/pdf-converter-service/pkg/pdfutil"
)

func newSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample <file.pdf>",
		Short: "Write a small sample PDF",
		Long: `Sample writes a one page PDF containing "Hello World" and a link to
https://example.com. Converting it checks that pandoc and the extractor work
on this machine.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := pdfutil.DefaultSample()
			if title, _ := cmd.Flags().GetString("title"); title != "" {
				content.Title = title
			}

			data, err := pdfutil.GenerateSample(content)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], data, 0o644); err != nil {
				return fmt.Errorf("write sample: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", args[0], len(data))
			return nil
		},
	}

	cmd.Flags().String("title", "", "optional heading above the sample text")
	return cmd
}
