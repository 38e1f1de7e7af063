package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/digestmail/digestmail/internal/service"
)

var (
	previewName string
	previewOut  string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render the saved draft for a sample recipient",
	RunE:  runPreview,
}

func init() {
	previewCmd.Flags().StringVarP(&previewName, "name", "n", "Jane Doe", "full name of the sample recipient")
	previewCmd.Flags().StringVarP(&previewOut, "out", "o", "", "write HTML to this file instead of stdout")
}

func runPreview(cmd *cobra.Command, args []string) error {
	a, err := openDraft()
	if err != nil {
		return errors.New(service.Describe(err))
	}
	defer a.Close()

	doc, err := a.Compose.Preview(previewName)
	if err != nil {
		return errors.New(service.Describe(err))
	}

	if previewOut == "" {
		fmt.Fprintln(cmd.OutOrStdout(), doc.HTML)
		return nil
	}
	if err := os.WriteFile(previewOut, []byte(doc.HTML), 0644); err != nil {
		return fmt.Errorf("failed to write preview: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Preview written to %s (%d images referenced)\n", previewOut, len(doc.Used))
	return nil
}
