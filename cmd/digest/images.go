package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/digestmail/digestmail/internal/model"
	"github.com/digestmail/digestmail/internal/service"
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Manage draft images",
}

var imagesAddCmd = &cobra.Command{
	Use:   "add [files...]",
	Short: "Register images, append their placeholders and save the draft",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runImagesAdd,
}

var imagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered images in content order",
	RunE:  runImagesList,
}

func init() {
	imagesCmd.AddCommand(imagesAddCmd)
	imagesCmd.AddCommand(imagesListCmd)
}

func runImagesAdd(cmd *cobra.Command, args []string) error {
	a, err := openDraft()
	if err != nil {
		return errors.New(service.Describe(err))
	}
	defer a.Close()

	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open image: %w", err)
		}
		id, err := a.Compose.AddImage(filepath.Base(path), f)
		f.Close()
		if err != nil {
			return errors.New(service.Describe(err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", model.Placeholder(id), path)
	}

	if err := a.Compose.Save(); err != nil {
		return errors.New(service.Describe(err))
	}
	return nil
}

func runImagesList(cmd *cobra.Command, args []string) error {
	a, err := openDraft()
	if err != nil {
		return errors.New(service.Describe(err))
	}
	defer a.Close()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CID\tPLACEHOLDER\tPATH")
	for i, e := range a.Compose.Snapshot().Images.Entries() {
		fmt.Fprintf(tw, "image%d\t%s\t%s\n", i+1, model.Placeholder(e.ID), e.Path)
	}
	return tw.Flush()
}
