package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/home-library/bookshelf/internal/cataloging"
	"github.com/home-library/bookshelf/internal/models"
	"github.com/spf13/cobra"
)

func newIngestCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <image>",
		Short: "Catalog a single book photo from disk",
		Long: `Runs a local photo through the same workflow as POST /upload-book/:
Gemini extraction, database insert and spreadsheet append. The JSON response
is printed to stdout.`,
		Example: `  bookshelf ingest ./photos/cover.jpg`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			book, err := a.service.Ingest(context.WithoutCancel(cmd.Context()), filepath.Base(args[0]), data)
			if err != nil {
				return fmt.Errorf("%s stage failed: %w", cataloging.StageOf(err), err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(models.UploadResponse{
				Status:  "success",
				Book:    book,
				Message: "Book inserted successfully!",
			})
		},
	}
}
