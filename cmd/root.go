package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "bookshelf",
		Short: "Catalog home library books from a photo",
		Long: `Bookshelf extracts the title and genre of a book from a photo using Gemini,
stores the record in PostgreSQL and mirrors it to a Google Sheet for review.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Optional YAML config file for non-secret settings")

	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newIngestCmd(&configPath))

	return cmd
}
