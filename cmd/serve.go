package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/home-library/bookshelf/internal/handlers"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(configPath *string) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the book upload server",
		Long: `Starts the HTTP server.

POST /upload-book/ accepts a multipart "file" with a photo of a book. The
upload page is served at / and static assets under /static/.

Required environment: DB_HOST, DB_NAME, DB_USER, DB_PASS, GEMINI_API_KEY.
A service-account key (credentials.json by default) must grant access to
the spreadsheet.`,
		Example: `  # Start server on default port 8000
  bookshelf serve

  # Start server on custom port with a config file
  bookshelf serve --port 3000 --config bookshelf.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			addr := a.cfg.Addr()
			if port != "" {
				addr = ":" + port
			}

			handler := handlers.New(a.service, a.cfg.Server.StaticDir)
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				slog.Info("Bookshelf available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			})

			return g.Wait()
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides PORT)")

	return cmd
}
