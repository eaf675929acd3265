package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/home-library/bookshelf/internal/cataloging"
	"github.com/home-library/bookshelf/internal/config"
	"github.com/home-library/bookshelf/internal/gemini"
	"github.com/home-library/bookshelf/internal/sheets"
	"github.com/home-library/bookshelf/internal/storage"
)

// app holds the process-wide collaborators built once at startup
type app struct {
	cfg     config.Config
	gemini  *gemini.Gemini
	service *cataloging.Service
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log.Level)

	mirror, err := sheets.New(ctx, sheets.Config{
		CredentialsFile: cfg.Sheets.CredentialsFile,
		SpreadsheetName: cfg.Sheets.SpreadsheetName,
		SpreadsheetID:   cfg.Sheets.SpreadsheetID,
		Worksheet:       cfg.Sheets.Worksheet,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up spreadsheet mirror: %w", err)
	}

	g, err := gemini.New(ctx, cfg.Gemini.APIKey)
	if err != nil {
		return nil, err
	}

	service := cataloging.NewService(g, storage.New(cfg.DSN()), mirror, cataloging.Options{
		Model:       cfg.Gemini.Model,
		Temperature: cfg.Gemini.Temperature,
	})

	return &app{cfg: cfg, gemini: g, service: service}, nil
}

func (a *app) Close() {
	if err := a.gemini.Close(); err != nil {
		slog.Warn("Failed to close gemini client", "err", err)
	}
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}
