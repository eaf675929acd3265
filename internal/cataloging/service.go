package cataloging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/home-library/bookshelf/internal/models"
	"github.com/home-library/bookshelf/internal/providers"
)

// Prompt is the fixed instruction sent alongside every image
const Prompt = "Based on the given image identify the details of the book " +
	"and provide the response in JSON format with fields title and genre as given in the output schema."

// Store persists extracted books
type Store interface {
	Insert(ctx context.Context, book models.BookRecord) (models.PersistedBook, error)
}

// SheetMirror receives a copy of every persisted book
type SheetMirror interface {
	Append(ctx context.Context, row models.SheetRow) error
}

// Options configures the inference call
type Options struct {
	Model       string
	Temperature *float64
	// TempDir is where uploads are staged; empty means os.TempDir().
	TempDir string
}

type Service struct {
	provider providers.Provider
	store    Store
	mirror   SheetMirror
	opts     Options
	now      func() time.Time
}

func NewService(provider providers.Provider, store Store, mirror SheetMirror, opts Options) *Service {
	return &Service{
		provider: provider,
		store:    store,
		mirror:   mirror,
		opts:     opts,
		now:      time.Now,
	}
}

// Ingest runs one photo through inference, the store and the sheet mirror.
// The staged upload is removed on every return path. Errors are *StageError.
func (s *Service) Ingest(ctx context.Context, filename string, data []byte) (models.BookRecord, error) {
	imagePath, cleanup, err := stageUpload(s.opts.TempDir, filename, data)
	if err != nil {
		return models.BookRecord{}, stageErr(StageUpload, err)
	}
	defer cleanup()

	raw, err := s.provider.ExtractText(ctx, providers.Config{
		Model:       s.opts.Model,
		Temperature: s.opts.Temperature,
		Prompt:      Prompt,
		ImagePath:   imagePath,
	})
	if err != nil {
		return models.BookRecord{}, stageErr(StageInference, err)
	}
	slog.Info("Gemini raw output", "text", raw)

	book, err := ParseBook(raw)
	if err != nil {
		return models.BookRecord{}, stageErr(StageParse, err)
	}

	persisted, err := s.store.Insert(ctx, book)
	if err != nil {
		return models.BookRecord{}, stageErr(StagePersist, err)
	}

	if err := s.mirror.Append(ctx, models.NewSheetRow(persisted, s.now())); err != nil {
		slog.Error("Book stored but not mirrored to sheet", "id", persisted.ID, "err", err)
		return models.BookRecord{}, stageErr(StageMirror, fmt.Errorf("book %d was stored but not mirrored: %w", persisted.ID, err))
	}

	return book, nil
}

// stageUpload writes data to a fresh temp file keeping the original extension.
// The returned cleanup removes it and is safe to call once the file is unused.
func stageUpload(dir, filename string, data []byte) (string, func(), error) {
	f, err := os.CreateTemp(dir, "book-*"+filepath.Ext(filename))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to remove temp file", "path", path, "err", err)
		}
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	return path, cleanup, nil
}

// ParseBook decodes the model output. Both keys must be present as strings;
// their contents are not checked. A surrounding markdown code fence is tolerated.
func ParseBook(raw string) (models.BookRecord, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var result struct {
		Title *string `json:"title"`
		Genre *string `json:"genre"`
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return models.BookRecord{}, fmt.Errorf("failed to parse model output as JSON: %w", err)
	}
	if result.Title == nil {
		return models.BookRecord{}, errors.New("model output is missing field \"title\"")
	}
	if result.Genre == nil {
		return models.BookRecord{}, errors.New("model output is missing field \"genre\"")
	}

	return models.BookRecord{Title: *result.Title, Genre: *result.Genre}, nil
}
