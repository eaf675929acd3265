package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/home-library/bookshelf/internal/models"
)

// Ingester runs one uploaded photo through the cataloging workflow
type Ingester interface {
	Ingest(ctx context.Context, filename string, data []byte) (models.BookRecord, error)
}

type Handler struct {
	ingester  Ingester
	staticDir string
}

func New(ingester Ingester, staticDir string) *Handler {
	return &Handler{
		ingester:  ingester,
		staticDir: staticDir,
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message, stage string, code int) {
	slog.Error("Request failed", "stage", stage, "err", message)
	h.writeJSON(w, code, models.ErrorResponse{Detail: message, Stage: stage})
}
