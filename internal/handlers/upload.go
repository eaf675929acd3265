package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/home-library/bookshelf/internal/cataloging"
	"github.com/home-library/bookshelf/internal/models"
)

const maxUploadBytes = 32 << 20

// HandleUploadBook accepts a multipart "file" part and runs it through the
// cataloging workflow. Every workflow failure is a 500 carrying the stage.
func (h *Handler) HandleUploadBook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, "Failed to read file: "+err.Error(), "", http.StatusUnprocessableEntity)
		return
	}
	defer file.Close()

	fileData, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, "Failed to read file contents: "+err.Error(), string(cataloging.StageUpload), http.StatusInternalServerError)
		return
	}

	slog.Info("Book photo received", "filename", header.Filename, "bytes", len(fileData))

	// A client disconnect must not abort the workflow between the insert and the append.
	book, err := h.ingester.Ingest(context.WithoutCancel(r.Context()), header.Filename, fileData)
	if err != nil {
		h.writeError(w, err.Error(), string(cataloging.StageOf(err)), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, models.UploadResponse{
		Status:  "success",
		Book:    book,
		Message: "Book inserted successfully!",
	})
}
