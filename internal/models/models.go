package models

import "time"

// AddedAtLayout formats SheetRow.AddedAt as MM/DD/YYYY HH:MM:SS
const AddedAtLayout = "01/02/2006 15:04:05"

// BookRecord is the pair of fields extracted from a book photo
type BookRecord struct {
	Title string `json:"title"`
	Genre string `json:"genre"`
}

// PersistedBook is a BookRecord after the store assigned it an id
type PersistedBook struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Genre string `json:"genre"`
}

// SheetRow is the human-readable mirror of a PersistedBook
type SheetRow struct {
	ID      int64
	Title   string
	Genre   string
	AddedAt string // MM/DD/YYYY HH:MM:SS, server local time
}

// NewSheetRow builds the sheet row for a persisted book stamped with now
func NewSheetRow(book PersistedBook, now time.Time) SheetRow {
	return SheetRow{
		ID:      book.ID,
		Title:   book.Title,
		Genre:   book.Genre,
		AddedAt: now.Format(AddedAtLayout),
	}
}

// Values returns the row in column order: id, title, genre, added_at
func (r SheetRow) Values() []interface{} {
	return []interface{}{r.ID, r.Title, r.Genre, r.AddedAt}
}

// UploadResponse is returned by POST /upload-book/ on success
type UploadResponse struct {
	Status  string     `json:"status"`
	Book    BookRecord `json:"book"`
	Message string     `json:"message"`
}

// ErrorResponse is returned for every failure of the upload endpoint
type ErrorResponse struct {
	Detail string `json:"detail"`
	Stage  string `json:"stage,omitempty"`
}
