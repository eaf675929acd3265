package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/home-library/bookshelf/internal/models"
	"github.com/jackc/pgx/v5"
)

const insertBookSQL = `INSERT INTO books (title, genre) VALUES ($1, $2) RETURNING id`

// BookStore writes books to PostgreSQL. Every call opens and closes its own
// connection; nothing is shared between requests.
type BookStore struct {
	dsn string
}

func New(dsn string) *BookStore {
	return &BookStore{dsn: dsn}
}

// Insert stores the book in a single transaction and returns it with the
// generated id.
func (s *BookStore) Insert(ctx context.Context, book models.BookRecord) (models.PersistedBook, error) {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return models.PersistedBook{}, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if cerr := conn.Close(context.WithoutCancel(ctx)); cerr != nil {
			slog.Warn("Failed to close database connection", "err", cerr)
		}
	}()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return models.PersistedBook{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rerr := tx.Rollback(context.WithoutCancel(ctx)); rerr != nil && !errors.Is(rerr, pgx.ErrTxClosed) {
			slog.Warn("Failed to roll back book insert", "err", rerr)
		}
	}()

	var id int64
	if err := tx.QueryRow(ctx, insertBookSQL, book.Title, book.Genre).Scan(&id); err != nil {
		return models.PersistedBook{}, fmt.Errorf("failed to insert book: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.PersistedBook{}, fmt.Errorf("failed to commit book insert: %w", err)
	}
	committed = true

	slog.Info("Book inserted", "id", id, "title", book.Title)
	return models.PersistedBook{ID: id, Title: book.Title, Genre: book.Genre}, nil
}
