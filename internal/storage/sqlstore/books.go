package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"library/internal/models"
	"library/internal/storage"
)

const bookColumns = `book_id, title, author, isbn, published_year, category, status, created_at`

// CreateBook inserts a new AVAILABLE book and returns its id
func (s *Store) CreateBook(ctx context.Context, in models.BookInput) (int64, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx,
		s.rebind(`INSERT INTO books (title, author, isbn, published_year, category, status)
			VALUES (?, ?, ?, ?, ?, ?) RETURNING book_id`),
		in.Title, in.Author, in.ISBN, in.PublishedYear, in.Category, string(models.BookAvailable),
	).Scan(&id)
	if err != nil {
		return 0, wrapWriteErr("create book", err)
	}
	return id, nil
}

// GetBook returns a single book
func (s *Store) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	var book models.Book
	err := s.db.GetContext(ctx, &book, s.rebind(`SELECT `+bookColumns+` FROM books WHERE book_id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound(models.EntityBook, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return &book, nil
}

// ListBooks returns all books ordered by id
func (s *Store) ListBooks(ctx context.Context) ([]models.Book, error) {
	books := []models.Book{}
	if err := s.db.SelectContext(ctx, &books, `SELECT `+bookColumns+` FROM books ORDER BY book_id`); err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

// ListAvailableBooks returns the books that can be lent, ordered by title
func (s *Store) ListAvailableBooks(ctx context.Context) ([]models.Book, error) {
	books := []models.Book{}
	err := s.db.SelectContext(ctx, &books,
		s.rebind(`SELECT `+bookColumns+` FROM books WHERE status = ? ORDER BY title, book_id`),
		string(models.BookAvailable))
	if err != nil {
		return nil, fmt.Errorf("failed to list available books: %w", err)
	}
	return books, nil
}

// UpdateBook overwrites the editable fields. Status is left alone.
func (s *Store) UpdateBook(ctx context.Context, id int64, in models.BookInput) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE books SET title = ?, author = ?, isbn = ?, published_year = ?, category = ?
			WHERE book_id = ?`),
		in.Title, in.Author, in.ISBN, in.PublishedYear, in.Category, id)
	if err != nil {
		return wrapWriteErr("update book", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	if n == 0 {
		return storage.NotFound(models.EntityBook, id)
	}
	return nil
}

// DeleteBook removes a book that is not on loan. Returned loans keep a NULL
// book reference.
func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	return s.withTx(ctx, "delete book", func(tx *sqlx.Tx) error {
		var bookID int64
		err := tx.GetContext(ctx, &bookID,
			s.rebind(`SELECT book_id FROM books WHERE book_id = ?`+s.dialect.forUpdate), id)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NotFound(models.EntityBook, id)
		}
		if err != nil {
			return fmt.Errorf("failed to lock book: %w", err)
		}

		active, err := s.countActiveLoans(ctx, tx, "book_id", id)
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("book %d is on loan: %w", id, storage.ErrActiveLoans)
		}

		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM books WHERE book_id = ?`), id); err != nil {
			return fmt.Errorf("failed to delete book: %w", err)
		}
		return nil
	})
}
