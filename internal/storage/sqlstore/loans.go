package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"library/internal/models"
	"library/internal/storage"
)

const loanSelect = `SELECT l.loan_id, l.book_id, l.member_id, l.loan_date, l.due_date, l.return_date, l.status,
	COALESCE(b.title, '` + models.DeletedBookTitle + `') AS book_title,
	COALESCE(m.name, '` + models.DeletedMemberName + `') AS member_name
	FROM loans l
	LEFT JOIN books b ON b.book_id = l.book_id
	LEFT JOIN members m ON m.member_id = l.member_id`

const loanOrder = ` ORDER BY l.loan_date DESC, l.loan_id DESC`

// CreateLoan lends an AVAILABLE book to an existing member. The book status
// flips through a compare-and-swap so two concurrent borrowers cannot both win.
func (s *Store) CreateLoan(ctx context.Context, bookID, memberID int64, loanDate, dueDate time.Time) (int64, error) {
	var loanID int64
	err := s.withTx(ctx, "create loan", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			s.rebind(`UPDATE books SET status = ? WHERE book_id = ? AND status = ?`),
			string(models.BookBorrowed), bookID, string(models.BookAvailable))
		if err != nil {
			return fmt.Errorf("failed to claim book: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to claim book: %w", err)
		}
		if n == 0 {
			var exists int
			err := tx.GetContext(ctx, &exists, s.rebind(`SELECT COUNT(*) FROM books WHERE book_id = ?`), bookID)
			if err != nil {
				return fmt.Errorf("failed to look up book: %w", err)
			}
			if exists == 0 {
				return storage.NotFound(models.EntityBook, bookID)
			}
			return fmt.Errorf("book %d: %w", bookID, storage.ErrBookUnavailable)
		}

		var member int64
		err = tx.GetContext(ctx, &member,
			s.rebind(`SELECT member_id FROM members WHERE member_id = ?`+s.dialect.forShare), memberID)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NotFound(models.EntityMember, memberID)
		}
		if err != nil {
			return fmt.Errorf("failed to look up member: %w", err)
		}

		err = tx.QueryRowxContext(ctx,
			s.rebind(`INSERT INTO loans (book_id, member_id, loan_date, due_date, status)
				VALUES (?, ?, ?, ?, ?) RETURNING loan_id`),
			bookID, memberID, loanDate, dueDate, string(models.LoanBorrowed),
		).Scan(&loanID)
		if isUniqueViolation(err) {
			return fmt.Errorf("book %d: %w", bookID, storage.ErrBookUnavailable)
		}
		if err != nil {
			return fmt.Errorf("failed to insert loan: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return loanID, nil
}

// ReturnLoan closes a BORROWED loan and makes its book AVAILABLE again.
// A loan that is already RETURNED is left untouched.
func (s *Store) ReturnLoan(ctx context.Context, loanID int64, returnDate time.Time) error {
	return s.withTx(ctx, "return loan", func(tx *sqlx.Tx) error {
		var bookID sql.NullInt64
		err := tx.QueryRowxContext(ctx,
			s.rebind(`UPDATE loans SET status = ?, return_date = ?
				WHERE loan_id = ? AND status = ? RETURNING book_id`),
			string(models.LoanReturned), returnDate, loanID, string(models.LoanBorrowed),
		).Scan(&bookID)
		if errors.Is(err, sql.ErrNoRows) {
			var exists int
			err := tx.GetContext(ctx, &exists, s.rebind(`SELECT COUNT(*) FROM loans WHERE loan_id = ?`), loanID)
			if err != nil {
				return fmt.Errorf("failed to look up loan: %w", err)
			}
			if exists == 0 {
				return storage.NotFound(models.EntityLoan, loanID)
			}
			return fmt.Errorf("loan %d: %w", loanID, storage.ErrAlreadyReturned)
		}
		if err != nil {
			return fmt.Errorf("failed to close loan: %w", err)
		}

		// Loans whose book was deleted carry a NULL book_id
		if !bookID.Valid {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			s.rebind(`UPDATE books SET status = ? WHERE book_id = ?`),
			string(models.BookAvailable), bookID.Int64)
		if err != nil {
			return fmt.Errorf("failed to release book: %w", err)
		}
		return nil
	})
}

// GetLoan returns one loan with its book title and member name
func (s *Store) GetLoan(ctx context.Context, id int64) (*models.LoanDetail, error) {
	var loan models.LoanDetail
	err := s.db.GetContext(ctx, &loan, s.rebind(loanSelect+` WHERE l.loan_id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound(models.EntityLoan, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return &loan, nil
}

// ListLoans returns every loan, newest first
func (s *Store) ListLoans(ctx context.Context) ([]models.LoanDetail, error) {
	loans := []models.LoanDetail{}
	if err := s.db.SelectContext(ctx, &loans, loanSelect+loanOrder); err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

// ListMemberLoans returns the loan history of one member, newest first
func (s *Store) ListMemberLoans(ctx context.Context, memberID int64) ([]models.LoanDetail, error) {
	loans := []models.LoanDetail{}
	err := s.db.SelectContext(ctx, &loans, s.rebind(loanSelect+` WHERE l.member_id = ?`+loanOrder), memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list member loans: %w", err)
	}
	return loans, nil
}
