package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"library/internal/models"
)

var (
	// ErrNotFound is matched by every *NotFoundError
	ErrNotFound = errors.New("not found")
	// ErrBookUnavailable means the book already has an open loan
	ErrBookUnavailable = errors.New("book not available")
	// ErrActiveLoans means the row is still referenced by a BORROWED loan
	ErrActiveLoans = errors.New("active loans exist")
	// ErrAlreadyReturned means the loan has already left the BORROWED state
	ErrAlreadyReturned = errors.New("loan already returned")
	// ErrDuplicate means a unique column (isbn, email) already holds the value
	ErrDuplicate = errors.New("duplicate value")
)

// NotFoundError reports a missing row of the named entity
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NotFound builds a *NotFoundError
func NotFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// Storage defines the relational operations of the library. Every mutating
// method is a single unit of work: it commits fully or not at all.
type Storage interface {
	// Book operations
	CreateBook(ctx context.Context, in models.BookInput) (int64, error)
	GetBook(ctx context.Context, id int64) (*models.Book, error)
	ListBooks(ctx context.Context) ([]models.Book, error)
	ListAvailableBooks(ctx context.Context) ([]models.Book, error)
	UpdateBook(ctx context.Context, id int64, in models.BookInput) error
	// DeleteBook fails with ErrActiveLoans while the book is on loan
	DeleteBook(ctx context.Context, id int64) error

	// Member operations
	CreateMember(ctx context.Context, in models.MemberInput) (int64, error)
	GetMember(ctx context.Context, id int64) (*models.Member, error)
	ListMembers(ctx context.Context) ([]models.Member, error)
	ListMembersByName(ctx context.Context) ([]models.Member, error)
	UpdateMember(ctx context.Context, id int64, in models.MemberInput) error
	// DeleteMember fails with ErrActiveLoans while the member has a BORROWED loan
	DeleteMember(ctx context.Context, id int64) error

	// Loan operations

	// CreateLoan marks the book BORROWED and inserts the loan atomically.
	// Returns ErrBookUnavailable if the book is already on loan and a
	// *NotFoundError if the book or member does not exist.
	CreateLoan(ctx context.Context, bookID, memberID int64, loanDate, dueDate time.Time) (int64, error)
	// ReturnLoan moves the loan to RETURNED and frees its book atomically.
	// Returns ErrAlreadyReturned if the loan is not BORROWED.
	ReturnLoan(ctx context.Context, loanID int64, returnDate time.Time) error
	GetLoan(ctx context.Context, id int64) (*models.LoanDetail, error)
	ListLoans(ctx context.Context) ([]models.LoanDetail, error)
	ListMemberLoans(ctx context.Context, memberID int64) ([]models.LoanDetail, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}

// EventLog is the append-only activity log of registry and ledger mutations
type EventLog interface {
	RecordEvent(ctx context.Context, event models.LedgerEvent) error
	// LastEvents returns the newest events first
	LastEvents(ctx context.Context, limit int) ([]models.LedgerEvent, error)

	Initialize(ctx context.Context) error
	Close() error
}
