package library

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"library/internal/models"
	"library/internal/notify"
	"library/internal/storage"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 500
)

// Service implements the library operations on top of a Storage. Ledger
// events and notifications are sent after the storage commit and never fail
// the operation.
type Service struct {
	store    storage.Storage
	events   storage.EventLog
	notifier notify.Notifier
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces the time source used for loan and event timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new library service
func NewService(store storage.Storage, events storage.EventLog, notifier notify.Notifier, logger *zap.Logger, options ...Option) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	s := &Service{
		store:    store,
		events:   events,
		notifier: notifier,
		validate: newValidator(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Books

func (s *Service) ListBooks(ctx context.Context) ([]models.Book, error) {
	return s.store.ListBooks(ctx)
}

func (s *Service) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	book, err := s.store.GetBook(ctx, id)
	if err != nil {
		return nil, classify(err, "")
	}
	return book, nil
}

// CreateBook validates the form and stores a new AVAILABLE book
func (s *Service) CreateBook(ctx context.Context, form BookForm) (int64, error) {
	if err := s.validateForm(&form); err != nil {
		return 0, err
	}

	id, err := s.store.CreateBook(ctx, form.input())
	if err != nil {
		return 0, classify(err, "isbn already exists")
	}

	s.logger.Info("Book created", zap.Int64("book_id", id), zap.String("title", form.Title))
	s.record(ctx, models.EntityBook, id, models.ActionCreated, form.Title)
	return id, nil
}

// UpdateBook overwrites the editable book fields
func (s *Service) UpdateBook(ctx context.Context, id int64, form BookForm) error {
	if err := s.validateForm(&form); err != nil {
		return err
	}

	if err := s.store.UpdateBook(ctx, id, form.input()); err != nil {
		return classify(err, "isbn already exists")
	}

	s.logger.Info("Book updated", zap.Int64("book_id", id))
	s.record(ctx, models.EntityBook, id, models.ActionUpdated, form.Title)
	return nil
}

// DeleteBook removes a book that is not on loan
func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	if err := s.store.DeleteBook(ctx, id); err != nil {
		return classify(err, "book is on loan")
	}

	s.logger.Info("Book deleted", zap.Int64("book_id", id))
	s.record(ctx, models.EntityBook, id, models.ActionDeleted, "")
	return nil
}

// Members

func (s *Service) ListMembers(ctx context.Context) ([]models.Member, error) {
	return s.store.ListMembers(ctx)
}

func (s *Service) GetMember(ctx context.Context, id int64) (*models.Member, error) {
	member, err := s.store.GetMember(ctx, id)
	if err != nil {
		return nil, classify(err, "")
	}
	return member, nil
}

// MemberDetail returns a member with their loan history
func (s *Service) MemberDetail(ctx context.Context, id int64) (*models.MemberDetail, error) {
	member, err := s.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	loans, err := s.store.ListMemberLoans(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.MemberDetail{Member: *member, Loans: loans}, nil
}

// CreateMember validates the form and stores a new member
func (s *Service) CreateMember(ctx context.Context, form MemberForm) (int64, error) {
	if err := s.validateForm(&form); err != nil {
		return 0, err
	}

	id, err := s.store.CreateMember(ctx, form.input())
	if err != nil {
		return 0, classify(err, "email already exists")
	}

	s.logger.Info("Member created", zap.Int64("member_id", id))
	s.record(ctx, models.EntityMember, id, models.ActionCreated, form.Name)
	return id, nil
}

// UpdateMember overwrites name, email and phone
func (s *Service) UpdateMember(ctx context.Context, id int64, form MemberForm) error {
	if err := s.validateForm(&form); err != nil {
		return err
	}

	if err := s.store.UpdateMember(ctx, id, form.input()); err != nil {
		return classify(err, "email already exists")
	}

	s.logger.Info("Member updated", zap.Int64("member_id", id))
	s.record(ctx, models.EntityMember, id, models.ActionUpdated, form.Name)
	return nil
}

// DeleteMember removes a member without BORROWED loans
func (s *Service) DeleteMember(ctx context.Context, id int64) error {
	if err := s.store.DeleteMember(ctx, id); err != nil {
		return classify(err, "member has active loans")
	}

	s.logger.Info("Member deleted", zap.Int64("member_id", id))
	s.record(ctx, models.EntityMember, id, models.ActionDeleted, "")
	return nil
}

// Loans

func (s *Service) ListLoans(ctx context.Context) ([]models.LoanDetail, error) {
	return s.store.ListLoans(ctx)
}

func (s *Service) GetLoan(ctx context.Context, id int64) (*models.LoanDetail, error) {
	loan, err := s.store.GetLoan(ctx, id)
	if err != nil {
		return nil, classify(err, "")
	}
	return loan, nil
}

// LoanChoices returns the books that can be lent and the members that can borrow
func (s *Service) LoanChoices(ctx context.Context) (*models.LoanChoices, error) {
	books, err := s.store.ListAvailableBooks(ctx)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMembersByName(ctx)
	if err != nil {
		return nil, err
	}
	return &models.LoanChoices{Books: books, Members: members}, nil
}

// CreateLoan lends a book to a member until the due date
func (s *Service) CreateLoan(ctx context.Context, form LoanForm) (int64, error) {
	if err := s.validateForm(&form); err != nil {
		return 0, err
	}
	bookID, memberID, due, err := form.parsed()
	if err != nil {
		return 0, err
	}

	loanID, err := s.store.CreateLoan(ctx, bookID, memberID, s.now(), due)
	if err != nil {
		return 0, classify(err, "")
	}

	s.logger.Info("Loan created",
		zap.Int64("loan_id", loanID),
		zap.Int64("book_id", bookID),
		zap.Int64("member_id", memberID),
		zap.String("due_date", form.DueDate),
	)

	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		s.logger.Warn("Failed to load loan for notification", zap.Error(err), zap.Int64("loan_id", loanID))
		s.record(ctx, models.EntityLoan, loanID, models.ActionBorrowed, "")
		return loanID, nil
	}
	s.record(ctx, models.EntityLoan, loanID, models.ActionBorrowed,
		fmt.Sprintf("%s by %s, due %s", loan.BookTitle, loan.MemberName, form.DueDate))
	s.notify(ctx, notify.BorrowedMessage(loan.BookTitle, loan.MemberName, due))
	return loanID, nil
}

// ReturnLoan closes a BORROWED loan and frees its book
func (s *Service) ReturnLoan(ctx context.Context, id int64) error {
	if err := s.store.ReturnLoan(ctx, id, s.now()); err != nil {
		return classify(err, "")
	}

	s.logger.Info("Loan returned", zap.Int64("loan_id", id))

	loan, err := s.store.GetLoan(ctx, id)
	if err != nil {
		s.logger.Warn("Failed to load loan for notification", zap.Error(err), zap.Int64("loan_id", id))
		s.record(ctx, models.EntityLoan, id, models.ActionReturned, "")
		return nil
	}
	s.record(ctx, models.EntityLoan, id, models.ActionReturned,
		fmt.Sprintf("%s by %s", loan.BookTitle, loan.MemberName))
	s.notify(ctx, notify.ReturnedMessage(loan.BookTitle, loan.MemberName))
	return nil
}

// RecentActivity returns the newest ledger events
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]models.LedgerEvent, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	return s.events.LastEvents(ctx, limit)
}

// record appends a ledger event; failures are logged only
func (s *Service) record(ctx context.Context, entity string, id int64, action, detail string) {
	event := models.LedgerEvent{
		OccurredAt: s.now(),
		Entity:     entity,
		EntityID:   id,
		Action:     action,
		Detail:     detail,
	}
	if err := s.events.RecordEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to record ledger event",
			zap.Error(err),
			zap.String("entity", entity),
			zap.Int64("entity_id", id),
			zap.String("action", action),
		)
	}
}

func (s *Service) notify(ctx context.Context, text string) {
	if err := s.notifier.Notify(ctx, text); err != nil {
		s.logger.Warn("Failed to send notification", zap.Error(err))
	}
}
