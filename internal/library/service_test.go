package library

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"library/internal/models"
	"library/internal/storage"
	"library/internal/storage/stubs"
)

type recordingNotifier struct {
	messages []string
	err      error
}

func (n *recordingNotifier) Notify(ctx context.Context, text string) error {
	n.messages = append(n.messages, text)
	return n.err
}

type failingEventLog struct {
	*stubs.MockEventLog
}

func (failingEventLog) RecordEvent(ctx context.Context, event models.LedgerEvent) error {
	return errors.New("event log unavailable")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

var fixedNow = time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *stubs.MockEventLog, *recordingNotifier) {
	t.Helper()
	events := stubs.NewMockEventLog()
	notifier := &recordingNotifier{}
	svc := NewService(stubs.NewMockDB(), events, notifier, zap.NewNop(),
		WithClock(func() time.Time { return fixedNow }))
	return svc, events, notifier
}

func TestService_CreateBookValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		form BookForm
		want string
	}{
		{"missing title", BookForm{Author: "Herbert"}, "title is required"},
		{"missing author", BookForm{Title: "Dune"}, "author is required"},
		{"blank title", BookForm{Title: "   ", Author: "Herbert"}, "title is required"},
		{"long title", BookForm{Title: strings.Repeat("x", 101), Author: "Herbert"}, "title must be at most 100 characters"},
		{"long isbn", BookForm{Title: "Dune", Author: "Herbert", ISBN: strings.Repeat("1", 21)}, "isbn must be at most 20 characters"},
		{"bad year", BookForm{Title: "Dune", Author: "Herbert", PublishedYear: "19x5"}, "published_year must be a whole number"},
		{"negative year", BookForm{Title: "Dune", Author: "Herbert", PublishedYear: "-1"}, "published_year"},
		{"five digit year", BookForm{Title: "Dune", Author: "Herbert", PublishedYear: "10000"}, "published_year"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateBook(ctx, tt.form)
			require.Error(t, err)
			assert.Equal(t, CodeValidation, Code(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	books, err := svc.ListBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestService_CreateBook(t *testing.T) {
	svc, events, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.CreateBook(ctx, BookForm{
		Title:         " Dune ",
		Author:        "Frank Herbert",
		PublishedYear: "1965",
	})
	require.NoError(t, err)

	book, err := svc.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
	assert.Nil(t, book.ISBN)
	assert.Nil(t, book.Category)
	require.NotNil(t, book.PublishedYear)
	assert.Equal(t, 1965, *book.PublishedYear)
	assert.Equal(t, models.BookAvailable, book.Status)

	recorded, err := events.LastEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, models.EntityBook, recorded[0].Entity)
	assert.Equal(t, models.ActionCreated, recorded[0].Action)
	assert.Equal(t, id, recorded[0].EntityID)
	assert.Equal(t, fixedNow, recorded[0].OccurredAt)
}

func TestService_DuplicatesAreConflicts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateBook(ctx, BookForm{Title: "A", Author: "B", ISBN: "123"})
	require.NoError(t, err)
	_, err = svc.CreateBook(ctx, BookForm{Title: "C", Author: "D", ISBN: "123"})
	assert.Equal(t, CodeConflict, Code(err))
	assert.EqualError(t, err, "isbn already exists")

	_, err = svc.CreateMember(ctx, MemberForm{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = svc.CreateMember(ctx, MemberForm{Name: "B", Email: "a@example.com"})
	assert.Equal(t, CodeConflict, Code(err))
	assert.EqualError(t, err, "email already exists")
}

func TestService_MemberValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateMember(ctx, MemberForm{})
	assert.Equal(t, CodeValidation, Code(err))

	_, err = svc.CreateMember(ctx, MemberForm{Name: "Alice", Email: "not-an-email"})
	assert.Equal(t, CodeValidation, Code(err))
	assert.Contains(t, err.Error(), "email must be a valid email address")

	_, err = svc.CreateMember(ctx, MemberForm{Name: "Alice", Phone: strings.Repeat("5", 21)})
	assert.Equal(t, CodeValidation, Code(err))

	id, err := svc.CreateMember(ctx, MemberForm{Name: "Alice", Email: "alice@example.com", Phone: "555"})
	require.NoError(t, err)
	assert.Positive(t, id)
}

func TestService_UpdateBookKeepsStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	bookID, err := svc.CreateBook(ctx, BookForm{Title: "Dune", Author: "Herbert"})
	require.NoError(t, err)
	memberID, err := svc.CreateMember(ctx, MemberForm{Name: "Alice"})
	require.NoError(t, err)
	_, err = svc.CreateLoan(ctx, LoanForm{BookID: itoa(bookID), MemberID: itoa(memberID), DueDate: "2025-01-01"})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateBook(ctx, bookID, BookForm{Title: "Dune (2nd ed.)", Author: "Herbert"}))

	book, err := svc.GetBook(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, "Dune (2nd ed.)", book.Title)
	assert.Equal(t, models.BookBorrowed, book.Status)

	err = svc.UpdateBook(ctx, 999, BookForm{Title: "x", Author: "y"})
	assert.Equal(t, CodeNotFound, Code(err))
}

// TestService_LoanScenario walks through borrowing and returning one book
func TestService_LoanScenario(t *testing.T) {
	svc, events, notifier := newTestService(t)
	ctx := context.Background()

	bookID, err := svc.CreateBook(ctx, BookForm{Title: "Dune", Author: "Herbert"})
	require.NoError(t, err)
	aliceID, err := svc.CreateMember(ctx, MemberForm{Name: "Alice"})
	require.NoError(t, err)
	bobID, err := svc.CreateMember(ctx, MemberForm{Name: "Bob"})
	require.NoError(t, err)

	loanID, err := svc.CreateLoan(ctx, LoanForm{BookID: itoa(bookID), MemberID: itoa(aliceID), DueDate: "2025-01-01"})
	require.NoError(t, err)

	loan, err := svc.GetLoan(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanBorrowed, loan.Status)
	assert.Equal(t, fixedNow, loan.LoanDate)
	assert.Equal(t, "2025-01-01", loan.DueDate.Format(models.DateLayout))
	assert.Equal(t, "Dune", loan.BookTitle)
	assert.Equal(t, "Alice", loan.MemberName)

	choices, err := svc.LoanChoices(ctx)
	require.NoError(t, err)
	assert.Empty(t, choices.Books)
	require.Len(t, choices.Members, 2)
	assert.Equal(t, "Alice", choices.Members[0].Name)

	_, err = svc.CreateLoan(ctx, LoanForm{BookID: itoa(bookID), MemberID: itoa(bobID), DueDate: "2025-01-01"})
	assert.Equal(t, CodeConflict, Code(err))
	assert.EqualError(t, err, "book not available")

	err = svc.DeleteMember(ctx, aliceID)
	assert.Equal(t, CodeConflict, Code(err))
	assert.EqualError(t, err, "member has active loans")

	detail, err := svc.MemberDetail(ctx, aliceID)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.ActiveLoans)
	require.Len(t, detail.Loans, 1)

	require.NoError(t, svc.ReturnLoan(ctx, loanID))

	err = svc.ReturnLoan(ctx, loanID)
	assert.Equal(t, CodeConflict, Code(err))
	assert.EqualError(t, err, "loan already returned")

	loan, err = svc.GetLoan(ctx, loanID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanReturned, loan.Status)
	require.NotNil(t, loan.ReturnDate)
	assert.Equal(t, fixedNow, *loan.ReturnDate)

	require.NoError(t, svc.DeleteMember(ctx, aliceID))

	assert.Equal(t, []string{
		"Book borrowed: Dune by Alice, due 2025-01-01",
		"Book returned: Dune by Alice",
	}, notifier.messages)

	recorded, err := events.LastEvents(ctx, 100)
	require.NoError(t, err)
	var actions []string
	for _, e := range recorded {
		if e.Entity == models.EntityLoan {
			actions = append(actions, e.Action)
		}
	}
	assert.ElementsMatch(t, []string{models.ActionBorrowed, models.ActionReturned}, actions)
}

func TestService_CreateLoanValidation(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	bookID, err := svc.CreateBook(ctx, BookForm{Title: "Dune", Author: "Herbert"})
	require.NoError(t, err)

	tests := []struct {
		name string
		form LoanForm
		code ErrCode
	}{
		{"missing due date", LoanForm{BookID: itoa(bookID), MemberID: "1"}, CodeValidation},
		{"bad due date", LoanForm{BookID: itoa(bookID), MemberID: "1", DueDate: "01/01/2025"}, CodeValidation},
		{"impossible date", LoanForm{BookID: itoa(bookID), MemberID: "1", DueDate: "2025-02-30"}, CodeValidation},
		{"non numeric book", LoanForm{BookID: "abc", MemberID: "1", DueDate: "2025-01-01"}, CodeValidation},
		{"zero member", LoanForm{BookID: itoa(bookID), MemberID: "0", DueDate: "2025-01-01"}, CodeValidation},
		{"unknown member", LoanForm{BookID: itoa(bookID), MemberID: "42", DueDate: "2025-01-01"}, CodeNotFound},
		{"unknown book", LoanForm{BookID: "42", MemberID: "1", DueDate: "2025-01-01"}, CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateLoan(ctx, tt.form)
			require.Error(t, err)
			assert.Equal(t, tt.code, Code(err))
		})
	}

	loans, err := svc.ListLoans(ctx)
	require.NoError(t, err)
	assert.Empty(t, loans)
	assert.Empty(t, notifier.messages)

	book, err := svc.GetBook(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, models.BookAvailable, book.Status)
}

func TestService_SideChannelFailuresAreIgnored(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("telegram down")}
	svc := NewService(stubs.NewMockDB(), failingEventLog{stubs.NewMockEventLog()}, notifier, zap.NewNop())
	ctx := context.Background()

	bookID, err := svc.CreateBook(ctx, BookForm{Title: "Dune", Author: "Herbert"})
	require.NoError(t, err)
	memberID, err := svc.CreateMember(ctx, MemberForm{Name: "Alice"})
	require.NoError(t, err)

	loanID, err := svc.CreateLoan(ctx, LoanForm{BookID: itoa(bookID), MemberID: itoa(memberID), DueDate: "2025-01-01"})
	require.NoError(t, err)
	require.NoError(t, svc.ReturnLoan(ctx, loanID))
	assert.Len(t, notifier.messages, 2)
}

func TestService_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetBook(ctx, 1)
	assert.Equal(t, CodeNotFound, Code(err))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = svc.MemberDetail(ctx, 1)
	assert.Equal(t, CodeNotFound, Code(err))

	err = svc.DeleteBook(ctx, 1)
	assert.Equal(t, CodeNotFound, Code(err))

	err = svc.ReturnLoan(ctx, 1)
	assert.Equal(t, CodeNotFound, Code(err))

	assert.Equal(t, ErrCode(""), Code(errors.New("boom")))
}

func TestService_RecentActivityLimit(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < defaultActivityLimit+5; i++ {
		_, err := svc.CreateMember(ctx, MemberForm{Name: "Member"})
		require.NoError(t, err)
	}

	events, err := svc.RecentActivity(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, defaultActivityLimit)

	events, err = svc.RecentActivity(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}
