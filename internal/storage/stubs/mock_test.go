package stubs

import (
	"context"
	"errors"
	"testing"
	"time"

	"library/internal/models"
	"library/internal/storage"
)

var due = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestMockDB_Initialize(t *testing.T) {
	ctx := context.Background()

	empty := NewMockDB()
	if err := empty.Initialize(ctx); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	books, _ := empty.ListBooks(ctx)
	if len(books) != 0 {
		t.Errorf("Expected no books, got %d", len(books))
	}

	seeded := NewSeededMockDB()
	if err := seeded.Initialize(ctx); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	books, _ = seeded.ListBooks(ctx)
	if len(books) != 3 {
		t.Errorf("Expected 3 demo books, got %d", len(books))
	}
	members, _ := seeded.ListMembers(ctx)
	if len(members) != 2 {
		t.Errorf("Expected 2 demo members, got %d", len(members))
	}
}

func TestMockDB_CreateBook(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	id, err := db.CreateBook(ctx, models.BookInput{Title: "Dune", Author: "Frank Herbert"})
	if err != nil {
		t.Fatalf("Failed to create book: %v", err)
	}
	if id != 1 {
		t.Errorf("Expected first book id 1, got %d", id)
	}

	book, err := db.GetBook(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get book: %v", err)
	}
	if book.Status != models.BookAvailable {
		t.Errorf("Expected new book to be AVAILABLE, got %s", book.Status)
	}

	isbn := "123"
	if _, err := db.CreateBook(ctx, models.BookInput{Title: "A", Author: "B", ISBN: &isbn}); err != nil {
		t.Fatalf("Failed to create book: %v", err)
	}
	if _, err := db.CreateBook(ctx, models.BookInput{Title: "C", Author: "D", ISBN: &isbn}); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}
}

func TestMockDB_ListAvailableBooks(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	zorba, _ := db.CreateBook(ctx, models.BookInput{Title: "Zorba", Author: "Kazantzakis"})
	_, _ = db.CreateBook(ctx, models.BookInput{Title: "Middlemarch", Author: "Eliot"})
	_, _ = db.CreateBook(ctx, models.BookInput{Title: "Anna Karenina", Author: "Tolstoy"})
	alice, _ := db.CreateMember(ctx, models.MemberInput{Name: "Alice"})

	if _, err := db.CreateLoan(ctx, zorba, alice, time.Now(), due); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	books, err := db.ListAvailableBooks(ctx)
	if err != nil {
		t.Fatalf("Failed to list available books: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("Expected 2 available books, got %d", len(books))
	}
	if books[0].Title != "Anna Karenina" || books[1].Title != "Middlemarch" {
		t.Errorf("Expected books sorted by title, got %s, %s", books[0].Title, books[1].Title)
	}
}

func TestMockDB_LoanLifecycle(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	bookID, _ := db.CreateBook(ctx, models.BookInput{Title: "Dune", Author: "Herbert"})
	alice, _ := db.CreateMember(ctx, models.MemberInput{Name: "Alice"})
	bob, _ := db.CreateMember(ctx, models.MemberInput{Name: "Bob"})

	loanID, err := db.CreateLoan(ctx, bookID, alice, time.Now(), due)
	if err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	book, _ := db.GetBook(ctx, bookID)
	if book.Status != models.BookBorrowed {
		t.Errorf("Expected book to be BORROWED, got %s", book.Status)
	}

	if _, err := db.CreateLoan(ctx, bookID, bob, time.Now(), due); !errors.Is(err, storage.ErrBookUnavailable) {
		t.Errorf("Expected ErrBookUnavailable, got %v", err)
	}

	loan, err := db.GetLoan(ctx, loanID)
	if err != nil {
		t.Fatalf("Failed to get loan: %v", err)
	}
	if loan.BookTitle != "Dune" || loan.MemberName != "Alice" {
		t.Errorf("Unexpected loan detail: %+v", loan)
	}

	returnedAt := time.Now()
	if err := db.ReturnLoan(ctx, loanID, returnedAt); err != nil {
		t.Fatalf("Failed to return loan: %v", err)
	}
	if err := db.ReturnLoan(ctx, loanID, returnedAt.Add(time.Hour)); !errors.Is(err, storage.ErrAlreadyReturned) {
		t.Errorf("Expected ErrAlreadyReturned, got %v", err)
	}

	loan, _ = db.GetLoan(ctx, loanID)
	if loan.Status != models.LoanReturned || loan.ReturnDate == nil || !loan.ReturnDate.Equal(returnedAt) {
		t.Errorf("Expected loan returned at %v, got %+v", returnedAt, loan)
	}

	book, _ = db.GetBook(ctx, bookID)
	if book.Status != models.BookAvailable {
		t.Errorf("Expected book to be AVAILABLE after return, got %s", book.Status)
	}

	if _, err := db.CreateLoan(ctx, bookID, bob, time.Now(), due); err != nil {
		t.Errorf("Expected to borrow the returned book, got %v", err)
	}
}

func TestMockDB_CreateLoanMissingMember(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	bookID, _ := db.CreateBook(ctx, models.BookInput{Title: "Dune", Author: "Herbert"})

	_, err := db.CreateLoan(ctx, bookID, 42, time.Now(), due)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	loans, _ := db.ListLoans(ctx)
	if len(loans) != 0 {
		t.Errorf("Expected no loans, got %d", len(loans))
	}
	book, _ := db.GetBook(ctx, bookID)
	if book.Status != models.BookAvailable {
		t.Errorf("Expected book to stay AVAILABLE, got %s", book.Status)
	}
}

func TestMockDB_DeleteMember(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	bookID, _ := db.CreateBook(ctx, models.BookInput{Title: "Dune", Author: "Herbert"})
	alice, _ := db.CreateMember(ctx, models.MemberInput{Name: "Alice"})
	loanID, _ := db.CreateLoan(ctx, bookID, alice, time.Now(), due)

	if err := db.DeleteMember(ctx, alice); !errors.Is(err, storage.ErrActiveLoans) {
		t.Fatalf("Expected ErrActiveLoans, got %v", err)
	}
	if _, err := db.GetMember(ctx, alice); err != nil {
		t.Fatalf("Expected member to remain, got %v", err)
	}

	_ = db.ReturnLoan(ctx, loanID, time.Now())
	if err := db.DeleteMember(ctx, alice); err != nil {
		t.Fatalf("Failed to delete member: %v", err)
	}

	loan, _ := db.GetLoan(ctx, loanID)
	if loan.MemberID != nil || loan.MemberName != models.DeletedMemberName {
		t.Errorf("Expected deleted member placeholder, got %+v", loan)
	}
}

func TestMockDB_DeleteBook(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	bookID, _ := db.CreateBook(ctx, models.BookInput{Title: "Dune", Author: "Herbert"})
	alice, _ := db.CreateMember(ctx, models.MemberInput{Name: "Alice"})
	loanID, _ := db.CreateLoan(ctx, bookID, alice, time.Now(), due)

	if err := db.DeleteBook(ctx, bookID); !errors.Is(err, storage.ErrActiveLoans) {
		t.Fatalf("Expected ErrActiveLoans, got %v", err)
	}

	_ = db.ReturnLoan(ctx, loanID, time.Now())
	if err := db.DeleteBook(ctx, bookID); err != nil {
		t.Fatalf("Failed to delete book: %v", err)
	}
	if err := db.DeleteBook(ctx, bookID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	loan, _ := db.GetLoan(ctx, loanID)
	if loan.BookTitle != models.DeletedBookTitle {
		t.Errorf("Expected deleted book placeholder, got %q", loan.BookTitle)
	}
}

func TestMockDB_ListMemberLoans(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	b1, _ := db.CreateBook(ctx, models.BookInput{Title: "One", Author: "A"})
	b2, _ := db.CreateBook(ctx, models.BookInput{Title: "Two", Author: "A"})
	alice, _ := db.CreateMember(ctx, models.MemberInput{Name: "Alice"})
	bob, _ := db.CreateMember(ctx, models.MemberInput{Name: "Bob"})

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	first, _ := db.CreateLoan(ctx, b1, alice, base, due)
	second, _ := db.CreateLoan(ctx, b2, alice, base.Add(time.Hour), due)

	loans, err := db.ListMemberLoans(ctx, alice)
	if err != nil {
		t.Fatalf("Failed to list member loans: %v", err)
	}
	if len(loans) != 2 || loans[0].ID != second || loans[1].ID != first {
		t.Errorf("Expected loans newest first, got %+v", loans)
	}

	member, _ := db.GetMember(ctx, alice)
	if member.ActiveLoans != 2 {
		t.Errorf("Expected 2 active loans, got %d", member.ActiveLoans)
	}

	loans, _ = db.ListMemberLoans(ctx, bob)
	if len(loans) != 0 {
		t.Errorf("Expected no loans for Bob, got %d", len(loans))
	}
}

func TestMockDB_ReturnedRowsAreCopies(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	isbn := "978-0441013593"
	bookID, _ := db.CreateBook(ctx, models.BookInput{Title: "Dune", Author: "Herbert", ISBN: &isbn})
	isbn = "changed by caller"

	book, err := db.GetBook(ctx, bookID)
	if err != nil {
		t.Fatalf("Failed to get book: %v", err)
	}
	if *book.ISBN != "978-0441013593" {
		t.Fatalf("Expected stored isbn to be unaffected by the input, got %q", *book.ISBN)
	}
	*book.ISBN = "overwritten"

	books, _ := db.ListBooks(ctx)
	*books[0].ISBN = "overwritten again"

	book, _ = db.GetBook(ctx, bookID)
	if *book.ISBN != "978-0441013593" {
		t.Errorf("Expected stored isbn to be unaffected by writes through results, got %q", *book.ISBN)
	}

	email := "alice@example.com"
	memberID, _ := db.CreateMember(ctx, models.MemberInput{Name: "Alice", Email: &email})
	member, _ := db.GetMember(ctx, memberID)
	*member.Email = "mallory@example.com"
	members, _ := db.ListMembers(ctx)
	*members[0].Email = "mallory@example.com"

	member, _ = db.GetMember(ctx, memberID)
	if *member.Email != "alice@example.com" {
		t.Errorf("Expected stored email to be unaffected, got %q", *member.Email)
	}
	if _, err := db.CreateMember(ctx, models.MemberInput{Name: "Mallory", Email: strPtr("mallory@example.com")}); err != nil {
		t.Errorf("Expected the overwritten address to still be free, got %v", err)
	}

	loanID, _ := db.CreateLoan(ctx, bookID, memberID, time.Now(), due)
	loan, _ := db.GetLoan(ctx, loanID)
	*loan.BookID = 999

	loan, _ = db.GetLoan(ctx, loanID)
	if *loan.BookID != bookID || loan.BookTitle != "Dune" {
		t.Errorf("Expected loan to keep book %d, got %+v", bookID, loan)
	}
}

func strPtr(s string) *string {
	return &s
}

func TestMockEventLog_LastEvents(t *testing.T) {
	log := NewMockEventLog()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := log.RecordEvent(ctx, models.LedgerEvent{
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
			Entity:     models.EntityBook,
			EntityID:   int64(i + 1),
			Action:     models.ActionCreated,
		})
		if err != nil {
			t.Fatalf("Failed to record event: %v", err)
		}
	}

	events, err := log.LastEvents(ctx, 3)
	if err != nil {
		t.Fatalf("Failed to get last events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	if events[0].EntityID != 5 || events[2].EntityID != 3 {
		t.Errorf("Expected newest first, got %+v", events)
	}

	events, _ = log.LastEvents(ctx, 100)
	if len(events) != 5 {
		t.Errorf("Expected all 5 events, got %d", len(events))
	}
}
