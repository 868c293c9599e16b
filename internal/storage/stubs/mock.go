package stubs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"library/internal/models"
	"library/internal/storage"
)

// MockDB is an in-memory implementation of the Storage interface for testing
// and for running the service without a database
type MockDB struct {
	mu      sync.RWMutex
	seed    bool
	books   map[int64]models.Book
	members map[int64]models.Member
	loans   map[int64]models.Loan

	nextBookID   int64
	nextMemberID int64
	nextLoanID   int64
}

// NewMockDB creates a new empty mock database
func NewMockDB() *MockDB {
	return &MockDB{
		books:   make(map[int64]models.Book),
		members: make(map[int64]models.Member),
		loans:   make(map[int64]models.Loan),
	}
}

// NewSeededMockDB creates a mock database that Initialize fills with demo data
func NewSeededMockDB() *MockDB {
	m := NewMockDB()
	m.seed = true
	return m
}

// Initialize adds a few demo books and members when seeding is enabled
func (m *MockDB) Initialize(ctx context.Context) error {
	if !m.seed {
		return nil
	}

	books := []models.BookInput{
		{Title: "Dune", Author: "Frank Herbert"},
		{Title: "Emma", Author: "Jane Austen"},
		{Title: "Middlemarch", Author: "George Eliot"},
	}
	for _, b := range books {
		if _, err := m.CreateBook(ctx, b); err != nil {
			return err
		}
	}

	for _, name := range []string{"Alice", "Bob"} {
		if _, err := m.CreateMember(ctx, models.MemberInput{Name: name}); err != nil {
			return err
		}
	}
	return nil
}

// CreateBook stores a new AVAILABLE book
func (m *MockDB) CreateBook(ctx context.Context, in models.BookInput) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isbnTaken(in.ISBN, 0) {
		return 0, fmt.Errorf("failed to create book: %w", storage.ErrDuplicate)
	}

	m.nextBookID++
	m.books[m.nextBookID] = models.Book{
		ID:            m.nextBookID,
		Title:         in.Title,
		Author:        in.Author,
		ISBN:          clonePtr(in.ISBN),
		PublishedYear: clonePtr(in.PublishedYear),
		Category:      clonePtr(in.Category),
		Status:        models.BookAvailable,
		CreatedAt:     time.Now().UTC(),
	}
	return m.nextBookID, nil
}

// GetBook returns a single book
func (m *MockDB) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	book, ok := m.books[id]
	if !ok {
		return nil, storage.NotFound(models.EntityBook, id)
	}
	book = cloneBook(book)
	return &book, nil
}

// ListBooks returns all books ordered by id
func (m *MockDB) ListBooks(ctx context.Context) ([]models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	books := make([]models.Book, 0, len(m.books))
	for _, book := range m.books {
		books = append(books, cloneBook(book))
	}
	sort.Slice(books, func(i, j int) bool {
		return books[i].ID < books[j].ID
	})
	return books, nil
}

// ListAvailableBooks returns AVAILABLE books ordered by title
func (m *MockDB) ListAvailableBooks(ctx context.Context) ([]models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	books := []models.Book{}
	for _, book := range m.books {
		if book.Status == models.BookAvailable {
			books = append(books, cloneBook(book))
		}
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].Title != books[j].Title {
			return books[i].Title < books[j].Title
		}
		return books[i].ID < books[j].ID
	})
	return books, nil
}

// UpdateBook overwrites the editable fields of a book
func (m *MockDB) UpdateBook(ctx context.Context, id int64, in models.BookInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	book, ok := m.books[id]
	if !ok {
		return storage.NotFound(models.EntityBook, id)
	}
	if m.isbnTaken(in.ISBN, id) {
		return fmt.Errorf("failed to update book: %w", storage.ErrDuplicate)
	}

	book.Title = in.Title
	book.Author = in.Author
	book.ISBN = clonePtr(in.ISBN)
	book.PublishedYear = clonePtr(in.PublishedYear)
	book.Category = clonePtr(in.Category)
	m.books[id] = book
	return nil
}

// DeleteBook removes a book that is not on loan
func (m *MockDB) DeleteBook(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.books[id]; !ok {
		return storage.NotFound(models.EntityBook, id)
	}
	if m.activeLoans(func(l models.Loan) bool { return l.BookID != nil && *l.BookID == id }) > 0 {
		return fmt.Errorf("book %d is on loan: %w", id, storage.ErrActiveLoans)
	}

	delete(m.books, id)
	for loanID, loan := range m.loans {
		if loan.BookID != nil && *loan.BookID == id {
			loan.BookID = nil
			m.loans[loanID] = loan
		}
	}
	return nil
}

// CreateMember stores a new member
func (m *MockDB) CreateMember(ctx context.Context, in models.MemberInput) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.emailTaken(in.Email, 0) {
		return 0, fmt.Errorf("failed to create member: %w", storage.ErrDuplicate)
	}

	m.nextMemberID++
	m.members[m.nextMemberID] = models.Member{
		ID:       m.nextMemberID,
		Name:     in.Name,
		Email:    clonePtr(in.Email),
		Phone:    clonePtr(in.Phone),
		JoinDate: time.Now().UTC(),
	}
	return m.nextMemberID, nil
}

// GetMember returns a member with their open loan count
func (m *MockDB) GetMember(ctx context.Context, id int64) (*models.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	member, ok := m.members[id]
	if !ok {
		return nil, storage.NotFound(models.EntityMember, id)
	}
	member = cloneMember(member)
	member.ActiveLoans = m.memberActiveLoans(id)
	return &member, nil
}

// ListMembers returns all members ordered by id
func (m *MockDB) ListMembers(ctx context.Context) ([]models.Member, error) {
	members := m.listMembers()
	sort.Slice(members, func(i, j int) bool {
		return members[i].ID < members[j].ID
	})
	return members, nil
}

// ListMembersByName returns all members ordered by name
func (m *MockDB) ListMembersByName(ctx context.Context) ([]models.Member, error) {
	members := m.listMembers()
	sort.Slice(members, func(i, j int) bool {
		if members[i].Name != members[j].Name {
			return members[i].Name < members[j].Name
		}
		return members[i].ID < members[j].ID
	})
	return members, nil
}

func (m *MockDB) listMembers() []models.Member {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := make([]models.Member, 0, len(m.members))
	for id, member := range m.members {
		member = cloneMember(member)
		member.ActiveLoans = m.memberActiveLoans(id)
		members = append(members, member)
	}
	return members
}

// UpdateMember overwrites name, email and phone
func (m *MockDB) UpdateMember(ctx context.Context, id int64, in models.MemberInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	member, ok := m.members[id]
	if !ok {
		return storage.NotFound(models.EntityMember, id)
	}
	if m.emailTaken(in.Email, id) {
		return fmt.Errorf("failed to update member: %w", storage.ErrDuplicate)
	}

	member.Name = in.Name
	member.Email = clonePtr(in.Email)
	member.Phone = clonePtr(in.Phone)
	m.members[id] = member
	return nil
}

// DeleteMember removes a member without BORROWED loans
func (m *MockDB) DeleteMember(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.members[id]; !ok {
		return storage.NotFound(models.EntityMember, id)
	}
	if active := m.memberActiveLoans(id); active > 0 {
		return fmt.Errorf("member %d has %d active loans: %w", id, active, storage.ErrActiveLoans)
	}

	delete(m.members, id)
	for loanID, loan := range m.loans {
		if loan.MemberID != nil && *loan.MemberID == id {
			loan.MemberID = nil
			m.loans[loanID] = loan
		}
	}
	return nil
}

// CreateLoan lends an AVAILABLE book to an existing member
func (m *MockDB) CreateLoan(ctx context.Context, bookID, memberID int64, loanDate, dueDate time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	book, ok := m.books[bookID]
	if !ok {
		return 0, storage.NotFound(models.EntityBook, bookID)
	}
	if book.Status != models.BookAvailable {
		return 0, fmt.Errorf("book %d: %w", bookID, storage.ErrBookUnavailable)
	}
	if _, ok := m.members[memberID]; !ok {
		return 0, storage.NotFound(models.EntityMember, memberID)
	}

	m.nextLoanID++
	m.loans[m.nextLoanID] = models.Loan{
		ID:       m.nextLoanID,
		BookID:   &bookID,
		MemberID: &memberID,
		LoanDate: loanDate,
		DueDate:  dueDate,
		Status:   models.LoanBorrowed,
	}
	book.Status = models.BookBorrowed
	m.books[bookID] = book
	return m.nextLoanID, nil
}

// ReturnLoan closes a BORROWED loan and frees its book
func (m *MockDB) ReturnLoan(ctx context.Context, loanID int64, returnDate time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	loan, ok := m.loans[loanID]
	if !ok {
		return storage.NotFound(models.EntityLoan, loanID)
	}
	if loan.Status != models.LoanBorrowed {
		return fmt.Errorf("loan %d: %w", loanID, storage.ErrAlreadyReturned)
	}

	loan.Status = models.LoanReturned
	loan.ReturnDate = &returnDate
	m.loans[loanID] = loan

	if loan.BookID != nil {
		if book, ok := m.books[*loan.BookID]; ok {
			book.Status = models.BookAvailable
			m.books[book.ID] = book
		}
	}
	return nil
}

// GetLoan returns one loan with its display data
func (m *MockDB) GetLoan(ctx context.Context, id int64) (*models.LoanDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loan, ok := m.loans[id]
	if !ok {
		return nil, storage.NotFound(models.EntityLoan, id)
	}
	detail := m.detail(loan)
	return &detail, nil
}

// ListLoans returns every loan, newest first
func (m *MockDB) ListLoans(ctx context.Context) ([]models.LoanDetail, error) {
	return m.listLoans(func(models.Loan) bool { return true }), nil
}

// ListMemberLoans returns the loans of one member, newest first
func (m *MockDB) ListMemberLoans(ctx context.Context, memberID int64) ([]models.LoanDetail, error) {
	return m.listLoans(func(l models.Loan) bool {
		return l.MemberID != nil && *l.MemberID == memberID
	}), nil
}

func (m *MockDB) listLoans(keep func(models.Loan) bool) []models.LoanDetail {
	m.mu.RLock()
	defer m.mu.RUnlock()

	loans := []models.LoanDetail{}
	for _, loan := range m.loans {
		if keep(loan) {
			loans = append(loans, m.detail(loan))
		}
	}
	sort.Slice(loans, func(i, j int) bool {
		if !loans[i].LoanDate.Equal(loans[j].LoanDate) {
			return loans[i].LoanDate.After(loans[j].LoanDate)
		}
		return loans[i].ID > loans[j].ID
	})
	return loans
}

// detail joins a loan with its book title and member name. Callers hold the lock.
func (m *MockDB) detail(loan models.Loan) models.LoanDetail {
	d := models.LoanDetail{
		Loan:       cloneLoan(loan),
		BookTitle:  models.DeletedBookTitle,
		MemberName: models.DeletedMemberName,
	}
	if loan.BookID != nil {
		if book, ok := m.books[*loan.BookID]; ok {
			d.BookTitle = book.Title
		}
	}
	if loan.MemberID != nil {
		if member, ok := m.members[*loan.MemberID]; ok {
			d.MemberName = member.Name
		}
	}
	return d
}

func (m *MockDB) activeLoans(match func(models.Loan) bool) int {
	n := 0
	for _, loan := range m.loans {
		if loan.Status == models.LoanBorrowed && match(loan) {
			n++
		}
	}
	return n
}

func (m *MockDB) memberActiveLoans(id int64) int {
	return m.activeLoans(func(l models.Loan) bool { return l.MemberID != nil && *l.MemberID == id })
}

func (m *MockDB) isbnTaken(isbn *string, except int64) bool {
	if isbn == nil {
		return false
	}
	for id, book := range m.books {
		if id != except && book.ISBN != nil && *book.ISBN == *isbn {
			return true
		}
	}
	return false
}

func (m *MockDB) emailTaken(email *string, except int64) bool {
	if email == nil {
		return false
	}
	for id, member := range m.members {
		if id != except && member.Email != nil && *member.Email == *email {
			return true
		}
	}
	return false
}

// Close does nothing for mock DB
func (m *MockDB) Close() error {
	return nil
}

var _ storage.Storage = (*MockDB)(nil)

// clonePtr copies the value behind p so stored rows never alias caller memory
func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBook(b models.Book) models.Book {
	b.ISBN = clonePtr(b.ISBN)
	b.PublishedYear = clonePtr(b.PublishedYear)
	b.Category = clonePtr(b.Category)
	return b
}

func cloneMember(mb models.Member) models.Member {
	mb.Email = clonePtr(mb.Email)
	mb.Phone = clonePtr(mb.Phone)
	return mb
}

func cloneLoan(l models.Loan) models.Loan {
	l.BookID = clonePtr(l.BookID)
	l.MemberID = clonePtr(l.MemberID)
	l.ReturnDate = clonePtr(l.ReturnDate)
	return l
}
