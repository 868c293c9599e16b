package models

import "time"

// BookStatus reflects whether a book is currently on loan
type BookStatus string

const (
	BookAvailable BookStatus = "AVAILABLE"
	BookBorrowed  BookStatus = "BORROWED"
)

// LoanStatus is the state of a single loan. BORROWED -> RETURNED is the only transition.
type LoanStatus string

const (
	LoanBorrowed LoanStatus = "BORROWED"
	LoanReturned LoanStatus = "RETURNED"
)

// DateLayout is the format used for due dates in forms and views
const DateLayout = "2006-01-02"

// FormatDay renders a calendar day stored as UTC midnight, such as a due date
func FormatDay(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Book represents a book in the library
type Book struct {
	ID            int64      `db:"book_id" json:"book_id"`
	Title         string     `db:"title" json:"title"`
	Author        string     `db:"author" json:"author"`
	ISBN          *string    `db:"isbn" json:"isbn,omitempty"`
	PublishedYear *int       `db:"published_year" json:"published_year,omitempty"`
	Category      *string    `db:"category" json:"category,omitempty"`
	Status        BookStatus `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// BookInput holds the user-editable book fields. Status is not among them:
// it only changes through the loan ledger.
type BookInput struct {
	Title         string
	Author        string
	ISBN          *string
	PublishedYear *int
	Category      *string
}

// Member represents a registered library member
type Member struct {
	ID          int64     `db:"member_id" json:"member_id"`
	Name        string    `db:"name" json:"name"`
	Email       *string   `db:"email" json:"email,omitempty"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	JoinDate    time.Time `db:"join_date" json:"join_date"`
	ActiveLoans int       `db:"active_loans" json:"active_loans"`
}

// MemberInput holds the user-editable member fields
type MemberInput struct {
	Name  string
	Email *string
	Phone *string
}

// Loan is a single row of the loan ledger
type Loan struct {
	ID         int64      `db:"loan_id" json:"loan_id"`
	BookID     *int64     `db:"book_id" json:"book_id"`
	MemberID   *int64     `db:"member_id" json:"member_id"`
	LoanDate   time.Time  `db:"loan_date" json:"loan_date"`
	DueDate    time.Time  `db:"due_date" json:"due_date"`
	ReturnDate *time.Time `db:"return_date" json:"return_date,omitempty"`
	Status     LoanStatus `db:"status" json:"status"`
}

// LoanDetail is a loan joined with the display data of its book and member.
// BookID and MemberID are nil once the referenced row has been deleted.
type LoanDetail struct {
	Loan
	BookTitle  string `db:"book_title" json:"book_title"`
	MemberName string `db:"member_name" json:"member_name"`
}

// Overdue reports whether the loan is still out after its due date. The due
// date is a calendar day held as UTC midnight whatever zone the driver scanned
// it into; now counts by its own local calendar day.
func (l LoanDetail) Overdue(now time.Time) bool {
	if l.Status != LoanBorrowed {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	due := l.DueDate.UTC()
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	return dueDay.Before(today)
}

// MemberDetail is a member together with their loan history, newest first
type MemberDetail struct {
	Member
	Loans []LoanDetail `json:"loans"`
}

// LoanChoices holds the option lists for the loan creation form
type LoanChoices struct {
	Books   []Book   `json:"books"`
	Members []Member `json:"members"`
}

// Placeholders shown for ledger rows whose book or member was deleted
const (
	DeletedBookTitle  = "(deleted book)"
	DeletedMemberName = "(deleted member)"
)

// LedgerEvent is an entry of the append-only activity log
type LedgerEvent struct {
	OccurredAt time.Time `json:"occurred_at"`
	Entity     string    `json:"entity"`
	EntityID   int64     `json:"entity_id"`
	Action     string    `json:"action"`
	Detail     string    `json:"detail"`
}

// Ledger event entities and actions
const (
	EntityBook   = "book"
	EntityMember = "member"
	EntityLoan   = "loan"

	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionBorrowed = "borrowed"
	ActionReturned = "returned"
)
