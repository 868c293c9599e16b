package web

import (
	"fmt"
	"net/http"

	"library/internal/library"
)

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.svc.ListLoans(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, "loans", "Loans", loans)
}

func (s *Server) handleShowLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	loan, err := s.svc.GetLoan(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, "loan", fmt.Sprintf("Loan #%d", loan.ID), loan)
}

// handleNewLoan renders the loan form with the available books and all members
func (s *Server) handleNewLoan(w http.ResponseWriter, r *http.Request) {
	choices, err := s.svc.LoanChoices(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, "loan_form", "Lend a book", choices)
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	form := library.LoanForm{
		BookID:   r.PostFormValue("book_id"),
		MemberID: r.PostFormValue("member_id"),
		DueDate:  r.PostFormValue("due_date"),
	}
	id, err := s.svc.CreateLoan(r.Context(), form)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.done(w, r, http.StatusCreated, id, "/loans")
}

func (s *Server) handleReturnLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := s.svc.ReturnLoan(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.done(w, r, http.StatusOK, id, "/loans")
}
