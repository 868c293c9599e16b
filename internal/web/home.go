package web

import (
	"net/http"

	"library/internal/models"
)

const recentActivityOnIndex = 10

// indexPage summarizes the library on the home page
type indexPage struct {
	Books       int                  `json:"books"`
	Members     int                  `json:"members"`
	ActiveLoans int                  `json:"active_loans"`
	Activity    []models.LedgerEvent `json:"activity"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	books, err := s.svc.ListBooks(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	members, err := s.svc.ListMembers(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	activity, err := s.svc.RecentActivity(ctx, recentActivityOnIndex)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data := indexPage{Books: len(books), Members: len(members), Activity: activity}
	for _, book := range books {
		if book.Status == models.BookBorrowed {
			data.ActiveLoans++
		}
	}
	s.render(w, r, "index", "Library", data)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	events, err := s.svc.RecentActivity(r.Context(), 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, "activity", "Recent activity", events)
}
