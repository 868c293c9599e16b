package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"library/internal/library"
)

// Server serves the library's HTML views and JSON responses
type Server struct {
	svc    *library.Service
	logger *zap.Logger
	views  *renderer
	router *mux.Router
	now    func() time.Time
}

// NewServer creates a new HTTP server for the library service
func NewServer(svc *library.Service, logger *zap.Logger) (*Server, error) {
	views, err := newRenderer()
	if err != nil {
		return nil, err
	}

	s := &Server{
		svc:    svc,
		logger: logger,
		views:  views,
		router: mux.NewRouter(),
		now:    time.Now,
	}
	s.routes()
	return s, nil
}

// Handler returns the root handler with all routes and middleware
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(withRequestID, s.accessLog, s.recoverPanic)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/activity", s.handleActivity).Methods(http.MethodGet)

	// Books
	r.HandleFunc("/books", s.handleListBooks).Methods(http.MethodGet)
	r.HandleFunc("/books", s.handleCreateBook).Methods(http.MethodPost)
	r.HandleFunc("/books/add", s.handleNewBook).Methods(http.MethodGet)
	r.HandleFunc("/books/{id:[0-9]+}", s.handleShowBook).Methods(http.MethodGet)
	r.HandleFunc("/books/{id:[0-9]+}", s.handleUpdateBook).Methods(http.MethodPost)
	r.HandleFunc("/books/{id:[0-9]+}/edit", s.handleEditBook).Methods(http.MethodGet)
	r.HandleFunc("/books/{id:[0-9]+}/delete", s.handleDeleteBook).Methods(http.MethodPost)

	// Members
	r.HandleFunc("/members", s.handleListMembers).Methods(http.MethodGet)
	r.HandleFunc("/members", s.handleCreateMember).Methods(http.MethodPost)
	r.HandleFunc("/members/add", s.handleNewMember).Methods(http.MethodGet)
	r.HandleFunc("/members/{id:[0-9]+}", s.handleShowMember).Methods(http.MethodGet)
	r.HandleFunc("/members/{id:[0-9]+}", s.handleUpdateMember).Methods(http.MethodPost)
	r.HandleFunc("/members/{id:[0-9]+}/edit", s.handleEditMember).Methods(http.MethodGet)
	r.HandleFunc("/members/{id:[0-9]+}/delete", s.handleDeleteMember).Methods(http.MethodPost)

	// Loans
	r.HandleFunc("/loans", s.handleListLoans).Methods(http.MethodGet)
	r.HandleFunc("/loans", s.handleCreateLoan).Methods(http.MethodPost)
	r.HandleFunc("/loans/create", s.handleNewLoan).Methods(http.MethodGet)
	r.HandleFunc("/loans/{id:[0-9]+}", s.handleShowLoan).Methods(http.MethodGet)
	r.HandleFunc("/loans/{id:[0-9]+}/return", s.handleReturnLoan).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
}

// pathID parses the numeric {id} route variable. The route pattern only
// admits digits, so the only failure left is overflow.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

// fail writes the error response matching the error's code
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch library.Code(err) {
	case library.CodeNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	case library.CodeConflict, library.CodeValidation:
		s.logger.Debug("Request rejected",
			zap.String("path", r.URL.Path),
			zap.String("reason", err.Error()),
			zap.String("request_id", requestID(r.Context())),
		)
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("Request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r.Context())),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// render writes a GET response as JSON or as the named HTML page
func (s *Server) render(w http.ResponseWriter, r *http.Request, name, title string, data interface{}) {
	var err error
	if wantsJSON(r) {
		err = writeJSON(w, http.StatusOK, data)
	} else {
		err = s.views.html(w, http.StatusOK, name, page{Title: title, Now: s.now(), Data: data})
	}
	if err != nil {
		s.logger.Error("Failed to write response",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r.Context())),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// done answers a successful POST: 303 to location for browsers, or a JSON
// body with the affected id for API clients
func (s *Server) done(w http.ResponseWriter, r *http.Request, status int, id int64, location string) {
	if !wantsJSON(r) {
		http.Redirect(w, r, location, http.StatusSeeOther)
		return
	}
	if err := writeJSON(w, status, map[string]int64{"id": id}); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

// parseForm reads the urlencoded body into values
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, fmt.Sprintf("invalid form: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}
