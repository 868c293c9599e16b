package web

import (
	"fmt"
	"net/http"

	"library/internal/library"
	"library/internal/models"
)

// bookFormPage is the data of the add/edit book page
type bookFormPage struct {
	Action string
	Book   *models.Book
}

func bookForm(r *http.Request) library.BookForm {
	return library.BookForm{
		Title:         r.PostFormValue("title"),
		Author:        r.PostFormValue("author"),
		ISBN:          r.PostFormValue("isbn"),
		PublishedYear: r.PostFormValue("published_year"),
		Category:      r.PostFormValue("category"),
	}
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.svc.ListBooks(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, "books", "Books", books)
}

func (s *Server) handleShowBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	book, err := s.svc.GetBook(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, "book", book.Title, book)
}

func (s *Server) handleNewBook(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "book_form", "Add book", bookFormPage{Action: "/books"})
}

func (s *Server) handleEditBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	book, err := s.svc.GetBook(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, "book_form", "Edit book", bookFormPage{Action: fmt.Sprintf("/books/%d", id), Book: book})
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	id, err := s.svc.CreateBook(r.Context(), bookForm(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.done(w, r, http.StatusCreated, id, "/books")
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if !s.parseForm(w, r) {
		return
	}
	if err := s.svc.UpdateBook(r.Context(), id, bookForm(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	s.done(w, r, http.StatusOK, id, fmt.Sprintf("/books/%d", id))
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := s.svc.DeleteBook(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.done(w, r, http.StatusOK, id, "/books")
}
