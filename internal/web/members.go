package web

import (
	"fmt"
	"net/http"

	"library/internal/library"
	"library/internal/models"
)

// memberFormPage is the data of the add/edit member page
type memberFormPage struct {
	Action string
	Member *models.Member
}

func memberForm(r *http.Request) library.MemberForm {
	return library.MemberForm{
		Name:  r.PostFormValue("name"),
		Email: r.PostFormValue("email"),
		Phone: r.PostFormValue("phone"),
	}
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.svc.ListMembers(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, "members", "Members", members)
}

// handleShowMember renders the member with their loan history
func (s *Server) handleShowMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	member, err := s.svc.MemberDetail(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, "member", member.Name, member)
}

func (s *Server) handleNewMember(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "member_form", "Add member", memberFormPage{Action: "/members"})
}

func (s *Server) handleEditMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	member, err := s.svc.GetMember(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, "member_form", "Edit member", memberFormPage{Action: fmt.Sprintf("/members/%d", id), Member: member})
}

func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	id, err := s.svc.CreateMember(r.Context(), memberForm(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.done(w, r, http.StatusCreated, id, "/members")
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if !s.parseForm(w, r) {
		return
	}
	if err := s.svc.UpdateMember(r.Context(), id, memberForm(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	s.done(w, r, http.StatusOK, id, fmt.Sprintf("/members/%d", id))
}

func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := s.svc.DeleteMember(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.done(w, r, http.StatusOK, id, "/members")
}
