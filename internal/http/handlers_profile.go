package http

import (
	"net/http"

	"minshare/internal/auth"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if s.profiles == nil {
		NotFoundError("profiles are not configured").Write(w)
		return
	}
	p, err := s.profiles.Get(r.Context(), id.MemberID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(p).Write(w)
}

// handleSaveProfile stores the caller's onboarding profile.
func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if s.profiles == nil {
		NotFoundError("profiles are not configured").Write(w)
		return
	}
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.profiles.Save(r.Context(), parseProfile(p, id.MemberID, id.Email))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(saved).Write(w)
}

// handleContact accepts the public contact form; no identity is required.
func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	if s.contacts == nil {
		NotFoundError("contact requests are not configured").Write(w)
		return
	}
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.contacts.Submit(r.Context(), parseContact(p))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(map[string]string{"id": c.ID, "status": c.Status}).Write(w)
}
