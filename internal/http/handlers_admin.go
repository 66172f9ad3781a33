package http

import (
	"net/http"

	"minshare/internal/auth"
)

// handleAdminOverview lists a period's documents with pool totals.
// ?period=YYYY-MM defaults to the current period.
func (s *Server) handleAdminOverview(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	period, err := ParsePeriodParam(r.URL.Query(), s.engine.Resolver().CurrentPeriodKey())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ov, err := s.admin.Overview(r.Context(), period)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(ov).Write(w)
}

// handleAdminReset deletes and recreates a member's document.
func (s *Server) handleAdminReset(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	period, err := ParsePeriodParam(r.URL.Query(), s.engine.Resolver().CurrentPeriodKey())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.admin.ResetMember(r.Context(), r.PathValue("memberId"), period)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeStatus(w, http.StatusOK, st)
}

func (s *Server) handleAdminContacts(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	if s.contacts == nil {
		NotFoundError("contact requests are not configured").Write(w)
		return
	}
	list, err := s.contacts.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{"contacts": list, "count": len(list)}).Write(w)
}
