package httpserver

import (
	"net/http"

	"github.com/dmitrijs2005/rentdesk/internal/server/models"
	"github.com/go-chi/chi/v5"
)

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.ListUsers(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, users)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.users.DeleteUser(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.logger.Info(r.Context(), "User deleted", "user_id", id, "by", sessionOf(r).Email)
	writeJSON(w, r, http.StatusOK, message{Message: "user deleted"})
}

func (s *Server) deleteUserByEmail(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if err := s.users.DeleteUserByEmail(r.Context(), email); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.logger.Info(r.Context(), "User deleted", "email", email, "by", sessionOf(r).Email)
	writeJSON(w, r, http.StatusOK, message{Message: "user deleted"})
}

// listLicenses returns the flat review queue, or one entry per user with
// ?view=grouped.
func (s *Server) listLicenses(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("view") == "grouped" {
		groups, err := s.licenses.ListGrouped(r.Context())
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, groups)
		return
	}

	list, err := s.licenses.ListLicensesWithUsers(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

func (s *Server) getLicense(w http.ResponseWriter, r *http.Request) {
	details, err := s.licenses.GetLicense(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, details)
}

func (s *Server) reviewLicense(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	license, err := s.licenses.UpdateStatus(r.Context(), chi.URLParam(r, "id"), models.LicenseStatus(req.Status), req.AdminNotes)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, license)
}

func (s *Server) reviewUserLicenses(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	list, err := s.licenses.UpdateStatusForUser(r.Context(), chi.URLParam(r, "id"), models.LicenseStatus(req.Status), req.AdminNotes)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}
