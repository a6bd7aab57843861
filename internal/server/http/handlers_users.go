package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
)

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	view, err := s.users.Profile(r.Context(), claims.UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleUpdateStatus applies an allow-listed partial update. Fields outside
// the allow-list are dropped while decoding.
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	targetID := chi.URLParam(r, "userID")

	req, err := readRequest(w, r)
	if err != nil {
		writeUploadBodyError(w, r, err)
		return
	}

	avatar, closeAvatar, err := req.Avatar(string(models.FieldAvatar))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	defer closeAvatar()
	if avatar != nil {
		delete(req.fields, string(models.FieldAvatar))
	}

	patch, err := models.DecodeUserPatch(req.fields)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	view, err := s.users.UpdateStatus(r.Context(), claims.UserID, targetID, patch, avatar)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	list, err := s.depts.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	req, err := readRequest(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	d, err := s.depts.Create(r.Context(), claims.UserID, req.String("name"), req.String("description"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}
