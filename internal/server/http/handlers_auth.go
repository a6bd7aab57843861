package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/server/services"
)

type loginResponse struct {
	Access          string             `json:"access"`
	AccessExpiresAt time.Time          `json:"access_expires_at"`
	User            *services.UserView `json:"user"`
}

type refreshResponse struct {
	Access          string    `json:"access"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, err := readRequest(w, r)
	if err != nil {
		writeUploadBodyError(w, r, err)
		return
	}

	in := services.RegisterInput{
		Username:           req.String("username"),
		Email:              req.String("email"),
		Gender:             req.String("gender"),
		Password:           req.String("password"),
		PasswordConfirm:    req.String("password_confirm"),
		Position:           req.String("position"),
		WorkStatus:         req.String("work_status"),
		CurrentDestination: req.String("current_destination"),
		DateOfJoining:      req.String("date_of_joining"),
		PhoneNumber:        req.String("phone_number"),
		EmergencyContact:   req.String("emergency_contact"),
	}

	if v := strings.TrimSpace(req.String("department_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			verr := common.NewValidationError()
			verr.Add("department_id", "Incorrect type. Expected pk value.")
			s.writeServiceError(w, r, verr)
			return
		}
		in.DepartmentID = &id
	}

	avatar, closeAvatar, err := req.Avatar("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	defer closeAvatar()
	in.Avatar = avatar

	view, err := s.users.Register(r.Context(), in)
	s.metrics.ObserveAuth("register", outcome(err))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := readRequest(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	sess, err := s.users.Login(r.Context(), req.String("username"), req.String("password"))
	s.metrics.ObserveAuth("login", outcome(err))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.setRefreshCookie(w, sess.RefreshToken, sess.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, loginResponse{
		Access:          sess.AccessToken,
		AccessExpiresAt: sess.AccessExpiresAt,
		User:            sess.User,
	})
}

// handleRefresh reads the refresh token from its cookie, falling back to a
// "refresh" body field for non-browser clients.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := refreshCookie(r)
	if token == "" {
		req, err := readRequest(w, r)
		if err != nil {
			writeBodyError(w, err)
			return
		}
		token = req.String("refresh")
	}

	sess, err := s.users.Refresh(r.Context(), token)
	s.metrics.ObserveAuth("refresh", outcome(err))
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) || errors.Is(err, common.ErrAccountDisabled) {
			s.clearRefreshCookie(w)
		}
		s.writeServiceError(w, r, err)
		return
	}

	s.setRefreshCookie(w, sess.RefreshToken, sess.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, refreshResponse{
		Access:          sess.AccessToken,
		AccessExpiresAt: sess.AccessExpiresAt,
	})
}

// handleLogout revokes the refresh token from the body or the cookie. Any
// token problem is a client error here, never 401.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	req, err := readRequest(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	token := req.String("refresh")
	if token == "" {
		token = refreshCookie(r)
	}

	err = s.users.Logout(r.Context(), token)
	s.metrics.ObserveAuth("logout", outcome(err))
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) {
			writeError(w, http.StatusBadRequest, "invalid_token")
			return
		}
		s.writeServiceError(w, r, err)
		return
	}

	s.clearRefreshCookie(w)
	w.WriteHeader(http.StatusResetContent)
}
