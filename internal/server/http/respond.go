package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

type validationResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields"`
}

// errorStatus maps a service error to its status code and public error code.
// Token failures all collapse into invalid_token.
func errorStatus(err error) (int, string) {
	var verr *common.ValidationError
	var dup *common.DuplicateFieldError

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation_error"
	case errors.As(err, &dup):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusBadRequest, "invalid_credentials"
	case errors.Is(err, common.ErrAccountDisabled):
		return http.StatusBadRequest, "account_disabled"
	case errors.Is(err, common.ErrMissingToken):
		return http.StatusBadRequest, "missing_token"
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, common.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

// writeServiceError is the single place where service errors become
// responses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)

	switch status {
	case http.StatusBadRequest:
		var verr *common.ValidationError
		var dup *common.DuplicateFieldError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, status, validationResponse{Error: code, Fields: verr.Fields})
			return
		case errors.As(err, &dup):
			writeJSON(w, status, validationResponse{Error: code, Fields: map[string][]string{
				dup.Field: {"This value is already taken."},
			}})
			return
		}
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
		s.logger.Warn(r.Context(), "store unavailable", "path", r.URL.Path, "error", err)
	case http.StatusInternalServerError:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}

	writeError(w, status, code)
}

// outcome labels an operation result for metrics.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, common.ErrInvalidToken) {
		return common.TokenErrorCode(err)
	}
	_, code := errorStatus(err)
	return code
}
