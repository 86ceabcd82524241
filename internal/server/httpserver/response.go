package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/rentdesk/internal/common"
	"github.com/go-chi/chi/v5/middleware"
)

type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
	Meta    meta      `json:"meta"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type meta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type message struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data, Meta: buildMeta(r)})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Error: &apiError{Code: code, Message: msg},
		Meta:  buildMeta(r),
	})
}

func buildMeta(r *http.Request) meta {
	return meta{RequestID: middleware.GetReqID(r.Context()), Timestamp: time.Now().UTC()}
}

// writeServiceError maps a service error onto a status code. Authentication
// failures share one message so callers cannot tell which check failed.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *validationError
	switch {
	case errors.As(err, &ve):
		writeError(w, r, http.StatusBadRequest, "VALIDATION", ve.Error())
	case errors.Is(err, common.ErrInvalidUpload),
		errors.Is(err, common.ErrPayloadTooLarge),
		errors.Is(err, common.ErrInvalidLicenseType),
		errors.Is(err, common.ErrInvalidStatus),
		errors.Is(err, common.ErrorValidation):
		writeError(w, r, http.StatusBadRequest, "VALIDATION", err.Error())
	case errors.Is(err, common.ErrInvalidOrExpiredVerificationToken),
		errors.Is(err, common.ErrVerificationRejected):
		writeError(w, r, http.StatusBadRequest, "VERIFICATION", err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		writeError(w, r, http.StatusBadRequest, "CONFLICT", "already exists")
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "not found")
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "incorrect email or password")
	case errors.Is(err, common.ErrorForbidden):
		writeError(w, r, http.StatusForbidden, "FORBIDDEN", "not enough permissions")
	case errors.Is(err, common.ErrTooManyRequests):
		writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", err.Error())
	default:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
