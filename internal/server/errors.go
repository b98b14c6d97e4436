package server

import (
	"errors"
	"net/http"
	"strings"

	"blogsvc/internal/app"
	"blogsvc/internal/util"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeErrorCode(w, status, defaultErrorCode(status), msg)
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

// writeAppError maps application errors onto HTTP responses. Causes of 5xx
// responses are logged and never returned to the client.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classifyError(err)
	if status >= http.StatusInternalServerError {
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeErrorCode(w, status, code, msg)
}

func classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, app.ErrUnauthenticated):
		return http.StatusUnauthorized, "AUTH_TOKEN_REQUIRED", err.Error()
	case errors.Is(err, app.ErrInvalidToken):
		return http.StatusForbidden, "AUTH_INVALID_TOKEN", "invalid token"
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden, "ARTICLE_FORBIDDEN", "unauthorized"
	case errors.Is(err, app.ErrConflict):
		return http.StatusBadRequest, "AUTH_EMAIL_ALREADY_EXISTS", "user already exists"
	case errors.Is(err, app.ErrInvalidCredentials):
		return http.StatusBadRequest, "AUTH_INVALID_CREDENTIALS", err.Error()
	case errors.Is(err, app.ErrInvalidCode):
		return http.StatusBadRequest, "AUTH_INVALID_CODE", err.Error()
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound, "ARTICLE_NOT_FOUND", err.Error()
	case errors.Is(err, app.ErrUnsupportedImage):
		return http.StatusBadRequest, "ARTICLE_UNSUPPORTED_IMAGE", "unsupported image format (jpg, jpeg, png)"
	case errors.Is(err, app.ErrInvalidInput):
		return http.StatusBadRequest, "REQUEST_INVALID", err.Error()
	case errors.Is(err, app.ErrNotificationFailed):
		return http.StatusInternalServerError, "AUTH_NOTIFICATION_FAILED", "failed to notify approver"
	case errors.Is(err, app.ErrUpstream):
		return http.StatusInternalServerError, "SYSTEM_UPSTREAM_FAILED", "upstream service failed"
	default:
		return http.StatusInternalServerError, "SYSTEM_INTERNAL_ERROR", "internal error"
	}
}

func defaultErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "REQUEST_INVALID"
	case http.StatusUnauthorized:
		return "AUTH_TOKEN_REQUIRED"
	case http.StatusForbidden:
		return "AUTH_FORBIDDEN"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "REQUEST_TOO_LARGE"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
