package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged server-side with its technical detail and request id,
// then answered with a stable code from core.MapError. The HTTP status is
// derived from that code so clients can branch on either.

import (
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/kobosync/internal/core"
	"github.com/JonMunkholm/kobosync/internal/logging"
	"github.com/JonMunkholm/kobosync/internal/web/middleware"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped user message as JSON.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	userMsg := core.MapError(err)
	status := statusForCode(userMsg.Code)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", chimw.GetReqID(r.Context()),
	)

	middleware.Annotate(r.Context(), "code", userMsg.Code)
	writeJSON(w, status, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusForCode maps a user-facing error code to an HTTP status.
func statusForCode(code string) int {
	switch {
	case code == "SYNC001":
		return http.StatusConflict
	case code == "SYNC002":
		return http.StatusGatewayTimeout
	case code == "REQ001":
		return http.StatusBadRequest
	case strings.HasPrefix(code, "FETCH"):
		return http.StatusBadGateway
	case code == "STORE001":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
