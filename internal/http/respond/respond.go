package respond

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/hongminglow/staff-portal/internal/admin"
)

// Envelope is the standard API response wrapper used across handlers.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes a success or informational response using the common envelope.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{Code: status, Message: message, Data: data})
}

// Error writes an error response with the shared envelope structure.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{Code: status, Message: message})
}

// AdminError writes a facade failure with the backend's message verbatim.
// data, when non-nil, carries the state the operator should see alongside it.
func AdminError(w http.ResponseWriter, err error, data any) {
	kind := admin.KindOf(err)
	write(w, StatusFor(kind), Envelope{
		Code:    StatusFor(kind),
		Message: admin.Message(err),
		Kind:    kind.String(),
		Data:    data,
	})
}

// StatusFor maps a facade error kind to an HTTP status.
func StatusFor(kind admin.Kind) int {
	switch kind {
	case admin.KindValidation:
		return http.StatusBadRequest
	case admin.KindAuthz:
		return http.StatusForbidden
	default:
		return http.StatusBadGateway
	}
}

func write(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Warn("respond: encode payload failed")
	}
}
