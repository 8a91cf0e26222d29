package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang/glog"

	"llnd-portal/internal/domain"
	"llnd-portal/internal/portalapi"
	"llnd-portal/internal/quiz"
	"llnd-portal/internal/validation"
)

// envelope mirrors the portal API response shape so the frontend handles both alike.
type envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(envelope{
		Success:   status < http.StatusBadRequest,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		glog.Warningf("write response: %v", err)
	}
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, "OK", data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, message, nil)
}

// writeErr maps a use-case error onto a status code. Validation failures
// carry their field errors so the form can show them inline.
func writeErr(w http.ResponseWriter, err error) {
	if fields := validation.Fields(err); len(fields) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, fields[0].Message, fields)
		return
	}
	if apiErr, ok := portalapi.AsAPIError(err); ok {
		status := http.StatusBadGateway
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			status = apiErr.Status
		}
		writeError(w, status, portalapi.Message(err))
		return
	}
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrCatalogNotFound):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrSectionNotFound), errors.Is(err, domain.ErrQuestionNotFound):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrSubmissionPending),
		errors.Is(err, domain.ErrFlowClosed),
		errors.Is(err, quiz.ErrCatalogMismatch):
		writeError(w, http.StatusConflict, err.Error())
	default:
		glog.Errorf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, portalapi.Message(err))
	}
}
