// Package http provides HTTP handlers and routing for the voice
// authentication API.
package http

import (
	"errors"
	"net/http"

	"github.com/voicegate/voicegate/internal/service"
)

// writeServiceError maps the service error taxonomy onto HTTP status codes.
// Structural and quality errors are expected outcomes; collaborator
// failures surface as 502 so callers know a retry may succeed.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrNotEnrolled):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrSessionExpired),
		errors.Is(err, service.ErrChallengeExpired):
		http.Error(w, err.Error(), http.StatusGone)
	case errors.Is(err, service.ErrSessionAlreadyFinalized),
		errors.Is(err, service.ErrChallengeMismatch),
		errors.Is(err, service.ErrDuplicateSample),
		errors.Is(err, service.ErrAlreadyEnrolled),
		errors.Is(err, service.ErrDecisionPending):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrLowQualitySample),
		errors.Is(err, service.ErrEnrollmentQualityTooLow),
		errors.Is(err, service.ErrIncompleteSamples),
		errors.Is(err, service.ErrInsufficientPhrases):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, service.ErrUnavailable):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
