package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/voicegate/voicegate/internal/models"
)

// EnrollmentService defines the enrollment operations required by the HTTP
// handlers.
type EnrollmentService interface {
	// Start creates an enrollment session and issues its challenges.
	Start(ctx context.Context, userID string, difficulty models.Difficulty, overwrite bool) (models.EnrollmentSession, error)
	// AddSample ingests one voice sample for a pending challenge.
	AddSample(ctx context.Context, sessionID, challengeID string, audio []byte) error
	// Complete derives and stores the voice signature.
	Complete(ctx context.Context, sessionID string) (models.VoiceSignature, error)
	// Abort cancels the session.
	Abort(ctx context.Context, sessionID string) error
}

// EnrollHandler handles HTTP requests for voice enrollment.
type EnrollHandler struct {
	// Enrollment performs the underlying enrollment operations.
	Enrollment EnrollmentService
}

// StartEnrollRequest represents the JSON payload for starting enrollment.
type StartEnrollRequest struct {
	// UserID is the user to enroll.
	UserID string `json:"user_id"`
	// Difficulty selects the phrase difficulty for the challenges.
	Difficulty models.Difficulty `json:"difficulty"`
	// Overwrite allows replacing an existing voice signature.
	Overwrite bool `json:"overwrite"`
}

// SampleRequest represents the JSON payload for submitting audio against a
// challenge. Audio is base64-encoded 16-bit mono PCM.
type SampleRequest struct {
	ChallengeID string `json:"challenge_id"`
	Audio       string `json:"audio"`
}

// Start handles enrollment start requests.
// It expects a JSON body with non-empty "user_id" and "difficulty" fields
// and responds with the created session and its challenges.
func (h *EnrollHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartEnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Difficulty == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	sess, err := h.Enrollment.Start(r.Context(), req.UserID, req.Difficulty, req.Overwrite)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(sess)
}

// AddSample handles sample submission for an enrollment challenge.
func (h *EnrollHandler) AddSample(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req SampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChallengeID == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil || len(audio) == 0 {
		http.Error(w, "invalid audio encoding", http.StatusBadRequest)
		return
	}

	if err := h.Enrollment.AddSample(r.Context(), sessionID, req.ChallengeID, audio); err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

// Complete handles enrollment completion and responds with the quality
// score of the stored signature.
func (h *EnrollHandler) Complete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	sig, err := h.Enrollment.Complete(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":        "completed",
		"quality_score": sig.QualityScore,
	})
}

// Abort handles explicit enrollment cancellation.
func (h *EnrollHandler) Abort(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	if err := h.Enrollment.Abort(r.Context(), sessionID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "aborted"})
}
