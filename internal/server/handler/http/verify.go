package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/voicegate/voicegate/internal/models"
)

// VerificationService defines the verification operations required by the
// HTTP handlers.
type VerificationService interface {
	// Start creates a verification session and issues its challenges.
	Start(ctx context.Context, userID string, difficulty models.Difficulty) (models.VerificationSession, error)
	// SubmitChallenge runs one audio sample through the decision cascade.
	SubmitChallenge(ctx context.Context, sessionID, challengeID string, audio []byte) (models.CascadeResult, error)
	// Decision returns the final state and per-challenge results.
	Decision(ctx context.Context, sessionID string) (models.SessionState, []models.ChallengeResult, error)
	// Abort cancels the session.
	Abort(ctx context.Context, sessionID string) error
}

// VerifyHandler handles HTTP requests for voice verification.
type VerifyHandler struct {
	// Verification performs the underlying verification operations.
	Verification VerificationService
}

// StartVerifyRequest represents the JSON payload for starting verification.
type StartVerifyRequest struct {
	UserID     string            `json:"user_id"`
	Difficulty models.Difficulty `json:"difficulty"`
}

// Start handles verification start requests.
func (h *VerifyHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Difficulty == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	sess, err := h.Verification.Start(r.Context(), req.UserID, req.Difficulty)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(sess)
}

// SubmitChallenge handles audio submission for a verification challenge and
// responds with the stage-attributed cascade result.
func (h *VerifyHandler) SubmitChallenge(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.Verification.SubmitChallenge(r.Context(), sessionID, req.ChallengeID, audio)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// Decision responds with the final decision of a finalized session. Reads
// are idempotent; while challenges remain pending it responds 409.
func (h *VerifyHandler) Decision(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	state, results, err := h.Verification.Decision(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"decision": state,
		"results":  results,
	})
}

// Abort handles explicit verification cancellation.
func (h *VerifyHandler) Abort(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	if err := h.Verification.Abort(r.Context(), sessionID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "aborted"})
}
