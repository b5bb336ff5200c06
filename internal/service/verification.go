package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/voicegate/voicegate/internal/metrics"
	"github.com/voicegate/voicegate/internal/models"
	"github.com/voicegate/voicegate/internal/session"
	"go.uber.org/zap"
)

// VerificationConfig configures the verification orchestrator.
type VerificationConfig struct {
	// RequiredChallenges is the number of challenges a session issues (k >= 1).
	RequiredChallenges int
	// SessionTTL is how long a session may remain in flight.
	SessionTTL time.Duration
}

// Verification is the session state machine that issues challenges, runs
// each submitted sample through the decision cascade, and aggregates the
// per-challenge outcomes into a final accept/reject decision.
//
// The aggregation rule is conjunctive with no compensation: the session is
// approved only when every per-challenge result is accepted. A single
// rejection anywhere forces rejection, regardless of how strong the other
// challenges scored.
type Verification struct {
	selector   *ChallengeSelector
	sessions   *session.Store[*models.VerificationSession]
	signatures SignatureRepository
	cascade    *CascadeEngine
	audit      AuditEmitter
	metrics    *metrics.Metrics
	log        *zap.Logger
	cfg        VerificationConfig
	now        func() time.Time
}

// NewVerification constructs the verification orchestrator.
func NewVerification(
	selector *ChallengeSelector,
	sessions *session.Store[*models.VerificationSession],
	signatures SignatureRepository,
	cascade *CascadeEngine,
	audit AuditEmitter,
	m *metrics.Metrics,
	log *zap.Logger,
	cfg VerificationConfig,
) *Verification {
	return &Verification{
		selector:   selector,
		sessions:   sessions,
		signatures: signatures,
		cascade:    cascade,
		audit:      audit,
		metrics:    m,
		log:        log,
		cfg:        cfg,
		now:        time.Now,
	}
}

// SetClock replaces the orchestrator's clock. Intended for tests.
func (v *Verification) SetClock(now func() time.Time) { v.now = now }

// Start creates a verification session for the user. It fails with
// ErrNotEnrolled when no voice signature exists.
func (v *Verification) Start(ctx context.Context, userID string, difficulty models.Difficulty) (models.VerificationSession, error) {
	_, found, err := v.signatures.Load(ctx, userID)
	if err != nil {
		return models.VerificationSession{}, fmt.Errorf("load signature: %w: %w", ErrUnavailable, err)
	}
	if !found {
		return models.VerificationSession{}, ErrNotEnrolled
	}

	challenges, err := v.selector.Select(ctx, userID, difficulty, v.cfg.RequiredChallenges, models.PurposeVerification)
	if err != nil {
		return models.VerificationSession{}, err
	}

	now := v.now()
	sess := &models.VerificationSession{
		ID:                 uuid.NewString(),
		UserID:             userID,
		State:              models.StateAwaitingResult,
		Challenges:         challenges,
		RequiredChallenges: v.cfg.RequiredChallenges,
		CreatedAt:          now,
		ExpiresAt:          now.Add(v.cfg.SessionTTL),
	}
	v.sessions.Put(sess.ID, sess)
	v.metrics.RecordSessionStart("verification")
	v.metrics.SetActiveSessions("verification", v.sessions.Len())

	emitAudit(ctx, v.audit, v.log, models.AuditEvent{
		SessionID: sess.ID,
		UserID:    userID,
		Kind:      models.AuditVerificationStarted,
	})

	v.log.Info("verification session started",
		zap.String("session_id", sess.ID),
		zap.String("difficulty", string(difficulty)),
		zap.Int("challenges", len(challenges)),
	)
	return snapshotVerification(sess), nil
}

// SubmitChallenge runs one audio sample through the cascade against the
// stored signature and the challenge's expected text, stores the result,
// and finalizes the session once every challenge is answered.
//
// The signature load and the cascade evaluation run outside the session
// lock; the result is applied under a re-acquired lock only while the
// challenge is still pending, so a duplicate late result after a retry is
// rejected instead of double counted. On a collaborator error the session
// is left untouched, still awaiting the challenge result, and the caller
// may retry the submission.
func (v *Verification) SubmitChallenge(ctx context.Context, sessionID, challengeID string, audio []byte) (models.CascadeResult, error) {
	var (
		userID       string
		expectedText string
	)
	err := v.sessions.Mutate(sessionID, func(s *models.VerificationSession) error {
		if err := validateVerificationSubmission(s, challengeID, v.now()); err != nil {
			return err
		}
		userID = s.UserID
		expectedText = s.ChallengeByID(challengeID).Text
		return nil
	})
	if err != nil {
		return models.CascadeResult{}, mapStoreErr(err)
	}

	sig, found, err := v.signatures.Load(ctx, userID)
	if err != nil {
		return models.CascadeResult{}, fmt.Errorf("load signature: %w: %w", ErrUnavailable, err)
	}
	if !found {
		return models.CascadeResult{}, ErrNotEnrolled
	}

	result, err := v.cascade.Evaluate(ctx, audio, sig, expectedText)
	if err != nil {
		return models.CascadeResult{}, err
	}

	var finalState models.SessionState
	err = v.sessions.Mutate(sessionID, func(s *models.VerificationSession) error {
		if err := validateVerificationSubmission(s, challengeID, v.now()); err != nil {
			return err
		}
		s.ChallengeByID(challengeID).State = models.ChallengeAnswered
		s.Results = append(s.Results, models.ChallengeResult{
			ChallengeID: challengeID,
			Result:      result,
		})
		if len(s.Results) == s.RequiredChallenges {
			s.State = aggregate(s.Results)
			finalState = s.State
		}
		return nil
	})
	if err != nil {
		return models.CascadeResult{}, mapStoreErr(err)
	}

	if result.Accepted {
		emitAudit(ctx, v.audit, v.log, models.AuditEvent{
			SessionID: sessionID,
			UserID:    userID,
			Kind:      models.AuditChallengeAccepted,
			Detail:    challengeID,
		})
	} else {
		v.metrics.RecordCascadeRejection(int(result.RejectionStage))
		emitAudit(ctx, v.audit, v.log, models.AuditEvent{
			SessionID: sessionID,
			UserID:    userID,
			Kind:      models.AuditChallengeRejected,
			Stage:     result.RejectionStage,
			Detail:    challengeID,
		})
	}

	if finalState != "" {
		v.metrics.RecordDecision(string(finalState))
		emitAudit(ctx, v.audit, v.log, models.AuditEvent{
			SessionID: sessionID,
			UserID:    userID,
			Kind:      models.AuditDecision,
			Detail:    string(finalState),
		})
		v.log.Info("verification decided",
			zap.String("session_id", sessionID),
			zap.String("decision", string(finalState)),
		)
	}
	return result, nil
}

// Decision returns the final state and the per-challenge results of a
// finalized session. It is idempotent to repeated reads. While challenges
// remain unanswered it fails with ErrDecisionPending.
func (v *Verification) Decision(ctx context.Context, sessionID string) (models.SessionState, []models.ChallengeResult, error) {
	var (
		state   models.SessionState
		results []models.ChallengeResult
	)
	err := v.sessions.Mutate(sessionID, func(s *models.VerificationSession) error {
		switch s.State {
		case models.StateApproved, models.StateRejected:
			state = s.State
			results = append([]models.ChallengeResult(nil), s.Results...)
			return nil
		case models.StateAwaitingResult:
			return ErrDecisionPending
		}
		return ErrSessionAlreadyFinalized
	})
	if err != nil {
		return "", nil, mapStoreErr(err)
	}
	return state, results, nil
}

// Abort cancels the session; idempotent for already aborted sessions.
func (v *Verification) Abort(ctx context.Context, sessionID string) error {
	var userID string
	err := v.sessions.Mutate(sessionID, func(s *models.VerificationSession) error {
		if s.State == models.StateAborted {
			return nil
		}
		if s.State.Terminal() {
			return ErrSessionAlreadyFinalized
		}
		s.State = models.StateAborted
		userID = s.UserID
		return nil
	})
	if err != nil {
		return mapStoreErr(err)
	}
	if userID != "" {
		emitAudit(ctx, v.audit, v.log, models.AuditEvent{
			SessionID: sessionID,
			UserID:    userID,
			Kind:      models.AuditSessionAborted,
		})
	}
	return nil
}

// aggregate applies the conjunctive rule over the per-challenge results.
func aggregate(results []models.ChallengeResult) models.SessionState {
	for _, r := range results {
		if !r.Result.Accepted {
			return models.StateRejected
		}
	}
	return models.StateApproved
}

// validateVerificationSubmission checks that the session accepts results
// and that the challenge is present, unconsumed, and unexpired.
func validateVerificationSubmission(s *models.VerificationSession, challengeID string, now time.Time) error {
	if s.State != models.StateAwaitingResult {
		return ErrSessionAlreadyFinalized
	}
	ch := s.ChallengeByID(challengeID)
	if ch == nil {
		return ErrChallengeMismatch
	}
	switch ch.State {
	case models.ChallengeAnswered:
		return ErrDuplicateSample
	case models.ChallengeExpired:
		return ErrChallengeExpired
	}
	if now.After(ch.ExpiresAt) {
		ch.State = models.ChallengeExpired
		return ErrChallengeExpired
	}
	return nil
}

// snapshotVerification copies the session so callers never share mutable
// state with the store.
func snapshotVerification(s *models.VerificationSession) models.VerificationSession {
	out := *s
	out.Challenges = append([]models.Challenge(nil), s.Challenges...)
	out.Results = append([]models.ChallengeResult(nil), s.Results...)
	return out
}
