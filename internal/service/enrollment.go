package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/voicegate/voicegate/internal/inference"
	"github.com/voicegate/voicegate/internal/metrics"
	"github.com/voicegate/voicegate/internal/models"
	"github.com/voicegate/voicegate/internal/session"
	"go.uber.org/zap"
)

// EnrollmentConfig configures the enrollment orchestrator.
type EnrollmentConfig struct {
	// RequiredSamples is the number of voice samples to collect.
	RequiredSamples int
	// SessionTTL is how long a session may remain in flight.
	SessionTTL time.Duration
	// QualityFloor is the minimum mean pairwise similarity a completed
	// enrollment must reach before its signature is stored.
	QualityFloor float64
	// MinRMS and MinNonSilence are the per-sample signal floors below
	// which a sample is rejected without consuming its challenge slot.
	MinRMS        float64
	MinNonSilence float64
}

// Enrollment is the session state machine that issues challenges, ingests
// voice samples, and on completion derives one voice signature with a
// quality score.
type Enrollment struct {
	selector   *ChallengeSelector
	sessions   *session.Store[*models.EnrollmentSession]
	signatures SignatureRepository
	embedder   inference.Embedder
	audit      AuditEmitter
	metrics    *metrics.Metrics
	log        *zap.Logger
	cfg        EnrollmentConfig
	now        func() time.Time
}

// NewEnrollment constructs the enrollment orchestrator.
func NewEnrollment(
	selector *ChallengeSelector,
	sessions *session.Store[*models.EnrollmentSession],
	signatures SignatureRepository,
	embedder inference.Embedder,
	audit AuditEmitter,
	m *metrics.Metrics,
	log *zap.Logger,
	cfg EnrollmentConfig,
) *Enrollment {
	return &Enrollment{
		selector:   selector,
		sessions:   sessions,
		signatures: signatures,
		embedder:   embedder,
		audit:      audit,
		metrics:    m,
		log:        log,
		cfg:        cfg,
		now:        time.Now,
	}
}

// SetClock replaces the orchestrator's clock. Intended for tests.
func (e *Enrollment) SetClock(now func() time.Time) { e.now = now }

// Start creates a new enrollment session for the user and issues the
// required number of challenges. Unless overwrite is set, it fails with
// ErrAlreadyEnrolled when a voice signature already exists.
func (e *Enrollment) Start(ctx context.Context, userID string, difficulty models.Difficulty, overwrite bool) (models.EnrollmentSession, error) {
	if !overwrite {
		_, found, err := e.signatures.Load(ctx, userID)
		if err != nil {
			return models.EnrollmentSession{}, fmt.Errorf("load signature: %w: %w", ErrUnavailable, err)
		}
		if found {
			return models.EnrollmentSession{}, ErrAlreadyEnrolled
		}
	}

	challenges, err := e.selector.Select(ctx, userID, difficulty, e.cfg.RequiredSamples, models.PurposeEnrollment)
	if err != nil {
		return models.EnrollmentSession{}, err
	}

	now := e.now()
	sess := &models.EnrollmentSession{
		ID:              uuid.NewString(),
		UserID:          userID,
		State:           models.StateCollectingSamples,
		Challenges:      challenges,
		RequiredSamples: e.cfg.RequiredSamples,
		CreatedAt:       now,
		ExpiresAt:       now.Add(e.cfg.SessionTTL),
	}
	e.sessions.Put(sess.ID, sess)
	e.metrics.RecordSessionStart("enrollment")
	e.metrics.SetActiveSessions("enrollment", e.sessions.Len())

	emitAudit(ctx, e.audit, e.log, models.AuditEvent{
		SessionID: sess.ID,
		UserID:    userID,
		Kind:      models.AuditEnrollmentStarted,
	})

	e.log.Info("enrollment session started",
		zap.String("session_id", sess.ID),
		zap.String("difficulty", string(difficulty)),
		zap.Int("challenges", len(challenges)),
	)
	return snapshotEnrollment(sess), nil
}

// AddSample ingests one voice sample for a pending challenge.
//
// The embedding call runs outside the session lock; the result is applied
// under a re-acquired lock with a pending-state re-check, so a duplicate
// late result cannot be applied twice. A sample rejected for low quality
// does not consume the challenge slot.
func (e *Enrollment) AddSample(ctx context.Context, sessionID, challengeID string, audio []byte) error {
	var userID string
	err := e.sessions.Mutate(sessionID, func(s *models.EnrollmentSession) error {
		userID = s.UserID
		return validateEnrollmentSubmission(s, challengeID, e.now())
	})
	if err != nil {
		return mapStoreErr(err)
	}

	quality := inference.MeasurePCM(audio)
	if quality.RMS < e.cfg.MinRMS || quality.NonSilenceRatio < e.cfg.MinNonSilence {
		emitAudit(ctx, e.audit, e.log, models.AuditEvent{
			SessionID: sessionID,
			UserID:    userID,
			Kind:      models.AuditSampleRejected,
			Detail:    challengeID,
		})
		return fmt.Errorf("%w: rms=%.4f non_silence=%.4f", ErrLowQualitySample, quality.RMS, quality.NonSilenceRatio)
	}

	embedding, err := e.embedder.Embed(ctx, audio)
	if err != nil {
		return fmt.Errorf("embed sample: %w: %w", ErrUnavailable, err)
	}

	err = e.sessions.Mutate(sessionID, func(s *models.EnrollmentSession) error {
		if err := validateEnrollmentSubmission(s, challengeID, e.now()); err != nil {
			return err
		}
		s.ChallengeByID(challengeID).State = models.ChallengeAnswered
		s.Samples = append(s.Samples, models.Sample{
			ChallengeID: challengeID,
			Embedding:   embedding,
			Quality:     quality,
		})
		return nil
	})
	if err != nil {
		return mapStoreErr(err)
	}

	emitAudit(ctx, e.audit, e.log, models.AuditEvent{
		SessionID: sessionID,
		UserID:    userID,
		Kind:      models.AuditSampleAccepted,
		Detail:    challengeID,
	})
	return nil
}

// Complete derives the voice signature from the collected samples: the
// embedding is the arithmetic mean of the sample embeddings, and the
// quality score is the mean pairwise cosine similarity across them, which
// makes it invariant to submission order. On success the prior signature,
// if any, is replaced atomically and the session becomes Completed.
func (e *Enrollment) Complete(ctx context.Context, sessionID string) (models.VoiceSignature, error) {
	var (
		userID  string
		quality float64
		vectors [][]float64
	)
	err := e.sessions.Mutate(sessionID, func(s *models.EnrollmentSession) error {
		if s.State != models.StateCollectingSamples {
			return ErrSessionAlreadyFinalized
		}
		if len(s.Samples) < s.RequiredSamples {
			return fmt.Errorf("%w: have %d of %d", ErrIncompleteSamples, len(s.Samples), s.RequiredSamples)
		}

		vecs := make([][]float64, len(s.Samples))
		for i, sample := range s.Samples {
			vecs[i] = sample.Embedding
		}
		score := MeanPairwiseCosine(vecs)
		if score < e.cfg.QualityFloor {
			return fmt.Errorf("%w: score=%.4f floor=%.4f", ErrEnrollmentQualityTooLow, score, e.cfg.QualityFloor)
		}

		s.State = models.StateCompleting
		userID = s.UserID
		quality = score
		vectors = vecs
		return nil
	})
	if err != nil {
		return models.VoiceSignature{}, mapStoreErr(err)
	}

	sig := models.VoiceSignature{
		UserID:       userID,
		Embedding:    MeanEmbedding(vectors),
		QualityScore: quality,
		CreatedAt:    e.now(),
	}

	// The store call runs outside the session lock. On failure the session
	// reverts to collecting so the caller can retry completion.
	if err := e.signatures.Store(ctx, sig); err != nil {
		revertErr := e.sessions.Mutate(sessionID, func(s *models.EnrollmentSession) error {
			if s.State == models.StateCompleting {
				s.State = models.StateCollectingSamples
			}
			return nil
		})
		if revertErr != nil {
			e.log.Error("failed to revert completing session", zap.String("session_id", sessionID), zap.Error(revertErr))
		}
		return models.VoiceSignature{}, fmt.Errorf("store signature: %w: %w", ErrUnavailable, err)
	}

	err = e.sessions.Mutate(sessionID, func(s *models.EnrollmentSession) error {
		s.State = models.StateCompleted
		return nil
	})
	if err != nil {
		// The signature is already stored; the session state only affects
		// further submissions, which terminal checks reject anyway.
		e.log.Warn("completed enrollment session no longer in store", zap.String("session_id", sessionID), zap.Error(err))
	}

	emitAudit(ctx, e.audit, e.log, models.AuditEvent{
		SessionID: sessionID,
		UserID:    userID,
		Kind:      models.AuditEnrollmentCompleted,
		Detail:    fmt.Sprintf("quality=%.4f", quality),
	})
	e.log.Info("enrollment completed",
		zap.String("session_id", sessionID),
		zap.Float64("quality_score", quality),
	)
	return sig, nil
}

// Abort cancels the session. Aborting an already aborted session succeeds;
// aborting a completed session fails with ErrSessionAlreadyFinalized.
func (e *Enrollment) Abort(ctx context.Context, sessionID string) error {
	var userID string
	err := e.sessions.Mutate(sessionID, func(s *models.EnrollmentSession) error {
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
		emitAudit(ctx, e.audit, e.log, models.AuditEvent{
			SessionID: sessionID,
			UserID:    userID,
			Kind:      models.AuditSessionAborted,
		})
	}
	return nil
}

// validateEnrollmentSubmission checks that the session accepts samples and
// that the challenge is present, unconsumed, and unexpired.
func validateEnrollmentSubmission(s *models.EnrollmentSession, challengeID string, now time.Time) error {
	if s.State != models.StateCollectingSamples {
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

// mapStoreErr translates session store errors into the service taxonomy.
func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return ErrSessionNotFound
	case errors.Is(err, session.ErrExpired):
		return ErrSessionExpired
	}
	return err
}

// snapshotEnrollment copies the session so callers never share mutable
// state with the store.
func snapshotEnrollment(s *models.EnrollmentSession) models.EnrollmentSession {
	out := *s
	out.Challenges = append([]models.Challenge(nil), s.Challenges...)
	out.Samples = append([]models.Sample(nil), s.Samples...)
	return out
}

// MeanEmbedding returns the arithmetic mean of the given vectors.
func MeanEmbedding(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	mean := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		for i := range v {
			mean[i] += v[i]
		}
	}
	for i := range mean {
		mean[i] /= float64(len(vectors))
	}
	return mean
}

// MeanPairwiseCosine returns the mean cosine similarity over all unordered
// vector pairs. It is a pure function of the unordered set, so the result
// does not depend on submission order. A single vector scores 1.
func MeanPairwiseCosine(vectors [][]float64) float64 {
	if len(vectors) < 2 {
		return 1
	}
	var sum float64
	pairs := 0
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			sum += Cosine(vectors[i], vectors[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}
