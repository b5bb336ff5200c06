// Package models defines the core data structures for phrases, challenges,
// voice signatures, and authentication sessions.
package models

import "time"

// Difficulty classifies phrases by how hard they are to read aloud.
type Difficulty string

const (
	// Easy represents short, common phrases.
	Easy Difficulty = "easy"
	// Medium represents phrases of moderate length and vocabulary.
	Medium Difficulty = "medium"
	// Hard represents long phrases with uncommon vocabulary.
	Hard Difficulty = "hard"
)

// UsagePurpose records why a phrase was issued to a user.
type UsagePurpose string

const (
	// PurposeEnrollment marks a phrase issued during enrollment.
	PurposeEnrollment UsagePurpose = "enrollment"
	// PurposeVerification marks a phrase issued during verification.
	PurposeVerification UsagePurpose = "verification"
)

// Phrase is one literary phrase from the catalog.
// Phrases are immutable once created; their lifecycle is owned by the catalog.
type Phrase struct {
	// ID is the unique identifier of the phrase.
	ID string `json:"id"`
	// Text is the phrase the user must read aloud.
	Text string `json:"text"`
	// Difficulty classifies the phrase.
	Difficulty Difficulty `json:"difficulty"`
	// Language is the BCP 47 language tag of the phrase.
	Language string `json:"language"`
}

// UsageRecord is an append-only record of a phrase being issued to a user.
// The exclusion window for challenge selection is computed from these records.
type UsageRecord struct {
	PhraseID string
	UserID   string
	Purpose  UsagePurpose
	UsedAt   time.Time
}

// ChallengeState is the explicit per-challenge lifecycle tag.
type ChallengeState string

const (
	// ChallengePending means the challenge awaits a voice sample.
	ChallengePending ChallengeState = "pending"
	// ChallengeAnswered means a sample or result has been applied.
	ChallengeAnswered ChallengeState = "answered"
	// ChallengeExpired means the challenge deadline passed unanswered.
	ChallengeExpired ChallengeState = "expired"
)

// Challenge is one issued phrase instance with an expiry, owned exclusively
// by the session that issued it.
type Challenge struct {
	// ID is the unique identifier of this challenge instance.
	ID string `json:"id"`
	// PhraseID references the catalog phrase behind this challenge.
	PhraseID string `json:"phrase_id"`
	// Text is the phrase text the user must speak.
	Text string `json:"text"`
	// Order is the 1-based position of the challenge within its session.
	Order int `json:"order"`
	// IssuedAt is when the challenge was created.
	IssuedAt time.Time `json:"issued_at"`
	// ExpiresAt is the deadline for answering this challenge.
	ExpiresAt time.Time `json:"expires_at"`
	// State tracks whether the challenge is pending, answered, or expired.
	State ChallengeState `json:"state"`
}

// QualityIndicators are cheap signal measurements computed from raw audio
// before any inference call is made.
type QualityIndicators struct {
	// RMS is the root-mean-square level of the audio, normalized to [0,1].
	RMS float64 `json:"rms"`
	// NonSilenceRatio is the fraction of audio frames above the silence floor.
	NonSilenceRatio float64 `json:"non_silence_ratio"`
}

// Sample is one accepted voice sample bound to a challenge.
// A challenge accepts at most one sample.
type Sample struct {
	ChallengeID string
	Embedding   []float64
	Quality     QualityIndicators
}

// VoiceSignature is the enrolled reference embedding for a user, derived
// exactly once per successful enrollment completion.
type VoiceSignature struct {
	UserID       string
	Embedding    []float64
	QualityScore float64
	CreatedAt    time.Time
}

// RejectionStage identifies which cascade gate rejected a sample.
type RejectionStage int

const (
	// StageNone means no gate rejected the sample.
	StageNone RejectionStage = 0
	// StageLiveness is the anti-spoof gate.
	StageLiveness RejectionStage = 1
	// StageIdentity is the speaker-identity gate.
	StageIdentity RejectionStage = 2
	// StageText is the spoken-text gate.
	StageText RejectionStage = 3
)

// CascadeResult is the stage-attributed outcome of running one audio sample
// through the decision cascade. It is a value produced fresh per sample and
// never mutated after construction.
//
// RejectionStage is set iff Accepted is false, and when set to stage k the
// gates after k were never evaluated.
type CascadeResult struct {
	SpoofScore     float64        `json:"antispoof_score"`
	SpoofPassed    bool           `json:"antispoof_passed"`
	IdentityScore  float64        `json:"identity_score"`
	IdentityPassed bool           `json:"identity_passed"`
	TextErrorRate  float64        `json:"text_error_rate"`
	TextPassed     bool           `json:"text_passed"`
	RejectionStage RejectionStage `json:"rejection_stage"`
	Accepted       bool           `json:"accepted"`
}

// ChallengeResult pairs a verification challenge with its cascade outcome.
type ChallengeResult struct {
	ChallengeID string        `json:"challenge_id"`
	Result      CascadeResult `json:"result"`
}

// SessionState is the lifecycle state of an enrollment or verification session.
type SessionState string

const (
	// StateCollectingSamples means an enrollment session accepts samples.
	StateCollectingSamples SessionState = "collecting_samples"
	// StateCompleting means enrollment completion is in progress.
	StateCompleting SessionState = "completing"
	// StateCompleted means enrollment finished and a signature was stored.
	StateCompleted SessionState = "completed"
	// StateAwaitingResult means a verification session has pending challenges.
	StateAwaitingResult SessionState = "awaiting_challenge_result"
	// StateAggregating means all challenges are answered and the final
	// decision is being computed.
	StateAggregating SessionState = "aggregating"
	// StateApproved is the accepting terminal verification state.
	StateApproved SessionState = "approved"
	// StateRejected is the rejecting terminal verification state.
	StateRejected SessionState = "rejected"
	// StateAborted means the caller explicitly cancelled the session.
	StateAborted SessionState = "aborted"
	// StateExpired means the session deadline passed.
	StateExpired SessionState = "expired"
)

// Terminal reports whether the state admits no further transitions.
func (s SessionState) Terminal() bool {
	switch s {
	case StateCompleted, StateApproved, StateRejected, StateAborted, StateExpired:
		return true
	}
	return false
}

// EnrollmentSession tracks one in-flight enrollment.
// It is mutated only through the enrollment orchestrator, under the
// session store's per-key lock.
type EnrollmentSession struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	State           SessionState `json:"state"`
	Challenges      []Challenge  `json:"challenges"`
	Samples         []Sample     `json:"-"`
	RequiredSamples int          `json:"required_samples"`
	CreatedAt       time.Time    `json:"created_at"`
	ExpiresAt       time.Time    `json:"expires_at"`
}

// Deadline returns the session expiry time.
func (s *EnrollmentSession) Deadline() time.Time { return s.ExpiresAt }

// MarkExpired transitions the session to the expired terminal state.
func (s *EnrollmentSession) MarkExpired() { s.State = StateExpired }

// ChallengeByID returns the session's challenge with the given id, or nil.
func (s *EnrollmentSession) ChallengeByID(id string) *Challenge {
	return challengeByID(s.Challenges, id)
}

// VerificationSession tracks one in-flight verification.
type VerificationSession struct {
	ID                 string            `json:"id"`
	UserID             string            `json:"user_id"`
	State              SessionState      `json:"state"`
	Challenges         []Challenge       `json:"challenges"`
	Results            []ChallengeResult `json:"results"`
	RequiredChallenges int               `json:"required_challenges"`
	CreatedAt          time.Time         `json:"created_at"`
	ExpiresAt          time.Time         `json:"expires_at"`
}

// Deadline returns the session expiry time.
func (s *VerificationSession) Deadline() time.Time { return s.ExpiresAt }

// MarkExpired transitions the session to the expired terminal state.
func (s *VerificationSession) MarkExpired() { s.State = StateExpired }

// ChallengeByID returns the session's challenge with the given id, or nil.
func (s *VerificationSession) ChallengeByID(id string) *Challenge {
	return challengeByID(s.Challenges, id)
}

func challengeByID(challenges []Challenge, id string) *Challenge {
	for i := range challenges {
		if challenges[i].ID == id {
			return &challenges[i]
		}
	}
	return nil
}

// AuditKind labels an audit event.
type AuditKind string

const (
	// AuditEnrollmentStarted records the creation of an enrollment session.
	AuditEnrollmentStarted AuditKind = "enrollment_started"
	// AuditSampleAccepted records an accepted enrollment sample.
	AuditSampleAccepted AuditKind = "sample_accepted"
	// AuditSampleRejected records a rejected enrollment sample.
	AuditSampleRejected AuditKind = "sample_rejected"
	// AuditEnrollmentCompleted records a stored voice signature.
	AuditEnrollmentCompleted AuditKind = "enrollment_completed"
	// AuditVerificationStarted records the creation of a verification session.
	AuditVerificationStarted AuditKind = "verification_started"
	// AuditChallengeAccepted records a challenge that passed the cascade.
	AuditChallengeAccepted AuditKind = "challenge_accepted"
	// AuditChallengeRejected records a challenge rejected by a cascade stage.
	AuditChallengeRejected AuditKind = "challenge_rejected"
	// AuditDecision records the final verification decision.
	AuditDecision AuditKind = "decision"
	// AuditSessionAborted records an explicit session abort.
	AuditSessionAborted AuditKind = "session_aborted"
)

// AuditEvent is one append-only record of a state transition or decision.
type AuditEvent struct {
	SessionID string
	UserID    string
	Kind      AuditKind
	// Stage is the rejecting cascade stage, when the event is a rejection.
	Stage RejectionStage
	// Detail carries free-form context, such as the rejected challenge id.
	Detail string
	At     time.Time
}
