package service

import "errors"

// Structural session errors. These are expected outcomes returned through
// normal control flow, never silently retried.
var (
	// ErrSessionNotFound means no session exists under the given id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired means the session deadline has passed.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionAlreadyFinalized means the session reached a terminal state
	// and accepts no further submissions.
	ErrSessionAlreadyFinalized = errors.New("session already finalized")
	// ErrChallengeMismatch means the challenge does not belong to the session.
	ErrChallengeMismatch = errors.New("challenge does not belong to session")
	// ErrChallengeExpired means the challenge deadline passed unanswered.
	ErrChallengeExpired = errors.New("challenge expired")
	// ErrDuplicateSample means the challenge already consumed a sample;
	// duplicates are rejected, never overwritten.
	ErrDuplicateSample = errors.New("challenge already has a sample")
)

// Quality errors.
var (
	// ErrLowQualitySample rejects a sample whose signal indicators fall
	// below the floor. The challenge slot is not consumed, so the caller
	// may re-record and resubmit.
	ErrLowQualitySample = errors.New("sample quality below floor")
	// ErrEnrollmentQualityTooLow rejects a completed enrollment whose
	// quality score is below the configured floor.
	ErrEnrollmentQualityTooLow = errors.New("enrollment quality score below floor")
	// ErrIncompleteSamples means complete was called before the required
	// number of samples was collected.
	ErrIncompleteSamples = errors.New("not enough samples collected")
)

// Selection and enrollment-state errors.
var (
	// ErrInsufficientPhrases means the catalog cannot supply enough distinct
	// eligible phrases of the requested difficulty.
	ErrInsufficientPhrases = errors.New("not enough eligible phrases")
	// ErrAlreadyEnrolled means a voice signature exists and the caller did
	// not request an overwrite.
	ErrAlreadyEnrolled = errors.New("user already enrolled")
	// ErrNotEnrolled means no voice signature exists for the user.
	ErrNotEnrolled = errors.New("user not enrolled")
	// ErrDecisionPending means the verification session still has
	// unanswered challenges.
	ErrDecisionPending = errors.New("verification decision pending")
)

// ErrUnavailable marks collaborator failures (inference or storage), so
// callers can distinguish them from structural errors and retry the
// external call without corrupting session state.
var ErrUnavailable = errors.New("collaborator unavailable")
