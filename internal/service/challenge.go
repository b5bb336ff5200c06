// Package service implements the decision and session-orchestration layer:
// challenge selection, the enrollment and verification state machines, and
// the cascade decision engine.
package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voicegate/voicegate/internal/models"
)

// PhraseCatalog defines the catalog operations the selector needs.
type PhraseCatalog interface {
	// EligiblePhrases returns all phrases of the given difficulty whose ids
	// are not in the exclusion set.
	EligiblePhrases(ctx context.Context, difficulty models.Difficulty, exclude []string) ([]models.Phrase, error)
	// RecentPhraseIDs returns the phrase ids from the user's most recent
	// usage records, newest first, limited to window entries.
	RecentPhraseIDs(ctx context.Context, userID string, window int) ([]string, error)
	// RecordUsage appends a usage record for the phrase.
	RecordUsage(ctx context.Context, phraseID, userID string, purpose models.UsagePurpose) error
}

// SelectorConfig configures the challenge selector.
type SelectorConfig struct {
	// ExclusionWindow is how many recent usage records per user define the
	// ineligible phrase set.
	ExclusionWindow int
	// Timeouts maps difficulty to the challenge answer deadline. The
	// deadline must not decrease with difficulty.
	Timeouts map[models.Difficulty]time.Duration
}

// ChallengeSelector picks distinct random phrases for a user, excluding the
// user's recently used phrases, and stamps each resulting challenge with an
// expiry derived from its difficulty.
type ChallengeSelector struct {
	catalog PhraseCatalog
	cfg     SelectorConfig

	// mu guards rng; math/rand sources are not safe for concurrent use.
	mu  sync.Mutex
	rng *rand.Rand

	now func() time.Time
}

// NewChallengeSelector constructs a selector over the given catalog.
// It fails if the timeout table decreases with difficulty.
func NewChallengeSelector(catalog PhraseCatalog, cfg SelectorConfig) (*ChallengeSelector, error) {
	order := []models.Difficulty{models.Easy, models.Medium, models.Hard}
	var prev time.Duration
	for _, d := range order {
		t, ok := cfg.Timeouts[d]
		if !ok || t <= 0 {
			return nil, fmt.Errorf("missing or non-positive timeout for difficulty %q", d)
		}
		if t < prev {
			return nil, fmt.Errorf("timeout for difficulty %q must not be shorter than the previous difficulty", d)
		}
		prev = t
	}
	if cfg.ExclusionWindow < 0 {
		return nil, fmt.Errorf("exclusion window must not be negative")
	}
	return &ChallengeSelector{
		catalog: catalog,
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}, nil
}

// SetClock replaces the selector's clock. Intended for tests.
func (s *ChallengeSelector) SetClock(now func() time.Time) { s.now = now }

// SetSeed reseeds the selector's random source. Intended for tests.
func (s *ChallengeSelector) SetSeed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rand.New(rand.NewSource(seed))
}

// Select picks count distinct phrases of the given difficulty for the user,
// uniformly at random over the eligible set, and returns them as challenges.
//
// A usage record is emitted per phrase at issuance time, so a phrase cannot
// be reissued to the same user while still in flight, even across two
// concurrently started sessions. Fails with ErrInsufficientPhrases when the
// catalog cannot supply count distinct eligible phrases.
func (s *ChallengeSelector) Select(ctx context.Context, userID string, difficulty models.Difficulty, count int, purpose models.UsagePurpose) ([]models.Challenge, error) {
	if count < 1 {
		return nil, fmt.Errorf("challenge count must be at least 1, got %d", count)
	}

	exclude, err := s.catalog.RecentPhraseIDs(ctx, userID, s.cfg.ExclusionWindow)
	if err != nil {
		return nil, fmt.Errorf("load exclusion window: %w: %w", ErrUnavailable, err)
	}

	eligible, err := s.catalog.EligiblePhrases(ctx, difficulty, exclude)
	if err != nil {
		return nil, fmt.Errorf("load eligible phrases: %w: %w", ErrUnavailable, err)
	}
	if len(eligible) < count {
		return nil, fmt.Errorf("%w: need %d phrases of difficulty %q, have %d",
			ErrInsufficientPhrases, count, difficulty, len(eligible))
	}

	s.mu.Lock()
	perm := s.rng.Perm(len(eligible))
	s.mu.Unlock()

	now := s.now()
	expiry := now.Add(s.cfg.Timeouts[difficulty])

	challenges := make([]models.Challenge, 0, count)
	for i := 0; i < count; i++ {
		phrase := eligible[perm[i]]
		if err := s.catalog.RecordUsage(ctx, phrase.ID, userID, purpose); err != nil {
			return nil, fmt.Errorf("record phrase usage: %w: %w", ErrUnavailable, err)
		}
		challenges = append(challenges, models.Challenge{
			ID:        uuid.NewString(),
			PhraseID:  phrase.ID,
			Text:      phrase.Text,
			Order:     i + 1,
			IssuedAt:  now,
			ExpiresAt: expiry,
			State:     models.ChallengePending,
		})
	}
	return challenges, nil
}
