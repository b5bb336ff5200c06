package service_test

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/voicegate/voicegate/internal/models"
)

// fakeCatalog is an in-memory PhraseCatalog for orchestrator tests.
type fakeCatalog struct {
	mu      sync.Mutex
	phrases []models.Phrase
	usage   []models.UsageRecord

	eligibleErr error
	recentErr   error
	usageErr    error
}

// seedPhrases fills the catalog with n distinct phrases of one difficulty.
// All phrases share the same text so spoken-text fakes can match any of them.
func seedPhrases(n int, difficulty models.Difficulty, text string) []models.Phrase {
	phrases := make([]models.Phrase, 0, n)
	for i := 0; i < n; i++ {
		phrases = append(phrases, models.Phrase{
			ID:         fmt.Sprintf("%s-%03d", difficulty, i),
			Text:       text,
			Difficulty: difficulty,
			Language:   "en",
		})
	}
	return phrases
}

func (c *fakeCatalog) EligiblePhrases(ctx context.Context, difficulty models.Difficulty, exclude []string) ([]models.Phrase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eligibleErr != nil {
		return nil, c.eligibleErr
	}
	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	var out []models.Phrase
	for _, p := range c.phrases {
		if p.Difficulty == difficulty && !excluded[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *fakeCatalog) RecentPhraseIDs(ctx context.Context, userID string, window int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recentErr != nil {
		return nil, c.recentErr
	}
	var ids []string
	for i := len(c.usage) - 1; i >= 0 && len(ids) < window; i-- {
		if c.usage[i].UserID == userID {
			ids = append(ids, c.usage[i].PhraseID)
		}
	}
	return ids, nil
}

func (c *fakeCatalog) RecordUsage(ctx context.Context, phraseID, userID string, purpose models.UsagePurpose) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.usageErr != nil {
		return c.usageErr
	}
	c.usage = append(c.usage, models.UsageRecord{PhraseID: phraseID, UserID: userID, Purpose: purpose})
	return nil
}

func (c *fakeCatalog) usageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.usage)
}

// fakeSignatures is an in-memory SignatureRepository.
type fakeSignatures struct {
	mu       sync.Mutex
	byUser   map[string]models.VoiceSignature
	loadErr  error
	storeErr error
}

func newFakeSignatures() *fakeSignatures {
	return &fakeSignatures{byUser: make(map[string]models.VoiceSignature)}
}

func (r *fakeSignatures) Load(ctx context.Context, userID string) (models.VoiceSignature, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return models.VoiceSignature{}, false, r.loadErr
	}
	sig, ok := r.byUser[userID]
	return sig, ok, nil
}

func (r *fakeSignatures) Store(ctx context.Context, sig models.VoiceSignature) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.storeErr != nil {
		return r.storeErr
	}
	r.byUser[sig.UserID] = sig
	return nil
}

func (r *fakeSignatures) setStoreErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storeErr = err
}

// fakeAudit collects emitted events.
type fakeAudit struct {
	mu     sync.Mutex
	events []models.AuditEvent
	err    error
}

func (a *fakeAudit) Emit(ctx context.Context, event models.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAudit) kinds() []models.AuditKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.AuditKind, len(a.events))
	for i, e := range a.events {
		out[i] = e.Kind
	}
	return out
}

func (a *fakeAudit) lastOfKind(kind models.AuditKind) (models.AuditEvent, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.events) - 1; i >= 0; i-- {
		if a.events[i].Kind == kind {
			return a.events[i], true
		}
	}
	return models.AuditEvent{}, false
}

// fakeEngine implements the three inference capabilities with call counting
// so tests can assert that short-circuited stages were never invoked.
type fakeEngine struct {
	mu              sync.Mutex
	embedCalls      int
	spoofCalls      int
	transcribeCalls int

	embedFn      func(call int, audio []byte) ([]float64, error)
	spoofFn      func(call int, audio []byte) (float64, error)
	transcribeFn func(call int, audio []byte) (string, error)
}

func (e *fakeEngine) Embed(ctx context.Context, audio []byte) ([]float64, error) {
	e.mu.Lock()
	e.embedCalls++
	call := e.embedCalls
	fn := e.embedFn
	e.mu.Unlock()
	if fn == nil {
		return []float64{1, 0, 0}, nil
	}
	return fn(call, audio)
}

func (e *fakeEngine) SpoofScore(ctx context.Context, audio []byte) (float64, error) {
	e.mu.Lock()
	e.spoofCalls++
	call := e.spoofCalls
	fn := e.spoofFn
	e.mu.Unlock()
	if fn == nil {
		return 0, nil
	}
	return fn(call, audio)
}

func (e *fakeEngine) Transcribe(ctx context.Context, audio []byte) (string, error) {
	e.mu.Lock()
	e.transcribeCalls++
	call := e.transcribeCalls
	fn := e.transcribeFn
	e.mu.Unlock()
	if fn == nil {
		return "", nil
	}
	return fn(call, audio)
}

func (e *fakeEngine) calls() (embed, spoof, transcribe int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.embedCalls, e.spoofCalls, e.transcribeCalls
}

// tonePCM returns 16-bit mono PCM of a loud sine tone, which passes the
// sample quality floors.
func tonePCM(frames int) []byte {
	out := make([]byte, 2*frames)
	for i := 0; i < frames; i++ {
		v := int16(12000 * math.Sin(float64(i)/8))
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

// silencePCM returns 16-bit mono PCM of pure silence, which fails the
// sample quality floors.
func silencePCM(frames int) []byte {
	return make([]byte, 2*frames)
}
