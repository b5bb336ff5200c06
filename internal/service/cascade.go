package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/voicegate/voicegate/internal/inference"
	"github.com/voicegate/voicegate/internal/models"
)

// CascadeConfig holds the three gate thresholds. Defaults reflect a spoof
// threshold close to 1 (only near-certain synthetic audio is blocked at
// stage 1), an identity threshold around 0.7, and a text error threshold
// around 25%.
type CascadeConfig struct {
	SpoofThreshold     float64
	IdentityThreshold  float64
	TextErrorThreshold float64
}

// CascadeEngine gates a single audio sample through liveness, identity, and
// spoken-text checks, in that order, short-circuiting on the first failure.
// A stage after a failing stage is never invoked, not merely ignored.
type CascadeEngine struct {
	spoof inference.SpoofDetector
	embed inference.Embedder
	stt   inference.Transcriber
	cfg   CascadeConfig
}

// NewCascadeEngine constructs the engine over the three capabilities.
func NewCascadeEngine(spoof inference.SpoofDetector, embed inference.Embedder, stt inference.Transcriber, cfg CascadeConfig) *CascadeEngine {
	return &CascadeEngine{spoof: spoof, embed: embed, stt: stt, cfg: cfg}
}

// Evaluate runs the cascade for one audio sample against the enrolled
// signature. When expectedText is empty the spoken-text gate is trivially
// passed and the transcriber is not invoked.
//
// A non-nil error means a capability failed; no CascadeResult is produced
// and the caller may retry the evaluation. A rejection is not an error: it
// comes back as a CascadeResult with the rejecting stage attributed.
func (e *CascadeEngine) Evaluate(ctx context.Context, audio []byte, sig models.VoiceSignature, expectedText string) (models.CascadeResult, error) {
	var res models.CascadeResult

	// Stage 1: liveness / anti-spoof.
	spoofScore, err := e.spoof.SpoofScore(ctx, audio)
	if err != nil {
		return models.CascadeResult{}, fmt.Errorf("spoof score: %w: %w", ErrUnavailable, err)
	}
	res.SpoofScore = spoofScore
	res.SpoofPassed = spoofScore < e.cfg.SpoofThreshold
	if !res.SpoofPassed {
		res.RejectionStage = models.StageLiveness
		return res, nil
	}

	// Stage 2: speaker identity.
	emb, err := e.embed.Embed(ctx, audio)
	if err != nil {
		return models.CascadeResult{}, fmt.Errorf("embed audio: %w: %w", ErrUnavailable, err)
	}
	res.IdentityScore = IdentityScore(emb, sig.Embedding)
	res.IdentityPassed = res.IdentityScore >= e.cfg.IdentityThreshold
	if !res.IdentityPassed {
		res.RejectionStage = models.StageIdentity
		return res, nil
	}

	// Stage 3: spoken text, only when an expected text was supplied.
	res.TextPassed = true
	if expectedText != "" {
		transcript, err := e.stt.Transcribe(ctx, audio)
		if err != nil {
			return models.CascadeResult{}, fmt.Errorf("transcribe audio: %w: %w", ErrUnavailable, err)
		}
		res.TextErrorRate = WordErrorRate(expectedText, transcript)
		res.TextPassed = res.TextErrorRate < e.cfg.TextErrorThreshold
		if !res.TextPassed {
			res.RejectionStage = models.StageText
			return res, nil
		}
	}

	res.Accepted = true
	return res, nil
}

// IdentityScore maps the cosine similarity of two embeddings into [0,1].
// Negative similarity clamps to zero.
func IdentityScore(a, b []float64) float64 {
	return math.Max(0, Cosine(a, b))
}

// Cosine returns the cosine similarity of two vectors, or 0 when either
// has zero norm or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// WordErrorRate returns the word-level edit distance between the expected
// and transcribed text, normalized by the expected word count. Both texts
// are lowercased and stripped of punctuation before comparison.
func WordErrorRate(expected, transcript string) float64 {
	ref := normalizeWords(expected)
	hyp := normalizeWords(transcript)
	if len(ref) == 0 {
		if len(hyp) == 0 {
			return 0
		}
		return 1
	}
	return float64(editDistance(ref, hyp)) / float64(len(ref))
}

// normalizeWords lowercases the text, drops punctuation, and splits on
// whitespace.
func normalizeWords(text string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n':
			b.WriteRune(' ')
		default:
			// drop punctuation; non-ASCII letters pass through
			if r > 127 {
				b.WriteRune(r)
			}
		}
	}
	return strings.Fields(b.String())
}

// editDistance is the Levenshtein distance over word slices.
func editDistance(ref, hyp []string) int {
	prev := make([]int, len(hyp)+1)
	curr := make([]int, len(hyp)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ref); i++ {
		curr[0] = i
		for j := 1; j <= len(hyp); j++ {
			cost := 1
			if ref[i-1] == hyp[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(hyp)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
