// Package inference defines the neural capability contracts the decision
// layer consumes, and an HTTP-backed implementation that talks to an
// inference sidecar. The decision layer never depends on a concrete engine.
package inference

import "context"

// Embedder turns raw audio into an identity embedding vector.
type Embedder interface {
	// Embed computes the speaker embedding for the given audio.
	Embed(ctx context.Context, audio []byte) ([]float64, error)
}

// SpoofDetector scores how likely audio is synthetic or replayed.
type SpoofDetector interface {
	// SpoofScore returns the spoof likelihood in [0,1]; higher means more
	// likely synthetic.
	SpoofScore(ctx context.Context, audio []byte) (float64, error)
}

// Transcriber turns audio into spoken text.
type Transcriber interface {
	// Transcribe returns the text spoken in the audio.
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Engine bundles the three capabilities a full deployment provides.
type Engine interface {
	Embedder
	SpoofDetector
	Transcriber
}
