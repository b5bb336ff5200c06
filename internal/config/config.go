// Package config provides functionality for managing configuration options
// for the application using command-line flags, environment variables, and
// an optional JSON config file.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/voicegate/voicegate/internal/models"
)

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string

	// InferenceURL is the base URL of the inference sidecar.
	InferenceURL string

	// PhraseFile is an optional JSON file used to seed the phrase catalog.
	PhraseFile string

	// Config is the path to the config file.
	Config string

	// RequiredSamples is the number of voice samples an enrollment collects.
	RequiredSamples int

	// VerifyChallenges is the number of challenges a verification issues.
	VerifyChallenges int

	// ExclusionWindow is the number of recent usage records per user whose
	// phrases are ineligible for reselection.
	ExclusionWindow int

	// SpoofThreshold rejects audio whose spoof likelihood is at or above it.
	SpoofThreshold float64

	// IdentityThreshold is the minimum similarity against the stored signature.
	IdentityThreshold float64

	// TextErrorThreshold is the maximum word error rate for the text gate.
	TextErrorThreshold float64

	// QualityFloor is the minimum enrollment quality score worth storing.
	QualityFloor float64

	// MinRMS is the per-sample signal level floor.
	MinRMS float64

	// MinNonSilence is the per-sample non-silence ratio floor.
	MinNonSilence float64

	// SessionTTLSeconds is how long a session may stay in flight.
	SessionTTLSeconds int

	// SweepIntervalSeconds is how often expired sessions are swept.
	SweepIntervalSeconds int

	// ChallengeTimeoutSeconds maps difficulty to the answer deadline.
	// Harder phrases must get at least as much time as easier ones.
	ChallengeTimeoutSeconds map[models.Difficulty]int
}

// options holds the current configuration values.
var options = &Options{
	RequiredSamples:      3,
	VerifyChallenges:     3,
	ExclusionWindow:      50,
	SpoofThreshold:       0.994,
	IdentityThreshold:    0.70,
	TextErrorThreshold:   0.25,
	QualityFloor:         0.65,
	MinRMS:               0.01,
	MinNonSilence:        0.10,
	SessionTTLSeconds:    300,
	SweepIntervalSeconds: 30,
	ChallengeTimeoutSeconds: map[models.Difficulty]int{
		models.Easy:   30,
		models.Medium: 45,
		models.Hard:   60,
	},
}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Port, "a", "localhost:8080", "run on ip:port server")
	flag.StringVar(&options.DatabaseDSN, "d", "", "db address")
	flag.StringVar(&options.InferenceURL, "i", "http://localhost:9090", "inference sidecar base URL")
	flag.StringVar(&options.PhraseFile, "p", "", "path to phrase seed file")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
}

// Parse parses the command-line flags, the config file, and environment
// variables to set configuration values. It returns a pointer to the Options
// struct containing the parsed configuration values.
func Parse() *Options {
	flag.Parse()

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				log.Fatalf("error while reading config file: %v", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				log.Fatalf("error while parsing config file: %v", err)
			}
		}
	}

	if serverAddress := os.Getenv("SERVER_ADDRESS"); serverAddress != "" {
		options.Port = serverAddress
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		options.DatabaseDSN = dsn
	}
	if inference := os.Getenv("INFERENCE_URL"); inference != "" {
		options.InferenceURL = inference
	}

	if err := options.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	return options
}

// Validate checks cross-field constraints that the decision layer relies on.
func (o *Options) Validate() error {
	if o.RequiredSamples < 1 {
		return fmt.Errorf("required samples must be at least 1, got %d", o.RequiredSamples)
	}
	if o.VerifyChallenges < 1 {
		return fmt.Errorf("verification challenges must be at least 1, got %d", o.VerifyChallenges)
	}
	// Challenge timeouts must be monotonically non-decreasing in difficulty.
	easy := o.ChallengeTimeoutSeconds[models.Easy]
	medium := o.ChallengeTimeoutSeconds[models.Medium]
	hard := o.ChallengeTimeoutSeconds[models.Hard]
	if easy <= 0 || medium <= 0 || hard <= 0 {
		return fmt.Errorf("challenge timeouts must be positive")
	}
	if medium < easy || hard < medium {
		return fmt.Errorf("challenge timeouts must not decrease with difficulty: easy=%d medium=%d hard=%d",
			easy, medium, hard)
	}
	return nil
}

// ChallengeTimeouts returns the per-difficulty answer deadlines as durations.
func (o *Options) ChallengeTimeouts() map[models.Difficulty]time.Duration {
	out := make(map[models.Difficulty]time.Duration, len(o.ChallengeTimeoutSeconds))
	for d, secs := range o.ChallengeTimeoutSeconds {
		out[d] = time.Duration(secs) * time.Second
	}
	return out
}

// SessionTTL returns the session lifetime as a duration.
func (o *Options) SessionTTL() time.Duration {
	return time.Duration(o.SessionTTLSeconds) * time.Second
}

// SweepInterval returns the sweeper period as a duration.
func (o *Options) SweepInterval() time.Duration {
	return time.Duration(o.SweepIntervalSeconds) * time.Second
}
