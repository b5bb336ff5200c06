// Package main initializes and starts the VoiceGate server, setting up
// configuration, logging, database connections, repositories, services,
// session stores, and HTTP handlers.
package main

import (
	"cmp"
	"context"
	"fmt"
	"time"

	nethttp "net/http"

	"github.com/voicegate/voicegate/internal/config"
	"github.com/voicegate/voicegate/internal/db"
	"github.com/voicegate/voicegate/internal/inference"
	"github.com/voicegate/voicegate/internal/logger"
	"github.com/voicegate/voicegate/internal/metrics"
	"github.com/voicegate/voicegate/internal/models"
	"github.com/voicegate/voicegate/internal/repository"
	"github.com/voicegate/voicegate/internal/server/handler/http"
	"github.com/voicegate/voicegate/internal/service"
	"github.com/voicegate/voicegate/internal/session"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, config-file, and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init("Info"); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	// Initialize PostgreSQL connection and schema.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}

	// Seed the phrase catalog when a phrase file is configured.
	if options.PhraseFile != "" {
		if err := db.SeedPhrases(postgresDB, options.PhraseFile, zapLogger); err != nil {
			zapLogger.Fatal("cannot seed phrase catalog", zap.Error(err))
		}
	}

	// Initialize repositories for the catalog, signatures, and audit log.
	catalog := repository.NewPostgresPhraseCatalog(postgresDB)
	signatures := repository.NewPostgresSignatureRepository(postgresDB)
	audit := repository.NewPostgresAuditRepository(postgresDB)

	// Initialize the inference sidecar client and metrics.
	engine := inference.NewRemoteEngine(options.InferenceURL)
	m := metrics.New()

	// Initialize the challenge selector over the phrase catalog.
	selector, err := service.NewChallengeSelector(catalog, service.SelectorConfig{
		ExclusionWindow: options.ExclusionWindow,
		Timeouts:        options.ChallengeTimeouts(),
	})
	if err != nil {
		zapLogger.Fatal("cannot init challenge selector", zap.Error(err))
	}

	// Initialize the cascade decision engine.
	cascade := service.NewCascadeEngine(engine, engine, engine, service.CascadeConfig{
		SpoofThreshold:     options.SpoofThreshold,
		IdentityThreshold:  options.IdentityThreshold,
		TextErrorThreshold: options.TextErrorThreshold,
	})

	// Initialize session stores and the expiry sweeper.
	enrollSessions := session.NewStore[*models.EnrollmentSession]()
	verifySessions := session.NewStore[*models.VerificationSession]()
	session.StartSweeper(context.Background(), options.SweepInterval(), zapLogger,
		enrollSessions, verifySessions)

	// Initialize the orchestrators.
	enrollment := service.NewEnrollment(selector, enrollSessions, signatures, engine, audit, m, zapLogger,
		service.EnrollmentConfig{
			RequiredSamples: options.RequiredSamples,
			SessionTTL:      options.SessionTTL(),
			QualityFloor:    options.QualityFloor,
			MinRMS:          options.MinRMS,
			MinNonSilence:   options.MinNonSilence,
		})
	verification := service.NewVerification(selector, verifySessions, signatures, cascade, audit, m, zapLogger,
		service.VerificationConfig{
			RequiredChallenges: options.VerifyChallenges,
			SessionTTL:         options.SessionTTL(),
		})

	// Create HTTP handlers for enrollment and verification endpoints.
	enrollHandler := &http.EnrollHandler{Enrollment: enrollment}
	verifyHandler := &http.VerifyHandler{Verification: verification}

	// Build the router with middleware and routes.
	router := http.NewRouter(enrollHandler, verifyHandler, zapLogger)

	// Create and start the HTTP server.
	server := &nethttp.Server{
		Addr:         options.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
	if err := server.ListenAndServe(); err != nil {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}
