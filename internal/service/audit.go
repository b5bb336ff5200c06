package service

import (
	"context"
	"time"

	"github.com/voicegate/voicegate/internal/models"
	"go.uber.org/zap"
)

// AuditEmitter is the append-only sink for state transitions and decisions.
type AuditEmitter interface {
	Emit(ctx context.Context, event models.AuditEvent) error
}

// SignatureRepository persists voice signatures.
type SignatureRepository interface {
	// Load returns the signature for the user; found is false when the
	// user is not enrolled.
	Load(ctx context.Context, userID string) (sig models.VoiceSignature, found bool, err error)
	// Store atomically replaces any prior signature for the user.
	Store(ctx context.Context, sig models.VoiceSignature) error
}

// emitAudit appends an audit event, logging failures instead of returning
// them: audit availability must never decide the caller's primary operation.
func emitAudit(ctx context.Context, emitter AuditEmitter, log *zap.Logger, event models.AuditEvent) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	if err := emitter.Emit(ctx, event); err != nil {
		log.Error("audit emit failed",
			zap.String("session_id", event.SessionID),
			zap.String("kind", string(event.Kind)),
			zap.Error(err),
		)
	}
}
