package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/credential-ledger-api/internal/models"
)

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// AuditEmitter records audit entries fire-and-forget. Failures are logged and
// never returned to the operation being audited.
type AuditEmitter struct {
	repo   auditWriter
	logger *zap.Logger
}

// NewAuditEmitter constructs the emitter; a nil repo disables auditing.
func NewAuditEmitter(repo auditWriter, logger *zap.Logger) *AuditEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditEmitter{repo: repo, logger: logger}
}

// Emit persists one entry.
func (a *AuditEmitter) Emit(ctx context.Context, actorID, action, entityType, entityID string, metadata map[string]interface{}) {
	if a == nil || a.repo == nil {
		return
	}
	var payload []byte
	if len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			a.logger.Warn("failed to encode audit metadata", zap.String("action", action), zap.Error(err))
		} else {
			payload = data
		}
	}
	if actorID == "" {
		actorID = models.SystemActor
	}
	err := a.repo.Create(ctx, &models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   payload,
	})
	if err != nil {
		a.logger.Warn("failed to persist audit log",
			zap.String("action", action),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}
