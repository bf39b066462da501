package service

import (
	"context"

	"github.com/ecoregula/permitflow/internal/application/port"
	"github.com/ecoregula/permitflow/internal/domain/entity"
	"github.com/ecoregula/permitflow/internal/domain/fault"
)

// AuditService exposes the transition audit trail: who performed which
// transition on what, and when
type AuditService interface {
	ListForEntity(ctx context.Context, kind entity.EntityKind, entityID int64, limit, offset int) ([]*entity.AuditEntry, error)
}

type auditServiceImpl struct {
	audit  port.AuditRepository
	logger Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(audit port.AuditRepository, logger Logger) AuditService {
	return &auditServiceImpl{audit: audit, logger: logger}
}

// ListForEntity returns the audit trail for one entity, newest first
func (s *auditServiceImpl) ListForEntity(ctx context.Context, kind entity.EntityKind, entityID int64, limit, offset int) ([]*entity.AuditEntry, error) {
	entries, err := s.audit.ListForEntity(ctx, kind, entityID, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list audit entries", "error", err, "kind", kind, "entity_id", entityID)
		return nil, fault.Storage(err)
	}
	return entries, nil
}
