package service

import (
	"context"
	"strings"
	"time"

	"github.com/ecoregula/permitflow/internal/application/port"
	"github.com/ecoregula/permitflow/internal/domain/entity"
	"github.com/ecoregula/permitflow/internal/domain/fault"
)

// requireRole extracts the acting identity and checks it carries one of the
// allowed roles
func requireRole(ctx context.Context, roles ...entity.Role) (port.Identity, error) {
	id, ok := port.IdentityFrom(ctx)
	if !ok {
		return port.Identity{}, fault.Validation("acting identity is required")
	}

	for _, r := range roles {
		if id.Role == r {
			return id, nil
		}
	}

	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return port.Identity{}, fault.Validationf("action requires role %s, acting user has %s", strings.Join(names, " or "), id.Role)
}

// auditEntryFor builds the audit row recorded alongside a transition
func auditEntryFor(id port.Identity, kind entity.EntityKind, entityID int64, action, prev, next, note string, at time.Time) *entity.AuditEntry {
	return &entity.AuditEntry{
		EntityKind:    kind,
		EntityID:      entityID,
		ActorID:       id.UserID,
		ActorName:     id.Name,
		ActorRole:     id.Role,
		Action:        action,
		PreviousState: prev,
		NewState:      next,
		Note:          note,
		Timestamp:     at,
	}
}
