package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ecoregula/permitflow/internal/application/port"
	"github.com/ecoregula/permitflow/internal/domain/entity"
)

// AuditRepository implements port.AuditRepository
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Create appends an audit entry. Callers run it inside the same transaction
// as the transition being recorded.
func (r *AuditRepository) Create(ctx context.Context, e *entity.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (
			entity_kind, entity_id, actor_id, actor_name, actor_role,
			action, previous_state, new_state, note, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		string(e.EntityKind), e.EntityID, e.ActorID, e.ActorName, string(e.ActorRole),
		e.Action, e.PreviousState, e.NewState, nullString(e.Note), e.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create audit entry", zap.String("entity_kind", string(e.EntityKind)), zap.Int64("entity_id", e.EntityID), zap.Error(err))
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id
	return nil
}

// ListForEntity returns an entity's audit trail, newest first
func (r *AuditRepository) ListForEntity(ctx context.Context, kind entity.EntityKind, entityID int64, limit, offset int) ([]*entity.AuditEntry, error) {
	query := `
		SELECT id, entity_kind, entity_id, actor_id, actor_name, actor_role,
			action, previous_state, new_state, note, timestamp
		FROM audit_entries
		WHERE entity_kind = ? AND entity_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, string(kind), entityID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list audit entries", zap.String("entity_kind", string(kind)), zap.Int64("entity_id", entityID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.AuditEntry
	for rows.Next() {
		var e entity.AuditEntry
		var kind, role string
		var note sql.NullString
		if err := rows.Scan(&e.ID, &kind, &e.EntityID, &e.ActorID, &e.ActorName, &role,
			&e.Action, &e.PreviousState, &e.NewState, &note, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.EntityKind = entity.EntityKind(kind)
		e.ActorRole = entity.Role(role)
		e.Note = note.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
