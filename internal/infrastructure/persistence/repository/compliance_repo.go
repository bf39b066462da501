package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ecoregula/permitflow/internal/application/port"
	"github.com/ecoregula/permitflow/internal/domain/entity"
	"github.com/ecoregula/permitflow/internal/domain/workflow"
)

// ComplianceConfigurationRepository implements port.ComplianceConfigurationRepository
type ComplianceConfigurationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewComplianceConfigurationRepository creates a new configuration repository
func NewComplianceConfigurationRepository(db *sql.DB, logger *zap.Logger) port.ComplianceConfigurationRepository {
	return &ComplianceConfigurationRepository{db: db, logger: logger}
}

// Create inserts a configuration; uniqueness per entity is enforced by the
// schema constraint
func (r *ComplianceConfigurationRepository) Create(ctx context.Context, cfg *entity.ComplianceConfiguration) error {
	query := `
		INSERT INTO compliance_configurations (entity_id, frequency, start_date, created_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		cfg.EntityID, string(cfg.Frequency), cfg.StartDate, cfg.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create compliance configuration", zap.Int64("entity_id", cfg.EntityID), zap.Error(err))
		return fmt.Errorf("failed to create compliance configuration: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	cfg.ID = id
	return nil
}

// GetByID retrieves a configuration by id, nil when absent
func (r *ComplianceConfigurationRepository) GetByID(ctx context.Context, id int64) (*entity.ComplianceConfiguration, error) {
	query := `SELECT id, entity_id, frequency, start_date, created_at FROM compliance_configurations WHERE id = ?`
	return r.scanOne(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
}

// GetByEntity retrieves the entity's active configuration, nil when absent
func (r *ComplianceConfigurationRepository) GetByEntity(ctx context.Context, entityID int64) (*entity.ComplianceConfiguration, error) {
	query := `SELECT id, entity_id, frequency, start_date, created_at FROM compliance_configurations WHERE entity_id = ?`
	return r.scanOne(getExecutor(ctx, r.db).QueryRowContext(ctx, query, entityID))
}

func (r *ComplianceConfigurationRepository) scanOne(row rowScanner) (*entity.ComplianceConfiguration, error) {
	var cfg entity.ComplianceConfiguration
	var freq string

	err := row.Scan(&cfg.ID, &cfg.EntityID, &freq, &cfg.StartDate, &cfg.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get compliance configuration", zap.Error(err))
		return nil, fmt.Errorf("failed to get compliance configuration: %w", err)
	}

	cfg.Frequency = entity.Frequency(freq)
	return &cfg, nil
}

const periodColumns = `
	id, configuration_id, sequence, start_date, end_date, state,
	reopening_reason, reopening_requested_at, reopening_valid_until,
	reopening_rupe_reference, reopening_rupe_document, created_at, updated_at
`

// CompliancePeriodRepository implements port.CompliancePeriodRepository
type CompliancePeriodRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCompliancePeriodRepository creates a new period repository
func NewCompliancePeriodRepository(db *sql.DB, logger *zap.Logger) port.CompliancePeriodRepository {
	return &CompliancePeriodRepository{db: db, logger: logger}
}

// CreateBatch inserts a configuration's generated periods
func (r *CompliancePeriodRepository) CreateBatch(ctx context.Context, periods []*entity.CompliancePeriod) error {
	query := `
		INSERT INTO compliance_periods (configuration_id, sequence, start_date, end_date, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for _, p := range periods {
		result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
			p.ConfigurationID, p.Sequence, p.StartDate, p.EndDate, p.State.String(), p.CreatedAt, p.UpdatedAt)
		if err != nil {
			r.logger.Error("Failed to create compliance period", zap.Int64("configuration_id", p.ConfigurationID), zap.Error(err))
			return fmt.Errorf("failed to create compliance period: %w", err)
		}
		if p.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}
	return nil
}

// GetByID retrieves a period by id, nil when absent
func (r *CompliancePeriodRepository) GetByID(ctx context.Context, id int64) (*entity.CompliancePeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM compliance_periods WHERE id = ?`

	period, err := scanPeriod(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get compliance period", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get compliance period: %w", err)
	}
	return period, nil
}

// ListByConfiguration lists a configuration's periods in sequence order
func (r *CompliancePeriodRepository) ListByConfiguration(ctx context.Context, configurationID int64) ([]*entity.CompliancePeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM compliance_periods WHERE configuration_id = ? ORDER BY sequence ASC`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, configurationID)
	if err != nil {
		r.logger.Error("Failed to list compliance periods", zap.Int64("configuration_id", configurationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list compliance periods: %w", err)
	}
	defer rows.Close()

	var periods []*entity.CompliancePeriod
	for rows.Next() {
		period, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan compliance period: %w", err)
		}
		periods = append(periods, period)
	}
	return periods, rows.Err()
}

// Update writes a period's state and reopening fields
func (r *CompliancePeriodRepository) Update(ctx context.Context, period *entity.CompliancePeriod) error {
	query := `
		UPDATE compliance_periods SET
			state = ?,
			reopening_reason = ?, reopening_requested_at = ?, reopening_valid_until = ?,
			reopening_rupe_reference = ?, reopening_rupe_document = ?,
			updated_at = ?
		WHERE id = ?
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		period.State.String(),
		nullString(period.ReopeningReason), period.ReopeningRequestedAt, period.ReopeningValidUntil,
		nullString(period.ReopeningRUPERef), nullString(period.ReopeningRUPEDoc),
		period.UpdatedAt,
		period.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update compliance period", zap.Int64("id", period.ID), zap.Error(err))
		return fmt.Errorf("failed to update compliance period: %w", err)
	}
	return nil
}

func scanPeriod(row rowScanner) (*entity.CompliancePeriod, error) {
	var p entity.CompliancePeriod
	var state string
	var reason, rupeRef, rupeDoc sql.NullString
	var requestedAt, validUntil sql.NullTime

	err := row.Scan(
		&p.ID,
		&p.ConfigurationID,
		&p.Sequence,
		&p.StartDate,
		&p.EndDate,
		&state,
		&reason,
		&requestedAt,
		&validUntil,
		&rupeRef,
		&rupeDoc,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.State = workflow.State(state)
	p.ReopeningReason = reason.String
	p.ReopeningRUPERef = rupeRef.String
	p.ReopeningRUPEDoc = rupeDoc.String
	if requestedAt.Valid {
		p.ReopeningRequestedAt = &requestedAt.Time
	}
	if validUntil.Valid {
		p.ReopeningValidUntil = &validUntil.Time
	}

	return &p, nil
}
