package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ecoregula/permitflow/internal/application/port"
	"github.com/ecoregula/permitflow/internal/domain/entity"
)

// PermitRepository implements port.PermitRepository
type PermitRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPermitRepository creates a new permit repository
func NewPermitRepository(db *sql.DB, logger *zap.Logger) port.PermitRepository {
	return &PermitRepository{db: db, logger: logger}
}

// Create inserts the permit and one child row per tariff line
func (r *PermitRepository) Create(ctx context.Context, permit *entity.Permit) error {
	query := `
		INSERT INTO permits (number, year, seq, request_id, permit_type, signer_name, emitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		permit.Number,
		permit.Year,
		permit.Sequence,
		permit.RequestID,
		permit.PermitType,
		permit.SignerName,
		permit.EmittedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create permit", zap.String("number", permit.Number), zap.Error(err))
		return fmt.Errorf("failed to create permit: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	permit.ID = id

	for i := range permit.Items {
		item := &permit.Items[i]
		item.PermitID = id
		itemResult, err := getExecutor(ctx, r.db).ExecContext(ctx, `
			INSERT INTO permit_items (permit_id, tariff_code, description)
			VALUES (?, ?, ?)
		`, id, item.TariffCode, item.Description)
		if err != nil {
			r.logger.Error("Failed to create permit item", zap.Int64("permit_id", id), zap.Error(err))
			return fmt.Errorf("failed to create permit item: %w", err)
		}
		if item.ID, err = itemResult.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get permit item id: %w", err)
		}
	}

	return nil
}

// GetByRequestID returns the permit issued for a request, nil when none exists
func (r *PermitRepository) GetByRequestID(ctx context.Context, requestID int64) (*entity.Permit, error) {
	query := `
		SELECT id, number, year, seq, request_id, permit_type, signer_name, document_path, emitted_at
		FROM permits
		WHERE request_id = ?
	`

	permit, err := r.scanPermit(getExecutor(ctx, r.db).QueryRowContext(ctx, query, requestID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get permit by request", zap.Int64("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get permit: %w", err)
	}

	permit.Items, err = r.itemsByPermit(ctx, permit.ID)
	if err != nil {
		return nil, err
	}
	return permit, nil
}

// MaxSequenceForYear returns the highest sequence allocated in a year, 0
// when none. Runs against the caller's transaction so allocation is
// serialized by the store's writer lock.
func (r *PermitRepository) MaxSequenceForYear(ctx context.Context, year int) (int, error) {
	query := `SELECT COALESCE(MAX(seq), 0) FROM permits WHERE year = ?`

	var max int
	if err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, year).Scan(&max); err != nil {
		r.logger.Error("Failed to query max permit sequence", zap.Int("year", year), zap.Error(err))
		return 0, fmt.Errorf("failed to query max permit sequence: %w", err)
	}
	return max, nil
}

// ListByYear lists a year's permits, sequence ascending, items included
func (r *PermitRepository) ListByYear(ctx context.Context, year int) ([]*entity.Permit, error) {
	query := `
		SELECT id, number, year, seq, request_id, permit_type, signer_name, document_path, emitted_at
		FROM permits
		WHERE year = ?
		ORDER BY seq ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, year)
	if err != nil {
		r.logger.Error("Failed to list permits", zap.Int("year", year), zap.Error(err))
		return nil, fmt.Errorf("failed to list permits: %w", err)
	}
	defer rows.Close()

	var permits []*entity.Permit
	for rows.Next() {
		permit, err := r.scanPermit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan permit: %w", err)
		}
		permits = append(permits, permit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range permits {
		if p.Items, err = r.itemsByPermit(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	return permits, nil
}

// UpdateDocumentPath records the stored manifest path on the permit row
func (r *PermitRepository) UpdateDocumentPath(ctx context.Context, id int64, path string) error {
	query := `UPDATE permits SET document_path = ? WHERE id = ?`

	if _, err := getExecutor(ctx, r.db).ExecContext(ctx, query, path, id); err != nil {
		r.logger.Error("Failed to update permit document path", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update permit document path: %w", err)
	}
	return nil
}

func (r *PermitRepository) scanPermit(row rowScanner) (*entity.Permit, error) {
	var permit entity.Permit
	var docPath sql.NullString

	err := row.Scan(
		&permit.ID,
		&permit.Number,
		&permit.Year,
		&permit.Sequence,
		&permit.RequestID,
		&permit.PermitType,
		&permit.SignerName,
		&docPath,
		&permit.EmittedAt,
	)
	if err != nil {
		return nil, err
	}

	permit.DocumentPath = docPath.String
	return &permit, nil
}

func (r *PermitRepository) itemsByPermit(ctx context.Context, permitID int64) ([]entity.PermitItem, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT id, permit_id, tariff_code, description
		FROM permit_items
		WHERE permit_id = ?
		ORDER BY id ASC
	`, permitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permit items: %w", err)
	}
	defer rows.Close()

	var items []entity.PermitItem
	for rows.Next() {
		var it entity.PermitItem
		if err := rows.Scan(&it.ID, &it.PermitID, &it.TariffCode, &it.Description); err != nil {
			return nil, fmt.Errorf("failed to scan permit item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
