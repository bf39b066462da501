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

const requestColumns = `
	id, applicant_id, type, currency, total_value, status,
	validated_by_technician, technician_id, validated_by_chief, chief_id,
	rupe_reference, rupe_document, rupe_paid, rupe_validated,
	approved_by_board, rejection_reason, created_at, updated_at, approved_at
`

// PermitRequestRepository implements port.PermitRequestRepository
type PermitRequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPermitRequestRepository creates a new permit request repository
func NewPermitRequestRepository(db *sql.DB, logger *zap.Logger) port.PermitRequestRepository {
	return &PermitRequestRepository{db: db, logger: logger}
}

// Create inserts a new request and its line items
func (r *PermitRequestRepository) Create(ctx context.Context, req *entity.PermitRequest) error {
	query := `
		INSERT INTO permit_requests (
			applicant_id, type, currency, total_value, status,
			validated_by_technician, validated_by_chief,
			rupe_paid, rupe_validated, approved_by_board,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 0, 0, 0, 0, 0, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		req.ApplicantID,
		req.Type,
		req.Currency,
		req.TotalValue,
		req.Status.String(),
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create permit request", zap.Error(err))
		return fmt.Errorf("failed to create permit request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	req.ID = id

	for i := range req.Items {
		item := &req.Items[i]
		item.RequestID = id
		itemResult, err := getExecutor(ctx, r.db).ExecContext(ctx, `
			INSERT INTO permit_request_items (request_id, description, tariff_code, quantity, unit_value)
			VALUES (?, ?, ?, ?, ?)
		`, id, item.Description, item.TariffCode, item.Quantity, item.UnitValue)
		if err != nil {
			r.logger.Error("Failed to create line item", zap.Int64("request_id", id), zap.Error(err))
			return fmt.Errorf("failed to create line item: %w", err)
		}
		if item.ID, err = itemResult.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get line item id: %w", err)
		}
	}

	return nil
}

// GetByID retrieves a request by id, nil when absent
func (r *PermitRequestRepository) GetByID(ctx context.Context, id int64) (*entity.PermitRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM permit_requests WHERE id = ?`

	req, err := scanRequest(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get permit request", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get permit request: %w", err)
	}
	return req, nil
}

// Update writes all mutable fields of a request
func (r *PermitRequestRepository) Update(ctx context.Context, req *entity.PermitRequest) error {
	query := `
		UPDATE permit_requests SET
			status = ?,
			validated_by_technician = ?, technician_id = ?,
			validated_by_chief = ?, chief_id = ?,
			rupe_reference = ?, rupe_document = ?,
			rupe_paid = ?, rupe_validated = ?,
			approved_by_board = ?, rejection_reason = ?,
			updated_at = ?, approved_at = ?
		WHERE id = ?
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		req.Status.String(),
		req.ValidatedByTechnician, nullString(req.TechnicianID),
		req.ValidatedByChief, nullString(req.ChiefID),
		nullString(req.RUPEReference), nullString(req.RUPEDocument),
		req.RUPEPaid, req.RUPEValidated,
		req.ApprovedByBoard, nullString(req.RejectionReason),
		req.UpdatedAt, req.ApprovedAt,
		req.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update permit request", zap.Int64("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to update permit request: %w", err)
	}
	return nil
}

// OldestInTechnicianQueue returns the oldest request awaiting technician
// validation, ties broken by id ascending
func (r *PermitRequestRepository) OldestInTechnicianQueue(ctx context.Context) (*entity.PermitRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM permit_requests
		WHERE status = ? AND validated_by_technician = 0
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`
	return r.oldest(ctx, query, workflow.StatePending.String())
}

// OldestInChiefQueue returns the oldest technician-validated request
// awaiting chief validation
func (r *PermitRequestRepository) OldestInChiefQueue(ctx context.Context) (*entity.PermitRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM permit_requests
		WHERE status = ? AND validated_by_technician = 1 AND validated_by_chief = 0
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`
	return r.oldest(ctx, query, workflow.StatePending.String())
}

func (r *PermitRequestRepository) oldest(ctx context.Context, query string, args ...interface{}) (*entity.PermitRequest, error) {
	req, err := scanRequest(getExecutor(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to query queue head", zap.Error(err))
		return nil, fmt.Errorf("failed to query queue head: %w", err)
	}
	return req, nil
}

// ListPendingForRole lists the requests awaiting the given role, oldest first
func (r *PermitRequestRepository) ListPendingForRole(ctx context.Context, role entity.Role, limit, offset int) ([]*entity.PermitRequest, error) {
	var predicate string
	args := []interface{}{}

	switch role {
	case entity.RoleTechnician:
		predicate = `status = ? AND validated_by_technician = 0`
		args = append(args, workflow.StatePending.String())
	case entity.RoleChief:
		predicate = `status = ? AND validated_by_technician = 1 AND validated_by_chief = 0`
		args = append(args, workflow.StatePending.String())
	case entity.RoleBoard:
		predicate = `status = ?`
		args = append(args, workflow.StatePaymentConfirmed.String())
	case entity.RoleApplicant:
		predicate = `status = ?`
		args = append(args, workflow.StateAwaitingPayment.String())
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}

	query := `
		SELECT ` + requestColumns + `
		FROM permit_requests
		WHERE ` + predicate + `
		ORDER BY created_at ASC, id ASC
		LIMIT ? OFFSET ?
	`
	args = append(args, limit, offset)

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list pending requests", zap.String("role", string(role)), zap.Error(err))
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	defer rows.Close()

	var reqs []*entity.PermitRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan permit request: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// ItemsByRequest returns a request's line items in insertion order
func (r *PermitRequestRepository) ItemsByRequest(ctx context.Context, requestID int64) ([]entity.LineItem, error) {
	query := `
		SELECT id, request_id, description, tariff_code, quantity, unit_value
		FROM permit_request_items
		WHERE request_id = ?
		ORDER BY id ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to list line items", zap.Int64("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	defer rows.Close()

	var items []entity.LineItem
	for rows.Next() {
		var it entity.LineItem
		if err := rows.Scan(&it.ID, &it.RequestID, &it.Description, &it.TariffCode, &it.Quantity, &it.UnitValue); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*entity.PermitRequest, error) {
	var req entity.PermitRequest
	var status string
	var technicianID, chiefID, rupeRef, rupeDoc, rejection sql.NullString
	var approvedAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.ApplicantID,
		&req.Type,
		&req.Currency,
		&req.TotalValue,
		&status,
		&req.ValidatedByTechnician,
		&technicianID,
		&req.ValidatedByChief,
		&chiefID,
		&rupeRef,
		&rupeDoc,
		&req.RUPEPaid,
		&req.RUPEValidated,
		&req.ApprovedByBoard,
		&rejection,
		&req.CreatedAt,
		&req.UpdatedAt,
		&approvedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Status = workflow.State(status)
	req.TechnicianID = technicianID.String
	req.ChiefID = chiefID.String
	req.RUPEReference = rupeRef.String
	req.RUPEDocument = rupeDoc.String
	req.RejectionReason = rejection.String
	if approvedAt.Valid {
		req.ApprovedAt = &approvedAt.Time
	}

	return &req, nil
}

// nullString maps "" to NULL
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
