package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ecoregula/permitflow/internal/application/port"
	"github.com/ecoregula/permitflow/internal/domain/entity"
)

// AssignmentRepository implements port.AssignmentRepository
type AssignmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *sql.DB, logger *zap.Logger) port.AssignmentRepository {
	return &AssignmentRepository{db: db, logger: logger}
}

// Assign links a technician to a submission
func (r *AssignmentRepository) Assign(ctx context.Context, a *entity.TechnicianAssignment) error {
	query := `
		INSERT INTO submission_technicians (submission_id, technician_id, technician_name, assigned_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		a.SubmissionID, a.TechnicianID, a.TechnicianName, a.AssignedAt)
	if err != nil {
		r.logger.Error("Failed to assign technician", zap.Int64("submission_id", a.SubmissionID), zap.Error(err))
		return fmt.Errorf("failed to assign technician: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	a.ID = id
	return nil
}

// CountBySubmission returns how many technicians are assigned to a submission
func (r *AssignmentRepository) CountBySubmission(ctx context.Context, submissionID int64) (int, error) {
	query := `SELECT COUNT(*) FROM submission_technicians WHERE submission_id = ?`

	var count int
	if err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, submissionID).Scan(&count); err != nil {
		r.logger.Error("Failed to count assignments", zap.Int64("submission_id", submissionID), zap.Error(err))
		return 0, fmt.Errorf("failed to count assignments: %w", err)
	}
	return count, nil
}

// ListBySubmission lists a submission's assignments in assignment order
func (r *AssignmentRepository) ListBySubmission(ctx context.Context, submissionID int64) ([]*entity.TechnicianAssignment, error) {
	query := `
		SELECT id, submission_id, technician_id, technician_name, assigned_at
		FROM submission_technicians
		WHERE submission_id = ?
		ORDER BY assigned_at ASC, id ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, submissionID)
	if err != nil {
		r.logger.Error("Failed to list assignments", zap.Int64("submission_id", submissionID), zap.Error(err))
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*entity.TechnicianAssignment
	for rows.Next() {
		var a entity.TechnicianAssignment
		if err := rows.Scan(&a.ID, &a.SubmissionID, &a.TechnicianID, &a.TechnicianName, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}
	return assignments, rows.Err()
}
