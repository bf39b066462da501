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

const submissionColumns = `
	id, entity_id, period_id, report_path, process_state,
	opinion_outcome, opinion_note,
	rupe_reference, rupe_document, rupe_paid, rupe_validated,
	visit_date, visit_done_at, final_document_path,
	created_at, updated_at
`

// ComplianceSubmissionRepository implements port.ComplianceSubmissionRepository
type ComplianceSubmissionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewComplianceSubmissionRepository creates a new submission repository
func NewComplianceSubmissionRepository(db *sql.DB, logger *zap.Logger) port.ComplianceSubmissionRepository {
	return &ComplianceSubmissionRepository{db: db, logger: logger}
}

// Create inserts a submission; one submission per period is enforced by the
// schema constraint
func (r *ComplianceSubmissionRepository) Create(ctx context.Context, sub *entity.ComplianceSubmission) error {
	query := `
		INSERT INTO compliance_submissions (
			entity_id, period_id, report_path, process_state,
			opinion_outcome, opinion_note,
			rupe_reference, rupe_document, rupe_paid, rupe_validated,
			visit_date, visit_done_at, final_document_path,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		sub.EntityID, sub.PeriodID, sub.ReportPath, sub.ProcessState.String(),
		nullString(sub.OpinionOutcome), nullString(sub.OpinionNote),
		nullString(sub.RUPEReference), nullString(sub.RUPEDocument), sub.RUPEPaid, sub.RUPEValidated,
		sub.VisitDate, sub.VisitDoneAt, nullString(sub.FinalDocPath),
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create compliance submission", zap.Int64("period_id", sub.PeriodID), zap.Error(err))
		return fmt.Errorf("failed to create compliance submission: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	sub.ID = id
	return nil
}

// GetByID retrieves a submission by id, nil when absent
func (r *ComplianceSubmissionRepository) GetByID(ctx context.Context, id int64) (*entity.ComplianceSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM compliance_submissions WHERE id = ?`
	return r.one(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
}

// GetByPeriod retrieves the period's submission, nil when absent
func (r *ComplianceSubmissionRepository) GetByPeriod(ctx context.Context, periodID int64) (*entity.ComplianceSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM compliance_submissions WHERE period_id = ?`
	return r.one(getExecutor(ctx, r.db).QueryRowContext(ctx, query, periodID))
}

// Update writes all mutable submission fields
func (r *ComplianceSubmissionRepository) Update(ctx context.Context, sub *entity.ComplianceSubmission) error {
	query := `
		UPDATE compliance_submissions SET
			report_path = ?, process_state = ?,
			opinion_outcome = ?, opinion_note = ?,
			rupe_reference = ?, rupe_document = ?, rupe_paid = ?, rupe_validated = ?,
			visit_date = ?, visit_done_at = ?, final_document_path = ?,
			updated_at = ?
		WHERE id = ?
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		sub.ReportPath, sub.ProcessState.String(),
		nullString(sub.OpinionOutcome), nullString(sub.OpinionNote),
		nullString(sub.RUPEReference), nullString(sub.RUPEDocument), sub.RUPEPaid, sub.RUPEValidated,
		sub.VisitDate, sub.VisitDoneAt, nullString(sub.FinalDocPath),
		sub.UpdatedAt,
		sub.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update compliance submission", zap.Int64("id", sub.ID), zap.Error(err))
		return fmt.Errorf("failed to update compliance submission: %w", err)
	}
	return nil
}

func (r *ComplianceSubmissionRepository) one(row rowScanner) (*entity.ComplianceSubmission, error) {
	var s entity.ComplianceSubmission
	var state string
	var outcome, note, rupeRef, rupeDoc, finalDoc sql.NullString
	var visitDate, visitDoneAt sql.NullTime

	err := row.Scan(
		&s.ID,
		&s.EntityID,
		&s.PeriodID,
		&s.ReportPath,
		&state,
		&outcome,
		&note,
		&rupeRef,
		&rupeDoc,
		&s.RUPEPaid,
		&s.RUPEValidated,
		&visitDate,
		&visitDoneAt,
		&finalDoc,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get compliance submission", zap.Error(err))
		return nil, fmt.Errorf("failed to get compliance submission: %w", err)
	}

	s.ProcessState = workflow.State(state)
	s.OpinionOutcome = outcome.String
	s.OpinionNote = note.String
	s.RUPEReference = rupeRef.String
	s.RUPEDocument = rupeDoc.String
	s.FinalDocPath = finalDoc.String
	if visitDate.Valid {
		s.VisitDate = &visitDate.Time
	}
	if visitDoneAt.Valid {
		s.VisitDoneAt = &visitDoneAt.Time
	}

	return &s, nil
}
