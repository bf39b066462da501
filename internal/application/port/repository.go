package port

import (
	"context"

	"github.com/ecoregula/permitflow/internal/domain/entity"
)

// PermitRequestRepository defines persistence operations for PermitRequest.
// Implementations return (nil, nil) when a looked-up row does not exist;
// services translate that into a typed not-found fault.
type PermitRequestRepository interface {
	Create(ctx context.Context, req *entity.PermitRequest) error
	GetByID(ctx context.Context, id int64) (*entity.PermitRequest, error)
	Update(ctx context.Context, req *entity.PermitRequest) error
	// OldestInTechnicianQueue returns the oldest request still pending
	// technician validation (created_at ascending, ties by id ascending)
	OldestInTechnicianQueue(ctx context.Context) (*entity.PermitRequest, error)
	// OldestInChiefQueue returns the oldest technician-validated request
	// still pending chief validation
	OldestInChiefQueue(ctx context.Context) (*entity.PermitRequest, error)
	ListPendingForRole(ctx context.Context, role entity.Role, limit, offset int) ([]*entity.PermitRequest, error)
	ItemsByRequest(ctx context.Context, requestID int64) ([]entity.LineItem, error)
}

// PermitRepository defines persistence operations for issued permits
type PermitRepository interface {
	Create(ctx context.Context, permit *entity.Permit) error
	GetByRequestID(ctx context.Context, requestID int64) (*entity.Permit, error)
	// MaxSequenceForYear returns the highest allocated sequence for the
	// year, 0 when none. Must be evaluated inside the issuing transaction.
	MaxSequenceForYear(ctx context.Context, year int) (int, error)
	ListByYear(ctx context.Context, year int) ([]*entity.Permit, error)
	UpdateDocumentPath(ctx context.Context, id int64, path string) error
}

// ComplianceConfigurationRepository defines persistence operations for
// monitoring configurations
type ComplianceConfigurationRepository interface {
	Create(ctx context.Context, cfg *entity.ComplianceConfiguration) error
	GetByID(ctx context.Context, id int64) (*entity.ComplianceConfiguration, error)
	GetByEntity(ctx context.Context, entityID int64) (*entity.ComplianceConfiguration, error)
}

// CompliancePeriodRepository defines persistence operations for reporting periods
type CompliancePeriodRepository interface {
	CreateBatch(ctx context.Context, periods []*entity.CompliancePeriod) error
	GetByID(ctx context.Context, id int64) (*entity.CompliancePeriod, error)
	ListByConfiguration(ctx context.Context, configurationID int64) ([]*entity.CompliancePeriod, error)
	Update(ctx context.Context, period *entity.CompliancePeriod) error
}

// ComplianceSubmissionRepository defines persistence operations for filed reports
type ComplianceSubmissionRepository interface {
	Create(ctx context.Context, sub *entity.ComplianceSubmission) error
	GetByID(ctx context.Context, id int64) (*entity.ComplianceSubmission, error)
	GetByPeriod(ctx context.Context, periodID int64) (*entity.ComplianceSubmission, error)
	Update(ctx context.Context, sub *entity.ComplianceSubmission) error
}

// AssignmentRepository defines persistence operations for technician assignments
type AssignmentRepository interface {
	Assign(ctx context.Context, a *entity.TechnicianAssignment) error
	CountBySubmission(ctx context.Context, submissionID int64) (int, error)
	ListBySubmission(ctx context.Context, submissionID int64) ([]*entity.TechnicianAssignment, error)
}

// AuditRepository defines persistence operations for the transition audit trail
type AuditRepository interface {
	Create(ctx context.Context, e *entity.AuditEntry) error
	ListForEntity(ctx context.Context, kind entity.EntityKind, entityID int64, limit, offset int) ([]*entity.AuditEntry, error)
}

// TransactionManager executes a function within a storage transaction.
// Nested calls reuse the enclosing transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
