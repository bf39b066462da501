package entity

import (
	"time"

	"github.com/ecoregula/permitflow/internal/domain/workflow"
)

// Frequency is the reporting cadence of a compliance configuration
type Frequency string

const (
	FrequencyAnnual     Frequency = "ANNUAL"
	FrequencySemiannual Frequency = "SEMIANNUAL"
	FrequencyQuarterly  Frequency = "QUARTERLY"
)

// IsValid reports whether f is a known reporting frequency
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyAnnual, FrequencySemiannual, FrequencyQuarterly:
		return true
	default:
		return false
	}
}

// MonthsPerPeriod returns the length of one reporting period in months
func (f Frequency) MonthsPerPeriod() int {
	switch f {
	case FrequencyAnnual:
		return 12
	case FrequencySemiannual:
		return 6
	case FrequencyQuarterly:
		return 3
	default:
		return 0
	}
}

// PeriodsPerYear returns how many periods cover one calendar year
func (f Frequency) PeriodsPerYear() int {
	if m := f.MonthsPerPeriod(); m > 0 {
		return 12 / m
	}
	return 0
}

// ComplianceConfiguration is the monitoring setup for one regulated entity.
// At most one active configuration exists per entity.
type ComplianceConfiguration struct {
	ID        int64     `json:"id"`
	EntityID  int64     `json:"entity_id"`
	Frequency Frequency `json:"frequency"`
	StartDate time.Time `json:"start_date"`
	CreatedAt time.Time `json:"created_at"`
}

// CompliancePeriod is a single reporting window belonging to a configuration
type CompliancePeriod struct {
	ID              int64          `json:"id"`
	ConfigurationID int64          `json:"configuration_id"`
	Sequence        int            `json:"sequence"`
	StartDate       time.Time      `json:"start_date"`
	EndDate         time.Time      `json:"end_date"`
	State           workflow.State `json:"state"`

	ReopeningReason      string     `json:"reopening_reason,omitempty"`
	ReopeningRequestedAt *time.Time `json:"reopening_requested_at,omitempty"`
	ReopeningValidUntil  *time.Time `json:"reopening_valid_until,omitempty"`
	ReopeningRUPERef     string     `json:"reopening_rupe_reference,omitempty"`
	ReopeningRUPEDoc     string     `json:"reopening_rupe_document,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveState applies the reopening deadline: an expired reopening that
// received no submission reads as closed. Expiry is never written back by
// this method; it is a read-time view.
func (p *CompliancePeriod) EffectiveState(now time.Time) workflow.State {
	if p.State == workflow.PeriodReopened && p.ReopeningValidUntil != nil && now.After(*p.ReopeningValidUntil) {
		return workflow.PeriodClosed
	}
	return p.State
}

// Technical opinion outcomes
const (
	OpinionApproved         = "APPROVED"
	OpinionNeedsImprovement = "NEEDS_IMPROVEMENT"
	OpinionRejected         = "REJECTED"
)

// ComplianceSubmission is the report filed for one (entity, period) pair and
// its downstream processing record
type ComplianceSubmission struct {
	ID           int64          `json:"id"`
	EntityID     int64          `json:"entity_id"`
	PeriodID     int64          `json:"period_id"`
	ReportPath   string         `json:"report_path"`
	ProcessState workflow.State `json:"process_state"`

	OpinionOutcome string     `json:"opinion_outcome,omitempty"`
	OpinionNote    string     `json:"opinion_note,omitempty"`
	RUPEReference  string     `json:"rupe_reference,omitempty"`
	RUPEDocument   string     `json:"rupe_document,omitempty"`
	RUPEPaid       bool       `json:"rupe_paid"`
	RUPEValidated  bool       `json:"rupe_validated"`
	VisitDate      *time.Time `json:"visit_date,omitempty"`
	VisitDoneAt    *time.Time `json:"visit_done_at,omitempty"`
	FinalDocPath   string     `json:"final_document_path,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TechnicianAssignment links a technician to a submission for the field visit
type TechnicianAssignment struct {
	ID             int64     `json:"id"`
	SubmissionID   int64     `json:"submission_id"`
	TechnicianID   string    `json:"technician_id"`
	TechnicianName string    `json:"technician_name"`
	AssignedAt     time.Time `json:"assigned_at"`
}
