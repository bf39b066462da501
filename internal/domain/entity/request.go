package entity

import (
	"time"

	"github.com/ecoregula/permitflow/internal/domain/workflow"
)

// Permit request types
const (
	RequestTypeImport = "IMPORT"
	RequestTypeExport = "EXPORT"
)

// PermitRequest is an import/export permit application. Its mutable fields
// are only ever written by the permit service's transition functions; line
// items are immutable once the request is created.
type PermitRequest struct {
	ID                    int64          `json:"id"`
	ApplicantID           int64          `json:"applicant_id"`
	Type                  string         `json:"type"`
	Currency              string         `json:"currency"`
	TotalValue            float64        `json:"total_value"`
	Status                workflow.State `json:"status"`
	ValidatedByTechnician bool           `json:"validated_by_technician"`
	TechnicianID          string         `json:"technician_id,omitempty"`
	ValidatedByChief      bool           `json:"validated_by_chief"`
	ChiefID               string         `json:"chief_id,omitempty"`
	RUPEReference         string         `json:"rupe_reference,omitempty"`
	RUPEDocument          string         `json:"rupe_document,omitempty"`
	RUPEPaid              bool           `json:"rupe_paid"`
	RUPEValidated         bool           `json:"rupe_validated"`
	ApprovedByBoard       bool           `json:"approved_by_board"`
	RejectionReason       string         `json:"rejection_reason,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	ApprovedAt            *time.Time     `json:"approved_at,omitempty"`

	Items []LineItem `json:"items,omitempty"`
}

// LineItem is a single tariff-code line on a permit request
type LineItem struct {
	ID          int64   `json:"id"`
	RequestID   int64   `json:"request_id"`
	Description string  `json:"description"`
	TariffCode  string  `json:"tariff_code"`
	Quantity    float64 `json:"quantity"`
	UnitValue   float64 `json:"unit_value"`
}

// MachineState derives the workflow state from the persisted status and the
// technician flag: technician validation does not advance the stored status,
// it only marks the request eligible for chief action.
func (r *PermitRequest) MachineState() workflow.State {
	if r.Status == workflow.StatePending && r.ValidatedByTechnician {
		return workflow.StateTechnicianValidated
	}
	return r.Status
}

// IsTerminal reports whether the request permits no further transitions
func (r *PermitRequest) IsTerminal() bool {
	return workflow.IsTerminalPermitState(r.Status)
}
