package entity

import "time"

// Role identifies which actor class performed an action
type Role string

const (
	RoleApplicant  Role = "APPLICANT"
	RoleTechnician Role = "TECHNICIAN"
	RoleChief      Role = "CHIEF"
	RoleBoard      Role = "BOARD"
)

// IsValid reports whether r is a known actor role
func (r Role) IsValid() bool {
	switch r {
	case RoleApplicant, RoleTechnician, RoleChief, RoleBoard:
		return true
	default:
		return false
	}
}

// EntityKind distinguishes audited entity types
type EntityKind string

const (
	KindPermitRequest EntityKind = "PERMIT_REQUEST"
	KindPermit        EntityKind = "PERMIT"
	KindConfiguration EntityKind = "COMPLIANCE_CONFIGURATION"
	KindPeriod        EntityKind = "COMPLIANCE_PERIOD"
	KindSubmission    EntityKind = "COMPLIANCE_SUBMISSION"
)

// AuditEntry records one accepted transition: who acted, on what, and the
// state movement. Written in the same transaction as the transition itself.
type AuditEntry struct {
	ID            int64      `json:"id"`
	EntityKind    EntityKind `json:"entity_kind"`
	EntityID      int64      `json:"entity_id"`
	ActorID       string     `json:"actor_id"`
	ActorName     string     `json:"actor_name"`
	ActorRole     Role       `json:"actor_role"`
	Action        string     `json:"action"`
	PreviousState string     `json:"previous_state"`
	NewState      string     `json:"new_state"`
	Note          string     `json:"note,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}
