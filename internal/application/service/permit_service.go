package service

import (
	"context"
	"strings"

	"github.com/ecoregula/permitflow/internal/application/port"
	"github.com/ecoregula/permitflow/internal/domain/entity"
	"github.com/ecoregula/permitflow/internal/domain/fault"
	"github.com/ecoregula/permitflow/internal/domain/workflow"
)

// LineItemInput is one tariff line on a new permit request
type LineItemInput struct {
	Description string
	TariffCode  string
	Quantity    float64
	UnitValue   float64
}

// SubmitRequestInput carries the applicant's submission
type SubmitRequestInput struct {
	ApplicantID int64
	Type        string
	Currency    string
	Items       []LineItemInput
}

// PermitService executes the permit request lifecycle. Every transition is a
// single atomic read-check-write unit: precondition checks, the ordering
// gate, the state change and the audit row all run inside one transaction.
type PermitService interface {
	Submit(ctx context.Context, in SubmitRequestInput) (*entity.PermitRequest, error)
	GetRequest(ctx context.Context, id int64) (*entity.PermitRequest, error)
	ListPendingFor(ctx context.Context, role entity.Role, limit, offset int) ([]*entity.PermitRequest, error)
	ValidateAsTechnician(ctx context.Context, id int64) (*entity.PermitRequest, error)
	ValidateAsChief(ctx context.Context, id int64) (*entity.PermitRequest, error)
	AttachPaymentReference(ctx context.Context, id int64, reference string, document []byte, documentName string) (*entity.PermitRequest, error)
	ConfirmPaymentSubmitted(ctx context.Context, id int64) (*entity.PermitRequest, error)
	ValidatePayment(ctx context.Context, id int64) (*entity.PermitRequest, error)
	Approve(ctx context.Context, id int64, signerName string) (*entity.PermitRequest, *entity.Permit, error)
	Reject(ctx context.Context, id int64, reason string) (*entity.PermitRequest, error)
}

type permitServiceImpl struct {
	requests  port.PermitRequestRepository
	audit     port.AuditRepository
	gate      *OrderingGate
	issuance  IssuanceService
	docs      port.DocumentStore
	txManager port.TransactionManager
	clock     port.Clock
	logger    Logger
}

// NewPermitService creates a new PermitService
func NewPermitService(
	requests port.PermitRequestRepository,
	audit port.AuditRepository,
	gate *OrderingGate,
	issuance IssuanceService,
	docs port.DocumentStore,
	txManager port.TransactionManager,
	clock port.Clock,
	logger Logger,
) PermitService {
	return &permitServiceImpl{
		requests:  requests,
		audit:     audit,
		gate:      gate,
		issuance:  issuance,
		docs:      docs,
		txManager: txManager,
		clock:     clock,
		logger:    logger,
	}
}

// Submit creates a new permit request with its immutable line items
func (s *permitServiceImpl) Submit(ctx context.Context, in SubmitRequestInput) (*entity.PermitRequest, error) {
	id, err := requireRole(ctx, entity.RoleApplicant)
	if err != nil {
		return nil, err
	}

	if in.Type != entity.RequestTypeImport && in.Type != entity.RequestTypeExport {
		return nil, fault.Validationf("request type must be %s or %s", entity.RequestTypeImport, entity.RequestTypeExport)
	}
	if strings.TrimSpace(in.Currency) == "" {
		return nil, fault.Validation("currency is required")
	}
	if len(in.Items) == 0 {
		return nil, fault.Validation("at least one line item is required")
	}

	now := s.clock.Now()
	req := &entity.PermitRequest{
		ApplicantID: in.ApplicantID,
		Type:        in.Type,
		Currency:    in.Currency,
		Status:      workflow.StatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for _, it := range in.Items {
		if strings.TrimSpace(it.TariffCode) == "" {
			return nil, fault.Validation("tariff code is required on every line item")
		}
		if it.Quantity <= 0 {
			return nil, fault.Validation("line item quantity must be positive")
		}
		if it.UnitValue < 0 {
			return nil, fault.Validation("line item unit value must not be negative")
		}
		req.Items = append(req.Items, entity.LineItem{
			Description: it.Description,
			TariffCode:  it.TariffCode,
			Quantity:    it.Quantity,
			UnitValue:   it.UnitValue,
		})
		req.TotalValue += it.Quantity * it.UnitValue
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.requests.Create(txCtx, req); err != nil {
			return fault.Storage(err)
		}
		entry := auditEntryFor(id, entity.KindPermitRequest, req.ID, "SUBMIT", "", workflow.StatePending.String(), "", now)
		if err := s.audit.Create(txCtx, entry); err != nil {
			return fault.Storage(err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to submit permit request", "error", err, "applicant_id", in.ApplicantID)
		return nil, err
	}

	s.logger.Info("Permit request submitted", "id", req.ID, "applicant_id", in.ApplicantID, "total_value", req.TotalValue)
	return req, nil
}

// GetRequest retrieves a request with its line items
func (s *permitServiceImpl) GetRequest(ctx context.Context, id int64) (*entity.PermitRequest, error) {
	req, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	items, err := s.requests.ItemsByRequest(ctx, id)
	if err != nil {
		return nil, fault.Storage(err)
	}
	req.Items = items

	return req, nil
}

// ListPendingFor lists the requests awaiting the given role's action, oldest first
func (s *permitServiceImpl) ListPendingFor(ctx context.Context, role entity.Role, limit, offset int) ([]*entity.PermitRequest, error) {
	reqs, err := s.requests.ListPendingForRole(ctx, role, limit, offset)
	if err != nil {
		return nil, fault.Storage(err)
	}
	return reqs, nil
}

// ValidateAsTechnician records the technician's validation. The stored
// status stays pending; only the flag advances, making the request eligible
// for chief action.
func (s *permitServiceImpl) ValidateAsTechnician(ctx context.Context, id int64) (*entity.PermitRequest, error) {
	actor, err := requireRole(ctx, entity.RoleTechnician)
	if err != nil {
		return nil, err
	}

	var req *entity.PermitRequest
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.loadRequest(txCtx, id)
		if err != nil {
			return err
		}

		prev := req.MachineState()
		if err := s.gate.CanAct(txCtx, entity.RoleTechnician, id); err != nil {
			return err
		}

		next, err := s.fire(txCtx, req, workflow.TriggerValidateTechnician)
		if err != nil {
			return err
		}

		req.ValidatedByTechnician = true
		req.TechnicianID = actor.UserID
		s.applyState(req, next)

		return s.persistTransition(txCtx, actor, req, workflow.TriggerValidateTechnician, prev, next, "")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Request validated by technician", "id", id, "technician", actor.UserID)
	return req, nil
}

// ValidateAsChief records the department chief's validation
func (s *permitServiceImpl) ValidateAsChief(ctx context.Context, id int64) (*entity.PermitRequest, error) {
	actor, err := requireRole(ctx, entity.RoleChief)
	if err != nil {
		return nil, err
	}

	var req *entity.PermitRequest
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.loadRequest(txCtx, id)
		if err != nil {
			return err
		}

		prev := req.MachineState()
		if err := s.gate.CanAct(txCtx, entity.RoleChief, id); err != nil {
			return err
		}

		next, err := s.fire(txCtx, req, workflow.TriggerValidateChief)
		if err != nil {
			return err
		}

		req.ValidatedByChief = true
		req.ChiefID = actor.UserID
		s.applyState(req, next)

		return s.persistTransition(txCtx, actor, req, workflow.TriggerValidateChief, prev, next, "")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Request validated by chief", "id", id, "chief", actor.UserID)
	return req, nil
}

// AttachPaymentReference stores the RUPE reference and its supporting
// document, moving the request into the payment window
func (s *permitServiceImpl) AttachPaymentReference(ctx context.Context, id int64, reference string, document []byte, documentName string) (*entity.PermitRequest, error) {
	actor, err := requireRole(ctx, entity.RoleChief)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reference) == "" {
		return nil, fault.Validation("RUPE reference is required")
	}

	var req *entity.PermitRequest
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.loadRequest(txCtx, id)
		if err != nil {
			return err
		}

		prev := req.MachineState()
		next, err := s.fire(txCtx, req, workflow.TriggerAttachRUPE)
		if err != nil {
			return err
		}

		req.RUPEReference = reference
		if len(document) > 0 {
			path, err := s.docs.Store(txCtx, document, documentName)
			if err != nil {
				return fault.Storage(err)
			}
			req.RUPEDocument = path
		}
		s.applyState(req, next)

		return s.persistTransition(txCtx, actor, req, workflow.TriggerAttachRUPE, prev, next, reference)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("RUPE attached to request", "id", id, "reference", reference)
	return req, nil
}

// ConfirmPaymentSubmitted records the applicant's claim of having paid the
// RUPE. It deliberately does not mark the payment as received; only the
// chief's confirmation is authoritative.
func (s *permitServiceImpl) ConfirmPaymentSubmitted(ctx context.Context, id int64) (*entity.PermitRequest, error) {
	actor, err := requireRole(ctx, entity.RoleApplicant)
	if err != nil {
		return nil, err
	}

	var req *entity.PermitRequest
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.loadRequest(txCtx, id)
		if err != nil {
			return err
		}

		prev := req.MachineState()
		next, err := s.fire(txCtx, req, workflow.TriggerConfirmPaymentSubmitted)
		if err != nil {
			return err
		}

		s.applyState(req, next)
		return s.persistTransition(txCtx, actor, req, workflow.TriggerConfirmPaymentSubmitted, prev, next, "")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment submission confirmed by applicant", "id", id)
	return req, nil
}

// ValidatePayment is the chief's confirmation that the RUPE was actually paid
func (s *permitServiceImpl) ValidatePayment(ctx context.Context, id int64) (*entity.PermitRequest, error) {
	actor, err := requireRole(ctx, entity.RoleChief)
	if err != nil {
		return nil, err
	}

	var req *entity.PermitRequest
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.loadRequest(txCtx, id)
		if err != nil {
			return err
		}

		if strings.TrimSpace(req.RUPEReference) == "" {
			return fault.Validation("request has no RUPE reference to validate")
		}

		prev := req.MachineState()
		next, err := s.fire(txCtx, req, workflow.TriggerValidatePayment)
		if err != nil {
			return err
		}

		req.RUPEPaid = true
		req.RUPEValidated = true
		s.applyState(req, next)

		return s.persistTransition(txCtx, actor, req, workflow.TriggerValidatePayment, prev, next, "")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("RUPE payment validated", "id", id)
	return req, nil
}

// Approve records the board's final approval and issues the permit in the
// same transaction
func (s *permitServiceImpl) Approve(ctx context.Context, id int64, signerName string) (*entity.PermitRequest, *entity.Permit, error) {
	actor, err := requireRole(ctx, entity.RoleBoard)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(signerName) == "" {
		return nil, nil, fault.Validation("signer name is required")
	}

	var req *entity.PermitRequest
	var permit *entity.Permit
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.loadRequest(txCtx, id)
		if err != nil {
			return err
		}

		prev := req.MachineState()
		next, err := s.fire(txCtx, req, workflow.TriggerApprove)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		req.ApprovedByBoard = true
		req.ApprovedAt = &now
		s.applyState(req, next)

		items, err := s.requests.ItemsByRequest(txCtx, id)
		if err != nil {
			return fault.Storage(err)
		}
		req.Items = items

		if err := s.persistTransition(txCtx, actor, req, workflow.TriggerApprove, prev, next, signerName); err != nil {
			return err
		}

		permit, err = s.issuance.IssuePermit(txCtx, req, signerName)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Request approved and permit issued", "id", id, "permit_number", permit.Number)
	return req, permit, nil
}

// Reject terminally rejects the request with a reason. Allowed from any
// non-terminal state.
func (s *permitServiceImpl) Reject(ctx context.Context, id int64, reason string) (*entity.PermitRequest, error) {
	actor, err := requireRole(ctx, entity.RoleTechnician, entity.RoleChief, entity.RoleBoard)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fault.Validation("rejection reason is required")
	}

	var req *entity.PermitRequest
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.loadRequest(txCtx, id)
		if err != nil {
			return err
		}

		prev := req.MachineState()
		next, err := s.fire(txCtx, req, workflow.TriggerReject)
		if err != nil {
			return err
		}

		req.RejectionReason = reason
		s.applyState(req, next)

		return s.persistTransition(txCtx, actor, req, workflow.TriggerReject, prev, next, reason)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Request rejected", "id", id, "reason", reason)
	return req, nil
}

// loadRequest fetches a request and maps absence to a not-found fault
func (s *permitServiceImpl) loadRequest(ctx context.Context, id int64) (*entity.PermitRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, fault.Storage(err)
	}
	if req == nil {
		return nil, fault.NotFound("permit request", id)
	}
	return req, nil
}

// fire runs the trigger through the request's state machine and maps
// refusals to a typed invalid-transition fault carrying the current state
func (s *permitServiceImpl) fire(ctx context.Context, req *entity.PermitRequest, trigger workflow.Trigger) (workflow.State, error) {
	current := req.MachineState()
	machine, err := workflow.NewPermitRequestMachine(current)
	if err != nil {
		return "", fault.InvalidTransition("permit request", req.ID, current.String(), trigger.String())
	}
	if err := machine.Fire(ctx, trigger); err != nil {
		return "", fault.InvalidTransition("permit request", req.ID, current.String(), trigger.String())
	}
	return machine.State(), nil
}

// applyState writes the machine state back to the persisted status. The
// technician-validated state is not persisted as a status of its own.
func (s *permitServiceImpl) applyState(req *entity.PermitRequest, next workflow.State) {
	if next == workflow.StateTechnicianValidated {
		req.Status = workflow.StatePending
	} else {
		req.Status = next
	}
	req.UpdatedAt = s.clock.Now()
}

// persistTransition writes the mutated request and its audit row
func (s *permitServiceImpl) persistTransition(ctx context.Context, actor port.Identity, req *entity.PermitRequest, trigger workflow.Trigger, prev, next workflow.State, note string) error {
	if err := s.requests.Update(ctx, req); err != nil {
		return fault.Storage(err)
	}
	entry := auditEntryFor(actor, entity.KindPermitRequest, req.ID, trigger.String(), prev.String(), next.String(), note, s.clock.Now())
	if err := s.audit.Create(ctx, entry); err != nil {
		return fault.Storage(err)
	}
	return nil
}
