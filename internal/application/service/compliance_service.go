package service

import (
	"context"
	"strings"
	"time"

	"github.com/ecoregula/permitflow/internal/application/port"
	"github.com/ecoregula/permitflow/internal/domain/entity"
	"github.com/ecoregula/permitflow/internal/domain/fault"
	"github.com/ecoregula/permitflow/internal/domain/schedule"
	"github.com/ecoregula/permitflow/internal/domain/workflow"
)

// ComplianceService governs monitoring configurations, reporting periods,
// the reopening sub-flow and the submission processing pipeline
type ComplianceService interface {
	CreateConfiguration(ctx context.Context, entityID int64, freq entity.Frequency, startDate time.Time) (*entity.ComplianceConfiguration, []*entity.CompliancePeriod, error)
	GetPeriodsFor(ctx context.Context, entityID int64) ([]*entity.CompliancePeriod, error)

	SubmitReport(ctx context.Context, periodID int64, report []byte, reportName string) (*entity.ComplianceSubmission, error)
	Resubmit(ctx context.Context, submissionID int64, report []byte, reportName string) (*entity.ComplianceSubmission, error)

	RequestReopening(ctx context.Context, periodID int64, reason string) (*entity.CompliancePeriod, error)
	RequireReopeningPayment(ctx context.Context, periodID int64, rupeReference string, document []byte, documentName string) (*entity.CompliancePeriod, error)
	ConfirmReopeningPaymentSubmitted(ctx context.Context, periodID int64) (*entity.CompliancePeriod, error)
	ValidateReopeningPayment(ctx context.Context, periodID int64) (*entity.CompliancePeriod, error)

	RecordTechnicalOpinion(ctx context.Context, submissionID int64, outcome, note string) (*entity.ComplianceSubmission, error)
	AttachSubmissionRUPE(ctx context.Context, submissionID int64, rupeReference string, document []byte, documentName string) (*entity.ComplianceSubmission, error)
	ConfirmSubmissionPaymentSubmitted(ctx context.Context, submissionID int64) (*entity.ComplianceSubmission, error)
	ValidateSubmissionPayment(ctx context.Context, submissionID int64) (*entity.ComplianceSubmission, error)
	AssignTechnician(ctx context.Context, submissionID int64, technicianID, technicianName string) error
	ScheduleVisit(ctx context.Context, submissionID int64, visitDate time.Time) (*entity.ComplianceSubmission, error)
	CompleteVisit(ctx context.Context, submissionID int64) (*entity.ComplianceSubmission, error)
	AttachFinalDocument(ctx context.Context, submissionID int64, document []byte, documentName string) (*entity.ComplianceSubmission, error)

	GetSubmission(ctx context.Context, submissionID int64) (*entity.ComplianceSubmission, error)
}

type complianceServiceImpl struct {
	configs     port.ComplianceConfigurationRepository
	periods     port.CompliancePeriodRepository
	submissions port.ComplianceSubmissionRepository
	assignments port.AssignmentRepository
	audit       port.AuditRepository
	docs        port.DocumentStore
	txManager   port.TransactionManager
	clock       port.Clock
	logger      Logger

	reopeningWindow time.Duration
}

// NewComplianceService creates a new ComplianceService. reopeningWindow is
// the validity window granted to a reopened period.
func NewComplianceService(
	configs port.ComplianceConfigurationRepository,
	periods port.CompliancePeriodRepository,
	submissions port.ComplianceSubmissionRepository,
	assignments port.AssignmentRepository,
	audit port.AuditRepository,
	docs port.DocumentStore,
	txManager port.TransactionManager,
	clock port.Clock,
	logger Logger,
	reopeningWindow time.Duration,
) ComplianceService {
	return &complianceServiceImpl{
		configs:         configs,
		periods:         periods,
		submissions:     submissions,
		assignments:     assignments,
		audit:           audit,
		docs:            docs,
		txManager:       txManager,
		clock:           clock,
		logger:          logger,
		reopeningWindow: reopeningWindow,
	}
}

// CreateConfiguration registers the monitoring setup for an entity and
// eagerly materializes the first year's reporting periods
func (s *complianceServiceImpl) CreateConfiguration(ctx context.Context, entityID int64, freq entity.Frequency, startDate time.Time) (*entity.ComplianceConfiguration, []*entity.CompliancePeriod, error) {
	actor, err := requireRole(ctx, entity.RoleChief, entity.RoleBoard)
	if err != nil {
		return nil, nil, err
	}
	if !freq.IsValid() {
		return nil, nil, fault.Validationf("unknown reporting frequency %q", freq)
	}
	if startDate.IsZero() {
		return nil, nil, fault.Validation("configuration start date is required")
	}

	var cfg *entity.ComplianceConfiguration
	var created []*entity.CompliancePeriod
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.configs.GetByEntity(txCtx, entityID)
		if err != nil {
			return fault.Storage(err)
		}
		if existing != nil {
			return fault.Duplicate("entity already has an active monitoring configuration")
		}

		now := s.clock.Now()
		cfg = &entity.ComplianceConfiguration{
			EntityID:  entityID,
			Frequency: freq,
			StartDate: startDate,
			CreatedAt: now,
		}
		if err := s.configs.Create(txCtx, cfg); err != nil {
			return fault.Storage(err)
		}

		generated, err := schedule.PeriodsForYear(freq, schedule.AnchorYear(startDate))
		if err != nil {
			return fault.Validation(err.Error())
		}
		for i := range generated {
			p := generated[i]
			p.ConfigurationID = cfg.ID
			p.CreatedAt = now
			p.UpdatedAt = now
			created = append(created, &p)
		}
		if err := s.periods.CreateBatch(txCtx, created); err != nil {
			return fault.Storage(err)
		}

		entry := auditEntryFor(actor, entity.KindConfiguration, cfg.ID, "CREATE_CONFIGURATION", "", string(freq), "", now)
		if err := s.audit.Create(txCtx, entry); err != nil {
			return fault.Storage(err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Monitoring configuration created", "entity_id", entityID, "frequency", freq, "periods", len(created))
	return cfg, created, nil
}

// GetPeriodsFor lists an entity's periods with reopening expiry applied
func (s *complianceServiceImpl) GetPeriodsFor(ctx context.Context, entityID int64) ([]*entity.CompliancePeriod, error) {
	cfg, err := s.configs.GetByEntity(ctx, entityID)
	if err != nil {
		return nil, fault.Storage(err)
	}
	if cfg == nil {
		return nil, fault.NotFound("compliance configuration for entity", entityID)
	}

	periods, err := s.periods.ListByConfiguration(ctx, cfg.ID)
	if err != nil {
		return nil, fault.Storage(err)
	}

	now := s.clock.Now()
	for _, p := range periods {
		p.State = p.EffectiveState(now)
	}
	return periods, nil
}

// SubmitReport files the compliance report for an open (or reopened and
// still valid) period, closing the window and opening the processing record
func (s *complianceServiceImpl) SubmitReport(ctx context.Context, periodID int64, report []byte, reportName string) (*entity.ComplianceSubmission, error) {
	actor, err := requireRole(ctx, entity.RoleApplicant)
	if err != nil {
		return nil, err
	}
	if len(report) == 0 {
		return nil, fault.Validation("report content is required")
	}

	var sub *entity.ComplianceSubmission
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		period, err := s.loadPeriod(txCtx, periodID)
		if err != nil {
			return err
		}

		existing, err := s.submissions.GetByPeriod(txCtx, periodID)
		if err != nil {
			return fault.Storage(err)
		}
		if existing != nil {
			return fault.Duplicate("period already has a submission; use resubmission after an improvement request")
		}

		prev := period.EffectiveState(s.clock.Now())
		next, err := s.firePeriod(txCtx, period, workflow.TriggerSubmitReport)
		if err != nil {
			return err
		}

		cfg, err := s.configs.GetByID(txCtx, period.ConfigurationID)
		if err != nil {
			return fault.Storage(err)
		}
		if cfg == nil {
			return fault.NotFound("compliance configuration", period.ConfigurationID)
		}

		path, err := s.docs.Store(txCtx, report, reportName)
		if err != nil {
			return fault.Storage(err)
		}

		now := s.clock.Now()
		sub = &entity.ComplianceSubmission{
			EntityID:     cfg.EntityID,
			PeriodID:     periodID,
			ReportPath:   path,
			ProcessState: workflow.SubmissionPendingOpinion,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.submissions.Create(txCtx, sub); err != nil {
			return fault.Storage(err)
		}

		period.State = next
		period.UpdatedAt = now
		if err := s.periods.Update(txCtx, period); err != nil {
			return fault.Storage(err)
		}

		entry := auditEntryFor(actor, entity.KindPeriod, periodID, workflow.TriggerSubmitReport.String(), prev.String(), next.String(), path, now)
		if err := s.audit.Create(txCtx, entry); err != nil {
			return fault.Storage(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Compliance report submitted", "period_id", periodID, "submission_id", sub.ID)
	return sub, nil
}

// Resubmit replaces the report on a submission sent back for improvement
func (s *complianceServiceImpl) Resubmit(ctx context.Context, submissionID int64, report []byte, reportName string) (*entity.ComplianceSubmission, error) {
	actor, err := requireRole(ctx, entity.RoleApplicant)
	if err != nil {
		return nil, err
	}
	if len(report) == 0 {
		return nil, fault.Validation("report content is required")
	}

	return s.submissionTransition(ctx, submissionID, workflow.TriggerResubmit, actor, func(txCtx context.Context, sub *entity.ComplianceSubmission) error {
		path, err := s.docs.Store(txCtx, report, reportName)
		if err != nil {
			return fault.Storage(err)
		}
		sub.ReportPath = path
		sub.OpinionOutcome = ""
		sub.OpinionNote = ""
		return nil
	})
}

// RequestReopening opens a reopening cycle on a closed period. A period that
// already received its submission is not eligible; there is nothing a
// reopened window could accept.
func (s *complianceServiceImpl) RequestReopening(ctx context.Context, periodID int64, reason string) (*entity.CompliancePeriod, error) {
	actor, err := requireRole(ctx, entity.RoleApplicant)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fault.Validation("reopening reason is required")
	}

	return s.periodTransition(ctx, periodID, workflow.TriggerRequestReopening, actor, reason, func(txCtx context.Context, period *entity.CompliancePeriod, now time.Time) error {
		existing, err := s.submissions.GetByPeriod(txCtx, periodID)
		if err != nil {
			return fault.Storage(err)
		}
		if existing != nil {
			return fault.Validation("period already received a submission and is not eligible for reopening")
		}

		period.ReopeningReason = reason
		period.ReopeningRequestedAt = &now
		period.ReopeningValidUntil = nil
		period.ReopeningRUPERef = ""
		period.ReopeningRUPEDoc = ""
		return nil
	})
}

// RequireReopeningPayment attaches the RUPE the applicant must pay before
// the period reopens
func (s *complianceServiceImpl) RequireReopeningPayment(ctx context.Context, periodID int64, rupeReference string, document []byte, documentName string) (*entity.CompliancePeriod, error) {
	actor, err := requireRole(ctx, entity.RoleChief, entity.RoleBoard)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(rupeReference) == "" {
		return nil, fault.Validation("RUPE reference is required")
	}

	return s.periodTransition(ctx, periodID, workflow.TriggerRequireReopeningPayment, actor, rupeReference, func(txCtx context.Context, period *entity.CompliancePeriod, now time.Time) error {
		period.ReopeningRUPERef = rupeReference
		if len(document) > 0 {
			path, err := s.docs.Store(txCtx, document, documentName)
			if err != nil {
				return fault.Storage(err)
			}
			period.ReopeningRUPEDoc = path
		}
		return nil
	})
}

// ConfirmReopeningPaymentSubmitted records the applicant's payment claim
func (s *complianceServiceImpl) ConfirmReopeningPaymentSubmitted(ctx context.Context, periodID int64) (*entity.CompliancePeriod, error) {
	actor, err := requireRole(ctx, entity.RoleApplicant)
	if err != nil {
		return nil, err
	}
	return s.periodTransition(ctx, periodID, workflow.TriggerConfirmReopeningPayment, actor, "", nil)
}

// ValidateReopeningPayment confirms the RUPE was paid and reopens the
// period, time-boxed to the configured validity window
func (s *complianceServiceImpl) ValidateReopeningPayment(ctx context.Context, periodID int64) (*entity.CompliancePeriod, error) {
	actor, err := requireRole(ctx, entity.RoleChief, entity.RoleBoard)
	if err != nil {
		return nil, err
	}

	return s.periodTransition(ctx, periodID, workflow.TriggerValidateReopeningPaid, actor, "", func(txCtx context.Context, period *entity.CompliancePeriod, now time.Time) error {
		deadline := now.Add(s.reopeningWindow)
		period.ReopeningValidUntil = &deadline
		return nil
	})
}

// RecordTechnicalOpinion registers the technician's opinion on a submission
func (s *complianceServiceImpl) RecordTechnicalOpinion(ctx context.Context, submissionID int64, outcome, note string) (*entity.ComplianceSubmission, error) {
	actor, err := requireRole(ctx, entity.RoleTechnician)
	if err != nil {
		return nil, err
	}

	var trigger workflow.Trigger
	switch outcome {
	case entity.OpinionApproved:
		trigger = workflow.TriggerOpinionApprove
	case entity.OpinionNeedsImprovement:
		trigger = workflow.TriggerOpinionNeedsImprovement
	case entity.OpinionRejected:
		trigger = workflow.TriggerOpinionReject
	default:
		return nil, fault.Validationf("unknown opinion outcome %q", outcome)
	}

	return s.submissionTransition(ctx, submissionID, trigger, actor, func(txCtx context.Context, sub *entity.ComplianceSubmission) error {
		sub.OpinionOutcome = outcome
		sub.OpinionNote = note
		return nil
	})
}

// AttachSubmissionRUPE attaches the processing-fee RUPE to a submission
func (s *complianceServiceImpl) AttachSubmissionRUPE(ctx context.Context, submissionID int64, rupeReference string, document []byte, documentName string) (*entity.ComplianceSubmission, error) {
	actor, err := requireRole(ctx, entity.RoleChief)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(rupeReference) == "" {
		return nil, fault.Validation("RUPE reference is required")
	}

	return s.submissionTransition(ctx, submissionID, workflow.TriggerAttachSubmissionRUPE, actor, func(txCtx context.Context, sub *entity.ComplianceSubmission) error {
		sub.RUPEReference = rupeReference
		if len(document) > 0 {
			path, err := s.docs.Store(txCtx, document, documentName)
			if err != nil {
				return fault.Storage(err)
			}
			sub.RUPEDocument = path
		}
		return nil
	})
}

// ConfirmSubmissionPaymentSubmitted records the applicant's payment claim on
// the submission's RUPE
func (s *complianceServiceImpl) ConfirmSubmissionPaymentSubmitted(ctx context.Context, submissionID int64) (*entity.ComplianceSubmission, error) {
	actor, err := requireRole(ctx, entity.RoleApplicant)
	if err != nil {
		return nil, err
	}
	return s.submissionTransition(ctx, submissionID, workflow.TriggerConfirmSubmissionPaid, actor, nil)
}

// ValidateSubmissionPayment confirms the submission's RUPE was paid
func (s *complianceServiceImpl) ValidateSubmissionPayment(ctx context.Context, submissionID int64) (*entity.ComplianceSubmission, error) {
	actor, err := requireRole(ctx, entity.RoleChief)
	if err != nil {
		return nil, err
	}

	return s.submissionTransition(ctx, submissionID, workflow.TriggerValidateSubmissionPaid, actor, func(txCtx context.Context, sub *entity.ComplianceSubmission) error {
		if strings.TrimSpace(sub.RUPEReference) == "" {
			return fault.Validation("submission has no RUPE reference to validate")
		}
		sub.RUPEPaid = true
		sub.RUPEValidated = true
		return nil
	})
}

// AssignTechnician links a technician to a submission for the field visit
func (s *complianceServiceImpl) AssignTechnician(ctx context.Context, submissionID int64, technicianID, technicianName string) error {
	actor, err := requireRole(ctx, entity.RoleChief)
	if err != nil {
		return err
	}
	if strings.TrimSpace(technicianID) == "" {
		return fault.Validation("technician id is required")
	}

	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		sub, err := s.loadSubmission(txCtx, submissionID)
		if err != nil {
			return err
		}
		if workflow.IsTerminalSubmissionState(sub.ProcessState) {
			return fault.InvalidTransition("compliance submission", submissionID, sub.ProcessState.String(), "ASSIGN_TECHNICIAN")
		}

		now := s.clock.Now()
		a := &entity.TechnicianAssignment{
			SubmissionID:   submissionID,
			TechnicianID:   technicianID,
			TechnicianName: technicianName,
			AssignedAt:     now,
		}
		if err := s.assignments.Assign(txCtx, a); err != nil {
			return fault.Storage(err)
		}

		entry := auditEntryFor(actor, entity.KindSubmission, submissionID, "ASSIGN_TECHNICIAN", sub.ProcessState.String(), sub.ProcessState.String(), technicianID, now)
		if err := s.audit.Create(txCtx, entry); err != nil {
			return fault.Storage(err)
		}
		return nil
	})
}

// ScheduleVisit sets the visit date. Requires the submission to be awaiting
// its visit and at least one technician assigned to it.
func (s *complianceServiceImpl) ScheduleVisit(ctx context.Context, submissionID int64, visitDate time.Time) (*entity.ComplianceSubmission, error) {
	actor, err := requireRole(ctx, entity.RoleChief, entity.RoleTechnician)
	if err != nil {
		return nil, err
	}
	if visitDate.IsZero() {
		return nil, fault.Validation("visit date is required")
	}

	var sub *entity.ComplianceSubmission
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		sub, err = s.loadSubmission(txCtx, submissionID)
		if err != nil {
			return err
		}
		if sub.ProcessState != workflow.SubmissionAwaitingVisit {
			return fault.InvalidTransition("compliance submission", submissionID, sub.ProcessState.String(), "SCHEDULE_VISIT")
		}

		assigned, err := s.assignments.CountBySubmission(txCtx, submissionID)
		if err != nil {
			return fault.Storage(err)
		}
		if assigned == 0 {
			return fault.Validation("a technician must be assigned before a visit can be scheduled")
		}

		now := s.clock.Now()
		sub.VisitDate = &visitDate
		sub.UpdatedAt = now
		if err := s.submissions.Update(txCtx, sub); err != nil {
			return fault.Storage(err)
		}

		entry := auditEntryFor(actor, entity.KindSubmission, submissionID, "SCHEDULE_VISIT", sub.ProcessState.String(), sub.ProcessState.String(), visitDate.Format("2006-01-02"), now)
		if err := s.audit.Create(txCtx, entry); err != nil {
			return fault.Storage(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// CompleteVisit records the field visit and moves the submission to awaiting
// its final document
func (s *complianceServiceImpl) CompleteVisit(ctx context.Context, submissionID int64) (*entity.ComplianceSubmission, error) {
	actor, err := requireRole(ctx, entity.RoleTechnician)
	if err != nil {
		return nil, err
	}

	var sub *entity.ComplianceSubmission
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		sub, err = s.loadSubmission(txCtx, submissionID)
		if err != nil {
			return err
		}
		if sub.VisitDate == nil {
			return fault.Validation("visit has not been scheduled")
		}

		prev := sub.ProcessState
		next, err := s.fireSubmission(txCtx, sub, workflow.TriggerCompleteVisit)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		sub.VisitDoneAt = &now
		sub.ProcessState = next

		// The visit record immediately hands over to the final-document
		// stage; VisitDone is not a resting state.
		next, err = s.fireSubmission(txCtx, sub, workflow.TriggerAwaitFinalDocument)
		if err != nil {
			return err
		}
		sub.ProcessState = next
		sub.UpdatedAt = now

		if err := s.submissions.Update(txCtx, sub); err != nil {
			return fault.Storage(err)
		}

		entry := auditEntryFor(actor, entity.KindSubmission, submissionID, workflow.TriggerCompleteVisit.String(), prev.String(), next.String(), "", now)
		if err := s.audit.Create(txCtx, entry); err != nil {
			return fault.Storage(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Visit completed", "submission_id", submissionID)
	return sub, nil
}

// AttachFinalDocument stores the final document and concludes the process
func (s *complianceServiceImpl) AttachFinalDocument(ctx context.Context, submissionID int64, document []byte, documentName string) (*entity.ComplianceSubmission, error) {
	actor, err := requireRole(ctx, entity.RoleChief, entity.RoleBoard)
	if err != nil {
		return nil, err
	}
	if len(document) == 0 {
		return nil, fault.Validation("final document content is required")
	}

	return s.submissionTransition(ctx, submissionID, workflow.TriggerAttachFinalDocument, actor, func(txCtx context.Context, sub *entity.ComplianceSubmission) error {
		path, err := s.docs.Store(txCtx, document, documentName)
		if err != nil {
			return fault.Storage(err)
		}
		sub.FinalDocPath = path
		return nil
	})
}

// GetSubmission retrieves a submission by id
func (s *complianceServiceImpl) GetSubmission(ctx context.Context, submissionID int64) (*entity.ComplianceSubmission, error) {
	return s.loadSubmission(ctx, submissionID)
}

// loadPeriod fetches a period and maps absence to a not-found fault
func (s *complianceServiceImpl) loadPeriod(ctx context.Context, id int64) (*entity.CompliancePeriod, error) {
	period, err := s.periods.GetByID(ctx, id)
	if err != nil {
		return nil, fault.Storage(err)
	}
	if period == nil {
		return nil, fault.NotFound("compliance period", id)
	}
	return period, nil
}

// loadSubmission fetches a submission and maps absence to a not-found fault
func (s *complianceServiceImpl) loadSubmission(ctx context.Context, id int64) (*entity.ComplianceSubmission, error) {
	sub, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return nil, fault.Storage(err)
	}
	if sub == nil {
		return nil, fault.NotFound("compliance submission", id)
	}
	return sub, nil
}

// firePeriod runs a trigger through the period machine, evaluated against
// the period's effective (expiry-adjusted) state
func (s *complianceServiceImpl) firePeriod(ctx context.Context, period *entity.CompliancePeriod, trigger workflow.Trigger) (workflow.State, error) {
	current := period.EffectiveState(s.clock.Now())
	machine, err := workflow.NewCompliancePeriodMachine(current)
	if err != nil {
		return "", fault.InvalidTransition("compliance period", period.ID, current.String(), trigger.String())
	}
	if err := machine.Fire(ctx, trigger); err != nil {
		return "", fault.InvalidTransition("compliance period", period.ID, current.String(), trigger.String())
	}
	return machine.State(), nil
}

// fireSubmission runs a trigger through the submission machine
func (s *complianceServiceImpl) fireSubmission(ctx context.Context, sub *entity.ComplianceSubmission, trigger workflow.Trigger) (workflow.State, error) {
	machine, err := workflow.NewComplianceSubmissionMachine(sub.ProcessState)
	if err != nil {
		return "", fault.InvalidTransition("compliance submission", sub.ID, sub.ProcessState.String(), trigger.String())
	}
	if err := machine.Fire(ctx, trigger); err != nil {
		return "", fault.InvalidTransition("compliance submission", sub.ID, sub.ProcessState.String(), trigger.String())
	}
	return machine.State(), nil
}

// periodTransition is the shared atomic unit for period-level transitions
func (s *complianceServiceImpl) periodTransition(ctx context.Context, periodID int64, trigger workflow.Trigger, actor port.Identity, note string, mutate func(txCtx context.Context, period *entity.CompliancePeriod, now time.Time) error) (*entity.CompliancePeriod, error) {
	var period *entity.CompliancePeriod
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		period, err = s.loadPeriod(txCtx, periodID)
		if err != nil {
			return err
		}

		prev := period.EffectiveState(s.clock.Now())
		next, err := s.firePeriod(txCtx, period, trigger)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if mutate != nil {
			if err := mutate(txCtx, period, now); err != nil {
				return err
			}
		}
		period.State = next
		period.UpdatedAt = now

		if err := s.periods.Update(txCtx, period); err != nil {
			return fault.Storage(err)
		}

		entry := auditEntryFor(actor, entity.KindPeriod, periodID, trigger.String(), prev.String(), next.String(), note, now)
		if err := s.audit.Create(txCtx, entry); err != nil {
			return fault.Storage(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Period transition applied", "period_id", periodID, "trigger", trigger, "state", period.State)
	return period, nil
}

// submissionTransition is the shared atomic unit for submission transitions
func (s *complianceServiceImpl) submissionTransition(ctx context.Context, submissionID int64, trigger workflow.Trigger, actor port.Identity, mutate func(context.Context, *entity.ComplianceSubmission) error) (*entity.ComplianceSubmission, error) {
	var sub *entity.ComplianceSubmission
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		sub, err = s.loadSubmission(txCtx, submissionID)
		if err != nil {
			return err
		}

		prev := sub.ProcessState
		next, err := s.fireSubmission(txCtx, sub, trigger)
		if err != nil {
			return err
		}

		if mutate != nil {
			if err := mutate(txCtx, sub); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		sub.ProcessState = next
		sub.UpdatedAt = now

		if err := s.submissions.Update(txCtx, sub); err != nil {
			return fault.Storage(err)
		}

		entry := auditEntryFor(actor, entity.KindSubmission, submissionID, trigger.String(), prev.String(), next.String(), "", now)
		if err := s.audit.Create(txCtx, entry); err != nil {
			return fault.Storage(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Submission transition applied", "submission_id", submissionID, "trigger", trigger, "state", sub.ProcessState)
	return sub, nil
}
