package workflow

// Compliance period lifecycle states. Reopened is time-boxed: expiry against
// the validity deadline is evaluated on read, not inside the machine.
const (
	PeriodOpen                 State = "OPEN"
	PeriodClosed               State = "CLOSED"
	PeriodReopeningRequested   State = "REOPENING_REQUESTED"
	PeriodReopeningAwaitingPay State = "REOPENING_AWAITING_PAYMENT"
	PeriodReopeningConfirming  State = "REOPENING_AWAITING_PAYMENT_CONFIRMATION"
	PeriodReopened             State = "REOPENED"
)

// Compliance period triggers
const (
	TriggerSubmitReport            Trigger = "SUBMIT_REPORT"
	TriggerRequestReopening        Trigger = "REQUEST_REOPENING"
	TriggerRequireReopeningPayment Trigger = "REQUIRE_REOPENING_PAYMENT"
	TriggerConfirmReopeningPayment Trigger = "CONFIRM_REOPENING_PAYMENT"
	TriggerValidateReopeningPaid   Trigger = "VALIDATE_REOPENING_PAYMENT"
)

var validPeriodStates = map[State]bool{
	PeriodOpen:                 true,
	PeriodClosed:               true,
	PeriodReopeningRequested:   true,
	PeriodReopeningAwaitingPay: true,
	PeriodReopeningConfirming:  true,
	PeriodReopened:             true,
}

// IsValidPeriodState reports whether s belongs to the compliance period lifecycle
func IsValidPeriodState(s State) bool {
	return validPeriodStates[s]
}

// NewCompliancePeriodMachine builds the compliance period state machine
// positioned at the given current state
func NewCompliancePeriodMachine(current State) (StateMachine, error) {
	b := NewBuilder()

	b.Configure(PeriodOpen).
		Permit(TriggerSubmitReport, PeriodClosed)

	b.Configure(PeriodClosed).
		Permit(TriggerRequestReopening, PeriodReopeningRequested)

	b.Configure(PeriodReopeningRequested).
		Permit(TriggerRequireReopeningPayment, PeriodReopeningAwaitingPay)

	b.Configure(PeriodReopeningAwaitingPay).
		Permit(TriggerConfirmReopeningPayment, PeriodReopeningConfirming)

	b.Configure(PeriodReopeningConfirming).
		Permit(TriggerValidateReopeningPaid, PeriodReopened)

	b.Configure(PeriodReopened).
		Permit(TriggerSubmitReport, PeriodClosed).
		Permit(TriggerRequestReopening, PeriodReopeningRequested)

	return b.Build(current)
}

// Compliance submission processing states, attached to the submission record
// once a report is received for a period.
const (
	SubmissionPendingOpinion        State = "PENDING_OPINION"
	SubmissionNeedsImprovement      State = "NEEDS_IMPROVEMENT"
	SubmissionRejected              State = "REJECTED"
	SubmissionAwaitingRUPE          State = "AWAITING_RUPE"
	SubmissionAwaitingPayment       State = "AWAITING_PAYMENT"
	SubmissionAwaitingConfirmation  State = "AWAITING_PAYMENT_CONFIRMATION"
	SubmissionAwaitingVisit         State = "AWAITING_VISIT"
	SubmissionVisitDone             State = "VISIT_DONE"
	SubmissionAwaitingFinalDocument State = "AWAITING_FINAL_DOCUMENT"
	SubmissionConcluded             State = "CONCLUDED"
)

// Compliance submission triggers
const (
	TriggerOpinionApprove          Trigger = "OPINION_APPROVE"
	TriggerOpinionNeedsImprovement Trigger = "OPINION_NEEDS_IMPROVEMENT"
	TriggerOpinionReject           Trigger = "OPINION_REJECT"
	TriggerResubmit                Trigger = "RESUBMIT"
	TriggerAttachSubmissionRUPE    Trigger = "ATTACH_RUPE"
	TriggerConfirmSubmissionPaid   Trigger = "CONFIRM_PAYMENT_SUBMITTED"
	TriggerValidateSubmissionPaid  Trigger = "VALIDATE_PAYMENT"
	TriggerCompleteVisit           Trigger = "COMPLETE_VISIT"
	TriggerAwaitFinalDocument      Trigger = "AWAIT_FINAL_DOCUMENT"
	TriggerAttachFinalDocument     Trigger = "ATTACH_FINAL_DOCUMENT"
)

var validSubmissionStates = map[State]bool{
	SubmissionPendingOpinion:        true,
	SubmissionNeedsImprovement:      true,
	SubmissionRejected:              true,
	SubmissionAwaitingRUPE:          true,
	SubmissionAwaitingPayment:       true,
	SubmissionAwaitingConfirmation:  true,
	SubmissionAwaitingVisit:         true,
	SubmissionVisitDone:             true,
	SubmissionAwaitingFinalDocument: true,
	SubmissionConcluded:             true,
}

var terminalSubmissionStates = map[State]bool{
	SubmissionRejected:  true,
	SubmissionConcluded: true,
}

// IsValidSubmissionState reports whether s belongs to the submission lifecycle
func IsValidSubmissionState(s State) bool {
	return validSubmissionStates[s]
}

// IsTerminalSubmissionState reports whether s permits no further transitions
func IsTerminalSubmissionState(s State) bool {
	return terminalSubmissionStates[s]
}

// NewComplianceSubmissionMachine builds the submission processing state
// machine positioned at the given current state
func NewComplianceSubmissionMachine(current State) (StateMachine, error) {
	b := NewBuilder()

	b.Configure(SubmissionPendingOpinion).
		Permit(TriggerOpinionApprove, SubmissionAwaitingRUPE).
		Permit(TriggerOpinionNeedsImprovement, SubmissionNeedsImprovement).
		Permit(TriggerOpinionReject, SubmissionRejected)

	b.Configure(SubmissionNeedsImprovement).
		Permit(TriggerResubmit, SubmissionPendingOpinion)

	b.Configure(SubmissionAwaitingRUPE).
		Permit(TriggerAttachSubmissionRUPE, SubmissionAwaitingPayment)

	b.Configure(SubmissionAwaitingPayment).
		Permit(TriggerConfirmSubmissionPaid, SubmissionAwaitingConfirmation)

	b.Configure(SubmissionAwaitingConfirmation).
		Permit(TriggerValidateSubmissionPaid, SubmissionAwaitingVisit)

	b.Configure(SubmissionAwaitingVisit).
		Permit(TriggerCompleteVisit, SubmissionVisitDone)

	b.Configure(SubmissionVisitDone).
		Permit(TriggerAwaitFinalDocument, SubmissionAwaitingFinalDocument)

	b.Configure(SubmissionAwaitingFinalDocument).
		Permit(TriggerAttachFinalDocument, SubmissionConcluded)

	return b.Build(current)
}
