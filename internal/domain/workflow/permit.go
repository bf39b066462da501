package workflow

// Permit request lifecycle states. StateTechnicianValidated is a derived
// state: the persisted status stays Pending until the chief acts, with the
// technician flag marking eligibility for chief validation.
const (
	StatePending                     State = "PENDING"
	StateTechnicianValidated         State = "TECHNICIAN_VALIDATED"
	StateChiefValidated              State = "CHIEF_VALIDATED"
	StateAwaitingPayment             State = "AWAITING_PAYMENT"
	StateAwaitingPaymentConfirmation State = "AWAITING_PAYMENT_CONFIRMATION"
	StatePaymentConfirmed            State = "PAYMENT_CONFIRMED"
	StateApproved                    State = "APPROVED"
	StateRejected                    State = "REJECTED"
)

// Permit request triggers
const (
	TriggerValidateTechnician      Trigger = "VALIDATE_TECHNICIAN"
	TriggerValidateChief           Trigger = "VALIDATE_CHIEF"
	TriggerAttachRUPE              Trigger = "ATTACH_RUPE"
	TriggerConfirmPaymentSubmitted Trigger = "CONFIRM_PAYMENT_SUBMITTED"
	TriggerValidatePayment         Trigger = "VALIDATE_PAYMENT"
	TriggerApprove                 Trigger = "APPROVE"
	TriggerReject                  Trigger = "REJECT"
)

var validPermitStates = map[State]bool{
	StatePending:                     true,
	StateTechnicianValidated:         true,
	StateChiefValidated:              true,
	StateAwaitingPayment:             true,
	StateAwaitingPaymentConfirmation: true,
	StatePaymentConfirmed:            true,
	StateApproved:                    true,
	StateRejected:                    true,
}

var terminalPermitStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// IsValidPermitState reports whether s belongs to the permit request lifecycle
func IsValidPermitState(s State) bool {
	return validPermitStates[s]
}

// IsTerminalPermitState reports whether s permits no further transitions
func IsTerminalPermitState(s State) bool {
	return terminalPermitStates[s]
}

// NewPermitRequestMachine builds the permit request state machine positioned
// at the given current state. Rejection is reachable from every non-terminal
// state; approval only from the payment-confirmed state.
func NewPermitRequestMachine(current State) (StateMachine, error) {
	b := NewBuilder()

	b.Configure(StatePending).
		Permit(TriggerValidateTechnician, StateTechnicianValidated).
		Permit(TriggerReject, StateRejected)

	b.Configure(StateTechnicianValidated).
		Permit(TriggerValidateChief, StateChiefValidated).
		Permit(TriggerReject, StateRejected)

	b.Configure(StateChiefValidated).
		Permit(TriggerAttachRUPE, StateAwaitingPayment).
		Permit(TriggerReject, StateRejected)

	b.Configure(StateAwaitingPayment).
		Permit(TriggerConfirmPaymentSubmitted, StateAwaitingPaymentConfirmation).
		Permit(TriggerReject, StateRejected)

	b.Configure(StateAwaitingPaymentConfirmation).
		Permit(TriggerValidatePayment, StatePaymentConfirmed).
		Permit(TriggerReject, StateRejected)

	b.Configure(StatePaymentConfirmed).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)

	return b.Build(current)
}
