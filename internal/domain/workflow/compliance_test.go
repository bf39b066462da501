package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestCompliancePeriodMachine_ReopeningCycle(t *testing.T) {
	steps := []struct {
		trigger Trigger
		want    State
	}{
		{TriggerRequestReopening, PeriodReopeningRequested},
		{TriggerRequireReopeningPayment, PeriodReopeningAwaitingPay},
		{TriggerConfirmReopeningPayment, PeriodReopeningConfirming},
		{TriggerValidateReopeningPaid, PeriodReopened},
		{TriggerSubmitReport, PeriodClosed},
	}

	m, err := NewCompliancePeriodMachine(PeriodClosed)
	if err != nil {
		t.Fatalf("NewCompliancePeriodMachine() error = %v", err)
	}

	for _, step := range steps {
		if err := m.Fire(context.Background(), step.trigger); err != nil {
			t.Fatalf("Fire(%s) from %s error = %v", step.trigger, m.State(), err)
		}
		if m.State() != step.want {
			t.Fatalf("after %s: state = %s, want %s", step.trigger, m.State(), step.want)
		}
	}
}

func TestCompliancePeriodMachine_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		current State
		trigger Trigger
	}{
		{"reopen an open period", PeriodOpen, TriggerRequestReopening},
		{"submit to a closed period", PeriodClosed, TriggerSubmitReport},
		{"validate payment before attachment", PeriodReopeningRequested, TriggerValidateReopeningPaid},
		{"skip payment confirmation", PeriodReopeningAwaitingPay, TriggerValidateReopeningPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewCompliancePeriodMachine(tt.current)
			if err != nil {
				t.Fatalf("NewCompliancePeriodMachine(%s) error = %v", tt.current, err)
			}
			if err := m.Fire(context.Background(), tt.trigger); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Fire(%s) from %s error = %v, want ErrInvalidTransition", tt.trigger, tt.current, err)
			}
		})
	}
}

func TestCompliancePeriodMachine_ReopenedAllowsNewReopeningRequest(t *testing.T) {
	m, err := NewCompliancePeriodMachine(PeriodReopened)
	if err != nil {
		t.Fatalf("NewCompliancePeriodMachine() error = %v", err)
	}
	if err := m.Fire(context.Background(), TriggerRequestReopening); err != nil {
		t.Fatalf("Fire(REQUEST_REOPENING) error = %v", err)
	}
	if m.State() != PeriodReopeningRequested {
		t.Errorf("state = %s, want %s", m.State(), PeriodReopeningRequested)
	}
}

func TestComplianceSubmissionMachine_ApprovalPipeline(t *testing.T) {
	steps := []struct {
		trigger Trigger
		want    State
	}{
		{TriggerOpinionApprove, SubmissionAwaitingRUPE},
		{TriggerAttachSubmissionRUPE, SubmissionAwaitingPayment},
		{TriggerConfirmSubmissionPaid, SubmissionAwaitingConfirmation},
		{TriggerValidateSubmissionPaid, SubmissionAwaitingVisit},
		{TriggerCompleteVisit, SubmissionVisitDone},
		{TriggerAwaitFinalDocument, SubmissionAwaitingFinalDocument},
		{TriggerAttachFinalDocument, SubmissionConcluded},
	}

	m, err := NewComplianceSubmissionMachine(SubmissionPendingOpinion)
	if err != nil {
		t.Fatalf("NewComplianceSubmissionMachine() error = %v", err)
	}

	for _, step := range steps {
		if err := m.Fire(context.Background(), step.trigger); err != nil {
			t.Fatalf("Fire(%s) from %s error = %v", step.trigger, m.State(), err)
		}
		if m.State() != step.want {
			t.Fatalf("after %s: state = %s, want %s", step.trigger, m.State(), step.want)
		}
	}
}

func TestComplianceSubmissionMachine_ImprovementLoop(t *testing.T) {
	m, err := NewComplianceSubmissionMachine(SubmissionPendingOpinion)
	if err != nil {
		t.Fatalf("NewComplianceSubmissionMachine() error = %v", err)
	}

	if err := m.Fire(context.Background(), TriggerOpinionNeedsImprovement); err != nil {
		t.Fatalf("Fire(OPINION_NEEDS_IMPROVEMENT) error = %v", err)
	}
	if m.State() != SubmissionNeedsImprovement {
		t.Fatalf("state = %s, want %s", m.State(), SubmissionNeedsImprovement)
	}

	if err := m.Fire(context.Background(), TriggerResubmit); err != nil {
		t.Fatalf("Fire(RESUBMIT) error = %v", err)
	}
	if m.State() != SubmissionPendingOpinion {
		t.Errorf("state = %s, want %s", m.State(), SubmissionPendingOpinion)
	}
}

func TestComplianceSubmissionMachine_RejectionIsTerminal(t *testing.T) {
	m, err := NewComplianceSubmissionMachine(SubmissionPendingOpinion)
	if err != nil {
		t.Fatalf("NewComplianceSubmissionMachine() error = %v", err)
	}

	if err := m.Fire(context.Background(), TriggerOpinionReject); err != nil {
		t.Fatalf("Fire(OPINION_REJECT) error = %v", err)
	}
	if m.State() != SubmissionRejected {
		t.Fatalf("state = %s, want %s", m.State(), SubmissionRejected)
	}
	if got := m.PermittedTriggers(); len(got) != 0 {
		t.Errorf("PermittedTriggers() = %v, want none", got)
	}
}

func TestComplianceSubmissionMachine_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		current State
		trigger Trigger
	}{
		{"resubmit without improvement request", SubmissionPendingOpinion, TriggerResubmit},
		{"visit before payment validated", SubmissionAwaitingPayment, TriggerCompleteVisit},
		{"final document before visit", SubmissionAwaitingVisit, TriggerAttachFinalDocument},
		{"conclude from concluded", SubmissionConcluded, TriggerAttachFinalDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewComplianceSubmissionMachine(tt.current)
			if err != nil {
				t.Fatalf("NewComplianceSubmissionMachine(%s) error = %v", tt.current, err)
			}
			if err := m.Fire(context.Background(), tt.trigger); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Fire(%s) from %s error = %v, want ErrInvalidTransition", tt.trigger, tt.current, err)
			}
		})
	}
}

func TestIsTerminalSubmissionState(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{SubmissionPendingOpinion, false},
		{SubmissionAwaitingVisit, false},
		{SubmissionRejected, true},
		{SubmissionConcluded, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := IsTerminalSubmissionState(tt.state); got != tt.expected {
				t.Errorf("IsTerminalSubmissionState(%s) = %v, want %v", tt.state, got, tt.expected)
			}
		})
	}
}
