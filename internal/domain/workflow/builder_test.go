package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestBuilder_GuardedTransition(t *testing.T) {
	allow := false

	b := NewBuilder()
	b.Configure(State("A")).
		PermitIf(Trigger("GO"), State("B"), func(ctx context.Context) bool { return allow })

	m, err := b.Build(State("A"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if err := m.Fire(context.Background(), Trigger("GO")); !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire with failing guard error = %v, want ErrGuardFailed", err)
	}
	if m.State() != State("A") {
		t.Errorf("state = %s, want A", m.State())
	}

	allow = true
	if err := m.Fire(context.Background(), Trigger("GO")); err != nil {
		t.Fatalf("Fire with passing guard error = %v", err)
	}
	if m.State() != State("B") {
		t.Errorf("state = %s, want B", m.State())
	}
}

func TestBuilder_BuildRejectsUnknownInitialState(t *testing.T) {
	b := NewBuilder()
	b.Configure(State("A")).Permit(Trigger("GO"), State("B"))

	if _, err := b.Build(State("C")); !errors.Is(err, ErrUnknownState) {
		t.Errorf("Build(C) error = %v, want ErrUnknownState", err)
	}
}

func TestBuilder_TargetOnlyStateIsKnown(t *testing.T) {
	b := NewBuilder()
	b.Configure(State("A")).Permit(Trigger("GO"), State("B"))

	// B never appears as a Configure source but is a valid resting state.
	m, err := b.Build(State("B"))
	if err != nil {
		t.Fatalf("Build(B) error = %v", err)
	}
	if got := m.PermittedTriggers(); len(got) != 0 {
		t.Errorf("PermittedTriggers() = %v, want none", got)
	}
}

func TestBuilder_ReusableAfterBuild(t *testing.T) {
	b := NewBuilder()
	b.Configure(State("A")).Permit(Trigger("GO"), State("B"))

	m1, err := b.Build(State("A"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	m2, err := b.Build(State("A"))
	if err != nil {
		t.Fatalf("second Build() error = %v", err)
	}

	if err := m1.Fire(context.Background(), Trigger("GO")); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if m2.State() != State("A") {
		t.Errorf("second machine moved with the first: state = %s", m2.State())
	}
}
