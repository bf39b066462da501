package service

import (
	"context"
	"testing"
	"time"

	"github.com/ecoregula/permitflow/internal/domain/entity"
	"github.com/ecoregula/permitflow/internal/domain/fault"
	"github.com/ecoregula/permitflow/internal/domain/workflow"
)

func newPermitService(requests *memoryRequestRepo, permits *mockPermitRepo, audit *mockAuditRepo, clock *fixedClock) PermitService {
	if permits == nil {
		permits = &mockPermitRepo{}
	}
	if audit == nil {
		audit = &mockAuditRepo{}
	}
	docs := &mockDocStore{}
	tx := &mockTxManager{}
	logger := &mockLogger{}
	gate := NewOrderingGate(requests)
	issuance := NewIssuanceService(permits, docs, tx, clock, logger)
	return NewPermitService(requests, audit, gate, issuance, docs, tx, clock, logger)
}

func submitRequest(t *testing.T, svc PermitService, applicantID int64) *entity.PermitRequest {
	t.Helper()
	req, err := svc.Submit(asRole(entity.RoleApplicant), SubmitRequestInput{
		ApplicantID: applicantID,
		Type:        entity.RequestTypeImport,
		Currency:    "USD",
		Items: []LineItemInput{
			{Description: "solvent", TariffCode: "2902.20", Quantity: 10, UnitValue: 25},
		},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	return req
}

func TestPermitService_Submit(t *testing.T) {
	clock := &fixedClock{now: time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)}
	repo := newMemoryRequestRepo()
	audit := &mockAuditRepo{}
	svc := newPermitService(repo, nil, audit, clock)

	req, err := svc.Submit(asRole(entity.RoleApplicant), SubmitRequestInput{
		ApplicantID: 5,
		Type:        entity.RequestTypeExport,
		Currency:    "EUR",
		Items: []LineItemInput{
			{Description: "ore", TariffCode: "2601.11", Quantity: 100, UnitValue: 3.5},
			{Description: "concentrate", TariffCode: "2603.00", Quantity: 50, UnitValue: 8},
		},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if req.Status != workflow.StatePending {
		t.Errorf("status = %s, want PENDING", req.Status)
	}
	if want := 100*3.5 + 50*8.0; req.TotalValue != want {
		t.Errorf("total value = %v, want %v", req.TotalValue, want)
	}
	if len(audit.entries) != 1 || audit.entries[0].Action != "SUBMIT" {
		t.Errorf("expected a SUBMIT audit entry, got %+v", audit.entries)
	}
}

func TestPermitService_SubmitValidation(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	svc := newPermitService(newMemoryRequestRepo(), nil, nil, clock)

	tests := []struct {
		name string
		in   SubmitRequestInput
	}{
		{"unknown type", SubmitRequestInput{Type: "TRANSIT", Currency: "USD", Items: []LineItemInput{{TariffCode: "1", Quantity: 1}}}},
		{"missing currency", SubmitRequestInput{Type: entity.RequestTypeImport, Items: []LineItemInput{{TariffCode: "1", Quantity: 1}}}},
		{"no items", SubmitRequestInput{Type: entity.RequestTypeImport, Currency: "USD"}},
		{"zero quantity", SubmitRequestInput{Type: entity.RequestTypeImport, Currency: "USD", Items: []LineItemInput{{TariffCode: "1", Quantity: 0}}}},
		{"missing tariff code", SubmitRequestInput{Type: entity.RequestTypeImport, Currency: "USD", Items: []LineItemInput{{Quantity: 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(asRole(entity.RoleApplicant), tt.in)
			if !fault.Is(err, fault.KindValidation) {
				t.Errorf("Submit() error = %v, want validation fault", err)
			}
		})
	}
}

func TestPermitService_SubmitRequiresApplicantRole(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	svc := newPermitService(newMemoryRequestRepo(), nil, nil, clock)

	_, err := svc.Submit(asRole(entity.RoleChief), SubmitRequestInput{
		Type: entity.RequestTypeImport, Currency: "USD",
		Items: []LineItemInput{{TariffCode: "1", Quantity: 1}},
	})
	if !fault.Is(err, fault.KindValidation) {
		t.Errorf("Submit() as chief error = %v, want validation fault", err)
	}
}

func TestPermitService_TechnicianQueueOrdering(t *testing.T) {
	clock := &fixedClock{now: time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)}
	repo := newMemoryRequestRepo()
	svc := newPermitService(repo, nil, nil, clock)

	r1 := submitRequest(t, svc, 1)
	clock.now = clock.now.Add(time.Hour)
	r2 := submitRequest(t, svc, 2)

	// Acting on the newer request while the older one waits is refused.
	_, err := svc.ValidateAsTechnician(asRole(entity.RoleTechnician), r2.ID)
	f, ok := fault.As(err)
	if !ok || f.Kind != fault.KindOutOfOrder {
		t.Fatalf("ValidateAsTechnician(r2) error = %v, want out-of-order fault", err)
	}
	if f.BlockingID != r1.ID {
		t.Errorf("blocking id = %d, want %d", f.BlockingID, r1.ID)
	}

	// The oldest request goes through, then the newer one is unblocked.
	if _, err := svc.ValidateAsTechnician(asRole(entity.RoleTechnician), r1.ID); err != nil {
		t.Fatalf("ValidateAsTechnician(r1) error = %v", err)
	}
	if _, err := svc.ValidateAsTechnician(asRole(entity.RoleTechnician), r2.ID); err != nil {
		t.Fatalf("ValidateAsTechnician(r2) after r1 error = %v", err)
	}
}

func TestPermitService_QueueTiesBreakByID(t *testing.T) {
	clock := &fixedClock{now: time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)}
	repo := newMemoryRequestRepo()
	svc := newPermitService(repo, nil, nil, clock)

	// Identical creation timestamps: insertion order decides.
	r1 := submitRequest(t, svc, 1)
	r2 := submitRequest(t, svc, 2)
	if !r1.CreatedAt.Equal(r2.CreatedAt) {
		t.Fatalf("fixture timestamps differ: %v vs %v", r1.CreatedAt, r2.CreatedAt)
	}

	_, err := svc.ValidateAsTechnician(asRole(entity.RoleTechnician), r2.ID)
	f, ok := fault.As(err)
	if !ok || f.Kind != fault.KindOutOfOrder {
		t.Fatalf("ValidateAsTechnician(r2) error = %v, want out-of-order fault", err)
	}
	if f.BlockingID != r1.ID {
		t.Errorf("blocking id = %d, want %d", f.BlockingID, r1.ID)
	}

	if _, err := svc.ValidateAsTechnician(asRole(entity.RoleTechnician), r1.ID); err != nil {
		t.Fatalf("ValidateAsTechnician(r1) error = %v", err)
	}
	if _, err := svc.ValidateAsTechnician(asRole(entity.RoleTechnician), r2.ID); err != nil {
		t.Fatalf("ValidateAsTechnician(r2) after r1 error = %v", err)
	}
}

func TestPermitService_ChiefQueueIndependentOfTechnicianQueue(t *testing.T) {
	clock := &fixedClock{now: time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)}
	repo := newMemoryRequestRepo()
	svc := newPermitService(repo, nil, nil, clock)

	r1 := submitRequest(t, svc, 1)
	clock.now = clock.now.Add(time.Hour)
	r2 := submitRequest(t, svc, 2)

	// Both clear the technician queue, entering the chief queue in the
	// same order. The chief is then held to that order too.
	if _, err := svc.ValidateAsTechnician(asRole(entity.RoleTechnician), r1.ID); err != nil {
		t.Fatalf("ValidateAsTechnician(r1) error = %v", err)
	}
	if _, err := svc.ValidateAsTechnician(asRole(entity.RoleTechnician), r2.ID); err != nil {
		t.Fatalf("ValidateAsTechnician(r2) error = %v", err)
	}

	_, err := svc.ValidateAsChief(asRole(entity.RoleChief), r2.ID)
	f, ok := fault.As(err)
	if !ok || f.Kind != fault.KindOutOfOrder {
		t.Fatalf("ValidateAsChief(r2) error = %v, want out-of-order fault", err)
	}
	if f.BlockingID != r1.ID {
		t.Errorf("blocking id = %d, want %d", f.BlockingID, r1.ID)
	}

	if _, err := svc.ValidateAsChief(asRole(entity.RoleChief), r1.ID); err != nil {
		t.Fatalf("ValidateAsChief(r1) error = %v", err)
	}
	if _, err := svc.ValidateAsChief(asRole(entity.RoleChief), r2.ID); err != nil {
		t.Fatalf("ValidateAsChief(r2) after r1 error = %v", err)
	}
}

func TestPermitService_TechnicianValidationKeepsStoredStatusPending(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	repo := newMemoryRequestRepo()
	svc := newPermitService(repo, nil, nil, clock)

	r := submitRequest(t, svc, 1)
	got, err := svc.ValidateAsTechnician(asRole(entity.RoleTechnician), r.ID)
	if err != nil {
		t.Fatalf("ValidateAsTechnician() error = %v", err)
	}

	if got.Status != workflow.StatePending {
		t.Errorf("stored status = %s, want PENDING", got.Status)
	}
	if !got.ValidatedByTechnician {
		t.Error("technician flag not set")
	}
	if got.MachineState() != workflow.StateTechnicianValidated {
		t.Errorf("machine state = %s, want TECHNICIAN_VALIDATED", got.MachineState())
	}
}

func TestPermitService_FullLifecycle(t *testing.T) {
	clock := &fixedClock{now: time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)}
	repo := newMemoryRequestRepo()
	permits := &mockPermitRepo{}
	var issued *entity.Permit
	permits.createFunc = func(ctx context.Context, p *entity.Permit) error {
		p.ID = 1
		issued = p
		return nil
	}
	permits.getByRequestFunc = func(ctx context.Context, requestID int64) (*entity.Permit, error) {
		if issued != nil && issued.RequestID == requestID {
			return issued, nil
		}
		return nil, nil
	}
	audit := &mockAuditRepo{}
	svc := newPermitService(repo, permits, audit, clock)

	r := submitRequest(t, svc, 1)

	if _, err := svc.ValidateAsTechnician(asRole(entity.RoleTechnician), r.ID); err != nil {
		t.Fatalf("ValidateAsTechnician() error = %v", err)
	}
	if _, err := svc.ValidateAsChief(asRole(entity.RoleChief), r.ID); err != nil {
		t.Fatalf("ValidateAsChief() error = %v", err)
	}
	if _, err := svc.AttachPaymentReference(asRole(entity.RoleChief), r.ID, "RUPE-77", []byte("proof"), "rupe.pdf"); err != nil {
		t.Fatalf("AttachPaymentReference() error = %v", err)
	}

	// The applicant's claim alone must not mark the payment as received.
	afterClaim, err := svc.ConfirmPaymentSubmitted(asRole(entity.RoleApplicant), r.ID)
	if err != nil {
		t.Fatalf("ConfirmPaymentSubmitted() error = %v", err)
	}
	if afterClaim.RUPEPaid {
		t.Error("RUPEPaid set by applicant claim; only chief validation is authoritative")
	}

	afterValidate, err := svc.ValidatePayment(asRole(entity.RoleChief), r.ID)
	if err != nil {
		t.Fatalf("ValidatePayment() error = %v", err)
	}
	if !afterValidate.RUPEPaid || !afterValidate.RUPEValidated {
		t.Error("payment validation did not set RUPE flags")
	}

	approved, permit, err := svc.Approve(asRole(entity.RoleBoard), r.ID, "Dr. Mensah")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if approved.Status != workflow.StateApproved {
		t.Errorf("status = %s, want APPROVED", approved.Status)
	}
	if approved.ApprovedAt == nil {
		t.Error("ApprovedAt not set")
	}
	if permit == nil || permit.Number != "AUT-2024-0001" {
		t.Errorf("permit = %+v, want number AUT-2024-0001", permit)
	}
	if permit.SignerName != "Dr. Mensah" {
		t.Errorf("signer = %s, want Dr. Mensah", permit.SignerName)
	}

	// One audit row per transition plus the submission itself.
	if len(audit.entries) != 7 {
		t.Errorf("audit entries = %d, want 7", len(audit.entries))
	}
}

func TestPermitService_InvalidTransitions(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	repo := newMemoryRequestRepo()
	svc := newPermitService(repo, nil, nil, clock)

	r := submitRequest(t, svc, 1)

	// Chief cannot act before the technician.
	_, err := svc.ValidateAsChief(asRole(entity.RoleChief), r.ID)
	if !fault.Is(err, fault.KindInvalidTransition) {
		t.Errorf("ValidateAsChief() on pending error = %v, want invalid-transition fault", err)
	}

	// Board cannot approve before payment confirmation.
	_, _, err = svc.Approve(asRole(entity.RoleBoard), r.ID, "signer")
	if !fault.Is(err, fault.KindInvalidTransition) {
		t.Errorf("Approve() on pending error = %v, want invalid-transition fault", err)
	}
}

func TestPermitService_Reject(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	repo := newMemoryRequestRepo()
	svc := newPermitService(repo, nil, nil, clock)

	r := submitRequest(t, svc, 1)

	_, err := svc.Reject(asRole(entity.RoleChief), r.ID, "")
	if !fault.Is(err, fault.KindValidation) {
		t.Errorf("Reject() with empty reason error = %v, want validation fault", err)
	}

	rejected, err := svc.Reject(asRole(entity.RoleChief), r.ID, "incomplete documentation")
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if rejected.Status != workflow.StateRejected {
		t.Errorf("status = %s, want REJECTED", rejected.Status)
	}
	if rejected.RejectionReason != "incomplete documentation" {
		t.Errorf("reason = %q", rejected.RejectionReason)
	}

	// Rejection is terminal.
	_, err = svc.Reject(asRole(entity.RoleBoard), r.ID, "again")
	if !fault.Is(err, fault.KindInvalidTransition) {
		t.Errorf("Reject() on rejected error = %v, want invalid-transition fault", err)
	}
}

func TestPermitService_GetRequestNotFound(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	svc := newPermitService(newMemoryRequestRepo(), nil, nil, clock)

	_, err := svc.GetRequest(context.Background(), 404)
	if !fault.Is(err, fault.KindNotFound) {
		t.Errorf("GetRequest() error = %v, want not-found fault", err)
	}
}
