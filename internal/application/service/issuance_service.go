package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ecoregula/permitflow/internal/application/port"
	"github.com/ecoregula/permitflow/internal/domain/entity"
	"github.com/ecoregula/permitflow/internal/domain/fault"
)

// IssuanceService allocates permit numbers and persists the immutable
// permit record. Issuance is idempotent: a second call for the same request
// returns the already-issued permit.
type IssuanceService interface {
	// IssuePermit creates the permit for an approved request. Must run
	// inside the approving transaction so sequence allocation is
	// serialized per year.
	IssuePermit(ctx context.Context, req *entity.PermitRequest, signerName string) (*entity.Permit, error)
	GetByRequest(ctx context.Context, requestID int64) (*entity.Permit, error)
	ListForYear(ctx context.Context, year int) ([]*entity.Permit, error)
}

type issuanceServiceImpl struct {
	permits   port.PermitRepository
	docs      port.DocumentStore
	txManager port.TransactionManager
	clock     port.Clock
	logger    Logger
}

// NewIssuanceService creates a new IssuanceService
func NewIssuanceService(
	permits port.PermitRepository,
	docs port.DocumentStore,
	txManager port.TransactionManager,
	clock port.Clock,
	logger Logger,
) IssuanceService {
	return &issuanceServiceImpl{
		permits:   permits,
		docs:      docs,
		txManager: txManager,
		clock:     clock,
		logger:    logger,
	}
}

// IssuePermit allocates the next sequence for the calendar year and writes
// the permit with one child row per tariff line
func (s *issuanceServiceImpl) IssuePermit(ctx context.Context, req *entity.PermitRequest, signerName string) (*entity.Permit, error) {
	var permit *entity.Permit
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.permits.GetByRequestID(txCtx, req.ID)
		if err != nil {
			return fault.Storage(err)
		}
		if existing != nil {
			// Safe to retry: return the permit issued earlier.
			permit = existing
			return nil
		}

		now := s.clock.Now()
		year := now.Year()

		maxSeq, err := s.permits.MaxSequenceForYear(txCtx, year)
		if err != nil {
			return fault.Storage(err)
		}

		permit = &entity.Permit{
			Number:     entity.FormatPermitNumber(year, maxSeq+1),
			Year:       year,
			Sequence:   maxSeq + 1,
			RequestID:  req.ID,
			PermitType: req.Type,
			SignerName: signerName,
			EmittedAt:  now,
		}
		for _, it := range req.Items {
			permit.Items = append(permit.Items, entity.PermitItem{
				TariffCode:  it.TariffCode,
				Description: it.Description,
			})
		}

		if err := s.permits.Create(txCtx, permit); err != nil {
			return fault.Storage(err)
		}

		path, err := s.docs.Store(txCtx, renderPermitManifest(permit), fmt.Sprintf("%s.txt", permit.Number))
		if err != nil {
			return fault.Storage(err)
		}
		permit.DocumentPath = path
		if err := s.permits.UpdateDocumentPath(txCtx, permit.ID, path); err != nil {
			return fault.Storage(err)
		}

		return nil
	})
	if err != nil {
		s.logger.Error("Failed to issue permit", "error", err, "request_id", req.ID)
		return nil, err
	}

	s.logger.Info("Permit issued", "number", permit.Number, "request_id", req.ID)
	return permit, nil
}

// GetByRequest returns the permit issued for a request
func (s *issuanceServiceImpl) GetByRequest(ctx context.Context, requestID int64) (*entity.Permit, error) {
	permit, err := s.permits.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, fault.Storage(err)
	}
	if permit == nil {
		return nil, fault.NotFound("permit for request", requestID)
	}
	return permit, nil
}

// ListForYear returns all permits emitted in a calendar year, sequence ascending
func (s *issuanceServiceImpl) ListForYear(ctx context.Context, year int) ([]*entity.Permit, error) {
	permits, err := s.permits.ListByYear(ctx, year)
	if err != nil {
		return nil, fault.Storage(err)
	}
	return permits, nil
}

// renderPermitManifest produces the canonical text record stored alongside
// the permit row. Formal document rendering happens outside the core.
func renderPermitManifest(p *entity.Permit) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "PERMIT %s\n", p.Number)
	fmt.Fprintf(&b, "REQUEST %d\n", p.RequestID)
	fmt.Fprintf(&b, "TYPE %s\n", p.PermitType)
	fmt.Fprintf(&b, "SIGNER %s\n", p.SignerName)
	fmt.Fprintf(&b, "EMITTED %s\n", p.EmittedAt.UTC().Format("2006-01-02T15:04:05Z"))
	for _, it := range p.Items {
		fmt.Fprintf(&b, "ITEM %s %s\n", it.TariffCode, it.Description)
	}
	return []byte(b.String())
}
