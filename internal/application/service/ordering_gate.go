package service

import (
	"context"

	"github.com/ecoregula/permitflow/internal/application/port"
	"github.com/ecoregula/permitflow/internal/domain/entity"
	"github.com/ecoregula/permitflow/internal/domain/fault"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// OrderingGate enforces the FIFO fairness rule: an actor may not validate a
// request while an older request in the same queue still awaits that actor.
// The technician and chief queues are independent; a chief is never blocked
// by technician-queue ordering.
type OrderingGate struct {
	requests port.PermitRequestRepository
}

// NewOrderingGate creates a new ordering gate over the request store
func NewOrderingGate(requests port.PermitRequestRepository) *OrderingGate {
	return &OrderingGate{requests: requests}
}

// CanAct returns nil when the actor may act on the candidate request, or an
// out-of-order fault naming the blocking request's id and creation date.
// Must be evaluated inside the same transaction as the transition it gates.
func (g *OrderingGate) CanAct(ctx context.Context, role entity.Role, requestID int64) error {
	var (
		oldest *entity.PermitRequest
		err    error
	)

	switch role {
	case entity.RoleTechnician:
		oldest, err = g.requests.OldestInTechnicianQueue(ctx)
	case entity.RoleChief:
		oldest, err = g.requests.OldestInChiefQueue(ctx)
	default:
		// Only technician and chief actions are queue-ordered.
		return nil
	}

	if err != nil {
		return fault.Storage(err)
	}

	if oldest != nil && oldest.ID != requestID {
		return fault.OutOfOrder(oldest.ID, oldest.CreatedAt)
	}

	return nil
}
