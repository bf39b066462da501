package port

import (
	"context"

	"github.com/ecoregula/permitflow/internal/domain/entity"
)

// Identity is the acting user as supplied by the outer authentication
// layer. The core records it on audit entries and enforces role-gated
// transitions against it.
type Identity struct {
	UserID string
	Name   string
	Role   entity.Role
}

type identityKey struct{}

// WithIdentity attaches the acting identity to the context
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom extracts the acting identity from the context
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
