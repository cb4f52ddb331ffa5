package auth

import (
	"context"

	"labbook/pkg/model"
)

// Principal is the authenticated caller of an operation.
type Principal struct {
	ID   string
	Role model.Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == model.RoleAdmin
}

// CanActOn reports whether p owns the resource or is an admin.
func (p Principal) CanActOn(ownerID string) bool {
	return p.IsAdmin() || (p.ID != "" && p.ID == ownerID)
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.ID != ""
}
