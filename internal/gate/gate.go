// Package gate provides a Gate/Policy authorization checkpoint. The Gate is a
// central registry of policies; each Policy defines the rules for one
// resource type. Every workflow in the application consults the same Gate
// instead of re-checking roles ad hoc, so the rules cannot drift between
// handlers.
//
// The package uses generics to allow any subject type:
//   - Gate[uuid.UUID] for plain user-id based auth
//   - Gate[Principal] for subjects carrying a role
package gate

import "context"

// Gate is the central authorization checkpoint.
// U is the subject type (must be comparable for the zero-value check).
// Register policies by resource type name, then call Authorize or Can.
type Gate[U comparable] struct {
	policies map[string]Policy[U]
}

// NewGate creates an empty Gate ready to register policies.
func NewGate[U comparable]() *Gate[U] {
	return &Gate[U]{policies: make(map[string]Policy[U])}
}

// Register adds a policy for a given resource type (e.g., "consultation").
// Overwrites any existing policy for that type.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

// Authorize checks authorization and returns an error if denied.
// Returns ErrUnauthorized for a zero-value subject or a denied action;
// returns ErrNoPolicyDefined if resourceType has no registered policy.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	var zero U
	if user == zero {
		return ErrUnauthorized
	}
	p, ok := g.policies[resourceType]
	if !ok {
		return ErrNoPolicyDefined
	}
	if !p.Can(ctx, user, action, resource) {
		return ErrUnauthorized
	}
	return nil
}

// Can is a convenience wrapper returning bool instead of error.
func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}
