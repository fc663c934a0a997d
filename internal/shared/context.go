// Package shared carries request-scoped helpers used across domain packages.
package shared

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type actorContextKey struct{}

// ActorHeader names the header the upstream gateway uses to forward the
// authenticated user's identifier.
const ActorHeader = "X-User-ID"

// ContextWithActor stores the acting user's ID in context.
func ContextWithActor(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, actorContextKey{}, id)
}

// ActorFromContext extracts the acting user's ID from context.
// Returns nil when the request carried no identity.
func ActorFromContext(ctx context.Context) *uuid.UUID {
	id, ok := ctx.Value(actorContextKey{}).(uuid.UUID)
	if !ok {
		return nil
	}
	return &id
}

// ActorFromRequest resolves the acting user from the gateway header.
func ActorFromRequest(r *http.Request) *uuid.UUID {
	raw := r.Header.Get(ActorHeader)
	if raw == "" {
		return ActorFromContext(r.Context())
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
