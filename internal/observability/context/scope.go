// Package context carries request scoped identifiers used to decorate logs.
package context

import "context"

const (
	ActorAPIKey  = "api_key"
	ActorWebhook = "webhook"
	ActorSystem  = "system"
)

// Actor identifies who triggered the current unit of work.
type Actor struct {
	Type string
	ID   string
}

// Scope is the set of identifiers attached to a context.
type Scope struct {
	RequestID string
	DepositID string
	Actor     Actor
}

type scopeKey struct{}

// ScopeFrom returns the scope stored on ctx, or the zero scope.
func ScopeFrom(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	scope, _ := ctx.Value(scopeKey{}).(Scope)
	return scope
}

func withScope(ctx context.Context, mutate func(*Scope)) context.Context {
	if ctx == nil {
		return ctx
	}
	scope := ScopeFrom(ctx)
	mutate(&scope)
	return context.WithValue(ctx, scopeKey{}, scope)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return withScope(ctx, func(s *Scope) { s.RequestID = requestID })
}

func WithDepositID(ctx context.Context, depositID string) context.Context {
	if depositID == "" {
		return ctx
	}
	return withScope(ctx, func(s *Scope) { s.DepositID = depositID })
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	if actor.Type == "" {
		return ctx
	}
	return withScope(ctx, func(s *Scope) { s.Actor = actor })
}

func RequestIDFromContext(ctx context.Context) string {
	return ScopeFrom(ctx).RequestID
}
