// Package auth provides the Actor capability consumed by the service layer.
// Identity itself is an external collaborator: requests arrive with either a
// trusted identity header set by the fronting proxy or a bearer bypass key
// used by scripts. This package only classifies the result.
package auth

import (
	"context"
	"net/http"
	"strings"
)

// Actor is an authenticated identity plus its admin predicate. The zero
// value is the anonymous actor.
type Actor struct {
	Email   string `json:"email,omitempty"`
	IsAdmin bool   `json:"isAdmin"`
	// IsService marks the admin bypass key used by scripts.
	IsService bool `json:"isService,omitempty"`
}

// Anonymous is the unauthenticated actor.
func Anonymous() Actor { return Actor{} }

// User builds an actor for an authenticated email.
func User(email string, admin bool) Actor { return Actor{Email: email, IsAdmin: admin} }

// Service is the actor behind the admin bypass key.
func Service() Actor { return Actor{Email: "service", IsAdmin: true, IsService: true} }

// Authed reports whether the actor carries any identity.
func (a Actor) Authed() bool { return a.Email != "" }

// Admin reports whether the actor may call admin operations.
func (a Actor) Admin() bool { return a.Authed() && a.IsAdmin }

// Resolver turns an incoming request into an Actor.
type Resolver struct {
	adminKey    string
	adminEmails map[string]struct{}
}

// NewResolver builds a resolver from the ADMIN_EMAILS list and the optional
// bypass key.
func NewResolver(adminKey string, adminEmails []string) *Resolver {
	set := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			set[e] = struct{}{}
		}
	}
	return &Resolver{adminKey: adminKey, adminEmails: set}
}

// FromRequest resolves the actor for a request. A bearer token equal to the
// bypass key yields the service actor; otherwise the trusted identity header
// is consulted. Anything else is anonymous.
func (r *Resolver) FromRequest(req *http.Request) Actor {
	if r.adminKey != "" {
		header := req.Header.Get("Authorization")
		if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && parts[0] == "Bearer" && parts[1] == r.adminKey {
			return Service()
		}
	}
	if email := strings.ToLower(strings.TrimSpace(req.Header.Get("X-User-Email"))); email != "" {
		_, admin := r.adminEmails[email]
		return User(email, admin)
	}
	return Anonymous()
}

type contextKey struct{}

// WithActor stores the actor on the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext retrieves the actor; anonymous when absent.
func FromContext(ctx context.Context) Actor {
	if a, ok := ctx.Value(contextKey{}).(Actor); ok {
		return a
	}
	return Anonymous()
}
