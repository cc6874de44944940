package auth

import (
	"context"
	"net/http/httptest"
	"testing"
)

func TestResolverFromRequest(t *testing.T) {
	r := NewResolver("bypass-key", []string{"Admin@Example.com", " ops@example.com "})

	tests := []struct {
		name      string
		authz     string
		email     string
		wantEmail string
		wantAdmin bool
	}{
		{
			name: "anonymous without headers",
		},
		{
			name:      "bypass key yields the service actor",
			authz:     "Bearer bypass-key",
			wantEmail: "service",
			wantAdmin: true,
		},
		{
			name:      "wrong bearer token is anonymous",
			authz:     "Bearer wrong",
			wantEmail: "",
		},
		{
			name:      "identity header yields a user",
			email:     "user@example.com",
			wantEmail: "user@example.com",
		},
		{
			name:      "admin email is case-insensitive",
			email:     "ADMIN@example.COM",
			wantEmail: "admin@example.com",
			wantAdmin: true,
		},
		{
			name:      "admin list entries are trimmed",
			email:     "ops@example.com",
			wantEmail: "ops@example.com",
			wantAdmin: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.authz != "" {
				req.Header.Set("Authorization", tt.authz)
			}
			if tt.email != "" {
				req.Header.Set("X-User-Email", tt.email)
			}

			a := r.FromRequest(req)
			if a.Email != tt.wantEmail {
				t.Errorf("Email = %q, want %q", a.Email, tt.wantEmail)
			}
			if a.Admin() != tt.wantAdmin {
				t.Errorf("Admin() = %v, want %v", a.Admin(), tt.wantAdmin)
			}
		})
	}
}

func TestResolverWithoutBypassKey(t *testing.T) {
	r := NewResolver("", nil)
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer ")

	a := r.FromRequest(req)
	if a.Authed() {
		t.Errorf("empty bypass key must never match: %+v", a)
	}
}

func TestActorPredicates(t *testing.T) {
	if Anonymous().Authed() || Anonymous().Admin() {
		t.Error("anonymous actor must carry no privileges")
	}
	if !User("u@example.com", false).Authed() {
		t.Error("user actor should be authed")
	}
	if User("u@example.com", false).Admin() {
		t.Error("non-admin user must not be admin")
	}
	if !Service().Admin() || !Service().IsService {
		t.Error("service actor must be an admin service")
	}
}

func TestActorContextRoundtrip(t *testing.T) {
	ctx := WithActor(context.Background(), User("u@example.com", true))
	a := FromContext(ctx)
	if a.Email != "u@example.com" || !a.Admin() {
		t.Errorf("roundtrip lost actor: %+v", a)
	}

	if FromContext(context.Background()).Authed() {
		t.Error("missing actor should resolve to anonymous")
	}
}
