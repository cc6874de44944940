package vault

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/auth"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/blob"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/config"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/observability"
)

// Service is the orchestration layer over the repository and the byte
// backends. Every public method checks the actor on the context before
// touching state.
type Service struct {
	store         Store
	local         *blob.LocalStore
	cfg           *config.Provider
	log           *observability.Logger
	hub           *Hub
	publicBaseURL string
	intentTTL     time.Duration
	nowFn         func() int64

	// r2 clients are cached per config snapshot; hot-swapping the backend
	// config builds a fresh client on first use.
	r2mu  sync.Mutex
	r2    *blob.R2Client
	r2cfg blob.R2Config
}

// NewService wires the service. The local store is always present; the r2
// client is built lazily from the config provider.
func NewService(store Store, local *blob.LocalStore, cfg *config.Provider, log *observability.Logger, publicBaseURL string, intentTTL time.Duration) *Service {
	return &Service{
		store:         store,
		local:         local,
		cfg:           cfg,
		log:           log,
		hub:           NewHub(),
		publicBaseURL: publicBaseURL,
		intentTTL:     intentTTL,
		nowFn:         func() int64 { return time.Now().UnixMilli() },
	}
}

// Hub exposes the change notification hub for the HTTP layer's long-poll
// endpoints.
func (s *Service) Hub() *Hub { return s.hub }

// Store exposes the repository for the HTTP serving layer's read path.
func (s *Service) Store() Store { return s.store }

func (s *Service) now() int64 { return s.nowFn() }

func (s *Service) requireAuthed(ctx context.Context) error {
	if !auth.FromContext(ctx).Authed() {
		return ErrUnauthorized
	}
	return nil
}

func (s *Service) requireAdmin(ctx context.Context) error {
	actor := auth.FromContext(ctx)
	if !actor.Authed() {
		return ErrUnauthorized
	}
	if !actor.Admin() {
		return ErrForbidden
	}
	return nil
}

// activeBackend selects the byte backend for new uploads from the current
// config snapshot.
func (s *Service) activeBackend() (blob.Backend, error) {
	bc := s.cfg.Backend()
	if bc.Active() == blob.KindR2 {
		return s.r2For(bc.R2)
	}
	return s.local, nil
}

// backendForLocator picks the backend that can read an existing version,
// independent of what new uploads use.
func (s *Service) backendForLocator(loc blob.Locator) (blob.Backend, error) {
	if loc.Backend == blob.KindR2 {
		return s.r2For(s.cfg.Backend().R2)
	}
	return s.local, nil
}

func (s *Service) r2For(cfg blob.R2Config) (*blob.R2Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: r2 backend not configured", ErrBackendFailure)
	}
	s.r2mu.Lock()
	defer s.r2mu.Unlock()
	if s.r2 != nil && s.r2cfg == cfg {
		return s.r2, nil
	}
	client, err := blob.NewR2Client(cfg)
	if err != nil {
		return nil, err
	}
	s.r2 = client
	s.r2cfg = cfg
	return client, nil
}

// txBackoff bounds internal retries of transient conflicts.
var txBackoff = []time.Duration{50 * time.Millisecond, 200 * time.Millisecond, 800 * time.Millisecond}

// withRetry runs fn, retrying transient failures with bounded backoff.
func (s *Service) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !IsTransient(err) || attempt >= len(txBackoff) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(txBackoff[attempt]):
		}
	}
}

// SweepExpiredIntents removes upload intents past their TTL. Wired to the
// background scheduler; safe to run concurrently with uploads.
func (s *Service) SweepExpiredIntents(ctx context.Context) (int, error) {
	n, err := s.store.SweepIntents(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.WithField("count", n).Info("swept expired upload intents")
	}
	return n, nil
}
