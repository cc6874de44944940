package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Provider exposes the active backend configuration and allows it to be
// swapped at runtime. Readers always see a consistent snapshot.
type Provider struct {
	current atomic.Value // BackendConfig
}

// NewProvider seeds a provider with the boot-time backend config.
func NewProvider(initial BackendConfig) *Provider {
	p := &Provider{}
	p.current.Store(initial)
	return p
}

// Backend returns the current backend configuration snapshot.
func (p *Provider) Backend() BackendConfig {
	return p.current.Load().(BackendConfig)
}

// Swap replaces the backend configuration.
func (p *Provider) Swap(cfg BackendConfig) {
	p.current.Store(cfg)
}

// overrides is the on-disk shape of the overrides file. Empty fields fall
// back to the boot-time value.
type overrides struct {
	R2Bucket    string `json:"r2Bucket,omitempty"`
	R2PublicURL string `json:"r2PublicUrl,omitempty"`
	R2KeyPrefix string `json:"r2KeyPrefix,omitempty"`
	// ForceConvex routes new uploads to the platform store even when r2 is
	// configured. Existing r2 versions keep serving from r2.
	ForceConvex bool `json:"forceConvex,omitempty"`
}

// applyOverrides merges an overrides file into a base config.
func applyOverrides(base BackendConfig, o overrides) BackendConfig {
	out := base
	if o.ForceConvex {
		out.R2.Bucket = ""
		return out
	}
	if o.R2Bucket != "" {
		out.R2.Bucket = o.R2Bucket
	}
	if o.R2PublicURL != "" {
		out.R2.PublicBaseURL = o.R2PublicURL
	}
	if o.R2KeyPrefix != "" {
		out.R2.KeyPrefix = o.R2KeyPrefix
	}
	return out
}

// loadOverridesFile reads and merges the overrides file into the base.
func loadOverridesFile(base BackendConfig, path string) (BackendConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read overrides file: %w", err)
	}
	var o overrides
	if err := json.Unmarshal(data, &o); err != nil {
		return base, fmt.Errorf("failed to parse overrides file: %w", err)
	}
	return applyOverrides(base, o), nil
}

// Watch applies the overrides file now and on every change until the context
// is cancelled. A missing or malformed file leaves the current config in
// place; onError receives any load failure.
func (p *Provider) Watch(ctx context.Context, base BackendConfig, path string, onError func(error)) error {
	if path == "" {
		return nil
	}
	if cfg, err := loadOverridesFile(base, path); err == nil {
		p.Swap(cfg)
	} else if onError != nil {
		onError(err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if cfg, err := loadOverridesFile(base, path); err == nil {
					p.Swap(cfg)
				} else if onError != nil {
					onError(err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(err)
				}
			}
		}
	}()
	return nil
}
