package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseBackend() BackendConfig {
	cfg := BackendConfig{}
	cfg.R2.Bucket = "assets"
	cfg.R2.Endpoint = "https://acct.r2.cloudflarestorage.com"
	cfg.R2.AccessKeyID = "key"
	cfg.R2.SecretAccessKey = "secret"
	cfg.R2.PublicBaseURL = "https://cdn.example.com"
	return cfg
}

func TestProviderSnapshot(t *testing.T) {
	p := NewProvider(baseBackend())
	assert.Equal(t, "assets", p.Backend().R2.Bucket)

	next := baseBackend()
	next.R2.Bucket = "assets-staging"
	p.Swap(next)
	assert.Equal(t, "assets-staging", p.Backend().R2.Bucket)
}

func TestApplyOverrides(t *testing.T) {
	t.Run("empty overrides keep the base", func(t *testing.T) {
		out := applyOverrides(baseBackend(), overrides{})
		assert.Equal(t, baseBackend(), out)
	})

	t.Run("fields replace base values", func(t *testing.T) {
		out := applyOverrides(baseBackend(), overrides{
			R2Bucket:    "assets-b",
			R2PublicURL: "https://cdn-b.example.com",
			R2KeyPrefix: "tenant-b",
		})
		assert.Equal(t, "assets-b", out.R2.Bucket)
		assert.Equal(t, "https://cdn-b.example.com", out.R2.PublicBaseURL)
		assert.Equal(t, "tenant-b", out.R2.KeyPrefix)
	})

	t.Run("forceConvex clears the bucket", func(t *testing.T) {
		out := applyOverrides(baseBackend(), overrides{ForceConvex: true, R2Bucket: "ignored"})
		assert.Empty(t, out.R2.Bucket)
	})
}

func TestWatchAppliesFileOnStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"r2Bucket":"assets-override"}`), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewProvider(baseBackend())
	require.NoError(t, p.Watch(ctx, baseBackend(), path, nil))
	assert.Equal(t, "assets-override", p.Backend().R2.Bucket)
}

func TestWatchPicksUpRewrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewProvider(baseBackend())
	require.NoError(t, p.Watch(ctx, baseBackend(), path, nil))

	require.NoError(t, os.WriteFile(path, []byte(`{"forceConvex":true}`), 0o644))

	deadline := time.Now().Add(5 * time.Second)
	for p.Backend().R2.Bucket != "" {
		if time.Now().After(deadline) {
			t.Fatal("override rewrite was not applied")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatchReportsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var gotErr error
	p := NewProvider(baseBackend())
	require.NoError(t, p.Watch(ctx, baseBackend(), path, func(err error) { gotErr = err }))

	assert.Error(t, gotErr)
	assert.Equal(t, "assets", p.Backend().R2.Bucket)
}

func TestWatchEmptyPathIsNoop(t *testing.T) {
	p := NewProvider(baseBackend())
	require.NoError(t, p.Watch(context.Background(), baseBackend(), "", nil))
	assert.Equal(t, baseBackend(), p.Backend())
}
