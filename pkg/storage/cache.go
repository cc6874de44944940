package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/ids"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/vault"
)

// publishedTTL bounds staleness of the published-file cache. Writes
// invalidate eagerly; the TTL only covers invalidation failures.
const publishedTTL = 60 * time.Second

// CachedStore decorates a vault.Store with a redis read-through cache for
// the hot path: resolving a (folderPath, basename) pair to its published
// version. Every other method passes through. Cache failures degrade to the
// underlying store, never to an error.
type CachedStore struct {
	vault.Store
	client *redis.Client
}

// NewCachedStore connects to redis and wraps the store. The URL follows the
// redis scheme, e.g. redis://localhost:6379/0. A non-positive poolSize keeps
// the client default.
func NewCachedStore(ctx context.Context, inner vault.Store, redisURL string, poolSize int) (*CachedStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if poolSize > 0 {
		opt.PoolSize = poolSize
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &CachedStore{Store: inner, client: client}, nil
}

// newCachedStoreWithClient is the test seam.
func newCachedStoreWithClient(inner vault.Store, client *redis.Client) *CachedStore {
	return &CachedStore{Store: inner, client: client}
}

func publishedKey(folderPath, basename string) string {
	return "assetvault:published:" + folderPath + "\x00" + basename
}

// GetPublishedFile serves from cache when possible and fills the cache on
// miss.
func (c *CachedStore) GetPublishedFile(ctx context.Context, folderPath, basename string) (*vault.PublishedFile, error) {
	key := publishedKey(folderPath, basename)
	if data, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var pf vault.PublishedFile
		if err := json.Unmarshal(data, &pf); err == nil && pf.Asset != nil && pf.Version != nil {
			return &pf, nil
		}
		// Unreadable entry: drop it and fall through.
		c.client.Del(ctx, key)
	}

	pf, err := c.Store.GetPublishedFile(ctx, folderPath, basename)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(pf); err == nil {
		c.client.Set(ctx, key, data, publishedTTL)
	}
	return pf, nil
}

// PublishVersion invalidates the cached resolution for the asset's identity
// after the write commits.
func (c *CachedStore) PublishVersion(ctx context.Context, req vault.PublishRequest) (*vault.AssetVersion, error) {
	v, err := c.Store.PublishVersion(ctx, req)
	if err != nil {
		return nil, err
	}
	if a, err := c.Store.GetAssetByID(ctx, req.AssetID); err == nil {
		c.client.Del(ctx, publishedKey(a.FolderPath, a.Basename))
	}
	return v, nil
}

// RenameAsset invalidates both the old and the new identity.
func (c *CachedStore) RenameAsset(ctx context.Context, folderPath, basename, newBasename string, now int64) (*vault.Asset, error) {
	a, err := c.Store.RenameAsset(ctx, folderPath, basename, newBasename, now)
	if err != nil {
		return nil, err
	}
	c.client.Del(ctx, publishedKey(folderPath, basename), publishedKey(folderPath, newBasename))
	return a, nil
}

// SetVersionR2 invalidates any cached resolution that might embed the old
// locator.
func (c *CachedStore) SetVersionR2(ctx context.Context, id ids.VersionID, r2Key, r2PublicURL string) error {
	if err := c.Store.SetVersionR2(ctx, id, r2Key, r2PublicURL); err != nil {
		return err
	}
	c.invalidateVersion(ctx, id)
	return nil
}

// ClearVersionStorageID invalidates like SetVersionR2.
func (c *CachedStore) ClearVersionStorageID(ctx context.Context, id ids.VersionID) error {
	if err := c.Store.ClearVersionStorageID(ctx, id); err != nil {
		return err
	}
	c.invalidateVersion(ctx, id)
	return nil
}

func (c *CachedStore) invalidateVersion(ctx context.Context, id ids.VersionID) {
	v, err := c.Store.GetVersion(ctx, id)
	if err != nil {
		return
	}
	if a, err := c.Store.GetAssetByID(ctx, v.AssetID); err == nil {
		c.client.Del(ctx, publishedKey(a.FolderPath, a.Basename))
	}
}

// HealthCheck verifies both the store and redis.
func (c *CachedStore) HealthCheck(ctx context.Context) error {
	if err := c.Store.HealthCheck(ctx); err != nil {
		return err
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes redis and the underlying store.
func (c *CachedStore) Close() error {
	c.client.Close()
	return c.Store.Close()
}
