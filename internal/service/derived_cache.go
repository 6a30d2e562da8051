package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/fincore/internal/infra/observability"
	"github.com/boddenberg/fincore/internal/port"

	"go.uber.org/zap"
)

// Cache scopes. Every derived value of an organization lives under
// fincore:{org}:{scope}: so a write can drop a whole scope by prefix.
const (
	ScopeBudget      = "budget"
	ScopeReport      = "report"
	ScopeCategory    = "category"
	ScopeTransaction = "transaction"
)

// AllScopes lists every derived-value scope of an organization.
var AllScopes = []string{ScopeBudget, ScopeReport, ScopeCategory, ScopeTransaction}

// ScopePrefix returns the key prefix shared by all entries of one scope.
func ScopePrefix(orgID, scope string) string {
	return fmt.Sprintf("fincore:%s:%s:", orgID, scope)
}

// CacheKey builds fincore:{org}:{scope}:{name}[:{part}...].
func CacheKey(orgID, scope, name string, parts ...string) string {
	var sb strings.Builder
	sb.WriteString(ScopePrefix(orgID, scope))
	sb.WriteString(name)
	for _, p := range parts {
		sb.WriteByte(':')
		sb.WriteString(p)
	}
	return sb.String()
}

// FilterHash is the hex SHA-256 of the canonical JSON encoding of v.
// Callers normalize v first (sorted id lists, UTC times).
func FilterHash(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte(fmt.Sprintf("%#v", v))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// DerivedCache wraps a CacheStore with JSON encoding, a per-call timeout and
// fault tolerance: any cache failure is logged and treated as a miss.
type DerivedCache struct {
	store   port.CacheStore
	timeout time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewDerivedCache creates the cache wrapper. A nil store disables caching.
func NewDerivedCache(store port.CacheStore, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *DerivedCache {
	if timeout <= 0 {
		timeout = 200 * time.Millisecond
	}
	return &DerivedCache{store: store, timeout: timeout, metrics: metrics, logger: logger}
}

// load decodes the entry at key into dst. It reports false on a miss, on a
// cache fault and on an undecodable entry, which is also deleted.
func (c *DerivedCache) load(ctx context.Context, cacheName, key string, dst any) bool {
	if c == nil || c.store == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.fault(cacheName, "get", key, err)
		return false
	}
	if !ok {
		c.metrics.IncrCacheMiss(cacheName)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.fault(cacheName, "decode", key, err)
		if err := c.store.Delete(ctx, key); err != nil {
			c.fault(cacheName, "delete", key, err)
		}
		return false
	}
	c.metrics.IncrCacheHit(cacheName)
	return true
}

// save encodes v and stores it under key with ttl.
func (c *DerivedCache) save(ctx context.Context, cacheName, key string, v any, ttl time.Duration) {
	if c == nil || c.store == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.fault(cacheName, "encode", key, err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		c.fault(cacheName, "set", key, err)
	}
}

// Invalidate drops every entry of the given scopes for an organization.
func (c *DerivedCache) Invalidate(ctx context.Context, orgID string, scopes ...string) {
	if c == nil || c.store == nil {
		return
	}
	for _, scope := range scopes {
		ictx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.store.DeletePrefix(ictx, ScopePrefix(orgID, scope))
		cancel()
		if err != nil {
			c.fault(scope, "invalidate", ScopePrefix(orgID, scope), err)
		}
	}
}

func (c *DerivedCache) fault(cacheName, op, key string, err error) {
	c.metrics.IncrCacheError(cacheName)
	c.logger.Warn("cache fault, falling back to store",
		zap.String("cache", cacheName),
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
}
