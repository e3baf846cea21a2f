package polymarket

import (
	"context"
	"time"

	"github.com/mselser95/arb-scanner/pkg/cache"
	"go.uber.org/zap"
)

// TokenResolver resolves a market slug to its Yes/No CLOB token ids.
type TokenResolver interface {
	ResolveSlugToTokens(ctx context.Context, slug string) (TokenPair, error)
}

// CachedResolver wraps a TokenResolver with a TTL cache. Token ids are
// immutable per market, so the TTL only bounds memory, not staleness.
type CachedResolver struct {
	inner  TokenResolver
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedResolver creates a caching token resolver.
func NewCachedResolver(inner TokenResolver, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedResolver {
	return &CachedResolver{inner: inner, cache: c, ttl: ttl, logger: logger}
}

// ResolveSlugToTokens returns the cached pair when present, resolving and
// caching on miss. Failures are not cached.
func (r *CachedResolver) ResolveSlugToTokens(ctx context.Context, slug string) (TokenPair, error) {
	key := "poly-tokens:" + slug

	if v, ok := r.cache.Get(key); ok {
		if pair, ok := v.(TokenPair); ok {
			return pair, nil
		}
	}

	pair, err := r.inner.ResolveSlugToTokens(ctx, slug)
	if err != nil {
		return TokenPair{}, err
	}

	r.cache.Set(key, pair, r.ttl)
	r.logger.Debug("poly-tokens-resolved",
		zap.String("slug", slug),
		zap.String("yes_token", pair.YesTokenID),
		zap.String("no_token", pair.NoTokenID))

	return pair, nil
}
