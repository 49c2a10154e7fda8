package genecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
	"github.com/USCbiostats/annoq-api-v2/internal/domain"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/gene"
)

const cacheKeyPrefix = "annoq:gene_pos:"

// notFoundMarker is cached for genes no source knows.
var notFoundMarker = []byte("null")

// store is the consumer interface for the gene position cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedLocator caches gene positions in a key-value store.
type CachedLocator struct {
	inner      gene.Locator
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner gene.Locator,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedLocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedLocator{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Locate returns a cached position or asks the inner locator.
// Found and not-found answers are cached; unavailability is not.
func (c *CachedLocator) Locate(ctx context.Context, name string) (gene.Position, error) {
	key := cacheKeyPrefix + gene.Normalize(name)

	if pos, found, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		if !found {
			return gene.Position{}, fmt.Errorf("%w: %s", domain.ErrGeneNotFound, name)
		}
		return pos, nil
	}

	c.incCache("miss")

	pos, err := c.inner.Locate(ctx, name)
	switch {
	case err == nil:
		if data, mErr := json.Marshal(pos); mErr == nil {
			c.putToCache(ctx, key, data)
		}
		return pos, nil
	case errors.Is(err, domain.ErrGeneNotFound):
		c.putToCache(ctx, key, notFoundMarker)
		return gene.Position{}, err
	default:
		return gene.Position{}, fmt.Errorf("locate gene: %w", err)
	}
}

func (c *CachedLocator) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// getFromCache reports (position, found, cached).
func (c *CachedLocator) getFromCache(ctx context.Context, key string) (gene.Position, bool, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached gene position", zap.String("key", key), zap.Error(err))
		}
		return gene.Position{}, false, false
	}
	if len(data) == 0 {
		return gene.Position{}, false, false
	}
	if string(data) == string(notFoundMarker) {
		return gene.Position{}, false, true
	}

	var pos gene.Position
	if err := json.Unmarshal(data, &pos); err != nil || pos.Chr == "" {
		c.logger.Warn("Failed to parse cached gene position", zap.String("key", key), zap.Error(err))
		return gene.Position{}, false, false
	}
	return pos, true, true
}

func (c *CachedLocator) putToCache(ctx context.Context, key string, data []byte) {
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache gene position", zap.String("key", key), zap.Error(err))
	}
}
