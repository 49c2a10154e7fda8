package genecache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
	"github.com/USCbiostats/annoq-api-v2/internal/domain/gene"
)

type mockLocator struct {
	pos   gene.Position
	err   error
	calls int
}

func (m *mockLocator) Locate(_ context.Context, _ string) (gene.Position, error) {
	m.calls++
	return m.pos, m.err
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestCachedLocator(t *testing.T, inner *mockLocator) (*CachedLocator, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	cl := New(inner, ms, time.Hour, nil, zap.NewNop())
	return cl, ms
}
