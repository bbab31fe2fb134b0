package research

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fedresearch-cli/internal/model"
	"github.com/sells-group/fedresearch-cli/internal/store"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string) (*model.Profile, error) {
	return nil, assert.AnError
}
func (failingStore) Put(context.Context, string, *model.Profile) error { return assert.AnError }
func (failingStore) Close() error                                      { return nil }

func fixedNow() time.Time {
	return time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
}

func seedProfile(t *testing.T, st *store.MemoryStore, key string, age time.Duration) {
	t.Helper()
	st.AddEntity(key)
	require.NoError(t, st.Put(context.Background(), key, &model.Profile{
		Method:       model.MethodFresh,
		Confidence:   model.ConfidenceHigh,
		ResearchedAt: fixedNow().Add(-age),
		Payload:      json.RawMessage(`{"overview":"x"}`),
	}))
}

func TestGatewayHitInsideWindow(t *testing.T) {
	st := store.NewMemory()
	seedProfile(t, st, "jane | GSA", 3*24*time.Hour)

	g := NewGateway(st, 14*24*time.Hour).WithNow(fixedNow)
	p, stored, ok := g.Get(context.Background(), "jane | GSA")
	require.True(t, ok)
	assert.Equal(t, model.MethodCached, p.Method)
	assert.Equal(t, model.MethodFresh, stored)
	assert.Equal(t, model.ConfidenceHigh, p.Confidence)
}

func TestGatewayMissWhenStale(t *testing.T) {
	st := store.NewMemory()
	seedProfile(t, st, "jane | GSA", 15*24*time.Hour)

	g := NewGateway(st, 14*24*time.Hour).WithNow(fixedNow)
	_, _, ok := g.Get(context.Background(), "jane | GSA")
	assert.False(t, ok)
}

func TestGatewayBoundaryAgeIsHit(t *testing.T) {
	st := store.NewMemory()
	seedProfile(t, st, "jane | GSA", 14*24*time.Hour)

	// Age exactly equal to the window still serves from cache.
	g := NewGateway(st, 14*24*time.Hour).WithNow(fixedNow)
	_, _, ok := g.Get(context.Background(), "jane | GSA")
	assert.True(t, ok)
}

func TestGatewayMissWhenNoProfile(t *testing.T) {
	st := store.NewMemory()
	st.AddEntity("jane | GSA")

	g := NewGateway(st, 14*24*time.Hour).WithNow(fixedNow)
	_, _, ok := g.Get(context.Background(), "jane | GSA")
	assert.False(t, ok)
}

func TestGatewayStoreErrorIsMiss(t *testing.T) {
	g := NewGateway(failingStore{}, 14*24*time.Hour).WithNow(fixedNow)
	p, _, ok := g.Get(context.Background(), "jane | GSA")
	assert.False(t, ok)
	assert.Nil(t, p)
}

func TestGatewayDoesNotMutateStoredProfile(t *testing.T) {
	st := store.NewMemory()
	seedProfile(t, st, "jane | GSA", time.Hour)

	g := NewGateway(st, 14*24*time.Hour).WithNow(fixedNow)
	_, _, ok := g.Get(context.Background(), "jane | GSA")
	require.True(t, ok)

	stored, err := st.Get(context.Background(), "jane | GSA")
	require.NoError(t, err)
	assert.Equal(t, model.MethodFresh, stored.Method, "stored method stays fresh")
}

func TestGatewayServesCachedFallback(t *testing.T) {
	st := store.NewMemory()
	st.AddEntity("acme | DOD")
	require.NoError(t, st.Put(context.Background(), "acme | DOD", &model.Profile{
		Method:       model.MethodFallback,
		Confidence:   model.ConfidenceLow,
		ResearchedAt: fixedNow().Add(-time.Hour),
	}))

	// A recent fallback profile is still a cache hit; re-research waits for
	// the window to lapse. The stored method stays visible so the hit is
	// never mistaken for a completed research result.
	g := NewGateway(st, 14*24*time.Hour).WithNow(fixedNow)
	p, stored, ok := g.Get(context.Background(), "acme | DOD")
	require.True(t, ok)
	assert.Equal(t, model.MethodCached, p.Method)
	assert.Equal(t, model.MethodFallback, stored)
	assert.Equal(t, model.ConfidenceLow, p.Confidence)
}
