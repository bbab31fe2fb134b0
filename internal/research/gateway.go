package research

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/fedresearch-cli/internal/model"
	"github.com/sells-group/fedresearch-cli/internal/store"
)

// Gateway serves cached research profiles while they remain inside the
// freshness window. Pure read: it never mutates the stored profile or its
// timestamp.
type Gateway struct {
	store  store.ProfileStore
	window time.Duration
	now    func() time.Time
}

// NewGateway creates a Gateway over the given profile store.
func NewGateway(st store.ProfileStore, window time.Duration) *Gateway {
	return &Gateway{store: st, window: window, now: time.Now}
}

// WithNow sets a fixed clock for testing.
func (g *Gateway) WithNow(now func() time.Time) *Gateway {
	g.now = now
	return g
}

// Get returns the cached profile for the key with its method overwritten to
// "cached", plus the method the profile was stored with, or (nil, "", false)
// on a miss. The stored method lets the caller tell a cached fallback apart
// from a cached fresh result. A store error or malformed payload is a miss,
// never an error: a corrupt cache entry must not block research. A stale
// profile (age beyond the window) is also a miss.
func (g *Gateway) Get(ctx context.Context, key string) (*model.Profile, model.Method, bool) {
	p, err := g.store.Get(ctx, key)
	if err != nil {
		zap.L().Warn("cache: unreadable profile, treating as miss",
			zap.String("entity", key), zap.Error(err))
		return nil, "", false
	}
	if p == nil {
		return nil, "", false
	}

	age := p.Age(g.now())
	if age > g.window {
		zap.L().Info("cache: stale, refreshing",
			zap.String("entity", key),
			zap.Duration("age", age),
			zap.Duration("window", g.window),
		)
		return nil, "", false
	}

	cached := *p
	cached.Method = model.MethodCached
	return &cached, p.Method, true
}
