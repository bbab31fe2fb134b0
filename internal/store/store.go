package store

import (
	"context"
	"errors"

	"github.com/sells-group/fedresearch-cli/internal/model"
)

// ErrEntityNotFound is returned by Put when the entity key does not exist.
// Profile writes only augment existing entities; they never create them.
var ErrEntityNotFound = errors.New("store: entity not found")

// ProfileStore attaches research profiles to entities by exact key match.
// Implementations are interchangeable adapters (Neo4j graph, Postgres,
// SQLite, in-memory fake) so the orchestrator can be tested without a live
// database.
type ProfileStore interface {
	// Get returns the profile attached to the entity, or (nil, nil) when the
	// entity has no profile. A malformed stored payload is an error; callers
	// in the cache path treat any error as a miss.
	Get(ctx context.Context, key string) (*model.Profile, error)

	// Put attaches the profile to the entity's record. Idempotent: writing
	// the same profile twice produces the same stored state. Returns
	// ErrEntityNotFound when the key matches no entity.
	Put(ctx context.Context, key string, profile *model.Profile) error

	Close() error
}
