package store

import (
	"context"
	"encoding/json"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fedresearch-cli/internal/model"
)

// GraphStore attaches profiles to Entity nodes in Neo4j. Profiles are stored
// as a JSON string property alongside a profile_updated_at marker, so writes
// are idempotent upserts on an existing node and never create entities.
type GraphStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewGraph connects to Neo4j and verifies connectivity.
func NewGraph(ctx context.Context, uri, username, password, database string) (*GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, eris.Wrap(err, "neo4j: create driver")
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, eris.Wrap(err, "neo4j: verify connectivity")
	}
	return &GraphStore{driver: driver, database: database}, nil
}

func (g *GraphStore) Get(ctx context.Context, key string) (*model.Profile, error) {
	result, err := neo4j.ExecuteQuery(ctx, g.driver,
		`MATCH (e:Entity {key: $key}) RETURN e.profile AS profile`,
		map[string]any{"key": key},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(g.database),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "neo4j: get profile %s", key)
	}
	if len(result.Records) == 0 {
		return nil, nil
	}

	val, found := result.Records[0].Get("profile")
	if !found || val == nil {
		return nil, nil
	}
	raw, ok := val.(string)
	if !ok {
		return nil, eris.Errorf("neo4j: profile property on %s is not a string", key)
	}

	var p model.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, eris.Wrapf(err, "neo4j: decode profile %s", key)
	}
	return &p, nil
}

func (g *GraphStore) Put(ctx context.Context, key string, profile *model.Profile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return eris.Wrapf(err, "neo4j: encode profile %s", key)
	}

	result, err := neo4j.ExecuteQuery(ctx, g.driver,
		`MATCH (e:Entity {key: $key})
		 SET e.profile = $profile, e.profile_updated_at = datetime()
		 RETURN e.key`,
		map[string]any{"key": key, "profile": string(raw)},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(g.database),
	)
	if err != nil {
		return eris.Wrapf(err, "neo4j: put profile %s", key)
	}
	if len(result.Records) == 0 {
		return ErrEntityNotFound
	}
	return nil
}

func (g *GraphStore) Close() error {
	return g.driver.Close(context.Background())
}
