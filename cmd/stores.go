package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fedresearch-cli/internal/contacts"
	"github.com/sells-group/fedresearch-cli/internal/store"
)

func initContacts(ctx context.Context) (contacts.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "fedresearch.db"
		}
		return contacts.NewSQLite(dsn)
	case "postgres":
		return contacts.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initProfileStore selects where research profiles land. "relational" attaches
// them to the entities table alongside the contact data; "graph" attaches
// them to Entity nodes in Neo4j.
func initProfileStore(ctx context.Context) (store.ProfileStore, error) {
	switch cfg.Research.ProfileStore {
	case "graph":
		if cfg.Graph.URI == "" {
			return nil, eris.New("graph profile store requires graph.uri (FEDRESEARCH_GRAPH_URI)")
		}
		return store.NewGraph(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password, cfg.Graph.Database)
	case "relational", "":
		switch cfg.Store.Driver {
		case "sqlite":
			dsn := cfg.Store.DatabaseURL
			if dsn == "" {
				dsn = "fedresearch.db"
			}
			return store.NewSQLite(dsn)
		case "postgres":
			return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		default:
			return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
		}
	default:
		return nil, eris.Errorf("unsupported profile store: %s", cfg.Research.ProfileStore)
	}
}
