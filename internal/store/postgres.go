package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fedresearch-cli/internal/db"
	"github.com/sells-group/fedresearch-cli/internal/model"
)

// PostgresStore attaches profiles to rows of the entities table.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*model.Profile, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT profile FROM entities WHERE entity_key = $1 AND profile IS NOT NULL`,
		key,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get profile %s", key)
	}

	var p model.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, eris.Wrapf(err, "postgres: decode profile %s", key)
	}
	return &p, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, profile *model.Profile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return eris.Wrapf(err, "postgres: encode profile %s", key)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE entities SET profile = $2, profile_updated_at = $3 WHERE entity_key = $1`,
		key, raw, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: put profile %s", key)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntityNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
