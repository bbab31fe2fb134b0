package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fedresearch-cli/internal/model"
)

// SQLiteStore attaches profiles to rows of the entities table in a local
// SQLite database. Shares the file with the contacts store; WAL mode keeps
// the two connections from blocking each other.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*model.Profile, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT profile FROM entities WHERE entity_key = ? AND profile IS NOT NULL`,
		key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get profile %s", key)
	}

	var p model.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, eris.Wrapf(err, "sqlite: decode profile %s", key)
	}
	return &p, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, profile *model.Profile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return eris.Wrapf(err, "sqlite: encode profile %s", key)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET profile = ?, profile_updated_at = ? WHERE entity_key = ?`,
		raw, time.Now().UTC(), key,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: put profile %s", key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrEntityNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
