package contacts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fedresearch-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "contacts: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "contacts: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS entities (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_key         TEXT NOT NULL UNIQUE,
	kind               TEXT NOT NULL,
	name               TEXT NOT NULL,
	name_norm          TEXT NOT NULL,
	org_norm           TEXT NOT NULL DEFAULT '',
	title              TEXT NOT NULL DEFAULT '',
	organization       TEXT NOT NULL DEFAULT '',
	agency             TEXT NOT NULL DEFAULT '',
	email              TEXT NOT NULL DEFAULT '',
	phone              TEXT NOT NULL DEFAULT '',
	priority           INTEGER NOT NULL DEFAULT 2,
	contracts          TEXT NOT NULL DEFAULT '[]',
	agencies           TEXT NOT NULL DEFAULT '[]',
	profile            TEXT,
	profile_updated_at DATETIME,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(name_norm, org_norm)
);

CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);
CREATE INDEX IF NOT EXISTS idx_entities_priority ON entities(priority);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "contacts: sqlite migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Upsert(ctx context.Context, r *Record) (bool, error) {
	return s.upsertTx(ctx, s.db, r)
}

// querier covers both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) upsertTx(ctx context.Context, q querier, r *Record) (bool, error) {
	nameNorm := Normalize(r.Name)
	orgNorm := Normalize(r.Organization)
	now := time.Now().UTC()

	var existing Record
	var existingContracts, existingAgencies string
	err := q.QueryRowContext(ctx,
		`SELECT id, title, email, phone, agency, contracts, agencies FROM entities
		 WHERE name_norm = ? AND org_norm = ?`,
		nameNorm, orgNorm,
	).Scan(&existing.ID, &existing.Title, &existing.Email, &existing.Phone,
		&existing.Agency, &existingContracts, &existingAgencies)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		contracts, agencies, mErr := marshalLists(r.Contracts, r.Agencies)
		if mErr != nil {
			return false, mErr
		}
		_, err = q.ExecContext(ctx,
			`INSERT INTO entities
			 (entity_key, kind, name, name_norm, org_norm, title, organization, agency,
			  email, phone, priority, contracts, agencies, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.EntityKey(), string(r.Kind), r.Name, nameNorm, orgNorm, r.Title,
			r.Organization, r.Agency, r.Email, r.Phone, priorityOrDefault(r.Priority),
			contracts, agencies, now, now,
		)
		if err != nil {
			return false, eris.Wrapf(err, "contacts: insert %s", r.EntityKey())
		}
		r.Key = r.EntityKey()
		return true, nil

	case err != nil:
		return false, eris.Wrapf(err, "contacts: lookup %s", r.EntityKey())
	}

	// Duplicate: fill in fields the existing row is missing and merge the
	// contract/agency lists. Never downgrade populated data.
	merged := existing
	if merged.Title == "" {
		merged.Title = r.Title
	}
	if merged.Email == "" {
		merged.Email = r.Email
	}
	if merged.Phone == "" {
		merged.Phone = r.Phone
	}
	if merged.Agency == "" {
		merged.Agency = r.Agency
	}

	contracts, agencies, mErr := marshalLists(
		mergeLists(unmarshalList(existingContracts), r.Contracts),
		mergeLists(unmarshalList(existingAgencies), r.Agencies),
	)
	if mErr != nil {
		return false, mErr
	}

	_, err = q.ExecContext(ctx,
		`UPDATE entities SET title = ?, email = ?, phone = ?, agency = ?,
		 contracts = ?, agencies = ?, updated_at = ? WHERE id = ?`,
		merged.Title, merged.Email, merged.Phone, merged.Agency,
		contracts, agencies, now, existing.ID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "contacts: merge into %d", existing.ID)
	}
	r.ID = existing.ID
	return false, nil
}

func (s *SQLiteStore) BulkUpsert(ctx context.Context, records []Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "contacts: begin tx")
	}
	defer tx.Rollback()

	var created int64
	for i := range records {
		isNew, err := s.upsertTx(ctx, tx, &records[i])
		if err != nil {
			return 0, err
		}
		if isNew {
			created++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "contacts: commit tx")
	}
	return created, nil
}

func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Record, error) {
	query := `SELECT id, entity_key, kind, name, title, organization, agency,
	          email, phone, priority, contracts, agencies, created_at, updated_at
	          FROM entities`
	var conds []string
	var args []any

	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Contains != "" {
		conds = append(conds, "(name LIKE ? OR organization LIKE ?)")
		pattern := "%" + f.Contains + "%"
		args = append(args, pattern, pattern)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY priority, name"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "contacts: list")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var kind, contracts, agencies string
		if err := rows.Scan(&r.ID, &r.Key, &kind, &r.Name, &r.Title, &r.Organization,
			&r.Agency, &r.Email, &r.Phone, &r.Priority, &contracts, &agencies,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "contacts: scan row")
		}
		r.Kind = model.EntityKind(kind)
		r.Contracts = unmarshalList(contracts)
		r.Agencies = unmarshalList(agencies)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "contacts: iterate rows")
}

func (s *SQLiteStore) Stats(ctx context.Context, window time.Duration) (*Stats, error) {
	cutoff := time.Now().UTC().Add(-window)
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN kind = 'contact' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN kind = 'organization' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN profile IS NOT NULL THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN profile IS NOT NULL AND profile_updated_at < ? THEN 1 ELSE 0 END), 0)
		 FROM entities`,
		cutoff,
	).Scan(&st.Total, &st.Contacts, &st.Organizations, &st.Profiled, &st.Stale)
	if err != nil {
		return nil, eris.Wrap(err, "contacts: stats")
	}
	return &st, nil
}

func priorityOrDefault(p int) int {
	if p <= 0 {
		return 2
	}
	return p
}

func marshalLists(contracts, agencies []string) (string, string, error) {
	c, err := json.Marshal(emptyIfNil(contracts))
	if err != nil {
		return "", "", eris.Wrap(err, "contacts: marshal contracts")
	}
	a, err := json.Marshal(emptyIfNil(agencies))
	if err != nil {
		return "", "", eris.Wrap(err, "contacts: marshal agencies")
	}
	return string(c), string(a), nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func unmarshalList(raw string) []string {
	var out []string
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// mergeLists appends items from add that are not already in base,
// preserving order.
func mergeLists(base, add []string) []string {
	seen := make(map[string]bool, len(base))
	for _, v := range base {
		seen[v] = true
	}
	out := base
	for _, v := range add {
		if v != "" && !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}
