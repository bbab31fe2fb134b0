package contacts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fedresearch-cli/internal/db"
	"github.com/sells-group/fedresearch-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "contacts: postgres connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "contacts: postgres ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS entities (
	id                 BIGSERIAL PRIMARY KEY,
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
	priority           INT NOT NULL DEFAULT 2,
	contracts          JSONB NOT NULL DEFAULT '[]',
	agencies           JSONB NOT NULL DEFAULT '[]',
	profile            JSONB,
	profile_updated_at TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(name_norm, org_norm)
);

CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);
CREATE INDEX IF NOT EXISTS idx_entities_priority ON entities(priority);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "contacts: postgres migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, r *Record) (bool, error) {
	nameNorm := Normalize(r.Name)
	orgNorm := Normalize(r.Organization)
	now := time.Now().UTC()

	var existing Record
	var existingContracts, existingAgencies []string
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, email, phone, agency, contracts, agencies FROM entities
		 WHERE name_norm = $1 AND org_norm = $2`,
		nameNorm, orgNorm,
	).Scan(&existing.ID, &existing.Title, &existing.Email, &existing.Phone,
		&existing.Agency, &existingContracts, &existingAgencies)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		contracts, agencies, mErr := marshalLists(r.Contracts, r.Agencies)
		if mErr != nil {
			return false, mErr
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO entities
			 (entity_key, kind, name, name_norm, org_norm, title, organization, agency,
			  email, phone, priority, contracts, agencies, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
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
		mergeLists(existingContracts, r.Contracts),
		mergeLists(existingAgencies, r.Agencies),
	)
	if mErr != nil {
		return false, mErr
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE entities SET title = $1, email = $2, phone = $3, agency = $4,
		 contracts = $5, agencies = $6, updated_at = $7 WHERE id = $8`,
		merged.Title, merged.Email, merged.Phone, merged.Agency,
		contracts, agencies, now, existing.ID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "contacts: merge into %d", existing.ID)
	}
	r.ID = existing.ID
	return false, nil
}

// collapseRecords merges records that share a normalized (name, organization)
// key, keeping first-seen scalar fields, filling blanks, and unioning list
// fields. The bulk insert's ON CONFLICT DO UPDATE cannot touch the same row
// twice in one statement, so each conflict key must appear at most once.
func collapseRecords(records []Record) []Record {
	out := make([]Record, 0, len(records))
	index := make(map[string]int, len(records))
	for _, r := range records {
		k := Normalize(r.Name) + "|" + Normalize(r.Organization)
		i, seen := index[k]
		if !seen {
			index[k] = len(out)
			out = append(out, r)
			continue
		}
		m := &out[i]
		if m.Title == "" {
			m.Title = r.Title
		}
		if m.Email == "" {
			m.Email = r.Email
		}
		if m.Phone == "" {
			m.Phone = r.Phone
		}
		if m.Agency == "" {
			m.Agency = r.Agency
		}
		if p := priorityOrDefault(r.Priority); p < priorityOrDefault(m.Priority) {
			m.Priority = p
		}
		m.Contracts = mergeLists(m.Contracts, r.Contracts)
		m.Agencies = mergeLists(m.Agencies, r.Agencies)
	}
	return out
}

// BulkUpsert loads many records via a temp table and INSERT ... ON CONFLICT.
// Duplicates within the batch (the same point of contact on two notices) are
// collapsed first. Unlike Upsert it does not merge list fields with rows
// already in the table; the fetch path re-reads merged state afterwards if
// it needs it.
func (s *PostgresStore) BulkUpsert(ctx context.Context, records []Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	records = collapseRecords(records)

	columns := []string{
		"entity_key", "kind", "name", "name_norm", "org_norm",
		"title", "organization", "agency", "email", "phone",
		"priority", "contracts", "agencies",
	}

	rows := make([][]any, 0, len(records))
	for _, r := range records {
		contracts, agencies, err := marshalLists(r.Contracts, r.Agencies)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{
			r.EntityKey(), string(r.Kind), r.Name, Normalize(r.Name), Normalize(r.Organization),
			r.Title, r.Organization, r.Agency, r.Email, r.Phone,
			priorityOrDefault(r.Priority), contracts, agencies,
		})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "entities",
		Columns:      columns,
		ConflictKeys: []string{"name_norm", "org_norm"},
	}, rows)
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Record, error) {
	query := `SELECT id, entity_key, kind, name, title, organization, agency,
	          email, phone, priority, contracts, agencies, created_at, updated_at
	          FROM entities`
	var args []any
	argn := 0

	appendCond := func(cond string, vals ...any) string {
		prefix := " AND "
		if argn == 0 {
			prefix = " WHERE "
		}
		args = append(args, vals...)
		argn += len(vals)
		return prefix + cond
	}

	if f.Kind != "" {
		query += appendCond(fmt.Sprintf("kind = $%d", argn+1), string(f.Kind))
	}
	if f.Contains != "" {
		pattern := "%" + f.Contains + "%"
		query += appendCond(fmt.Sprintf("(name ILIKE $%d OR organization ILIKE $%d)", argn+1, argn+2), pattern, pattern)
	}
	query += " ORDER BY priority, name"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "contacts: list")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var kind string
		var contracts, agencies []string
		if err := rows.Scan(&r.ID, &r.Key, &kind, &r.Name, &r.Title, &r.Organization,
			&r.Agency, &r.Email, &r.Phone, &r.Priority, &contracts, &agencies,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "contacts: scan row")
		}
		r.Kind = model.EntityKind(kind)
		r.Contracts = contracts
		r.Agencies = agencies
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "contacts: iterate rows")
}

func (s *PostgresStore) Stats(ctx context.Context, window time.Duration) (*Stats, error) {
	cutoff := time.Now().UTC().Add(-window)
	var st Stats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE kind = 'contact'),
		        COUNT(*) FILTER (WHERE kind = 'organization'),
		        COUNT(*) FILTER (WHERE profile IS NOT NULL),
		        COUNT(*) FILTER (WHERE profile IS NOT NULL AND profile_updated_at < $1)
		 FROM entities`,
		cutoff,
	).Scan(&st.Total, &st.Contacts, &st.Organizations, &st.Profiled, &st.Stale)
	if err != nil {
		return nil, eris.Wrap(err, "contacts: stats")
	}
	return &st, nil
}
