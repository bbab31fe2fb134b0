// Package contacts persists the contacts and organizations extracted from
// opportunity data. Records are deduplicated by normalized
// (name, organization); the research engine reads them back as entities.
package contacts

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/sells-group/fedresearch-cli/internal/model"
)

// Record is one contact or organization row.
type Record struct {
	ID           int64            `json:"id"`
	Key          string           `json:"entity_key"`
	Kind         model.EntityKind `json:"kind"`
	Name         string           `json:"name"`
	Title        string           `json:"title,omitempty"`
	Organization string           `json:"organization,omitempty"`
	Agency       string           `json:"agency,omitempty"`
	Email        string           `json:"email,omitempty"`
	Phone        string           `json:"phone,omitempty"`
	Priority     int              `json:"priority"`
	Contracts    []string         `json:"contracts,omitempty"`
	Agencies     []string         `json:"agencies,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Entity converts the record into the research engine's view of it.
func (r Record) Entity() model.Entity {
	return model.Entity{
		Kind:         r.Kind,
		Name:         r.Name,
		Title:        r.Title,
		Organization: r.Organization,
		Agency:       r.Agency,
		Email:        r.Email,
		Contracts:    r.Contracts,
		Agencies:     r.Agencies,
		Priority:     r.Priority,
	}
}

// EntityKey derives the record's stable key from its name and qualifier.
func (r Record) EntityKey() string {
	qualifier := r.Organization
	if qualifier == "" {
		qualifier = r.Agency
	}
	return model.EntityKey(r.Name, qualifier)
}

// Filter selects records for listing.
type Filter struct {
	Kind     model.EntityKind // empty = all kinds
	Contains string           // substring match on name or organization
	Limit    int              // 0 = no limit
}

// Stats summarizes the store for the status command.
type Stats struct {
	Total         int `json:"total"`
	Contacts      int `json:"contacts"`
	Organizations int `json:"organizations"`
	Profiled      int `json:"profiled"`
	Stale         int `json:"stale"`
}

// Store defines persistence for contact and organization records.
type Store interface {
	// Upsert inserts the record or merges it into an existing row with the
	// same normalized (name, organization). Returns whether a new row was
	// created.
	Upsert(ctx context.Context, r *Record) (bool, error)

	// BulkUpsert inserts or updates many records at once; used by the
	// opportunity fetch path.
	BulkUpsert(ctx context.Context, records []Record) (int64, error)

	// List returns records matching the filter, ordered by priority then
	// name.
	List(ctx context.Context, f Filter) ([]Record, error)

	// Stats reports store totals; profiles older than window count as stale.
	Stats(ctx context.Context, window time.Duration) (*Stats, error)

	Migrate(ctx context.Context) error
	Close() error
}

var foldCaser = cases.Fold()

// Normalize produces the duplicate-detection form of a name: case-folded
// with whitespace collapsed, so "Jane  DOE" and "jane doe" collide.
func Normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return foldCaser.String(s)
}
