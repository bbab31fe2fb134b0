package model

import "strings"

// EntityKind distinguishes the two researchable entity types.
type EntityKind string

const (
	KindContact      EntityKind = "contact"
	KindOrganization EntityKind = "organization"
)

// Entity is a contact or organization selected for research. Entities are
// read from the contact store; the research engine never creates or deletes
// them, it only attaches profiles.
type Entity struct {
	Kind         EntityKind `json:"kind"`
	Name         string     `json:"name"`
	Title        string     `json:"title,omitempty"`
	Organization string     `json:"organization,omitempty"`
	Agency       string     `json:"agency,omitempty"`
	Email        string     `json:"email,omitempty"`

	// Context passed to the research invoker.
	Contracts []string `json:"contracts,omitempty"`
	Agencies  []string `json:"agencies,omitempty"`

	// Priority orders entities within a batch (lower = earlier).
	Priority int `json:"priority,omitempty"`
}

// Key returns the stable identifying key for the entity: the name, qualified
// by organization (or agency) when one is known, so that two contacts with
// the same name at different organizations stay distinct. Ledger entries and
// profile lookups are keyed by this value, not by batch position.
func (e Entity) Key() string {
	qualifier := e.Organization
	if qualifier == "" {
		qualifier = e.Agency
	}
	return EntityKey(e.Name, qualifier)
}

// EntityKey builds an entity key from a name and optional qualifier.
func EntityKey(name, qualifier string) string {
	name = strings.TrimSpace(name)
	qualifier = strings.TrimSpace(qualifier)
	if qualifier == "" {
		return name
	}
	return name + " | " + qualifier
}
