package model

import (
	"encoding/json"
	"time"
)

// Method records how a profile was obtained. It is a first-class envelope
// field so a fallback placeholder can never be confused with a genuine
// low-confidence research result.
type Method string

const (
	MethodFresh    Method = "fresh"
	MethodCached   Method = "cached"
	MethodFallback Method = "fallback"
)

// Confidence is the quality tier of a research profile.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Profile is the structured result of one research invocation, attached to
// an entity in the profile store. The envelope fields (Method, Confidence,
// ResearchedAt) are typed and inspected by the engine; Payload is an opaque
// JSON blob of domain fields (overview, certifications, contacts found,
// sources) that the engine stores but never interprets.
type Profile struct {
	Method       Method          `json:"method"`
	Confidence   Confidence      `json:"confidence"`
	ResearchedAt time.Time       `json:"researched_at"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// Age returns how old the underlying research is at the given instant.
func (p Profile) Age(now time.Time) time.Duration {
	return now.Sub(p.ResearchedAt)
}

// IsFallback reports whether the profile is a placeholder produced when
// genuine research could not be performed.
func (p Profile) IsFallback() bool {
	return p.Method == MethodFallback
}

// Findings is the known shape of a research payload. The invoker marshals
// into this on fallback and the dashboard renders from it; the engine core
// only ever round-trips Payload as raw bytes.
type Findings struct {
	Overview       string   `json:"overview,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
	Contacts       []string `json:"contacts,omitempty"`
	Agencies       []string `json:"agencies,omitempty"`
	Contracts      []string `json:"contracts,omitempty"`
	Sources        []string `json:"sources,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}
