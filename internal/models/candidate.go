// internal/models/candidate.go
package models

import "time"

// Candidate is a proposition eligible for scoring in a given request.
// Static attributes come from the catalog snapshot; the score assigned
// during ranking lives on RankedItem and is never persisted here.
type Candidate struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Category       string    `json:"category"`
	BasePopularity float64   `json:"base_popularity"`
	LastSeen       time.Time `json:"last_seen,omitempty"`
	Pinned         bool      `json:"pinned,omitempty"`
}

// FeatureVector is an ordered mapping from declared feature name to
// numeric value, tagged with the schema version it was built against.
// Every feature the schema declares is present; missing inputs are
// defaulted to 0.0 after normalization, never left out.
type FeatureVector struct {
	SchemaVersion string
	Values        map[string]float64
	Degraded      bool
}

// Get returns the named feature, or the 0.0 sentinel when absent.
func (v FeatureVector) Get(name string) float64 {
	return v.Values[name]
}
