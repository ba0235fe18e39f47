// internal/models/ranking.go
package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ServedBy tags which ranking path produced a result.
type ServedBy string

const (
	ServedByML           ServedBy = "ml"
	ServedByRule         ServedBy = "rule"
	ServedByRuleFallback ServedBy = "rule (fallback)"
)

// RankingRequest is an inbound request for ranked propositions.
// Immutable once decoded; context keys are free-form.
type RankingRequest struct {
	UserID  string            `json:"user_id"`
	Context map[string]string `json:"context"`
	Device  string            `json:"device,omitempty"`
	Limit   int               `json:"limit"`
}

// NormalizedContext renders the context payload as a stable
// "k1=v1;k2=v2" string with keys sorted, so identical contexts
// hash to identical cache keys regardless of map iteration order.
func (r *RankingRequest) NormalizedContext() string {
	if len(r.Context) == 0 {
		return ""
	}
	keys := make([]string, 0, len(r.Context))
	for k := range r.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, r.Context[k]))
	}
	return strings.Join(parts, ";")
}

// RankedItem is a single scored proposition in a result.
type RankedItem struct {
	PropositionID string  `json:"proposition_id"`
	Title         string  `json:"title,omitempty"`
	Score         float64 `json:"score"`
	Explanation   string  `json:"explanation,omitempty"`
}

// RankingResult is the ordered outcome of one ranking request.
// Produced exactly once per cache key; cached by value.
type RankingResult struct {
	Items        []RankedItem `json:"items"`
	ServedBy     ServedBy     `json:"served_by"`
	ModelVersion string       `json:"model_version,omitempty"`
	CacheHit     bool         `json:"cache_hit"`
	Degraded     bool         `json:"degraded,omitempty"`
	GeneratedAt  time.Time    `json:"generated_at"`
}
