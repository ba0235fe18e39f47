// internal/catalog/generator.go
package catalog

import (
	"context"
	"sort"

	"proposition-engine/internal/common/logger"
	"proposition-engine/internal/models"
)

// Generator produces the candidate set for a ranking request: the top N
// propositions of every category in the current snapshot, plus any pinned
// propositions, bounded by maxCandidates. Output is deterministic for a
// given snapshot and request.
type Generator struct {
	holder        *Holder
	topNPerCat    int
	maxCandidates int
	logger        logger.Logger
}

func NewGenerator(holder *Holder, topNPerCategory, maxCandidates int, log logger.Logger) *Generator {
	return &Generator{
		holder:        holder,
		topNPerCat:    topNPerCategory,
		maxCandidates: maxCandidates,
		logger:        log,
	}
}

// Candidates assembles the candidate set for the request. The snapshot
// is in-memory, so generation succeeds even when the request deadline
// has already passed. An empty snapshot yields an empty set, not an
// error: cold start serves an empty result.
func (g *Generator) Candidates(ctx context.Context, req *models.RankingRequest) ([]models.Candidate, error) {
	snap := g.holder.Current()
	if snap == nil || snap.Size() == 0 {
		g.logger.Warn("Catalog snapshot empty, serving empty candidate set", map[string]interface{}{
			"user_id": req.UserID,
		})
		return nil, nil
	}

	seen := make(map[string]bool)
	var out []models.Candidate

	// Pinned candidates are always included, before the per-category
	// budget applies.
	for _, c := range snap.Pinned() {
		if !seen[c.ID] {
			seen[c.ID] = true
			out = append(out, c)
		}
	}

	for _, cat := range snap.Categories() {
		for _, c := range snap.TopN(cat, g.topNPerCat) {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
		}
	}

	if g.maxCandidates > 0 && len(out) > g.maxCandidates {
		// Keep the most popular overall when trimming to the global
		// bound; pinned entries sort first so they survive the cut.
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Pinned != out[j].Pinned {
				return out[i].Pinned
			}
			if out[i].BasePopularity != out[j].BasePopularity {
				return out[i].BasePopularity > out[j].BasePopularity
			}
			return out[i].ID < out[j].ID
		})
		out = out[:g.maxCandidates]
	}

	g.logger.Debug("Candidate set generated", map[string]interface{}{
		"user_id":    req.UserID,
		"candidates": len(out),
		"snapshot":   snap.TakenAt,
	})

	return out, nil
}
