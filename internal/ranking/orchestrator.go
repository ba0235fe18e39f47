// internal/ranking/orchestrator.go
package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"proposition-engine/internal/common/config"
	"proposition-engine/internal/common/errors"
	"proposition-engine/internal/common/logger"
	"proposition-engine/internal/common/metrics"
	"proposition-engine/internal/features"
	"proposition-engine/internal/models"
)

// State names the orchestrator's pipeline stages. The final state is
// carried on the trace so callers and tests can assert the path taken.
type State string

const (
	StateSelectPath    State = "SELECT_PATH"
	StateScore         State = "SCORE"
	StateErrorFallback State = "ERROR_FALLBACK"
	StateAssemble      State = "ASSEMBLE"
	StateDone          State = "DONE"
)

// CandidateSource produces the candidate set for a request.
type CandidateSource interface {
	Candidates(ctx context.Context, req *models.RankingRequest) ([]models.Candidate, error)
}

// VectorSource assembles one feature vector per candidate.
type VectorSource interface {
	Vectors(ctx context.Context, schema features.Schema, req *models.RankingRequest, candidates []models.Candidate) map[string]models.FeatureVector
}

// ModelScorer is the ML path. Score may fail; Healthy gates whether the
// path is attempted at all.
type ModelScorer interface {
	Healthy() bool
	ModelVersion() string
	Score(ctx context.Context, req *models.RankingRequest, candidates []models.Candidate, vectors map[string]models.FeatureVector) (map[string]float64, error)
}

// RuleScorer is the deterministic path. It never fails.
type RuleScorer interface {
	Score(ctx context.Context, req *models.RankingRequest, candidates []models.Candidate, vectors map[string]models.FeatureVector) map[string]float64
}

// Orchestrator drives one ranking request through
// SELECT_PATH, SCORE, ASSEMBLE. Any ML failure in SCORE transitions to
// ERROR_FALLBACK and re-scores with the rule path; the caller always
// gets a ranked result, empty at worst.
type Orchestrator struct {
	candidates CandidateSource
	vectors    VectorSource
	ml         ModelScorer
	rule       RuleScorer
	schema     features.Schema
	cfg        config.RankingConfig
	logger     logger.Logger
}

func NewOrchestrator(
	candidates CandidateSource,
	vectors VectorSource,
	ml ModelScorer,
	rule RuleScorer,
	schema features.Schema,
	cfg config.RankingConfig,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		candidates: candidates,
		vectors:    vectors,
		ml:         ml,
		rule:       rule,
		schema:     schema,
		cfg:        cfg,
		logger:     log,
	}
}

// Rank produces the ordered result for one request. The whole pipeline
// runs under the request budget; if the deadline hits mid-pipeline the
// best available rule-scored result is returned rather than an error.
func (o *Orchestrator) Rank(ctx context.Context, req *models.RankingRequest) (*models.RankingResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.RequestBudget)*time.Millisecond)
	defer cancel()

	candidates, err := o.candidates.Candidates(ctx, req)
	degraded := false
	if err != nil {
		// Candidate source failures degrade to an empty result; only
		// malformed input may surface to the caller as an error.
		metrics.FallbackTransitions.WithLabelValues(string(errors.CodeOf(err))).Inc()
		o.logger.Warn("Candidate generation failed, serving empty result", map[string]interface{}{
			"user_id": req.UserID,
			"error":   err.Error(),
		})
		candidates = nil
		degraded = true
	}

	vectors := o.vectors.Vectors(ctx, o.schema, req, candidates)
	degraded = degraded || anyDegraded(vectors)

	// SELECT_PATH: one health snapshot, one budget check. The decision
	// is not revisited mid-request.
	trace := []State{StateSelectPath}
	useML := o.ml != nil && o.ml.Healthy() && o.remainingBudget(ctx) >= o.scoreTimeout()

	trace = append(trace, StateScore)
	var scores map[string]float64
	servedBy := models.ServedByRule
	modelVersion := ""

	if useML {
		scoreCtx, scoreCancel := context.WithTimeout(ctx, o.scoreTimeout())
		mlScores, mlErr := o.ml.Score(scoreCtx, req, candidates, vectors)
		scoreCancel()

		if mlErr != nil {
			trace = append(trace, StateErrorFallback)
			metrics.FallbackTransitions.WithLabelValues(string(errors.CodeOf(mlErr))).Inc()
			o.logger.Warn("Model path failed, falling back to rule ranker", map[string]interface{}{
				"user_id": req.UserID,
				"error":   mlErr.Error(),
			})
			scores = o.rule.Score(ctx, req, candidates, vectors)
			servedBy = models.ServedByRuleFallback
		} else {
			scores = mlScores
			servedBy = models.ServedByML
			modelVersion = o.ml.ModelVersion()
		}
	} else {
		scores = o.rule.Score(ctx, req, candidates, vectors)
	}

	trace = append(trace, StateAssemble)
	items := assemble(candidates, scores, req.Limit, servedBy)

	trace = append(trace, StateDone)
	elapsed := time.Since(start)
	metrics.RankingRequests.WithLabelValues(string(servedBy)).Inc()
	metrics.RankingLatency.Observe(elapsed.Seconds())

	o.logger.Debug("Ranking completed", map[string]interface{}{
		"user_id":   req.UserID,
		"served_by": string(servedBy),
		"trace":     trace,
		"items":     len(items),
		"elapsed":   elapsed.String(),
	})

	return &models.RankingResult{
		Items:        items,
		ServedBy:     servedBy,
		ModelVersion: modelVersion,
		Degraded:     degraded,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}

func (o *Orchestrator) scoreTimeout() time.Duration {
	return time.Duration(o.cfg.ScoreTimeout) * time.Millisecond
}

func (o *Orchestrator) remainingBudget(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return time.Duration(o.cfg.RequestBudget) * time.Millisecond
	}
	return time.Until(deadline)
}

// assemble orders candidates by score descending, breaking ties by most
// recent LastSeen then candidate ID, truncates to limit, and attaches a
// per-item explanation.
func assemble(candidates []models.Candidate, scores map[string]float64, limit int, servedBy models.ServedBy) []models.RankedItem {
	sorted := make([]models.Candidate, len(candidates))
	copy(sorted, candidates)

	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := scores[sorted[i].ID], scores[sorted[j].ID]
		if si != sj {
			return si > sj
		}
		if !sorted[i].LastSeen.Equal(sorted[j].LastSeen) {
			return sorted[i].LastSeen.After(sorted[j].LastSeen)
		}
		return sorted[i].ID < sorted[j].ID
	})

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	items := make([]models.RankedItem, len(sorted))
	for i, cand := range sorted {
		items[i] = models.RankedItem{
			PropositionID: cand.ID,
			Title:         cand.Title,
			Score:         scores[cand.ID],
			Explanation:   explanation(servedBy, cand),
		}
	}
	return items
}

func explanation(servedBy models.ServedBy, cand models.Candidate) string {
	switch servedBy {
	case models.ServedByML:
		return fmt.Sprintf("model score for %s category", cand.Category)
	case models.ServedByRuleFallback:
		return fmt.Sprintf("rule score for %s category after model fallback", cand.Category)
	default:
		return fmt.Sprintf("rule score for %s category", cand.Category)
	}
}

func anyDegraded(vectors map[string]models.FeatureVector) bool {
	for _, v := range vectors {
		if v.Degraded {
			return true
		}
	}
	return false
}
