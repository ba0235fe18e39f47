// internal/ranking/ml/ranker.go
package ml

import (
	"context"
	"math"
	"time"

	"proposition-engine/internal/common/config"
	"proposition-engine/internal/common/errors"
	"proposition-engine/internal/common/logger"
	"proposition-engine/internal/common/metrics"
	"proposition-engine/internal/models"
)

// Score blend: the model probability dominates but catalog popularity
// keeps a floor under thin-history users.
const (
	modelBlendWeight      = 0.6
	popularityBlendWeight = 0.4
)

// Ranker scores candidates with the active logistic-regression model.
// It validates the feature schema per call and tracks its own health
// over a sliding window of recent invocations.
type Ranker struct {
	provider *Provider
	health   *healthWindow
	logger   logger.Logger
}

func NewRanker(provider *Provider, cfg config.ModelConfig, log logger.Logger) *Ranker {
	return &Ranker{
		provider: provider,
		health: newHealthWindow(
			cfg.HealthWindow,
			cfg.MaxErrorRate,
			time.Duration(cfg.LatencyBudget)*time.Millisecond,
		),
		logger: log,
	}
}

// Healthy reports whether the windowed error rate and latency are within
// thresholds. The orchestrator reads this once per request.
func (r *Ranker) Healthy() bool {
	return r.provider.Current() != nil && r.health.healthy()
}

// ModelVersion returns the active model version, or "" when none is
// loaded. Cache keys embed it so entries scoped to an old model are
// never served after a swap.
func (r *Ranker) ModelVersion() string {
	h := r.provider.Current()
	if h == nil {
		return ""
	}
	return h.Version
}

// SwapModel publishes a new model and resets the health window so stale
// failures from the previous version do not poison the new one.
func (r *Ranker) SwapModel(h *ModelHandle) string {
	version := r.provider.Swap(h)
	r.health.reset()
	setHealthGauge(r.Healthy())
	r.logger.Info("Model swapped", map[string]interface{}{"version": version})
	return version
}

func setHealthGauge(healthy bool) {
	if healthy {
		metrics.MLHealthy.Set(1)
	} else {
		metrics.MLHealthy.Set(0)
	}
}

// Score computes a score per candidate ID. Every call is recorded in the
// health window, success or failure, so fallbacks feed back into path
// selection.
func (r *Ranker) Score(ctx context.Context, req *models.RankingRequest, candidates []models.Candidate, vectors map[string]models.FeatureVector) (map[string]float64, error) {
	start := time.Now()
	scores, err := r.score(ctx, candidates, vectors)
	elapsed := time.Since(start)

	r.health.record(err != nil, elapsed)
	setHealthGauge(r.Healthy())
	metrics.MLScoreLatency.Observe(elapsed.Seconds())
	if err != nil {
		metrics.MLScoreErrors.WithLabelValues(string(errors.CodeOf(err))).Inc()
		r.logger.Warn("Model scoring failed", map[string]interface{}{
			"user_id": req.UserID,
			"error":   err.Error(),
		})
		return nil, err
	}

	return scores, nil
}

func (r *Ranker) score(ctx context.Context, candidates []models.Candidate, vectors map[string]models.FeatureVector) (map[string]float64, error) {
	handle := r.provider.Current()
	if handle == nil {
		return nil, errors.NewModelNotLoadedError()
	}

	scores := make(map[string]float64, len(candidates))
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewScoreTimeoutError(0)
		}

		vec, ok := vectors[cand.ID]
		if !ok {
			vec = models.FeatureVector{SchemaVersion: handle.Schema.Version}
		}
		if vec.SchemaVersion != handle.Schema.Version {
			return nil, errors.NewSchemaMismatchError(handle.Schema.Version, vec.SchemaVersion)
		}

		p := sigmoid(handle.Bias + dot(handle.Weights, vec))
		score := modelBlendWeight*p + popularityBlendWeight*clamp01(cand.BasePopularity)
		scores[cand.ID] = clamp01(score)
	}

	return scores, nil
}

// dot multiplies model weights against the vector. Features the model
// knows but the vector lacks contribute the 0.0 sentinel; vector entries
// the model does not weight are ignored.
func dot(weights map[string]float64, vec models.FeatureVector) float64 {
	var sum float64
	for name, w := range weights {
		sum += w * vec.Get(name)
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
