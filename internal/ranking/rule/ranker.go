// internal/ranking/rule/ranker.go
package rule

import (
	"context"
	"math"
	"time"

	"github.com/google/cel-go/cel"

	"proposition-engine/internal/common/config"
	"proposition-engine/internal/common/logger"
	"proposition-engine/internal/models"
)

// Ranker scores candidates with a deterministic weighted blend of
// interaction frequency, recency decay over last-seen, and a context
// match signal. It never returns an error: any missing input degrades
// to a popularity-driven score.
type Ranker struct {
	cfg     config.RuleConfig
	program cel.Program
	logger  logger.Logger
}

// New compiles the optional context-match expression once at startup. A
// malformed expression is logged and the ranker falls back to the
// category indicator for every candidate.
func New(cfg config.RuleConfig, log logger.Logger) *Ranker {
	r := &Ranker{cfg: cfg, logger: log}

	if cfg.ContextMatchExpr != "" {
		prg, err := compileContextExpr(cfg.ContextMatchExpr)
		if err != nil {
			log.Warn("Context match expression rejected, using category indicator", map[string]interface{}{
				"expr":  cfg.ContextMatchExpr,
				"error": err.Error(),
			})
		} else {
			r.program = prg
		}
	}

	return r
}

func compileContextExpr(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("ctx", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("candidate", cel.DynType),
	)
	if err != nil {
		return nil, err
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	return env.Program(ast)
}

// Score computes scores for every candidate, keyed by candidate ID. All
// scores are clamped to [0,1].
func (r *Ranker) Score(ctx context.Context, req *models.RankingRequest, candidates []models.Candidate, vectors map[string]models.FeatureVector) map[string]float64 {
	scores := make(map[string]float64, len(candidates))
	now := time.Now().UTC()

	for _, cand := range candidates {
		vec := vectors[cand.ID]

		freq := r.frequency(cand, vec)
		recency := r.recencyDecay(cand.LastSeen, now)
		match := r.contextMatch(req, cand)

		score := r.cfg.FrequencyWeight*freq +
			r.cfg.RecencyWeight*recency +
			r.cfg.ContextMatchWeight*match

		scores[cand.ID] = clamp01(score)
	}

	return scores
}

// frequency reads the normalized interaction frequency; degraded vectors
// fall back to catalog popularity.
func (r *Ranker) frequency(cand models.Candidate, vec models.FeatureVector) float64 {
	if vec.Degraded || vec.Values == nil {
		return clamp01(cand.BasePopularity)
	}
	if f, ok := vec.Values["interaction_frequency"]; ok {
		return clamp01(f)
	}
	return clamp01(cand.BasePopularity)
}

// recencyDecay halves the signal every configured half-life. A zero
// last-seen counts as never shown and scores full recency, so fresh
// propositions are not penalized.
func (r *Ranker) recencyDecay(lastSeen time.Time, now time.Time) float64 {
	if lastSeen.IsZero() {
		return 1.0
	}
	halfLife := float64(r.cfg.RecencyHalfLife)
	if halfLife <= 0 {
		return 1.0
	}
	age := now.Sub(lastSeen).Hours()
	if age < 0 {
		age = 0
	}
	return math.Pow(0.5, age/halfLife)
}

func (r *Ranker) contextMatch(req *models.RankingRequest, cand models.Candidate) float64 {
	if r.program != nil {
		out, _, err := r.program.Eval(map[string]interface{}{
			"ctx": req.Context,
			"candidate": map[string]interface{}{
				"id":              cand.ID,
				"category":        cand.Category,
				"base_popularity": cand.BasePopularity,
				"pinned":          cand.Pinned,
			},
		})
		if err == nil {
			if matched, ok := out.Value().(bool); ok {
				if matched {
					return 1.0
				}
				return 0.0
			}
		}
		// Evaluation errors degrade to the indicator below.
	}

	if page, ok := req.Context["page"]; ok && page == cand.Category {
		return 1.0
	}
	return 0.0
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
