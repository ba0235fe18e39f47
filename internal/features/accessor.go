// internal/features/accessor.go
package features

import (
	"context"
	stderrors "errors"
	"time"

	"golang.org/x/sync/errgroup"

	"proposition-engine/internal/common/errors"
	"proposition-engine/internal/common/logger"
	"proposition-engine/internal/common/metrics"
	"proposition-engine/internal/models"
)

// AggregateSource supplies the precomputed feature rows the offline jobs
// maintain. Reads may return partial results; the accessor treats any
// error as "serve degraded", never as a request failure.
type AggregateSource interface {
	// UserAggregates returns the latest aggregate features for a user.
	UserAggregates(ctx context.Context, userID string) (map[string]float64, error)
	// CandidateAggregates returns aggregate features keyed by candidate id.
	CandidateAggregates(ctx context.Context, candidateIDs []string) (map[string]map[string]float64, error)
}

// Accessor resolves (user, context, candidates) into one FeatureVector per
// candidate, merging precomputed aggregates with request-time values.
type Accessor struct {
	source  AggregateSource
	timeout time.Duration
	logger  logger.Logger
}

func NewAccessor(source AggregateSource, timeout time.Duration, log logger.Logger) *Accessor {
	return &Accessor{
		source:  source,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "feature-accessor"}),
	}
}

// Vectors builds a vector per candidate against the given schema. If the
// aggregate source fails or times out, vectors are assembled from
// request-time and static attributes only and flagged degraded.
func (a *Accessor) Vectors(
	ctx context.Context,
	schema Schema,
	req *models.RankingRequest,
	candidates []models.Candidate,
) map[string]models.FeatureVector {
	userAgg, candAgg, degraded := a.fetchAggregates(ctx, req.UserID, candidateIDs(candidates))

	requestTime := requestTimeFeatures(req)

	out := make(map[string]models.FeatureVector, len(candidates))
	for _, cand := range candidates {
		raw := mergeRaw(userAgg, candAgg[cand.ID], requestTime, staticFeatures(cand, req))

		values := make(map[string]float64, len(schema.Fields))
		for _, field := range schema.Fields {
			// Missing inputs stay at the 0.0 sentinel; the map entry is
			// still written so every declared feature is present.
			v, ok := raw[field.Name]
			if !ok {
				values[field.Name] = 0
				continue
			}
			values[field.Name] = field.Norm.Apply(v)
		}

		out[cand.ID] = models.FeatureVector{
			SchemaVersion: schema.Version,
			Values:        values,
			Degraded:      degraded,
		}
	}

	if degraded {
		metrics.DegradedVectors.Add(float64(len(candidates)))
	}

	return out
}

// fetchAggregates reads user and candidate aggregates in parallel under
// the accessor's timeout. Any failure degrades rather than propagates.
func (a *Accessor) fetchAggregates(
	ctx context.Context,
	userID string,
	ids []string,
) (map[string]float64, map[string]map[string]float64, bool) {
	if a.source == nil {
		return nil, nil, true
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var (
		userAgg map[string]float64
		candAgg map[string]map[string]float64
	)

	g, gctx := errgroup.WithContext(fetchCtx)
	g.Go(func() error {
		var err error
		userAgg, err = a.source.UserAggregates(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		candAgg, err = a.source.CandidateAggregates(gctx, ids)
		return err
	})

	if err := g.Wait(); err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			err = errors.NewFeatureStoreTimeoutError(a.timeout)
		}
		a.logger.Warn("aggregate read failed, serving degraded vectors", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		return nil, nil, true
	}

	return userAgg, candAgg, false
}

// requestTimeFeatures computes the cheap synchronous features carried by
// the request itself.
func requestTimeFeatures(req *models.RankingRequest) map[string]float64 {
	now := time.Now().UTC()
	f := map[string]float64{
		"hour_of_day":  float64(now.Hour()),
		"day_of_week":  float64(now.Weekday()),
		"context_size": float64(len(req.Context)),
	}
	if req.Device == "mobile" {
		f["is_mobile"] = 1
	} else {
		f["is_mobile"] = 0
	}
	return f
}

// staticFeatures lifts catalog attributes into raw feature space.
func staticFeatures(cand models.Candidate, req *models.RankingRequest) map[string]float64 {
	f := map[string]float64{
		"base_popularity": cand.BasePopularity,
	}
	if !cand.LastSeen.IsZero() {
		f["hours_since_seen"] = time.Since(cand.LastSeen).Hours()
	}
	if page, ok := req.Context["page"]; ok && page == cand.Category {
		f["category_context_match"] = 1
	}
	return f
}

// mergeRaw overlays the sources in increasing precedence: static, then
// request-time, then user aggregates, then candidate aggregates.
func mergeRaw(userAgg, candAgg, requestTime, static map[string]float64) map[string]float64 {
	merged := make(map[string]float64, len(userAgg)+len(candAgg)+len(requestTime)+len(static))
	for k, v := range static {
		merged[k] = v
	}
	for k, v := range requestTime {
		merged[k] = v
	}
	for k, v := range userAgg {
		merged[k] = v
	}
	for k, v := range candAgg {
		merged[k] = v
	}
	return merged
}

func candidateIDs(candidates []models.Candidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	return ids
}
