// internal/ranking/orchestrator_test.go
package ranking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proposition-engine/internal/catalog"
	"proposition-engine/internal/common/config"
	"proposition-engine/internal/common/errors"
	"proposition-engine/internal/common/logger"
	"proposition-engine/internal/features"
	"proposition-engine/internal/models"
)

// ==========================================
// TEST FAKES
// ==========================================

type fakeCandidates struct {
	candidates []models.Candidate
	err        error
}

func (f *fakeCandidates) Candidates(ctx context.Context, req *models.RankingRequest) ([]models.Candidate, error) {
	return f.candidates, f.err
}

type fakeVectors struct {
	vectors map[string]models.FeatureVector
}

func (f *fakeVectors) Vectors(ctx context.Context, schema features.Schema, req *models.RankingRequest, candidates []models.Candidate) map[string]models.FeatureVector {
	return f.vectors
}

type fakeML struct {
	healthy bool
	version string
	scores  map[string]float64
	err     error
	calls   int
}

func (f *fakeML) Healthy() bool        { return f.healthy }
func (f *fakeML) ModelVersion() string { return f.version }
func (f *fakeML) Score(ctx context.Context, req *models.RankingRequest, candidates []models.Candidate, vectors map[string]models.FeatureVector) (map[string]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

type fakeRule struct {
	scores map[string]float64
	calls  int
}

func (f *fakeRule) Score(ctx context.Context, req *models.RankingRequest, candidates []models.Candidate, vectors map[string]models.FeatureVector) map[string]float64 {
	f.calls++
	return f.scores
}

// ==========================================
// TEST HELPERS
// ==========================================

func testRankingConfig() config.RankingConfig {
	return config.RankingConfig{
		RequestBudget: 150,
		ScoreTimeout:  50,
		DefaultLimit:  5,
		MaxLimit:      100,
	}
}

func testCandidates() []models.Candidate {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return []models.Candidate{
		{ID: "a", Title: "A", Category: "offers", LastSeen: base},
		{ID: "b", Title: "B", Category: "offers", LastSeen: base.Add(time.Hour)},
		{ID: "c", Title: "C", Category: "loans", LastSeen: base},
	}
}

func newTestOrchestrator(cands CandidateSource, ml ModelScorer, rule RuleScorer) *Orchestrator {
	return NewOrchestrator(
		cands,
		&fakeVectors{vectors: map[string]models.FeatureVector{}},
		ml,
		rule,
		features.Schema{Version: "fs-1"},
		testRankingConfig(),
		logger.NewNoOpLogger(),
	)
}

// ==========================================
// PATH SELECTION TESTS
// ==========================================

func TestOrchestrator_MLPathWhenHealthy(t *testing.T) {
	ml := &fakeML{healthy: true, version: "v1", scores: map[string]float64{"a": 0.9, "b": 0.5, "c": 0.2}}
	rule := &fakeRule{scores: map[string]float64{"a": 0.1}}
	o := newTestOrchestrator(&fakeCandidates{candidates: testCandidates()}, ml, rule)

	res, err := o.Rank(context.Background(), &models.RankingRequest{UserID: "u1", Limit: 5})
	require.NoError(t, err)

	assert.Equal(t, models.ServedByML, res.ServedBy)
	assert.Equal(t, "v1", res.ModelVersion)
	assert.Equal(t, 1, ml.calls)
	assert.Equal(t, 0, rule.calls)
}

func TestOrchestrator_RulePathWhenUnhealthy(t *testing.T) {
	ml := &fakeML{healthy: false, scores: map[string]float64{"a": 0.9}}
	rule := &fakeRule{scores: map[string]float64{"a": 0.3, "b": 0.2, "c": 0.1}}
	o := newTestOrchestrator(&fakeCandidates{candidates: testCandidates()}, ml, rule)

	res, err := o.Rank(context.Background(), &models.RankingRequest{UserID: "u1", Limit: 5})
	require.NoError(t, err)

	assert.Equal(t, models.ServedByRule, res.ServedBy)
	assert.Empty(t, res.ModelVersion)
	assert.Equal(t, 0, ml.calls, "unhealthy model is never invoked")
	assert.Equal(t, 1, rule.calls)
}

func TestOrchestrator_FallbackOnModelError(t *testing.T) {
	ml := &fakeML{healthy: true, version: "v1", err: errors.NewSchemaMismatchError("fs-2", "fs-1")}
	rule := &fakeRule{scores: map[string]float64{"a": 0.3, "b": 0.2, "c": 0.1}}
	o := newTestOrchestrator(&fakeCandidates{candidates: testCandidates()}, ml, rule)

	res, err := o.Rank(context.Background(), &models.RankingRequest{UserID: "u1", Limit: 5})
	require.NoError(t, err, "model failure must not surface to the caller")

	assert.Equal(t, models.ServedByRuleFallback, res.ServedBy)
	assert.Empty(t, res.ModelVersion)
	assert.Equal(t, 1, ml.calls)
	assert.Equal(t, 1, rule.calls)
}

func TestOrchestrator_CatalogErrorDegradesToEmptyResult(t *testing.T) {
	o := newTestOrchestrator(
		&fakeCandidates{err: errors.NewCatalogUnavailableError(nil)},
		&fakeML{healthy: true},
		&fakeRule{},
	)

	res, err := o.Rank(context.Background(), &models.RankingRequest{UserID: "u1", Limit: 5})
	require.NoError(t, err, "catalog failure must not surface to the caller")
	assert.Empty(t, res.Items)
	assert.True(t, res.Degraded)
}

func TestOrchestrator_EmptyCandidateSetYieldsEmptyResult(t *testing.T) {
	o := newTestOrchestrator(&fakeCandidates{}, &fakeML{healthy: true}, &fakeRule{})

	res, err := o.Rank(context.Background(), &models.RankingRequest{UserID: "u1", Limit: 5})
	require.NoError(t, err, "cold start serves an empty result, not an error")
	assert.Empty(t, res.Items)
	assert.False(t, res.Degraded)
}

// ==========================================
// ASSEMBLY TESTS
// ==========================================

func TestOrchestrator_OrderingAndTruncation(t *testing.T) {
	ml := &fakeML{healthy: true, version: "v1", scores: map[string]float64{"a": 0.5, "b": 0.5, "c": 0.9}}
	o := newTestOrchestrator(&fakeCandidates{candidates: testCandidates()}, ml, &fakeRule{})

	res, err := o.Rank(context.Background(), &models.RankingRequest{UserID: "u1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)

	assert.Equal(t, "c", res.Items[0].PropositionID, "highest score first")
	assert.Equal(t, "b", res.Items[1].PropositionID, "tie broken by most recent last-seen")

	for i := 1; i < len(res.Items); i++ {
		assert.GreaterOrEqual(t, res.Items[i-1].Score, res.Items[i].Score)
	}
}

func TestOrchestrator_TieBreakByID(t *testing.T) {
	seen := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	cands := []models.Candidate{
		{ID: "z", LastSeen: seen},
		{ID: "a", LastSeen: seen},
	}
	ml := &fakeML{healthy: true, scores: map[string]float64{"z": 0.5, "a": 0.5}}
	o := newTestOrchestrator(&fakeCandidates{candidates: cands}, ml, &fakeRule{})

	res, err := o.Rank(context.Background(), &models.RankingRequest{UserID: "u1", Limit: 5})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "a", res.Items[0].PropositionID, "equal score and last-seen falls back to id order")
}

func TestOrchestrator_ExplanationsAttached(t *testing.T) {
	ml := &fakeML{healthy: true, scores: map[string]float64{"a": 0.9, "b": 0.5, "c": 0.2}}
	o := newTestOrchestrator(&fakeCandidates{candidates: testCandidates()}, ml, &fakeRule{})

	res, err := o.Rank(context.Background(), &models.RankingRequest{UserID: "u1", Limit: 5})
	require.NoError(t, err)
	for _, item := range res.Items {
		assert.NotEmpty(t, item.Explanation)
	}
}

func TestOrchestrator_DegradedVectorsFlagged(t *testing.T) {
	o := NewOrchestrator(
		&fakeCandidates{candidates: testCandidates()},
		&fakeVectors{vectors: map[string]models.FeatureVector{
			"a": {SchemaVersion: "fs-1", Degraded: true},
		}},
		&fakeML{healthy: false},
		&fakeRule{scores: map[string]float64{"a": 0.5}},
		features.Schema{Version: "fs-1"},
		testRankingConfig(),
		logger.NewNoOpLogger(),
	)

	res, err := o.Rank(context.Background(), &models.RankingRequest{UserID: "u1", Limit: 5})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
}

// ==========================================
// BUDGET TESTS
// ==========================================

func TestOrchestrator_ExhaustedBudgetSkipsML(t *testing.T) {
	ml := &fakeML{healthy: true, scores: map[string]float64{"a": 0.9}}
	rule := &fakeRule{scores: map[string]float64{"a": 0.3, "b": 0.2, "c": 0.1}}
	o := newTestOrchestrator(&fakeCandidates{candidates: testCandidates()}, ml, rule)

	// Parent deadline tighter than the score timeout: SELECT_PATH must
	// choose the rule path outright.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	res, err := o.Rank(ctx, &models.RankingRequest{UserID: "u1", Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, models.ServedByRule, res.ServedBy)
	assert.Equal(t, 0, ml.calls)
}

func TestOrchestrator_ExpiredDeadlineStillServes(t *testing.T) {
	snap := catalog.NewSnapshot([]models.Candidate{
		{ID: "a", Title: "A", Category: "offers", BasePopularity: 0.9},
	})
	gen := catalog.NewGenerator(catalog.NewHolder(snap), 20, 200, logger.NewNoOpLogger())

	ml := &fakeML{healthy: true, scores: map[string]float64{"a": 0.9}}
	rule := &fakeRule{scores: map[string]float64{"a": 0.3}}
	o := NewOrchestrator(
		gen,
		&fakeVectors{vectors: map[string]models.FeatureVector{}},
		ml,
		rule,
		features.Schema{Version: "fs-1"},
		testRankingConfig(),
		logger.NewNoOpLogger(),
	)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	res, err := o.Rank(ctx, &models.RankingRequest{UserID: "u1", Limit: 5})
	require.NoError(t, err, "an exceeded deadline yields the best available result, not a timeout")
	assert.Equal(t, models.ServedByRule, res.ServedBy)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "a", res.Items[0].PropositionID)
	assert.Equal(t, 0, ml.calls)
	assert.Equal(t, 1, rule.calls)
}
