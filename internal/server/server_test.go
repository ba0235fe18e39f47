// internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proposition-engine/internal/common/config"
	"proposition-engine/internal/common/errors"
	"proposition-engine/internal/common/logger"
	"proposition-engine/internal/models"
)

// ==========================================
// TEST FAKES
// ==========================================

type fakeRanker struct {
	result  *models.RankingResult
	err     error
	healthy bool
	version string
	calls   int
}

func (f *fakeRanker) Rank(ctx context.Context, req *models.RankingRequest) (*models.RankingResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeRanker) Healthy() bool        { return f.healthy }
func (f *fakeRanker) ModelVersion() string { return f.version }

type fakeCache struct {
	entries map[string]*models.RankingResult
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*models.RankingResult{}}
}

func (f *fakeCache) Key(req *models.RankingRequest, modelVersion string) string {
	return req.UserID + "|" + modelVersion
}

func (f *fakeCache) Get(ctx context.Context, key string) *models.RankingResult {
	if res, ok := f.entries[key]; ok {
		hit := *res
		hit.CacheHit = true
		return &hit
	}
	return nil
}

func (f *fakeCache) Set(ctx context.Context, key string, res *models.RankingResult) {
	f.entries[key] = res
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []models.FeedbackEvent
}

func (f *fakeRecorder) Record(ev models.FeedbackEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// ==========================================
// TEST HELPERS
// ==========================================

func testServerConfig() config.Config {
	return config.Config{
		App:    config.AppConfig{Name: "proposition-engine", Environment: "test"},
		Server: config.ServerConfig{Address: ":0"},
		Ranking: config.RankingConfig{
			RequestBudget: 150,
			ScoreTimeout:  50,
			DefaultLimit:  5,
			MaxLimit:      100,
		},
	}
}

func testResult() *models.RankingResult {
	return &models.RankingResult{
		Items: []models.RankedItem{
			{PropositionID: "p1", Title: "One", Score: 0.9},
			{PropositionID: "p2", Title: "Two", Score: 0.4},
		},
		ServedBy:     models.ServedByML,
		ModelVersion: "v1",
		GeneratedAt:  time.Now().UTC(),
	}
}

func newTestServer(ranker *fakeRanker, cache *fakeCache, rec *fakeRecorder) *Server {
	return New(testServerConfig(), ranker, cache, rec, nil, logger.NewNoOpLogger())
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

// ==========================================
// SUGGEST TESTS
// ==========================================

func TestSuggest_HappyPath(t *testing.T) {
	ranker := &fakeRanker{result: testResult(), healthy: true, version: "v1"}
	rec := &fakeRecorder{}
	s := newTestServer(ranker, newFakeCache(), rec)

	w := doJSON(t, s, http.MethodPost, "/suggest", map[string]interface{}{
		"user_id": "u1",
		"context": map[string]string{"page": "offers"},
		"limit":   5,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp suggestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Propositions, 2)
	assert.Equal(t, models.ServedByML, resp.ServedBy)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, 2, rec.count(), "one impression per served proposition")
}

func TestSuggest_SecondCallServedFromCache(t *testing.T) {
	ranker := &fakeRanker{result: testResult(), healthy: true, version: "v1"}
	s := newTestServer(ranker, newFakeCache(), &fakeRecorder{})

	body := map[string]interface{}{"user_id": "u1", "limit": 5}
	first := doJSON(t, s, http.MethodPost, "/suggest", body)
	require.Equal(t, http.StatusOK, first.Code)

	second := doJSON(t, s, http.MethodPost, "/suggest", body)
	require.Equal(t, http.StatusOK, second.Code)

	var firstResp, secondResp suggestResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResp))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResp))

	assert.Equal(t, 1, ranker.calls, "second request never reaches the pipeline")
	assert.True(t, secondResp.CacheHit)
	assert.Equal(t, firstResp.Propositions, secondResp.Propositions, "cached items returned verbatim")
}

func TestSuggest_MalformedPayload(t *testing.T) {
	s := newTestServer(&fakeRanker{result: testResult()}, newFakeCache(), &fakeRecorder{})

	tests := []struct {
		name string
		body interface{}
	}{
		{name: "missing user_id", body: map[string]interface{}{"limit": 5}},
		{name: "limit out of range", body: map[string]interface{}{"user_id": "u1", "limit": 100000}},
		{name: "non-string context value", body: map[string]interface{}{"user_id": "u1", "context": map[string]interface{}{"k": 7}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, s, http.MethodPost, "/suggest", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), string(errors.ErrCodeInvalidRequest))
		})
	}
}

func TestSuggest_RankerErrorIsServiceUnavailable(t *testing.T) {
	ranker := &fakeRanker{err: errors.NewCatalogUnavailableError(nil)}
	s := newTestServer(ranker, newFakeCache(), &fakeRecorder{})

	w := doJSON(t, s, http.MethodPost, "/suggest", map[string]interface{}{"user_id": "u1"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), string(errors.ErrCodeCatalogUnavailable))
}

func TestSuggest_EmptyResultIsOK(t *testing.T) {
	ranker := &fakeRanker{result: &models.RankingResult{
		ServedBy:    models.ServedByRule,
		GeneratedAt: time.Now().UTC(),
	}}
	s := newTestServer(ranker, newFakeCache(), &fakeRecorder{})

	w := doJSON(t, s, http.MethodPost, "/suggest", map[string]interface{}{"user_id": "u1"})
	require.Equal(t, http.StatusOK, w.Code, "cold start serves an empty set, not an error")

	var resp suggestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Propositions)
	assert.Equal(t, models.ServedByRule, resp.ServedBy)
}

// ==========================================
// LOG EVENT TESTS
// ==========================================

func TestLogEvent_Accepted(t *testing.T) {
	rec := &fakeRecorder{}
	s := newTestServer(&fakeRanker{}, newFakeCache(), rec)

	w := doJSON(t, s, http.MethodPost, "/log_event", map[string]interface{}{
		"event_type":     "click",
		"user_id":        "u1",
		"proposition_id": "p1",
	})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, rec.count())
}

func TestLogEvent_UnknownType(t *testing.T) {
	rec := &fakeRecorder{}
	s := newTestServer(&fakeRanker{}, newFakeCache(), rec)

	w := doJSON(t, s, http.MethodPost, "/log_event", map[string]interface{}{
		"event_type":     "hover",
		"user_id":        "u1",
		"proposition_id": "p1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, rec.count())
}

// ==========================================
// HEALTH TESTS
// ==========================================

func TestHealth_ReportsModelState(t *testing.T) {
	s := newTestServer(&fakeRanker{healthy: false, version: "v1"}, newFakeCache(), &fakeRecorder{})

	w := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code, "service stays up on rule fallback")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["ml_healthy"])
	assert.Equal(t, "v1", body["model"])
}
