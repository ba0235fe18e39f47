// internal/catalog/es_loader_test.go
package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"proposition-engine/internal/common/database"
	"proposition-engine/internal/common/errors"
	"proposition-engine/internal/common/logger"
	"proposition-engine/internal/models"
)

func newStubElasticsearch(t *testing.T, handler http.HandlerFunc) *database.ElasticsearchClient {
	t.Helper()

	// The v8 client rejects responses without the product header.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{srv.URL},
	})
	require.NoError(t, err)

	return &database.ElasticsearchClient{Client: es}
}

func searchResponseBody(docs ...catalogDoc) []byte {
	var resp searchResponse
	for _, doc := range docs {
		resp.Hits.Hits = append(resp.Hits.Hits, struct {
			Source catalogDoc `json:"_source"`
		}{Source: doc})
	}
	body, _ := json.Marshal(resp)
	return body
}

// ==========================================
// Refresh
// ==========================================

func TestRefresh_PublishesSnapshot(t *testing.T) {
	var gotPath string
	es := newStubElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write(searchResponseBody(
			catalogDoc{PropositionID: "p1", Title: "Card", Category: "offers", BasePopularity: 80, LastSeen: time.Now()},
			catalogDoc{PropositionID: "p2", Title: "Loan", Category: "loans", BasePopularity: 40, Pinned: true},
		))
	})

	holder := NewHolder(nil)
	loader := NewLoader(es, holder, "propositions", time.Minute, logger.NewZapAdapter(zaptest.NewLogger(t)))

	require.NoError(t, loader.Refresh(context.Background()))

	snap := holder.Current()
	require.NotNil(t, snap)
	assert.Equal(t, 2, snap.Size())
	assert.Equal(t, "propositions", loader.index)
	assert.Equal(t, "/propositions/_search", gotPath)

	pinned := snap.Pinned()
	require.Len(t, pinned, 1)
	assert.Equal(t, "p2", pinned[0].ID)
}

func TestRefresh_SkipsDocsWithoutID(t *testing.T) {
	es := newStubElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(searchResponseBody(
			catalogDoc{PropositionID: "", Title: "broken"},
			catalogDoc{PropositionID: "p1", Category: "offers", BasePopularity: 10},
		))
	})

	holder := NewHolder(nil)
	loader := NewLoader(es, holder, "", time.Minute, logger.NewZapAdapter(zaptest.NewLogger(t)))

	require.NoError(t, loader.Refresh(context.Background()))
	assert.Equal(t, 1, holder.Current().Size())
}

func TestRefresh_ErrorKeepsPreviousSnapshot(t *testing.T) {
	previous := NewSnapshot([]models.Candidate{{ID: "p1", Category: "offers"}})

	es := newStubElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"unavailable"}`))
	})

	holder := NewHolder(previous)
	loader := NewLoader(es, holder, "propositions", time.Minute, logger.NewZapAdapter(zaptest.NewLogger(t)))

	err := loader.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDependencyUnavailable, errors.CodeOf(err))
	assert.Same(t, previous, holder.Current())
}

func TestNewLoader_DefaultsIndex(t *testing.T) {
	loader := NewLoader(nil, NewHolder(nil), "", time.Minute, logger.NewZapAdapter(zaptest.NewLogger(t)))
	assert.Equal(t, defaultCatalogIndex, loader.index)
}
