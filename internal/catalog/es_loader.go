// internal/catalog/es_loader.go
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"proposition-engine/internal/common/database"
	"proposition-engine/internal/common/errors"
	"proposition-engine/internal/common/logger"
	"proposition-engine/internal/models"
)

const defaultCatalogIndex = "propositions"

// Loader rebuilds catalog snapshots from the proposition index and
// publishes them through a Holder. A failed refresh keeps the previous
// snapshot in place.
type Loader struct {
	es       *database.ElasticsearchClient
	holder   *Holder
	index    string
	interval time.Duration
	logger   logger.Logger
}

func NewLoader(es *database.ElasticsearchClient, holder *Holder, index string, interval time.Duration, log logger.Logger) *Loader {
	if index == "" {
		index = defaultCatalogIndex
	}
	return &Loader{
		es:       es,
		holder:   holder,
		index:    index,
		interval: interval,
		logger:   log,
	}
}

type catalogDoc struct {
	PropositionID  string    `json:"proposition_id"`
	Title          string    `json:"title"`
	Category       string    `json:"category"`
	BasePopularity float64   `json:"base_popularity"`
	LastSeen       time.Time `json:"last_seen"`
	Pinned         bool      `json:"pinned"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source catalogDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Refresh fetches all active propositions and swaps in a new snapshot.
func (l *Loader) Refresh(ctx context.Context) error {
	query := map[string]interface{}{
		"size": 10000,
		"query": map[string]interface{}{
			"term": map[string]interface{}{"active": true},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return fmt.Errorf("failed to encode catalog query: %w", err)
	}

	client := l.es.GetClient()
	res, err := client.Search(
		client.Search.WithContext(ctx),
		client.Search.WithIndex(l.index),
		client.Search.WithBody(&buf),
	)
	if err != nil {
		return errors.NewDependencyUnavailableError("elasticsearch", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewDependencyUnavailableError("elasticsearch",
			fmt.Errorf("catalog search returned status %s", res.Status()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("failed to decode catalog response: %w", err)
	}

	candidates := make([]models.Candidate, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		doc := hit.Source
		if doc.PropositionID == "" {
			continue
		}
		candidates = append(candidates, models.Candidate{
			ID:             doc.PropositionID,
			Title:          doc.Title,
			Category:       doc.Category,
			BasePopularity: doc.BasePopularity,
			LastSeen:       doc.LastSeen,
			Pinned:         doc.Pinned,
		})
	}

	l.holder.Replace(NewSnapshot(candidates))
	l.logger.Info("Catalog snapshot refreshed", map[string]interface{}{
		"propositions": len(candidates),
		"index":        l.index,
	})

	return nil
}

// Run refreshes the catalog on the configured interval until the context
// is cancelled. Errors are logged and the previous snapshot stays live.
func (l *Loader) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Refresh(ctx); err != nil {
				l.logger.Warn("Catalog refresh failed, keeping previous snapshot", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}
