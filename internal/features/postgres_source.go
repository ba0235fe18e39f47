// internal/features/postgres_source.go
package features

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresSource reads the precomputed aggregate tables the offline jobs
// write. Rows can lag behind live interactions by one aggregation run;
// consumers must tolerate that staleness.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

const userAggregatesQuery = `SELECT feature_name, feature_value FROM user_feature_aggregates WHERE user_id = $1`

func (s *PostgresSource) UserAggregates(ctx context.Context, userID string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, userAggregatesQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("user aggregates query: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("user aggregates scan: %w", err)
		}
		out[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user aggregates rows: %w", err)
	}

	return out, nil
}

const candidateAggregatesQuery = `SELECT proposition_id, feature_name, feature_value FROM proposition_feature_aggregates WHERE proposition_id = ANY($1)`

func (s *PostgresSource) CandidateAggregates(ctx context.Context, candidateIDs []string) (map[string]map[string]float64, error) {
	if len(candidateIDs) == 0 {
		return map[string]map[string]float64{}, nil
	}

	rows, err := s.db.QueryContext(ctx, candidateAggregatesQuery, pq.Array(candidateIDs))
	if err != nil {
		return nil, fmt.Errorf("candidate aggregates query: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]float64, len(candidateIDs))
	for rows.Next() {
		var id, name string
		var value float64
		if err := rows.Scan(&id, &name, &value); err != nil {
			return nil, fmt.Errorf("candidate aggregates scan: %w", err)
		}
		if out[id] == nil {
			out[id] = make(map[string]float64)
		}
		out[id][name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("candidate aggregates rows: %w", err)
	}

	return out, nil
}
