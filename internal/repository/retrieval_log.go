package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loreleaf-app/loreleaf/internal/service"
)

// RetrievalLogRepository stores retrieval decision logs. The logged
// routes and source choices feed offline evaluation of the focus
// thresholds against real queries.
type RetrievalLogRepository struct {
	pool *pgxpool.Pool
}

func NewRetrievalLogRepository(pool *pgxpool.Pool) *RetrievalLogRepository {
	return &RetrievalLogRepository{pool: pool}
}

func (r *RetrievalLogRepository) CreateRetrievalLog(ctx context.Context, entry service.RetrievalLogEntry) (string, error) {
	decision := map[string]any{
		"query_length": len(entry.Query),
		"query_type":   entry.QueryType,
		"complexity":   entry.Complexity,
		"confidence":   entry.Confidence,
		"route_path":   entry.RoutePath,
	}
	decisionJSON, _ := json.Marshal(decision)
	sourcesJSON, _ := json.Marshal(entry.UsedSources)

	var id string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO retrieval_logs (query, decision, used_sources, chunk_count, duration_ms)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		entry.Query,
		decisionJSON,
		sourcesJSON,
		entry.ChunkCount,
		entry.DurationMs,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeleteRetrievalLogsBefore removes log rows created before the cutoff.
func (r *RetrievalLogRepository) DeleteRetrievalLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM retrieval_logs WHERE created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
