package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loreleaf-app/loreleaf/internal/domain"
	"github.com/pgvector/pgvector-go"
)

// SearchRepository implements ranked vector search over ingested chunks.
// One row per chunk; every row is tagged with the source it came from.
type SearchRepository struct {
	pool *pgxpool.Pool
}

func NewSearchRepository(pool *pgxpool.Pool) *SearchRepository {
	return &SearchRepository{pool: pool}
}

// Search returns up to limit chunks ordered by descending relevance.
// The score maps cosine distance into (0, 1], higher is better.
func (r *SearchRepository) Search(ctx context.Context, embedding []float32, filter domain.SourceFilter, limit int) ([]domain.SearchResult, error) {
	if filter.IsNone() {
		return []domain.SearchResult{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	vec := pgvector.NewVector(embedding)

	query := `
		SELECT document_id, title, content, source, chunk_index, updated_at,
		       1.0 / (1.0 + (embedding <=> $1)) AS score
		FROM chunks
		WHERE embedding IS NOT NULL`
	args := []interface{}{vec}

	if filter.IsExplicit() {
		query += " AND source = ANY($2)"
		args = append(args, filter.Strings())
		query += " ORDER BY score DESC LIMIT $3"
	} else {
		query += " ORDER BY score DESC LIMIT $2"
	}
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.SearchResult, 0, limit)
	for rows.Next() {
		var result domain.SearchResult
		var source *string
		if err := rows.Scan(
			&result.DocumentID,
			&result.Title,
			&result.Content,
			&source,
			&result.ChunkIndex,
			&result.UpdatedAt,
			&result.Score,
		); err != nil {
			return nil, err
		}
		if source != nil {
			result.Source = domain.Source(*source)
		}
		results = append(results, result)
	}

	return results, rows.Err()
}
