package postgres

import (
	"context"
	"fmt"

	"github.com/Souradip121/sentiment-service/internal/domain"
	"github.com/Souradip121/sentiment-service/pkg/database"
)

// AnalysisRepository implements repository.AnalysisRepository using PostgreSQL.
type AnalysisRepository struct {
	db DB
}

// NewAnalysisRepository creates a new PostgreSQL-backed analysis repository.
func NewAnalysisRepository(db DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Create records a completed analysis.
func (r *AnalysisRepository) Create(ctx context.Context, a *domain.Analysis) error {
	query := `
		INSERT INTO analyses (id, user_id, text, score, label, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	ctx, end := database.TraceQuery(ctx, "CreateAnalysis", query)
	_, err := r.db.Exec(ctx, query,
		a.ID,
		a.UserID,
		a.Text,
		a.Score,
		a.Label,
		a.Source,
		a.CreatedAt,
	)
	end(err)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}

	return nil
}

// ListByUserID returns a page of the user's analyses, newest first.
func (r *AnalysisRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]domain.Analysis, error) {
	query := `
		SELECT id, user_id, text, score, label, source, created_at
		FROM analyses
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "ListAnalysesByUserID", query)
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		end(err)
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	analyses := make([]domain.Analysis, 0, limit)
	for rows.Next() {
		var a domain.Analysis
		if err := rows.Scan(&a.ID, &a.UserID, &a.Text, &a.Score, &a.Label, &a.Source, &a.CreatedAt); err != nil {
			end(err)
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		end(err)
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	end(nil)

	return analyses, nil
}

// CountByUserID returns the total number of analyses for the user.
func (r *AnalysisRepository) CountByUserID(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COUNT(*) FROM analyses WHERE user_id = $1`

	ctx, end := database.TraceQuery(ctx, "CountAnalysesByUserID", query)
	var count int64
	err := r.db.QueryRow(ctx, query, userID).Scan(&count)
	end(err)
	if err != nil {
		return 0, fmt.Errorf("count analyses: %w", err)
	}

	return count, nil
}
