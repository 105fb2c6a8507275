// Package repository defines the persistence interfaces for the sentiment
// service.
package repository

import (
	"context"

	"github.com/Souradip121/sentiment-service/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByUsername retrieves a user by their username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// AnalysisRepository defines the interface for analysis history persistence.
type AnalysisRepository interface {
	// Create records a completed analysis.
	Create(ctx context.Context, analysis *domain.Analysis) error

	// ListByUserID returns a page of the user's analyses, newest first.
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]domain.Analysis, error)

	// CountByUserID returns the total number of analyses for the user.
	CountByUserID(ctx context.Context, userID string) (int64, error)
}
