// Package event publishes the service's domain events to Kafka. Publishing
// is best-effort: a broker outage must never fail the request that produced
// the event.
package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/Souradip121/sentiment-service/internal/domain"
	"github.com/Souradip121/sentiment-service/pkg/kafka"
	"github.com/Souradip121/sentiment-service/pkg/logger"
)

const (
	source = "sentiment-service"

	// TopicUsers carries user lifecycle events.
	TopicUsers = "sentiment.users"
	// TopicAnalyses carries completed analysis events.
	TopicAnalyses = "sentiment.analyses"

	TypeUserRegistered    = "user.registered"
	TypeSentimentAnalyzed = "sentiment.analyzed"
)

// UserRegistered is the payload for TypeUserRegistered.
type UserRegistered struct {
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	RegisteredAt time.Time `json:"registered_at"`
}

// SentimentAnalyzed is the payload for TypeSentimentAnalyzed.
type SentimentAnalyzed struct {
	AnalysisID string    `json:"analysis_id"`
	UserID     string    `json:"user_id"`
	Label      string    `json:"label"`
	Score      float64   `json:"score"`
	Source     string    `json:"source"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// Publisher emits domain events. A nil Publisher is valid and drops all
// events, which keeps Kafka optional in development.
type Publisher struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewPublisher creates a domain event publisher on top of the Kafka producer.
func NewPublisher(producer *kafka.Producer, log *slog.Logger) *Publisher {
	return &Publisher{producer: producer, logger: log}
}

// UserRegistered publishes a user.registered event.
func (p *Publisher) UserRegistered(ctx context.Context, user *domain.User) {
	if p == nil || p.producer == nil {
		return
	}

	evt, err := kafka.NewEvent(TypeUserRegistered, user.ID, "user", source, UserRegistered{
		UserID:       user.ID,
		Username:     user.Username,
		RegisteredAt: user.CreatedAt,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "build user.registered event", slog.String("error", err.Error()))
		return
	}
	p.publish(ctx, TopicUsers, evt)
}

// SentimentAnalyzed publishes a sentiment.analyzed event. The analyzed text
// itself is deliberately not included in the payload.
func (p *Publisher) SentimentAnalyzed(ctx context.Context, analysis *domain.Analysis) {
	if p == nil || p.producer == nil {
		return
	}

	evt, err := kafka.NewEvent(TypeSentimentAnalyzed, analysis.ID, "analysis", source, SentimentAnalyzed{
		AnalysisID: analysis.ID,
		UserID:     analysis.UserID,
		Label:      string(analysis.Label),
		Score:      analysis.Score,
		Source:     string(analysis.Source),
		AnalyzedAt: analysis.CreatedAt,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "build sentiment.analyzed event", slog.String("error", err.Error()))
		return
	}
	p.publish(ctx, TopicAnalyses, evt)
}

func (p *Publisher) publish(ctx context.Context, topic string, evt *kafka.Event) {
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		evt.WithCorrelationID(cid)
	}
	if err := p.producer.Publish(ctx, topic, evt); err != nil {
		// Logged by the producer; the request proceeds regardless.
		return
	}
}
