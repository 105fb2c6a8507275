package service

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Souradip121/sentiment-service/internal/breaker"
	"github.com/Souradip121/sentiment-service/internal/domain"
	"github.com/Souradip121/sentiment-service/internal/event"
	"github.com/Souradip121/sentiment-service/internal/repository"
	"github.com/Souradip121/sentiment-service/internal/scorer"
	apperrors "github.com/Souradip121/sentiment-service/pkg/errors"
	"github.com/Souradip121/sentiment-service/pkg/pagination"
)

var (
	analysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_analyses_total",
			Help: "Completed sentiment analyses by label and source",
		},
		[]string{"label", "source"},
	)
	fallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentiment_fallback_total",
			Help: "Analyses served by the local lexicon instead of the remote API",
		},
		[]string{"reason"},
	)
	remoteAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentiment_remote_attempts_total",
			Help: "Individual requests made to the remote inference API",
		},
	)
)

// SentimentConfig tunes the orchestrator's retry behavior and input limits.
type SentimentConfig struct {
	MaxAttempts  int
	MaxTextBytes int
	Backoff      scorer.BackoffPolicy
}

// SentimentService orchestrates scoring: remote first, guarded by the
// circuit breaker and a bounded retry loop, with the lexicon as fallback.
type SentimentService struct {
	remote    scorer.Scorer
	fallback  scorer.Scorer
	brk       *breaker.Breaker
	analyses  repository.AnalysisRepository
	publisher *event.Publisher
	cfg       SentimentConfig
	logger    *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	// sleep waits between retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSentimentService creates the analysis orchestrator.
func NewSentimentService(
	remote scorer.Scorer,
	fallback scorer.Scorer,
	brk *breaker.Breaker,
	analyses repository.AnalysisRepository,
	publisher *event.Publisher,
	cfg SentimentConfig,
	logger *slog.Logger,
) *SentimentService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &SentimentService{
		remote:    remote,
		fallback:  fallback,
		brk:       brk,
		analyses:  analyses,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:     sleepContext,
	}
}

// Analyze scores the text for the given user. It never returns a remote
// error to the caller: every remote failure path ends in the local lexicon,
// and only invalid input or a broken fallback can fail the request.
func (s *SentimentService) Analyze(ctx context.Context, userID, text string) (domain.Result, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Result{}, apperrors.InvalidInput("text must not be empty")
	}
	if len(text) > s.cfg.MaxTextBytes {
		return domain.Result{}, apperrors.InvalidInput("text exceeds maximum length")
	}

	start := time.Now()
	result, err := s.score(ctx, text)
	if err != nil {
		return domain.Result{}, err
	}
	result.Latency = time.Since(start)

	analysesTotal.WithLabelValues(string(result.Label), string(result.Source)).Inc()

	s.record(ctx, userID, text, result)

	return result, nil
}

// score runs the remote path when the breaker admits it, otherwise the
// lexicon.
func (s *SentimentService) score(ctx context.Context, text string) (domain.Result, error) {
	done, err := s.brk.Allow()
	if err != nil {
		fallbackTotal.WithLabelValues("breaker_open").Inc()
		return s.scoreLocal(ctx, text)
	}

	result, err := s.scoreRemote(ctx, text, done)
	if err == nil {
		result.Source = domain.SourceRemote
		return result, nil
	}

	s.logger.WarnContext(ctx, "remote scoring failed, using local fallback",
		slog.String("error", err.Error()),
	)
	fallbackTotal.WithLabelValues("remote_failed").Inc()
	return s.scoreLocal(ctx, text)
}

// scoreRemote runs the bounded retry loop against the remote scorer. It
// reports exactly one outcome to the breaker: success, a single failure
// covering the whole attempt series, or canceled if the caller went away.
func (s *SentimentService) scoreRemote(ctx context.Context, text string, done func(breaker.Outcome)) (domain.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		remoteAttemptsTotal.Inc()
		result, err := s.remote.Score(ctx, text)
		if err == nil {
			done(breaker.Success)
			return result, nil
		}
		if ctx.Err() != nil {
			done(breaker.Canceled)
			return domain.Result{}, err
		}
		lastErr = err

		if !scorer.IsRetryable(err) {
			done(breaker.Failure)
			return domain.Result{}, err
		}

		if attempt < s.cfg.MaxAttempts {
			if err := s.sleep(ctx, s.nextDelay(attempt)); err != nil {
				done(breaker.Canceled)
				return domain.Result{}, err
			}
		}
	}

	done(breaker.Failure)
	return domain.Result{}, lastErr
}

func (s *SentimentService) scoreLocal(ctx context.Context, text string) (domain.Result, error) {
	result, err := s.fallback.Score(ctx, text)
	if err != nil {
		return domain.Result{}, apperrors.RemoteUnavailable("scoring unavailable")
	}
	result.Source = domain.SourceLocalFallback
	return result, nil
}

// record persists the analysis and publishes its event. Both are
// best-effort: the caller already has their result.
func (s *SentimentService) record(ctx context.Context, userID, text string, result domain.Result) {
	analysis := &domain.Analysis{
		ID:        uuid.New().String(),
		UserID:    userID,
		Text:      text,
		Score:     result.Score,
		Label:     result.Label,
		Source:    result.Source,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.analyses.Create(ctx, analysis); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist analysis",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.publisher.SentimentAnalyzed(ctx, analysis)
}

// History returns the caller's past analyses, newest first.
func (s *SentimentService) History(ctx context.Context, userID string, params pagination.Params) (pagination.Result[domain.Analysis], error) {
	count, err := s.analyses.CountByUserID(ctx, userID)
	if err != nil {
		return pagination.Result[domain.Analysis]{}, apperrors.Internal(err)
	}

	analyses, err := s.analyses.ListByUserID(ctx, userID, params.PerPage, params.Offset)
	if err != nil {
		return pagination.Result[domain.Analysis]{}, apperrors.Internal(err)
	}

	return pagination.NewResult(analyses, int(count), params), nil
}

func (s *SentimentService) nextDelay(attempt int) time.Duration {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.cfg.Backoff.Delay(attempt, s.rng)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
