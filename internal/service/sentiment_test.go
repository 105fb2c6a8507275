package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Souradip121/sentiment-service/internal/breaker"
	"github.com/Souradip121/sentiment-service/internal/domain"
	"github.com/Souradip121/sentiment-service/internal/scorer"
	apperrors "github.com/Souradip121/sentiment-service/pkg/errors"
	"github.com/Souradip121/sentiment-service/pkg/pagination"
)

// --- Mock Analysis Repository ---

type mockAnalysisRepository struct {
	mock.Mock
}

func (m *mockAnalysisRepository) Create(ctx context.Context, analysis *domain.Analysis) error {
	args := m.Called(ctx, analysis)
	return args.Error(0)
}

func (m *mockAnalysisRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]domain.Analysis, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Analysis), args.Error(1)
}

func (m *mockAnalysisRepository) CountByUserID(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// --- Stub scorers ---

type stubScorer struct {
	fn    func(ctx context.Context, text string) (domain.Result, error)
	calls int
}

func (s *stubScorer) Score(ctx context.Context, text string) (domain.Result, error) {
	s.calls++
	return s.fn(ctx, text)
}

func positiveRemote() *stubScorer {
	return &stubScorer{fn: func(_ context.Context, _ string) (domain.Result, error) {
		return domain.Result{Label: domain.LabelPositive, Score: 0.98}, nil
	}}
}

func failingRemote(err error) *stubScorer {
	return &stubScorer{fn: func(_ context.Context, _ string) (domain.Result, error) {
		return domain.Result{}, err
	}}
}

func lexiconFallback(t *testing.T) *scorer.Lexicon {
	t.Helper()
	lex, err := scorer.NewLexicon()
	require.NoError(t, err)
	return lex
}

// --- Fixture ---

type sentimentFixture struct {
	svc    *SentimentService
	remote *stubScorer
	repo   *mockAnalysisRepository
	brk    *breaker.Breaker
	slept  []time.Duration
}

func newSentimentFixture(t *testing.T, remote *stubScorer) *sentimentFixture {
	t.Helper()

	repo := new(mockAnalysisRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()

	brk := breaker.New(breaker.Config{Name: "test-remote", FailureThreshold: 2, Cooldown: time.Minute}, nil)

	svc := NewSentimentService(remote, lexiconFallback(t), brk, repo, nil, SentimentConfig{
		MaxAttempts:  3,
		MaxTextBytes: 1024,
		Backoff: scorer.BackoffPolicy{
			Base:     10 * time.Millisecond,
			MaxDelay: 50 * time.Millisecond,
		},
	}, newTestLogger())

	f := &sentimentFixture{svc: svc, remote: remote, repo: repo, brk: brk}
	svc.sleep = func(_ context.Context, d time.Duration) error {
		f.slept = append(f.slept, d)
		return nil
	}
	return f
}

// --- Analyze ---

func TestSentimentService_Analyze_RemoteSuccess(t *testing.T) {
	f := newSentimentFixture(t, positiveRemote())

	res, err := f.svc.Analyze(context.Background(), "u-1", "I love this")
	require.NoError(t, err)
	assert.Equal(t, domain.LabelPositive, res.Label)
	assert.Equal(t, domain.SourceRemote, res.Source)
	assert.InDelta(t, 0.98, res.Score, 1e-9)
	assert.Equal(t, 1, f.remote.calls)
	assert.Empty(t, f.slept)
}

func TestSentimentService_Analyze_EmptyText(t *testing.T) {
	f := newSentimentFixture(t, positiveRemote())

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := f.svc.Analyze(context.Background(), "u-1", text)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "text %q", text)
	}
	assert.Zero(t, f.remote.calls, "no I/O before input validation")
}

func TestSentimentService_Analyze_OversizedText(t *testing.T) {
	f := newSentimentFixture(t, positiveRemote())

	_, err := f.svc.Analyze(context.Background(), "u-1", strings.Repeat("a", 2048))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, f.remote.calls)
}

func TestSentimentService_Analyze_RetriesThenFallsBack(t *testing.T) {
	remote := failingRemote(&scorer.RetryableError{Err: assert.AnError})
	f := newSentimentFixture(t, remote)

	res, err := f.svc.Analyze(context.Background(), "u-1", "this is terrible")
	require.NoError(t, err, "remote failure must not surface to the caller")
	assert.Equal(t, domain.SourceLocalFallback, res.Source)
	assert.Equal(t, domain.LabelNegative, res.Label)

	assert.Equal(t, 3, f.remote.calls, "all attempts spent")
	assert.Len(t, f.slept, 2, "one backoff between each attempt")
	assert.Equal(t, 1, f.brk.ConsecutiveFailures(), "the whole series counts as one failure")
}

func TestSentimentService_Analyze_BackoffDelaysGrow(t *testing.T) {
	remote := failingRemote(&scorer.RetryableError{Err: assert.AnError})
	f := newSentimentFixture(t, remote)

	_, err := f.svc.Analyze(context.Background(), "u-1", "whatever text")
	require.NoError(t, err)
	require.Len(t, f.slept, 2)
	assert.Equal(t, 10*time.Millisecond, f.slept[0])
	assert.Equal(t, 20*time.Millisecond, f.slept[1])
}

func TestSentimentService_Analyze_NonRetryableAbortsImmediately(t *testing.T) {
	remote := failingRemote(assert.AnError)
	f := newSentimentFixture(t, remote)

	res, err := f.svc.Analyze(context.Background(), "u-1", "I love this")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceLocalFallback, res.Source)
	assert.Equal(t, 1, f.remote.calls, "non-retryable errors get no second attempt")
	assert.Empty(t, f.slept)
	assert.Equal(t, 1, f.brk.ConsecutiveFailures())
}

func TestSentimentService_Analyze_BreakerOpensAndShedsRemote(t *testing.T) {
	remote := failingRemote(assert.AnError)
	f := newSentimentFixture(t, remote)

	// Threshold is 2: two failing requests trip the breaker.
	for i := 0; i < 2; i++ {
		_, err := f.svc.Analyze(context.Background(), "u-1", "some text here")
		require.NoError(t, err)
	}
	require.Equal(t, breaker.StateOpen, f.brk.State())
	callsWhenTripped := f.remote.calls

	// While open, requests are served locally without touching the remote.
	res, err := f.svc.Analyze(context.Background(), "u-1", "I love this")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceLocalFallback, res.Source)
	assert.Equal(t, domain.LabelPositive, res.Label)
	assert.Equal(t, callsWhenTripped, f.remote.calls)
}

func TestSentimentService_Analyze_CancellationIsNeitherOutcome(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	remote := &stubScorer{fn: func(ctx context.Context, _ string) (domain.Result, error) {
		cancel()
		return domain.Result{}, ctx.Err()
	}}
	f := newSentimentFixture(t, remote)

	res, err := f.svc.Analyze(ctx, "u-1", "I love this")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceLocalFallback, res.Source)

	assert.Equal(t, 1, f.remote.calls)
	assert.Zero(t, f.brk.ConsecutiveFailures(), "a canceled attempt proves nothing about upstream health")
	assert.Equal(t, breaker.StateClosed, f.brk.State())
}

func TestSentimentService_Analyze_PersistFailureDoesNotFailRequest(t *testing.T) {
	remote := positiveRemote()
	repo := new(mockAnalysisRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(assert.AnError)

	brk := breaker.New(breaker.DefaultConfig("test-remote-persist"), nil)
	svc := NewSentimentService(remote, lexiconFallback(t), brk, repo, nil, SentimentConfig{
		MaxAttempts:  1,
		MaxTextBytes: 1024,
	}, newTestLogger())

	res, err := svc.Analyze(context.Background(), "u-1", "I love this")
	require.NoError(t, err)
	assert.Equal(t, domain.LabelPositive, res.Label)
	repo.AssertExpectations(t)
}

func TestSentimentService_Analyze_PersistsResult(t *testing.T) {
	remote := positiveRemote()
	repo := new(mockAnalysisRepository)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.Analysis) bool {
		return a.UserID == "u-1" &&
			a.Text == "I love this" &&
			a.Label == domain.LabelPositive &&
			a.Source == domain.SourceRemote &&
			a.ID != ""
	})).Return(nil)

	brk := breaker.New(breaker.DefaultConfig("test-remote-record"), nil)
	svc := NewSentimentService(remote, lexiconFallback(t), brk, repo, nil, SentimentConfig{
		MaxAttempts:  1,
		MaxTextBytes: 1024,
	}, newTestLogger())

	_, err := svc.Analyze(context.Background(), "u-1", "I love this")
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

// --- History ---

func TestSentimentService_History(t *testing.T) {
	f := newSentimentFixture(t, positiveRemote())

	analyses := []domain.Analysis{
		{ID: "a-2", UserID: "u-1", Label: domain.LabelNegative, Source: domain.SourceLocalFallback},
		{ID: "a-1", UserID: "u-1", Label: domain.LabelPositive, Source: domain.SourceRemote},
	}
	f.repo.On("CountByUserID", mock.Anything, "u-1").Return(int64(42), nil)
	f.repo.On("ListByUserID", mock.Anything, "u-1", 20, 0).Return(analyses, nil)

	result, err := f.svc.History(context.Background(), "u-1", pagination.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 42, result.TotalCount)
	assert.Equal(t, 3, result.TotalPages)
	assert.True(t, result.HasNext)
	require.Len(t, result.Data, 2)
	assert.Equal(t, "a-2", result.Data[0].ID)
}

func TestSentimentService_History_RepositoryError(t *testing.T) {
	f := newSentimentFixture(t, positiveRemote())

	f.repo.On("CountByUserID", mock.Anything, "u-1").Return(int64(0), assert.AnError)

	_, err := f.svc.History(context.Background(), "u-1", pagination.DefaultParams())
	assert.ErrorIs(t, err, apperrors.ErrInternal)
}
