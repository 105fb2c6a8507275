package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Souradip121/sentiment-service/internal/auth"
	"github.com/Souradip121/sentiment-service/internal/breaker"
	"github.com/Souradip121/sentiment-service/internal/domain"
	"github.com/Souradip121/sentiment-service/internal/scorer"
	"github.com/Souradip121/sentiment-service/internal/service"
	apperrors "github.com/Souradip121/sentiment-service/pkg/errors"
	"github.com/Souradip121/sentiment-service/pkg/health"
	"github.com/Souradip121/sentiment-service/pkg/middleware"
)

// --- Mock repositories ---

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type mockAnalysisRepo struct {
	mock.Mock
}

func (m *mockAnalysisRepo) Create(ctx context.Context, analysis *domain.Analysis) error {
	args := m.Called(ctx, analysis)
	return args.Error(0)
}

func (m *mockAnalysisRepo) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]domain.Analysis, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Analysis), args.Error(1)
}

func (m *mockAnalysisRepo) CountByUserID(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// --- Stub scorer ---

type stubScorer struct {
	fn func(ctx context.Context, text string) (domain.Result, error)
}

func (s *stubScorer) Score(ctx context.Context, text string) (domain.Result, error) {
	return s.fn(ctx, text)
}

// --- Fixture ---

const testSecret = "test-secret-key-at-least-32-chars-long"

type routerFixture struct {
	handler  http.Handler
	users    *mockUserRepo
	analyses *mockAnalysisRepo
	remote   *stubScorer
	tokens   *auth.TokenManager
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	users := new(mockUserRepo)
	analyses := new(mockAnalysisRepo)
	analyses.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()

	tokens := auth.NewTokenManager(testSecret, time.Hour, 0)
	denylist := auth.NewDenylist(client)

	authSvc, err := service.NewAuthService(users, tokens, denylist, nil, bcrypt.MinCost, logger)
	require.NoError(t, err)

	remote := &stubScorer{fn: func(_ context.Context, _ string) (domain.Result, error) {
		return domain.Result{Label: domain.LabelPositive, Score: 0.98}, nil
	}}
	lex, err := scorer.NewLexicon()
	require.NoError(t, err)

	brk := breaker.New(breaker.Config{Name: "router-test", FailureThreshold: 5, Cooldown: time.Minute}, nil)
	sentimentSvc := service.NewSentimentService(remote, lex, brk, analyses, nil, service.SentimentConfig{
		MaxAttempts:  1,
		MaxTextBytes: 1024,
	}, logger)

	handler := NewRouter(authSvc, sentimentSvc, health.NewHandler(), logger, middleware.DefaultCORSConfig())

	return &routerFixture{
		handler:  handler,
		users:    users,
		analyses: analyses,
		remote:   remote,
		tokens:   tokens,
	}
}

func (f *routerFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *routerFixture) loginToken(t *testing.T, user *domain.User) string {
	t.Helper()
	issued, err := f.tokens.Issue(user, []string{domain.ScopeAnalyze})
	require.NoError(t, err)
	return issued.Token
}

func hashedUser(t *testing.T, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{
		ID:           "4a7f9a18-2b1c-4c06-8a50-1f2d3e4a5b6c",
		Username:     "alice",
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		IsActive:     true,
	}
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

// --- Register ---

func TestRouter_Register_Created(t *testing.T) {
	f := newRouterFixture(t)
	f.users.On("Create", mock.Anything, mock.Anything).Return(nil)

	rec := f.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice",
		"password": "s3curepass",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestRouter_Register_Duplicate(t *testing.T) {
	f := newRouterFixture(t)
	f.users.On("Create", mock.Anything, mock.Anything).Return(apperrors.UserExists("alice"))

	rec := f.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice",
		"password": "s3curepass",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "USER_EXISTS", decodeError(t, rec).Error.Code)
}

func TestRouter_Register_ValidationFailure(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "al",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.users.AssertNotCalled(t, "Create")
}

func TestRouter_Register_WrongContentType(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString("username=alice"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

// --- Login ---

func TestRouter_Login_ReturnsToken(t *testing.T) {
	f := newRouterFixture(t)
	user := hashedUser(t, "s3curepass")
	f.users.On("GetByUsername", mock.Anything, "alice").Return(user, nil)

	rec := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice",
		"password": "s3curepass",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.Token)
	assert.True(t, resp.Data.ExpiresAt.After(time.Now()))
}

func TestRouter_Login_BadCredentials(t *testing.T) {
	f := newRouterFixture(t)
	user := hashedUser(t, "s3curepass")
	f.users.On("GetByUsername", mock.Anything, "alice").Return(user, nil)

	rec := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice",
		"password": "wrongpass1",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decodeError(t, rec).Error.Code)
}

// --- Me / auth middleware ---

func TestRouter_Me_RequiresToken(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_MISSING", decodeError(t, rec).Error.Code)
}

func TestRouter_Me_ReturnsProfile(t *testing.T) {
	f := newRouterFixture(t)
	user := hashedUser(t, "s3curepass")
	f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	rec := f.do(t, http.MethodGet, "/auth/me", f.loginToken(t, user), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)
	assert.NotContains(t, rec.Body.String(), user.PasswordHash, "hashes must never leave the service")
	assert.NotContains(t, rec.Body.String(), "password_hash")
}

func TestRouter_Me_GarbageToken(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_INVALID", decodeError(t, rec).Error.Code)
}

func TestRouter_Me_ExpiredToken(t *testing.T) {
	f := newRouterFixture(t)
	user := hashedUser(t, "s3curepass")

	expired := auth.NewTokenManager(testSecret, -time.Minute, 0)
	issued, err := expired.Issue(user, nil)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/auth/me", issued.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_EXPIRED", decodeError(t, rec).Error.Code)
}

// --- Logout ---

func TestRouter_LogoutRevokesToken(t *testing.T) {
	f := newRouterFixture(t)
	user := hashedUser(t, "s3curepass")
	f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	token := f.loginToken(t, user)

	rec := f.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_INVALID", decodeError(t, rec).Error.Code)
}

// --- Analyze ---

func TestRouter_Analyze_RemoteResult(t *testing.T) {
	f := newRouterFixture(t)
	user := hashedUser(t, "s3curepass")

	rec := f.do(t, http.MethodPost, "/sentiment/analyze", f.loginToken(t, user), map[string]string{
		"text": "I love this",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data AnalyzeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "positive", resp.Data.Label)
	assert.Equal(t, "remote", resp.Data.Source)
	assert.InDelta(t, 0.98, resp.Data.Score, 1e-9)
}

func TestRouter_Analyze_FallsBackWhenRemoteFails(t *testing.T) {
	f := newRouterFixture(t)
	user := hashedUser(t, "s3curepass")
	f.remote.fn = func(_ context.Context, _ string) (domain.Result, error) {
		return domain.Result{}, assert.AnError
	}

	rec := f.do(t, http.MethodPost, "/sentiment/analyze", f.loginToken(t, user), map[string]string{
		"text": "this is terrible",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data AnalyzeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "negative", resp.Data.Label)
	assert.Equal(t, "local-fallback", resp.Data.Source)
}

func TestRouter_Analyze_RequiresToken(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/sentiment/analyze", "", map[string]string{"text": "hello"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_Analyze_EmptyText(t *testing.T) {
	f := newRouterFixture(t)
	user := hashedUser(t, "s3curepass")

	rec := f.do(t, http.MethodPost, "/sentiment/analyze", f.loginToken(t, user), map[string]string{
		"text": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Error.Code)
}

// --- History ---

func TestRouter_History(t *testing.T) {
	f := newRouterFixture(t)
	user := hashedUser(t, "s3curepass")

	f.analyses.On("CountByUserID", mock.Anything, user.ID).Return(int64(1), nil)
	f.analyses.On("ListByUserID", mock.Anything, user.ID, 20, 0).Return([]domain.Analysis{
		{ID: "a-1", UserID: user.ID, Text: "I love this", Score: 0.98, Label: domain.LabelPositive, Source: domain.SourceRemote},
	}, nil)

	rec := f.do(t, http.MethodGet, "/sentiment/history", f.loginToken(t, user), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_count":1`)
	assert.Contains(t, rec.Body.String(), `"label":"positive"`)
}

// --- Health ---

func TestRouter_HealthEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
