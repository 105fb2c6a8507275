package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Souradip121/sentiment-service/internal/domain"
	apperrors "github.com/Souradip121/sentiment-service/pkg/errors"
)

const testSecret = "test-secret-key-at-least-32-chars-long"

func testUser() *domain.User {
	return &domain.User{
		ID:       "4a7f9a18-2b1c-4c06-8a50-1f2d3e4a5b6c",
		Username: "alice",
		Role:     domain.RoleUser,
	}
}

func TestTokenManager_IssueValidateRoundTrip(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour, 30*time.Second)
	user := testUser()

	issued, err := m.Issue(user, []string{domain.ScopeAnalyze})
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), issued.ExpiresAt, 5*time.Second)

	claims, err := m.Validate(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, domain.RoleUser, claims.Role)
	assert.Equal(t, []string{domain.ScopeAnalyze}, claims.Scopes)
	assert.NotEmpty(t, claims.ID, "token must carry a jti for revocation")
}

func TestTokenManager_UniqueTokenIDs(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour, 0)
	user := testUser()

	a, err := m.Issue(user, nil)
	require.NoError(t, err)
	b, err := m.Issue(user, nil)
	require.NoError(t, err)

	ca, err := m.Validate(a.Token)
	require.NoError(t, err)
	cb, err := m.Validate(b.Token)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cb.ID)
}

func TestTokenManager_ExpiredToken(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour, 30*time.Second)

	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.SetNow(func() time.Time { return issuedAt })

	issued, err := m.Issue(testUser(), nil)
	require.NoError(t, err)

	// Within leeway past expiry the token is still accepted.
	m.SetNow(func() time.Time { return issuedAt.Add(time.Hour + 10*time.Second) })
	_, err = m.Validate(issued.Token)
	assert.NoError(t, err)

	// Beyond leeway it is rejected as expired, not merely invalid.
	m.SetNow(func() time.Time { return issuedAt.Add(time.Hour + time.Minute) })
	_, err = m.Validate(issued.Token)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	issuerMgr := NewTokenManager(testSecret, time.Hour, 0)
	otherMgr := NewTokenManager("another-secret-key-also-32-chars-xx", time.Hour, 0)

	issued, err := issuerMgr.Issue(testUser(), nil)
	require.NoError(t, err)

	_, err = otherMgr.Validate(issued.Token)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
}

func TestTokenManager_GarbageToken(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour, 0)

	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := m.Validate(tok)
		assert.ErrorIs(t, err, apperrors.ErrTokenInvalid, "token %q", tok)
	}
}

func TestTokenManager_UnsignedAlgorithmRejected(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour, 0)

	// alg=none token with plausible claims.
	none := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0." +
		"eyJzdWIiOiJhdHRhY2tlciIsImV4cCI6NDg5MzQ1NjAwMH0."
	_, err := m.Validate(none)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
}
