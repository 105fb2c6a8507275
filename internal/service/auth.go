// Package service implements the business logic for authentication and
// sentiment analysis.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Souradip121/sentiment-service/internal/auth"
	"github.com/Souradip121/sentiment-service/internal/domain"
	"github.com/Souradip121/sentiment-service/internal/event"
	"github.com/Souradip121/sentiment-service/internal/repository"
	apperrors "github.com/Souradip121/sentiment-service/pkg/errors"
)

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// AuthService implements registration, login, and token lifecycle.
type AuthService struct {
	userRepo   repository.UserRepository
	tokens     *auth.TokenManager
	denylist   *auth.Denylist
	publisher  *event.Publisher
	bcryptCost int
	logger     *slog.Logger

	// dummyHash is compared against when the username does not exist, so
	// lookups and failed logins take roughly the same time.
	dummyHash []byte
}

// NewAuthService creates a new auth service.
func NewAuthService(
	userRepo repository.UserRepository,
	tokens *auth.TokenManager,
	denylist *auth.Denylist,
	publisher *event.Publisher,
	bcryptCost int,
	logger *slog.Logger,
) (*AuthService, error) {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
	}

	dummyHash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}

	return &AuthService{
		userRepo:   userRepo,
		tokens:     tokens,
		denylist:   denylist,
		publisher:  publisher,
		bcryptCost: bcryptCost,
		logger:     logger,
		dummyHash:  dummyHash,
	}, nil
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// LoginInput holds the parameters for user login.
type LoginInput struct {
	Username string
	Password string
}

// Register creates a new user account with a hashed password. The password
// itself is never stored or logged.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if input.Username == "" {
		return nil, apperrors.InvalidInput("username is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
		Role:         domain.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The unique constraint on username decides races between concurrent
	// registrations; at most one insert wins.
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.publisher.UserRegistered(ctx, user)

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// Login authenticates a user and issues an access token. Unknown usernames
// and wrong passwords produce the same error and take comparable time.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.User, domain.IssuedToken, error) {
	if input.Username == "" || input.Password == "" {
		return nil, domain.IssuedToken{}, apperrors.InvalidCredentials()
	}

	user, err := s.userRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Burn a comparison anyway so the miss is not observable
			// through response timing.
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(input.Password))
			return nil, domain.IssuedToken{}, apperrors.InvalidCredentials()
		}
		return nil, domain.IssuedToken{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, domain.IssuedToken{}, apperrors.InvalidCredentials()
	}

	if !user.IsActive {
		return nil, domain.IssuedToken{}, apperrors.InvalidCredentials()
	}

	scopes := []string{domain.ScopeAnalyze}
	if user.Role == domain.RoleAdmin {
		scopes = append(scopes, domain.ScopeAdmin)
	}

	issued, err := s.tokens.Issue(user, scopes)
	if err != nil {
		return nil, domain.IssuedToken{}, fmt.Errorf("issue token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, issued, nil
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// Logout revokes the presented token. The denylist entry lives exactly as
// long as the token would have.
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		return err
	}

	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return apperrors.Internal(err)
	}

	s.logger.InfoContext(ctx, "token revoked",
		slog.String("user_id", claims.UserID),
	)
	return nil
}

// ValidateToken verifies a token's signature and claims and rejects revoked
// tokens. It backs the HTTP auth middleware.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if revoked {
		return nil, apperrors.TokenInvalid("token has been revoked")
	}

	return claims, nil
}

// validatePassword enforces the minimum password policy: length, at least
// one letter, at least one digit.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one letter and one digit")
	}
	return nil
}
