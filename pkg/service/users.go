package service

import (
	"context"
	"errors"
	"strings"

	"github.com/example/storefront/pkg/apperror"
	"github.com/example/storefront/pkg/audit"
	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"go.uber.org/zap"
)

const msgInvalidLogin = "Invalid email or password"

type SignupInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Lastname string `json:"lastname" validate:"max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	// bcrypt only looks at the first 72 bytes.
	Password string `json:"password" validate:"required,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResult struct {
	User      models.PublicUser
	Token     string
	ExpiresAt int64
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Storefront) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Lastname = strings.TrimSpace(in.Lastname)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperror.Unhandled("Error registering user", err)
	}

	user := &models.User{
		Name:         in.Name,
		Lastname:     in.Lastname,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.Conflict("User already exists")
		}
		return nil, apperror.Unhandled("Error registering user", err)
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, apperror.Unhandled("Error registering user", err)
	}

	s.record(audit.ActionSignup, user.ID, user.ID, map[string]interface{}{"email": user.Email})
	return result, nil
}

// Login answers unknown emails and wrong passwords identically.
func (s *Storefront) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if in.Email == "" || in.Password == "" {
		return nil, apperror.InvalidCredentials(msgInvalidLogin)
	}

	user, err := s.store.FindUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.InvalidCredentials(msgInvalidLogin)
		}
		return nil, apperror.Unhandled("Error logging in", err)
	}
	if !auth.CheckPassword(user.PasswordHash, in.Password) {
		return nil, apperror.InvalidCredentials(msgInvalidLogin)
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, apperror.Unhandled("Error logging in", err)
	}

	s.record(audit.ActionLogin, user.ID, user.ID, nil)
	return result, nil
}

func (s *Storefront) issue(user *models.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(auth.Identity{
		UserID:   user.ID,
		Name:     user.Name,
		Lastname: user.Lastname,
		Email:    user.Email,
	})
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user.Public(), Token: token, ExpiresAt: expiresAt.Unix()}, nil
}

func (s *Storefront) Profile(ctx context.Context, userID string) (*models.PublicUser, error) {
	if s.cache != nil {
		cached, err := s.cache.GetUserCache(ctx, userID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn("Profile cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, apperror.Unhandled("Error fetching profile", err)
	}

	public := user.Public()
	if s.cache != nil {
		if err := s.cache.CacheUser(ctx, public); err != nil {
			s.logger.Warn("Profile cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return &public, nil
}

// Authenticate verifies a bearer token and, when a revocation list is
// configured, rejects tokens that were logged out.
func (s *Storefront) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrMissingToken) {
			return nil, apperror.Unauthenticated("No token provided")
		}
		return nil, apperror.Unauthenticated("Invalid token")
	}

	if s.revocations != nil && claims.ID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, apperror.Unhandled("Error verifying token", err)
		}
		if revoked {
			return nil, apperror.Unauthenticated("Invalid token")
		}
	}
	return claims, nil
}

// Logout revokes the token for the rest of its lifetime. Without a revocation
// list it succeeds and the token stays valid until it expires.
func (s *Storefront) Logout(ctx context.Context, claims *auth.Claims) error {
	if s.revocations == nil {
		return nil
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.RemainingTTL()); err != nil {
		return apperror.Unhandled("Error logging out", err)
	}

	s.record(audit.ActionLogout, claims.UserID, claims.UserID, nil)
	return nil
}

// RevocationEnabled reports whether Logout invalidates tokens server-side.
func (s *Storefront) RevocationEnabled() bool {
	return s.revocations != nil
}
