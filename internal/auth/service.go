package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"echovia/internal/config"
	"echovia/internal/database"
	"echovia/pkg/models"

	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrForbidden          = errors.New("forbidden")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidRole        = errors.New("invalid role")
	ErrRoleUnchanged      = errors.New("user already has this role")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// UserStore is the account storage the service needs. *database.Database
// satisfies it.
type UserStore interface {
	CreateUser(user models.User, passwordHash string) (models.User, error)
	GetUserByEmail(email string) (models.User, string, error)
	GetUserByID(id string) (models.User, error)
	UpdateUserRole(id string, role models.Role) error
}

// Session is the result of a successful login
type Session struct {
	Token     string
	User      models.User
	ExpiresAt time.Time
}

// Service provides authentication functionality
type Service struct {
	config  *config.AuthConfig
	users   UserStore
	tokens  *TokenIssuer
	revoked *RevocationList
	logger  *logrus.Logger
}

// NewService creates a new authentication service
func NewService(cfg *config.AuthConfig, users UserStore, logger *logrus.Logger) (*Service, error) {
	ttl := time.Duration(cfg.TokenTTLHours) * time.Hour
	tokens, err := NewTokenIssuer(cfg.JWTSecret, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}

	return &Service{
		config:  cfg,
		users:   users,
		tokens:  tokens,
		revoked: NewRevocationList(),
		logger:  logger,
	}, nil
}

// Start runs the revocation sweeper until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	go s.revoked.Run(ctx, time.Hour)
}

// SecureCookies reports whether cookies must be marked Secure
func (s *Service) SecureCookies() bool {
	return s.config.SecureCookies
}

// Signup creates a new account. The first account ever created becomes the
// major admin.
func (s *Service) Signup(username, email, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if len(password) < MinPasswordLength {
		return models.User{}, ErrWeakPassword
	}

	hash, err := hashPassword(password, s.config.BcryptCost)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.users.CreateUser(models.User{Username: username, Email: email}, hash)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return models.User{}, ErrUserExists
		}
		return models.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login checks credentials and issues a token
func (s *Service) Login(email, password string) (*Session, error) {
	user, hash, err := s.users.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !checkPassword(hash, password) {
		return nil, ErrInvalidCredentials
	}

	token, claims, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", user.ID).Info("User logged in")
	return &Session{Token: token, User: user, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Authenticate resolves a token to its current account. The role comes from
// storage, not from the token, so role changes apply immediately.
func (s *Service) Authenticate(token string) (models.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return models.User{}, err
	}
	if s.revoked.IsRevoked(claims.ID) {
		return models.User{}, ErrInvalidToken
	}

	user, err := s.users.GetUserByID(claims.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.User{}, ErrInvalidToken
		}
		return models.User{}, err
	}
	return user, nil
}

// Logout revokes a token. Invalid tokens are ignored.
func (s *Service) Logout(token string) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return
	}
	s.revoked.Revoke(claims.ID, claims.ExpiresAt.Time)
	s.logger.WithField("user_id", claims.UserID).Info("User logged out")
}

// ChangeRole applies an admin's role change to the account with the given
// email. Checks run in order: caller privilege, requested role, target
// existence, target protection, peer protection, no-op.
func (s *Service) ChangeRole(caller models.User, email string, newRole models.Role) (models.User, error) {
	if !caller.Role.IsAdmin() {
		return models.User{}, ErrForbidden
	}
	if newRole == models.RoleMajorAdmin {
		return models.User{}, fmt.Errorf("%w: cannot grant %s", ErrForbidden, newRole)
	}
	if !newRole.Valid() {
		return models.User{}, fmt.Errorf("%w: %q", ErrInvalidRole, newRole)
	}

	target, _, err := s.users.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}

	if target.Role == models.RoleMajorAdmin {
		return models.User{}, fmt.Errorf("%w: cannot change a %s", ErrForbidden, target.Role)
	}
	if target.Role == caller.Role {
		return models.User{}, fmt.Errorf("%w: cannot change a peer's role", ErrForbidden)
	}
	if target.Role == newRole {
		return models.User{}, ErrRoleUnchanged
	}

	if err := s.users.UpdateUserRole(target.ID, newRole); err != nil {
		return models.User{}, fmt.Errorf("failed to update role: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"caller":   caller.ID,
		"target":   target.ID,
		"new_role": newRole,
	}).Info("Changed user role")

	target.Role = newRole
	return target, nil
}
