package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Skotchmaster/product_catalog/internal/domain"
	"github.com/Skotchmaster/product_catalog/internal/hash"
	"github.com/Skotchmaster/product_catalog/internal/logging"
	"github.com/Skotchmaster/product_catalog/internal/models"
	"github.com/Skotchmaster/product_catalog/internal/repo"
	"github.com/Skotchmaster/product_catalog/internal/tokens"
)

const maxEmailLen = 254

// Compared against when the email is unknown so both failure paths cost one bcrypt check.
var dummyHash, _ = hash.HashPassword("not-a-real-password")

type AuthService struct {
	Repo              *repo.GormRepo
	Secret            []byte
	SessionTTL        time.Duration
	MinPasswordLength int
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Identity  domain.Identity
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if email == "" || len(email) > maxEmailLen || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at != strings.IndexByte(email, '@') {
		return false
	}
	domainPart := email[at+1:]
	dot := strings.LastIndexByte(domainPart, '.')
	return dot > 0 && dot < len(domainPart)-1
}

func identityOf(u *models.User) domain.Identity {
	return domain.Identity{UserID: u.ID, Email: u.Email, Role: domain.Role(u.Role)}
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	email = NormalizeEmail(email)
	if !validEmail(email) {
		l.Warn("register_error", "status", 400, "reason", "invalid email")
		return nil, fmt.Errorf("%w: invalid email address", domain.ErrValidation)
	}
	if len(password) < s.MinPasswordLength {
		l.Warn("register_error", "status", 400, "reason", "password too short")
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, s.MinPasswordLength)
	}
	if len(password) > hash.MaxPasswordBytes {
		l.Warn("register_error", "status", 400, "reason", "password too long")
		return nil, fmt.Errorf("%w: password must be at most %d bytes", domain.ErrValidation, hash.MaxPasswordBytes)
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: pwHash,
		Role:         string(domain.RoleCustomer),
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailAlreadyExists) {
			l.Warn("register_error", "status", 409, "reason", "email already registered")
			return nil, err
		}
		l.Error("register_error", "status", 500, "reason", "cannot create user", "error", err)
		return nil, err
	}

	l.Info("register_success", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	l := logging.FromContext(ctx).With("svc", "auth.login", "email", email)

	user, err := s.Repo.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			hash.CheckPassword(dummyHash, password)
			l.Warn("login_failed", "status", 401, "reason", "unknown email")
			return nil, domain.ErrInvalidCredentials
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "wrong password")
		return nil, domain.ErrInvalidCredentials
	}

	token, claims, err := tokens.Sign(s.Secret, user.ID, user.Email, user.Role, s.SessionTTL, time.Now())
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot sign session", "error", err)
		return nil, err
	}

	if err := s.Repo.CreateSession(ctx, &models.Session{
		JTI:       claims.ID,
		UserID:    user.ID,
		ExpiresAt: claims.ExpiresAt.Unix(),
	}); err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot store session", "error", err)
		return nil, err
	}

	l.Info("login_success", "user_id", user.ID)
	return &LoginResult{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		Identity:  identityOf(user),
	}, nil
}

// Logout revokes the session behind token. Missing, malformed or already revoked
// tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")
	if token == "" {
		return nil
	}
	claims, err := tokens.Parse(token, s.Secret, jwt.WithoutClaimsValidation())
	if err != nil {
		l.Debug("logout_ignored", "reason", "unparseable token")
		return nil
	}
	if err := s.Repo.RevokeSession(ctx, claims.ID); err != nil {
		l.Error("logout_failed", "status", 500, "reason", "cannot revoke session", "error", err)
		return err
	}
	l.Info("logout_success")
	return nil
}

// CurrentUser resolves token to the identity it was issued for. Any token that is
// not a live session resolves to domain.Anonymous; err is set only when the
// lookup itself failed.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Anonymous, nil
	}
	claims, err := tokens.Parse(token, s.Secret)
	if err != nil {
		return domain.Anonymous, nil
	}
	userID, err := claims.UserID()
	if err != nil {
		return domain.Anonymous, nil
	}

	active, err := s.Repo.SessionActive(ctx, claims.ID, time.Now())
	if err != nil {
		return domain.Anonymous, err
	}
	if !active {
		return domain.Anonymous, nil
	}

	user, err := s.Repo.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Anonymous, nil
		}
		return domain.Anonymous, err
	}
	return identityOf(user), nil
}

// SeedAdmin creates the admin account unless a user with that email already exists.
func (s *AuthService) SeedAdmin(ctx context.Context, email, password string) (bool, error) {
	l := logging.FromContext(ctx).With("svc", "auth.seed_admin")

	email = NormalizeEmail(email)
	if !validEmail(email) {
		return false, fmt.Errorf("%w: invalid admin email", domain.ErrValidation)
	}
	if password == "" {
		return false, fmt.Errorf("%w: empty admin password", domain.ErrValidation)
	}
	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return false, err
	}

	created, err := s.Repo.CreateUserIfNotExists(ctx, &models.User{
		Email:        email,
		PasswordHash: pwHash,
		Role:         string(domain.RoleAdmin),
	})
	if err != nil {
		l.Error("seed_admin_failed", "error", err)
		return false, err
	}
	if created {
		l.Info("seed_admin_created", "email", email)
	}
	return created, nil
}

func (s *AuthService) PurgeSessions(ctx context.Context) (int64, error) {
	return s.Repo.DeleteExpiredSessions(ctx, time.Now())
}
