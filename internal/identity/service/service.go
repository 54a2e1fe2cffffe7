package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"gatekeep/internal/access"
	"gatekeep/internal/audit"
	"gatekeep/internal/identity/models"
	"gatekeep/internal/identity/token"
	"gatekeep/internal/notify"
	dErrors "gatekeep/pkg/domain-errors"
	"gatekeep/pkg/platform/sentinel"
	"gatekeep/pkg/requestcontext"
)

// UserStore is the persistence contract for identities.
type UserStore interface {
	Put(ctx context.Context, user models.User) (models.User, error)
	Get(ctx context.Context, id int64) (models.User, error)
	List(ctx context.Context, keep func(models.User) bool) ([]models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
}

// RevocationList tracks logged-out token ids until they expire.
type RevocationList interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuditTrail records security events; writes are best-effort.
type AuditTrail interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Publisher fans lifecycle events out to observers.
type Publisher interface {
	Publish(event notify.Event)
}

// Service handles login, token validation, and user administration.
type Service struct {
	users  UserStore
	tokens *token.Service
	trl    RevocationList
	trail  AuditTrail
	bus    Publisher
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(users UserStore, tokens *token.Service, trl RevocationList, trail AuditTrail, bus Publisher, opts ...Option) *Service {
	s := &Service{
		users:  users,
		tokens: tokens,
		trl:    trl,
		trail:  trail,
		bus:    bus,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies credentials and issues an access token. Failures are
// indistinguishable to the caller whether the username or the password
// was wrong.
func (s *Service) Login(ctx context.Context, username, password string) (models.User, string, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.User{}, "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return models.User{}, "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load user")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.trail.Record(ctx, audit.Entry{
			UserID: user.ID,
			Action: audit.ActionLogin,
			Status: audit.StatusBlocked,
		})
		return models.User{}, "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if !user.Active {
		s.trail.Record(ctx, audit.Entry{
			UserID: user.ID,
			Action: audit.ActionLogin,
			Status: audit.StatusBlocked,
		})
		return models.User{}, "", dErrors.New(dErrors.CodeUnauthorized, "account is disabled")
	}

	signed, err := s.tokens.Issue(user.ID, string(user.Role), requestcontext.Now(ctx))
	if err != nil {
		return models.User{}, "", err
	}

	s.trail.Record(ctx, audit.Entry{
		UserID: user.ID,
		Action: audit.ActionLogin,
		Status: audit.StatusSuccess,
	})
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID, "username", user.Username)
	return user, signed, nil
}

// Logout revokes the token's jti for the remainder of its lifetime.
// Revoking an already-invalid token is not an error.
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	now := requestcontext.Now(ctx)
	claims, err := s.tokens.Validate(tokenString, now)
	if err != nil {
		return nil
	}

	ttl := s.tokens.TTL()
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Time.Sub(now); remaining > 0 {
			ttl = remaining
		}
	}
	if err := s.trl.Revoke(ctx, claims.ID, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to revoke token")
	}
	s.logger.InfoContext(ctx, "user logged out", "user_id", claims.UserID)
	return nil
}

// Authenticate resolves a bearer token to its live user. Revoked tokens
// and disabled accounts are rejected.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (models.User, error) {
	claims, err := s.tokens.Validate(tokenString, requestcontext.Now(ctx))
	if err != nil {
		return models.User{}, err
	}

	revoked, err := s.trl.IsRevoked(ctx, claims.ID)
	if err != nil {
		return models.User{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to check token revocation")
	}
	if revoked {
		return models.User{}, dErrors.New(dErrors.CodeUnauthorized, "token has been revoked")
	}

	user, err := s.users.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.User{}, dErrors.New(dErrors.CodeUnauthorized, "unknown user")
		}
		return models.User{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load user")
	}
	if !user.Active {
		return models.User{}, dErrors.New(dErrors.CodeUnauthorized, "account is disabled")
	}
	return user, nil
}

// CreateUserParams carries the fields for a new account.
type CreateUserParams struct {
	Username string
	Password string
	FullName string
	Role     models.Role
	Email    string
}

// CreateUser registers a new account. Admin only.
func (s *Service) CreateUser(ctx context.Context, actorID int64, params CreateUserParams) (models.User, error) {
	actor, err := s.users.Get(ctx, actorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.User{}, dErrors.New(dErrors.CodeUnauthorized, "unknown actor")
		}
		return models.User{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load actor")
	}
	if !access.CanManageUsers(actor) {
		return models.User{}, dErrors.New(dErrors.CodeForbidden, "insufficient permissions")
	}

	if params.Username == "" || params.Password == "" || params.FullName == "" {
		return models.User{}, dErrors.New(dErrors.CodeValidation, "username, password, and full name are required")
	}
	if !params.Role.Valid() {
		return models.User{}, dErrors.New(dErrors.CodeValidation, "unknown role")
	}
	if _, err := s.users.FindByUsername(ctx, params.Username); err == nil {
		return models.User{}, dErrors.New(dErrors.CodeConflict, "username already taken")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return models.User{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to check username")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	user, err := s.users.Put(ctx, models.User{
		Username:     params.Username,
		PasswordHash: string(hash),
		FullName:     params.FullName,
		Role:         params.Role,
		Email:        params.Email,
		Active:       true,
		CreatedAt:    requestcontext.Now(ctx),
	})
	if err != nil {
		return models.User{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store user")
	}

	s.trail.Record(ctx, audit.Entry{
		UserID: actor.ID,
		Action: audit.ActionUserCreated,
		Status: audit.StatusSuccess,
	})
	s.bus.Publish(notify.Event{Type: notify.EventUserCreated, Data: user})
	s.logger.InfoContext(ctx, "user created", "user_id", user.ID, "username", user.Username, "role", user.Role)
	return user, nil
}

// ListUsers returns every account. Admin only.
func (s *Service) ListUsers(ctx context.Context, actorID int64) ([]models.User, error) {
	actor, err := s.users.Get(ctx, actorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown actor")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load actor")
	}
	if !access.CanManageUsers(actor) {
		return nil, dErrors.New(dErrors.CodeForbidden, "insufficient permissions")
	}
	return s.users.List(ctx, nil)
}

// FindByID exposes user lookup to the other lifecycle services.
func (s *Service) FindByID(ctx context.Context, id int64) (models.User, error) {
	return s.users.Get(ctx, id)
}

// Seed provisions the default accounts when the store is empty. Used by
// in-memory deployments so the system is usable out of the box.
func (s *Service) Seed(ctx context.Context) error {
	existing, err := s.users.List(ctx, nil)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	now := requestcontext.Now(ctx)
	defaults := []struct {
		username, password, fullName, email string
		role                                models.Role
	}{
		{"admin", "admin123", "System Administrator", "admin@example.com", models.RoleAdmin},
		{"john.smith", "password123", "John Smith", "john.smith@example.com", models.RoleTPO},
	}
	for _, d := range defaults {
		hash, err := bcrypt.GenerateFromPassword([]byte(d.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		if _, err := s.users.Put(ctx, models.User{
			Username:     d.username,
			PasswordHash: string(hash),
			FullName:     d.fullName,
			Role:         d.role,
			Email:        d.email,
			Active:       true,
			CreatedAt:    now,
		}); err != nil {
			return err
		}
	}
	s.logger.InfoContext(ctx, "seeded default users", "count", len(defaults))
	return nil
}
