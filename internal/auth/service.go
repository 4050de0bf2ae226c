package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/church-cms/internal"
	userDatamodel "github.com/frahmantamala/church-cms/internal/core/datamodel/user"
	"github.com/frahmantamala/church-cms/internal/core/events"
	"github.com/frahmantamala/church-cms/internal/user"
	"golang.org/x/crypto/bcrypt"
)

type RepositoryAPI interface {
	// GetCredentialsByEmail returns nil, nil when no user has email.
	GetCredentialsByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

// UserLoaderAPI loads a user with its ordered roles.
type UserLoaderAPI interface {
	GetUser(ctx context.Context, id string) (*user.User, error)
}

// PermissionResolverAPI turns role names into the union of their permissions.
type PermissionResolverAPI interface {
	ResolvePermissions(ctx context.Context, roles []string) ([]string, error)
}

type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO, ip, userAgent string) (*LoginResponse, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	Principal(ctx context.Context, tokenString string) (*internal.User, error)
}

type Service struct {
	repo           RepositoryAPI
	users          UserLoaderAPI
	permissions    PermissionResolverAPI
	tokenGenerator TokenGenerator
	events         events.Publisher
	bcryptCost     int
	logger         *slog.Logger
}

func NewService(repo RepositoryAPI, users UserLoaderAPI, permissions PermissionResolverAPI, tokenGen TokenGenerator, publisher events.Publisher, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:           repo,
		users:          users,
		permissions:    permissions,
		tokenGenerator: tokenGen,
		events:         publisher,
		bcryptCost:     bcryptCost,
		logger:         logger,
	}
}

// Authenticate validates credentials and returns an access token
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO, ip, userAgent string) (*LoginResponse, error) {
	if verr := dto.Validate(); verr != nil {
		return nil, verr
	}
	email := strings.ToLower(strings.TrimSpace(dto.Email))

	creds, err := s.repo.GetCredentialsByEmail(ctx, email)
	if err != nil {
		s.logger.Error("failed to load credentials", "error", err)
		return nil, err
	}
	if creds == nil {
		return nil, internal.ErrInvalidCredentials
	}
	if err := VerifyPassword(creds.PasswordHash, dto.Password); err != nil {
		return nil, internal.ErrInvalidCredentials
	}
	if !creds.IsActive {
		return nil, internal.ErrUserInactive
	}

	token, expiresAt, err := s.tokenGenerator.GenerateAccessToken(creds.ID, creds.Email)
	if err != nil {
		s.logger.Error("failed to sign access token", "error", err, "user_id", creds.ID)
		return nil, internal.NewInternalError("failed to issue token", err)
	}

	if err := s.repo.UpdateLastLogin(ctx, creds.ID, time.Now()); err != nil {
		s.logger.Warn("failed to record last login", "error", err, "user_id", creds.ID)
	}

	profile, err := s.users.GetUser(ctx, creds.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "user_id", creds.ID)
	s.publish(ctx, events.NewDomainEvent(events.EventTypeUserLoggedIn, creds.ID, "auth.login", "system",
		creds.ID, creds.Username, nil).WithRequest(ip, userAgent))

	return &LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        profile,
	}, nil
}

// ValidateAccessToken validates access token and returns claims
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateToken(tokenString)
}

// Principal verifies the token and builds the request principal from the
// user's current roles and their permissions.
func (s *Service) Principal(ctx context.Context, tokenString string) (*internal.User, error) {
	claims, err := s.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok && appErr.Is(internal.ErrUserNotFound) {
			return nil, internal.ErrInvalidToken
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, internal.ErrUserInactive
	}

	roles := u.Roles
	if len(roles) == 0 {
		roles = []string{u.Role}
	}
	perms, err := s.permissions.ResolvePermissions(ctx, roles)
	if err != nil {
		return nil, err
	}

	return &internal.User{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		Roles:       roles,
		Permissions: perms,
	}, nil
}

// HashPassword creates a bcrypt hash of the password
func (s *Service) HashPassword(password string) (string, error) {
	return HashPassword(password, s.bcryptCost)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
