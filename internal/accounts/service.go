package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-auth/atlas-auth/internal/audit"
	"github.com/atlas-auth/atlas-auth/internal/platform/httpx"
	"github.com/atlas-auth/atlas-auth/internal/shared"
)

// TokenIssuer issues a signed token bound to a user identifier. Verification
// lives with the auth middleware; the split keeps the signing algorithm
// swappable without touching account logic.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// Service orchestrates account operations.
type Service struct {
	repo     Repository
	hasher   PasswordHasher
	tokens   TokenIssuer
	recorder audit.Recorder
	logger   *slog.Logger
	clock    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, hasher PasswordHasher, tokens TokenIssuer, recorder audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		hasher:   hasher,
		tokens:   tokens,
		recorder: recorder,
		logger:   logger,
		clock:    time.Now,
	}
}

// WithClock overrides the time source for deterministic tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// AuthResult carries a freshly issued token and the sanitized user.
type AuthResult struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

// RegisterInput holds registration fields.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	IP       string
}

// Register creates a new account with the default role and logs it in.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if input.Name == "" || input.Email == "" || input.Password == "" {
		return nil, fmt.Errorf("Name, email and password are required: %w", httpx.ErrValidation)
	}

	// Advisory pre-check; the unique index on users.email is the real guard
	// against concurrent registrations.
	if _, err := s.repo.FindByEmail(ctx, input.Email); err == nil {
		return nil, fmt.Errorf("Email already registered: %w", httpx.ErrDuplicate)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	user := &User{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         shared.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, fmt.Errorf("Email already registered: %w", httpx.ErrDuplicate)
		}
		return nil, err
	}

	signed, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.Event{Kind: audit.KindRegister, UserID: user.ID, Email: user.Email, IP: input.IP})
	return &AuthResult{Token: signed, User: user.Profile()}, nil
}

// LoginInput holds login credentials.
type LoginInput struct {
	Email    string
	Password string
	IP       string
}

// Login authenticates email/password credentials and issues a token. Unknown
// email and wrong password produce identical errors to prevent enumeration.
func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	if input.Email == "" || input.Password == "" {
		return nil, fmt.Errorf("Email and password are required: %w", httpx.ErrValidation)
	}

	user, err := s.repo.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.record(ctx, audit.Event{Kind: audit.KindLoginFail, Email: input.Email, IP: input.IP})
			return nil, fmt.Errorf("Invalid email or password: %w", httpx.ErrUnauthorized)
		}
		return nil, err
	}
	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		s.record(ctx, audit.Event{Kind: audit.KindLoginFail, UserID: user.ID, Email: input.Email, IP: input.IP})
		return nil, fmt.Errorf("Invalid email or password: %w", httpx.ErrUnauthorized)
	}

	signed, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.Event{Kind: audit.KindLoginOK, UserID: user.ID, Email: user.Email, IP: input.IP})
	return &AuthResult{Token: signed, User: user.Profile()}, nil
}

// CurrentUser returns the sanitized profile for a resolved principal.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("User not found: %w", httpx.ErrNotFound)
		}
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}

// UpdateProfileInput holds optional profile changes. Nil fields are left as-is.
type UpdateProfileInput struct {
	Name  *string
	Email *string
}

// UpdateProfile applies the provided fields and returns the updated profile.
func (s *Service) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*Profile, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("User not found: %w", httpx.ErrNotFound)
		}
		return nil, err
	}

	name := user.Name
	email := user.Email
	if input.Name != nil && *input.Name != "" {
		name = *input.Name
	}
	if input.Email != nil && *input.Email != "" && *input.Email != user.Email {
		if existing, err := s.repo.FindByEmail(ctx, *input.Email); err == nil && existing.ID != user.ID {
			return nil, fmt.Errorf("Email already registered: %w", httpx.ErrDuplicate)
		} else if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		email = *input.Email
	}

	updated, err := s.repo.UpdateProfile(ctx, userID, name, email)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, fmt.Errorf("Email already registered: %w", httpx.ErrDuplicate)
		}
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("User not found: %w", httpx.ErrNotFound)
		}
		return nil, err
	}
	profile := updated.Profile()
	return &profile, nil
}

// ChangePasswordInput holds a password rotation request.
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
	IP              string
}

// ChangePassword re-verifies the current password, stores a new hash and
// moves the password-changed-at marker, invalidating earlier tokens.
func (s *Service) ChangePassword(ctx context.Context, userID string, input ChangePasswordInput) error {
	if input.CurrentPassword == "" || input.NewPassword == "" {
		return fmt.Errorf("Current and new password are required: %w", httpx.ErrValidation)
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("User not found: %w", httpx.ErrNotFound)
		}
		return err
	}
	if !s.hasher.Verify(input.CurrentPassword, user.PasswordHash) {
		return fmt.Errorf("Current password is incorrect: %w", httpx.ErrUnauthorized)
	}

	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, hash, s.clock().UTC()); err != nil {
		return err
	}

	s.record(ctx, audit.Event{Kind: audit.KindPasswordChange, UserID: user.ID, Email: user.Email, IP: input.IP})
	return nil
}

// VerifyEmailExists reports whether an account exists for the email. The
// existence disclosure is deliberate; the route carries a strict rate limit.
func (s *Service) VerifyEmailExists(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("Email is required: %w", httpx.ErrValidation)
	}
	if _, err := s.repo.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("No user found with this email: %w", httpx.ErrNotFound)
		}
		return err
	}
	return nil
}

// RecoverInput holds an unauthenticated password reset request.
type RecoverInput struct {
	Email       string
	NewPassword string
	// SecurityAnswers is accepted but not verified; the recovery flow carries
	// no proof of identity beyond the email address. See DESIGN.md.
	SecurityAnswers []string
	IP              string
}

// RecoverPassword overwrites the password hash for the account registered
// under the email and moves the password-changed-at marker.
func (s *Service) RecoverPassword(ctx context.Context, input RecoverInput) error {
	if input.Email == "" {
		return fmt.Errorf("Email is required: %w", httpx.ErrValidation)
	}
	if input.NewPassword == "" {
		return fmt.Errorf("New password is required: %w", httpx.ErrValidation)
	}

	user, err := s.repo.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("No user found with this email: %w", httpx.ErrNotFound)
		}
		return err
	}

	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash, s.clock().UTC()); err != nil {
		return err
	}

	s.record(ctx, audit.Event{Kind: audit.KindPasswordRecover, UserID: user.ID, Email: user.Email, IP: input.IP})
	return nil
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.recorder == nil {
		return
	}
	event.At = s.clock().UTC()
	if err := s.recorder.Record(ctx, event); err != nil && s.logger != nil {
		s.logger.Warn("record audit event", slog.String("kind", event.Kind), slog.Any("error", err))
	}
}
