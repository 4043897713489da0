package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/storefront-api/internal/config"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/platform/logger"
	"github.com/phrazzld/storefront-api/internal/service/auth"
	"github.com/phrazzld/storefront-api/internal/store"
)

// LockoutPolicy controls how repeated login failures lock a credential.
type LockoutPolicy struct {
	MaxFailedAttempts int
	Duration          time.Duration
}

// Service implements Gateway on top of a store.CredentialStore.
type Service struct {
	credentials store.CredentialStore
	hasher      auth.PasswordHasher
	tokens      auth.JWTService
	lockout     LockoutPolicy
	tokenTTL    time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// Ensure Service implements Gateway interface
var _ Gateway = (*Service)(nil)

// NewService wires the gateway. It returns an error when a dependency is missing.
func NewService(
	credentials store.CredentialStore,
	hasher auth.PasswordHasher,
	tokens auth.JWTService,
	cfg config.AuthConfig,
	logger *slog.Logger,
) (*Service, error) {
	if credentials == nil {
		return nil, errors.New("credential store cannot be nil")
	}
	if hasher == nil {
		return nil, errors.New("password hasher cannot be nil")
	}
	if tokens == nil {
		return nil, errors.New("jwt service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		credentials: credentials,
		hasher:      hasher,
		tokens:      tokens,
		lockout: LockoutPolicy{
			MaxFailedAttempts: cfg.MaxFailedLogins,
			Duration:          cfg.LockoutDuration(),
		},
		tokenTTL: time.Duration(cfg.TokenLifetimeMinutes) * time.Minute,
		logger:   logger.With(slog.String("component", "identity")),
		now:      time.Now,
	}, nil
}

// WithClock replaces the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateCredential registers a credential with the default user role.
func (s *Service) CreateCredential(ctx context.Context, name, email, password string) Result {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if problems := auth.CheckPasswordStrength(password); len(problems) > 0 {
		return failed(nil, problems...)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		log.Error("failed to hash password", slog.String("error", err.Error()))
		return failed(err, MsgUnavailable)
	}

	credential, err := domain.NewCredential(name, email, hash)
	if err != nil {
		return failed(err, err.Error())
	}

	if err := s.credentials.Create(ctx, credential); err != nil {
		if store.IsDuplicateError(err) {
			return Result{Errors: []string{MsgDuplicateEmail}, Duplicate: true, Err: err}
		}
		log.Error("failed to store credential",
			slog.String("error", err.Error()),
			slog.String("email", credential.Email))
		return failed(err, MsgUnavailable)
	}

	log.Info("credential created", slog.String("credential_id", credential.ID.String()))
	return ok()
}

// RemoveCredential deletes the credential and its role memberships.
func (s *Service) RemoveCredential(ctx context.Context, email string) Result {
	if err := s.credentials.DeleteByEmail(ctx, email); err != nil {
		if store.IsNotFoundError(err) {
			return failed(err, MsgUnknownEmail)
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to remove credential",
			slog.String("error", err.Error()))
		return failed(err, MsgUnavailable)
	}
	return ok()
}

// Authenticate verifies the password and issues an access and refresh token
// pair. Consecutive failures lock the credential for the policy duration.
func (s *Service) Authenticate(ctx context.Context, email, password string) TokenResult {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now()

	credential, err := s.credentials.GetByEmail(ctx, email)
	if err != nil {
		if !store.IsNotFoundError(err) {
			log.Error("failed to load credential", slog.String("error", err.Error()))
			return TokenResult{Error: MsgUnavailable}
		}
		return TokenResult{Error: MsgInvalidCredentials}
	}

	if credential.LockedAt(now) {
		log.Warn("login attempt on locked credential",
			slog.String("credential_id", credential.ID.String()))
		return TokenResult{Error: MsgAccountLocked, Locked: true}
	}

	// An expired lock starts a fresh failure window.
	if credential.LockedUntil != nil {
		if err := s.credentials.ResetFailedLogins(ctx, credential.ID); err != nil {
			log.Error("failed to reset expired lockout", slog.String("error", err.Error()))
			return TokenResult{Error: MsgUnavailable}
		}
		credential.FailedAttempts = 0
		credential.LockedUntil = nil
	}

	if err := s.hasher.Compare(credential.PasswordHash, password); err != nil {
		return s.recordFailure(ctx, credential, now)
	}

	if credential.FailedAttempts > 0 {
		if err := s.credentials.ResetFailedLogins(ctx, credential.ID); err != nil {
			log.Warn("failed to reset login counter", slog.String("error", err.Error()))
		}
	}

	return s.issue(ctx, auth.Identity{
		CredentialID: credential.ID,
		Email:        credential.Email,
		Roles:        credential.Roles,
	})
}

func (s *Service) recordFailure(ctx context.Context, credential *domain.Credential, now time.Time) TokenResult {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var lockedUntil *time.Time
	locking := s.lockout.MaxFailedAttempts > 0 &&
		credential.FailedAttempts+1 >= s.lockout.MaxFailedAttempts
	if locking {
		until := now.Add(s.lockout.Duration)
		lockedUntil = &until
	}

	attempts, err := s.credentials.RecordFailedLogin(ctx, credential.ID, lockedUntil)
	if err != nil {
		log.Error("failed to record failed login", slog.String("error", err.Error()))
		return TokenResult{Error: MsgInvalidCredentials}
	}

	if locking {
		log.Warn("credential locked after repeated failures",
			slog.String("credential_id", credential.ID.String()),
			slog.Int("attempts", attempts))
		return TokenResult{Error: MsgAccountLocked, Locked: true}
	}
	return TokenResult{Error: MsgInvalidCredentials}
}

// Refresh exchanges a valid refresh token for a new token pair. Roles are
// reloaded so grants made since the last login take effect.
func (s *Service) Refresh(ctx context.Context, refreshToken string) TokenResult {
	claims, err := s.tokens.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return TokenResult{Error: MsgInvalidToken}
	}

	credential, err := s.credentials.GetByEmail(ctx, claims.Email)
	if err != nil {
		return TokenResult{Error: MsgInvalidToken}
	}
	if credential.LockedAt(s.now()) {
		return TokenResult{Error: MsgAccountLocked, Locked: true}
	}

	return s.issue(ctx, auth.Identity{
		CredentialID: credential.ID,
		Email:        credential.Email,
		Roles:        credential.Roles,
	})
}

func (s *Service) issue(ctx context.Context, identity auth.Identity) TokenResult {
	log := logger.FromContextOrDefault(ctx, s.logger)

	access, err := s.tokens.GenerateToken(ctx, identity)
	if err != nil {
		log.Error("failed to generate access token", slog.String("error", err.Error()))
		return TokenResult{Error: MsgUnavailable}
	}
	refresh, err := s.tokens.GenerateRefreshToken(ctx, identity)
	if err != nil {
		log.Error("failed to generate refresh token", slog.String("error", err.Error()))
		return TokenResult{Error: MsgUnavailable}
	}

	return TokenResult{
		Success:      true,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    s.now().Add(s.tokenTTL),
		Identity:     identity,
	}
}

// ChangePassword verifies the current password and stores a hash of the new one.
func (s *Service) ChangePassword(ctx context.Context, email, current, next string) Result {
	credential, err := s.credentials.GetByEmail(ctx, email)
	if err != nil {
		if store.IsNotFoundError(err) {
			return failed(err, MsgUnknownEmail)
		}
		return failed(err, MsgUnavailable)
	}

	if err := s.hasher.Compare(credential.PasswordHash, current); err != nil {
		return failed(nil, MsgInvalidCredentials)
	}
	if current == next {
		return failed(nil, MsgPasswordUnchanged)
	}
	if problems := auth.CheckPasswordStrength(next); len(problems) > 0 {
		return failed(nil, problems...)
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return failed(err, MsgUnavailable)
	}
	if err := s.credentials.UpdatePassword(ctx, credential.ID, hash); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update password",
			slog.String("error", err.Error()))
		return failed(err, MsgUnavailable)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("password changed",
		slog.String("credential_id", credential.ID.String()))
	return ok()
}

// AssignRole grants role to the credential registered for email.
func (s *Service) AssignRole(ctx context.Context, email, role string) Result {
	credential, err := s.credentials.GetByEmail(ctx, email)
	if err != nil {
		if store.IsNotFoundError(err) {
			return failed(err, MsgUnknownEmail)
		}
		return failed(err, MsgUnavailable)
	}
	if credential.HasRole(role) {
		return ok()
	}
	if err := s.credentials.AddRole(ctx, credential.ID, role); err != nil {
		return failed(err, MsgUnavailable)
	}
	return ok()
}
