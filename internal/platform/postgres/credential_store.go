package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/platform/logger"
	"github.com/phrazzld/storefront-api/internal/store"
)

// TxDB is a connection that can run statements and open transactions.
// *sql.DB satisfies it.
type TxDB interface {
	store.DBTX
	store.TxBeginner
}

// PostgresCredentialStore implements store.CredentialStore on the identity
// schema. It never touches the domain tables.
type PostgresCredentialStore struct {
	db     TxDB
	logger *slog.Logger
}

// NewPostgresCredentialStore creates a new PostgreSQL implementation of the CredentialStore interface.
func NewPostgresCredentialStore(db TxDB, logger *slog.Logger) *PostgresCredentialStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCredentialStore{
		db:     db,
		logger: logger.With(slog.String("component", "credential_store")),
	}
}

// Ensure PostgresCredentialStore implements store.CredentialStore interface
var _ store.CredentialStore = (*PostgresCredentialStore)(nil)

// Create implements store.CredentialStore.Create.
func (s *PostgresCredentialStore) Create(ctx context.Context, c *domain.Credential) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := c.Validate(); err != nil {
		return err
	}

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO identity.credentials
				(id, name, email, password_hash, failed_attempts, locked_until, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.Name, domain.NormalizeEmail(c.Email), c.PasswordHash,
			c.FailedAttempts, c.LockedUntil, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return MapError(err)
		}
		for _, role := range c.Roles {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO identity.credential_roles (credential_id, role) VALUES ($1, $2)`,
				c.ID, role); err != nil {
				return MapError(err)
			}
		}
		return nil
	})
	if err != nil {
		if store.IsDuplicateError(err) {
			log.Debug("credential email already registered", slog.String("email", c.Email))
		} else {
			log.Error("failed to create credential",
				slog.String("error", err.Error()),
				slog.String("credential_id", c.ID.String()))
		}
		return err
	}

	log.Debug("credential created", slog.String("credential_id", c.ID.String()))
	return nil
}

// GetByEmail implements store.CredentialStore.GetByEmail.
func (s *PostgresCredentialStore) GetByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		c           domain.Credential
		lockedUntil sql.NullTime
		updatedAt   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, failed_attempts, locked_until, created_at, updated_at
		FROM identity.credentials
		WHERE email = $1`, domain.NormalizeEmail(email)).Scan(
		&c.ID, &c.Name, &c.Email, &c.PasswordHash, &c.FailedAttempts,
		&lockedUntil, &c.CreatedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCredentialNotFound
		}
		log.Error("failed to get credential", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	c.LockedUntil = nullTimePtr(lockedUntil)
	c.UpdatedAt = nullTimePtr(updatedAt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT role FROM identity.credential_roles WHERE credential_id = $1 ORDER BY role`, c.ID)
	if err != nil {
		log.Error("failed to load credential roles", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, MapError(err)
		}
		c.Roles = append(c.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return &c, nil
}

// DeleteByEmail implements store.CredentialStore.DeleteByEmail.
func (s *PostgresCredentialStore) DeleteByEmail(ctx context.Context, email string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM identity.credentials WHERE email = $1`, domain.NormalizeEmail(email))
	if err != nil {
		log.Error("failed to delete credential", slog.String("error", err.Error()))
		return MapError(err)
	}
	return CheckRowsAffected(res, store.ErrCredentialNotFound)
}

// UpdatePassword implements store.CredentialStore.UpdatePassword.
func (s *PostgresCredentialStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE identity.credentials SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, time.Now().UTC())
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update password",
			slog.String("error", err.Error()),
			slog.String("credential_id", id.String()))
		return MapError(err)
	}
	return CheckRowsAffected(res, store.ErrCredentialNotFound)
}

// RecordFailedLogin implements store.CredentialStore.RecordFailedLogin.
func (s *PostgresCredentialStore) RecordFailedLogin(
	ctx context.Context,
	id uuid.UUID,
	lockedUntil *time.Time,
) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx, `
		UPDATE identity.credentials
		SET failed_attempts = failed_attempts + 1,
		    locked_until = COALESCE($2, locked_until)
		WHERE id = $1
		RETURNING failed_attempts`, id, lockedUntil).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrCredentialNotFound
		}
		return 0, MapError(err)
	}
	return attempts, nil
}

// ResetFailedLogins implements store.CredentialStore.ResetFailedLogins.
func (s *PostgresCredentialStore) ResetFailedLogins(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE identity.credentials SET failed_attempts = 0, locked_until = NULL WHERE id = $1`, id)
	return MapError(err)
}

// AddRole implements store.CredentialStore.AddRole.
func (s *PostgresCredentialStore) AddRole(ctx context.Context, id uuid.UUID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identity.credential_roles (credential_id, role)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, id, role)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return store.ErrCredentialNotFound
		}
		return MapError(err)
	}
	return nil
}
