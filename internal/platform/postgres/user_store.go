package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/platform/logger"
	"github.com/phrazzld/storefront-api/internal/store"
)

const profileColumns = `id, name, email, created_at, updated_at`

// PostgresUserStore implements store.UserProfileStore using a PostgreSQL
// database as the storage backend.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a new PostgreSQL implementation of the UserProfileStore interface.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

// Ensure PostgresUserStore implements store.UserProfileStore interface
var _ store.UserProfileStore = (*PostgresUserStore)(nil)

// GetByID implements store.UserProfileStore.GetByID.
func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.UserProfile, error) {
	return s.getOne(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE id = $1`, id,
		slog.String("user_id", id.String()))
}

// GetByEmail implements store.UserProfileStore.GetByEmail.
func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*domain.UserProfile, error) {
	return s.getOne(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE email = $1`,
		domain.NormalizeEmail(email), slog.String("email", email))
}

func (s *PostgresUserStore) getOne(
	ctx context.Context,
	query string,
	arg any,
	attr slog.Attr,
) (*domain.UserProfile, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	u, err := scanProfile(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("user profile not found", attr)
			return nil, store.ErrUserNotFound
		}
		log.Error("failed to get user profile", slog.String("error", err.Error()), attr)
		return nil, MapError(err)
	}
	return u, nil
}

// ExistsByEmail implements store.UserProfileStore.ExistsByEmail.
func (s *PostgresUserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_profiles WHERE email = $1)`,
		domain.NormalizeEmail(email)).Scan(&exists)
	if err != nil {
		log.Error("failed to check profile existence", slog.String("error", err.Error()))
		return false, MapError(err)
	}
	return exists, nil
}

// Query implements store.UserProfileStore.Query.
func (s *PostgresUserStore) Query(
	ctx context.Context,
	page store.Page,
	filter store.UserFilter,
) ([]*domain.UserProfile, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	where := `WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')`

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_profiles `+where, filter.Term).
		Scan(&total); err != nil {
		log.Error("failed to count user profiles", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}

	query := `SELECT ` + profileColumns + ` FROM user_profiles ` + where + ` ORDER BY name, id LIMIT $2 OFFSET $3`
	rows, err := s.db.QueryContext(ctx, query, filter.Term, page.Size, page.Offset())
	if err != nil {
		log.Error("failed to query user profiles", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	users := make([]*domain.UserProfile, 0, page.Size)
	for rows.Next() {
		u, err := scanProfile(rows)
		if err != nil {
			return nil, 0, MapError(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, MapError(err)
	}
	return users, total, nil
}

func scanProfile(row rowScanner) (*domain.UserProfile, error) {
	var (
		u         domain.UserProfile
		updatedAt sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}
	u.UpdatedAt = nullTimePtr(updatedAt)
	return &u, nil
}

func insertProfile(ctx context.Context, db store.DBTX, u *domain.UserProfile) (sql.Result, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO user_profiles (`+profileColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Name, u.Email, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert user profile: %w", MapError(err))
	}
	return res, nil
}

func updateProfile(ctx context.Context, db store.DBTX, u *domain.UserProfile) (sql.Result, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE user_profiles SET name = $2, email = $3, updated_at = $4 WHERE id = $1`,
		u.ID, u.Name, u.Email, u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update user profile: %w", MapError(err))
	}
	return res, nil
}

func deleteProfile(ctx context.Context, db store.DBTX, u *domain.UserProfile) (sql.Result, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM user_profiles WHERE id = $1`, u.ID)
	if err != nil {
		return nil, fmt.Errorf("delete user profile: %w", MapError(err))
	}
	return res, nil
}
