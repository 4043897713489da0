package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/platform/logger"
	"github.com/phrazzld/storefront-api/internal/store"
)

const gameColumns = `id, name, description, developer, release_date, price, active, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresGameStore implements store.GameStore backed by PostgreSQL.
type PostgresGameStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresGameStore creates a new PostgreSQL implementation of the GameStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresGameStore(db store.DBTX, logger *slog.Logger) *PostgresGameStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresGameStore{
		db:     db,
		logger: logger.With(slog.String("component", "game_store")),
	}
}

// Ensure PostgresGameStore implements store.GameStore interface
var _ store.GameStore = (*PostgresGameStore)(nil)

// GetByID implements store.GameStore.GetByID.
func (s *PostgresGameStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`
	game, err := scanGame(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("game not found", slog.String("game_id", id.String()))
			return nil, store.ErrGameNotFound
		}
		log.Error("failed to get game by ID",
			slog.String("error", err.Error()),
			slog.String("game_id", id.String()))
		return nil, MapError(err)
	}

	return game, nil
}

// ExistsByNameAndRelease implements store.GameStore.ExistsByNameAndRelease.
func (s *PostgresGameStore) ExistsByNameAndRelease(
	ctx context.Context,
	name string,
	developer *string,
	releaseDate *time.Time,
) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT EXISTS (
			SELECT 1 FROM games
			WHERE lower(name) = lower($1)
			  AND developer IS NOT DISTINCT FROM $2
			  AND release_date IS NOT DISTINCT FROM $3
		)
	`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, name, developer, releaseDate).Scan(&exists); err != nil {
		log.Error("failed to check game existence",
			slog.String("error", err.Error()),
			slog.String("name", name))
		return false, MapError(err)
	}
	return exists, nil
}

// Query implements store.GameStore.Query.
func (s *PostgresGameStore) Query(
	ctx context.Context,
	page store.Page,
	filter store.GameFilter,
) ([]*domain.Game, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	where := `WHERE ($1 = '' OR name ILIKE '%' || $1 || '%') AND (NOT $2 OR active)`

	var total int
	countQuery := `SELECT COUNT(*) FROM games ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, filter.Name, filter.OnlyActive).Scan(&total); err != nil {
		log.Error("failed to count games", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}

	query := `SELECT ` + gameColumns + ` FROM games ` + where + ` ORDER BY name, id LIMIT $3 OFFSET $4`
	rows, err := s.db.QueryContext(ctx, query, filter.Name, filter.OnlyActive, page.Size, page.Offset())
	if err != nil {
		log.Error("failed to query games", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	games := make([]*domain.Game, 0, page.Size)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, 0, MapError(err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, MapError(err)
	}

	log.Debug("queried games",
		slog.Int("page", page.Number),
		slog.Int("returned", len(games)),
		slog.Int("total", total))
	return games, total, nil
}

func scanGame(row rowScanner) (*domain.Game, error) {
	var (
		g           domain.Game
		description sql.NullString
		developer   sql.NullString
		releaseDate sql.NullTime
		updatedAt   sql.NullTime
	)
	err := row.Scan(
		&g.ID,
		&g.Name,
		&description,
		&developer,
		&releaseDate,
		&g.Price,
		&g.Active,
		&g.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.Description = nullStringPtr(description)
	g.Developer = nullStringPtr(developer)
	g.ReleaseDate = nullTimePtr(releaseDate)
	g.UpdatedAt = nullTimePtr(updatedAt)
	return &g, nil
}

func insertGame(ctx context.Context, db store.DBTX, g *domain.Game) (sql.Result, error) {
	query := `
		INSERT INTO games (` + gameColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	res, err := db.ExecContext(ctx, query,
		g.ID, g.Name, g.Description, g.Developer, g.ReleaseDate,
		g.Price, g.Active, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert game: %w", MapError(err))
	}
	return res, nil
}

func updateGame(ctx context.Context, db store.DBTX, g *domain.Game) (sql.Result, error) {
	query := `
		UPDATE games
		SET name = $2, description = $3, developer = $4, release_date = $5,
		    price = $6, active = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := db.ExecContext(ctx, query,
		g.ID, g.Name, g.Description, g.Developer, g.ReleaseDate,
		g.Price, g.Active, g.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update game: %w", MapError(err))
	}
	return res, nil
}

func deleteGame(ctx context.Context, db store.DBTX, g *domain.Game) (sql.Result, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM games WHERE id = $1`, g.ID)
	if err != nil {
		return nil, fmt.Errorf("delete game: %w", MapError(err))
	}
	return res, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
