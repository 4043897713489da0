package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/platform/logger"
	"github.com/phrazzld/storefront-api/internal/store"
)

const promotionColumns = `id, game_id, price, start_date, end_date, active, created_at, updated_at`

// PostgresPromotionStore implements store.PromotionStore backed by PostgreSQL.
type PostgresPromotionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresPromotionStore creates a new PostgreSQL implementation of the PromotionStore interface.
func NewPostgresPromotionStore(db store.DBTX, logger *slog.Logger) *PostgresPromotionStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresPromotionStore{
		db:     db,
		logger: logger.With(slog.String("component", "promotion_store")),
	}
}

// Ensure PostgresPromotionStore implements store.PromotionStore interface
var _ store.PromotionStore = (*PostgresPromotionStore)(nil)

// GetByID implements store.PromotionStore.GetByID.
func (s *PostgresPromotionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1`
	p, err := scanPromotion(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("promotion not found", slog.String("promotion_id", id.String()))
			return nil, store.ErrPromotionNotFound
		}
		log.Error("failed to get promotion by ID",
			slog.String("error", err.Error()),
			slog.String("promotion_id", id.String()))
		return nil, MapError(err)
	}
	return p, nil
}

// ListByGame implements store.PromotionStore.ListByGame.
func (s *PostgresPromotionStore) ListByGame(ctx context.Context, gameID uuid.UUID) ([]*domain.Promotion, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE game_id = $1 ORDER BY start_date, id`
	rows, err := s.db.QueryContext(ctx, query, gameID)
	if err != nil {
		log.Error("failed to list promotions by game",
			slog.String("error", err.Error()),
			slog.String("game_id", gameID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var promotions []*domain.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, MapError(err)
		}
		promotions = append(promotions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return promotions, nil
}

// ListCurrentByGames implements store.PromotionStore.ListCurrentByGames.
func (s *PostgresPromotionStore) ListCurrentByGames(
	ctx context.Context,
	gameIDs []uuid.UUID,
	at time.Time,
) (map[uuid.UUID][]*domain.Promotion, error) {
	result := make(map[uuid.UUID][]*domain.Promotion)
	if len(gameIDs) == 0 {
		return result, nil
	}

	log := logger.FromContextOrDefault(ctx, s.logger)

	args := make([]any, 0, len(gameIDs)+1)
	args = append(args, at)
	placeholders := make([]string, len(gameIDs))
	for i, id := range gameIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := `SELECT ` + promotionColumns + ` FROM promotions
		WHERE start_date <= $1 AND end_date >= $1
		  AND game_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY game_id, end_date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list current promotions",
			slog.String("error", err.Error()),
			slog.Int("game_count", len(gameIDs)))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, MapError(err)
		}
		result[p.GameID] = append(result[p.GameID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return result, nil
}

// Query implements store.PromotionStore.Query.
func (s *PostgresPromotionStore) Query(
	ctx context.Context,
	page store.Page,
	filter store.PromotionFilter,
) ([]*store.PromotionView, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	where := `
		WHERE ($1::uuid IS NULL OR p.game_id = $1)
		  AND ($2::numeric IS NULL OR p.price >= $2)
		  AND ($3::numeric IS NULL OR p.price <= $3)`

	var total int
	countQuery := `SELECT COUNT(*) FROM promotions p` + where
	err := s.db.QueryRowContext(ctx, countQuery, filter.GameID, filter.MinPrice, filter.MaxPrice).Scan(&total)
	if err != nil {
		log.Error("failed to count promotions", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}

	query := `
		SELECT p.id, p.game_id, p.price, p.start_date, p.end_date, p.active,
		       p.created_at, p.updated_at, g.name
		FROM promotions p
		JOIN games g ON g.id = p.game_id` + where + `
		ORDER BY p.start_date, p.id
		LIMIT $4 OFFSET $5`

	rows, err := s.db.QueryContext(ctx, query,
		filter.GameID, filter.MinPrice, filter.MaxPrice, page.Size, page.Offset())
	if err != nil {
		log.Error("failed to query promotions", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	views := make([]*store.PromotionView, 0, page.Size)
	for rows.Next() {
		var (
			p         domain.Promotion
			updatedAt sql.NullTime
			gameName  string
		)
		if err := rows.Scan(&p.ID, &p.GameID, &p.Price, &p.StartDate, &p.EndDate,
			&p.Active, &p.CreatedAt, &updatedAt, &gameName); err != nil {
			return nil, 0, MapError(err)
		}
		p.UpdatedAt = nullTimePtr(updatedAt)
		views = append(views, &store.PromotionView{Promotion: &p, GameName: gameName})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, MapError(err)
	}

	return views, total, nil
}

func scanPromotion(row rowScanner) (*domain.Promotion, error) {
	var (
		p         domain.Promotion
		updatedAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.GameID, &p.Price, &p.StartDate, &p.EndDate,
		&p.Active, &p.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}
	p.StartDate = p.StartDate.UTC()
	p.EndDate = p.EndDate.UTC()
	p.UpdatedAt = nullTimePtr(updatedAt)
	return &p, nil
}

func insertPromotion(ctx context.Context, db store.DBTX, p *domain.Promotion) (sql.Result, error) {
	query := `
		INSERT INTO promotions (` + promotionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	res, err := db.ExecContext(ctx, query,
		p.ID, p.GameID, p.Price, p.StartDate, p.EndDate, p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert promotion: %w", MapError(err))
	}
	return res, nil
}

func updatePromotion(ctx context.Context, db store.DBTX, p *domain.Promotion) (sql.Result, error) {
	query := `
		UPDATE promotions
		SET price = $2, start_date = $3, end_date = $4, active = $5, updated_at = $6
		WHERE id = $1
	`
	res, err := db.ExecContext(ctx, query,
		p.ID, p.Price, p.StartDate, p.EndDate, p.Active, p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update promotion: %w", MapError(err))
	}
	return res, nil
}

func deletePromotion(ctx context.Context, db store.DBTX, p *domain.Promotion) (sql.Result, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM promotions WHERE id = $1`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("delete promotion: %w", MapError(err))
	}
	return res, nil
}
