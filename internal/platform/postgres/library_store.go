package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/platform/logger"
	"github.com/phrazzld/storefront-api/internal/store"
)

// PostgresLibraryStore implements store.LibraryStore backed by PostgreSQL.
type PostgresLibraryStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresLibraryStore creates a new PostgreSQL implementation of the LibraryStore interface.
func NewPostgresLibraryStore(db store.DBTX, logger *slog.Logger) *PostgresLibraryStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresLibraryStore{
		db:     db,
		logger: logger.With(slog.String("component", "library_store")),
	}
}

// Ensure PostgresLibraryStore implements store.LibraryStore interface
var _ store.LibraryStore = (*PostgresLibraryStore)(nil)

// ListByUser implements store.LibraryStore.ListByUser.
func (s *PostgresLibraryStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*store.LibraryItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT l.id, l.user_id, l.game_id, l.purchase_price, l.promotion_id, l.purchased_at, g.name
		FROM library_entries l
		JOIN games g ON g.id = l.game_id
		WHERE l.user_id = $1
		ORDER BY l.purchased_at DESC, l.id
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		log.Error("failed to list library",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var items []*store.LibraryItem
	for rows.Next() {
		var (
			item        store.LibraryItem
			promotionID uuid.NullUUID
		)
		if err := rows.Scan(
			&item.Entry.ID,
			&item.Entry.UserID,
			&item.Entry.GameID,
			&item.Entry.PurchasePrice,
			&promotionID,
			&item.Entry.PurchasedAt,
			&item.GameName,
		); err != nil {
			return nil, MapError(err)
		}
		if promotionID.Valid {
			id := promotionID.UUID
			item.Entry.PromotionID = &id
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	log.Debug("listed library",
		slog.String("user_id", userID.String()),
		slog.Int("count", len(items)))
	return items, nil
}

func insertLibraryEntry(ctx context.Context, db store.DBTX, e *domain.LibraryEntry) (sql.Result, error) {
	query := `
		INSERT INTO library_entries (id, user_id, game_id, purchase_price, promotion_id, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	res, err := db.ExecContext(ctx, query,
		e.ID, e.UserID, e.GameID, e.PurchasePrice, e.PromotionID, e.PurchasedAt)
	if err != nil {
		return nil, fmt.Errorf("insert library entry: %w", MapError(err))
	}
	return res, nil
}

func deleteLibraryEntry(ctx context.Context, db store.DBTX, e *domain.LibraryEntry) (sql.Result, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM library_entries WHERE user_id = $1 AND game_id = $2`, e.UserID, e.GameID)
	if err != nil {
		return nil, fmt.Errorf("delete library entry: %w", MapError(err))
	}
	return res, nil
}
