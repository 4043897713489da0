package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/platform/logger"
	"github.com/phrazzld/storefront-api/internal/store"
)

type changeKind int

const (
	changeAdd changeKind = iota
	changeUpdate
	changeRemove
)

func (k changeKind) String() string {
	switch k {
	case changeAdd:
		return "add"
	case changeUpdate:
		return "update"
	default:
		return "remove"
	}
}

type change struct {
	kind   changeKind
	entity any
}

// errNothingWritten aborts the transaction when a staged change touched no row.
var errNothingWritten = errors.New("no rows affected")

// UnitOfWork implements store.UnitOfWork on top of a single database transaction
// opened at Commit time.
type UnitOfWork struct {
	db     store.TxBeginner
	logger *slog.Logger

	mu      sync.Mutex
	changes []change
	closed  bool
}

// Ensure UnitOfWork implements store.UnitOfWork interface
var _ store.UnitOfWork = (*UnitOfWork)(nil)

// StageAdd implements store.UnitOfWork.StageAdd.
func (u *UnitOfWork) StageAdd(entity any) error {
	return u.stage(changeAdd, entity)
}

// StageUpdate implements store.UnitOfWork.StageUpdate.
func (u *UnitOfWork) StageUpdate(entity any) error {
	return u.stage(changeUpdate, entity)
}

// StageRemove implements store.UnitOfWork.StageRemove.
func (u *UnitOfWork) StageRemove(entity any) error {
	return u.stage(changeRemove, entity)
}

func (u *UnitOfWork) stage(kind changeKind, entity any) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return store.ErrUnitOfWorkClosed
	}

	if isNilPointer(entity) {
		return fmt.Errorf("%w: nil %T", store.ErrInvalidEntity, entity)
	}

	var validate func() error
	switch e := entity.(type) {
	case *domain.Game:
		validate = e.Validate
	case *domain.Promotion:
		validate = e.Validate
	case *domain.UserProfile:
		validate = e.Validate
	case *domain.LibraryEntry:
		validate = e.Validate
		if kind == changeUpdate {
			return fmt.Errorf("%w: library entries cannot be updated", store.ErrUnsupportedEntity)
		}
	default:
		return fmt.Errorf("%w: %T", store.ErrUnsupportedEntity, entity)
	}
	if kind != changeRemove {
		if err := validate(); err != nil {
			return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
		}
	}

	u.changes = append(u.changes, change{kind: kind, entity: entity})
	return nil
}

// Commit implements store.UnitOfWork.Commit.
func (u *UnitOfWork) Commit(ctx context.Context) (bool, error) {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return false, store.ErrUnitOfWorkClosed
	}
	u.closed = true
	changes := u.changes
	u.changes = nil
	u.mu.Unlock()

	log := logger.FromContextOrDefault(ctx, u.logger)

	if len(changes) == 0 {
		log.Debug("commit called with no staged changes")
		return false, nil
	}

	var affected int64
	err := store.RunInTransaction(ctx, u.db, func(ctx context.Context, tx *sql.Tx) error {
		for _, c := range changes {
			res, err := apply(ctx, tx, c)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if n == 0 {
				log.Warn("staged change affected no rows",
					slog.String("change", c.kind.String()),
					slog.String("entity", fmt.Sprintf("%T", c.entity)))
				return errNothingWritten
			}
			affected += n
		}
		return nil
	})

	if errors.Is(err, errNothingWritten) {
		return false, nil
	}
	if err != nil {
		log.Debug("unit of work failed",
			slog.String("error", err.Error()),
			slog.Int("changes", len(changes)))
		return false, err
	}

	log.Debug("unit of work committed",
		slog.Int("changes", len(changes)),
		slog.Int64("rows_affected", affected))
	return true, nil
}

// Discard implements store.UnitOfWork.Discard.
func (u *UnitOfWork) Discard() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
	u.changes = nil
}

func apply(ctx context.Context, db store.DBTX, c change) (sql.Result, error) {
	switch e := c.entity.(type) {
	case *domain.Game:
		switch c.kind {
		case changeAdd:
			return insertGame(ctx, db, e)
		case changeUpdate:
			return updateGame(ctx, db, e)
		default:
			return deleteGame(ctx, db, e)
		}
	case *domain.Promotion:
		switch c.kind {
		case changeAdd:
			return insertPromotion(ctx, db, e)
		case changeUpdate:
			return updatePromotion(ctx, db, e)
		default:
			return deletePromotion(ctx, db, e)
		}
	case *domain.UserProfile:
		switch c.kind {
		case changeAdd:
			return insertProfile(ctx, db, e)
		case changeUpdate:
			return updateProfile(ctx, db, e)
		default:
			return deleteProfile(ctx, db, e)
		}
	case *domain.LibraryEntry:
		if c.kind == changeAdd {
			return insertLibraryEntry(ctx, db, e)
		}
		return deleteLibraryEntry(ctx, db, e)
	}
	return nil, fmt.Errorf("%w: %T (%s)", store.ErrUnsupportedEntity, c.entity, c.kind)
}

func isNilPointer(entity any) bool {
	switch e := entity.(type) {
	case *domain.Game:
		return e == nil
	case *domain.Promotion:
		return e == nil
	case *domain.UserProfile:
		return e == nil
	case *domain.LibraryEntry:
		return e == nil
	}
	return false
}

// UnitOfWorkFactory implements store.UnitOfWorkFactory.
type UnitOfWorkFactory struct {
	db     store.TxBeginner
	logger *slog.Logger
}

// NewUnitOfWorkFactory creates a factory whose units run against db.
func NewUnitOfWorkFactory(db store.TxBeginner, logger *slog.Logger) *UnitOfWorkFactory {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UnitOfWorkFactory{
		db:     db,
		logger: logger.With(slog.String("component", "unit_of_work")),
	}
}

// Ensure UnitOfWorkFactory implements store.UnitOfWorkFactory interface
var _ store.UnitOfWorkFactory = (*UnitOfWorkFactory)(nil)

// Begin implements store.UnitOfWorkFactory.Begin.
func (f *UnitOfWorkFactory) Begin() store.UnitOfWork {
	return &UnitOfWork{db: f.db, logger: f.logger}
}
