package store

import "context"

// UnitOfWork collects mutations of domain-store entities and applies them
// atomically on Commit. Supported entities are *domain.Game,
// *domain.Promotion, *domain.UserProfile and *domain.LibraryEntry.
//
// A UnitOfWork belongs to a single logical operation. After Commit or
// Discard every further call returns ErrUnitOfWorkClosed.
type UnitOfWork interface {
	// StageAdd schedules an insert.
	StageAdd(entity any) error

	// StageUpdate schedules an update of an existing row.
	StageUpdate(entity any) error

	// StageRemove schedules a delete.
	StageRemove(entity any) error

	// Commit applies every staged mutation in one transaction, in staging
	// order. It reports false when any staged mutation touched no row, in
	// which case the whole transaction is rolled back. Any store error rolls back the whole unit
	// and is returned mapped to the store sentinels.
	Commit(ctx context.Context) (bool, error)

	// Discard drops all staged mutations without touching the store.
	Discard()
}

// UnitOfWorkFactory hands out fresh units of work.
type UnitOfWorkFactory interface {
	Begin() UnitOfWork
}
