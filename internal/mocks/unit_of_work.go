package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/storefront-api/internal/store"
)

// MockUnitOfWork implements store.UnitOfWork. Commit hands the staged changes
// to its MemoryDB.
type MockUnitOfWork struct {
	db *MemoryDB

	mu        sync.Mutex
	changes   []StagedChange
	closed    bool
	committed bool
	discarded bool
}

// Ensure MockUnitOfWork implements store.UnitOfWork interface
var _ store.UnitOfWork = (*MockUnitOfWork)(nil)

// StageAdd implements store.UnitOfWork.
func (u *MockUnitOfWork) StageAdd(entity any) error { return u.stage("add", entity) }

// StageUpdate implements store.UnitOfWork.
func (u *MockUnitOfWork) StageUpdate(entity any) error { return u.stage("update", entity) }

// StageRemove implements store.UnitOfWork.
func (u *MockUnitOfWork) StageRemove(entity any) error { return u.stage("remove", entity) }

func (u *MockUnitOfWork) stage(kind string, entity any) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return store.ErrUnitOfWorkClosed
	}
	u.changes = append(u.changes, StagedChange{Kind: kind, Entity: entity})
	return nil
}

// Commit implements store.UnitOfWork.
func (u *MockUnitOfWork) Commit(ctx context.Context) (bool, error) {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return false, store.ErrUnitOfWorkClosed
	}
	u.closed = true
	u.committed = true
	changes := u.changes
	u.mu.Unlock()

	return u.db.commit(ctx, changes)
}

// Discard implements store.UnitOfWork.
func (u *MockUnitOfWork) Discard() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.committed {
		u.discarded = true
	}
	u.closed = true
}

// Changes returns the staged changes.
func (u *MockUnitOfWork) Changes() []StagedChange {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]StagedChange(nil), u.changes...)
}

// Committed reports whether Commit was called.
func (u *MockUnitOfWork) Committed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.committed
}

// Discarded reports whether the unit was discarded without committing.
func (u *MockUnitOfWork) Discarded() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.discarded
}
