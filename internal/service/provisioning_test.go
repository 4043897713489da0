package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/events"
	"github.com/phrazzld/storefront-api/internal/identity"
	"github.com/phrazzld/storefront-api/internal/mocks"
	"github.com/phrazzld/storefront-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type coordinatorFixture struct {
	db          *mocks.MemoryDB
	gateway     *mocks.MockGateway
	recorder    *eventRecorder
	coordinator *Coordinator
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()
	db := mocks.NewMemoryDB()
	gateway := &mocks.MockGateway{}
	emitter, rec := newEventRecorder()
	c, err := NewCoordinator(db.Users(), db, gateway, emitter, testLogger())
	require.NoError(t, err)
	return &coordinatorFixture{db: db, gateway: gateway, recorder: rec, coordinator: c}
}

var validUser = CreateUserInput{Name: "Ada Lovelace", Email: "Ada@Example.com", Password: "Str0ng!pass"}

func TestNewCoordinator_NilDependencies(t *testing.T) {
	db := mocks.NewMemoryDB()
	gw := &mocks.MockGateway{}

	_, err := NewCoordinator(nil, db, gw, nil, nil)
	assert.Error(t, err)
	_, err = NewCoordinator(db.Users(), nil, gw, nil, nil)
	assert.Error(t, err)
	_, err = NewCoordinator(db.Users(), db, nil, nil, nil)
	assert.Error(t, err)

	c, err := NewCoordinator(db.Users(), db, gw, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestCoordinator_CreateUser_Success(t *testing.T) {
	f := newCoordinatorFixture(t)

	id, err := f.coordinator.CreateUser(context.Background(), validUser)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	profile, err := f.db.Users().GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", profile.Email)

	created, removed := f.gateway.Calls()
	assert.Equal(t, []string{"ada@example.com"}, created)
	assert.Empty(t, removed)

	assert.Equal(t, []string{events.TypeUserProvisioned}, f.recorder.types())
}

func TestCoordinator_CreateUser_DuplicateProfile(t *testing.T) {
	f := newCoordinatorFixture(t)
	existing, err := domain.NewUserProfile("Someone", "ada@example.com")
	require.NoError(t, err)
	f.db.SeedProfile(existing)

	_, err = f.coordinator.CreateUser(context.Background(), validUser)
	assert.ErrorIs(t, err, ErrDuplicateUser)
	assert.Equal(t, KindConflict, KindOf(err))

	created, _ := f.gateway.Calls()
	assert.Empty(t, created, "credential store must not be touched")
	assert.Empty(t, f.db.Units())
}

func TestCoordinator_CreateUser_InvalidProfile(t *testing.T) {
	f := newCoordinatorFixture(t)

	_, err := f.coordinator.CreateUser(context.Background(), CreateUserInput{Name: "", Email: "x@example.com"})
	assert.ErrorIs(t, err, domain.ErrEmptyName)

	created, _ := f.gateway.Calls()
	assert.Empty(t, created)
}

func TestCoordinator_CreateUser_CredentialRefused(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.gateway.CreateCredentialFn = func(context.Context, string, string, string) identity.Result {
		return identity.Result{Errors: []string{"password must contain a digit"}}
	}

	_, err := f.coordinator.CreateUser(context.Background(), validUser)

	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, []string{"password must contain a digit"}, credErr.Messages)
	assert.ErrorIs(t, err, ErrCredentialProvisioningFailed)
	assert.Equal(t, KindValidation, KindOf(err))

	assert.Zero(t, f.db.ProfileCount(), "failed credential creation leaves no profile")
	assert.Empty(t, f.db.Units())
}

func TestCoordinator_CreateUser_CredentialStoreDown(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.gateway.CreateCredentialFn = func(context.Context, string, string, string) identity.Result {
		return identity.Result{Errors: []string{identity.MsgUnavailable}, Err: errors.New("dial tcp: refused")}
	}

	_, err := f.coordinator.CreateUser(context.Background(), validUser)
	assert.ErrorIs(t, err, ErrCredentialProvisioningFailed)
	assert.Equal(t, KindExternal, KindOf(err))
	assert.Zero(t, f.db.ProfileCount())
}

func TestCoordinator_CreateUser_CredentialDuplicate(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.gateway.CreateCredentialFn = func(context.Context, string, string, string) identity.Result {
		return identity.Result{Errors: []string{identity.MsgDuplicateEmail}, Duplicate: true}
	}

	_, err := f.coordinator.CreateUser(context.Background(), validUser)
	assert.ErrorIs(t, err, ErrDuplicateUser)
	assert.Zero(t, f.db.ProfileCount())
}

func TestCoordinator_CreateUser_CommitFailsAndCompensates(t *testing.T) {
	tests := []struct {
		name      string
		commit    func(context.Context, []mocks.StagedChange) (bool, error)
		wantErr   error
		wantCause error
	}{
		{
			name: "commit error",
			commit: func(context.Context, []mocks.StagedChange) (bool, error) {
				return false, store.ErrTransactionFailed
			},
			wantErr:   ErrProvisioningRolledBack,
			wantCause: store.ErrTransactionFailed,
		},
		{
			name: "nothing written",
			commit: func(context.Context, []mocks.StagedChange) (bool, error) {
				return false, nil
			},
			wantErr:   ErrProvisioningRolledBack,
			wantCause: store.ErrNoRowsAffected,
		},
		{
			name: "lost the unique email race",
			commit: func(context.Context, []mocks.StagedChange) (bool, error) {
				return false, store.ErrEmailExists
			},
			wantErr:   ErrDuplicateUser,
			wantCause: store.ErrEmailExists,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newCoordinatorFixture(t)
			f.db.CommitFn = tc.commit

			_, err := f.coordinator.CreateUser(context.Background(), validUser)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.ErrorIs(t, err, tc.wantCause)
			assert.NotErrorIs(t, err, ErrPartialProvisioning)

			_, removed := f.gateway.Calls()
			assert.Equal(t, []string{"ada@example.com"}, removed, "credential must be compensated")
			assert.Empty(t, f.recorder.types())
		})
	}
}

func TestCoordinator_CreateUser_CompensationFails(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.db.CommitFn = func(context.Context, []mocks.StagedChange) (bool, error) {
		return false, store.ErrTransactionFailed
	}
	f.gateway.RemoveCredentialFn = func(context.Context, string) identity.Result {
		return identity.Result{Errors: []string{identity.MsgUnavailable}, Err: errors.New("timeout")}
	}

	_, err := f.coordinator.CreateUser(context.Background(), validUser)

	var partial *PartialProvisioningError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, OpCreateUser, partial.Operation)
	assert.Equal(t, "ada@example.com", partial.Email)
	assert.ErrorIs(t, partial.Cause, store.ErrTransactionFailed)
	assert.ErrorContains(t, partial.CompensationErr, "timeout")
	assert.ErrorIs(t, err, ErrPartialProvisioning)
	assert.Equal(t, KindInconsistency, KindOf(err))

	last := f.recorder.last()
	require.NotNil(t, last)
	assert.Equal(t, events.TypeProvisioningInconsistency, last.Type)
	var payload events.InconsistencyPayload
	require.NoError(t, last.UnmarshalPayload(&payload))
	assert.Equal(t, OpCreateUser, payload.Operation)
	assert.Equal(t, "ada@example.com", payload.Email)
	assert.Equal(t, partial.UserID, payload.UserID)
}

func TestCoordinator_CreateUser_CompensatesWhenRequestCancelled(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.db.CommitFn = func(context.Context, []mocks.StagedChange) (bool, error) {
		cancel()
		return false, context.Canceled
	}
	var compensationCtxErr error
	f.gateway.RemoveCredentialFn = func(ctx context.Context, _ string) identity.Result {
		compensationCtxErr = ctx.Err()
		return identity.Result{Success: true}
	}

	_, err := f.coordinator.CreateUser(ctx, validUser)
	assert.ErrorIs(t, err, ErrProvisioningRolledBack)
	assert.NoError(t, compensationCtxErr, "compensation runs on a context detached from cancellation")
}

func TestCoordinator_CreateUser_ConcurrentDuplicates(t *testing.T) {
	f := newCoordinatorFixture(t)

	// The credential store enforces unique emails like the real one.
	var registered sync.Map
	f.gateway.CreateCredentialFn = func(_ context.Context, _, email, _ string) identity.Result {
		if _, loaded := registered.LoadOrStore(email, true); loaded {
			return identity.Result{Errors: []string{identity.MsgDuplicateEmail}, Duplicate: true}
		}
		return identity.Result{Success: true}
	}
	f.gateway.RemoveCredentialFn = func(_ context.Context, email string) identity.Result {
		registered.Delete(email)
		return identity.Result{Success: true}
	}

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		errs      []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.coordinator.CreateUser(context.Background(), CreateUserInput{
				Name:     fmt.Sprintf("Racer %d", i),
				Email:    "race@example.com",
				Password: "Str0ng!pass",
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			errs = append(errs, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, f.db.ProfileCount())
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrDuplicateUser)
	}
}

func TestCoordinator_RemoveUser(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		profile, err := domain.NewUserProfile("Bob", "bob@example.com")
		require.NoError(t, err)
		f.db.SeedProfile(profile)

		removed, err := f.coordinator.RemoveUser(ctx, profile.ID)
		require.NoError(t, err)
		assert.True(t, removed)
		assert.Zero(t, f.db.ProfileCount())

		_, removedEmails := f.gateway.Calls()
		assert.Equal(t, []string{"bob@example.com"}, removedEmails)
		assert.Equal(t, []string{events.TypeUserRemoved}, f.recorder.types())
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newCoordinatorFixture(t)

		removed, err := f.coordinator.RemoveUser(ctx, uuid.New())
		assert.False(t, removed)
		assert.ErrorIs(t, err, store.ErrUserNotFound)
		assert.Equal(t, KindNotFound, KindOf(err))

		created, removedEmails := f.gateway.Calls()
		assert.Empty(t, created)
		assert.Empty(t, removedEmails)
		assert.Empty(t, f.db.Units(), "no store mutations")
	})

	t.Run("credential removal fails", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		profile, err := domain.NewUserProfile("Bob", "bob@example.com")
		require.NoError(t, err)
		f.db.SeedProfile(profile)
		f.gateway.RemoveCredentialFn = func(context.Context, string) identity.Result {
			return identity.Result{Errors: []string{identity.MsgUnknownEmail}, Err: store.ErrCredentialNotFound}
		}

		removed, err := f.coordinator.RemoveUser(ctx, profile.ID)
		assert.False(t, removed)
		assert.ErrorIs(t, err, ErrCredentialRemovalFailed)
		assert.Equal(t, 1, f.db.ProfileCount(), "profile untouched")
		assert.Empty(t, f.db.Units())
	})

	t.Run("domain commit fails after credential removal", func(t *testing.T) {
		f := newCoordinatorFixture(t)
		profile, err := domain.NewUserProfile("Bob", "bob@example.com")
		require.NoError(t, err)
		f.db.SeedProfile(profile)
		f.db.CommitFn = func(context.Context, []mocks.StagedChange) (bool, error) {
			return false, nil
		}

		removed, err := f.coordinator.RemoveUser(ctx, profile.ID)
		assert.False(t, removed)

		var partial *PartialProvisioningError
		require.ErrorAs(t, err, &partial)
		assert.Equal(t, OpRemoveUser, partial.Operation)
		assert.Equal(t, profile.ID, partial.UserID)
		assert.ErrorIs(t, partial.Cause, store.ErrNoRowsAffected)
		assert.Equal(t, KindInconsistency, KindOf(err))
		assert.Equal(t, []string{events.TypeProvisioningInconsistency}, f.recorder.types())
	})
}

func TestBoundary_CompensatesNewestFirst(t *testing.T) {
	b := newBoundary("op", "x@example.com")
	var order []string
	b.onFailure("first", func(context.Context) error { order = append(order, "first"); return nil })
	b.onFailure("second", func(context.Context) error { order = append(order, "second"); return errors.New("boom") })

	err := b.compensate(context.Background())
	assert.Equal(t, []string{"second", "first"}, order)
	assert.ErrorContains(t, err, "second: boom")

	assert.NoError(t, b.compensate(context.Background()), "compensations run once")
}
