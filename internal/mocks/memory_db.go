package mocks

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/store"
)

// StagedChange is one mutation recorded by a MockUnitOfWork.
type StagedChange struct {
	Kind   string // "add", "update" or "remove"
	Entity any
}

// MemoryDB is an in-memory domain store. It hands out store mocks that share
// its tables and acts as a store.UnitOfWorkFactory whose units apply staged
// changes atomically, enforcing the same uniqueness rules as the database.
type MemoryDB struct {
	// CommitFn replaces the default commit behaviour when set.
	CommitFn func(ctx context.Context, changes []StagedChange) (bool, error)

	mu         sync.Mutex
	games      map[uuid.UUID]domain.Game
	promotions map[uuid.UUID]domain.Promotion
	profiles   map[uuid.UUID]domain.UserProfile
	library    map[[2]uuid.UUID]domain.LibraryEntry
	commits    int
	units      []*MockUnitOfWork
}

// NewMemoryDB creates an empty in-memory domain store.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		games:      make(map[uuid.UUID]domain.Game),
		promotions: make(map[uuid.UUID]domain.Promotion),
		profiles:   make(map[uuid.UUID]domain.UserProfile),
		library:    make(map[[2]uuid.UUID]domain.LibraryEntry),
	}
}

// Ensure MemoryDB implements store.UnitOfWorkFactory interface
var _ store.UnitOfWorkFactory = (*MemoryDB)(nil)

// Begin implements store.UnitOfWorkFactory.
func (db *MemoryDB) Begin() store.UnitOfWork {
	u := &MockUnitOfWork{db: db}
	db.mu.Lock()
	db.units = append(db.units, u)
	db.mu.Unlock()
	return u
}

// Units returns every unit of work handed out so far.
func (db *MemoryDB) Units() []*MockUnitOfWork {
	db.mu.Lock()
	defer db.mu.Unlock()
	return slices.Clone(db.units)
}

// Commits returns the number of successful commits.
func (db *MemoryDB) Commits() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.commits
}

// SeedGame inserts games directly, bypassing units of work.
func (db *MemoryDB) SeedGame(games ...*domain.Game) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, g := range games {
		db.games[g.ID] = *g
	}
}

// SeedPromotion inserts promotions directly.
func (db *MemoryDB) SeedPromotion(promotions ...*domain.Promotion) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, p := range promotions {
		db.promotions[p.ID] = *p
	}
}

// SeedProfile inserts user profiles directly.
func (db *MemoryDB) SeedProfile(profiles ...*domain.UserProfile) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, u := range profiles {
		db.profiles[u.ID] = *u
	}
}

// SeedLibraryEntry inserts library entries directly.
func (db *MemoryDB) SeedLibraryEntry(entries ...*domain.LibraryEntry) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, e := range entries {
		db.library[[2]uuid.UUID{e.UserID, e.GameID}] = *e
	}
}

// ProfileCount returns the number of stored profiles.
func (db *MemoryDB) ProfileCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.profiles)
}

// Promotion returns a stored promotion by id.
func (db *MemoryDB) Promotion(id uuid.UUID) (domain.Promotion, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.promotions[id]
	return p, ok
}

// Game returns a stored game by id.
func (db *MemoryDB) Game(id uuid.UUID) (domain.Game, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	g, ok := db.games[id]
	return g, ok
}

// Owns reports whether a library entry exists for the pair.
func (db *MemoryDB) Owns(userID, gameID uuid.UUID) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, ok := db.library[[2]uuid.UUID{userID, gameID}]
	return ok
}

func (db *MemoryDB) commit(ctx context.Context, changes []StagedChange) (bool, error) {
	if db.CommitFn != nil {
		return db.CommitFn(ctx, changes)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	// Work on copies so a failing change leaves the tables untouched.
	games := cloneMap(db.games)
	promotions := cloneMap(db.promotions)
	profiles := cloneMap(db.profiles)
	library := cloneMap(db.library)

	if len(changes) == 0 {
		return false, nil
	}
	for _, c := range changes {
		n, err := applyChange(c, games, promotions, profiles, library)
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
	}

	db.games, db.promotions, db.profiles, db.library = games, promotions, profiles, library
	db.commits++
	return true, nil
}

func applyChange(
	c StagedChange,
	games map[uuid.UUID]domain.Game,
	promotions map[uuid.UUID]domain.Promotion,
	profiles map[uuid.UUID]domain.UserProfile,
	library map[[2]uuid.UUID]domain.LibraryEntry,
) (int, error) {
	switch e := c.Entity.(type) {
	case *domain.Game:
		if c.Kind == "remove" {
			for key := range library {
				if key[1] == e.ID {
					return 0, store.ErrGameReferenced
				}
			}
			for id, p := range promotions {
				if p.GameID == e.ID {
					delete(promotions, id)
				}
			}
		}
		return applyKeyed(c.Kind, games, e.ID, *e, nil)
	case *domain.Promotion:
		if c.Kind != "remove" {
			if _, ok := games[e.GameID]; !ok {
				return 0, fmt.Errorf("%w: unknown game", store.ErrInvalidEntity)
			}
		}
		return applyKeyed(c.Kind, promotions, e.ID, *e, nil)
	case *domain.UserProfile:
		unique := func() error {
			for id, other := range profiles {
				if id != e.ID && other.Email == e.Email {
					return store.ErrEmailExists
				}
			}
			return nil
		}
		n, err := applyKeyed(c.Kind, profiles, e.ID, *e, unique)
		if err == nil && c.Kind == "remove" && n > 0 {
			for key := range library {
				if key[0] == e.ID {
					delete(library, key)
				}
			}
		}
		return n, err
	case *domain.LibraryEntry:
		key := [2]uuid.UUID{e.UserID, e.GameID}
		if c.Kind == "remove" {
			if _, ok := library[key]; !ok {
				return 0, nil
			}
			delete(library, key)
			return 1, nil
		}
		if _, ok := library[key]; ok {
			return 0, store.ErrLibraryEntryExists
		}
		if _, ok := profiles[e.UserID]; !ok {
			return 0, fmt.Errorf("%w: unknown user", store.ErrInvalidEntity)
		}
		library[key] = *e
		return 1, nil
	}
	return 0, fmt.Errorf("%w: %T", store.ErrUnsupportedEntity, c.Entity)
}

func applyKeyed[T any](kind string, table map[uuid.UUID]T, id uuid.UUID, v T, unique func() error) (int, error) {
	_, exists := table[id]
	switch kind {
	case "add":
		if exists {
			return 0, store.ErrDuplicate
		}
	case "update":
		if !exists {
			return 0, nil
		}
	default:
		if !exists {
			return 0, nil
		}
		delete(table, id)
		return 1, nil
	}
	if unique != nil {
		if err := unique(); err != nil {
			return 0, err
		}
	}
	table[id] = v
	return 1, nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func paginate[T any](items []T, page store.Page) []T {
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := min(start+page.Size, len(items))
	return items[start:end]
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// MockGameStore implements store.GameStore over a MemoryDB.
type MockGameStore struct {
	db *MemoryDB

	GetByIDFn func(ctx context.Context, id uuid.UUID) (*domain.Game, error)
	QueryFn   func(ctx context.Context, page store.Page, filter store.GameFilter) ([]*domain.Game, int, error)
}

// Games returns a game store backed by db.
func (db *MemoryDB) Games() *MockGameStore { return &MockGameStore{db: db} }

// GetByID implements store.GameStore.
func (m *MockGameStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	g, ok := m.db.Game(id)
	if !ok {
		return nil, store.ErrGameNotFound
	}
	return &g, nil
}

// ExistsByNameAndRelease implements store.GameStore.
func (m *MockGameStore) ExistsByNameAndRelease(
	ctx context.Context,
	name string,
	developer *string,
	releaseDate *time.Time,
) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, g := range m.db.games {
		if strings.EqualFold(g.Name, name) &&
			equalPtr(g.Developer, developer, func(a, b string) bool { return a == b }) &&
			equalPtr(g.ReleaseDate, releaseDate, time.Time.Equal) {
			return true, nil
		}
	}
	return false, nil
}

func equalPtr[T any](a, b *T, eq func(T, T) bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return eq(*a, *b)
}

// Query implements store.GameStore.
func (m *MockGameStore) Query(ctx context.Context, page store.Page, filter store.GameFilter) ([]*domain.Game, int, error) {
	if m.QueryFn != nil {
		return m.QueryFn(ctx, page, filter)
	}
	m.db.mu.Lock()
	var matched []*domain.Game
	for _, g := range m.db.games {
		if filter.OnlyActive && !g.Active {
			continue
		}
		if filter.Name != "" && !containsFold(g.Name, filter.Name) {
			continue
		}
		g := g
		matched = append(matched, &g)
	}
	m.db.mu.Unlock()

	slices.SortFunc(matched, func(a, b *domain.Game) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), strings.Compare(a.ID.String(), b.ID.String()))
	})
	return paginate(matched, page), len(matched), nil
}

// MockPromotionStore implements store.PromotionStore over a MemoryDB.
type MockPromotionStore struct {
	db *MemoryDB

	ListByGameFn         func(ctx context.Context, gameID uuid.UUID) ([]*domain.Promotion, error)
	ListCurrentByGamesFn func(ctx context.Context, ids []uuid.UUID, at time.Time) (map[uuid.UUID][]*domain.Promotion, error)
}

// Promotions returns a promotion store backed by db.
func (db *MemoryDB) Promotions() *MockPromotionStore { return &MockPromotionStore{db: db} }

// GetByID implements store.PromotionStore.
func (m *MockPromotionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
	p, ok := m.db.Promotion(id)
	if !ok {
		return nil, store.ErrPromotionNotFound
	}
	return &p, nil
}

// ListByGame implements store.PromotionStore.
func (m *MockPromotionStore) ListByGame(ctx context.Context, gameID uuid.UUID) ([]*domain.Promotion, error) {
	if m.ListByGameFn != nil {
		return m.ListByGameFn(ctx, gameID)
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*domain.Promotion
	for _, p := range m.db.promotions {
		if p.GameID == gameID {
			p := p
			out = append(out, &p)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Promotion) int { return a.StartDate.Compare(b.StartDate) })
	return out, nil
}

// ListCurrentByGames implements store.PromotionStore.
func (m *MockPromotionStore) ListCurrentByGames(
	ctx context.Context,
	ids []uuid.UUID,
	at time.Time,
) (map[uuid.UUID][]*domain.Promotion, error) {
	if m.ListCurrentByGamesFn != nil {
		return m.ListCurrentByGamesFn(ctx, ids, at)
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make(map[uuid.UUID][]*domain.Promotion)
	for _, p := range m.db.promotions {
		if slices.Contains(ids, p.GameID) && p.ActiveAt(at) {
			p := p
			out[p.GameID] = append(out[p.GameID], &p)
		}
	}
	return out, nil
}

// Query implements store.PromotionStore.
func (m *MockPromotionStore) Query(
	ctx context.Context,
	page store.Page,
	filter store.PromotionFilter,
) ([]*store.PromotionView, int, error) {
	m.db.mu.Lock()
	var matched []*store.PromotionView
	for _, p := range m.db.promotions {
		if filter.GameID != nil && p.GameID != *filter.GameID {
			continue
		}
		if filter.MinPrice != nil && p.Price.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && p.Price.GreaterThan(*filter.MaxPrice) {
			continue
		}
		p := p
		matched = append(matched, &store.PromotionView{Promotion: &p, GameName: m.db.games[p.GameID].Name})
	}
	m.db.mu.Unlock()

	slices.SortFunc(matched, func(a, b *store.PromotionView) int {
		return a.Promotion.StartDate.Compare(b.Promotion.StartDate)
	})
	return paginate(matched, page), len(matched), nil
}

// MockUserProfileStore implements store.UserProfileStore over a MemoryDB.
type MockUserProfileStore struct {
	db *MemoryDB

	ExistsByEmailFn func(ctx context.Context, email string) (bool, error)
	GetByIDFn       func(ctx context.Context, id uuid.UUID) (*domain.UserProfile, error)
}

// Users returns a profile store backed by db.
func (db *MemoryDB) Users() *MockUserProfileStore { return &MockUserProfileStore{db: db} }

// GetByID implements store.UserProfileStore.
func (m *MockUserProfileStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.UserProfile, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.profiles[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &u, nil
}

// GetByEmail implements store.UserProfileStore.
func (m *MockUserProfileStore) GetByEmail(ctx context.Context, email string) (*domain.UserProfile, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	email = domain.NormalizeEmail(email)
	for _, u := range m.db.profiles {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

// ExistsByEmail implements store.UserProfileStore.
func (m *MockUserProfileStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.ExistsByEmailFn != nil {
		return m.ExistsByEmailFn(ctx, email)
	}
	_, err := m.GetByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// Query implements store.UserProfileStore.
func (m *MockUserProfileStore) Query(
	ctx context.Context,
	page store.Page,
	filter store.UserFilter,
) ([]*domain.UserProfile, int, error) {
	m.db.mu.Lock()
	var matched []*domain.UserProfile
	for _, u := range m.db.profiles {
		if filter.Term != "" && !containsFold(u.Name, filter.Term) && !containsFold(u.Email, filter.Term) {
			continue
		}
		u := u
		matched = append(matched, &u)
	}
	m.db.mu.Unlock()

	slices.SortFunc(matched, func(a, b *domain.UserProfile) int { return cmp.Compare(a.Name, b.Name) })
	return paginate(matched, page), len(matched), nil
}

// MockLibraryStore implements store.LibraryStore over a MemoryDB.
type MockLibraryStore struct {
	db *MemoryDB
}

// Library returns a library store backed by db.
func (db *MemoryDB) Library() *MockLibraryStore { return &MockLibraryStore{db: db} }

// ListByUser implements store.LibraryStore.
func (m *MockLibraryStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*store.LibraryItem, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*store.LibraryItem
	for key, e := range m.db.library {
		if key[0] == userID {
			out = append(out, &store.LibraryItem{Entry: e, GameName: m.db.games[e.GameID].Name})
		}
	}
	slices.SortFunc(out, func(a, b *store.LibraryItem) int { return cmp.Compare(a.GameName, b.GameName) })
	return out, nil
}

// Ensure the store mocks implement their interfaces
var (
	_ store.GameStore        = (*MockGameStore)(nil)
	_ store.PromotionStore   = (*MockPromotionStore)(nil)
	_ store.UserProfileStore = (*MockUserProfileStore)(nil)
	_ store.LibraryStore     = (*MockLibraryStore)(nil)
)
