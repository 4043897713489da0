package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/store"
)

// MockCredentialStore implements store.CredentialStore for testing. Without
// function overrides it behaves like an in-memory store keyed by email.
type MockCredentialStore struct {
	CreateFn            func(ctx context.Context, credential *domain.Credential) error
	GetByEmailFn        func(ctx context.Context, email string) (*domain.Credential, error)
	DeleteByEmailFn     func(ctx context.Context, email string) error
	UpdatePasswordFn    func(ctx context.Context, id uuid.UUID, passwordHash string) error
	RecordFailedLoginFn func(ctx context.Context, id uuid.UUID, lockedUntil *time.Time) (int, error)
	ResetFailedLoginsFn func(ctx context.Context, id uuid.UUID) error
	AddRoleFn           func(ctx context.Context, id uuid.UUID, role string) error

	mu          sync.Mutex
	Credentials map[string]*domain.Credential
	DeleteCalls []string
}

// NewMockCredentialStore creates an empty in-memory credential store.
func NewMockCredentialStore() *MockCredentialStore {
	return &MockCredentialStore{Credentials: make(map[string]*domain.Credential)}
}

// Ensure MockCredentialStore implements store.CredentialStore interface
var _ store.CredentialStore = (*MockCredentialStore)(nil)

// Create implements store.CredentialStore.
func (m *MockCredentialStore) Create(ctx context.Context, credential *domain.Credential) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, credential)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	email := domain.NormalizeEmail(credential.Email)
	if _, exists := m.Credentials[email]; exists {
		return store.ErrEmailExists
	}
	m.Credentials[email] = credential
	return nil
}

// GetByEmail implements store.CredentialStore.
func (m *MockCredentialStore) GetByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	if m.GetByEmailFn != nil {
		return m.GetByEmailFn(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.Credentials[domain.NormalizeEmail(email)]
	if !ok {
		return nil, store.ErrCredentialNotFound
	}
	clone := *c
	clone.Roles = append([]string(nil), c.Roles...)
	return &clone, nil
}

// DeleteByEmail implements store.CredentialStore.
func (m *MockCredentialStore) DeleteByEmail(ctx context.Context, email string) error {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, email)
	m.mu.Unlock()

	if m.DeleteByEmailFn != nil {
		return m.DeleteByEmailFn(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := domain.NormalizeEmail(email)
	if _, ok := m.Credentials[key]; !ok {
		return store.ErrCredentialNotFound
	}
	delete(m.Credentials, key)
	return nil
}

// UpdatePassword implements store.CredentialStore.
func (m *MockCredentialStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	if m.UpdatePasswordFn != nil {
		return m.UpdatePasswordFn(ctx, id, passwordHash)
	}
	return m.withCredential(id, func(c *domain.Credential) {
		c.PasswordHash = passwordHash
	})
}

// RecordFailedLogin implements store.CredentialStore.
func (m *MockCredentialStore) RecordFailedLogin(ctx context.Context, id uuid.UUID, lockedUntil *time.Time) (int, error) {
	if m.RecordFailedLoginFn != nil {
		return m.RecordFailedLoginFn(ctx, id, lockedUntil)
	}
	var attempts int
	err := m.withCredential(id, func(c *domain.Credential) {
		c.FailedAttempts++
		if lockedUntil != nil {
			c.LockedUntil = lockedUntil
		}
		attempts = c.FailedAttempts
	})
	return attempts, err
}

// ResetFailedLogins implements store.CredentialStore.
func (m *MockCredentialStore) ResetFailedLogins(ctx context.Context, id uuid.UUID) error {
	if m.ResetFailedLoginsFn != nil {
		return m.ResetFailedLoginsFn(ctx, id)
	}
	return m.withCredential(id, func(c *domain.Credential) {
		c.FailedAttempts = 0
		c.LockedUntil = nil
	})
}

// AddRole implements store.CredentialStore.
func (m *MockCredentialStore) AddRole(ctx context.Context, id uuid.UUID, role string) error {
	if m.AddRoleFn != nil {
		return m.AddRoleFn(ctx, id, role)
	}
	return m.withCredential(id, func(c *domain.Credential) {
		if !c.HasRole(role) {
			c.Roles = append(c.Roles, role)
		}
	})
}

func (m *MockCredentialStore) withCredential(id uuid.UUID, fn func(c *domain.Credential)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Credentials {
		if c.ID == id {
			fn(c)
			return nil
		}
	}
	return store.ErrCredentialNotFound
}
