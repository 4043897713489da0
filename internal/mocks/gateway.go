package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/storefront-api/internal/identity"
)

// MockGateway implements identity.Gateway for testing and records calls.
// Without overrides every operation succeeds.
type MockGateway struct {
	CreateCredentialFn func(ctx context.Context, name, email, password string) identity.Result
	RemoveCredentialFn func(ctx context.Context, email string) identity.Result
	AuthenticateFn     func(ctx context.Context, email, password string) identity.TokenResult

	mu          sync.Mutex
	CreateCalls []string
	RemoveCalls []string
}

// Ensure MockGateway implements identity.Gateway interface
var _ identity.Gateway = (*MockGateway)(nil)

// CreateCredential implements identity.Gateway.
func (m *MockGateway) CreateCredential(ctx context.Context, name, email, password string) identity.Result {
	m.mu.Lock()
	m.CreateCalls = append(m.CreateCalls, email)
	m.mu.Unlock()

	if m.CreateCredentialFn != nil {
		return m.CreateCredentialFn(ctx, name, email, password)
	}
	return identity.Result{Success: true}
}

// RemoveCredential implements identity.Gateway.
func (m *MockGateway) RemoveCredential(ctx context.Context, email string) identity.Result {
	m.mu.Lock()
	m.RemoveCalls = append(m.RemoveCalls, email)
	m.mu.Unlock()

	if m.RemoveCredentialFn != nil {
		return m.RemoveCredentialFn(ctx, email)
	}
	return identity.Result{Success: true}
}

// Authenticate implements identity.Gateway.
func (m *MockGateway) Authenticate(ctx context.Context, email, password string) identity.TokenResult {
	if m.AuthenticateFn != nil {
		return m.AuthenticateFn(ctx, email, password)
	}
	return identity.TokenResult{Success: true, AccessToken: "access", RefreshToken: "refresh"}
}

// Calls returns copies of the recorded create and remove emails.
func (m *MockGateway) Calls() (created, removed []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CreateCalls...), append([]string(nil), m.RemoveCalls...)
}
