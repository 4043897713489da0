// Package mocks provides centralized mock implementations for testing.
//
// MemoryDB is an in-memory domain store: it hands out mocks for the game,
// promotion, profile and library stores that share its tables, and it acts
// as the unit-of-work factory whose units apply staged changes atomically.
// The credential store, password hasher, JWT service and identity gateway
// have function-field mocks.
//
// Usage:
//
//	db := mocks.NewMemoryDB()
//	gateway := &mocks.MockGateway{
//	    CreateCredentialFn: func(ctx context.Context, name, email, password string) identity.Result {
//	        return identity.Result{Errors: []string{"weak password"}}
//	    },
//	}
//
// When adding a new mock to this package:
//  1. Create a new file named after the interface being mocked
//  2. Implement the mock struct with function fields for each interface method
//  3. Document any helper methods or special functionality
package mocks
