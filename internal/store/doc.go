// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic. Catalog, profile and library data live in
// the domain store; login credentials live in a separate credential store
// that is only ever reached through the identity gateway.
package store
