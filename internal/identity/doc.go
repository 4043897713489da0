// Package identity is the credential store gateway. It owns login
// credentials (email, password hash, roles, lockout counters) and issues
// tokens, and it reports outcomes as Result values rather than errors so
// callers can forward the individual failure messages to clients.
package identity
