package identity

import (
	"context"
	"time"

	"github.com/phrazzld/storefront-api/internal/service/auth"
)

// Failure messages reported in Result.Errors and TokenResult.Error.
const (
	MsgInvalidCredentials = "invalid credentials"
	MsgAccountLocked      = "account locked"
	MsgDuplicateEmail     = "email is already registered"
	MsgUnknownEmail       = "no credential is registered for this email"
	MsgPasswordUnchanged  = "new password must differ from the current password"
	MsgInvalidToken       = "invalid or expired refresh token"
	MsgUnavailable        = "credential store unavailable"
)

// Result reports the outcome of a credential mutation.
type Result struct {
	Success bool
	// Errors holds client-safe messages, one per problem.
	Errors []string
	// Duplicate is set when the email is already registered.
	Duplicate bool
	// Err is the underlying cause, for logging only.
	Err error
}

// TokenResult reports the outcome of an authentication attempt.
type TokenResult struct {
	Success      bool
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Identity     auth.Identity
	Error        string
	Locked       bool
}

// Gateway is the narrow view of the credential store used by account
// provisioning.
type Gateway interface {
	CreateCredential(ctx context.Context, name, email, password string) Result
	RemoveCredential(ctx context.Context, email string) Result
	Authenticate(ctx context.Context, email, password string) TokenResult
}

func ok() Result {
	return Result{Success: true}
}

func failed(err error, messages ...string) Result {
	return Result{Errors: messages, Err: err}
}
