package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/domain/pricing"
	"github.com/phrazzld/storefront-api/internal/store"
)

// Common service errors - sentinel errors used across service implementations.
// These errors represent common conditions that callers may want to check for with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in ServiceError
// 3. Callers use errors.Is/errors.As, or KindOf, to classify errors
// 4. The API layer maps kinds to HTTP status codes
var (
	// ErrDuplicateUser indicates a profile or credential already exists for the email.
	ErrDuplicateUser = errors.New("a user with this email already exists")

	// ErrDuplicateGame indicates a game with the same name, developer and
	// release date is already in the catalog.
	ErrDuplicateGame = errors.New("a game with this name, developer and release date already exists")

	// ErrGameAlreadyOwned indicates the user's library already holds the game.
	ErrGameAlreadyOwned = domain.ErrGameAlreadyOwned

	// ErrGameInUse indicates a game cannot be removed because users own it.
	ErrGameInUse = errors.New("game is owned by at least one user")

	// ErrPromotionNotForGame indicates a library purchase referenced a
	// promotion of another game.
	ErrPromotionNotForGame = fmt.Errorf("%w: promotion does not belong to the game", domain.ErrValidation)

	// ErrPromotionNotRunning indicates a library purchase referenced a
	// promotion whose window does not contain the purchase time.
	ErrPromotionNotRunning = fmt.Errorf("%w: promotion is not running", domain.ErrValidation)

	// ErrCredentialProvisioningFailed indicates the credential store refused to
	// create a credential.
	ErrCredentialProvisioningFailed = errors.New("credential provisioning failed")

	// ErrCredentialRemovalFailed indicates the credential store refused to
	// remove a credential.
	ErrCredentialRemovalFailed = errors.New("credential removal failed")

	// ErrProvisioningRolledBack indicates the domain store failed after the
	// credential was created and the credential was removed again.
	ErrProvisioningRolledBack = errors.New("user provisioning failed and was rolled back")

	// ErrPartialProvisioning indicates the two stores disagree about a user.
	// It is always carried by a *PartialProvisioningError.
	ErrPartialProvisioning = errors.New("user provisioning left the stores inconsistent")

	// ErrStaleWrite indicates a commit touched no rows, usually because the
	// entity was changed or removed concurrently.
	ErrStaleWrite = store.ErrNoRowsAffected

	// ErrUnauthenticated indicates the operation needs a caller identity.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden indicates the caller lacks the role required for the operation.
	ErrForbidden = errors.New("operation not permitted for this caller")
)

// Kind classifies service errors for callers that must react to the category
// rather than the exact error, such as the HTTP layer.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindExternal
	KindInconsistency
	KindUnauthenticated
	KindForbidden
)

var kindNames = map[Kind]string{
	KindInternal:        "internal",
	KindValidation:      "validation",
	KindNotFound:        "not_found",
	KindConflict:        "conflict",
	KindExternal:        "external",
	KindInconsistency:   "inconsistency",
	KindUnauthenticated: "unauthenticated",
	KindForbidden:       "forbidden",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// KindOf classifies err. A nil error is reported as KindInternal; callers are
// expected to check for nil first.
func KindOf(err error) Kind {
	var partial *PartialProvisioningError
	if errors.As(err, &partial) {
		return KindInconsistency
	}

	var credErr *CredentialError
	if errors.As(err, &credErr) {
		return credErr.Kind()
	}

	switch {
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden), errors.Is(err, domain.ErrUnauthorized):
		return KindForbidden
	case errors.Is(err, ErrDuplicateUser),
		errors.Is(err, ErrDuplicateGame),
		errors.Is(err, ErrGameAlreadyOwned),
		errors.Is(err, ErrGameInUse),
		errors.Is(err, ErrStaleWrite):
		return KindConflict
	case errors.Is(err, pricing.ErrOverlappingPromotion):
		return KindValidation
	case store.IsDuplicateError(err):
		return KindConflict
	case store.IsNotFoundError(err):
		return KindNotFound
	case domain.IsValidationError(err), errors.Is(err, store.ErrInvalidEntity):
		return KindValidation
	}
	return KindInternal
}

// ServiceError wraps unexpected failures with the operation that hit them.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// CredentialError reports a credential-store refusal. Messages holds the
// client-safe reasons given by the store.
type CredentialError struct {
	Operation string
	Messages  []string
	// Err is the store-side cause. It is nil when the store rejected the
	// input itself, for example a weak password.
	Err error

	sentinel error
}

func newCredentialError(operation string, sentinel error, messages []string, cause error) *CredentialError {
	return &CredentialError{
		Operation: operation,
		Messages:  messages,
		Err:       cause,
		sentinel:  sentinel,
	}
}

// Error implements the error interface for CredentialError.
func (e *CredentialError) Error() string {
	var b strings.Builder
	b.WriteString(e.Operation)
	b.WriteString(": ")
	if e.sentinel != nil {
		b.WriteString(e.sentinel.Error())
	} else {
		b.WriteString("credential store error")
	}
	if len(e.Messages) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Messages, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *CredentialError) Unwrap() []error {
	var errs []error
	if e.sentinel != nil {
		errs = append(errs, e.sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Kind reports KindValidation for input the store refused and KindExternal
// for store failures.
func (e *CredentialError) Kind() Kind {
	if e.Err == nil || domain.IsValidationError(e.Err) {
		return KindValidation
	}
	return KindExternal
}

// PartialProvisioningError reports that a user exists in one store but not
// the other and the coordinator could not repair it. It needs manual
// reconciliation.
type PartialProvisioningError struct {
	Operation string
	Email     string
	UserID    uuid.UUID
	// Cause is the domain-store failure that started the problem.
	Cause error
	// CompensationErr is the failure of the repair attempt, nil when no
	// repair was possible.
	CompensationErr error
}

// Error implements the error interface for PartialProvisioningError.
func (e *PartialProvisioningError) Error() string {
	msg := fmt.Sprintf("%s for %s: %v", e.Operation, e.Email, ErrPartialProvisioning)
	if e.Cause != nil {
		msg += fmt.Sprintf(": cause: %v", e.Cause)
	}
	if e.CompensationErr != nil {
		msg += fmt.Sprintf(": compensation: %v", e.CompensationErr)
	}
	return msg
}

// Unwrap exposes ErrPartialProvisioning and the original cause.
func (e *PartialProvisioningError) Unwrap() []error {
	errs := []error{ErrPartialProvisioning}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}
