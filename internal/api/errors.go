package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/storefront-api/internal/api/shared"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/domain/pricing"
	"github.com/phrazzld/storefront-api/internal/service"
	"github.com/phrazzld/storefront-api/internal/service/auth"
	"github.com/phrazzld/storefront-api/internal/store"
)

// MsgReconciliation is returned when the credential store and the domain
// store disagree about a user and an operator has to repair it.
const MsgReconciliation = "Account state requires reconciliation"

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return http.StatusUnauthorized
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}

	switch service.KindOf(err) {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err that carries no
// internal detail.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return SanitizeValidationError(err)
	}

	switch {
	case errors.Is(err, service.ErrPartialProvisioning):
		return MsgReconciliation

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return "Invalid token"
	case errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid refresh token"

	case errors.Is(err, service.ErrUnauthenticated):
		return "Authentication required"
	case errors.Is(err, service.ErrForbidden), errors.Is(err, domain.ErrUnauthorized):
		return "Insufficient permissions"

	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, store.ErrGameNotFound):
		return "Game not found"
	case errors.Is(err, store.ErrPromotionNotFound):
		return "Promotion not found"

	case errors.Is(err, service.ErrDuplicateUser), errors.Is(err, store.ErrEmailExists):
		return "A user with this email already exists"
	case errors.Is(err, service.ErrDuplicateGame):
		return "A game with this name, developer and release date already exists"
	case errors.Is(err, service.ErrGameAlreadyOwned):
		return "The user already owns this game"
	case errors.Is(err, service.ErrGameInUse):
		return "The game is owned by users and cannot be removed"
	case errors.Is(err, service.ErrStaleWrite):
		return "The resource was changed concurrently, reload and retry"

	case errors.Is(err, service.ErrCredentialProvisioningFailed):
		if service.KindOf(err) == service.KindExternal {
			return "Credential store unavailable"
		}
		return "The account could not be registered"
	case errors.Is(err, service.ErrCredentialRemovalFailed):
		return "The account could not be removed from the credential store"

	case errors.Is(err, pricing.ErrOverlappingPromotion):
		return "A promotion already exists for this period"
	case errors.Is(err, pricing.ErrPriceNotBelowBase):
		return "Promotional price must be lower than the game price"
	case errors.Is(err, domain.ErrInvalidWindow):
		return "End date must be after start date"
	case errors.Is(err, service.ErrPromotionNotForGame):
		return "The promotion does not belong to this game"
	case errors.Is(err, service.ErrPromotionNotRunning):
		return "The promotion is not running"
	case errors.Is(err, domain.ErrInvalidPriceScale):
		return "Price cannot have more than 2 decimal places"
	case errors.Is(err, domain.ErrInvalidPrice):
		return "Price cannot be negative"
	}

	var fieldErr *domain.ValidationError
	if errors.As(err, &fieldErr) && fieldErr.Field != "" {
		return fmt.Sprintf("Invalid %s: %s", fieldErr.Field, fieldErr.Message)
	}
	if service.KindOf(err) == service.KindValidation {
		return "Invalid request data"
	}
	return "An unexpected error occurred"
}

// SanitizeValidationError turns validator errors into a message naming the
// first failing field and rule, without echoing the submitted value.
func SanitizeValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}

	errMsg := err.Error()
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 5 {
				return fmt.Sprintf("Invalid %s: %s", fieldParts[1], getValidationTagMessage(fieldParts[3]))
			}
			if len(fieldParts) >= 3 {
				return fmt.Sprintf("Invalid %s", fieldParts[1])
			}
		}
	}
	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "min", "gte", "gt":
		return "too short or too small"
	case "max", "lte", "lt":
		return "too long or too large"
	case "oneof":
		return "invalid value"
	case "uuid":
		return "invalid identifier"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the response for err. fallback replaces the generic
// message of 500 responses when it is not empty. Credential-store refusals
// carry their reasons in details.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" && !errors.Is(err, service.ErrPartialProvisioning) {
		message = fallback
	}

	var opts []shared.ResponseOption
	var credErr *service.CredentialError
	if errors.As(err, &credErr) && service.KindOf(err) == service.KindValidation {
		opts = append(opts, shared.WithDetails(credErr.Messages...))
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		details := make([]string, 0, len(ve))
		for _, fe := range ve {
			details = append(details, fmt.Sprintf("%s: %s", fe.Field(), getValidationTagMessage(fe.Tag())))
		}
		opts = append(opts, shared.WithDetails(details...))
	}
	if status == http.StatusForbidden {
		opts = append(opts, shared.WithElevatedLogLevel())
	}

	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
