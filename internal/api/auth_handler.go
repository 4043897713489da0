package api

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/api/shared"
	"github.com/phrazzld/storefront-api/internal/identity"
	"github.com/phrazzld/storefront-api/internal/platform/logger"
	"github.com/phrazzld/storefront-api/internal/service"
)

// Authenticator is the part of the credential store the auth endpoints use.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) identity.TokenResult
	Refresh(ctx context.Context, refreshToken string) identity.TokenResult
	ChangePassword(ctx context.Context, email, current, next string) identity.Result
}

// Provisioner creates and removes users in both stores.
type Provisioner interface {
	CreateUser(ctx context.Context, in service.CreateUserInput) (uuid.UUID, error)
	RemoveUser(ctx context.Context, id uuid.UUID) (bool, error)
}

// AuthHandler handles authentication-related API requests.
type AuthHandler struct {
	auth        Authenticator
	provisioner Provisioner
	logger      *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(auth Authenticator, provisioner Provisioner, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		auth:        auth,
		provisioner: provisioner,
		logger:      logger.With(slog.String("component", "auth_handler")),
	}
}

// Register handles POST /auth/register. It provisions the credential and
// the profile and answers 201 with the new profile id.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	id, err := h.provisioner.CreateUser(r.Context(), service.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to register user")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, RegisterResponse{UserID: id})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res := h.auth.Authenticate(r.Context(), req.Email, req.Password)
	if !res.Success {
		h.respondTokenFailure(w, r, res)
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Debug("login succeeded",
		slog.String("credential_id", res.Identity.CredentialID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, tokenResponse(res))
}

// RefreshToken handles POST /auth/refresh.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res := h.auth.Refresh(r.Context(), req.RefreshToken)
	if !res.Success {
		h.respondTokenFailure(w, r, res)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, tokenResponse(res))
}

// ChangePassword handles PUT /auth/password for the authenticated caller.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res := h.auth.ChangePassword(r.Context(), caller.Email, req.CurrentPassword, req.NewPassword)
	if !res.Success {
		switch {
		case slices.Contains(res.Errors, identity.MsgUnavailable):
			shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "Credential store unavailable", res.Err)
		case slices.Contains(res.Errors, identity.MsgInvalidCredentials):
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Current password is incorrect", res.Err,
				shared.WithElevatedLogLevel())
		default:
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Password change rejected", res.Err,
				shared.WithDetails(res.Errors...))
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Profile handles GET /auth/profile and echoes the token claims of the caller.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	roles := caller.Roles
	if roles == nil {
		roles = []string{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ProfileResponse{
		CredentialID: caller.CredentialID,
		Email:        caller.Email,
		Roles:        roles,
	})
}

func (h *AuthHandler) respondTokenFailure(w http.ResponseWriter, r *http.Request, res identity.TokenResult) {
	switch {
	case res.Locked:
		shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Account locked, try again later", nil,
			shared.WithElevatedLogLevel())
	case res.Error == identity.MsgUnavailable:
		shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "Credential store unavailable", nil)
	case res.Error == identity.MsgInvalidToken:
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid refresh token")
	default:
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid credentials")
	}
}

func tokenResponse(res identity.TokenResult) AuthResponse {
	return AuthResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
