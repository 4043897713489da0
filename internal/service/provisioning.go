package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/events"
	"github.com/phrazzld/storefront-api/internal/identity"
	"github.com/phrazzld/storefront-api/internal/metrics"
	"github.com/phrazzld/storefront-api/internal/platform/logger"
	"github.com/phrazzld/storefront-api/internal/store"
)

// Provisioning operation names used in logs, metrics and events.
const (
	OpCreateUser = "create_user"
	OpRemoveUser = "remove_user"
)

// CreateUserInput carries an already field-validated registration.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
}

// Coordinator creates and removes users across the credential store and the
// domain store. The credential store is always changed first. When the
// domain store then fails, the credential change is compensated where
// possible; otherwise a *PartialProvisioningError is returned and a
// provisioning.inconsistency event is emitted.
type Coordinator struct {
	profiles store.UserProfileStore
	units    store.UnitOfWorkFactory
	gateway  identity.Gateway
	events   events.EventEmitter
	logger   *slog.Logger
	now      func() time.Time
}

// NewCoordinator creates a Coordinator. The emitter may be nil.
func NewCoordinator(
	profiles store.UserProfileStore,
	units store.UnitOfWorkFactory,
	gateway identity.Gateway,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (*Coordinator, error) {
	if profiles == nil {
		return nil, domain.NewValidationError("profiles", "cannot be nil", domain.ErrValidation)
	}
	if units == nil {
		return nil, domain.NewValidationError("units", "cannot be nil", domain.ErrValidation)
	}
	if gateway == nil {
		return nil, domain.NewValidationError("gateway", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		profiles: profiles,
		units:    units,
		gateway:  gateway,
		events:   emitter,
		logger:   logger.With(slog.String("component", "provisioning")),
		now:      time.Now,
	}, nil
}

// CreateUser registers a credential and a profile for the same email and
// returns the new profile id.
func (c *Coordinator) CreateUser(ctx context.Context, in CreateUserInput) (id uuid.UUID, err error) {
	started := c.now()
	defer func() { c.record(OpCreateUser, started, err) }()

	log := logger.FromContextOrDefault(ctx, c.logger)

	profile, err := domain.NewUserProfile(in.Name, in.Email)
	if err != nil {
		return uuid.Nil, err
	}

	exists, err := c.profiles.ExistsByEmail(ctx, profile.Email)
	if err != nil {
		log.Error("failed to check for existing profile", slog.String("error", err.Error()))
		return uuid.Nil, NewServiceError(OpCreateUser, "failed to check for existing user", err)
	}
	if exists {
		log.Debug("profile already exists", slog.String("email", profile.Email))
		return uuid.Nil, ErrDuplicateUser
	}

	b := newBoundary(OpCreateUser, profile.Email)

	res := c.gateway.CreateCredential(ctx, profile.Name, profile.Email, in.Password)
	if !res.Success {
		if res.Duplicate {
			log.Debug("credential already exists", slog.String("email", profile.Email))
			return uuid.Nil, fmt.Errorf("%w: credential already registered", ErrDuplicateUser)
		}
		log.Warn("credential store refused user",
			slog.String("email", profile.Email),
			slog.String("errors", strings.Join(res.Errors, "; ")))
		return uuid.Nil, newCredentialError(OpCreateUser, ErrCredentialProvisioningFailed, res.Errors, res.Err)
	}
	b.onFailure("remove_credential", func(ctx context.Context) error {
		return resultErr(c.gateway.RemoveCredential(ctx, profile.Email))
	})

	unit := c.units.Begin()
	defer unit.Discard()

	cause := unit.StageAdd(profile)
	if cause == nil {
		cause = commitErr(unit.Commit(ctx))
	}
	if cause != nil {
		return uuid.Nil, c.rollBack(ctx, b, profile.ID, cause)
	}

	log.Info("user provisioned",
		slog.String("user_id", profile.ID.String()),
		slog.String("email", profile.Email))
	c.emit(ctx, events.TypeUserProvisioned, events.UserPayload{UserID: profile.ID, Email: profile.Email})
	return profile.ID, nil
}

// rollBack runs the boundary's compensations after the domain store failed
// with cause, and returns the error CreateUser reports.
func (c *Coordinator) rollBack(ctx context.Context, b *boundary, userID uuid.UUID, cause error) error {
	log := logger.FromContextOrDefault(ctx, c.logger)

	compErr := b.compensate(context.WithoutCancel(ctx))
	if compErr != nil {
		metrics.RecordCompensation(metrics.OutcomeFailed)
		return c.inconsistent(ctx, &PartialProvisioningError{
			Operation:       b.operation,
			Email:           b.email,
			UserID:          userID,
			Cause:           cause,
			CompensationErr: compErr,
		})
	}

	metrics.RecordCompensation(metrics.OutcomeSuccess)
	log.Error("profile creation failed, credential removed",
		slog.String("email", b.email),
		slog.String("error", cause.Error()))

	if store.IsDuplicateError(cause) {
		return fmt.Errorf("%w: %w", ErrDuplicateUser, cause)
	}
	return fmt.Errorf("%w: %w", ErrProvisioningRolledBack, cause)
}

// RemoveUser deletes the credential and then the profile of user id.
func (c *Coordinator) RemoveUser(ctx context.Context, id uuid.UUID) (removed bool, err error) {
	started := c.now()
	defer func() { c.record(OpRemoveUser, started, err) }()

	log := logger.FromContextOrDefault(ctx, c.logger)

	profile, err := c.profiles.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return false, store.ErrUserNotFound
		}
		log.Error("failed to load profile for removal",
			slog.String("error", err.Error()),
			slog.String("user_id", id.String()))
		return false, NewServiceError(OpRemoveUser, "failed to load user", err)
	}

	res := c.gateway.RemoveCredential(ctx, profile.Email)
	if !res.Success {
		log.Warn("credential store refused removal",
			slog.String("email", profile.Email),
			slog.String("errors", strings.Join(res.Errors, "; ")))
		cause := res.Err
		if cause == nil {
			cause = errors.New(strings.Join(res.Errors, "; "))
		}
		return false, newCredentialError(OpRemoveUser, ErrCredentialRemovalFailed, res.Errors, cause)
	}

	// From here on the credential is gone and cannot be restored without the
	// password, so any failure leaves the stores inconsistent.
	unit := c.units.Begin()
	defer unit.Discard()

	cause := unit.StageRemove(profile)
	if cause == nil {
		cause = commitErr(unit.Commit(ctx))
	}
	if cause != nil {
		return false, c.inconsistent(ctx, &PartialProvisioningError{
			Operation: OpRemoveUser,
			Email:     profile.Email,
			UserID:    profile.ID,
			Cause:     cause,
		})
	}

	log.Info("user removed",
		slog.String("user_id", profile.ID.String()),
		slog.String("email", profile.Email))
	c.emit(ctx, events.TypeUserRemoved, events.UserPayload{UserID: profile.ID, Email: profile.Email})
	return true, nil
}

func (c *Coordinator) inconsistent(ctx context.Context, perr *PartialProvisioningError) error {
	attrs := []any{
		slog.String("operation", perr.Operation),
		slog.String("email", perr.Email),
		slog.String("user_id", perr.UserID.String()),
	}
	if perr.Cause != nil {
		attrs = append(attrs, slog.String("cause", perr.Cause.Error()))
	}
	if perr.CompensationErr != nil {
		attrs = append(attrs, slog.String("compensation_error", perr.CompensationErr.Error()))
	}
	logger.FromContextOrDefault(ctx, c.logger).Error("credential and domain stores are inconsistent", attrs...)

	cause := ""
	if perr.Cause != nil {
		cause = perr.Cause.Error()
	}
	c.emit(ctx, events.TypeProvisioningInconsistency, events.InconsistencyPayload{
		Operation: perr.Operation,
		Email:     perr.Email,
		UserID:    perr.UserID,
		Cause:     cause,
	})
	return perr
}

func (c *Coordinator) emit(ctx context.Context, eventType string, payload any) {
	if c.events == nil {
		return
	}
	log := logger.FromContextOrDefault(ctx, c.logger)

	event, err := events.NewEvent(eventType, payload)
	if err != nil {
		log.Error("failed to build event", slog.String("event_type", eventType), slog.String("error", err.Error()))
		return
	}
	if err := c.events.EmitEvent(context.WithoutCancel(ctx), event); err != nil {
		log.Warn("event handler failed", slog.String("event_type", eventType), slog.String("error", err.Error()))
	}
}

func (c *Coordinator) record(operation string, started time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, ErrPartialProvisioning):
		outcome = metrics.OutcomeInconsistent
	case errors.Is(err, ErrProvisioningRolledBack):
		outcome = metrics.OutcomeRolledBack
	case KindOf(err) == KindInternal || KindOf(err) == KindExternal:
		outcome = metrics.OutcomeFailed
	default:
		outcome = metrics.OutcomeRejected
	}
	metrics.RecordProvisioning(operation, outcome, c.now().Sub(started).Seconds())
}

// commitErr turns a Commit result into a single error. A commit that wrote
// nothing is reported as store.ErrNoRowsAffected.
func commitErr(ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNoRowsAffected
	}
	return nil
}

// resultErr converts a failed gateway result into an error.
func resultErr(res identity.Result) error {
	if res.Success {
		return nil
	}
	if res.Err != nil {
		return res.Err
	}
	if len(res.Errors) > 0 {
		return errors.New(strings.Join(res.Errors, "; "))
	}
	return errors.New("credential store reported failure")
}

// boundary tracks the compensations owed by a provisioning operation that
// spans both stores. Compensations run newest first.
type boundary struct {
	operation string
	email     string

	mu            sync.Mutex
	compensations []compensation
}

type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

func newBoundary(operation, email string) *boundary {
	return &boundary{operation: operation, email: email}
}

func (b *boundary) onFailure(name string, fn func(ctx context.Context) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.compensations = append([]compensation{{name: name, fn: fn}}, b.compensations...)
}

// compensate runs every registered compensation and joins their failures.
func (b *boundary) compensate(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for _, comp := range b.compensations {
		if err := comp.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", comp.name, err))
		}
	}
	b.compensations = nil
	return errors.Join(errs...)
}
