package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the services.
const (
	TypeUserProvisioned           = "user.provisioned"
	TypeUserRemoved               = "user.removed"
	TypeProvisioningInconsistency = "provisioning.inconsistency"
	TypePromotionChanged          = "promotion.changed"
)

// Event is a domain event. The payload is kept as JSON so handlers do not
// depend on the emitting package's types.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	// Payload contains the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates a new Event with the specified type and payload.
func NewEvent(eventType string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// UserPayload accompanies user.provisioned and user.removed.
type UserPayload struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

// InconsistencyPayload accompanies provisioning.inconsistency. It names the
// half-finished operation so an operator can reconcile the two stores.
type InconsistencyPayload struct {
	Operation string    `json:"operation"`
	Email     string    `json:"email"`
	UserID    uuid.UUID `json:"user_id"`
	Cause     string    `json:"cause"`
}

// PromotionPayload accompanies promotion.changed.
type PromotionPayload struct {
	PromotionID uuid.UUID `json:"promotion_id"`
	GameID      uuid.UUID `json:"game_id"`
	Change      string    `json:"change"`
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent implements EventHandler.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *Event) error
}
