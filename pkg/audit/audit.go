// Package audit records who did what to whom on group subscriptions.
// Entries are append-only; the package offers a synchronous Mongo storage
// and a buffered async wrapper for call sites that must not block on the
// audit write.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrEventValidation is returned when an event misses required fields.
var ErrEventValidation = errors.New("audit: invalid event")

// Event is a single audit log entry. UserID is the affected user, ActorID
// the initiator.
type Event struct {
	ID        string         `bson:"_id" json:"id"`
	UserID    string         `bson:"user_id" json:"user_id"`
	Action    string         `bson:"action" json:"action"`
	ActorID   string         `bson:"actor_id,omitempty" json:"actor_id,omitempty"`
	IP        string         `bson:"ip,omitempty" json:"ip,omitempty"`
	Metadata  map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
}

// Validate checks required fields.
func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	if e.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrEventValidation)
	}
	return nil
}

// EventOption applies optional fields to an event under construction.
type EventOption func(*Event)

// WithActor sets the initiating user.
func WithActor(actorID string) EventOption {
	return func(e *Event) { e.ActorID = actorID }
}

// WithIP sets the initiator's address.
func WithIP(ip string) EventOption {
	return func(e *Event) { e.IP = ip }
}

// WithMetadata merges extra key/value context into the event.
func WithMetadata(metadata map[string]any) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			e.Metadata[k] = v
		}
	}
}

// Storage persists audit events.
type Storage interface {
	Store(ctx context.Context, event Event) error
}

// Logger is the write-side API.
type Logger interface {
	// Record appends one entry for an action performed on userID.
	Record(ctx context.Context, userID, action string, opts ...EventOption) error
}

type logger struct {
	storage Storage
	now     func() time.Time
}

// Option configures the logger.
type Option func(*logger)

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *logger) { l.now = now }
}

// NewLogger creates a logger writing to the given storage.
func NewLogger(storage Storage, opts ...Option) Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	l := &logger{
		storage: storage,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *logger) Record(ctx context.Context, userID, action string, opts ...EventOption) error {
	event := Event{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		CreatedAt: l.now(),
	}
	for _, opt := range opts {
		opt(&event)
	}
	if err := event.Validate(); err != nil {
		return err
	}
	return l.storage.Store(ctx, event)
}
