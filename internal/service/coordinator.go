package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paygrid/intent-service/internal/domain"
	"github.com/paygrid/intent-service/internal/logging"
)

type intentStore interface {
	TryInsert(ctx context.Context, intent *domain.PaymentIntent) (bool, error)
	GetByKey(ctx context.Context, key string) (*domain.PaymentIntent, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.IntentStatus, failureReason *string, completedAt *time.Time) error
}

type intentEventStore interface {
	Create(ctx context.Context, event *domain.IntentEvent) error
}

// Coordinator owns the create-or-return decision for an idempotency key.
// Ownership is decided by the storage layer's atomic insert, never by
// in-process state, so the guarantee holds across server instances and
// survives restarts.
type Coordinator struct {
	intents intentStore
	events  intentEventStore
}

func NewCoordinator(intents intentStore, events intentEventStore) *Coordinator {
	return &Coordinator{intents: intents, events: events}
}

// RegisterOrFetch attempts the atomic insert-if-absent. The winner gets
// (true, candidate) and owns processing through Finalize; a loser gets
// (false, stored) with whatever status the stored record currently holds,
// pending included. Losing the insert race is a normal outcome.
func (c *Coordinator) RegisterOrFetch(ctx context.Context, candidate *domain.PaymentIntent) (bool, *domain.PaymentIntent, error) {
	inserted, err := c.intents.TryInsert(ctx, candidate)
	if err != nil {
		return false, nil, fmt.Errorf("RegisterOrFetch: %w", err)
	}

	if inserted {
		c.recordEvent(ctx, candidate.ID, domain.IntentEventTypeCreated)
		return true, candidate, nil
	}

	existing, err := c.intents.GetByKey(ctx, candidate.IdempotencyKey)
	if err != nil {
		return false, nil, fmt.Errorf("RegisterOrFetch: %w", err)
	}
	return false, existing, nil
}

// Finalize persists the terminal status for an intent this caller owns. It
// must be called at most once per key, by the RegisterOrFetch winner only.
func (c *Coordinator) Finalize(ctx context.Context, intent *domain.PaymentIntent) error {
	err := c.intents.UpdateStatus(ctx, intent.ID, intent.Status, intent.FailureReason, intent.CompletedAt)
	if err != nil {
		return fmt.Errorf("Finalize: %w", err)
	}

	switch intent.Status {
	case domain.IntentStatusCompleted:
		c.recordEvent(ctx, intent.ID, domain.IntentEventTypeCompleted)
	case domain.IntentStatusFailed:
		c.recordEvent(ctx, intent.ID, domain.IntentEventTypeFailed)
	}
	return nil
}

func (c *Coordinator) FetchByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	p, err := c.intents.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("FetchByID: %w", err)
	}
	return p, nil
}

// RecordReplay leaves an audit trail entry when a caller observes an
// existing record instead of creating one.
func (c *Coordinator) RecordReplay(ctx context.Context, intentID uuid.UUID) {
	c.recordEvent(ctx, intentID, domain.IntentEventTypeReplayed)
}

// recordEvent is best-effort: the audit trail never blocks or fails the
// processing pipeline.
func (c *Coordinator) recordEvent(ctx context.Context, intentID uuid.UUID, eventType domain.IntentEventType) {
	if c.events == nil {
		return
	}
	event := &domain.IntentEvent{
		ID:        uuid.New(),
		IntentID:  intentID,
		EventType: eventType,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.events.Create(ctx, event); err != nil {
		log := logging.FromContext(ctx)
		log.Warn("failed to record intent event",
			"intent_id", intentID,
			"event_type", eventType,
			"error", err,
		)
	}
}
