package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paygrid/intent-service/internal/domain"
	"github.com/paygrid/intent-service/internal/logging"
	"github.com/paygrid/intent-service/internal/retry"
)

type gatewayClient interface {
	Process(ctx context.Context, intent *domain.PaymentIntent) (bool, error)
}

// Processor drives a candidate intent through validation, key registration,
// the single at-most-once gateway call and the finalize write.
type Processor struct {
	coordinator *Coordinator
	gateway     gatewayClient
	locks       *KeyLocks
	retryOpts   retry.Options
}

// NewProcessor wires the pipeline. locks may be nil; it only spares
// duplicate storage round-trips when same-key requests race inside one
// process and has no bearing on correctness.
func NewProcessor(coordinator *Coordinator, gateway gatewayClient, locks *KeyLocks, retryOpts retry.Options) *Processor {
	return &Processor{
		coordinator: coordinator,
		gateway:     gateway,
		locks:       locks,
		retryOpts:   retryOpts,
	}
}

// Submit processes one candidate intent. However many times the same
// logical request arrives, exactly one gateway call is made and exactly one
// row is persisted for its key; every caller gets back the stored record or
// a conflict.
//
// Structurally invalid candidates come back with status invalid and a
// validation error, untouched by storage and the gateway. A replay with a
// matching payload returns the stored record verbatim, which may still be
// pending if the owning request has not finished. A replay with a different
// payload fails with domain.ErrPayloadConflict and mutates nothing.
func (p *Processor) Submit(ctx context.Context, candidate *domain.PaymentIntent) (*domain.PaymentIntent, error) {
	log := logging.FromContext(ctx)

	if err := candidate.Validate(); err != nil {
		candidate.Status = domain.IntentStatusInvalid
		return candidate, fmt.Errorf("Submit: %w", err)
	}

	if p.locks != nil {
		release := p.locks.Acquire(candidate.IdempotencyKey)
		defer release()
	}

	if err := candidate.TransitionTo(domain.IntentStatusPending); err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}

	isNew, stored, err := p.coordinator.RegisterOrFetch(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}

	if !isNew {
		if stored.Fingerprint() != candidate.Fingerprint() {
			return nil, fmt.Errorf("Submit: key %q: %w", candidate.IdempotencyKey, domain.ErrPayloadConflict)
		}
		log.Info("idempotent replay",
			"intent_id", stored.ID,
			"idempotency_key", stored.IdempotencyKey,
			"status", stored.Status,
		)
		p.coordinator.RecordReplay(ctx, stored.ID)
		return stored, nil
	}

	return p.process(ctx, candidate)
}

// process runs the gateway call for an intent this caller owns and
// finalizes the outcome. A cancelled owner finalizes nothing: the row stays
// pending and reconciliation is left to an external recovery process.
func (p *Processor) process(ctx context.Context, intent *domain.PaymentIntent) (*domain.PaymentIntent, error) {
	log := logging.FromContext(ctx)

	accepted, gwErr := retry.Execute(ctx, p.retryOpts, func(ctx context.Context) (bool, error) {
		return p.gateway.Process(ctx, intent)
	}, nil)

	if gwErr != nil && ctx.Err() != nil {
		log.Warn("owner cancelled mid-processing, intent left pending",
			"intent_id", intent.ID,
			"idempotency_key", intent.IdempotencyKey,
		)
		return nil, fmt.Errorf("process: %w", ctx.Err())
	}

	now := time.Now().UTC()
	switch {
	case gwErr != nil:
		reason := gwErr.Error()
		if err := intent.TransitionTo(domain.IntentStatusFailed); err != nil {
			return nil, fmt.Errorf("process: %w", err)
		}
		intent.FailureReason = &reason
		if err := p.coordinator.Finalize(ctx, intent); err != nil {
			return nil, fmt.Errorf("process: %w", err)
		}
		log.Error("gateway call failed", "intent_id", intent.ID, "error", gwErr)
		return intent, fmt.Errorf("process: gateway: %w", gwErr)

	case !accepted:
		reason := domain.ErrGatewayRejected.Error()
		if err := intent.TransitionTo(domain.IntentStatusFailed); err != nil {
			return nil, fmt.Errorf("process: %w", err)
		}
		intent.FailureReason = &reason
		if err := p.coordinator.Finalize(ctx, intent); err != nil {
			return nil, fmt.Errorf("process: %w", err)
		}
		log.Info("gateway rejected intent", "intent_id", intent.ID)
		return intent, nil

	default:
		if err := intent.TransitionTo(domain.IntentStatusCompleted); err != nil {
			return nil, fmt.Errorf("process: %w", err)
		}
		intent.CompletedAt = &now
		if err := p.coordinator.Finalize(ctx, intent); err != nil {
			return nil, fmt.Errorf("process: %w", err)
		}
		log.Info("intent completed", "intent_id", intent.ID, "idempotency_key", intent.IdempotencyKey)
		return intent, nil
	}
}

func (p *Processor) GetIntent(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	intent, err := p.coordinator.FetchByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetIntent: %w", err)
	}
	return intent, nil
}
