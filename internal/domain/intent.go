package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

// NormalizeCurrency upper-cases a currency code. It does not check the code
// against a currency table; only the 3-character shape is enforced by Validate.
func NormalizeCurrency(c string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(c)))
}

type IntentStatus string

const (
	IntentStatusUndefined IntentStatus = ""
	IntentStatusPending   IntentStatus = "pending"
	IntentStatusCompleted IntentStatus = "completed"
	IntentStatusFailed    IntentStatus = "failed"
	IntentStatusRefunded  IntentStatus = "refunded"
	IntentStatusInvalid   IntentStatus = "invalid"
)

// PaymentIntent is the persisted record for one logical payment request.
// Each submission constructs its own value; instances are never shared
// between concurrent callers, so ownership of a key is decided solely by
// the atomic insert at the storage boundary.
type PaymentIntent struct {
	ID             uuid.UUID
	Amount         decimal.Decimal
	Currency       Currency
	Status         IntentStatus
	IdempotencyKey string
	FailureReason  *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

// NewIntent builds a fresh candidate in the undefined state. The caller
// runs it through Validate before anything touches storage.
func NewIntent(amount decimal.Decimal, currency, idempotencyKey string) *PaymentIntent {
	now := time.Now().UTC()
	return &PaymentIntent{
		ID:             uuid.New(),
		Amount:         amount,
		Currency:       NormalizeCurrency(currency),
		Status:         IntentStatusUndefined,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate is pure and side-effect-free. A zero amount is rejected while a
// negative one is allowed (refunds flow through the same pipeline). An empty
// idempotency key invalidates the whole request rather than disabling dedup.
func (p *PaymentIntent) Validate() error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("Validate: missing id: %w", ErrInvalidIntent)
	}
	if p.Amount.IsZero() {
		return fmt.Errorf("Validate: %w", ErrInvalidAmount)
	}
	if len(p.Currency) != 3 {
		return fmt.Errorf("Validate: %w", ErrInvalidCurrency)
	}
	if p.CreatedAt.IsZero() || p.CreatedAt.After(time.Now().UTC()) {
		return fmt.Errorf("Validate: bad created_at: %w", ErrInvalidIntent)
	}
	if p.IdempotencyKey == "" {
		return fmt.Errorf("Validate: %w", ErrMissingIdempotencyKey)
	}
	return nil
}

// CanTransitionTo enforces the monotonic lifecycle. Nothing re-enters
// pending, and invalid never leaves.
//
// Valid transitions:
//   - undefined → pending, invalid
//   - pending → completed, failed
//   - completed → refunded
func (p *PaymentIntent) CanTransitionTo(target IntentStatus) error {
	switch p.Status {
	case IntentStatusUndefined:
		if target == IntentStatusPending || target == IntentStatusInvalid {
			return nil
		}
	case IntentStatusPending:
		if target == IntentStatusCompleted || target == IntentStatusFailed {
			return nil
		}
	case IntentStatusCompleted:
		if target == IntentStatusRefunded {
			return nil
		}
	}
	return fmt.Errorf("CanTransitionTo: %s -> %s: %w", p.Status, target, ErrInvalidTransition)
}

// TransitionTo applies a status change after checking it against the
// lifecycle rules.
func (p *PaymentIntent) TransitionTo(target IntentStatus) error {
	if err := p.CanTransitionTo(target); err != nil {
		return err
	}
	p.Status = target
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *PaymentIntent) IsTerminal() bool {
	switch p.Status {
	case IntentStatusCompleted, IntentStatusFailed, IntentStatusRefunded, IntentStatusInvalid:
		return true
	default:
		return false
	}
}
