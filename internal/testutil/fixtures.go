package testutil

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paygrid/intent-service/internal/domain"
)

// NewPendingIntent builds a valid candidate and moves it into pending, the
// state it holds at first registration.
func NewPendingIntent(t *testing.T, amount, currency, key string) *domain.PaymentIntent {
	t.Helper()

	p := domain.NewIntent(decimal.RequireFromString(amount), currency, key)
	if err := p.Validate(); err != nil {
		t.Fatalf("fixture intent invalid: %v", err)
	}
	if err := p.TransitionTo(domain.IntentStatusPending); err != nil {
		t.Fatalf("fixture transition: %v", err)
	}
	return p
}

func GetIntentStatus(t *testing.T, db *sql.DB, id uuid.UUID) domain.IntentStatus {
	t.Helper()

	var status domain.IntentStatus
	err := db.QueryRow(`SELECT status FROM payment_intents WHERE id = $1`, id).Scan(&status)
	if err != nil {
		t.Fatalf("get intent status: %v", err)
	}
	return status
}

func CountIntentsForKey(t *testing.T, db *sql.DB, key string) int {
	t.Helper()

	var n int
	err := db.QueryRow(`SELECT count(*) FROM payment_intents WHERE idempotency_key = $1`, key).Scan(&n)
	if err != nil {
		t.Fatalf("count intents: %v", err)
	}
	return n
}
