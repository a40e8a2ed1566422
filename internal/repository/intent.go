package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paygrid/intent-service/internal/domain"
)

const intentColumns = `id, idempotency_key, amount, currency, status,
	failure_reason, created_at, updated_at, completed_at`

type IntentRepository struct {
	db *sql.DB
}

func NewIntentRepository(db *sql.DB) *IntentRepository {
	return &IntentRepository{db: db}
}

// TryInsert registers the intent under its idempotency key if the key is
// absent. The unique index on idempotency_key makes this the single atomic
// decision point for who owns processing: inserted == true means the caller
// won. A losing insert is a normal result, not an error.
func (r *IntentRepository) TryInsert(ctx context.Context, intent *domain.PaymentIntent) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_intents (
			id, idempotency_key, amount, currency, status,
			failure_reason, created_at, updated_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		intent.ID, intent.IdempotencyKey, intent.Amount, string(intent.Currency), intent.Status,
		intent.FailureReason, intent.CreatedAt, intent.UpdatedAt, intent.CompletedAt,
	)
	if err != nil {
		return false, fmt.Errorf("TryInsert: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("TryInsert: rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *IntentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE id = $1`, id,
	)
	p, err := scanIntent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

func (r *IntentRepository) GetByKey(ctx context.Context, key string) (*domain.PaymentIntent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE idempotency_key = $1`, key,
	)
	p, err := scanIntent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByKey: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByKey: %w", err)
	}
	return p, nil
}

// UpdateStatus is the finalize write: only the status, failure reason and
// completion timestamp ever change after the first insert.
func (r *IntentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.IntentStatus, failureReason *string, completedAt *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_intents SET status = $1, failure_reason = $2, completed_at = $3, updated_at = now()
		WHERE id = $4`,
		status, failureReason, completedAt, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func scanIntent(s scanner) (*domain.PaymentIntent, error) {
	var p domain.PaymentIntent
	var currency string
	err := s.Scan(
		&p.ID, &p.IdempotencyKey, &p.Amount, &currency, &p.Status,
		&p.FailureReason, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Currency = domain.Currency(currency)
	return &p, nil
}
