package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/paygrid/intent-service/internal/domain"
)

const intentEventColumns = `id, intent_id, event_type, payload, created_at`

type IntentEventRepository struct {
	db *sql.DB
}

func NewIntentEventRepository(db *sql.DB) *IntentEventRepository {
	return &IntentEventRepository{db: db}
}

func (r *IntentEventRepository) Create(ctx context.Context, event *domain.IntentEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO intent_events (id, intent_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.IntentID, event.EventType, event.Payload, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *IntentEventRepository) GetByIntentID(ctx context.Context, intentID uuid.UUID) ([]domain.IntentEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+intentEventColumns+` FROM intent_events
		WHERE intent_id = $1 ORDER BY created_at`, intentID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByIntentID: %w", err)
	}
	defer rows.Close()

	var events []domain.IntentEvent
	for rows.Next() {
		var e domain.IntentEvent
		if err := rows.Scan(&e.ID, &e.IntentID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("GetByIntentID: scan: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByIntentID: rows: %w", err)
	}
	return events, nil
}
