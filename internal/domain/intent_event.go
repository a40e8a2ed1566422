package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type IntentEventType string

const (
	IntentEventTypeCreated   IntentEventType = "created"
	IntentEventTypeCompleted IntentEventType = "completed"
	IntentEventTypeFailed    IntentEventType = "failed"
	IntentEventTypeReplayed  IntentEventType = "replayed"
)

// IntentEvent is an append-only audit row recording a lifecycle step of an
// intent. Events are advisory; correctness never depends on them.
type IntentEvent struct {
	ID        uuid.UUID
	IntentID  uuid.UUID
	EventType IntentEventType
	Payload   json.RawMessage
	CreatedAt time.Time
}
