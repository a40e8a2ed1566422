package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paygrid/intent-service/internal/domain"
)

// memStore is an in-memory intentStore with the same atomic insert-if-absent
// semantics the postgres unique index provides. Records are stored by value
// so no test shares mutable state with the code under test.
type memStore struct {
	mu       sync.Mutex
	byKey    map[string]domain.PaymentIntent
	inserts  int
	updates  int
	tryErr   error
	fetchErr error
}

func newMemStore() *memStore {
	return &memStore{byKey: make(map[string]domain.PaymentIntent)}
}

func (s *memStore) TryInsert(_ context.Context, intent *domain.PaymentIntent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tryErr != nil {
		return false, s.tryErr
	}
	if _, ok := s.byKey[intent.IdempotencyKey]; ok {
		return false, nil
	}
	s.byKey[intent.IdempotencyKey] = *intent
	s.inserts++
	return true, nil
}

func (s *memStore) GetByKey(_ context.Context, key string) (*domain.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	p, ok := s.byKey[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byKey {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.IntentStatus, failureReason *string, completedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, p := range s.byKey {
		if p.ID == id {
			p.Status = status
			p.FailureReason = failureReason
			p.CompletedAt = completedAt
			p.UpdatedAt = time.Now().UTC()
			s.byKey[key] = p
			s.updates++
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *memStore) stored(key string) (domain.PaymentIntent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byKey[key]
	return p, ok
}

func (s *memStore) insertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}

// fakeGateway counts invocations and delegates each call's outcome to fn.
type fakeGateway struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, call int) (bool, error)
}

func (g *fakeGateway) Process(ctx context.Context, _ *domain.PaymentIntent) (bool, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.mu.Unlock()
	if g.fn == nil {
		return true, nil
	}
	return g.fn(ctx, call)
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// memEventStore records audit events in memory.
type memEventStore struct {
	mu     sync.Mutex
	events []domain.IntentEvent
	err    error
}

func (s *memEventStore) Create(_ context.Context, event *domain.IntentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *memEventStore) types() []domain.IntentEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.IntentEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

var errStorageDown = fmt.Errorf("storage down")
