package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paygrid/intent-service/internal/domain"
	"github.com/paygrid/intent-service/internal/retry"
)

func fastRetryOptions(maxRetries int) retry.Options {
	return retry.Options{
		MaxRetries:        maxRetries,
		InitialDelay:      time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          5 * time.Millisecond,
		Jitter:            false,
	}
}

func newTestProcessor(store *memStore, gateway *fakeGateway, maxRetries int) *Processor {
	coord := NewCoordinator(store, &memEventStore{})
	return NewProcessor(coord, gateway, NewKeyLocks(), fastRetryOptions(maxRetries))
}

func candidate(t *testing.T, amount, currency, key string) *domain.PaymentIntent {
	t.Helper()
	return domain.NewIntent(decimal.RequireFromString(amount), currency, key)
}

func TestSubmit_CompletesValidIntent(t *testing.T) {
	store := newMemStore()
	gateway := &fakeGateway{}
	proc := newTestProcessor(store, gateway, 3)

	got, err := proc.Submit(context.Background(), candidate(t, "100.00", "USD", "key-1"))
	require.NoError(t, err)

	assert.Equal(t, domain.IntentStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, 1, gateway.callCount())

	stored, ok := store.stored("key-1")
	require.True(t, ok)
	assert.Equal(t, domain.IntentStatusCompleted, stored.Status)
}

func TestSubmit_InvalidCandidateTouchesNothing(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		key      string
		wantErr  error
	}{
		{"zero amount", "0", "USD", "key-1", domain.ErrInvalidAmount},
		{"bad currency", "100.00", "ZZZZ", "key-1", domain.ErrInvalidCurrency},
		{"empty key", "100.00", "USD", "", domain.ErrMissingIdempotencyKey},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			gateway := &fakeGateway{}
			proc := newTestProcessor(store, gateway, 3)

			got, err := proc.Submit(context.Background(), candidate(t, tc.amount, tc.currency, tc.key))

			require.ErrorIs(t, err, tc.wantErr)
			require.NotNil(t, got)
			assert.Equal(t, domain.IntentStatusInvalid, got.Status)
			assert.Equal(t, 0, store.insertCount(), "invalid input is never persisted")
			assert.Equal(t, 0, gateway.callCount(), "invalid input never reaches the gateway")
		})
	}
}

func TestSubmit_EverythingInvalidAtOnce(t *testing.T) {
	store := newMemStore()
	gateway := &fakeGateway{}
	proc := newTestProcessor(store, gateway, 3)

	got, err := proc.Submit(context.Background(), candidate(t, "0", "ZZZZ", ""))

	require.Error(t, err)
	assert.Equal(t, domain.IntentStatusInvalid, got.Status)
	assert.Equal(t, 0, store.insertCount())
	assert.Equal(t, 0, gateway.callCount())
}

func TestSubmit_SequentialReplay(t *testing.T) {
	store := newMemStore()
	gateway := &fakeGateway{}
	proc := newTestProcessor(store, gateway, 3)
	ctx := context.Background()

	first, err := proc.Submit(ctx, candidate(t, "100.00", "USD", "abc"))
	require.NoError(t, err)

	second, err := proc.Submit(ctx, candidate(t, "100.00", "USD", "abc"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, domain.IntentStatusCompleted, second.Status)
	assert.Equal(t, 1, gateway.callCount(), "replay triggers no new gateway call")
	assert.Equal(t, 1, store.insertCount())
}

func TestSubmit_PayloadConflict(t *testing.T) {
	store := newMemStore()
	gateway := &fakeGateway{}
	proc := newTestProcessor(store, gateway, 3)
	ctx := context.Background()

	first, err := proc.Submit(ctx, candidate(t, "100.00", "USD", "abc"))
	require.NoError(t, err)

	_, err = proc.Submit(ctx, candidate(t, "50.00", "EUR", "abc"))
	require.ErrorIs(t, err, domain.ErrPayloadConflict)

	stored, ok := store.stored("abc")
	require.True(t, ok)
	assert.Equal(t, first.ID, stored.ID, "conflict must not mutate the stored record")
	assert.Equal(t, domain.IntentStatusCompleted, stored.Status)
	assert.True(t, stored.Amount.Equal(decimal.RequireFromString("100.00")))
	assert.Equal(t, 1, gateway.callCount())
}

func TestSubmit_ConcurrentSameKey(t *testing.T) {
	store := newMemStore()
	gateway := &fakeGateway{
		fn: func(ctx context.Context, _ int) (bool, error) {
			// Widen the race window so losers really do overlap the owner.
			time.Sleep(10 * time.Millisecond)
			return true, nil
		},
	}
	proc := newTestProcessor(store, gateway, 3)

	const n = 8
	results := make([]*domain.PaymentIntent, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = proc.Submit(context.Background(), candidate(t, "100.00", "USD", "hot-key"))
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, results[0].ID, results[i].ID, "every caller sees the same record")
	}

	assert.Equal(t, 1, gateway.callCount(), "exactly one gateway call for N concurrent submits")
	assert.Equal(t, 1, store.insertCount(), "exactly one insert for N concurrent submits")
}

func TestSubmit_ConcurrentSameKey_NoKeyLocks(t *testing.T) {
	// Correctness must not depend on the in-process advisory locks.
	store := newMemStore()
	gateway := &fakeGateway{
		fn: func(ctx context.Context, _ int) (bool, error) {
			time.Sleep(10 * time.Millisecond)
			return true, nil
		},
	}
	coord := NewCoordinator(store, &memEventStore{})
	proc := NewProcessor(coord, gateway, nil, fastRetryOptions(3))

	const n = 8
	results := make([]*domain.PaymentIntent, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = proc.Submit(context.Background(), candidate(t, "100.00", "USD", "hot-key"))
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].ID, results[i].ID)
	}
	assert.Equal(t, 1, gateway.callCount())
	assert.Equal(t, 1, store.insertCount())
}

func TestSubmit_ReplayWhileOwnerPending(t *testing.T) {
	store := newMemStore()
	gateway := &fakeGateway{}
	proc := newTestProcessor(store, gateway, 3)
	ctx := context.Background()

	// Simulate an owner that registered but has not finalized yet.
	owner := pendingIntent(t, "100.00", "USD", "key-1")
	inserted, err := store.TryInsert(ctx, owner)
	require.NoError(t, err)
	require.True(t, inserted)

	got, err := proc.Submit(ctx, candidate(t, "100.00", "USD", "key-1"))
	require.NoError(t, err)

	assert.Equal(t, domain.IntentStatusPending, got.Status, "losers may observe pending before the owner finalizes")
	assert.Equal(t, owner.ID, got.ID)
	assert.Equal(t, 0, gateway.callCount())
}

func TestSubmit_TransientFaultsThenSuccess(t *testing.T) {
	store := newMemStore()
	gateway := &fakeGateway{
		fn: func(_ context.Context, call int) (bool, error) {
			if call <= 2 {
				return false, domain.ErrGatewayUnavailable
			}
			return true, nil
		},
	}
	proc := newTestProcessor(store, gateway, 3)

	got, err := proc.Submit(context.Background(), candidate(t, "100.00", "USD", "key-1"))
	require.NoError(t, err)

	assert.Equal(t, domain.IntentStatusCompleted, got.Status)
	assert.Equal(t, 3, gateway.callCount(), "two timeouts then success with MaxRetries=3")
}

func TestSubmit_RetriesExhausted(t *testing.T) {
	store := newMemStore()
	gateway := &fakeGateway{
		fn: func(context.Context, int) (bool, error) {
			return false, domain.ErrGatewayUnavailable
		},
	}
	proc := newTestProcessor(store, gateway, 2)

	got, err := proc.Submit(context.Background(), candidate(t, "100.00", "USD", "key-1"))

	require.ErrorIs(t, err, domain.ErrGatewayUnavailable, "the underlying fault is propagated, not swallowed")
	require.NotNil(t, got)
	assert.Equal(t, domain.IntentStatusFailed, got.Status)
	require.NotNil(t, got.FailureReason)
	assert.Equal(t, 3, gateway.callCount())

	stored, ok := store.stored("key-1")
	require.True(t, ok)
	assert.Equal(t, domain.IntentStatusFailed, stored.Status)
}

func TestSubmit_BusinessDeclineNotRetried(t *testing.T) {
	store := newMemStore()
	gateway := &fakeGateway{
		fn: func(context.Context, int) (bool, error) {
			return false, nil
		},
	}
	proc := newTestProcessor(store, gateway, 3)

	got, err := proc.Submit(context.Background(), candidate(t, "100.00", "USD", "key-1"))
	require.NoError(t, err)

	assert.Equal(t, domain.IntentStatusFailed, got.Status)
	require.NotNil(t, got.FailureReason)
	assert.Equal(t, 1, gateway.callCount(), "a decline is terminal, never retried")
}

func TestSubmit_CancelledOwnerLeavesPending(t *testing.T) {
	store := newMemStore()
	gateway := &fakeGateway{
		fn: func(ctx context.Context, _ int) (bool, error) {
			<-ctx.Done()
			return false, ctx.Err()
		},
	}
	proc := newTestProcessor(store, gateway, 3)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := proc.Submit(ctx, candidate(t, "100.00", "USD", "key-1"))
	require.ErrorIs(t, err, context.Canceled)

	stored, ok := store.stored("key-1")
	require.True(t, ok)
	assert.Equal(t, domain.IntentStatusPending, stored.Status, "no finalize for a cancelled owner")
	assert.Equal(t, 0, store.updates)
}

func TestSubmit_StorageFaultPropagates(t *testing.T) {
	store := newMemStore()
	store.tryErr = errStorageDown
	gateway := &fakeGateway{}
	proc := newTestProcessor(store, gateway, 3)

	_, err := proc.Submit(context.Background(), candidate(t, "100.00", "USD", "key-1"))
	require.ErrorIs(t, err, errStorageDown)
	assert.Equal(t, 0, gateway.callCount())
}

func TestGetIntent(t *testing.T) {
	store := newMemStore()
	proc := newTestProcessor(store, &fakeGateway{}, 3)
	ctx := context.Background()

	created, err := proc.Submit(ctx, candidate(t, "100.00", "USD", "key-1"))
	require.NoError(t, err)

	got, err := proc.GetIntent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = proc.GetIntent(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}
