package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"dinetab-order-services/internal/events"
	"dinetab-order-services/internal/lifecycle"
)

func TestRetryPolicyDo(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, Backoff: time.Millisecond}

	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		err := policy.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return nil
		})
		if err != nil || calls != 1 {
			t.Fatalf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := policy.Do(context.Background(), func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		if err != nil || calls != 3 {
			t.Fatalf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		wantErr := errors.New("down")
		calls := 0
		err := policy.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return wantErr
		})
		if !errors.Is(err, wantErr) || calls != 3 {
			t.Fatalf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := policy.Do(ctx, func(ctx context.Context) error {
			t.Fatal("fn called after cancellation")
			return nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	})
}

func orderEvent(seq uint64, id int64, status lifecycle.Status) events.Envelope {
	return events.Envelope{
		Seq:  seq,
		Type: events.OrderStatusChanged,
		At:   time.Now(),
		Data: map[string]any{
			"order": map[string]any{"id": id, "status": string(status)},
		},
	}
}

func TestStoreApplyInSequence(t *testing.T) {
	store := NewStore(DefaultRetryPolicy(), nil)
	store.Reset(10, nil, nil, nil)

	store.Apply(orderEvent(11, 1, lifecycle.StatusAccepted))
	store.Apply(orderEvent(12, 1, lifecycle.StatusPreparing))

	state := store.Snapshot()
	if state.Seq != 12 {
		t.Fatalf("seq = %d, want 12", state.Seq)
	}
	order, ok := state.Orders[1]
	if !ok || order.Status != lifecycle.StatusPreparing {
		t.Fatalf("order = %+v, ok = %v", order, ok)
	}
	if store.OutOfSync() {
		t.Fatal("store should be in sync")
	}
}

func TestStoreApplyGapTriggersResync(t *testing.T) {
	resyncs := 0
	store := NewStore(DefaultRetryPolicy(), func() { resyncs++ })
	store.Reset(10, nil, nil, nil)

	store.Apply(orderEvent(11, 1, lifecycle.StatusAccepted))
	store.Apply(orderEvent(13, 1, lifecycle.StatusReady))

	if !store.OutOfSync() {
		t.Fatal("gap must mark the store out of sync")
	}
	if resyncs != 1 {
		t.Fatalf("resyncs = %d, want 1", resyncs)
	}
	if got := store.Snapshot().Orders[1].Status; got != lifecycle.StatusAccepted {
		t.Fatalf("gapped event was applied, status = %s", got)
	}

	store.Reset(13, []lifecycle.Order{{ID: 1, Status: lifecycle.StatusReady}}, nil, nil)
	if store.OutOfSync() {
		t.Fatal("reset must clear the out-of-sync flag")
	}
	if got := store.Snapshot().Orders[1].Status; got != lifecycle.StatusReady {
		t.Fatalf("status after reset = %s, want READY", got)
	}
}

func TestStoreMutate(t *testing.T) {
	policy := RetryPolicy{Attempts: 2, Backoff: time.Millisecond}

	t.Run("commit on success", func(t *testing.T) {
		store := NewStore(policy, nil)
		err := store.Mutate(context.Background(),
			func(s *State) { s.Orders[1] = lifecycle.Order{ID: 1, Status: lifecycle.StatusPending} },
			func(s *State) { delete(s.Orders, 1) },
			func(ctx context.Context) error { return nil },
		)
		if err != nil {
			t.Fatalf("Mutate failed: %v", err)
		}
		if _, ok := store.Snapshot().Orders[1]; !ok {
			t.Fatal("optimistic write missing after success")
		}
	})

	t.Run("rollback on exhaustion", func(t *testing.T) {
		store := NewStore(policy, nil)
		sendErr := errors.New("backend unreachable")
		calls := 0
		err := store.Mutate(context.Background(),
			func(s *State) { s.Orders[1] = lifecycle.Order{ID: 1, Status: lifecycle.StatusPending} },
			func(s *State) { delete(s.Orders, 1) },
			func(ctx context.Context) error {
				calls++
				return sendErr
			},
		)
		if !errors.Is(err, sendErr) {
			t.Fatalf("err = %v, want %v", err, sendErr)
		}
		if calls != 2 {
			t.Fatalf("send calls = %d, want 2", calls)
		}
		if _, ok := store.Snapshot().Orders[1]; ok {
			t.Fatal("optimistic write survived rollback")
		}
	})
}
