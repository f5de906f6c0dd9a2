package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type statsView struct {
	Upcoming int
}

func TestStore_GetOrLoad_SharesConcurrentLoads(t *testing.T) {
	t.Parallel()

	store := NewStore[statsView](time.Minute)
	var calls atomic.Int32

	loader := func(context.Context) (statsView, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return statsView{Upcoming: 7}, nil
	}

	const workers = 32
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, err := store.GetOrLoad(context.Background(), "stats", loader)
			if err != nil {
				errCh <- err
				return
			}
			if v.Upcoming != 7 {
				errCh <- errUnexpectedValue
			}
		}()
	}

	close(start)
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := calls.Load(); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
}

func TestStore_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	store := NewStore[int](time.Minute)
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Set(context.Background(), "k", 1)
	if v, ok := store.Get(context.Background(), "k"); !ok || v != 1 {
		t.Fatalf("expected cached value, got %d ok=%v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := store.Get(context.Background(), "k"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestStore_LoaderErrorIsNotCached(t *testing.T) {
	t.Parallel()

	store := NewStore[int](time.Minute)
	var calls atomic.Int32
	loadErr := errors.New("db down")

	loader := func(context.Context) (int, error) {
		if calls.Add(1) == 1 {
			return 0, loadErr
		}
		return 3, nil
	}

	if _, err := store.GetOrLoad(context.Background(), "k", loader); !errors.Is(err, loadErr) {
		t.Fatalf("expected loader error, got %v", err)
	}
	v, err := store.GetOrLoad(context.Background(), "k", loader)
	if err != nil || v != 3 {
		t.Fatalf("expected reload after error, got v=%d err=%v", v, err)
	}
}

func TestStore_DeletePrefix(t *testing.T) {
	t.Parallel()

	store := NewStore[int](0)
	store.Set(context.Background(), "stats:all", 1)
	store.Set(context.Background(), "stats:recent", 2)
	store.Set(context.Background(), "other", 3)

	store.DeletePrefix(context.Background(), "stats:")

	if _, ok := store.Get(context.Background(), "stats:all"); ok {
		t.Fatalf("expected stats:all removed")
	}
	if _, ok := store.Get(context.Background(), "other"); !ok {
		t.Fatalf("expected other to survive")
	}
}

var errUnexpectedValue = errors.New("unexpected loaded value")
