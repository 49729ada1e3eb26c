package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
)

func TestQueue_RunsInSubmissionOrder(t *testing.T) {
	q := NewQueue(nil, 4)
	defer q.Close()

	var mu sync.Mutex
	var order []int
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		i := i
		if err := q.Do(ctx, func(*sql.DB) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("Do failed: %v", err)
		}
	}

	for i, got := range order {
		if got != i {
			t.Fatalf("Expected job %d at position %d, got %d", i, i, got)
		}
	}
}

func TestQueue_NeverRunsJobsConcurrently(t *testing.T) {
	q := NewQueue(nil, 8)
	defer q.Close()

	var mu sync.Mutex
	active, maxActive := 0, 0
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), func(*sql.DB) error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("Expected at most one active job, saw %d", maxActive)
	}
}

func TestQueue_PropagatesErrors(t *testing.T) {
	q := NewQueue(nil, 1)
	defer q.Close()

	want := errors.New("boom")
	if err := q.Do(context.Background(), func(*sql.DB) error { return want }); !errors.Is(err, want) {
		t.Errorf("Expected %v, got %v", want, err)
	}
}

func TestQueue_RejectsAfterClose(t *testing.T) {
	q := NewQueue(nil, 1)
	q.Close()

	err := q.Do(context.Background(), func(*sql.DB) error { return nil })
	if !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Expected ErrStoreClosed, got %v", err)
	}
}

func TestQueue_CancelledContext(t *testing.T) {
	q := NewQueue(nil, 0)
	defer q.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	go q.Do(context.Background(), func(*sql.DB) error {
		close(started)
		<-block
		return nil
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Do(ctx, func(*sql.DB) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	close(block)
}
