package store

import (
	"context"
	"database/sql"
	"sync"
)

type job struct {
	fn     func(db *sql.DB) error
	result chan error
}

// Queue executes database writes one at a time, in submission order.
// A job whose caller stopped waiting still runs in its turn, with the
// caller's context.
type Queue struct {
	db      *sql.DB
	jobs    chan *job
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewQueue starts a writer goroutine with room for size pending jobs.
func NewQueue(db *sql.DB, size int) *Queue {
	q := &Queue{
		db:      db,
		jobs:    make(chan *job, size),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.stopped)

	for {
		select {
		case j := <-q.jobs:
			j.result <- j.fn(q.db)
		case <-q.done:
			// Finish what was accepted before Close.
			for {
				select {
				case j := <-q.jobs:
					j.result <- j.fn(q.db)
				default:
					return
				}
			}
		}
	}
}

// Do enqueues fn and waits for it to finish or for ctx to end.
func (q *Queue) Do(ctx context.Context, fn func(db *sql.DB) error) error {
	j := &job{fn: fn, result: make(chan error, 1)}

	select {
	case <-q.done:
		return ErrStoreClosed
	default:
	}

	select {
	case q.jobs <- j:
	case <-q.done:
		return ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-q.stopped:
		select {
		case err := <-j.result:
			return err
		default:
			return ErrStoreClosed
		}
	}
}

// Close stops accepting jobs, drains the accepted ones and waits for the writer to exit.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.done)
	})
	<-q.stopped
}
