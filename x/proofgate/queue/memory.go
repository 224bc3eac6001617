package queue

import (
	"context"
	"sync"
	"time"
)

// NewMemoryQueue returns an in-memory Queue, grounded on the in-memory
// WAL manager's mutex-guarded slice shape. Dequeue removes a message from
// the backlog; it is delivered again only when the consumer calls
// RequeueWithDelay, so a message dequeued before a crash is lost.
func NewMemoryQueue(cfg Config) Queue {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &memoryQueue{
		cfg:      cfg,
		attempts: make(map[string]int),
		notify:   make(chan struct{}, 1),
	}
}

type memoryQueue struct {
	mu       sync.Mutex
	cfg      Config
	messages []*Message
	attempts map[string]int // per-jobID high-water mark, carried across requeues
	notify   chan struct{}
}

func (q *memoryQueue) Enqueue(_ context.Context, jobID string) error {
	q.mu.Lock()
	now := time.Now()
	q.attempts[jobID] = 0
	q.messages = append(q.messages, &Message{
		JobID:       jobID,
		Attempts:    0,
		SubmittedAt: now,
		ReadyAt:     now,
	})
	q.mu.Unlock()
	q.wake()
	return nil
}

func (q *memoryQueue) RequeueWithDelay(_ context.Context, jobID string, readyAt time.Time) error {
	q.mu.Lock()
	q.messages = append(q.messages, &Message{
		JobID:       jobID,
		Attempts:    q.attempts[jobID],
		SubmittedAt: time.Now(),
		ReadyAt:     readyAt,
	})
	q.mu.Unlock()
	q.wake()
	return nil
}

func (q *memoryQueue) Dequeue(ctx context.Context) (*Message, error) {
	for {
		q.mu.Lock()
		now := time.Now()
		for i, m := range q.messages {
			if !m.ReadyAt.After(now) {
				q.messages = append(q.messages[:i], q.messages[i+1:]...)
				q.attempts[m.JobID]++
				m.Attempts = q.attempts[m.JobID]
				q.mu.Unlock()
				return m, nil
			}
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (q *memoryQueue) Size(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages), nil
}

func (q *memoryQueue) Config() Config {
	return q.cfg
}

func (q *memoryQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
