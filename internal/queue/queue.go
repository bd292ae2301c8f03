package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/maltedev/ecommerce-scraper/internal/models"
)

var ErrQueueClosed = errors.New("queue is closed")

// Task is one accepted job waiting for a worker.
type Task struct {
	JobID     string
	Target    models.Target
	CreatedAt time.Time
}

type Queue interface {
	Push(task *Task) error
	Pop(ctx context.Context) (*Task, error)
	Size() int
	Close() error
}

// InMemoryQueue is a FIFO of tasks. Pop blocks until a task arrives, the queue
// is closed, or ctx is done.
type InMemoryQueue struct {
	tasks  []*Task
	mu     sync.Mutex
	notify chan struct{}
	closed bool
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		tasks:  make([]*Task, 0),
		notify: make(chan struct{}),
	}
}

func (q *InMemoryQueue) Push(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	q.tasks = append(q.tasks, task)
	q.wakeLocked()

	return nil
}

func (q *InMemoryQueue) Pop(ctx context.Context) (*Task, error) {
	for {
		q.mu.Lock()
		if len(q.tasks) > 0 {
			task := q.tasks[0]
			q.tasks[0] = nil
			q.tasks = q.tasks[1:]
			q.mu.Unlock()
			return task, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	q.wakeLocked()

	return nil
}

// wakeLocked releases every waiting Pop. Callers hold q.mu.
func (q *InMemoryQueue) wakeLocked() {
	close(q.notify)
	q.notify = make(chan struct{})
}
