package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zjoart/go-databundle-store/pkg/logger"
	"github.com/zjoart/go-databundle-store/pkg/metrics"
)

var ErrQueueFull = errors.New("local webhook queue is full")

// LocalQueue is the in-process stand-in for redis when REDIS_URL is unset.
// Events do not survive a restart.
type LocalQueue struct {
	ch chan []byte

	mu   sync.Mutex
	dead [][]byte
}

func NewLocalQueue(size int) *LocalQueue {
	return &LocalQueue{ch: make(chan []byte, size)}
}

func (q *LocalQueue) Publish(ctx context.Context, event WebhookEvent) error {
	data, err := encode(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	select {
	case q.ch <- data:
		metrics.WorkerQueueDepth.Set(float64(len(q.ch)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *LocalQueue) Next(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data := <-q.ch:
		metrics.WorkerQueueDepth.Set(float64(len(q.ch)))
		return data, nil
	case <-timer.C:
		return nil, ErrEmpty
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *LocalQueue) PushToDLQ(ctx context.Context, data []byte) error {
	q.mu.Lock()
	q.dead = append(q.dead, data)
	q.mu.Unlock()
	logger.Error("Webhook event dead-lettered", logger.Fields{"data": string(data)})
	return nil
}

func (q *LocalQueue) Len() int {
	return len(q.ch)
}

// Drain waits until the workers have taken every queued event or ctx ends.
// It returns the number of events still queued.
func (q *LocalQueue) Drain(ctx context.Context) int {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for q.Len() > 0 {
		select {
		case <-ctx.Done():
			return q.Len()
		case <-ticker.C:
		}
	}
	return 0
}

// DeadLetters returns a copy of the dead-lettered payloads.
func (q *LocalQueue) DeadLetters() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([][]byte, len(q.dead))
	copy(out, q.dead)
	return out
}
