package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/go-databundle-store/pkg/events"
)

type flakyProcessor struct {
	mu       sync.Mutex
	failures int
	calls    int
	done     chan struct{}
}

func (p *flakyProcessor) ProcessWebhook(ctx context.Context, ev events.WebhookEvent) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		if p.calls == maxRetries {
			close(p.done)
		}
		return Result{}, errors.New("database unavailable")
	}
	close(p.done)
	return Result{Outcome: Credited}, nil
}

func startWorker(t *testing.T, q events.Queue, p webhookProcessor) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWebhookWorker(q, p, 1)
	w.Backoff = func(int) time.Duration { return time.Millisecond }
	w.PollTimeout = 20 * time.Millisecond
	w.Start(ctx)
	t.Cleanup(func() {
		cancel()
		w.Wait()
	})
}

func TestWorkerRetriesThenSucceeds(t *testing.T) {
	q := events.NewLocalQueue(4)
	p := &flakyProcessor{failures: 2, done: make(chan struct{})}
	startWorker(t, q, p)

	require.NoError(t, q.Publish(context.Background(), events.WebhookEvent{Event: EventChargeSuccess, Reference: "PS-1"}))

	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not processed")
	}
	p.mu.Lock()
	assert.Equal(t, 3, p.calls)
	p.mu.Unlock()
	assert.Empty(t, q.DeadLetters())
}

func TestWorkerDeadLettersAfterRetries(t *testing.T) {
	q := events.NewLocalQueue(4)
	p := &flakyProcessor{failures: 100, done: make(chan struct{})}
	startWorker(t, q, p)

	require.NoError(t, q.Publish(context.Background(), events.WebhookEvent{Event: EventChargeSuccess, Reference: "PS-2"}))

	assert.Eventually(t, func() bool { return len(q.DeadLetters()) == 1 }, 2*time.Second, 5*time.Millisecond)
	p.mu.Lock()
	assert.Equal(t, maxRetries, p.calls)
	p.mu.Unlock()
}

type localQueueWithGarbage struct {
	*events.LocalQueue
	once sync.Once
}

func (q *localQueueWithGarbage) Next(ctx context.Context, timeout time.Duration) ([]byte, error) {
	var data []byte
	q.once.Do(func() { data = []byte("{not json") })
	if data != nil {
		return data, nil
	}
	return q.LocalQueue.Next(ctx, timeout)
}

func TestWorkerDeadLettersMalformedEvents(t *testing.T) {
	inner := events.NewLocalQueue(1)
	q := &localQueueWithGarbage{LocalQueue: inner}
	startWorker(t, q, &flakyProcessor{done: make(chan struct{})})

	assert.Eventually(t, func() bool { return len(inner.DeadLetters()) == 1 }, 2*time.Second, 5*time.Millisecond)
}
