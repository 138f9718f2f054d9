package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/zjoart/go-databundle-store/pkg/events"
	"github.com/zjoart/go-databundle-store/pkg/logger"
)

const maxRetries = 3

type webhookProcessor interface {
	ProcessWebhook(ctx context.Context, ev events.WebhookEvent) (Result, error)
}

// WebhookWorker drains the webhook queue with a fixed pool of goroutines.
type WebhookWorker struct {
	Queue     events.Queue
	Processor webhookProcessor
	Workers   int
	// Backoff is the pause before retry attempt n (1-based).
	Backoff func(attempt int) time.Duration
	// PollTimeout bounds each blocking read so shutdown is noticed.
	PollTimeout time.Duration

	wg sync.WaitGroup
}

func NewWebhookWorker(queue events.Queue, processor webhookProcessor, workers int) *WebhookWorker {
	if workers < 1 {
		workers = 1
	}
	return &WebhookWorker{
		Queue:       queue,
		Processor:   processor,
		Workers:     workers,
		Backoff:     func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
		PollTimeout: 5 * time.Second,
	}
}

func (w *WebhookWorker) Start(ctx context.Context) {
	logger.Info("Starting webhook worker...", logger.Fields{"workers": w.Workers})
	for i := 0; i < w.Workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.processEvents(ctx)
		}()
	}
}

// Wait blocks until every worker goroutine has returned after ctx is cancelled.
func (w *WebhookWorker) Wait() {
	w.wg.Wait()
}

func (w *WebhookWorker) processEvents(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		data, err := w.Queue.Next(ctx, w.PollTimeout)
		if err != nil {
			if !errors.Is(err, events.ErrEmpty) && ctx.Err() == nil {
				logger.Warn("WebhookWorker: queue read failed", logger.WithError(err))
				sleep(ctx, time.Second)
			}
			continue
		}

		var event events.WebhookEvent
		if err := json.Unmarshal(data, &event); err != nil {
			logger.Error("WebhookWorker: Failed to unmarshal event", logger.Fields{"error": err.Error(), "data": string(data)})
			w.moveToDLQ(data)
			continue
		}

		w.handleEvent(ctx, event, data)
	}
}

func (w *WebhookWorker) handleEvent(ctx context.Context, event events.WebhookEvent, raw []byte) {
	// processing finishes even if shutdown starts mid-event
	procCtx := context.WithoutCancel(ctx)
	fields := logger.Fields{"event": event.Event, logger.ReferenceKey: event.Reference}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		res, err := w.Processor.ProcessWebhook(procCtx, event)
		if err == nil {
			logger.Info("WebhookWorker: processed event", logger.Merge(fields, logger.Fields{"outcome": string(res.Outcome)}))
			return
		}

		logger.Warn("WebhookWorker: Failed to process event, retrying", logger.Merge(fields, logger.Fields{
			"attempt":       attempt,
			logger.ErrorKey: err.Error(),
		}))
		if attempt < maxRetries {
			sleep(ctx, w.Backoff(attempt))
		}
	}

	logger.Error("WebhookWorker: Max retries exhausted, moving to DLQ", fields)
	w.moveToDLQ(raw)
}

func (w *WebhookWorker) moveToDLQ(data []byte) {
	if err := w.Queue.PushToDLQ(context.Background(), data); err != nil {
		logger.Error("Worker: Failed to push to DLQ", logger.Fields{"error": err.Error()})
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
