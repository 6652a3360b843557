package events

import (
	"context"
	"time"

	"market-delivery/internal/logger"
)

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type OutboxRepository interface {
	FetchPending(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []string) error
}

// OutboxWorker relays committed events to the publisher. Events that fail
// to publish stay pending and are retried on the next tick.
type OutboxWorker struct {
	Repo         OutboxRepository
	Publisher    Publisher
	PollInterval time.Duration
	BatchSize    int
	Logger       *logger.Logger
}

func (w *OutboxWorker) Start(ctx context.Context) error {
	if w.Logger == nil {
		w.Logger = logger.Nop()
	}
	if w.PollInterval <= 0 {
		w.PollInterval = time.Second
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 50
	}

	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.RelayOnce(ctx)
		}
	}
}

// RelayOnce publishes one batch and returns how many events went out.
func (w *OutboxWorker) RelayOnce(ctx context.Context) int {
	if w.Logger == nil {
		w.Logger = logger.Nop()
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 50
	}
	evts, err := w.Repo.FetchPending(ctx, w.BatchSize)
	if err != nil {
		w.Logger.Error("outbox fetch error: %v", err)
		return 0
	}
	if len(evts) == 0 {
		return 0
	}
	published := make([]string, 0, len(evts))
	for _, evt := range evts {
		if err := w.Publisher.Publish(ctx, evt); err != nil {
			w.Logger.Warn("publish error id=%s type=%s: %v", evt.ID, evt.Type, err)
			continue
		}
		published = append(published, evt.ID)
	}
	if len(published) == 0 {
		return 0
	}
	if err := w.Repo.MarkPublished(ctx, published); err != nil {
		w.Logger.Error("mark published error: %v", err)
		return 0
	}
	w.Logger.Debug("outbox relayed %d events", len(published))
	return len(published)
}
