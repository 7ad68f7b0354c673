package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/watchlist/internal/logger"
)

// Flushable is a store holding durable writes that may need a retry.
type Flushable interface {
	Dirty() bool
	Flush(ctx context.Context) error
}

// BookmarkFlusher periodically retries failed durable bookmark writes
type BookmarkFlusher struct {
	store         Flushable
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
}

// NewBookmarkFlusher creates a new bookmark flusher
func NewBookmarkFlusher(
	store Flushable,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *BookmarkFlusher {
	return &BookmarkFlusher{
		store:         store,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic flush loop
func (bf *BookmarkFlusher) Start(ctx context.Context) error {
	ticker := time.NewTicker(bf.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				bf.flushIfDirty(ctx)
			case <-bf.manualTrigger:
				bf.logger.Info("manual bookmark flush triggered")
				bf.flushIfDirty(ctx)
			case <-bf.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the loop and makes a last flush attempt
func (bf *BookmarkFlusher) Stop(ctx context.Context) {
	bf.stopOnce.Do(func() {
		close(bf.stopCh)
	})
	bf.flushIfDirty(ctx)
}

// flushIfDirty retries pending writes, if any
func (bf *BookmarkFlusher) flushIfDirty(ctx context.Context) {
	if !bf.store.Dirty() {
		return
	}

	if err := bf.store.Flush(ctx); err != nil {
		bf.logger.Warn("bookmark flush failed, will retry",
			logger.Error(err))
		return
	}
	bf.logger.Info("pending bookmark writes flushed")
}
