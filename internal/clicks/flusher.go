package clicks

import (
	"context"

	"github.com/jmdto/linkshort/internal/metrics"
	"github.com/jmdto/linkshort/internal/models"
	"github.com/jmdto/linkshort/pkg/logger"
)

// ClickStore is the slice of the repository the flusher needs.
type ClickStore interface {
	BatchIncrementClicks(ctx context.Context, counts map[models.ClickKey]int64) error
}

// StoreFlusher persists click batches through the link store.
type StoreFlusher struct {
	store ClickStore
	log   *logger.Logger
}

// NewStoreFlusher creates a StoreFlusher.
func NewStoreFlusher(store ClickStore, log *logger.Logger) *StoreFlusher {
	return &StoreFlusher{store: store, log: log}
}

// FlushClicks writes accumulated counts to the store. Errors are logged
// here and returned so the counter can retry the batch.
func (f *StoreFlusher) FlushClicks(ctx context.Context, counts map[models.ClickKey]int64) error {
	if len(counts) == 0 {
		return nil
	}

	if err := f.store.BatchIncrementClicks(ctx, counts); err != nil {
		if f.log != nil {
			f.log.Error("failed to flush click counts", "error", err.Error(), "codes", len(counts))
		}
		return err
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	metrics.RecordClickFlush(len(counts), total)
	if f.log != nil {
		f.log.Debug("flushed click counts", "codes", len(counts), "clicks", total)
	}
	return nil
}
