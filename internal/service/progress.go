package service

import (
	"context"

	"github.com/digestmail/digestmail/internal/logger"
	"github.com/digestmail/digestmail/internal/model"
)

// ProgressReporter receives the state of a run after every recipient
type ProgressReporter interface {
	Report(ctx context.Context, p model.Progress)
}

// ProgressFunc adapts a function to ProgressReporter
type ProgressFunc func(ctx context.Context, p model.Progress)

// Report calls f(ctx, p)
func (f ProgressFunc) Report(ctx context.Context, p model.Progress) {
	f(ctx, p)
}

// ProgressStore keeps the latest progress of each run for later polling.
// Implemented by repository.MemoryProgressStore and repository.RedisProgressStore.
type ProgressStore interface {
	Put(ctx context.Context, p model.Progress) error
	Get(ctx context.Context, runID string) (*model.Progress, error)
}

// StoreReporter writes progress to a ProgressStore. Store failures are
// logged and never interrupt a run.
func StoreReporter(store ProgressStore, log *logger.Logger) ProgressReporter {
	return ProgressFunc(func(ctx context.Context, p model.Progress) {
		if err := store.Put(ctx, p); err != nil {
			log.Warn().Err(err).Str("run_id", p.RunID).Msg("failed to store progress")
		}
	})
}

// MultiReporter fans progress out to every non-nil reporter
func MultiReporter(reporters ...ProgressReporter) ProgressReporter {
	return ProgressFunc(func(ctx context.Context, p model.Progress) {
		for _, r := range reporters {
			if r != nil {
				r.Report(ctx, p)
			}
		}
	})
}
