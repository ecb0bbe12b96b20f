package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/eth-comb/app/database"
	"github.com/lysyi3m/eth-comb/app/pipeline"
	"github.com/lysyi3m/eth-comb/app/source"
)

// TaskSchedulerInterface is what the API layer needs from the scheduler.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueuePoll(sourceID string) error
}

type SourceStore interface {
	UpsertSource(ctx context.Context, source database.Source) error
	GetSource(ctx context.Context, id string) (*database.Source, error)
	ListSources(ctx context.Context) ([]database.Source, error)
	UpdateLastPolledAt(ctx context.Context, id string, polledAt time.Time) error
}

type RawItemStore interface {
	UpsertRawItem(ctx context.Context, item database.RawItem) error
}

// FetcherFactory builds the adapter for a registry entry.
type FetcherFactory interface {
	New(src database.Source) (source.Fetcher, error)
}

type PipelineRunner interface {
	Run(ctx context.Context) (pipeline.Stats, error)
}

var (
	_ SourceStore    = (*database.SourceRepository)(nil)
	_ RawItemStore   = (*database.RawItemRepository)(nil)
	_ FetcherFactory = (*source.Registry)(nil)
	_ PipelineRunner = (*pipeline.Pipeline)(nil)
)
