package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/eth-comb/app/source"
)

type SyncSourceConfigTask struct {
	Task
	Config     *source.Config
	sourceRepo SourceStore
}

func NewSyncSourceConfigTask(config *source.Config, sourceRepo SourceStore) *SyncSourceConfigTask {
	return &SyncSourceConfigTask{
		Task:       NewTask(TaskTypeSyncSourceConfig, config.ID),
		Config:     config,
		sourceRepo: sourceRepo,
	}
}

func (t *SyncSourceConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.sourceRepo.UpsertSource(ctx, t.Config.ToSource()); err != nil {
		return fmt.Errorf("failed to sync source config to database: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncSourceConfig",
		"source", t.SourceID,
		"duration", t.GetDuration())

	return nil
}
