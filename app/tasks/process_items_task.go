package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// ProcessItemsTask drains the unprocessed raw item queue through the pipeline.
// Failed items stay unprocessed and are picked up by the next run, so the task
// itself is never retried.
type ProcessItemsTask struct {
	Task
	runner PipelineRunner
}

func NewProcessItemsTask(runner PipelineRunner) *ProcessItemsTask {
	task := NewTask(TaskTypeProcessItems, "")
	task.MaxRetries = 0
	return &ProcessItemsTask{
		Task:   task,
		runner: runner,
	}
}

func (t *ProcessItemsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	stats, err := t.runner.Run(ctx)

	slog.Info("Task completed",
		"type", "ProcessItems",
		"duration", t.GetDuration(),
		"total", stats.Total,
		"published", stats.Published,
		"duplicates", stats.Duplicates,
		"failed", stats.Failed)

	if err != nil {
		return fmt.Errorf("pipeline run finished with errors: %w", err)
	}
	return nil
}
