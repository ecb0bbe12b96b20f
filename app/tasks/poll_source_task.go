package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lysyi3m/eth-comb/app/database"
	"github.com/lysyi3m/eth-comb/app/source"
)

// PollSourceTask runs one adapter and stores what it returns as raw items.
type PollSourceTask struct {
	Task
	sourceRepo  SourceStore
	rawItemRepo RawItemStore
	registry    FetcherFactory
	now         func() time.Time
}

func NewPollSourceTask(sourceID string, sourceRepo SourceStore, rawItemRepo RawItemStore, registry FetcherFactory) *PollSourceTask {
	return &PollSourceTask{
		Task:        NewTask(TaskTypePollSource, sourceID),
		sourceRepo:  sourceRepo,
		rawItemRepo: rawItemRepo,
		registry:    registry,
		now:         time.Now,
	}
}

func (t *PollSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	src, err := t.sourceRepo.GetSource(ctx, t.SourceID)
	if err != nil {
		return fmt.Errorf("failed to load source: %w", err)
	}
	if src == nil {
		return backoff.Permanent(fmt.Errorf("source %s not found", t.SourceID))
	}
	if !src.IsActive {
		slog.Debug("Source inactive, skipping", "source", t.SourceID)
		return nil
	}

	fetcher, err := t.registry.New(*src)
	if err != nil {
		if errors.Is(err, source.ErrUnknownAdapter) {
			return backoff.Permanent(err)
		}
		return fmt.Errorf("failed to build adapter: %w", err)
	}

	// Items published while the fetch is in flight belong to the next poll.
	polledAt := t.now().UTC()

	results, err := fetcher.Fetch(ctx)
	if err != nil {
		err = fmt.Errorf("failed to fetch source: %w", err)
		if !retryableFetchError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	stored := 0
	for _, result := range results {
		if result.URL == "" {
			continue
		}
		if err := t.rawItemRepo.UpsertRawItem(ctx, toRawItem(src.ID, result, polledAt)); err != nil {
			return fmt.Errorf("failed to store raw item: %w", err)
		}
		stored++
	}

	if err := t.sourceRepo.UpdateLastPolledAt(ctx, src.ID, polledAt); err != nil {
		return fmt.Errorf("failed to update last polled time: %w", err)
	}

	slog.Info("Task completed",
		"type", "PollSource",
		"source", t.SourceID,
		"adapter", src.AdapterType,
		"duration", t.GetDuration(),
		"fetched", len(results),
		"stored", stored)

	return nil
}

// toRawItem keeps the upstream publication time in fetched_at when the
// adapter knows it; the pipeline treats that column as the publish time.
func toRawItem(sourceID string, result source.FetchResult, polledAt time.Time) database.RawItem {
	fetchedAt := polledAt
	if result.PublishedAt != nil && !result.PublishedAt.IsZero() {
		fetchedAt = result.PublishedAt.UTC()
	}

	item := database.RawItem{
		SourceID:  sourceID,
		URL:       result.URL,
		Metadata:  result.Metadata,
		FetchedAt: fetchedAt,
	}
	if result.Title != "" {
		title := result.Title
		item.Title = &title
	}
	if result.Text != "" {
		text := result.Text
		item.Text = &text
	}
	return item
}

// retryableFetchError reports whether a failed poll is worth repeating.
// Timeouts abandon the cycle and 4xx other than 429 will not change on retry.
func retryableFetchError(err error) bool {
	if errors.Is(err, source.ErrTimeout) {
		return false
	}
	var se *source.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
