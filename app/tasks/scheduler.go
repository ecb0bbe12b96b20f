package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/eth-comb/app/pipeline"
	"github.com/lysyi3m/eth-comb/app/source"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	defaultQueueSize   = 300
	defaultTaskTimeout = 5 * time.Minute
)

type SchedulerConfig struct {
	Interval    time.Duration
	WorkerCount int
	TaskTimeout time.Duration
}

type Scheduler struct {
	configCache *source.ConfigCache
	sourceRepo  SourceStore
	rawItemRepo RawItemStore
	registry    FetcherFactory
	runner      PipelineRunner
	interval    time.Duration
	workerCount int
	taskTimeout time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
	processing  atomic.Bool
}

func NewScheduler(configCache *source.ConfigCache, sourceRepo SourceStore, rawItemRepo RawItemStore,
	registry FetcherFactory, runner PipelineRunner, cfg SchedulerConfig) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaultTaskTimeout
	}

	return &Scheduler{
		configCache: configCache,
		sourceRepo:  sourceRepo,
		rawItemRepo: rawItemRepo,
		registry:    registry,
		runner:      runner,
		interval:    cfg.Interval,
		workerCount: cfg.WorkerCount,
		taskTimeout: cfg.TaskTimeout,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, defaultQueueSize),
	}
}

func (s *Scheduler) Start() {
	s.SyncConfigs(s.ctx)

	// Start workers
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// Poll right away, then on every tick
		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// EnqueuePoll queues an out-of-schedule poll followed by a pipeline run.
func (s *Scheduler) EnqueuePoll(sourceID string) error {
	if err := s.EnqueueTask(NewPollSourceTask(sourceID, s.sourceRepo, s.rawItemRepo, s.registry)); err != nil {
		return err
	}
	s.enqueueProcessing()
	return nil
}

// SyncConfigs upserts every cached source config into the registry table.
// It runs inline so that polls never see a half-synced registry.
func (s *Scheduler) SyncConfigs(ctx context.Context) {
	if s.configCache == nil {
		return
	}

	configs := s.configCache.GetConfigs()
	if len(configs) == 0 {
		slog.Debug("No source configurations found")
		return
	}

	slog.Debug("Syncing source configurations", "count", len(configs))

	for _, config := range configs {
		task := NewSyncSourceConfigTask(config, s.sourceRepo)
		task.Start()
		if err := task.Execute(ctx); err != nil {
			slog.Warn("Failed to sync source config", "source", config.ID, "error", err)
		}
	}
}

// RunOnce polls every due source, then runs the pipeline a single time.
// It only returns an error when the store could not be read.
func (s *Scheduler) RunOnce(ctx context.Context) (pipeline.Stats, error) {
	s.SyncConfigs(ctx)

	due, err := s.dueSources(ctx)
	if err != nil {
		return pipeline.Stats{}, err
	}

	var (
		mu       sync.Mutex
		pollErrs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerCount)
	for _, id := range due {
		g.Go(func() error {
			task := NewPollSourceTask(id, s.sourceRepo, s.rawItemRepo, s.registry)
			task.Start()
			if err := task.Execute(gctx); err != nil {
				slog.Error("Poll failed", "source", id, "error", err)
				mu.Lock()
				pollErrs = append(pollErrs, fmt.Errorf("source %s: %w", id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	// Adapter failures are logged and never fail the run.
	if len(pollErrs) > 0 {
		slog.Warn("Some sources failed to poll", "failed", len(pollErrs), "due", len(due))
	}

	stats, err := s.runner.Run(ctx)
	if err != nil && !errors.Is(err, pipeline.ErrLoadBatch) {
		slog.Warn("Some items failed to process", "failed", stats.Failed, "error", err)
		return stats, nil
	}
	return stats, err
}

func (s *Scheduler) dueSources(ctx context.Context) ([]string, error) {
	sources, err := s.sourceRepo.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	now := time.Now().UTC()
	var due []string
	for _, src := range sources {
		if !src.IsActive {
			continue
		}
		if !src.IsDue(now) {
			slog.Debug("Source not due yet", "source", src.ID, "last_polled_at", src.LastPolledAt)
			continue
		}
		due = append(due, src.ID)
	}
	return due, nil
}

func (s *Scheduler) enqueueTasks() {
	due, err := s.dueSources(s.ctx)
	if err != nil {
		slog.Warn("Failed to load sources, skipping tick", "error", err)
		return
	}

	for _, id := range due {
		task := NewPollSourceTask(id, s.sourceRepo, s.rawItemRepo, s.registry)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue PollSourceTask", "source", id, "error", err)
		}
	}

	s.enqueueProcessing()
}

// enqueueProcessing keeps at most one pipeline run queued or in flight.
func (s *Scheduler) enqueueProcessing() {
	if !s.processing.CompareAndSwap(false, true) {
		return
	}
	if err := s.EnqueueTask(NewProcessItemsTask(s.runner)); err != nil {
		s.processing.Store(false)
		slog.Warn("Failed to enqueue ProcessItemsTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	if task.GetType() == TaskTypeProcessItems {
		defer s.processing.Store(false)
	}

	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	// Permanent errors and exhausted tasks are dropped
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) || !task.CanRetry() {
		slog.Error("Task failed without further retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	// Schedule retry with backoff
	task.IncrementRetryCount()
	delay := retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", delay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
