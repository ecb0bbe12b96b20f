package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/eth-comb/app/classify"
	"github.com/lysyi3m/eth-comb/app/database"
	"github.com/lysyi3m/eth-comb/app/dedup"
	"github.com/lysyi3m/eth-comb/app/entity"
	"github.com/lysyi3m/eth-comb/app/normalize"
	"github.com/lysyi3m/eth-comb/app/summarize"
)

const (
	DefaultBatchSize  = 100
	DefaultWorkers    = 2
	maxHeadlineLength = 140
)

// ErrLoadBatch marks a run that could not read its batch from the store.
var ErrLoadBatch = errors.New("failed to load unprocessed raw items")

type Outcome string

const (
	OutcomePublished        Outcome = "published"
	OutcomeSkippedEmpty     Outcome = "skipped_empty"
	OutcomeRejectedEntities Outcome = "rejected_entities"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeFailed           Outcome = "failed"
)

type RawItemStore interface {
	ListUnprocessed(ctx context.Context, limit int) ([]database.RawItem, error)
	MarkProcessed(ctx context.Context, id string) error
}

type CardStore interface {
	dedup.CardStore
	InsertCard(ctx context.Context, card *database.Card) error
}

// Deps wires the collaborators of a pipeline run.
type Deps struct {
	RawItems   RawItemStore
	Cards      CardStore
	Summarizer summarize.Summarizer
	Classifier *classify.Classifier
	Normalizer *normalize.Normalizer
	Checker    *entity.Checker
	Logger     *slog.Logger
}

type Config struct {
	BatchSize int
	Workers   int
	Version   string
}

type Pipeline struct {
	rawItems   RawItemStore
	cards      CardStore
	summarizer summarize.Summarizer
	classifier *classify.Classifier
	normalizer *normalize.Normalizer
	checker    *entity.Checker
	dedup      *dedup.Deduplicator
	logger     *slog.Logger
	cfg        Config
}

func New(deps Deps, cfg Config) *Pipeline {
	p := &Pipeline{
		rawItems:   deps.RawItems,
		cards:      deps.Cards,
		summarizer: deps.Summarizer,
		classifier: deps.Classifier,
		normalizer: deps.Normalizer,
		checker:    deps.Checker,
		dedup:      dedup.NewDeduplicator(deps.Cards),
		logger:     deps.Logger,
		cfg:        cfg,
	}

	if p.classifier == nil {
		p.classifier = classify.NewClassifier()
	}
	if p.normalizer == nil {
		p.normalizer = normalize.NewNormalizer()
	}
	if p.checker == nil {
		p.checker = entity.NewChecker()
	}
	if p.summarizer == nil {
		p.summarizer = summarize.NewExtractive(0)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.cfg.BatchSize <= 0 {
		p.cfg.BatchSize = DefaultBatchSize
	}
	if p.cfg.Workers <= 0 {
		p.cfg.Workers = DefaultWorkers
	}

	return p
}

// Deduplicator exposes the dedup engine so callers can tune its window.
func (p *Pipeline) Deduplicator() *dedup.Deduplicator {
	return p.dedup
}

type Stats struct {
	Total            int `json:"total"`
	Published        int `json:"published"`
	SkippedEmpty     int `json:"skipped_empty"`
	RejectedEntities int `json:"rejected_entities"`
	Duplicates       int `json:"duplicates"`
	Failed           int `json:"failed"`
}

func (s *Stats) add(o Outcome) {
	s.Total++
	switch o {
	case OutcomePublished:
		s.Published++
	case OutcomeSkippedEmpty:
		s.SkippedEmpty++
	case OutcomeRejectedEntities:
		s.RejectedEntities++
	case OutcomeDuplicate:
		s.Duplicates++
	case OutcomeFailed:
		s.Failed++
	}
}

// Run processes one batch of unprocessed raw items on a bounded worker pool.
// Per-item failures do not stop the batch; they are joined into the
// returned error and the items stay unprocessed.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	items, err := p.rawItems.ListUnprocessed(ctx, p.cfg.BatchSize)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %w", ErrLoadBatch, err)
	}
	if len(items) == 0 {
		return Stats{}, nil
	}

	var (
		mu    sync.Mutex
		stats Stats
		errs  []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for _, raw := range items {
		g.Go(func() error {
			outcome, err := p.Process(gctx, raw)

			mu.Lock()
			defer mu.Unlock()
			stats.add(outcome)
			if err != nil {
				errs = append(errs, err)
			}
			return nil
		})
	}
	g.Wait()

	p.logger.Info("Pipeline run completed",
		"total", stats.Total,
		"published", stats.Published,
		"duplicates", stats.Duplicates,
		"rejected", stats.RejectedEntities,
		"skipped", stats.SkippedEmpty,
		"failed", stats.Failed)

	return stats, errors.Join(errs...)
}

// Process takes one raw item through normalize, classify, summarize, entity
// check, dedup check and card insert. The raw item is marked processed for
// every decided outcome; on error it is left for the next run.
func (p *Pipeline) Process(ctx context.Context, raw database.RawItem) (Outcome, error) {
	log := p.logger.With("raw_item", raw.ID, "source", raw.SourceID, "url", raw.URL)

	item, ok := p.normalizer.Normalize(raw)
	if !ok {
		log.Debug("Raw item has no content, skipping")
		return p.finish(ctx, raw, OutcomeSkippedEmpty)
	}

	category := p.classifier.Classify(item.SourceID)

	summary, err := p.summarizer.Summarize(ctx, item.FullText)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to summarize %s: %w", raw.URL, err)
	}

	check := p.checker.Check(item.FullText, summary)
	if !check.Passed {
		log.Warn("Summary dropped entities, rejecting",
			"missing", check.Missing,
			"critical", check.Critical,
			"rate", check.Rate)
		return p.finish(ctx, raw, OutcomeRejectedEntities)
	}

	// Untitled items only get the exact URL stage.
	match, err := p.dedup.Check(ctx, item.URL, item.Title, item.PublishedAt)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed dedup check for %s: %w", raw.URL, err)
	}
	if match.Duplicate {
		log.Debug("Duplicate item", "stage", match.Stage, "card_id", match.CardID)
		return p.finish(ctx, raw, OutcomeDuplicate)
	}

	card := &database.Card{
		SourceID:        item.SourceID,
		URL:             item.URL,
		URLHash:         dedup.HashURL(item.URL),
		Category:        category,
		Headline:        Headline(item),
		Summary:         summary,
		Author:          item.Author,
		PublishedAt:     item.PublishedAt,
		FetchedAt:       raw.FetchedAt,
		PipelineVersion: p.cfg.Version,
	}
	if e := item.Engagement; e != nil {
		card.Likes, card.Replies, card.Views = e.Likes, e.Replies, e.Views
	}

	if err := p.cards.InsertCard(ctx, card); err != nil {
		if errors.Is(err, database.ErrCardExists) {
			log.Debug("Card inserted concurrently, treating as duplicate")
			return p.finish(ctx, raw, OutcomeDuplicate)
		}
		return OutcomeFailed, fmt.Errorf("failed to insert card for %s: %w", raw.URL, err)
	}

	log.Info("Card published", "card_id", card.ID, "category", category)
	return p.finish(ctx, raw, OutcomePublished)
}

func (p *Pipeline) finish(ctx context.Context, raw database.RawItem, outcome Outcome) (Outcome, error) {
	if err := p.rawItems.MarkProcessed(ctx, raw.ID); err != nil {
		return OutcomeFailed, fmt.Errorf("failed to mark %s processed after %s: %w", raw.URL, outcome, err)
	}
	return outcome, nil
}

// Headline is the item title, or the first line of its text truncated to
// 140 runes when the title is empty.
func Headline(item normalize.Item) string {
	if item.Title != "" {
		return item.Title
	}

	line, _, _ := strings.Cut(strings.TrimSpace(item.FullText), "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) <= maxHeadlineLength {
		return line
	}

	runes := []rune(line)
	return strings.TrimSpace(string(runes[:maxHeadlineLength-1])) + "…"
}
