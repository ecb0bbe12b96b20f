package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lysyi3m/eth-comb/app/database"
)

const DefaultFuzzyWindow = 6 * time.Hour

type Stage string

const (
	StageNone  Stage = ""
	StageExact Stage = "exact"
	StageFuzzy Stage = "fuzzy"
)

type CardStore interface {
	FindCardByURLHash(ctx context.Context, urlHash string) (*database.Card, error)
	FindCardsPublishedBetween(ctx context.Context, from, to time.Time) ([]database.CardHeadline, error)
}

type Match struct {
	Duplicate bool
	Stage     Stage
	CardID    string
	Headline  string
}

type Deduplicator struct {
	store       CardStore
	FuzzyWindow time.Duration
	Threshold   float64
}

func NewDeduplicator(store CardStore) *Deduplicator {
	return &Deduplicator{
		store:       store,
		FuzzyWindow: DefaultFuzzyWindow,
		Threshold:   DefaultSimilarityThreshold,
	}
}

func (d *Deduplicator) IsDuplicate(ctx context.Context, url, title string, publishedAt time.Time) (bool, error) {
	match, err := d.Check(ctx, url, title, publishedAt)
	if err != nil {
		return false, err
	}
	return match.Duplicate, nil
}

// Check runs the exact URL-hash stage and, when it misses and a title is
// given, the fuzzy headline stage over cards published in
// [publishedAt-FuzzyWindow, publishedAt].
func (d *Deduplicator) Check(ctx context.Context, url, title string, publishedAt time.Time) (Match, error) {
	existing, err := d.store.FindCardByURLHash(ctx, HashURL(url))
	if err != nil {
		return Match{}, fmt.Errorf("failed to look up card by url hash: %w", err)
	}
	if existing != nil {
		return Match{Duplicate: true, Stage: StageExact, CardID: existing.ID, Headline: existing.Headline}, nil
	}

	if strings.TrimSpace(title) == "" {
		return Match{}, nil
	}

	from := publishedAt.Add(-d.FuzzyWindow)
	candidates, err := d.store.FindCardsPublishedBetween(ctx, from, publishedAt)
	if err != nil {
		return Match{}, fmt.Errorf("failed to load cards in dedup window: %w", err)
	}

	for _, candidate := range candidates {
		if IsSimilarWithThreshold(title, candidate.Headline, d.Threshold) {
			slog.Debug("Fuzzy duplicate found",
				"url", url,
				"title", title,
				"card_id", candidate.ID,
				"headline", candidate.Headline)
			return Match{Duplicate: true, Stage: StageFuzzy, CardID: candidate.ID, Headline: candidate.Headline}, nil
		}
	}

	return Match{}, nil
}
