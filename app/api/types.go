package api

import (
	"context"
	"time"

	"github.com/lysyi3m/eth-comb/app/database"
	"github.com/lysyi3m/eth-comb/app/feed"
	"github.com/lysyi3m/eth-comb/app/source"
	"github.com/lysyi3m/eth-comb/app/tasks"
)

type SourceReader interface {
	GetSource(ctx context.Context, id string) (*database.Source, error)
	ListSources(ctx context.Context) ([]database.Source, error)
	GetSourceCount(ctx context.Context) (int, error)
}

type CardReader interface {
	GetCard(ctx context.Context, id string) (*database.Card, error)
	ListCards(ctx context.Context, filter database.CardFilter) ([]database.Card, error)
	GetCardStats(ctx context.Context) (map[database.Category]int, error)
	FlagCard(ctx context.Context, cardID, reason string) (*database.Flag, error)
}

type RawItemStatter interface {
	GetRawItemStats(ctx context.Context) (database.RawItemStats, error)
}

type GeneratorInterface interface {
	Run(channel feed.Channel, cards []database.Card) (string, error)
}

var (
	_ GeneratorInterface = (*feed.Generator)(nil)
	_ SourceReader       = (*database.SourceRepository)(nil)
	_ CardReader         = (*database.CardRepository)(nil)
	_ RawItemStatter     = (*database.RawItemRepository)(nil)
)

type Handler struct {
	sourceRepo  SourceReader
	cardRepo    CardReader
	rawItemRepo RawItemStatter
	generator   GeneratorInterface
	configCache *source.ConfigCache
	scheduler   tasks.TaskSchedulerInterface
}

type CardResponse struct {
	ID              string            `json:"id"`
	SourceID        string            `json:"source_id"`
	URL             string            `json:"url"`
	Category        database.Category `json:"category"`
	Headline        string            `json:"headline"`
	Summary         string            `json:"summary"`
	Author          *string           `json:"author,omitempty"`
	PublishedAt     time.Time         `json:"published_at"`
	FetchedAt       time.Time         `json:"fetched_at"`
	Likes           *int              `json:"likes,omitempty"`
	Replies         *int              `json:"replies,omitempty"`
	Views           *int              `json:"views,omitempty"`
	FlagCount       int               `json:"flag_count"`
	Upvotes         int               `json:"upvotes"`
	Downvotes       int               `json:"downvotes"`
	IsSuspended     bool              `json:"is_suspended"`
	PipelineVersion string            `json:"pipeline_version"`
}

func newCardResponse(c database.Card) CardResponse {
	return CardResponse{
		ID:              c.ID,
		SourceID:        c.SourceID,
		URL:             c.URL,
		Category:        c.Category,
		Headline:        c.Headline,
		Summary:         c.Summary,
		Author:          c.Author,
		PublishedAt:     c.PublishedAt,
		FetchedAt:       c.FetchedAt,
		Likes:           c.Likes,
		Replies:         c.Replies,
		Views:           c.Views,
		FlagCount:       c.FlagCount,
		Upvotes:         c.Upvotes,
		Downvotes:       c.Downvotes,
		IsSuspended:     c.IsSuspended,
		PipelineVersion: c.PipelineVersion,
	}
}

type SourceResponse struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	BaseURL         string            `json:"base_url"`
	AdapterType     string            `json:"adapter_type"`
	PollInterval    string            `json:"poll_interval"`
	DefaultCategory database.Category `json:"default_category"`
	IsActive        bool              `json:"is_active"`
	IsDue           bool              `json:"is_due"`
	LastPolledAt    *time.Time        `json:"last_polled_at"`
}

type FlagRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}
