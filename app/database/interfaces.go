package database

import (
	"context"
	"time"
)

type SourceRepositoryInterface interface {
	UpsertSource(ctx context.Context, source Source) error
	GetSource(ctx context.Context, id string) (*Source, error)
	ListSources(ctx context.Context) ([]Source, error)
	ListActiveSources(ctx context.Context, adapterType string) ([]Source, error)
	UpdateLastPolledAt(ctx context.Context, id string, polledAt time.Time) error
	GetSourceCount(ctx context.Context) (int, error)
}

type RawItemRepositoryInterface interface {
	UpsertRawItem(ctx context.Context, item RawItem) error
	ListUnprocessed(ctx context.Context, limit int) ([]RawItem, error)
	MarkProcessed(ctx context.Context, id string) error
	GetRawItemStats(ctx context.Context) (RawItemStats, error)
}

type CardRepositoryInterface interface {
	InsertCard(ctx context.Context, card *Card) error
	GetCard(ctx context.Context, id string) (*Card, error)
	FindCardByURLHash(ctx context.Context, urlHash string) (*Card, error)
	FindCardsPublishedBetween(ctx context.Context, from, to time.Time) ([]CardHeadline, error)
	ListCards(ctx context.Context, filter CardFilter) ([]Card, error)
	GetCardStats(ctx context.Context) (map[Category]int, error)
	FlagCard(ctx context.Context, cardID, reason string) (*Flag, error)
}

var (
	_ SourceRepositoryInterface  = (*SourceRepository)(nil)
	_ RawItemRepositoryInterface = (*RawItemRepository)(nil)
	_ CardRepositoryInterface    = (*CardRepository)(nil)
)
