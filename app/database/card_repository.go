package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var cardColumns = []string{
	"id", "source_id", "url", "url_hash", "category", "headline", "summary", "author",
	"published_at", "fetched_at", "likes", "replies", "views", "flag_count", "upvotes",
	"downvotes", "is_suspended", "pipeline_version", "created_at",
}

type CardRepository struct {
	db *DB
}

func NewCardRepository(db *DB) *CardRepository {
	return &CardRepository{db: db}
}

// InsertCard persists a new card. A url_hash collision returns ErrCardExists.
func (r *CardRepository) InsertCard(ctx context.Context, card *Card) error {
	if !card.Category.Valid() {
		return fmt.Errorf("invalid card category: %q", card.Category)
	}
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = time.Now().UTC()
	}

	query, args, err := psql.Insert("cards").
		Columns(cardColumns...).
		Values(card.ID, card.SourceID, card.URL, card.URLHash, string(card.Category), card.Headline,
			card.Summary, nullableString(card.Author), utc(card.PublishedAt), utc(card.FetchedAt),
			nullableInt(card.Likes), nullableInt(card.Replies), nullableInt(card.Views),
			card.FlagCount, card.Upvotes, card.Downvotes, card.IsSuspended, card.PipelineVersion,
			utc(card.CreatedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build card insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrCardExists, card.URLHash)
		}
		return fmt.Errorf("failed to insert card: %w", err)
	}

	return nil
}

func (r *CardRepository) FindCardByURLHash(ctx context.Context, urlHash string) (*Card, error) {
	return r.findOne(ctx, sq.Eq{"url_hash": urlHash})
}

func (r *CardRepository) GetCard(ctx context.Context, id string) (*Card, error) {
	return r.findOne(ctx, sq.Eq{"id": id})
}

// FindCardsPublishedBetween returns headlines of cards with published_at in [from, to].
func (r *CardRepository) FindCardsPublishedBetween(ctx context.Context, from, to time.Time) ([]CardHeadline, error) {
	query, args, err := psql.Select("id", "headline", "published_at").
		From("cards").
		Where(sq.GtOrEq{"published_at": utc(from)}).
		Where(sq.LtOrEq{"published_at": utc(to)}).
		OrderBy("published_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build window query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards in window: %w", err)
	}
	defer rows.Close()

	var headlines []CardHeadline
	for rows.Next() {
		var h CardHeadline
		if err := rows.Scan(&h.ID, &h.Headline, &h.PublishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan headline row: %w", err)
		}
		h.PublishedAt = h.PublishedAt.UTC()
		headlines = append(headlines, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating headline rows: %w", err)
	}

	return headlines, nil
}

// ListCards returns the newest cards first.
func (r *CardRepository) ListCards(ctx context.Context, filter CardFilter) ([]Card, error) {
	builder := psql.Select(cardColumns...).
		From("cards").
		OrderBy("published_at DESC", "id ASC")
	if filter.Category != "" {
		builder = builder.Where(sq.Eq{"category": string(filter.Category)})
	}
	if !filter.IncludeSuspended {
		builder = builder.Where(sq.Eq{"is_suspended": false})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build cards query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, card)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating card rows: %w", err)
	}

	return cards, nil
}

// GetCardStats returns card counts per category.
func (r *CardRepository) GetCardStats(ctx context.Context) (map[Category]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT category, COUNT(*) FROM cards GROUP BY category")
	if err != nil {
		return nil, fmt.Errorf("failed to get card stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Category]int, len(Categories))
	for rows.Next() {
		var (
			category string
			count    int
		)
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan card stats row: %w", err)
		}
		stats[Category(category)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating card stats rows: %w", err)
	}

	return stats, nil
}

// FlagCard records a moderation flag and bumps the card's flag counter atomically.
func (r *CardRepository) FlagCard(ctx context.Context, cardID, reason string) (*Flag, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	update, args, err := psql.Update("cards").
		Set("flag_count", sq.Expr("flag_count + 1")).
		Where(sq.Eq{"id": cardID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build flag update: %w", err)
	}

	res, err := tx.ExecContext(ctx, update, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to increment flag count: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	} else if n == 0 {
		return nil, ErrCardNotFound
	}

	flag := &Flag{
		ID:        uuid.NewString(),
		CardID:    cardID,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}

	insert, args, err := psql.Insert("flags").
		Columns("id", "card_id", "reason", "created_at").
		Values(flag.ID, flag.CardID, flag.Reason, utc(flag.CreatedAt)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build flag insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return nil, fmt.Errorf("failed to insert flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit flag: %w", err)
	}

	return flag, nil
}

func (r *CardRepository) findOne(ctx context.Context, where sq.Eq) (*Card, error) {
	query, args, err := psql.Select(cardColumns...).
		From("cards").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build card query: %w", err)
	}

	card, err := scanCard(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}

	return &card, nil
}

func scanCard(row rowScanner) (Card, error) {
	var (
		c        Card
		category string
		author   sql.NullString
		likes    sql.NullInt64
		replies  sql.NullInt64
		views    sql.NullInt64
	)

	err := row.Scan(&c.ID, &c.SourceID, &c.URL, &c.URLHash, &category, &c.Headline, &c.Summary,
		&author, &c.PublishedAt, &c.FetchedAt, &likes, &replies, &views, &c.FlagCount,
		&c.Upvotes, &c.Downvotes, &c.IsSuspended, &c.PipelineVersion, &c.CreatedAt)
	if err != nil {
		return Card{}, err
	}

	c.Category = Category(category)
	c.Author = stringPtr(author)
	c.Likes = intPtr(likes)
	c.Replies = intPtr(replies)
	c.Views = intPtr(views)
	c.PublishedAt = c.PublishedAt.UTC()
	c.FetchedAt = c.FetchedAt.UTC()
	c.CreatedAt = c.CreatedAt.UTC()

	return c, nil
}
