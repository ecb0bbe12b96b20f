package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var rawItemColumns = []string{
	"id", "source_id", "url", "raw_title", "raw_text", "raw_metadata", "fetched_at", "processed", "created_at",
}

type RawItemRepository struct {
	db *DB
}

func NewRawItemRepository(db *DB) *RawItemRepository {
	return &RawItemRepository{db: db}
}

// UpsertRawItem stores a fetched document keyed by its canonical URL. Content
// columns are refreshed on conflict; the processed flag is never reset.
func (r *RawItemRepository) UpsertRawItem(ctx context.Context, item RawItem) error {
	metadata := item.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode raw metadata: %w", err)
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.FetchedAt.IsZero() {
		item.FetchedAt = time.Now()
	}

	query, args, err := psql.Insert("raw_items").
		Columns("id", "source_id", "url", "raw_title", "raw_text", "raw_metadata", "fetched_at", "processed", "created_at").
		Values(item.ID, item.SourceID, item.URL, nullableString(item.Title), nullableString(item.Text),
			string(encoded), utc(item.FetchedAt), false, utc(time.Now())).
		Suffix(`ON CONFLICT (url) DO UPDATE SET
			raw_title = EXCLUDED.raw_title,
			raw_text = EXCLUDED.raw_text,
			raw_metadata = EXCLUDED.raw_metadata`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build raw item upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert raw item %s: %w", item.URL, err)
	}

	return nil
}

// ListUnprocessed returns the oldest unprocessed raw items first.
func (r *RawItemRepository) ListUnprocessed(ctx context.Context, limit int) ([]RawItem, error) {
	builder := psql.Select(rawItemColumns...).
		From("raw_items").
		Where(sq.Eq{"processed": false}).
		OrderBy("fetched_at ASC", "id ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build unprocessed query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed raw items: %w", err)
	}
	defer rows.Close()

	var items []RawItem
	for rows.Next() {
		item, err := scanRawItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raw item row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating raw item rows: %w", err)
	}

	return items, nil
}

func (r *RawItemRepository) GetRawItemByURL(ctx context.Context, url string) (*RawItem, error) {
	query, args, err := psql.Select(rawItemColumns...).
		From("raw_items").
		Where(sq.Eq{"url": url}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build raw item query: %w", err)
	}

	item, err := scanRawItem(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raw item: %w", err)
	}

	return &item, nil
}

func (r *RawItemRepository) MarkProcessed(ctx context.Context, id string) error {
	query, args, err := psql.Update("raw_items").
		Set("processed", true).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build mark processed update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark raw item %s processed: %w", id, err)
	}

	return nil
}

func (r *RawItemRepository) GetRawItemStats(ctx context.Context) (RawItemStats, error) {
	var stats RawItemStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN processed THEN 0 ELSE 1 END), 0) AS unprocessed
		FROM raw_items
	`).Scan(&stats.Total, &stats.Unprocessed)
	if err != nil {
		return RawItemStats{}, fmt.Errorf("failed to get raw item stats: %w", err)
	}

	return stats, nil
}

func scanRawItem(row rowScanner) (RawItem, error) {
	var (
		item     RawItem
		title    sql.NullString
		text     sql.NullString
		metadata string
	)

	err := row.Scan(&item.ID, &item.SourceID, &item.URL, &title, &text, &metadata,
		&item.FetchedAt, &item.Processed, &item.CreatedAt)
	if err != nil {
		return RawItem{}, err
	}

	item.Title = stringPtr(title)
	item.Text = stringPtr(text)
	item.FetchedAt = item.FetchedAt.UTC()
	item.Metadata = map[string]any{}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &item.Metadata); err != nil {
			return RawItem{}, fmt.Errorf("failed to decode metadata of %s: %w", item.URL, err)
		}
	}

	return item, nil
}
