package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var sourceColumns = []string{
	"id", "name", "base_url", "adapter_type", "poll_interval", "default_category",
	"is_active", "last_polled_at", "options", "created_at", "updated_at",
}

type SourceRepository struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// UpsertSource inserts or refreshes a registry entry; last_polled_at is left untouched.
func (r *SourceRepository) UpsertSource(ctx context.Context, source Source) error {
	options, err := json.Marshal(nonNilOptions(source.Options))
	if err != nil {
		return fmt.Errorf("failed to encode source options: %w", err)
	}

	now := utc(time.Now())
	query, args, err := psql.Insert("source_registry").
		Columns("id", "name", "base_url", "adapter_type", "poll_interval", "default_category",
			"is_active", "options", "created_at", "updated_at").
		Values(source.ID, source.Name, source.BaseURL, source.AdapterType, source.PollInterval,
			string(source.DefaultCategory), source.IsActive, string(options), now, now).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			base_url = EXCLUDED.base_url,
			adapter_type = EXCLUDED.adapter_type,
			poll_interval = EXCLUDED.poll_interval,
			default_category = EXCLUDED.default_category,
			is_active = EXCLUDED.is_active,
			options = EXCLUDED.options,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build source upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert source %s: %w", source.ID, err)
	}

	return nil
}

func (r *SourceRepository) GetSource(ctx context.Context, id string) (*Source, error) {
	query, args, err := psql.Select(sourceColumns...).
		From("source_registry").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build source query: %w", err)
	}

	source, err := scanSource(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source %s: %w", id, err)
	}

	return source, nil
}

func (r *SourceRepository) ListSources(ctx context.Context) ([]Source, error) {
	return r.listSources(ctx, psql.Select(sourceColumns...).From("source_registry").OrderBy("id"))
}

// ListActiveSources returns active registry entries, optionally restricted to one adapter type.
func (r *SourceRepository) ListActiveSources(ctx context.Context, adapterType string) ([]Source, error) {
	builder := psql.Select(sourceColumns...).
		From("source_registry").
		Where(sq.Eq{"is_active": true}).
		OrderBy("id")
	if adapterType != "" {
		builder = builder.Where(sq.Eq{"adapter_type": adapterType})
	}

	return r.listSources(ctx, builder)
}

func (r *SourceRepository) UpdateLastPolledAt(ctx context.Context, id string, polledAt time.Time) error {
	query, args, err := psql.Update("source_registry").
		Set("last_polled_at", utc(polledAt)).
		Set("updated_at", utc(time.Now())).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build last polled update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update last polled time: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("source %s not found", id)
	}

	return nil
}

func (r *SourceRepository) GetSourceCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM source_registry").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}

func (r *SourceRepository) listSources(ctx context.Context, builder sq.SelectBuilder) ([]Source, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sources query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*Source, error) {
	var (
		s            Source
		category     string
		lastPolledAt sql.NullTime
		options      string
	)

	err := row.Scan(&s.ID, &s.Name, &s.BaseURL, &s.AdapterType, &s.PollInterval, &category,
		&s.IsActive, &lastPolledAt, &options, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	s.DefaultCategory = Category(category)
	s.LastPolledAt = timePtr(lastPolledAt)
	s.Options = map[string]string{}
	if options != "" {
		if err := json.Unmarshal([]byte(options), &s.Options); err != nil {
			return nil, fmt.Errorf("failed to decode options of source %s: %w", s.ID, err)
		}
	}

	return &s, nil
}

func nonNilOptions(options map[string]string) map[string]string {
	if options == nil {
		return map[string]string{}
	}
	return options
}
