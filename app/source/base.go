package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lysyi3m/eth-comb/app/database"
)

const DefaultTimeout = 30 * time.Second

// Base carries what every adapter shares: the registry entry, its parsed base
// URL and an HTTP client.
type Base struct {
	Source  database.Source
	Client  *Client
	baseURL *url.URL
}

func NewBase(src database.Source, client *Client) (Base, error) {
	u, err := url.Parse(strings.TrimSpace(src.BaseURL))
	if err != nil {
		return Base{}, fmt.Errorf("invalid base URL for %s: %w", src.ID, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Base{}, fmt.Errorf("base URL for %s must be absolute: %q", src.ID, src.BaseURL)
	}

	return Base{Source: src, Client: client, baseURL: u}, nil
}

// JoinURL resolves ref against the source base URL.
func (b Base) JoinURL(ref string) (string, error) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("invalid URL reference %q: %w", ref, err)
	}
	return b.baseURL.ResolveReference(r).String(), nil
}

// IsAfterLastPoll reports whether an item dated t is new. Undated items and
// first polls always count; otherwise t must be strictly after the watermark.
func (b Base) IsAfterLastPoll(t *time.Time) bool {
	if t == nil || b.Source.LastPolledAt == nil {
		return true
	}
	return t.After(*b.Source.LastPolledAt)
}

func (b Base) Option(key, def string) string {
	if v, ok := b.Source.Options[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (b Base) IntOption(key string, def int) int {
	v, ok := b.Source.Options[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (b Base) result(link, title, text string, published *time.Time, meta map[string]any) FetchResult {
	if meta == nil {
		meta = map[string]any{}
	}
	return FetchResult{
		SourceID:    b.Source.ID,
		URL:         link,
		Title:       strings.TrimSpace(title),
		Text:        strings.TrimSpace(text),
		Metadata:    meta,
		PublishedAt: published,
	}
}

// WithTimeout runs fn with a deadline of d (DefaultTimeout when d <= 0). When
// the deadline fires the call is abandoned and an ErrTimeout error returned,
// even if fn does not honour its context.
func WithTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	if d <= 0 {
		d = DefaultTimeout
	}

	ctx, cancel := context.WithTimeoutCause(ctx, d, ErrTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && context.Cause(ctx) == ErrTimeout {
			return fmt.Errorf("%w after %s: %v", ErrTimeout, d, err)
		}
		return err
	case <-ctx.Done():
		if context.Cause(ctx) == ErrTimeout {
			return fmt.Errorf("%w after %s", ErrTimeout, d)
		}
		return ctx.Err()
	}
}

func timeFromUnix(sec float64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(int64(sec), 0).UTC()
	return &t
}

func parseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05Z0700", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
