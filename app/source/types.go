package source

import (
	"context"
	"errors"
	"time"
)

type AdapterType string

const (
	AdapterRSS       AdapterType = "rss"
	AdapterDiscourse AdapterType = "discourse"
	AdapterGitHub    AdapterType = "github"
	AdapterHTML      AdapterType = "html"
	AdapterNewsAPI   AdapterType = "newsapi"
	AdapterReddit    AdapterType = "reddit"
	AdapterSnapshot  AdapterType = "snapshot"
)

var (
	ErrTimeout        = errors.New("external call timed out")
	ErrUnknownAdapter = errors.New("unknown adapter type")
)

// FetchResult is one document pulled from an external source.
type FetchResult struct {
	SourceID    string
	URL         string
	Title       string
	Text        string
	Metadata    map[string]any
	PublishedAt *time.Time
}

type Fetcher interface {
	Fetch(ctx context.Context) ([]FetchResult, error)
}

// Config is a sources/<id>.yml file.
type Config struct {
	ID              string            `yaml:"id"` // defaults to the file name without .yml
	Name            string            `yaml:"name"`
	BaseURL         string            `yaml:"base_url"`
	Adapter         string            `yaml:"adapter"`
	PollInterval    int               `yaml:"poll_interval"` // seconds
	DefaultCategory string            `yaml:"default_category"`
	Active          *bool             `yaml:"active"`
	Options         map[string]string `yaml:"options"`
}

func (c *Config) IsActive() bool {
	return c.Active == nil || *c.Active
}
