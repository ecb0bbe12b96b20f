package source

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lysyi3m/eth-comb/app/database"
)

// Factory builds an adapter for one registry entry.
type Factory func(base Base, opts Options) (Fetcher, error)

type Options struct {
	UserAgent   string
	Timeout     time.Duration
	GitHubToken string
	NewsAPIKey  string
	HTTPClient  *http.Client
	// RetryInterval overrides the client's first backoff delay.
	RetryInterval time.Duration
}

// defaultRPS paces adapters whose upstream APIs rate-limit aggressively.
var defaultRPS = map[AdapterType]float64{
	AdapterDiscourse: 2,
	AdapterGitHub:    1,
	AdapterReddit:    1,
	AdapterNewsAPI:   1,
}

var factories = map[AdapterType]Factory{
	AdapterRSS:       NewRSS,
	AdapterDiscourse: NewDiscourse,
	AdapterGitHub:    NewGitHub,
	AdapterHTML:      NewHTML,
	AdapterNewsAPI:   NewNewsAPI,
	AdapterReddit:    NewReddit,
	AdapterSnapshot:  NewSnapshot,
}

// Registry selects an adapter by a source's adapter type.
type Registry struct {
	factories map[AdapterType]Factory
	opts      Options
}

func NewRegistry(opts Options) *Registry {
	r := &Registry{
		factories: make(map[AdapterType]Factory, len(factories)),
		opts:      opts,
	}
	for t, f := range factories {
		r.factories[t] = f
	}
	return r
}

// Register adds or replaces the factory for t.
func (r *Registry) Register(t AdapterType, f Factory) {
	r.factories[t] = f
}

func (r *Registry) Has(adapterType string) bool {
	_, ok := r.factories[AdapterType(adapterType)]
	return ok
}

func (r *Registry) New(src database.Source) (Fetcher, error) {
	t := AdapterType(src.AdapterType)
	factory, ok := r.factories[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q (source %s)", ErrUnknownAdapter, src.AdapterType, src.ID)
	}

	rps, err := parseRPS(src.Options, defaultRPS[t])
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.ID, err)
	}

	client := NewClient(ClientOptions{
		UserAgent:     r.opts.UserAgent,
		Timeout:       r.opts.Timeout,
		RPS:           rps,
		HTTPClient:    r.opts.HTTPClient,
		RetryInterval: r.opts.RetryInterval,
	})

	base, err := NewBase(src, client)
	if err != nil {
		return nil, err
	}

	return factory(base, r.opts)
}

// parseRPS reads the optional "rps" option. Zero disables pacing.
func parseRPS(options map[string]string, fallback float64) (float64, error) {
	v, ok := options["rps"]
	if !ok {
		return fallback, nil
	}
	rps, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || rps < 0 || math.IsNaN(rps) || math.IsInf(rps, 0) {
		return 0, fmt.Errorf("invalid rps option %q", v)
	}
	return rps, nil
}

// KnownAdapter reports whether t has a built-in adapter.
func KnownAdapter(t string) bool {
	_, ok := factories[AdapterType(t)]
	return ok
}
