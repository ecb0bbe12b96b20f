package cfg

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBDriver string `long:"db-driver" env:"DB_DRIVER" default:"sqlite" choice:"sqlite" choice:"postgres" description:"Database driver"`
	DBDSN    string `long:"db-dsn" env:"DB_DSN" default:"./eth-comb.db" description:"Database DSN (file path for sqlite, connection URL for postgres)"`

	// Application configuration
	SourcesDir        string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseURL           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://comb.example.org)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"0" description:"Pipeline workers (0 picks 2 for extractive, 10 for openai)"`
	PollWorkers       int    `long:"poll-workers" env:"POLL_WORKERS" default:"4" description:"Number of background workers for source polling"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Scheduler interval in seconds"`
	BatchSize         int    `long:"batch-size" env:"BATCH_SIZE" default:"100" description:"Raw items processed per pipeline run"`
	FetchTimeout      int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-fetch timeout in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	Once              bool   `long:"once" env:"RUN_ONCE" description:"Poll due sources, run the pipeline once and exit"`

	// Summarizer configuration
	SummarizerProvider string `long:"summarizer" env:"SUMMARIZER_PROVIDER" default:"extractive" choice:"extractive" choice:"openai" description:"Summarization provider"`
	SummarizerEndpoint string `long:"summarizer-endpoint" env:"SUMMARIZER_ENDPOINT" default:"https://api.openai.com/v1/chat/completions" description:"Chat completions endpoint"`
	SummarizerModel    string `long:"summarizer-model" env:"SUMMARIZER_MODEL" default:"gpt-4o-mini" description:"Summarization model"`
	SummarizerAPIKey   string `long:"summarizer-api-key" env:"SUMMARIZER_API_KEY" description:"Summarization API key"`
	SummarizerPrompt   string `long:"summarizer-prompt" env:"SUMMARIZER_PROMPT" description:"Override the summarization system prompt"`
	SummarizerTimeout  int    `long:"summarizer-timeout" env:"SUMMARIZER_TIMEOUT" default:"60" description:"Summarization request timeout in seconds"`

	// Adapter credentials
	GitHubToken string `long:"github-token" env:"GITHUB_TOKEN" description:"GitHub API token (optional, raises rate limits)"`
	NewsAPIKey  string `long:"newsapi-key" env:"NEWSAPI_KEY" description:"NewsAPI key (required by newsapi sources)"`

	// Application metadata
	UserAgent       string `long:"user-agent" env:"USER_AGENT" default:"Eth Comb/1.0" description:"User agent string for HTTP requests"`
	PipelineVersion string `long:"pipeline-version" env:"PIPELINE_VERSION" default:"v1" description:"Pipeline version recorded on every card"`
	Timezone        string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug           bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBDriver:           raw.DBDriver,
		DBDSN:              raw.DBDSN,
		SourcesDir:         raw.SourcesDir,
		Port:               raw.Port,
		BaseURL:            raw.BaseURL,
		WorkerCount:        raw.WorkerCount,
		PollWorkers:        raw.PollWorkers,
		SchedulerInterval:  raw.SchedulerInterval,
		BatchSize:          raw.BatchSize,
		FetchTimeout:       raw.FetchTimeout,
		APIAccessKey:       raw.APIAccessKey,
		Once:               raw.Once,
		SummarizerProvider: raw.SummarizerProvider,
		SummarizerEndpoint: raw.SummarizerEndpoint,
		SummarizerModel:    raw.SummarizerModel,
		SummarizerAPIKey:   raw.SummarizerAPIKey,
		SummarizerPrompt:   raw.SummarizerPrompt,
		SummarizerTimeout:  raw.SummarizerTimeout,
		GitHubToken:        raw.GitHubToken,
		NewsAPIKey:         raw.NewsAPIKey,
		UserAgent:          raw.UserAgent,
		PipelineVersion:    raw.PipelineVersion,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func validate(cfg *Cfg) error {
	if cfg.WorkerCount < 0 {
		return fmt.Errorf("worker count must not be negative: %d", cfg.WorkerCount)
	}
	if cfg.PollWorkers < 1 {
		return fmt.Errorf("poll workers must be at least 1: %d", cfg.PollWorkers)
	}
	if cfg.SchedulerInterval < 1 {
		return fmt.Errorf("scheduler interval must be at least 1 second: %d", cfg.SchedulerInterval)
	}
	if cfg.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1: %d", cfg.BatchSize)
	}
	if cfg.FetchTimeout < 1 {
		return fmt.Errorf("fetch timeout must be at least 1 second: %d", cfg.FetchTimeout)
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
