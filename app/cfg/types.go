package cfg

import "strings"

type Cfg struct {
	// Database configuration
	DBDriver string
	DBDSN    string

	// Application configuration
	SourcesDir        string
	Port              string
	BaseURL           string
	WorkerCount       int
	PollWorkers       int
	SchedulerInterval int
	BatchSize         int
	FetchTimeout      int
	APIAccessKey      string
	Once              bool

	// Summarizer configuration
	SummarizerProvider string
	SummarizerEndpoint string
	SummarizerModel    string
	SummarizerAPIKey   string
	SummarizerPrompt   string
	SummarizerTimeout  int

	// Adapter credentials
	GitHubToken string
	NewsAPIKey  string

	// Application metadata
	UserAgent       string
	PipelineVersion string
	Timezone        string
	Debug           bool
	Version         string
}

// PipelineWorkers resolves the pipeline pool size. Zero picks a default
// sized for the summarizer: remote calls are I/O bound, local ones are not.
func (c *Cfg) PipelineWorkers() int {
	if c.WorkerCount > 0 {
		return c.WorkerCount
	}
	if strings.EqualFold(c.SummarizerProvider, "openai") {
		return 10
	}
	return 2
}
