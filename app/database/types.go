package database

import (
	"fmt"
	"strings"
	"time"
)

type Category string

const (
	CategoryResearch      Category = "RESEARCH"
	CategoryEIPERC        Category = "EIP_ERC"
	CategoryProtocolCalls Category = "PROTOCOL_CALLS"
	CategoryGovernance    Category = "GOVERNANCE"
	CategoryUpgrade       Category = "UPGRADE"
	CategoryAnnouncement  Category = "ANNOUNCEMENT"
	CategoryMetrics       Category = "METRICS"
	CategorySecurity      Category = "SECURITY"
)

var Categories = []Category{
	CategoryResearch,
	CategoryEIPERC,
	CategoryProtocolCalls,
	CategoryGovernance,
	CategoryUpgrade,
	CategoryAnnouncement,
	CategoryMetrics,
	CategorySecurity,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func ParseCategory(value string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(value)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category: %q", value)
	}
	return c, nil
}

// Source is a source_registry row.
type Source struct {
	ID              string
	Name            string
	BaseURL         string
	AdapterType     string
	PollInterval    int // seconds
	DefaultCategory Category
	IsActive        bool
	LastPolledAt    *time.Time
	Options         map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsDue reports whether the source should be polled at now.
func (s Source) IsDue(now time.Time) bool {
	if s.LastPolledAt == nil {
		return true
	}
	next := s.LastPolledAt.Add(time.Duration(s.PollInterval) * time.Second)
	return !next.After(now)
}

type RawItem struct {
	ID        string
	SourceID  string
	URL       string
	Title     *string
	Text      *string
	Metadata  map[string]any
	FetchedAt time.Time
	Processed bool
	CreatedAt time.Time
}

type Card struct {
	ID              string
	SourceID        string
	URL             string
	URLHash         string
	Category        Category
	Headline        string
	Summary         string
	Author          *string
	PublishedAt     time.Time
	FetchedAt       time.Time
	Likes           *int
	Replies         *int
	Views           *int
	FlagCount       int
	Upvotes         int
	Downvotes       int
	IsSuspended     bool
	PipelineVersion string
	CreatedAt       time.Time
}

type CardHeadline struct {
	ID          string
	Headline    string
	PublishedAt time.Time
}

type CardFilter struct {
	Category         Category
	IncludeSuspended bool
	Limit            int
}

type Flag struct {
	ID        string
	CardID    string
	Reason    string
	CreatedAt time.Time
}

type RawItemStats struct {
	Total       int
	Unprocessed int
}
