package ingest

import (
	"context"
	"io"
	"time"

	"github.com/david/campaign-radar/internal/models"
)

// FetchedDocument represents the raw result of a fetch operation.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
	Headers     map[string][]string
}

// Fetcher retrieves raw content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}

// Collector produces campaigns for one source. Failures are reported, never returned.
type Collector interface {
	SourceID() string
	Collect(ctx context.Context) SourceResult
}

// SourceResult is what one source contributed to a collection run.
type SourceResult struct {
	SourceID  string
	Campaigns []models.Campaign
	Failures  []Failure
	Stats     IngestionStats
}

// IngestionStats holds metrics about a run
type IngestionStats struct {
	PagesFetched int
	PagesFailed  int
	TotalFound   int
	TotalKept    int
	Skipped      int
	Duration     time.Duration
}
