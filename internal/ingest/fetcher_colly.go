package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// CollyFetcher implements Fetcher using Colly. One request per Fetch, no
// retries: a failed page simply contributes nothing until the next run.
type CollyFetcher struct {
	UserAgent       string
	AcceptLanguage  string
	RequestTimeout  time.Duration
	MaxBodySize     int // bytes, 0 = unlimited
	DetectCharset   bool
	IgnoreRobotsTxt bool
}

// NewCollyFetcher creates a CollyFetcher with sensible defaults.
func NewCollyFetcher() *CollyFetcher {
	return &CollyFetcher{
		UserAgent:      defaultUserAgent,
		AcceptLanguage: "ja,en-US;q=0.7,en;q=0.3",
		RequestTimeout: 10 * time.Second,
		MaxBodySize:    10 * 1024 * 1024, // 10MB
		DetectCharset:  true,
	}
}

// WithHeaders returns a copy of f with the non-empty header overrides
// applied. The request timeout and body limits are kept.
func (f *CollyFetcher) WithHeaders(userAgent, acceptLanguage string) *CollyFetcher {
	cp := *f
	if userAgent != "" {
		cp.UserAgent = userAgent
	}
	if acceptLanguage != "" {
		cp.AcceptLanguage = acceptLanguage
	}
	return &cp
}

// buildCollector creates a configured Colly collector bound to ctx.
func (f *CollyFetcher) buildCollector(ctx context.Context, allowedDomains []string) *colly.Collector {
	opts := []colly.CollectorOption{
		colly.UserAgent(f.UserAgent),
		colly.MaxBodySize(f.MaxBodySize),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	}

	if len(allowedDomains) > 0 {
		opts = append(opts, colly.AllowedDomains(allowedDomains...))
	}

	if f.DetectCharset {
		opts = append(opts, colly.DetectCharset())
	}

	if f.IgnoreRobotsTxt {
		opts = append(opts, colly.IgnoreRobotsTxt())
	}

	c := colly.NewCollector(opts...)

	timeout := f.RequestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left > 0 && (timeout == 0 || left < timeout) {
			timeout = left
		}
	}
	if timeout > 0 {
		c.SetRequestTimeout(timeout)
	}

	if f.AcceptLanguage != "" {
		c.OnRequest(func(r *colly.Request) {
			r.Headers.Set("Accept-Language", f.AcceptLanguage)
		})
	}

	return c
}

// Fetch implements the Fetcher interface, returning a FetchedDocument.
func (f *CollyFetcher) Fetch(ctx context.Context, targetURL string) (*FetchedDocument, error) {
	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := f.buildCollector(ctx, []string{parsedURL.Host})

	var (
		result   *FetchedDocument
		fetchErr error
	)

	c.OnResponse(func(r *colly.Response) {
		result = &FetchedDocument{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        io.NopCloser(bytes.NewReader(r.Body)),
			FetchedAt:   time.Now(),
			Headers:     map[string][]string(r.Headers.Clone()),
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		fetchErr = err
	})

	visitErr := c.Visit(targetURL)
	c.Wait()

	switch {
	case fetchErr != nil:
		return nil, fetchErr
	case visitErr != nil:
		return nil, fmt.Errorf("visit failed: %w", visitErr)
	case result == nil:
		return nil, fmt.Errorf("no response received for %s", targetURL)
	}
	return result, nil
}
