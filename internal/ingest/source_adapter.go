package ingest

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/david/campaign-radar/internal/logger"
	"github.com/david/campaign-radar/internal/models"
)

// SourceAdapter collects campaigns from one configured source. Every source
// shares this implementation; behavior differences live in SourceConfig.
type SourceAdapter struct {
	Config  SourceConfig
	Fetcher Fetcher
	Log     *logger.Logger
	Now     func() time.Time
}

func NewSourceAdapter(cfg SourceConfig, fetcher Fetcher, log *logger.Logger) *SourceAdapter {
	if log == nil {
		log = logger.NewNop()
	}
	return &SourceAdapter{Config: cfg, Fetcher: fetcher, Log: log, Now: time.Now}
}

// NewAdapters builds one adapter per enabled source in the registry. The
// built-in fetchers are specialized per source when the source overrides
// its headers; other fetchers are shared as is.
func NewAdapters(reg *Registry, fetcher Fetcher, log *logger.Logger) []Collector {
	sources := reg.Enabled()
	out := make([]Collector, 0, len(sources))
	for _, src := range sources {
		out = append(out, NewSourceAdapter(src, fetcherFor(fetcher, src.Fetch), log))
	}
	return out
}

// fetcherFor applies a source's header overrides. The fetcher's own request
// timeout (FETCH_TIMEOUT) is kept; the source's timeout_seconds bounds each
// page through the context, so the shorter of the two wins.
func fetcherFor(base Fetcher, cfg FetchConfig) Fetcher {
	if cfg.UserAgent == "" && cfg.AcceptLanguage == "" {
		return base
	}
	switch f := base.(type) {
	case *CollyFetcher:
		return f.WithHeaders(cfg.UserAgent, cfg.AcceptLanguage)
	case *HTTPFetcher:
		return f.WithHeaders(cfg.UserAgent, cfg.AcceptLanguage)
	}
	return base
}

func (a *SourceAdapter) SourceID() string { return a.Config.ID }

// Collect fetches every seed page and parses its candidates. It never fails:
// a broken page contributes nothing and is reported in the result.
func (a *SourceAdapter) Collect(ctx context.Context) SourceResult {
	start := time.Now()
	res := SourceResult{SourceID: a.Config.ID, Campaigns: []models.Campaign{}}
	log := a.Log.With("source", a.Config.ID)

	for _, seed := range a.Config.Seeds {
		campaigns, found, failures, err := a.collectPage(ctx, seed)
		if err != nil {
			f := Failure{Kind: FailureTransientSource, Source: a.Config.ID, URL: seed, Err: err}
			res.Failures = append(res.Failures, f)
			res.Stats.PagesFailed++
			log.Warn("page collection failed", "url", seed, "kind", f.Kind, "error", err)
			continue
		}
		res.Stats.PagesFetched++
		if found == 0 {
			log.Warn("page yielded nothing", "url", seed, "error", ErrNoCandidates)
		}
		res.Stats.TotalFound += found
		res.Stats.Skipped += len(failures)
		for _, f := range failures {
			log.Debug("candidate skipped", "url", seed, "kind", f.Kind, "error", f.Err)
		}
		res.Failures = append(res.Failures, failures...)
		res.Campaigns = append(res.Campaigns, campaigns...)
	}

	res.Stats.TotalKept = len(res.Campaigns)
	res.Stats.Duration = time.Since(start)
	log.Info("source collected",
		"pages", res.Stats.PagesFetched,
		"pages_failed", res.Stats.PagesFailed,
		"found", res.Stats.TotalFound,
		"kept", res.Stats.TotalKept,
		"duration_ms", res.Stats.Duration.Milliseconds(),
	)
	return res
}

func (a *SourceAdapter) collectPage(ctx context.Context, pageURL string) ([]models.Campaign, int, []Failure, error) {
	ctx, cancel := context.WithTimeout(ctx, a.Config.Fetch.Timeout())
	defer cancel()

	doc, err := a.Fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("fetch: %w", err)
	}
	defer doc.Body.Close()

	if doc.StatusCode != 0 && (doc.StatusCode < 200 || doc.StatusCode > 299) {
		return nil, 0, nil, fmt.Errorf("unexpected status code: %d", doc.StatusCode)
	}

	return ParseCandidates(a.Config, pageURL, doc.Body, a.Now())
}

// ParseCandidates extracts campaigns from one listing page. It returns the
// kept campaigns, the number of candidate regions considered, and one failure
// per discarded candidate. The error is non-nil only if r is not parseable.
func ParseCandidates(src SourceConfig, pageURL string, r io.Reader, now time.Time) ([]models.Campaign, int, []Failure, error) {
	src.applyDefaults()
	gdoc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("parse html: %w", err)
	}
	page, err := url.Parse(pageURL)
	if err != nil {
		page = nil
	}

	candidates := selectCandidates(gdoc.Selection, src.Selectors.Candidates, src.MaxCandidates)
	var (
		out      []models.Campaign
		failures []Failure
	)
	for i, cand := range candidates {
		c, err := parseCandidate(src, page, pageURL, cand, now)
		if err != nil {
			failures = append(failures, Failure{
				Kind:   FailureMalformedCandidate,
				Source: src.ID,
				URL:    pageURL,
				Err:    fmt.Errorf("candidate %d: %w", i, err),
			})
			continue
		}
		out = append(out, c)
	}
	return out, len(candidates), failures, nil
}

// selectCandidates evaluates selectors in priority order and returns up to
// max distinct regions.
func selectCandidates(root *goquery.Selection, selectors []string, max int) []*goquery.Selection {
	seen := make(map[any]struct{})
	var out []*goquery.Selection
	for _, s := range selectors {
		if len(out) >= max {
			break
		}
		root.Find(s).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			node := el.Get(0)
			if _, ok := seen[node]; ok {
				return true
			}
			seen[node] = struct{}{}
			out = append(out, el)
			return len(out) < max
		})
	}
	return out
}

func parseCandidate(src SourceConfig, page *url.URL, pageURL string, el *goquery.Selection, now time.Time) (models.Campaign, error) {
	title := firstText(el, src.Selectors.Title)
	if title == "" {
		return models.Campaign{}, ErrMissingTitle
	}

	fullDesc := firstText(el, src.Selectors.Description)
	text := title + " " + fullDesc

	link := candidateLink(el, src.Selectors)
	campaignURL := resolveLink(page, link)
	if campaignURL == "" {
		campaignURL = pageURL
	}

	elig := Classify(src, title, text)
	c := models.Campaign{
		Title:       title,
		Description: TruncateRunes(fullDesc, src.DescMaxLen),
		URL:         campaignURL,
		Source:      src.Name,
		Window: models.Window{
			Start: now,
			End:   ExtractEndDate(cleanText(el.Text()), now),
		},
		BaseAmount:        src.BaseAmount,
		ReturnRatePercent: ExtractReturnRate(text, src.Rate.Options()),
		RequiredCards:     elig.RequiredCards,
		TargetStores:      append([]string{}, src.TargetStores...),
		IsDangerous:       elig.IsDangerous,
		DangerReason:      elig.DangerReason,
		ActionSteps:       append([]string{}, src.ActionSteps...),
	}
	NormalizeCampaign(&c)
	return c, nil
}

// firstText returns the cleaned text of the first selector that yields any.
func firstText(el *goquery.Selection, selectors []string) string {
	for _, s := range selectors {
		if t := plainText(el.Find(s).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func candidateLink(el *goquery.Selection, sel SelectorConfig) string {
	if goquery.NodeName(el) == "a" {
		if href, ok := el.Attr(sel.LinkAttr); ok {
			return href
		}
	}
	href, _ := el.Find(sel.Link).First().Attr(sel.LinkAttr)
	return href
}
