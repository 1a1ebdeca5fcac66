package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/david/campaign-radar/internal/cache"
	"github.com/david/campaign-radar/internal/logger"
	"github.com/david/campaign-radar/internal/models"
	"golang.org/x/sync/errgroup"
)

// Pipeline runs the collectors, merges their output and maintains the cache.
type Pipeline struct {
	Collectors  []Collector
	Cache       cache.Store // nil disables caching
	Log         *logger.Logger
	Now         func() time.Time
	TTL         time.Duration
	Parallelism int
}

func NewPipeline(collectors []Collector, store cache.Store, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{
		Collectors:  collectors,
		Cache:       store,
		Log:         log,
		Now:         time.Now,
		TTL:         cache.DefaultTTL,
		Parallelism: 3,
	}
}

// Get is the entry point of the ranking flow. Unless forceRefresh is set a
// fresh, non-empty cache is served; otherwise every source is collected.
func (p *Pipeline) Get(ctx context.Context, forceRefresh bool) ([]models.Campaign, CollectReport) {
	if !forceRefresh {
		cached, failure := p.cached(ctx)
		if len(cached) > 0 {
			return cached, CollectReport{FromCache: true}
		}
		if failure != nil {
			campaigns, report := p.CollectAll(ctx)
			report.Failures = append([]Failure{*failure}, report.Failures...)
			return campaigns, report
		}
	}
	return p.CollectAll(ctx)
}

// CollectAll invokes every collector, concatenates their campaigns in
// collector order, drops duplicate titles and saves the result. The run is
// detached from the caller's cancellation so a partial set is never cached;
// each page stays bounded by its source's fetch timeout.
func (p *Pipeline) CollectAll(ctx context.Context) ([]models.Campaign, CollectReport) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	results := make([]SourceResult, len(p.Collectors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism())
	for i, c := range p.Collectors {
		g.Go(func() error {
			results[i] = c.Collect(gctx)
			return nil
		})
	}
	_ = g.Wait()

	var (
		all    []models.Campaign
		report = CollectReport{Sources: results}
	)
	for _, res := range results {
		all = append(all, res.Campaigns...)
		report.Failures = append(report.Failures, res.Failures...)
	}

	campaigns, dups := Dedupe(all)
	report.Duplicates = dups

	if err := p.saveCache(ctx, campaigns); err != nil {
		report.Failures = append(report.Failures, Failure{Kind: FailureCacheIO, Err: err})
	}

	p.Log.Info("collection complete",
		"sources", len(p.Collectors),
		"campaigns", len(campaigns),
		"duplicates", dups,
		"failures", len(report.Failures),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return campaigns, report
}

// CollectSource runs a single collector by source id without touching the cache.
func (p *Pipeline) CollectSource(ctx context.Context, sourceID string) (SourceResult, error) {
	for _, c := range p.Collectors {
		if c.SourceID() == sourceID {
			return c.Collect(ctx), nil
		}
	}
	return SourceResult{}, fmt.Errorf("source id %q not found in registry", sourceID)
}

// GetCached returns the cached campaigns, or nothing if the cache is absent,
// unreadable or older than the TTL.
func (p *Pipeline) GetCached(ctx context.Context) []models.Campaign {
	campaigns, _ := p.cached(ctx)
	return campaigns
}

// SaveCache persists campaigns with the current time. Failures are logged only.
func (p *Pipeline) SaveCache(ctx context.Context, campaigns []models.Campaign) {
	_ = p.saveCache(ctx, campaigns)
}

func (p *Pipeline) cached(ctx context.Context) ([]models.Campaign, *Failure) {
	if p.Cache == nil {
		return nil, nil
	}
	snap, err := p.Cache.Load(ctx)
	if errors.Is(err, cache.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		p.Log.Warn("cache read failed, treating as miss", "kind", FailureCacheIO, "backend", fmt.Sprintf("%T", p.Cache), "op", "load", "error", err)
		return nil, &Failure{Kind: FailureCacheIO, Err: err}
	}
	now := p.now()
	if !snap.Fresh(now, p.ttl()) {
		p.Log.Debug("cache stale", "cached_at", snap.CachedAt, "age", now.Sub(snap.CachedAt).String())
		return nil, nil
	}
	out := make([]models.Campaign, 0, len(snap.Campaigns))
	for _, c := range snap.Campaigns {
		NormalizeCampaign(&c)
		out = append(out, c)
	}
	return out, nil
}

func (p *Pipeline) saveCache(ctx context.Context, campaigns []models.Campaign) error {
	if p.Cache == nil {
		return nil
	}
	if err := p.Cache.Save(ctx, cache.NewSnapshot(campaigns, p.now())); err != nil {
		p.Log.Warn("cache write failed", "kind", FailureCacheIO, "backend", fmt.Sprintf("%T", p.Cache), "op", "save", "error", err)
		return err
	}
	return nil
}

// Dedupe keeps the first campaign of each exact title, preserving order, and
// returns how many were dropped. Near-identical titles are not merged.
func Dedupe(campaigns []models.Campaign) ([]models.Campaign, int) {
	seen := make(map[string]struct{}, len(campaigns))
	out := make([]models.Campaign, 0, len(campaigns))
	for _, c := range campaigns {
		if c.Title == "" {
			continue
		}
		if _, ok := seen[c.Title]; ok {
			continue
		}
		seen[c.Title] = struct{}{}
		out = append(out, c)
	}
	return out, len(campaigns) - len(out)
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) ttl() time.Duration {
	if p.TTL > 0 {
		return p.TTL
	}
	return cache.DefaultTTL
}

func (p *Pipeline) parallelism() int {
	if p.Parallelism > 0 {
		return p.Parallelism
	}
	return 1
}
