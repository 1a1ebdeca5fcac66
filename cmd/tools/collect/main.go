package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/campaign-radar/internal/app"
	"github.com/david/campaign-radar/internal/config"
	"github.com/david/campaign-radar/internal/ingest"
	"github.com/david/campaign-radar/internal/logger"
)

func main() {
	refresh := flag.Bool("refresh", false, "ignore a fresh cache and collect every source")
	source := flag.String("source", "", "collect a single source id without touching the cache")
	cachedOnly := flag.Bool("cached", false, "print the fresh cache contents without collecting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	rt, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to build runtime", "error", err)
	}
	defer rt.Close()

	if *cachedOnly {
		campaigns := rt.Pipeline.GetCached(ctx)
		if len(campaigns) == 0 {
			fmt.Println("Cache is empty or stale.")
			return
		}
		renderCampaigns(ingest.SourceResult{SourceID: "cache", Campaigns: campaigns})
		return
	}

	var report ingest.CollectReport
	if *source != "" {
		res, err := rt.Pipeline.CollectSource(ctx, *source)
		if err != nil {
			log.Fatal("Collection failed", "source", *source, "error", err)
		}
		report = ingest.CollectReport{Sources: []ingest.SourceResult{res}, Failures: res.Failures}
		renderCampaigns(res)
	} else {
		campaigns, r := rt.Pipeline.Get(ctx, *refresh)
		report = r
		renderCampaigns(ingest.SourceResult{SourceID: "all", Campaigns: campaigns})
	}

	renderReport(report)
}

func renderCampaigns(res ingest.SourceResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Campaigns (%s)", res.SourceID))
	t.AppendHeader(table.Row{"Source", "Title", "Rate %", "Ends", "Cards", "Danger"})
	for _, c := range res.Campaigns {
		danger := ""
		if c.DangerReason != nil {
			danger = *c.DangerReason
		}
		t.AppendRow(table.Row{
			c.Source,
			ingest.TruncateText(c.Title, 40),
			c.ReturnRatePercent,
			c.Window.End.Format("2006-01-02"),
			fmt.Sprint(c.RequiredCards),
			danger,
		})
	}
	t.AppendFooter(table.Row{"", "Total", len(res.Campaigns)})
	t.Render()
}

func renderReport(report ingest.CollectReport) {
	if report.FromCache {
		fmt.Println("Served from cache.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Sources")
	t.AppendHeader(table.Row{"Source", "Pages", "Failed pages", "Found", "Kept", "Skipped", "Duration"})
	for _, res := range report.Sources {
		s := res.Stats
		t.AppendRow(table.Row{res.SourceID, s.PagesFetched, s.PagesFailed, s.TotalFound, s.TotalKept, s.Skipped, s.Duration.Round(time.Millisecond).String()})
	}
	t.AppendFooter(table.Row{"Duplicates", report.Duplicates})
	t.Render()

	if len(report.Failures) == 0 {
		return
	}
	f := table.NewWriter()
	f.SetOutputMirror(os.Stdout)
	f.SetTitle("Failures")
	f.AppendHeader(table.Row{"Kind", "Source", "URL", "Error"})
	for _, fail := range report.Failures {
		f.AppendRow(table.Row{fail.Kind, fail.Source, fail.URL, fail.Err})
	}
	f.Render()
}
