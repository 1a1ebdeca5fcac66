package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/david/campaign-radar/internal/app"
	"github.com/david/campaign-radar/internal/config"
	"github.com/david/campaign-radar/internal/ingest"
	"github.com/david/campaign-radar/internal/logger"
	"github.com/david/campaign-radar/internal/models"
	"github.com/david/campaign-radar/internal/scoring"
)

func main() {
	cards := flag.String("cards", "", "comma separated card names the user holds")
	stores := flag.String("stores", "", "comma separated favorite stores")
	top := flag.Int("top", 3, "number of campaigns to print")
	refresh := flag.Bool("refresh", false, "collect instead of serving a fresh cache")
	samples := flag.Bool("samples", false, "rank the built-in sample campaigns")
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

	var campaigns []models.Campaign
	if !*samples {
		campaigns, _ = rt.Pipeline.Get(ctx, *refresh)
	}
	if len(campaigns) == 0 {
		log.Warn("no campaigns collected, ranking samples")
		campaigns = ingest.SampleCampaigns(rt.Clock())
	}

	profile := models.UserProfileView{HeldCardNames: splitCSV(*cards), FavoriteStores: splitCSV(*stores)}
	ranked := (&scoring.Ranker{Now: rt.Clock}).Rank(campaigns, profile)
	if *top > 0 && len(ranked) > *top {
		ranked = ranked[:*top]
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Title", "Score", "Expected", "x", "Days", "Reason"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	for i, r := range ranked {
		t.AppendRow(table.Row{i + 1, ingest.TruncateText(r.Title, 30), fmt.Sprintf("%.1f", r.Score), r.ExpectedReturn,
			fmt.Sprintf("%.1f", scoring.SpendMultiplier(r.Campaign, profile)), r.DaysRemaining, r.Reason})
	}
	t.AppendFooter(table.Row{"", "Missed value (free plan)", "", scoring.EstimateMissedValue(profile)})
	t.Render()
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
