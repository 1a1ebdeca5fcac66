package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/david/campaign-radar/internal/ai"
	"github.com/david/campaign-radar/internal/api"
	"github.com/david/campaign-radar/internal/app"
	"github.com/david/campaign-radar/internal/auth"
	"github.com/david/campaign-radar/internal/config"
	"github.com/david/campaign-radar/internal/logger"
	"github.com/david/campaign-radar/internal/scoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to build runtime", "error", err)
	}
	defer rt.Close()

	secret, err := auth.ResolveSecret(cfg.JWTSecret, log)
	if err != nil {
		log.Fatal("Failed to resolve JWT secret", "error", err)
	}

	summarizer := ai.NewSummarizer(ai.NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel), log)
	if !summarizer.Available(ctx) {
		log.Warn("Ollama is not reachable; summaries fall back to truncation", "url", cfg.OllamaURL)
	}

	opts := api.Options{
		Campaigns:  rt.Pipeline,
		Summarizer: summarizer,
		Ranker:     &scoring.Ranker{Now: rt.Clock},
		JWTSecret:  secret,
		ForcePlan:  cfg.ForcePlan,
		Log:        log,
		Now:        rt.Clock,
	}
	if rt.Store != nil {
		opts.Profiles = rt.Store
	}
	srv := api.NewServer(opts)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Shutdown failed", "error", err)
		}
	}()

	log.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Server stopped", "error", err)
	}
}
