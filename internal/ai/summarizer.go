package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/david/campaign-radar/internal/ingest"
	"github.com/david/campaign-radar/internal/logger"
	"github.com/david/campaign-radar/internal/models"
	"golang.org/x/sync/errgroup"
)

const DefaultSummaryLength = 40

// overrun is how far past the limit a model reply may run before it is cut.
const overrun = 10

const summaryPrompt = `以下のキャンペーン情報を%d文字以内で簡潔に要約してください。
重要なポイント（対象サービス、還元率、条件）のみを含めてください。
判断や評価は含めず、事実のみを記述してください。

キャンペーン情報:
%s

要約（%d文字以内）:`

var summaryOptions = GenerateOptions{Temperature: 0.3, NumPredict: 100}

// Summarizer writes short campaign summaries. Without a reachable model it
// truncates instead, so it never fails.
type Summarizer struct {
	Client      *OllamaClient
	Log         *logger.Logger
	MaxLen      int
	Parallelism int

	gen Generator
}

func NewSummarizer(client *OllamaClient, log *logger.Logger) *Summarizer {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Summarizer{Client: client, Log: log, MaxLen: DefaultSummaryLength, Parallelism: 2}
	if client != nil {
		s.gen = client
	}
	return s
}

func (s *Summarizer) maxLen() int {
	if s.MaxLen <= 0 {
		return DefaultSummaryLength
	}
	return s.MaxLen
}

// Summarize returns a summary of text of roughly maxLen runes.
func (s *Summarizer) Summarize(ctx context.Context, text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = s.maxLen()
	}
	text = ingest.HTMLToText(text)
	if s.gen == nil {
		return FallbackSummary(text, maxLen)
	}

	reply, err := s.gen.GenerateCompletion(ctx, fmt.Sprintf(summaryPrompt, maxLen, text, maxLen), summaryOptions)
	if err != nil {
		s.Log.Warn("summary generation failed, truncating", "error", err)
		return FallbackSummary(text, maxLen)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return FallbackSummary(text, maxLen)
	}
	if len([]rune(reply)) > maxLen+overrun {
		reply = ingest.TruncateRunes(reply, maxLen) + "..."
	}
	return reply
}

// SummarizeAll fills Summary on each campaign in place.
func (s *Summarizer) SummarizeAll(ctx context.Context, campaigns []models.Campaign) {
	g, gctx := errgroup.WithContext(ctx)
	if s.Parallelism > 0 {
		g.SetLimit(s.Parallelism)
	}
	for i := range campaigns {
		g.Go(func() error {
			c := &campaigns[i]
			c.Summary = s.Summarize(gctx, strings.TrimSpace(c.Title+" "+c.Description), s.maxLen())
			return nil
		})
	}
	_ = g.Wait()
}

// Available reports whether the model server is reachable.
func (s *Summarizer) Available(ctx context.Context) bool {
	if s.Client == nil {
		return false
	}
	return s.Client.Ping(ctx)
}

// FallbackSummary keeps text within maxLen runes, marking cuts with "...".
func FallbackSummary(text string, maxLen int) string {
	return ingest.TruncateText(text, maxLen)
}
