package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/david/campaign-radar/internal/ai"
	"github.com/david/campaign-radar/internal/ingest"
	"github.com/david/campaign-radar/internal/models"
	"github.com/david/campaign-radar/internal/scoring"
)

const (
	defaultTopN    = 3
	digestFreeSize = 3
	digestPaidSize = 5
	maxActionSteps = 2
)

var defaultActionSteps = []string{"1. リンクからキャンペーンページへ", "2. エントリーボタンを押す"}

type failureView struct {
	Kind   string `json:"kind"`
	Source string `json:"source"`
	URL    string `json:"url,omitempty"`
	Error  string `json:"error"`
}

func failureViews(failures []ingest.Failure) []failureView {
	out := make([]failureView, 0, len(failures))
	for _, f := range failures {
		v := failureView{Kind: string(f.Kind), Source: f.Source, URL: f.URL}
		if f.Err != nil {
			v.Error = f.Err.Error()
		}
		out = append(out, v)
	}
	return out
}

// collect returns the aggregated campaigns, substituting the sample set when
// a run yields nothing.
func (s *Server) collect(c echo.Context, force bool) ([]models.Campaign, ingest.CollectReport, bool) {
	campaigns, report := s.campaigns.Get(c.Request().Context(), force)
	if len(campaigns) > 0 {
		return campaigns, report, false
	}
	s.log.Warn("collection returned no campaigns, using samples", "failures", len(report.Failures))
	return ingest.SampleCampaigns(s.now()), report, true
}

func (s *Server) handleListCampaigns(c echo.Context) error {
	force, _ := strconv.ParseBool(c.QueryParam("refresh"))
	campaigns, report := s.campaigns.Get(c.Request().Context(), force)
	if campaigns == nil {
		campaigns = []models.Campaign{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":      len(campaigns),
		"from_cache": report.FromCache,
		"duplicates": report.Duplicates,
		"failures":   failureViews(report.Failures),
		"campaigns":  campaigns,
	})
}

type rankRequest struct {
	Profile   models.UserProfileView `json:"profile"`
	Campaigns []models.Campaign      `json:"campaigns"`
	Limit     int                    `json:"limit"`
}

func (s *Server) handleRank(c echo.Context) error {
	var req rankRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Limit < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must not be negative"})
	}

	campaigns := req.Campaigns
	if len(campaigns) == 0 {
		campaigns, _, _ = s.collect(c, false)
	}

	ranked := limitRanked(s.ranker.Rank(campaigns, req.Profile), req.Limit)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":     len(ranked),
		"campaigns": ranked,
	})
}

func (s *Server) handleMissedValue(c echo.Context) error {
	var view models.UserProfileView
	if err := c.Bind(&view); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	return c.JSON(http.StatusOK, map[string]int{"missed_value": scoring.EstimateMissedValue(view)})
}

func (s *Server) handleCollectSource(c echo.Context) error {
	sourceID := c.Param("id")
	res, err := s.campaigns.CollectSource(c.Request().Context(), sourceID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	campaigns := res.Campaigns
	if campaigns == nil {
		campaigns = []models.Campaign{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"source":    res.SourceID,
		"count":     len(campaigns),
		"stats":     res.Stats,
		"failures":  failureViews(res.Failures),
		"campaigns": campaigns,
	})
}

func (s *Server) handleDigest(c echo.Context) error {
	requested := strings.ToLower(strings.TrimSpace(c.QueryParam("plan")))
	if requested == "" {
		requested = string(models.PlanFree)
	}
	plan, ok := models.ParsePlan(requested)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "plan must be free or paid"})
	}

	if plan == models.PlanFree {
		campaigns, _, _ := s.collect(c, false)
		if len(campaigns) > digestFreeSize {
			campaigns = campaigns[:digestFreeSize]
		}
		summarized := make([]models.Campaign, len(campaigns))
		copy(summarized, campaigns)
		s.summarize(c, summarized)
		return c.JSON(http.StatusOK, map[string]interface{}{
			"plan":      models.PlanFree,
			"campaigns": summarized,
		})
	}

	profile, err := s.currentProfile(c)
	if err != nil {
		return err
	}
	if resolvePlan(s.forcePlan, profile) != models.PlanPaid {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "paid plan required"})
	}

	campaigns, _, _ := s.collect(c, false)
	ranked := limitRanked(s.ranker.Rank(campaigns, profile.View()), digestPaidSize)
	total := 0
	for _, r := range ranked {
		total += r.ExpectedReturn
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"plan":           models.PlanPaid,
		"campaigns":      ranked,
		"total_expected": total,
	})
}

func (s *Server) handleTop(c echo.Context) error {
	profile, err := s.currentProfile(c)
	if err != nil {
		return err
	}

	view := profile.View()
	if resolvePlan(s.forcePlan, profile) != models.PlanPaid {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"plan":         models.PlanFree,
			"locked":       true,
			"missed_value": scoring.EstimateMissedValue(view),
		})
	}

	n := defaultTopN
	if raw := c.QueryParam("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "n must be a positive integer"})
		}
		n = parsed
	}

	campaigns, _, sample := s.collect(c, false)
	ranked := limitRanked(s.ranker.Rank(campaigns, view), n)
	for i := range ranked {
		ranked[i].ActionSteps = topSteps(ranked[i].ActionSteps)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"plan":      models.PlanPaid,
		"locked":    false,
		"sample":    sample,
		"campaigns": ranked,
	})
}

func (s *Server) summarize(c echo.Context, campaigns []models.Campaign) {
	if s.summarizer != nil {
		s.summarizer.SummarizeAll(c.Request().Context(), campaigns)
		return
	}
	for i := range campaigns {
		text := strings.TrimSpace(campaigns[i].Title + " " + campaigns[i].Description)
		campaigns[i].Summary = ai.FallbackSummary(text, ai.DefaultSummaryLength)
	}
}

func limitRanked(ranked []models.RankedCampaign, n int) []models.RankedCampaign {
	if n > 0 && len(ranked) > n {
		return ranked[:n]
	}
	return ranked
}

// topSteps keeps at most two steps, substituting defaults when there are none.
func topSteps(steps []string) []string {
	if len(steps) == 0 {
		out := make([]string, len(defaultActionSteps))
		copy(out, defaultActionSteps)
		return out
	}
	if len(steps) > maxActionSteps {
		return steps[:maxActionSteps]
	}
	return steps
}

var errNoProfiles = errors.New("profile store not configured")
