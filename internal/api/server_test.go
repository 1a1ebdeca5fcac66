package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/campaign-radar/internal/auth"
	"github.com/david/campaign-radar/internal/ingest"
	"github.com/david/campaign-radar/internal/models"
)

var (
	testSecret = []byte("api-test-secret")
	testNow    = time.Date(2026, 3, 15, 12, 0, 0, 0, time.FixedZone("JST", 9*60*60))
)

type fakeCampaigns struct {
	campaigns []models.Campaign
	report    ingest.CollectReport
	forced    []bool
}

func (f *fakeCampaigns) Get(_ context.Context, force bool) ([]models.Campaign, ingest.CollectReport) {
	f.forced = append(f.forced, force)
	return f.campaigns, f.report
}

func (f *fakeCampaigns) CollectSource(_ context.Context, id string) (ingest.SourceResult, error) {
	if id != "rakuten" {
		return ingest.SourceResult{}, fmt.Errorf("unknown source %q", id)
	}
	return ingest.SourceResult{SourceID: id, Campaigns: f.campaigns, Failures: []ingest.Failure{
		{Kind: ingest.FailureTransientSource, Source: id, URL: "https://example.test/", Err: errors.New("timeout")},
	}}, nil
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*models.UserProfile
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: map[string]*models.UserProfile{}}
}

func (f *fakeProfiles) GetOrCreateProfile(_ context.Context, userID string) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		p = &models.UserProfile{UserID: userID, Plan: models.PlanFree, Cards: []models.Card{}, FavoriteStores: []string{}}
		f.profiles[userID] = p
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) mutate(userID string, fn func(*models.UserProfile)) (*models.UserProfile, error) {
	if _, err := f.GetOrCreateProfile(context.Background(), userID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.profiles[userID])
	cp := *f.profiles[userID]
	return &cp, nil
}

func (f *fakeProfiles) AddCard(_ context.Context, userID string, card models.Card) (*models.UserProfile, error) {
	return f.mutate(userID, func(p *models.UserProfile) { p.Cards = append(p.Cards, card) })
}

func (f *fakeProfiles) AddFavoriteStore(_ context.Context, userID, store string) (*models.UserProfile, error) {
	return f.mutate(userID, func(p *models.UserProfile) { p.FavoriteStores = append(p.FavoriteStores, store) })
}

func (f *fakeProfiles) SetPlan(_ context.Context, userID string, plan models.Plan) (*models.UserProfile, error) {
	return f.mutate(userID, func(p *models.UserProfile) { p.Plan = plan })
}

func sampleCampaigns() []models.Campaign {
	return ingest.SampleCampaigns(testNow)
}

func newTestServer(t *testing.T, campaigns *fakeCampaigns, profiles ProfileStore, forcePlan string) *Server {
	t.Helper()
	opts := Options{
		Campaigns: campaigns,
		JWTSecret: testSecret,
		ForcePlan: forcePlan,
		Now:       func() time.Time { return testNow },
	}
	if profiles != nil {
		opts.Profiles = profiles
	}
	return NewServer(opts)
}

func do(t *testing.T, s *Server, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		token, err := auth.IssueToken(testSecret, userID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeCampaigns{}, nil, "")
	rec := do(t, s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"campaign-radar"}`, rec.Body.String())
}

func TestListCampaignsPassesRefresh(t *testing.T) {
	fc := &fakeCampaigns{campaigns: sampleCampaigns(), report: ingest.CollectReport{FromCache: true}}
	s := newTestServer(t, fc, nil, "")

	rec := do(t, s, http.MethodGet, "/api/v1/campaigns?refresh=true", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 5, body["count"])
	assert.Equal(t, true, body["from_cache"])

	do(t, s, http.MethodGet, "/api/v1/campaigns", "", "")
	assert.Equal(t, []bool{true, false}, fc.forced)
}

func TestRankWithInlineCampaigns(t *testing.T) {
	s := newTestServer(t, &fakeCampaigns{}, nil, "")
	body := `{
		"profile": {"held_cards": ["楽天カード"], "favorite_stores": ["A"]},
		"campaigns": [
			{"title": "low", "base_amount": 1000, "return_rate_percent": 1, "window": {"start": "2026-03-01T00:00:00+09:00", "end": "2026-06-01T00:00:00+09:00"}},
			{"title": "high", "base_amount": 10000, "return_rate_percent": 20, "target_stores": ["A"], "window": {"start": "2026-03-01T00:00:00+09:00", "end": "2026-06-01T00:00:00+09:00"}}
		],
		"limit": 1
	}`
	rec := do(t, s, http.MethodPost, "/api/v1/rank", body, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Count     int                     `json:"count"`
		Campaigns []models.RankedCampaign `json:"campaigns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "high", resp.Campaigns[0].Title)
	assert.Equal(t, 3000, resp.Campaigns[0].ExpectedReturn)
}

func TestRankFallsBackToSamples(t *testing.T) {
	s := newTestServer(t, &fakeCampaigns{}, nil, "")
	rec := do(t, s, http.MethodPost, "/api/v1/rank", `{"profile": {}}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 5, decode(t, rec)["count"])
}

func TestMissedValue(t *testing.T) {
	s := newTestServer(t, &fakeCampaigns{}, nil, "")
	rec := do(t, s, http.MethodPost, "/api/v1/missed-value", `{"held_cards": ["a", "b"], "favorite_stores": ["x"]}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"missed_value": 6300}`, rec.Body.String())
}

func TestCollectSource(t *testing.T) {
	s := newTestServer(t, &fakeCampaigns{campaigns: sampleCampaigns()[:2]}, nil, "")

	rec := do(t, s, http.MethodPost, "/api/v1/sources/rakuten/collect", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/sources/rakuten/collect", "", "U1")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["count"])
	failures := body["failures"].([]interface{})
	require.Len(t, failures, 1)
	assert.Equal(t, "transient_source", failures[0].(map[string]interface{})["kind"])

	rec = do(t, s, http.MethodPost, "/api/v1/sources/nope/collect", "", "U1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTopIsLockedForFreePlan(t *testing.T) {
	profiles := newFakeProfiles()
	s := newTestServer(t, &fakeCampaigns{campaigns: sampleCampaigns()}, profiles, "")

	do(t, s, http.MethodPost, "/api/v1/me/cards", `{"name": "楽天カード"}`, "U1")
	rec := do(t, s, http.MethodGet, "/api/v1/me/top", "", "U1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"plan": "free", "locked": true, "missed_value": 5500}`, rec.Body.String())
}

func TestTopForPaidPlan(t *testing.T) {
	profiles := newFakeProfiles()
	noSteps := models.Campaign{Title: "手順なし", BaseAmount: 100000, ReturnRatePercent: 50, Window: models.Window{End: testNow.Add(48 * time.Hour)}}
	campaigns := append(sampleCampaigns(), noSteps)
	s := newTestServer(t, &fakeCampaigns{campaigns: campaigns}, profiles, "")

	rec := do(t, s, http.MethodPost, "/api/v1/me/plan", `{"plan": "paid"}`, "U2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paid", decode(t, rec)["effective_plan"])

	rec = do(t, s, http.MethodGet, "/api/v1/me/top", "", "U2")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Locked    bool                    `json:"locked"`
		Campaigns []models.RankedCampaign `json:"campaigns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Locked)
	require.Len(t, resp.Campaigns, 3)
	assert.Equal(t, "手順なし", resp.Campaigns[0].Title)
	assert.Equal(t, defaultActionSteps, resp.Campaigns[0].ActionSteps)
	for i := 1; i < len(resp.Campaigns); i++ {
		assert.LessOrEqual(t, len(resp.Campaigns[i].ActionSteps), 2)
		assert.GreaterOrEqual(t, resp.Campaigns[i-1].Score, resp.Campaigns[i].Score)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/me/top?n=0", "", "U2")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForcePlanOverridesStoredPlan(t *testing.T) {
	profiles := newFakeProfiles()
	s := newTestServer(t, &fakeCampaigns{campaigns: sampleCampaigns()}, profiles, "paid")

	rec := do(t, s, http.MethodGet, "/api/v1/me/top", "", "U3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["locked"])
}

func TestResolvePlan(t *testing.T) {
	paid := &models.UserProfile{Plan: models.PlanPaid}
	free := &models.UserProfile{Plan: models.PlanFree}

	assert.Equal(t, models.PlanPaid, resolvePlan("", paid))
	assert.Equal(t, models.PlanFree, resolvePlan("", free))
	assert.Equal(t, models.PlanFree, resolvePlan("free", paid))
	assert.Equal(t, models.PlanPaid, resolvePlan(" PAID ", free))
	assert.Equal(t, models.PlanFree, resolvePlan("gold", free))
	assert.Equal(t, models.PlanFree, resolvePlan("", nil))
}

func TestProfileEndpoints(t *testing.T) {
	profiles := newFakeProfiles()
	s := newTestServer(t, &fakeCampaigns{}, profiles, "")

	rec := do(t, s, http.MethodGet, "/api/v1/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/me/stores", `{"store": "ローソン"}`, "U4")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 5300, decode(t, rec)["missed_value"])

	rec = do(t, s, http.MethodPost, "/api/v1/me/cards", `{"name": ""}`, "U4")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/me/plan", `{"plan": "gold"}`, "U4")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/me", "", "U4")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "U4", body["user_id"])
	assert.Equal(t, "free", body["effective_plan"])
}

func TestProfileRoutesAbsentWithoutStore(t *testing.T) {
	s := newTestServer(t, &fakeCampaigns{}, nil, "")
	rec := do(t, s, http.MethodGet, "/api/v1/me", "", "U1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDigest(t *testing.T) {
	profiles := newFakeProfiles()
	s := newTestServer(t, &fakeCampaigns{campaigns: sampleCampaigns()}, profiles, "")

	rec := do(t, s, http.MethodGet, "/api/v1/digest", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var free struct {
		Campaigns []models.Campaign `json:"campaigns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &free))
	require.Len(t, free.Campaigns, 3)
	for _, c := range free.Campaigns {
		assert.NotEmpty(t, c.Summary)
		assert.LessOrEqual(t, len([]rune(c.Summary)), 40)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/digest?plan=paid", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/digest?plan=paid", "", "U5")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	do(t, s, http.MethodPost, "/api/v1/me/plan", `{"plan": "paid"}`, "U5")
	rec = do(t, s, http.MethodGet, "/api/v1/digest?plan=paid", "", "U5")
	require.Equal(t, http.StatusOK, rec.Code)
	var paid struct {
		Campaigns     []models.RankedCampaign `json:"campaigns"`
		TotalExpected int                     `json:"total_expected"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paid))
	require.Len(t, paid.Campaigns, 5)
	sum := 0
	for _, c := range paid.Campaigns {
		sum += c.ExpectedReturn
	}
	assert.Equal(t, sum, paid.TotalExpected)

	rec = do(t, s, http.MethodGet, "/api/v1/digest?plan=gold", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
