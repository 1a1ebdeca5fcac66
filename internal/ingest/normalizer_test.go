package ingest

import (
	"testing"
	"time"

	"github.com/david/campaign-radar/internal/models"
)

func TestCampaignIDIsDeterministic(t *testing.T) {
	a := CampaignID("楽天市場", "お買い物マラソン")
	if a != CampaignID("楽天市場", "お買い物マラソン") {
		t.Fatal("same source and title must yield the same id")
	}
	if a == CampaignID("dポイント", "お買い物マラソン") {
		t.Fatal("different sources must yield different ids")
	}
	if CampaignID("ab", "c") == CampaignID("a", "bc") {
		t.Fatal("source/title boundary must be part of the id")
	}
}

func TestNormalizeCampaign(t *testing.T) {
	empty := ""
	reason := "理由"
	tests := []struct {
		name       string
		in         models.Campaign
		wantReason bool
	}{
		{"reason dropped when not dangerous", models.Campaign{Title: "x", DangerReason: &reason}, false},
		{"empty reason dropped", models.Campaign{Title: "x", IsDangerous: true, DangerReason: &empty}, false},
		{"reason kept when dangerous", models.Campaign{Title: "x", IsDangerous: true, DangerReason: &reason}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.in
			NormalizeCampaign(&c)
			if (c.DangerReason != nil) != tt.wantReason {
				t.Errorf("reason present = %v, want %v", c.DangerReason != nil, tt.wantReason)
			}
			if c.RequiredCards == nil || c.TargetStores == nil || c.ActionSteps == nil {
				t.Error("collections must never be nil")
			}
			if c.ID == "" {
				t.Error("id must be filled")
			}
		})
	}

	c := models.Campaign{Title: "  二重   空白  ", ReturnRatePercent: -3}
	NormalizeCampaign(&c)
	if c.Title != "二重 空白" || c.ReturnRatePercent != 0 {
		t.Errorf("got title %q rate %d", c.Title, c.ReturnRatePercent)
	}
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"短い", 40, "短い"},
		{"あいうえおかきくけこ", 5, "あい..."},
		{"あいうえお", 5, "あいうえお"},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := TruncateText(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncateText(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestPlainTextStripsMarkup(t *testing.T) {
	got := plainText("<b>ポイント</b>\n  10倍 &amp; <script>x()</script>送料無料")
	if got != "ポイント 10倍 & 送料無料" {
		t.Errorf("plainText = %q", got)
	}
}

func TestSampleCampaigns(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, jst)
	got := SampleCampaigns(now)
	if len(got) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(got))
	}
	if got[0].Title != "楽天スーパーセール" || got[4].Title != "Amazonプライムデー" {
		t.Errorf("sample order changed: %q ... %q", got[0].Title, got[4].Title)
	}
	for _, c := range got {
		if c.IsDangerous != (c.DangerReason != nil) {
			t.Errorf("%s: danger flag and reason disagree", c.Title)
		}
		if c.RequiredCards == nil || c.TargetStores == nil {
			t.Errorf("%s: nil collections", c.Title)
		}
	}
}

func TestLoadRegistryEmbedded(t *testing.T) {
	reg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	ids := []string{}
	for _, src := range reg.Enabled() {
		ids = append(ids, src.ID)
		if src.MaxCandidates != 10 || src.Fetch.Timeout() != 10*time.Second {
			t.Errorf("%s: defaults not applied: %d %s", src.ID, src.MaxCandidates, src.Fetch.Timeout())
		}
	}
	if len(ids) != 3 || ids[0] != "rakuten" || ids[1] != "vpoint" || ids[2] != "dpoint" {
		t.Fatalf("unexpected sources %v", ids)
	}
}

func TestParseRegistryRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing seeds", "sources:\n  - id: x\n    name: X\n    selectors: {candidates: [li], title: [h2]}\n"},
		{"missing title selectors", "sources:\n  - id: x\n    name: X\n    seed_urls: [https://x.test/]\n    selectors: {candidates: [li]}\n"},
		{"duplicate id", "sources:\n  - {id: x, name: X, seed_urls: [https://x.test/], selectors: {candidates: [li], title: [h2]}}\n  - {id: x, name: Y, seed_urls: [https://y.test/], selectors: {candidates: [li], title: [h2]}}\n"},
		{"bad card mode", "sources:\n  - {id: x, name: X, seed_urls: [https://x.test/], selectors: {candidates: [li], title: [h2]}, cards: {mode: some}}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRegistry([]byte(tt.yaml)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
