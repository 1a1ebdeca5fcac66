package ingest

import (
	"testing"
	"time"
)

var jst = time.FixedZone("JST", 9*60*60)

func TestExtractReturnRate(t *testing.T) {
	noPoints := RateOptions{}
	points := RateOptions{Points: true, ReferenceSpend: 10000}
	pointsMin := RateOptions{Points: true, ReferenceSpend: 10000, MinPoints: 1000}

	tests := []struct {
		name string
		text string
		opts RateOptions
		want int
		rule string
	}{
		{"multiplier", "楽天市場でポイント10倍キャンペーン", noPoints, 10, "multiplier"},
		{"percent", "対象店舗で20%還元", noPoints, 20, "percent"},
		{"full width percent", "全品２０％還元", noPoints, 20, "percent"},
		{"multiplier beats percent", "最大20%還元 さらにポイント3倍", noPoints, 3, "multiplier"},
		{"no pattern", "お得なキャンペーン実施中", noPoints, 5, "default"},
		{"points ignored when disabled", "500ポイントプレゼント", noPoints, 5, "default"},
		{"points converted", "もれなく1,500ポイント", points, 15, "points"},
		{"points rounded", "155ポイント進呈", points, 2, "points"},
		{"points floor of one", "30ポイント進呈", points, 1, "points"},
		{"points below minimum fall through", "500ポイント進呈", pointsMin, 5, "default"},
		{"points at minimum", "3,000ポイント進呈", pointsMin, 30, "points"},
		{"percent beats points", "10%還元 最大5,000ポイント", pointsMin, 10, "percent"},
		{"implausible multiplier falls through", "3074457345618258603倍 20%還元", noPoints, 20, "percent"},
		{"implausible percent falls through", "99999%還元", noPoints, 5, "default"},
		{"implausible points fall through", "9,999,999,999ポイント", points, 5, "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseReturnRate(tt.text, tt.opts)
			if got.Percent != tt.want {
				t.Errorf("ParseReturnRate(%q) = %d, want %d", tt.text, got.Percent, tt.want)
			}
			if got.Rule != tt.rule {
				t.Errorf("ParseReturnRate(%q) rule = %s, want %s", tt.text, got.Rule, tt.rule)
			}
			if ExtractReturnRate(tt.text, tt.opts) != got.Percent {
				t.Errorf("ExtractReturnRate disagrees with ParseReturnRate for %q", tt.text)
			}
		})
	}
}

func TestExtractEndDate(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, jst)
	eod := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 23, 59, 59, 0, jst)
	}
	fallback := now.Add(30 * 24 * time.Hour)

	tests := []struct {
		name string
		text string
		want time.Time
		rule string
	}{
		{"full date", "2026年4月30日まで", eod(2026, 4, 30), "year_month_day"},
		{"full date in the past is kept", "2025年12月1日まで", eod(2025, 12, 1), "year_month_day"},
		{"full width digits", "２０２６年５月１日まで", eod(2026, 5, 1), "year_month_day"},
		{"leap day", "2028年2月29日まで", eod(2028, 2, 29), "year_month_day"},
		{"month day this year", "期間：3月31日まで", eod(2026, 3, 31), "month_day"},
		{"month day today is not rolled", "3月15日まで", eod(2026, 3, 15), "month_day"},
		{"month day rolled to next year", "1月10日まで", eod(2027, 1, 10), "month_day"},
		{"invalid full date falls through to default", "2026年2月30日まで", fallback, "default"},
		{"invalid month", "13月1日まで", fallback, "default"},
		{"no date", "キャンペーン実施中", fallback, "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseEndDate(tt.text, now)
			if !got.End.Equal(tt.want) {
				t.Errorf("ParseEndDate(%q) = %s, want %s", tt.text, got.End, tt.want)
			}
			if got.Rule != tt.rule {
				t.Errorf("ParseEndDate(%q) rule = %s, want %s", tt.text, got.Rule, tt.rule)
			}
			if got.End.Location() != jst {
				t.Errorf("expected result in caller location, got %s", got.End.Location())
			}
		})
	}
}

func TestExtractEndDateFallbackTracksNow(t *testing.T) {
	now := time.Now()
	got := ExtractEndDate("", now)
	diff := got.Sub(now.Add(30 * 24 * time.Hour))
	if diff < -time.Second || diff > time.Second {
		t.Fatalf("expected now+30d within 1s, got diff %s", diff)
	}
}

func TestClassifyDpoint(t *testing.T) {
	reg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	src, ok := reg.Find("dpoint")
	if !ok {
		t.Fatal("dpoint source missing from registry")
	}

	tests := []struct {
		name      string
		title     string
		desc      string
		cards     []string
		dangerous bool
	}{
		{"gold in title", "dカード gold 特典", "", []string{"dカード GOLD"}, false},
		{"gold katakana", "dカード ゴールド入会特典", "", []string{"dカード GOLD"}, false},
		{"regular card in description", "春のキャンペーン", "dカードでのお支払いで", []string{"dカード"}, false},
		{"exclusive without card rule is dangerous", "ドコモ限定キャンペーン", "", []string{"dカード"}, true},
		{"exclusive with card rule is not dangerous", "ドコモ限定 dカード特典", "", []string{"dカード"}, false},
		{"nothing matched", "春のキャンペーン", "", []string{"dカード"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(src, tt.title, tt.title+" "+tt.desc)
			if len(got.RequiredCards) != len(tt.cards) || got.RequiredCards[0] != tt.cards[0] {
				t.Errorf("cards = %v, want %v", got.RequiredCards, tt.cards)
			}
			if got.IsDangerous != tt.dangerous {
				t.Errorf("dangerous = %v, want %v", got.IsDangerous, tt.dangerous)
			}
			if tt.dangerous && (got.DangerReason == nil || *got.DangerReason == "") {
				t.Error("dangerous record needs a reason")
			}
			if !tt.dangerous && got.DangerReason != nil {
				t.Errorf("reason must be absent when not dangerous, got %q", *got.DangerReason)
			}
		})
	}
}

func TestClassifyVpointCollectsEveryMatchingCard(t *testing.T) {
	reg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	src, _ := reg.Find("vpoint")

	got := Classify(src, "三井住友カード・セゾンカード共通", "")
	if len(got.RequiredCards) != 2 || got.RequiredCards[0] != "三井住友カード" || got.RequiredCards[1] != "セゾンカード" {
		t.Fatalf("cards = %v", got.RequiredCards)
	}

	got = Classify(src, "Vポイントアッププログラム", "")
	if len(got.RequiredCards) != 1 || got.RequiredCards[0] != "三井住友カード" || got.CardRuleMatched {
		t.Fatalf("expected default card, got %v (matched=%v)", got.RequiredCards, got.CardRuleMatched)
	}
}
