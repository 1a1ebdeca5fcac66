package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/david/campaign-radar/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	ReturnComponentCap = 50.0
	EligibleBonus      = 20.0
	IneligiblePenalty  = -10.0
	DangerPenalty      = -50.0

	// UnknownDaysRemaining is reported for a record without an end date.
	UnknownDaysRemaining = 999

	MissedValueBase     = 5000
	MissedValuePerCard  = 500
	MissedValuePerStore = 300
)

// urgencyTiers are checked in order; the first tier whose limit is not
// exceeded wins.
var urgencyTiers = []struct {
	maxDays int
	points  float64
}{
	{3, 30},
	{7, 20},
	{14, 10},
}

// spendMultiplier is kept as a ratio so expected returns floor exactly.
type spendMultiplier struct{ num, den int }

var (
	multiplierNeutral  = spendMultiplier{1, 1}
	multiplierFavorite = spendMultiplier{3, 2}
	multiplierOther    = spendMultiplier{4, 5}
)

func (m spendMultiplier) Float() float64 { return float64(m.num) / float64(m.den) }

var yen = message.NewPrinter(language.Japanese)

// Breakdown is the component view of a score.
type Breakdown struct {
	Return      float64 `json:"return"`
	Urgency     float64 `json:"urgency"`
	Eligibility float64 `json:"eligibility"`
	Risk        float64 `json:"risk"`
	Total       float64 `json:"total"`
}

// Ranker scores campaigns against a user profile. Now defaults to time.Now.
type Ranker struct {
	Now func() time.Time
}

func (r *Ranker) now() time.Time {
	if r == nil || r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Rank scores every campaign and sorts descending by score. Ties keep input order.
func (r *Ranker) Rank(campaigns []models.Campaign, profile models.UserProfileView) []models.RankedCampaign {
	now := r.now()
	ranked := make([]models.RankedCampaign, 0, len(campaigns))
	for _, c := range campaigns {
		ranked = append(ranked, Evaluate(c, profile, now))
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Evaluate computes every user-specific field of c at now.
func Evaluate(c models.Campaign, profile models.UserProfileView, now time.Time) models.RankedCampaign {
	expected := ExpectedReturn(c, profile)
	days := DaysRemaining(c, now)
	return models.RankedCampaign{
		Campaign:       c,
		Score:          Score(c, profile, now),
		ExpectedReturn: expected,
		DaysRemaining:  days,
		Reason:         Reason(c, profile, expected, days),
	}
}

func Score(c models.Campaign, profile models.UserProfileView, now time.Time) float64 {
	return ScoreBreakdown(c, profile, now).Total
}

func ScoreBreakdown(c models.Campaign, profile models.UserProfileView, now time.Time) Breakdown {
	b := Breakdown{
		Return:      math.Min(float64(ExpectedReturn(c, profile))/100, ReturnComponentCap),
		Urgency:     Urgency(DaysRemaining(c, now)),
		Eligibility: IneligiblePenalty,
	}
	if Eligible(c, profile) {
		b.Eligibility = EligibleBonus
	}
	if c.IsDangerous {
		b.Risk = DangerPenalty
	}
	b.Total = math.Max(b.Return+b.Urgency+b.Eligibility+b.Risk, 0)
	return b
}

// Urgency maps days remaining onto the tiered urgency component.
func Urgency(days int) float64 {
	for _, tier := range urgencyTiers {
		if days <= tier.maxDays {
			return tier.points
		}
	}
	return 0
}

// Eligible reports whether the user holds one of the required cards, or none are required.
func Eligible(c models.Campaign, profile models.UserProfileView) bool {
	if len(c.RequiredCards) == 0 {
		return true
	}
	for _, card := range c.RequiredCards {
		if profile.HoldsCard(card) {
			return true
		}
	}
	return false
}

func multiplierFor(c models.Campaign, profile models.UserProfileView) spendMultiplier {
	if len(c.TargetStores) == 0 {
		return multiplierNeutral
	}
	for _, store := range c.TargetStores {
		if profile.Favors(store) {
			return multiplierFavorite
		}
	}
	return multiplierOther
}

// SpendMultiplier is 1.5 when a target store is a favorite, 0.8 when none is,
// and 1.0 when the campaign names no stores.
func SpendMultiplier(c models.Campaign, profile models.UserProfileView) float64 {
	return multiplierFor(c, profile).Float()
}

// ExpectedReturn is floor(base × rate/100 × multiplier) in yen.
func ExpectedReturn(c models.Campaign, profile models.UserProfileView) int {
	if c.BaseAmount <= 0 || c.ReturnRatePercent <= 0 {
		return 0
	}
	m := multiplierFor(c, profile)
	// Saturate instead of wrapping on absurd inputs.
	if c.BaseAmount > math.MaxInt/c.ReturnRatePercent/m.num {
		return math.MaxInt / (100 * m.den)
	}
	return c.BaseAmount * c.ReturnRatePercent * m.num / (100 * m.den)
}

// DaysRemaining counts whole days until the window closes, never below zero.
func DaysRemaining(c models.Campaign, now time.Time) int {
	if c.Window.End.IsZero() {
		return UnknownDaysRemaining
	}
	left := c.Window.End.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / (24 * time.Hour))
}

// Reason builds at most two clauses explaining the recommendation.
func Reason(c models.Campaign, profile models.UserProfileView, expected, days int) string {
	var clauses []string

	switch {
	case expected >= 1000:
		clauses = append(clauses, yen.Sprintf("期待還元額が約%d円と高額", expected))
	case expected >= 500:
		clauses = append(clauses, yen.Sprintf("約%d円の還元が見込める", expected))
	}

	switch {
	case days <= 3:
		clauses = append(clauses, yen.Sprintf("締切まで残り%d日", days))
	case days <= 7:
		clauses = append(clauses, yen.Sprintf("締切が%d日後に迫っている", days))
	}

	if Eligible(c, profile) && len(c.RequiredCards) > 0 && c.RequiredCards[0] != "" {
		clauses = append(clauses, c.RequiredCards[0]+"保有で条件クリア")
	}

	if len(clauses) == 0 {
		clauses = []string{"あなたの利用傾向に合致", "手続きが簡単"}
	}
	if len(clauses) > 2 {
		clauses = clauses[:2]
	}
	return strings.Join(clauses, "。") + "。"
}

// EstimateMissedValue is the free-plan upsell figure. It does not look at campaigns.
func EstimateMissedValue(profile models.UserProfileView) int {
	return MissedValueBase +
		MissedValuePerCard*len(profile.HeldCardNames) +
		MissedValuePerStore*len(profile.FavoriteStores)
}
