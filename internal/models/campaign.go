package models

import "time"

// Window is the validity period of a campaign. End is always resolved.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Campaign is the canonical record produced by the source adapters.
type Campaign struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	URL               string   `json:"url"`
	Source            string   `json:"source"`
	Window            Window   `json:"window"`
	BaseAmount        int      `json:"base_amount"`
	ReturnRatePercent int      `json:"return_rate_percent"`
	RequiredCards     []string `json:"required_cards"`
	TargetStores      []string `json:"target_stores"`
	IsDangerous       bool     `json:"is_dangerous"`
	DangerReason      *string  `json:"danger_reason,omitempty"`
	ActionSteps       []string `json:"action_steps"`
	Summary           string   `json:"summary_short,omitempty"`
}

// RankedCampaign is a Campaign with the user-specific fields computed by the ranker.
type RankedCampaign struct {
	Campaign
	Score          float64 `json:"score"`
	ExpectedReturn int     `json:"expected_return"`
	DaysRemaining  int     `json:"days_remaining"`
	Reason         string  `json:"reason"`
}

// UserProfileView is the read-only slice of a user profile the ranker needs.
type UserProfileView struct {
	HeldCardNames  []string `json:"held_cards"`
	FavoriteStores []string `json:"favorite_stores"`
}

// HoldsCard reports whether name is one of the held cards.
func (v UserProfileView) HoldsCard(name string) bool {
	for _, c := range v.HeldCardNames {
		if c == name {
			return true
		}
	}
	return false
}

// Favors reports whether store is one of the favorite stores.
func (v UserProfileView) Favors(store string) bool {
	for _, s := range v.FavoriteStores {
		if s == store {
			return true
		}
	}
	return false
}
