package models

import "time"

type Plan string

const (
	PlanFree Plan = "free"
	PlanPaid Plan = "paid"
)

// ParsePlan returns the plan for s, or false when s is not a known plan.
func ParsePlan(s string) (Plan, bool) {
	switch Plan(s) {
	case PlanFree, PlanPaid:
		return Plan(s), true
	}
	return "", false
}

type Card struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer,omitempty"`
	Brand  string `json:"brand,omitempty"`
}

// UserProfile is the persisted user record.
type UserProfile struct {
	UserID            string                 `json:"user_id"`
	Plan              Plan                   `json:"plan"`
	Cards             []Card                 `json:"cards"`
	FavoriteStores    []string               `json:"favorite_stores"`
	Preferences       map[string]interface{} `json:"preferences"`
	SubscriptionStart *time.Time             `json:"subscription_start,omitempty"`
	SubscriptionEnd   *time.Time             `json:"subscription_end,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// View returns the ranking view of the profile.
func (p UserProfile) View() UserProfileView {
	cards := make([]string, 0, len(p.Cards))
	for _, c := range p.Cards {
		if c.Name != "" {
			cards = append(cards, c.Name)
		}
	}
	stores := make([]string, 0, len(p.FavoriteStores))
	stores = append(stores, p.FavoriteStores...)
	return UserProfileView{HeldCardNames: cards, FavoriteStores: stores}
}
