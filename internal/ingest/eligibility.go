package ingest

import "strings"

// Eligibility is the card requirement and risk verdict for one candidate.
type Eligibility struct {
	RequiredCards   []string
	CardRuleMatched bool
	IsDangerous     bool
	DangerReason    *string
}

// RequiredCards applies the policy to a candidate. It reports whether any
// rule matched; when none did the default cards are returned.
func (p CardPolicy) RequiredCards(title, text string) ([]string, bool) {
	var cards []string
	for _, rule := range p.Rules {
		if !containsAnyFold(scopedText(rule.Scope, title, text), rule.Keywords) {
			continue
		}
		cards = appendUnique(cards, rule.Card)
		if p.Mode != "all" {
			break
		}
	}
	if len(cards) > 0 {
		return cards, true
	}
	return append([]string{}, p.Default...), false
}

// Classify computes the eligibility metadata of a candidate for src.
// text is the title joined with the full, untruncated description.
func Classify(src SourceConfig, title, text string) Eligibility {
	cards, matched := src.Cards.RequiredCards(title, text)
	out := Eligibility{RequiredCards: cards, CardRuleMatched: matched}
	for _, rule := range src.Danger {
		if rule.WhenNoCardRule && matched {
			continue
		}
		if !containsAllFold(scopedText(rule.Scope, title, text), rule.AllKeywords) {
			continue
		}
		reason := rule.Reason
		out.IsDangerous = true
		out.DangerReason = &reason
		break
	}
	return out
}

func scopedText(scope Scope, title, text string) string {
	if scope == ScopeTitle {
		return title
	}
	return text
}

func containsAnyFold(s string, keywords []string) bool {
	for _, kw := range keywords {
		if containsFold(s, kw) {
			return true
		}
	}
	return false
}

func containsAllFold(s string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	for _, kw := range keywords {
		if !containsFold(s, kw) {
			return false
		}
	}
	return true
}

func containsFold(s, substr string) bool {
	if substr == "" {
		return false
	}
	return strings.Contains(strings.ToUpper(foldText(s)), strings.ToUpper(foldText(substr)))
}
