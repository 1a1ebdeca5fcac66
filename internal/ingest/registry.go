package ingest

import (
	"embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for all campaign sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// FetchConfig defines HTTP fetching configuration for a source.
type FetchConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"` // Default: 10
	UserAgent      string `yaml:"user_agent,omitempty"`
	AcceptLanguage string `yaml:"accept_language,omitempty"` // e.g., "ja,en;q=0.8"
}

// Timeout returns the per-page fetch timeout.
func (f FetchConfig) Timeout() time.Duration {
	if f.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// SelectorConfig lists CSS selectors in priority order.
type SelectorConfig struct {
	Candidates  []string `yaml:"candidates"`
	Title       []string `yaml:"title"`
	Link        string   `yaml:"link,omitempty"`
	LinkAttr    string   `yaml:"link_attr,omitempty"` // Attribute to extract link from (default: href)
	Description []string `yaml:"description,omitempty"`
}

type RateConfig struct {
	Points         bool `yaml:"points,omitempty"`
	ReferenceSpend int  `yaml:"reference_spend,omitempty"`
	MinPoints      int  `yaml:"min_points,omitempty"`
}

// Options converts the config into extractor options.
func (r RateConfig) Options() RateOptions {
	return RateOptions{Points: r.Points, ReferenceSpend: r.ReferenceSpend, MinPoints: r.MinPoints}
}

// Scope selects which text a keyword rule is matched against.
type Scope string

const (
	ScopeTitle Scope = "title"
	ScopeText  Scope = "text" // title + full description
)

// CardRule maps the presence of any keyword to a required card.
type CardRule struct {
	Card     string   `yaml:"card"`
	Keywords []string `yaml:"keywords"`
	Scope    Scope    `yaml:"scope,omitempty"`
}

// CardPolicy decides the required cards of a candidate. In "first" mode the
// first matching rule wins; in "all" mode every matching rule contributes.
type CardPolicy struct {
	Mode    string     `yaml:"mode,omitempty"`
	Rules   []CardRule `yaml:"rules,omitempty"`
	Default []string   `yaml:"default,omitempty"`
}

// DangerRule flags a candidate when all keywords are present.
type DangerRule struct {
	Reason         string   `yaml:"reason"`
	AllKeywords    []string `yaml:"all_keywords"`
	Scope          Scope    `yaml:"scope,omitempty"`
	WhenNoCardRule bool     `yaml:"when_no_card_rule,omitempty"`
}

// SourceConfig defines a single campaign source.
type SourceConfig struct {
	ID            string         `yaml:"id"`
	Name          string         `yaml:"name"`
	Seeds         []string       `yaml:"seed_urls"`
	Disabled      bool           `yaml:"disabled,omitempty"`
	Fetch         FetchConfig    `yaml:"fetch,omitempty"`
	Selectors     SelectorConfig `yaml:"selectors"`
	MaxCandidates int            `yaml:"max_candidates,omitempty"`
	DescMaxLen    int            `yaml:"description_max_len,omitempty"`
	BaseAmount    int            `yaml:"base_amount"`
	Rate          RateConfig     `yaml:"rate,omitempty"`
	Cards         CardPolicy     `yaml:"cards,omitempty"`
	Danger        []DangerRule   `yaml:"danger,omitempty"`
	TargetStores  []string       `yaml:"target_stores,omitempty"`
	ActionSteps   []string       `yaml:"action_steps,omitempty"`
}

// LoadRegistry reads sources.yaml and returns a Registry. An empty path uses
// the embedded copy.
func LoadRegistry(path string) (*Registry, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes, defaults and validates a registry document.
func ParseRegistry(data []byte) (*Registry, error) {
	// Expand environment variables within the YAML content (e.g. ${RAKUTEN_URL})
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}

	seen := make(map[string]bool, len(reg.Sources))
	for i := range reg.Sources {
		src := &reg.Sources[i]
		src.applyDefaults()
		if err := src.validate(); err != nil {
			return nil, err
		}
		if seen[src.ID] {
			return nil, fmt.Errorf("source %q declared twice", src.ID)
		}
		seen[src.ID] = true
	}
	return &reg, nil
}

// Enabled returns the sources that are not disabled, in declaration order.
func (r *Registry) Enabled() []SourceConfig {
	out := make([]SourceConfig, 0, len(r.Sources))
	for _, src := range r.Sources {
		if !src.Disabled {
			out = append(out, src)
		}
	}
	return out
}

// Find returns the source with the given id.
func (r *Registry) Find(id string) (SourceConfig, bool) {
	for _, src := range r.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return SourceConfig{}, false
}

func (s *SourceConfig) applyDefaults() {
	if s.MaxCandidates <= 0 {
		s.MaxCandidates = 10
	}
	if s.DescMaxLen <= 0 {
		s.DescMaxLen = 200
	}
	if s.Selectors.Link == "" {
		s.Selectors.Link = "a"
	}
	if s.Selectors.LinkAttr == "" {
		s.Selectors.LinkAttr = "href"
	}
	if s.Rate.Points && s.Rate.ReferenceSpend <= 0 {
		s.Rate.ReferenceSpend = DefaultReferenceSpend
	}
	if s.Cards.Mode == "" {
		s.Cards.Mode = "first"
	}
	for i := range s.Cards.Rules {
		if s.Cards.Rules[i].Scope == "" {
			s.Cards.Rules[i].Scope = ScopeText
		}
	}
	for i := range s.Danger {
		if s.Danger[i].Scope == "" {
			s.Danger[i].Scope = ScopeText
		}
	}
}

func (s *SourceConfig) validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("source without id")
	case s.Name == "":
		return fmt.Errorf("source %q: name is required", s.ID)
	case len(s.Seeds) == 0:
		return fmt.Errorf("source %q: at least one seed_url is required", s.ID)
	case len(s.Selectors.Candidates) == 0:
		return fmt.Errorf("source %q: selectors.candidates is required", s.ID)
	case len(s.Selectors.Title) == 0:
		return fmt.Errorf("source %q: selectors.title is required", s.ID)
	case s.BaseAmount < 0:
		return fmt.Errorf("source %q: base_amount must not be negative", s.ID)
	}
	if s.Cards.Mode != "first" && s.Cards.Mode != "all" {
		return fmt.Errorf("source %q: unknown cards.mode %q", s.ID, s.Cards.Mode)
	}
	for _, d := range s.Danger {
		if d.Reason == "" {
			return fmt.Errorf("source %q: danger rule without reason", s.ID)
		}
	}
	return nil
}
