package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/campaign-radar/internal/cache"
	"github.com/david/campaign-radar/internal/models"
)

var ErrProfileNotFound = errors.New("profile not found")

const defaultCacheKey = "campaigns"

type Store struct {
	pool *pgxpool.Pool
	Now  func() time.Time
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, Now: time.Now}
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Campaign cache

// CampaignCache is a cache.Store backed by one campaign_cache row.
type CampaignCache struct {
	store *Store
	Key   string
}

var _ cache.Store = (*CampaignCache)(nil)

func (s *Store) CampaignCache() *CampaignCache {
	return &CampaignCache{store: s, Key: defaultCacheKey}
}

func (c *CampaignCache) Load(ctx context.Context) (cache.Snapshot, error) {
	var snap cache.Snapshot
	var raw []byte
	err := c.store.pool.QueryRow(ctx, `
		SELECT cached_at, count, campaigns
		FROM campaign_cache
		WHERE cache_key = $1
	`, c.Key).Scan(&snap.CachedAt, &snap.Count, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return cache.Snapshot{}, cache.ErrMiss
	}
	if err != nil {
		return cache.Snapshot{}, fmt.Errorf("load campaign cache: %w", err)
	}
	if err := json.Unmarshal(raw, &snap.Campaigns); err != nil {
		return cache.Snapshot{}, fmt.Errorf("decode campaign cache: %w", err)
	}
	return snap, nil
}

func (c *CampaignCache) Save(ctx context.Context, snap cache.Snapshot) error {
	raw, err := json.Marshal(snap.Campaigns)
	if err != nil {
		return fmt.Errorf("encode campaign cache: %w", err)
	}
	_, err = c.store.pool.Exec(ctx, `
		INSERT INTO campaign_cache (cache_key, cached_at, count, campaigns, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (cache_key) DO UPDATE SET
			cached_at = EXCLUDED.cached_at,
			count = EXCLUDED.count,
			campaigns = EXCLUDED.campaigns,
			updated_at = NOW()
	`, c.Key, snap.CachedAt, snap.Count, raw)
	if err != nil {
		return fmt.Errorf("save campaign cache: %w", err)
	}
	return nil
}

// Profiles

const profileCols = `user_id, plan, cards, favorite_stores, preferences,
	subscription_start, subscription_end, created_at, updated_at`

func scanProfile(row pgx.Row) (*models.UserProfile, error) {
	var p models.UserProfile
	var plan string
	var cardsRaw, storesRaw, prefsRaw []byte

	err := row.Scan(
		&p.UserID, &plan, &cardsRaw, &storesRaw, &prefsRaw,
		&p.SubscriptionStart, &p.SubscriptionEnd, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Plan = models.PlanFree
	if parsed, ok := models.ParsePlan(plan); ok {
		p.Plan = parsed
	}
	if err := unmarshalOr(cardsRaw, &p.Cards); err != nil {
		return nil, fmt.Errorf("decode cards: %w", err)
	}
	if err := unmarshalOr(storesRaw, &p.FavoriteStores); err != nil {
		return nil, fmt.Errorf("decode favorite stores: %w", err)
	}
	if err := unmarshalOr(prefsRaw, &p.Preferences); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	if p.Cards == nil {
		p.Cards = []models.Card{}
	}
	if p.FavoriteStores == nil {
		p.FavoriteStores = []string{}
	}
	if p.Preferences == nil {
		p.Preferences = map[string]interface{}{}
	}
	return &p, nil
}

func unmarshalOr(raw []byte, dest interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx, "SELECT "+profileCols+" FROM users WHERE user_id = $1", userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// GetOrCreateProfile returns the stored profile, registering a free-plan
// user on first sight.
func (s *Store) GetOrCreateProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO users (user_id, plan)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, string(models.PlanFree)); err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}
	return s.GetProfile(ctx, userID)
}

// AddCard appends card unless a card with the same name is already held.
func (s *Store) AddCard(ctx context.Context, userID string, card models.Card) (*models.UserProfile, error) {
	card.Name = strings.TrimSpace(card.Name)
	if card.Name == "" {
		return nil, errors.New("card name is required")
	}
	return s.updateProfile(ctx, userID, func(p *models.UserProfile) bool {
		var changed bool
		p.Cards, changed = withCard(p.Cards, card)
		return changed
	})
}

// AddFavoriteStore appends store unless it is already a favorite.
func (s *Store) AddFavoriteStore(ctx context.Context, userID, store string) (*models.UserProfile, error) {
	store = strings.TrimSpace(store)
	if store == "" {
		return nil, errors.New("store name is required")
	}
	return s.updateProfile(ctx, userID, func(p *models.UserProfile) bool {
		var changed bool
		p.FavoriteStores, changed = withStore(p.FavoriteStores, store)
		return changed
	})
}

// SetPlan switches the plan, stamping the subscription start or end.
func (s *Store) SetPlan(ctx context.Context, userID string, plan models.Plan) (*models.UserProfile, error) {
	if _, ok := models.ParsePlan(string(plan)); !ok {
		return nil, fmt.Errorf("unknown plan %q", plan)
	}
	now := s.now()
	return s.updateProfile(ctx, userID, func(p *models.UserProfile) bool {
		return applyPlan(p, plan, now)
	})
}

// updateProfile locks the row, applies mutate and writes it back when mutate
// reports a change.
func (s *Store) updateProfile(ctx context.Context, userID string, mutate func(*models.UserProfile) bool) (*models.UserProfile, error) {
	if _, err := s.GetOrCreateProfile(ctx, userID); err != nil {
		return nil, err
	}

	var out *models.UserProfile
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		p, err := scanProfile(tx.QueryRow(ctx, "SELECT "+profileCols+" FROM users WHERE user_id = $1 FOR UPDATE", userID))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProfileNotFound
		}
		if err != nil {
			return err
		}
		if !mutate(p) {
			out = p
			return nil
		}

		cards, err := json.Marshal(p.Cards)
		if err != nil {
			return err
		}
		stores, err := json.Marshal(p.FavoriteStores)
		if err != nil {
			return err
		}
		p.UpdatedAt = s.now()
		_, err = tx.Exec(ctx, `
			UPDATE users SET
				plan = $2,
				cards = $3,
				favorite_stores = $4,
				subscription_start = $5,
				subscription_end = $6,
				updated_at = $7
			WHERE user_id = $1
		`, p.UserID, string(p.Plan), cards, stores, p.SubscriptionStart, p.SubscriptionEnd, p.UpdatedAt)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return out, nil
}

func withCard(cards []models.Card, card models.Card) ([]models.Card, bool) {
	for _, c := range cards {
		if c.Name == card.Name {
			return cards, false
		}
	}
	return append(cards, card), true
}

func withStore(stores []string, store string) ([]string, bool) {
	for _, s := range stores {
		if s == store {
			return stores, false
		}
	}
	return append(stores, store), true
}

func applyPlan(p *models.UserProfile, plan models.Plan, now time.Time) bool {
	if p.Plan == plan {
		return false
	}
	p.Plan = plan
	switch plan {
	case models.PlanPaid:
		p.SubscriptionStart = &now
		p.SubscriptionEnd = nil
	case models.PlanFree:
		p.SubscriptionEnd = &now
	}
	return true
}
