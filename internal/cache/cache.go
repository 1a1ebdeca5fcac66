package cache

import (
	"context"
	"errors"
	"time"

	"github.com/david/campaign-radar/internal/models"
)

// ErrMiss is returned by Load when nothing has been stored yet.
var ErrMiss = errors.New("cache miss")

// DefaultTTL is the freshness window of a snapshot.
const DefaultTTL = 24 * time.Hour

// Snapshot is the persisted form of one collection run.
type Snapshot struct {
	CachedAt  time.Time         `json:"cached_at"`
	Count     int               `json:"count"`
	Campaigns []models.Campaign `json:"campaigns"`
}

func NewSnapshot(campaigns []models.Campaign, at time.Time) Snapshot {
	if campaigns == nil {
		campaigns = []models.Campaign{}
	}
	return Snapshot{CachedAt: at, Count: len(campaigns), Campaigns: campaigns}
}

// Fresh reports whether the snapshot is no older than ttl at now.
func (s Snapshot) Fresh(now time.Time, ttl time.Duration) bool {
	if s.CachedAt.IsZero() {
		return false
	}
	return now.Sub(s.CachedAt) <= ttl
}

// Store persists snapshots. Implementations return ErrMiss from Load when
// there is nothing stored; any other error means the stored data is unusable.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}
