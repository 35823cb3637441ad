package cache

import (
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/nestscore/nest-score-go/internal/geo"
)

const (
	detailsDefaultTTL = 7 * 24 * time.Hour
	detailsMaxEntries = 2000
)

// DetailsCache caches commercial place-details lookups. The hot path is a
// TTL map, with optional sqlite write-through so lookups survive restarts.
// Implements the hybrid provider's cache interface.
type DetailsCache struct {
	mem    *TTLCache
	db     *sql.DB
	logger *zap.Logger
}

// NewDetailsCache builds the cache. db may be nil for memory-only mode.
func NewDetailsCache(db *sql.DB, logger *zap.Logger) *DetailsCache {
	return &DetailsCache{
		mem:    NewTTLCache(detailsDefaultTTL, detailsMaxEntries),
		db:     db,
		logger: logger,
	}
}

// GetDetails returns cached details for a key, consulting memory first and
// sqlite second.
func (c *DetailsCache) GetDetails(key string) (*geo.PlaceDetails, bool) {
	if v, ok := c.mem.Get(key); ok {
		if details, ok := v.(*geo.PlaceDetails); ok {
			return details, true
		}
	}

	if c.db == nil {
		return nil, false
	}

	var raw string
	var expiresAt time.Time
	err := c.db.QueryRow(
		"SELECT details_json, expires_at FROM place_details WHERE cache_key = ?", key,
	).Scan(&raw, &expiresAt)
	if err != nil {
		return nil, false
	}
	if time.Now().After(expiresAt) {
		c.db.Exec("DELETE FROM place_details WHERE cache_key = ?", key)
		return nil, false
	}

	var details geo.PlaceDetails
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		c.logger.Warn("corrupt cached place details", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	c.mem.Set(key, &details, time.Until(expiresAt))
	return &details, true
}

// SetDetails stores details in memory and, when configured, sqlite.
func (c *DetailsCache) SetDetails(key string, details *geo.PlaceDetails, ttl time.Duration) {
	if ttl <= 0 {
		ttl = detailsDefaultTTL
	}
	c.mem.Set(key, details, ttl)

	if c.db == nil {
		return
	}

	raw, err := json.Marshal(details)
	if err != nil {
		c.logger.Warn("failed to marshal place details", zap.String("key", key), zap.Error(err))
		return
	}

	_, err = c.db.Exec(`
		INSERT INTO place_details (cache_key, details_json, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			details_json = excluded.details_json,
			expires_at = excluded.expires_at
	`, key, string(raw), time.Now().Add(ttl))
	if err != nil {
		c.logger.Warn("failed to persist place details", zap.String("key", key), zap.Error(err))
	}
}

// PruneExpired drops expired sqlite rows, returning the count removed.
func (c *DetailsCache) PruneExpired() (int64, error) {
	if c.db == nil {
		return 0, nil
	}
	res, err := c.db.Exec("DELETE FROM place_details WHERE expires_at < ?", time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
