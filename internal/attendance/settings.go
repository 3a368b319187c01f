package attendance

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"rfidattend/internal/engine"
)

// Settings is the system configuration: the engine's validation knobs plus
// the host-level notification thresholds.
type Settings struct {
	engine.Settings
	EmailNotificationsEnabled bool `json:"email_notifications_enabled"`
	SendWarningsAfter         int  `json:"send_warnings_after"`
}

// DefaultSettings returns the configuration used before an admin ever saves
// the settings page.
func DefaultSettings() Settings {
	classStart := engine.NewTimeOfDay(8, 0)
	classEnd := engine.NewTimeOfDay(17, 0)
	return Settings{
		Settings: engine.Settings{
			EnableTimeValidation: true,
			EarlyMinutes:         30,
			LateMinutes:          60,
			GraceMinutes:         15,
			TimeoutBeforeMinutes: 15,
			ClassStart:           &classStart,
			ClassEnd:             &classEnd,
		},
		EmailNotificationsEnabled: true,
		SendWarningsAfter:         3,
	}
}

const settingsKey = "rfidattend:settings"

type settingsSource interface {
	Settings(ctx context.Context) (Settings, error)
}

// SettingsCache serves the settings row with a short TTL so every scan does
// not hit the database. Redis-backed when a client is given, otherwise a
// process-local cache. Saving settings must Invalidate.
type SettingsCache struct {
	repo settingsSource
	rdb  *redis.Client
	ttl  time.Duration

	mu     sync.Mutex
	local  *Settings
	expiry time.Time
}

// NewSettingsCache creates the cache; rdb may be nil.
func NewSettingsCache(repo settingsSource, rdb *redis.Client, ttl time.Duration) *SettingsCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SettingsCache{repo: repo, rdb: rdb, ttl: ttl}
}

// Get returns the current settings, from cache when fresh.
func (c *SettingsCache) Get(ctx context.Context) (Settings, error) {
	if c.rdb != nil {
		if raw, err := c.rdb.Get(ctx, settingsKey).Bytes(); err == nil {
			var st Settings
			if err := json.Unmarshal(raw, &st); err == nil {
				return st, nil
			}
		}
		st, err := c.repo.Settings(ctx)
		if err != nil {
			return Settings{}, err
		}
		if raw, err := json.Marshal(st); err == nil {
			if err := c.rdb.Set(ctx, settingsKey, raw, c.ttl).Err(); err != nil {
				log.Printf("settings cache set failed: %v", err)
			}
		}
		return st, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.local != nil && time.Now().Before(c.expiry) {
		return *c.local, nil
	}
	st, err := c.repo.Settings(ctx)
	if err != nil {
		return Settings{}, err
	}
	c.local = &st
	c.expiry = time.Now().Add(c.ttl)
	return st, nil
}

// Invalidate drops the cached copy so the next Get reloads from the store.
func (c *SettingsCache) Invalidate(ctx context.Context) {
	if c.rdb != nil {
		if err := c.rdb.Del(ctx, settingsKey).Err(); err != nil {
			log.Printf("settings cache invalidate failed: %v", err)
		}
		return
	}
	c.mu.Lock()
	c.local = nil
	c.mu.Unlock()
}
