// Package cache es el acceso tipado a Redis que está delante del backend.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ProfileTTL: los perfiles se refrescan solos cada 15 minutos.
const ProfileTTL = 15 * time.Minute

// NoTTL: settings y rooms se invalidan a mano.
const NoTTL time.Duration = 0

func SettingsKey(guildID string) string { return "settings_" + guildID }

func ProfileKey(guildID, memberID string) string {
	return fmt.Sprintf("member-profile_%s:%s", guildID, memberID)
}

func VoiceRoomKey(guildID, channelID string) string {
	return fmt.Sprintf("voice-room_%s:%s", guildID, channelID)
}

type Cache struct {
	rdb redis.UniversalClient
}

func New(rdb redis.UniversalClient) *Cache { return &Cache{rdb: rdb} }

// Connect abre el cliente y hace ping.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 2,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (c *Cache) Client() redis.UniversalClient { return c.rdb }

// Get deja en out el valor cacheado. ok=false si no existe o si está corrupto.
func (c *Cache) Get(ctx context.Context, key string, out any) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		// valor ilegible: lo tratamos como miss y se vuelve a poblar
		return false, nil
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache del: %w", err)
	}
	return nil
}
