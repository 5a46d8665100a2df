// Package backend es el cliente HTTP del backend de registro. Toda lectura pasa
// primero por el cache y toda mutación exitosa lo actualiza.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jose-valero/activity-rooms-bot/internal/domain"
	"github.com/jose-valero/activity-rooms-bot/internal/infra/cache"
)

type Client struct {
	http       *http.Client
	baseURL    string
	token      string
	cache      *cache.Cache
	log        *zap.Logger
	sf         singleflight.Group
	maxRetries uint64
	retryBase  time.Duration
}

func New(baseURL, token string, c *cache.Cache, opts ...Option) *Client {
	cl := &Client{
		http:       &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		cache:      c,
		log:        zap.NewNop(),
		maxRetries: 2,
		retryBase:  200 * time.Millisecond,
	}
	for _, o := range opts {
		o(cl)
	}
	return cl
}

func seg(s string) string { return url.PathEscape(s) }

// readThrough: cache -> backend (una sola request por key en vuelo) -> cache.
// Cada llamador decodifica su propia copia.
func (c *Client) readThrough(ctx context.Context, key string, ttl time.Duration, path string, out any) error {
	if ok, err := c.cache.Get(ctx, key, out); err != nil {
		c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		var raw json.RawMessage
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &raw); err != nil {
			return nil, err
		}
		c.store(ctx, key, raw, ttl)
		return []byte(raw), nil
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(v.([]byte), out); err != nil {
		return fmt.Errorf("backend decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) store(ctx context.Context, key string, v any, ttl time.Duration) {
	if err := c.cache.Set(ctx, key, v, ttl); err != nil {
		c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Client) drop(ctx context.Context, keys ...string) {
	if err := c.cache.Del(ctx, keys...); err != nil {
		c.log.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// ---------------- settings ----------------

func (c *Client) GetGuildSettings(ctx context.Context, guildID string) (*domain.GuildSettings, error) {
	var s domain.GuildSettings
	path := "/v1/" + seg(guildID) + "/settings"
	if err := c.readThrough(ctx, cache.SettingsKey(guildID), cache.NoTTL, path, &s); err != nil {
		return nil, fmt.Errorf("get settings %s: %w", guildID, err)
	}
	return &s, nil
}

// patchCachedSettings aplica fn sobre los settings cacheados, si los hay.
// Sin entrada en cache no hay nada que escribir: la próxima lectura trae lo nuevo.
func (c *Client) patchCachedSettings(ctx context.Context, guildID string, fn func(*domain.GuildSettings)) {
	key := cache.SettingsKey(guildID)
	var s domain.GuildSettings
	ok, err := c.cache.Get(ctx, key, &s)
	if err != nil {
		c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		c.drop(ctx, key)
		return
	}
	if !ok {
		return
	}
	fn(&s)
	c.store(ctx, key, &s, cache.NoTTL)
}

// ModifyActivitySettings valida las opciones antes de salir a la red.
func (c *Client) ModifyActivitySettings(ctx context.Context, guildID string, kind domain.ActivityKind, p ActivityPatch) error {
	if _, err := domain.ParseKind(string(kind)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if p.Empty() {
		return fmt.Errorf("%w: no options provided", domain.ErrValidation)
	}
	if (p.Points != nil && *p.Points < 0) || (p.Cooldown != nil && *p.Cooldown < 0) {
		return fmt.Errorf("%w: points and cooldown must be >= 0", domain.ErrValidation)
	}

	path := fmt.Sprintf("/v1/%s/activity-tracking/%s/options", seg(guildID), kind)
	if err := c.doJSON(ctx, http.MethodPost, path, p, nil); err != nil {
		return fmt.Errorf("modify %s activity: %w", kind, err)
	}

	c.patchCachedSettings(ctx, guildID, func(s *domain.GuildSettings) {
		a := &s.ChatActivity
		if kind == domain.KindVoice {
			a = &s.VoiceActivity
		}
		if p.Enabled != nil {
			a.Enabled = *p.Enabled
		}
		if p.Points != nil {
			a.GrantAmount = *p.Points
		}
		if p.Cooldown != nil {
			a.Cooldown = *p.Cooldown
		}
	})
	return nil
}

// ---------------- spawn rooms ----------------

func (c *Client) CreateSpawnRoom(ctx context.Context, guildID, channelID string, o SpawnRoomOptions) (*domain.SpawnRoomTemplate, error) {
	if o.UserLimit != nil && (*o.UserLimit < 0 || *o.UserLimit > 99) {
		return nil, fmt.Errorf("%w: user limit must be 0..99", domain.ErrValidation)
	}
	var t domain.SpawnRoomTemplate
	path := fmt.Sprintf("/v1/%s/spawn-room/%s/create", seg(guildID), seg(channelID))
	if err := c.doJSON(ctx, http.MethodPost, path, o, &t); err != nil {
		return nil, fmt.Errorf("create spawn room %s: %w", channelID, err)
	}
	if t.ChannelID == "" {
		t.ChannelID = channelID
	}
	c.patchCachedSettings(ctx, guildID, func(s *domain.GuildSettings) { s.UpsertTemplate(t) })
	return &t, nil
}

func (c *Client) UpdateSpawnRoom(ctx context.Context, guildID, channelID string, o SpawnRoomOptions) (*domain.SpawnRoomTemplate, error) {
	if o.Empty() {
		return nil, fmt.Errorf("%w: no options provided", domain.ErrValidation)
	}
	if o.UserLimit != nil && (*o.UserLimit < 0 || *o.UserLimit > 99) {
		return nil, fmt.Errorf("%w: user limit must be 0..99", domain.ErrValidation)
	}
	var t domain.SpawnRoomTemplate
	path := fmt.Sprintf("/v1/%s/spawn-room/%s/update", seg(guildID), seg(channelID))
	if err := c.doJSON(ctx, http.MethodPost, path, o, &t); err != nil {
		return nil, fmt.Errorf("update spawn room %s: %w", channelID, err)
	}
	if t.ChannelID == "" {
		t.ChannelID = channelID
	}
	c.patchCachedSettings(ctx, guildID, func(s *domain.GuildSettings) { s.UpsertTemplate(t) })
	return &t, nil
}

func (c *Client) DeleteSpawnRoom(ctx context.Context, guildID, channelID string) (bool, error) {
	var out successDTO
	path := fmt.Sprintf("/v1/%s/spawn-room/%s/delete", seg(guildID), seg(channelID))
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, &out); err != nil {
		return false, fmt.Errorf("delete spawn room %s: %w", channelID, err)
	}
	if out.Success {
		c.patchCachedSettings(ctx, guildID, func(s *domain.GuildSettings) { s.RemoveTemplate(channelID) })
	}
	return out.Success, nil
}

// ---------------- profiles ----------------

func (c *Client) GetMemberProfile(ctx context.Context, guildID, memberID string) (*domain.MemberProfile, error) {
	var p domain.MemberProfile
	path := fmt.Sprintf("/v1/%s/%s/profile", seg(guildID), seg(memberID))
	if err := c.readThrough(ctx, cache.ProfileKey(guildID, memberID), cache.ProfileTTL, path, &p); err != nil {
		return nil, fmt.Errorf("get profile %s/%s: %w", guildID, memberID, err)
	}
	return &p, nil
}

func (c *Client) UpdateMemberProfile(ctx context.Context, guildID, memberID string, p ProfilePatch) (*domain.MemberProfile, error) {
	if p.Empty() {
		return nil, fmt.Errorf("%w: no options provided", domain.ErrValidation)
	}
	var out domain.MemberProfile
	path := fmt.Sprintf("/v1/%s/%s/profile", seg(guildID), seg(memberID))
	if err := c.doJSON(ctx, http.MethodPatch, path, p, &out); err != nil {
		return nil, fmt.Errorf("update profile %s/%s: %w", guildID, memberID, err)
	}
	c.store(ctx, cache.ProfileKey(guildID, memberID), &out, cache.ProfileTTL)
	return &out, nil
}

// IncrementPoints es la única fuente de verdad del grant; el perfil devuelto
// reemplaza al cacheado.
func (c *Client) IncrementPoints(ctx context.Context, guildID, memberID string, kind domain.ActivityKind) (*domain.MemberProfile, error) {
	if _, err := domain.ParseKind(string(kind)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	var out domain.MemberProfile
	path := fmt.Sprintf("/v1/%s/%s/increment-points/%s", seg(guildID), seg(memberID), kind)
	if err := c.doJSON(ctx, http.MethodPatch, path, nil, &out); err != nil {
		return nil, fmt.Errorf("increment %s points %s/%s: %w", kind, guildID, memberID, err)
	}
	c.store(ctx, cache.ProfileKey(guildID, memberID), &out, cache.ProfileTTL)
	return &out, nil
}

// ---------------- voice rooms ----------------

// GetVoiceRoom devuelve ErrNotFound si el canal no es un room activo.
func (c *Client) GetVoiceRoom(ctx context.Context, guildID, channelID string) (*domain.VoiceRoom, error) {
	var r domain.VoiceRoom
	path := fmt.Sprintf("/v1/%s/voice-rooms/%s", seg(guildID), seg(channelID))
	if err := c.readThrough(ctx, cache.VoiceRoomKey(guildID, channelID), cache.NoTTL, path, &r); err != nil {
		return nil, fmt.Errorf("get voice room %s: %w", channelID, err)
	}
	return &r, nil
}

func (c *Client) CreateVoiceRoom(ctx context.Context, guildID, originID, roomID, creatorID string) (*domain.VoiceRoom, error) {
	var r domain.VoiceRoom
	path := fmt.Sprintf("/v1/%s/spawn-room/%s/spawn/%s", seg(guildID), seg(originID), seg(roomID))
	if err := c.doJSON(ctx, http.MethodPost, path, spawnRoomBody{CreatorID: creatorID}, &r); err != nil {
		return nil, fmt.Errorf("create voice room %s: %w", roomID, err)
	}
	c.store(ctx, cache.VoiceRoomKey(guildID, roomID), &r, cache.NoTTL)
	return &r, nil
}

func (c *Client) UpdateVoiceRoom(ctx context.Context, guildID, roomID string, p VoiceRoomPatch) (*domain.VoiceRoom, error) {
	if p.Empty() {
		return nil, fmt.Errorf("%w: no options provided", domain.ErrValidation)
	}
	var r domain.VoiceRoom
	path := fmt.Sprintf("/v1/%s/voice-rooms/%s", seg(guildID), seg(roomID))
	if err := c.doJSON(ctx, http.MethodPut, path, p, &r); err != nil {
		return nil, fmt.Errorf("update voice room %s: %w", roomID, err)
	}
	c.store(ctx, cache.VoiceRoomKey(guildID, roomID), &r, cache.NoTTL)
	return &r, nil
}

// DeleteVoiceRoom borra el registro y su entrada de cache. Un 404 cuenta como
// ya borrado.
func (c *Client) DeleteVoiceRoom(ctx context.Context, guildID, roomID string) (bool, error) {
	key := cache.VoiceRoomKey(guildID, roomID)
	var out successDTO
	path := fmt.Sprintf("/v1/%s/voice-rooms/%s", seg(guildID), seg(roomID))
	err := c.doJSON(ctx, http.MethodDelete, path, nil, &out)
	if errors.Is(err, ErrNotFound) {
		c.drop(ctx, key)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete voice room %s: %w", roomID, err)
	}
	if out.Success {
		c.drop(ctx, key)
	}
	return out.Success, nil
}
