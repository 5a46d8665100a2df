// Package httpbackend recibe los avisos del backend y borra las entradas de
// cache que quedaron viejas.
package httpbackend

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jose-valero/activity-rooms-bot/internal/infra/cache"
)

const (
	EventSettingsUpdated  = "settings.updated"
	EventProfileUpdated   = "profile.updated"
	EventVoiceRoomDeleted = "voice_room.deleted"

	SecretHeader = "X-Backend-Secret"
)

var (
	ErrBadEvent     = errors.New("bad webhook event")
	ErrUnknownEvent = errors.New("unknown webhook event")
)

type Event struct {
	Type      string `json:"type"`
	GuildID   string `json:"guild_id"`
	MemberID  string `json:"member_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
}

func ParseEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	return ev, nil
}

// Keys devuelve las claves a borrar para el evento.
func (ev Event) Keys() ([]string, error) {
	if ev.GuildID == "" {
		return nil, fmt.Errorf("%w: guild_id required", ErrBadEvent)
	}
	switch ev.Type {
	case EventSettingsUpdated:
		return []string{cache.SettingsKey(ev.GuildID)}, nil
	case EventProfileUpdated:
		if ev.MemberID == "" {
			return nil, fmt.Errorf("%w: member_id required", ErrBadEvent)
		}
		return []string{cache.ProfileKey(ev.GuildID, ev.MemberID)}, nil
	case EventVoiceRoomDeleted:
		if ev.ChannelID == "" {
			return nil, fmt.Errorf("%w: channel_id required", ErrBadEvent)
		}
		return []string{cache.VoiceRoomKey(ev.GuildID, ev.ChannelID)}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
}

// Authorized compara en tiempo constante; sin secreto configurado no pasa nada.
func Authorized(got, secret string) bool {
	return secret != "" && subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}

type Invalidator struct {
	cache *cache.Cache
	log   *zap.Logger
}

func NewInvalidator(c *cache.Cache, log *zap.Logger) *Invalidator {
	return &Invalidator{cache: c, log: log.Named("invalidator")}
}

func (i *Invalidator) Apply(ctx context.Context, ev Event) error {
	keys, err := ev.Keys()
	if err != nil {
		return err
	}
	if err := i.cache.Del(ctx, keys...); err != nil {
		return err
	}
	i.log.Info("cache invalidated", zap.String("event", ev.Type), zap.String("guild", ev.GuildID), zap.Strings("keys", keys))
	return nil
}
