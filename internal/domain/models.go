package domain

import (
	"fmt"
	"strings"
	"time"
)

// ActivityKind es el tipo de actividad que acumula puntos.
type ActivityKind string

const (
	KindChat  ActivityKind = "chat"
	KindVoice ActivityKind = "voice"
)

// ParseKind valida el string antes de cualquier llamada de red.
func ParseKind(s string) (ActivityKind, error) {
	switch ActivityKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindChat:
		return KindChat, nil
	case KindVoice:
		return KindVoice, nil
	}
	return "", fmt.Errorf("invalid activity kind %q", s)
}

type ActivityRole struct {
	RoleID         string `json:"role_id"`
	RequiredPoints int    `json:"required_points"`
}

type ActivitySettings struct {
	Enabled       bool           `json:"enabled"`
	GrantAmount   int            `json:"grant_amount"`
	Cooldown      int            `json:"cooldown"` // segundos
	DenyRoles     []string       `json:"deny_roles"`
	ActivityRoles []ActivityRole `json:"activity_roles"`
}

func (a ActivitySettings) CooldownDuration() time.Duration {
	return time.Duration(a.Cooldown) * time.Second
}

// Denied: true si el miembro tiene algún rol excluido.
func (a ActivitySettings) Denied(memberRoles []string) bool {
	if len(a.DenyRoles) == 0 {
		return false
	}
	has := make(map[string]struct{}, len(memberRoles))
	for _, r := range memberRoles {
		has[r] = struct{}{}
	}
	for _, d := range a.DenyRoles {
		if _, ok := has[d]; ok {
			return true
		}
	}
	return false
}

type SpawnRoomTemplate struct {
	ChannelID      string `json:"channel_id"`
	UserLimit      int    `json:"user_limit"`
	CanRename      bool   `json:"can_rename"`
	CanLock        bool   `json:"can_lock"`
	CanAdjustLimit bool   `json:"can_adjust_limit"`
}

type GuildSettings struct {
	ChatActivity  ActivitySettings    `json:"chat_activity"`
	VoiceActivity ActivitySettings    `json:"voice_activity"`
	SpawnRooms    []SpawnRoomTemplate `json:"spawn_rooms"`
}

func (g *GuildSettings) Activity(kind ActivityKind) ActivitySettings {
	if kind == KindVoice {
		return g.VoiceActivity
	}
	return g.ChatActivity
}

// Template busca el spawn room configurado para ese canal.
func (g *GuildSettings) Template(channelID string) (SpawnRoomTemplate, bool) {
	if channelID == "" {
		return SpawnRoomTemplate{}, false
	}
	for _, t := range g.SpawnRooms {
		if t.ChannelID == channelID {
			return t, true
		}
	}
	return SpawnRoomTemplate{}, false
}

func (g *GuildSettings) IsTemplate(channelID string) bool {
	_, ok := g.Template(channelID)
	return ok
}

// UpsertTemplate reemplaza (o agrega al final) el template con el mismo channel id.
func (g *GuildSettings) UpsertTemplate(t SpawnRoomTemplate) {
	g.RemoveTemplate(t.ChannelID)
	g.SpawnRooms = append(g.SpawnRooms, t)
}

func (g *GuildSettings) RemoveTemplate(channelID string) bool {
	for i, t := range g.SpawnRooms {
		if t.ChannelID == channelID {
			g.SpawnRooms = append(g.SpawnRooms[:i], g.SpawnRooms[i+1:]...)
			return true
		}
	}
	return false
}

type ActivityProfile struct {
	LastGrant         time.Time      `json:"last_grant"`
	Rank              int            `json:"rank"`
	Points            int            `json:"points"`
	RemainingProgress int            `json:"remaining_progress"`
	CurrentRoles      []ActivityRole `json:"current_roles"`
	NextRole          *ActivityRole  `json:"next_role"`
}

// NextGrantAt es el primer instante en el que vuelve a poder sumar puntos.
func (p ActivityProfile) NextGrantAt(cooldown time.Duration) time.Time {
	return p.LastGrant.Add(cooldown)
}

// OnCooldown: now < last_grant + cooldown.
func (p ActivityProfile) OnCooldown(now time.Time, cooldown time.Duration) bool {
	return now.Before(p.NextGrantAt(cooldown))
}

// MissingRoles devuelve los roles de current_roles que el miembro no tiene.
func (p ActivityProfile) MissingRoles(memberRoles []string) []string {
	has := make(map[string]struct{}, len(memberRoles))
	for _, r := range memberRoles {
		has[r] = struct{}{}
	}
	var out []string
	for _, r := range p.CurrentRoles {
		if _, ok := has[r.RoleID]; !ok {
			out = append(out, r.RoleID)
		}
	}
	return out
}

func (p ActivityProfile) Role(roleID string) (ActivityRole, bool) {
	for _, r := range p.CurrentRoles {
		if r.RoleID == roleID {
			return r, true
		}
	}
	return ActivityRole{}, false
}

type MemberProfile struct {
	Rank          int             `json:"rank"`
	CardStyle     int             `json:"card_style"`
	ChatActivity  ActivityProfile `json:"chat_activity"`
	VoiceActivity ActivityProfile `json:"voice_activity"`
}

func (m *MemberProfile) Activity(kind ActivityKind) ActivityProfile {
	if kind == KindVoice {
		return m.VoiceActivity
	}
	return m.ChatActivity
}

// VoiceRoom es el registro de un room efímero (ActiveVoiceRoom en el backend).
type VoiceRoom struct {
	OriginChannelID string `json:"origin_channel_id"`
	ChannelID       string `json:"channel_id"`
	OriginalOwnerID string `json:"original_owner_id"`
	CurrentOwnerID  string `json:"current_owner_id"`
	IsLocked        bool   `json:"is_locked"`
}

func (r *VoiceRoom) IsOwner(userID string) bool { return r.CurrentOwnerID == userID }

func (r *VoiceRoom) IsOriginalOwner(userID string) bool { return r.OriginalOwnerID == userID }

// VoiceMember es el estado de voz de un miembro conectado a un canal.
type VoiceMember struct {
	UserID   string
	Mute     bool // server o self
	Deaf     bool // server o self
	Suppress bool
}

func (m VoiceMember) Active() bool { return !m.Mute && !m.Deaf && !m.Suppress }

// VoiceJobName es el nombre del job recurrente de puntos por voz.
const VoiceJobName = "increment-voice-activity"

// VoiceJobKey: a lo sumo un job por (guild, miembro).
func VoiceJobKey(guildID, memberID string) string {
	return "voice-activity:" + guildID + ":" + memberID
}

type VoiceJobPayload struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	MemberID  string `json:"member_id"`
}

// RecurringJob es lo que guarda el registro de jobs.
type RecurringJob struct {
	Key        string          `json:"key"`
	Name       string          `json:"name"`
	Payload    VoiceJobPayload `json:"payload"`
	IntervalMS int64           `json:"interval_ms"`
	EntryID    string          `json:"entry_id"`
}

func (j RecurringJob) Interval() time.Duration {
	return time.Duration(j.IntervalMS) * time.Millisecond
}
