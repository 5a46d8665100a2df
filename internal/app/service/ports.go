package service

import (
	"context"
	"time"

	"github.com/jose-valero/activity-rooms-bot/internal/adapters/backend"
	"github.com/jose-valero/activity-rooms-bot/internal/domain"
	"github.com/jose-valero/activity-rooms-bot/internal/infra/storage"
)

// Lo implementa internal/adapters/backend.Client
type Backend interface {
	GetGuildSettings(ctx context.Context, guildID string) (*domain.GuildSettings, error)
	GetMemberProfile(ctx context.Context, guildID, memberID string) (*domain.MemberProfile, error)
	IncrementPoints(ctx context.Context, guildID, memberID string, kind domain.ActivityKind) (*domain.MemberProfile, error)
	GetVoiceRoom(ctx context.Context, guildID, channelID string) (*domain.VoiceRoom, error)
	CreateVoiceRoom(ctx context.Context, guildID, originID, roomID, creatorID string) (*domain.VoiceRoom, error)
	UpdateVoiceRoom(ctx context.Context, guildID, roomID string, p backend.VoiceRoomPatch) (*domain.VoiceRoom, error)
	DeleteVoiceRoom(ctx context.Context, guildID, roomID string) (bool, error)
}

// Lo implementa internal/adapters/discord.Gateway
type Discord interface {
	CreateVoiceChannel(ctx context.Context, guildID, name, parentID string, userLimit int) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
	RenameChannel(ctx context.Context, channelID, name string) error
	SetUserLimit(ctx context.Context, channelID string, limit int) error
	ChannelParent(ctx context.Context, channelID string) (string, error)
	ChannelExists(ctx context.Context, guildID, channelID string) (bool, error)

	// VoiceMembers y MemberVoiceChannel leen del state del gateway.
	VoiceMembers(guildID, channelID string) []domain.VoiceMember
	MemberVoiceChannel(guildID, memberID string) (string, bool)

	MoveMember(ctx context.Context, guildID, memberID, channelID string) error
	DisconnectMember(ctx context.Context, guildID, memberID string) error
	MemberRoles(ctx context.Context, guildID, memberID string) ([]string, error)
	AddRole(ctx context.Context, guildID, memberID, roleID string) error
	CanModerateVoice(ctx context.Context, guildID, memberID string) (bool, error)

	SendPanel(ctx context.Context, p RoomPanel) (string, error)
	EditPanel(ctx context.Context, messageID string, p RoomPanel) error
	SendRankUp(ctx context.Context, n RankUpNotice) error
	SendNotice(ctx context.Context, channelID, content string) error
}

// Lo implementa internal/infra/jobs.Scheduler
type JobScheduler interface {
	CreateRecurring(ctx context.Context, name string, payload domain.VoiceJobPayload, interval time.Duration, key string) error
	Cancel(ctx context.Context, key string) error
	List(ctx context.Context) ([]domain.RecurringJob, error)
	UpdatePayload(ctx context.Context, key string, payload domain.VoiceJobPayload) error
}

// Lo implementa internal/infra/storage.PanelRepo
type PanelRepo interface {
	Get(ctx context.Context, channelID string) (storage.RoomPanel, error)
	Upsert(ctx context.Context, p storage.RoomPanel) error
	Delete(ctx context.Context, channelID string) error
	List(ctx context.Context) ([]storage.RoomPanel, error)
	DeleteMany(ctx context.Context, channelIDs []string) (int64, error)
}

// Lo implementa internal/infra/storage.RankUpRepo
type RankUpRepo interface {
	Record(ctx context.Context, e storage.RankUpEvent) error
}

// RoomPanel es lo que el adapter de discord necesita para dibujar el panel.
type RoomPanel struct {
	GuildID         string
	ChannelID       string
	OwnerID         string
	OriginalOwnerID string
	Locked          bool
	UserLimit       int
	CanRename       bool
	CanLock         bool
	CanAdjustLimit  bool
}

// RankUpNotice: ReplyToMessageID vacío = aviso en el chat del canal de voz.
type RankUpNotice struct {
	GuildID          string
	ChannelID        string
	MemberID         string
	ReplyToMessageID string
	Kind             domain.ActivityKind
	Role             domain.ActivityRole
}

// Lo implementa internal/adapters/backend.Client (comandos de admin y /profile)
type SettingsBackend interface {
	GetGuildSettings(ctx context.Context, guildID string) (*domain.GuildSettings, error)
	ModifyActivitySettings(ctx context.Context, guildID string, kind domain.ActivityKind, p backend.ActivityPatch) error
	CreateSpawnRoom(ctx context.Context, guildID, channelID string, o backend.SpawnRoomOptions) (*domain.SpawnRoomTemplate, error)
	UpdateSpawnRoom(ctx context.Context, guildID, channelID string, o backend.SpawnRoomOptions) (*domain.SpawnRoomTemplate, error)
	DeleteSpawnRoom(ctx context.Context, guildID, channelID string) (bool, error)
	GetMemberProfile(ctx context.Context, guildID, memberID string) (*domain.MemberProfile, error)
	UpdateMemberProfile(ctx context.Context, guildID, memberID string, p backend.ProfilePatch) (*domain.MemberProfile, error)
}
