package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jose-valero/activity-rooms-bot/internal/domain"
	"github.com/jose-valero/activity-rooms-bot/internal/infra/storage"
)

// ActivityService suma puntos por chat y por voz y entrega los roles de nivel.
type ActivityService struct {
	backend Backend
	dc      Discord
	rankups RankUpRepo
	log     *zap.Logger
	now     func() time.Time
}

func NewActivityService(b Backend, dc Discord, rankups RankUpRepo, log *zap.Logger) *ActivityService {
	return &ActivityService{backend: b, dc: dc, rankups: rankups, log: log.Named("activity"), now: time.Now}
}

func (a *ActivityService) WithClock(now func() time.Time) *ActivityService {
	a.now = now
	return a
}

// GrantChat corre por cada mensaje de un humano en un guild.
func (a *ActivityService) GrantChat(ctx context.Context, msg ChatMessage) error {
	settings, err := a.backend.GetGuildSettings(ctx, msg.GuildID)
	if err != nil {
		return err
	}
	act := settings.ChatActivity
	if !act.Enabled {
		return nil
	}

	return a.grant(ctx, domain.KindChat, act, msg.GuildID, msg.AuthorID, func(role domain.ActivityRole) RankUpNotice {
		return RankUpNotice{
			GuildID:          msg.GuildID,
			ChannelID:        msg.ChannelID,
			MemberID:         msg.AuthorID,
			ReplyToMessageID: msg.MessageID,
			Kind:             domain.KindChat,
			Role:             role,
		}
	})
}

// GrantVoice es el cuerpo del job recurrente. Devuelve *TaskError cuando el
// job ya no tiene sentido y hay que cancelarlo.
func (a *ActivityService) GrantVoice(ctx context.Context, p domain.VoiceJobPayload) error {
	settings, err := a.backend.GetGuildSettings(ctx, p.GuildID)
	if err != nil {
		return err
	}
	act := settings.VoiceActivity
	if !act.Enabled {
		return taskFailure(p, "voice tracking is disabled")
	}

	ok, err := a.dc.ChannelExists(ctx, p.GuildID, p.ChannelID)
	if err != nil {
		return err
	}
	if !ok {
		return taskFailure(p, "guild or channel not found")
	}

	members := a.dc.VoiceMembers(p.GuildID, p.ChannelID)
	var me *domain.VoiceMember
	active := 0
	for i := range members {
		if members[i].UserID == p.MemberID {
			me = &members[i]
		}
		if members[i].Active() {
			active++
		}
	}
	if me == nil {
		return taskFailure(p, "member is no longer in the channel")
	}
	// mute/deaf/suppress o solo en el canal: no suma pero el job sigue
	if !me.Active() || active <= 1 || len(members) <= 1 {
		return nil
	}

	return a.grant(ctx, domain.KindVoice, act, p.GuildID, p.MemberID, func(role domain.ActivityRole) RankUpNotice {
		return RankUpNotice{
			GuildID:   p.GuildID,
			ChannelID: p.ChannelID,
			MemberID:  p.MemberID,
			Kind:      domain.KindVoice,
			Role:      role,
		}
	})
}

func (a *ActivityService) grant(ctx context.Context, kind domain.ActivityKind, act domain.ActivitySettings, guildID, memberID string, notice func(domain.ActivityRole) RankUpNotice) error {
	log := a.log.With(zap.String("kind", string(kind)), zap.String("guild", guildID), zap.String("member", memberID))

	roles, err := a.dc.MemberRoles(ctx, guildID, memberID)
	if err != nil {
		return fmt.Errorf("member roles: %w", err)
	}
	if act.Denied(roles) {
		return nil
	}

	profile, err := a.backend.GetMemberProfile(ctx, guildID, memberID)
	if err != nil {
		return err
	}
	if profile.Activity(kind).OnCooldown(a.now(), act.CooldownDuration()) {
		return nil
	}

	updated, err := a.backend.IncrementPoints(ctx, guildID, memberID, kind)
	if err != nil {
		return err
	}
	ap := updated.Activity(kind)
	log.Debug("points granted", zap.Int("points", ap.Points))

	missing := ap.MissingRoles(roles)
	for _, roleID := range missing {
		if err := a.dc.AddRole(ctx, guildID, memberID, roleID); err != nil {
			return fmt.Errorf("add role %s: %w", roleID, err)
		}
	}
	// con más de un rol nuevo de golpe no avisamos
	if len(missing) != 1 {
		return nil
	}

	role, _ := ap.Role(missing[0])
	if err := a.dc.SendRankUp(ctx, notice(role)); err != nil {
		log.Warn("rank up notice failed", zap.Error(err))
	}
	if err := a.rankups.Record(ctx, storage.RankUpEvent{
		GuildID:        guildID,
		MemberID:       memberID,
		Kind:           string(kind),
		RoleID:         role.RoleID,
		RequiredPoints: role.RequiredPoints,
	}); err != nil {
		log.Warn("rank up audit failed", zap.Error(err))
	}
	log.Info("rank up", zap.String("role", role.RoleID), zap.Int("required_points", role.RequiredPoints))
	return nil
}
