package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/jose-valero/activity-rooms-bot/internal/app/service"
	"github.com/jose-valero/activity-rooms-bot/internal/domain"
)

// códigos JSON de discord que tratamos como "ya no existe"
const (
	codeUnknownChannel = 10003
	codeUnknownMessage = 10008
)

// permisos que hacen a un miembro "moderador de voz" (no se le puede kickear)
const voiceModPerms = discordgo.PermissionVoiceMuteMembers |
	discordgo.PermissionVoiceDeafenMembers |
	discordgo.PermissionVoiceMoveMembers

// Gateway implementa service.Discord sobre una sesión de discordgo.
type Gateway struct {
	s   *discordgo.Session
	log *zap.Logger
}

var _ service.Discord = (*Gateway)(nil)

func NewGateway(s *discordgo.Session, log *zap.Logger) *Gateway {
	return &Gateway{s: s, log: log.Named("gateway")}
}

func isUnknown(err error, codes ...int) bool {
	var re *discordgo.RESTError
	if !errors.As(err, &re) {
		return false
	}
	if re.Message != nil {
		for _, c := range codes {
			if re.Message.Code == c {
				return true
			}
		}
	}
	return re.Response != nil && re.Response.StatusCode == http.StatusNotFound
}

func (g *Gateway) safeGetChannel(ctx context.Context, id string) (*discordgo.Channel, error) {
	if ch, err := g.s.State.Channel(id); err == nil && ch != nil {
		return ch, nil
	}
	ch, err := g.s.Channel(id, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	_ = g.s.State.ChannelAdd(ch)
	return ch, nil
}

// ---------- canales ----------

func (g *Gateway) CreateVoiceChannel(ctx context.Context, guildID, name, parentID string, userLimit int) (string, error) {
	ch, err := g.s.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:      name,
		Type:      discordgo.ChannelTypeGuildVoice,
		ParentID:  parentID,
		UserLimit: userLimit,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create voice channel: %w", err)
	}
	return ch.ID, nil
}

// DeleteChannel: si el canal ya no existe no es error.
func (g *Gateway) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := g.s.ChannelDelete(channelID, discordgo.WithContext(ctx))
	if err != nil && !isUnknown(err, codeUnknownChannel) {
		return fmt.Errorf("delete channel %s: %w", channelID, err)
	}
	return nil
}

func (g *Gateway) RenameChannel(ctx context.Context, channelID, name string) error {
	_, err := g.s.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx))
	return err
}

// SetUserLimit va por PATCH crudo: ChannelEdit descarta user_limit=0 (omitempty).
func (g *Gateway) SetUserLimit(ctx context.Context, channelID string, limit int) error {
	ep := discordgo.EndpointChannel(channelID)
	body := struct {
		UserLimit int `json:"user_limit"`
	}{limit}
	_, err := g.s.RequestWithBucketID(http.MethodPatch, ep, body, ep, discordgo.WithContext(ctx))
	return err
}

func (g *Gateway) ChannelParent(ctx context.Context, channelID string) (string, error) {
	ch, err := g.safeGetChannel(ctx, channelID)
	if err != nil {
		return "", err
	}
	return ch.ParentID, nil
}

func (g *Gateway) ChannelExists(ctx context.Context, guildID, channelID string) (bool, error) {
	ch, err := g.safeGetChannel(ctx, channelID)
	if isUnknown(err, codeUnknownChannel) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ch.GuildID == guildID, nil
}

// ---------- voz (state del gateway) ----------

// VoiceMembers lista los humanos conectados al canal; los bots no cuentan
// para ownership ni para decidir si la sala quedó vacía.
func (g *Gateway) VoiceMembers(guildID, channelID string) []domain.VoiceMember {
	guild, err := g.s.State.Guild(guildID)
	if err != nil {
		return nil
	}
	g.s.State.RLock()
	defer g.s.State.RUnlock()
	bots := make(map[string]bool)
	for _, m := range guild.Members {
		if m != nil && m.User != nil && m.User.Bot {
			bots[m.User.ID] = true
		}
	}
	return voiceMembersOf(guild.VoiceStates, channelID, func(id string) bool { return bots[id] })
}

func voiceMembersOf(states []*discordgo.VoiceState, channelID string, isBot func(string) bool) []domain.VoiceMember {
	var out []domain.VoiceMember
	for _, vs := range states {
		if vs == nil || vs.ChannelID != channelID {
			continue
		}
		if (vs.Member != nil && vs.Member.User != nil && vs.Member.User.Bot) || isBot(vs.UserID) {
			continue
		}
		out = append(out, domain.VoiceMember{
			UserID:   vs.UserID,
			Mute:     vs.Mute || vs.SelfMute,
			Deaf:     vs.Deaf || vs.SelfDeaf,
			Suppress: vs.Suppress,
		})
	}
	return out
}

func (g *Gateway) MemberVoiceChannel(guildID, memberID string) (string, bool) {
	vs, err := g.s.State.VoiceState(guildID, memberID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

func (g *Gateway) MoveMember(ctx context.Context, guildID, memberID, channelID string) error {
	return g.s.GuildMemberMove(guildID, memberID, &channelID, discordgo.WithContext(ctx))
}

// DisconnectMember: mover a canal nil = desconectar.
func (g *Gateway) DisconnectMember(ctx context.Context, guildID, memberID string) error {
	return g.s.GuildMemberMove(guildID, memberID, nil, discordgo.WithContext(ctx))
}

// ---------- miembros y roles ----------

func (g *Gateway) member(ctx context.Context, guildID, memberID string) (*discordgo.Member, error) {
	if m, err := g.s.State.Member(guildID, memberID); err == nil && m != nil {
		return m, nil
	}
	m, err := g.s.GuildMember(guildID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	m.GuildID = guildID
	_ = g.s.State.MemberAdd(m)
	return m, nil
}

func (g *Gateway) MemberRoles(ctx context.Context, guildID, memberID string) ([]string, error) {
	m, err := g.member(ctx, guildID, memberID)
	if err != nil {
		return nil, fmt.Errorf("member %s: %w", memberID, err)
	}
	return m.Roles, nil
}

func (g *Gateway) AddRole(ctx context.Context, guildID, memberID, roleID string) error {
	return g.s.GuildMemberRoleAdd(guildID, memberID, roleID, discordgo.WithContext(ctx))
}

func (g *Gateway) guildRoles(ctx context.Context, guildID string) ([]*discordgo.Role, string, error) {
	if guild, err := g.s.State.Guild(guildID); err == nil && guild != nil && len(guild.Roles) > 0 {
		return guild.Roles, guild.OwnerID, nil
	}
	guild, err := g.s.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, "", err
	}
	return guild.Roles, guild.OwnerID, nil
}

// CanModerateVoice: owner, Administrator o cualquiera de mute/deafen/move.
func (g *Gateway) CanModerateVoice(ctx context.Context, guildID, memberID string) (bool, error) {
	m, err := g.member(ctx, guildID, memberID)
	if err != nil {
		return false, err
	}
	roles, ownerID, err := g.guildRoles(ctx, guildID)
	if err != nil {
		return false, err
	}
	if memberID == ownerID {
		return true, nil
	}
	perms := rolePermissions(guildID, roles, m.Roles)
	return perms&discordgo.PermissionAdministrator != 0 || perms&voiceModPerms != 0, nil
}

// rolePermissions suma @everyone (id = guild id) más los roles del miembro.
func rolePermissions(guildID string, roles []*discordgo.Role, memberRoles []string) int64 {
	has := make(map[string]struct{}, len(memberRoles)+1)
	has[guildID] = struct{}{}
	for _, r := range memberRoles {
		has[r] = struct{}{}
	}
	var perms int64
	for _, ro := range roles {
		if _, ok := has[ro.ID]; ok {
			perms |= ro.Permissions
		}
	}
	return perms
}

// ---------- mensajes ----------

func (g *Gateway) SendPanel(ctx context.Context, p service.RoomPanel) (string, error) {
	msg, err := g.s.ChannelMessageSendComplex(p.ChannelID, &discordgo.MessageSend{
		Embeds:          []*discordgo.MessageEmbed{panelEmbed(p)},
		Components:      panelComponents(p),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (g *Gateway) EditPanel(ctx context.Context, messageID string, p service.RoomPanel) error {
	em := []*discordgo.MessageEmbed{panelEmbed(p)}
	cc := panelComponents(p)
	_, err := g.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    p.ChannelID,
		ID:         messageID,
		Embeds:     &em,
		Components: &cc,
	}, discordgo.WithContext(ctx))
	if isUnknown(err, codeUnknownMessage, codeUnknownChannel) {
		g.log.Debug("panel gone", zap.String("room", p.ChannelID), zap.String("message", messageID))
		return nil
	}
	return err
}

// SendRankUp: chat responde al mensaje; voz menciona en el chat del canal de voz.
func (g *Gateway) SendRankUp(ctx context.Context, n service.RankUpNotice) error {
	send := &discordgo.MessageSend{
		Content:         rankUpText(n),
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: []string{n.MemberID}},
	}
	if n.ReplyToMessageID != "" {
		send.Reference = &discordgo.MessageReference{
			MessageID: n.ReplyToMessageID,
			ChannelID: n.ChannelID,
			GuildID:   n.GuildID,
		}
	}
	_, err := g.s.ChannelMessageSendComplex(n.ChannelID, send, discordgo.WithContext(ctx))
	return err
}

func (g *Gateway) SendNotice(ctx context.Context, channelID, content string) error {
	_, err := g.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         content,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	return err
}
