package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jose-valero/activity-rooms-bot/internal/adapters/backend"
	"github.com/jose-valero/activity-rooms-bot/internal/domain"
)

// SettingsService atiende /settings y /profile. Devuelve texto listo para responder.
type SettingsService struct {
	backend SettingsBackend
}

func NewSettingsService(b SettingsBackend) *SettingsService { return &SettingsService{backend: b} }

func (s *SettingsService) Show(ctx context.Context, guildID string) (string, error) {
	st, err := s.backend.GetGuildSettings(ctx, guildID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Chat activity**\n%s\n", describeActivity(st.ChatActivity))
	fmt.Fprintf(&b, "**Voice activity**\n%s\n", describeActivity(st.VoiceActivity))
	b.WriteString("**Spawn rooms**\n")
	if len(st.SpawnRooms) == 0 {
		b.WriteString("• (ninguno)\n")
	}
	for _, t := range st.SpawnRooms {
		b.WriteString(describeTemplate(t) + "\n")
	}
	return b.String(), nil
}

func describeActivity(a domain.ActivitySettings) string {
	return fmt.Sprintf("• enabled: **%v**\n• points: **%d**\n• cooldown: **%ds**\n• roles: **%d**",
		a.Enabled, a.GrantAmount, a.Cooldown, len(a.ActivityRoles))
}

func describeTemplate(t domain.SpawnRoomTemplate) string {
	return fmt.Sprintf("• <#%s> limit **%d** · rename %s · lock %s · limit %s",
		t.ChannelID, t.UserLimit, onOff(t.CanRename), onOff(t.CanLock), onOff(t.CanAdjustLimit))
}

func onOff(b bool) string {
	if b {
		return "✅"
	}
	return "❌"
}

// UpdateActivity: kind llega como string del comando y se valida antes de la red.
func (s *SettingsService) UpdateActivity(ctx context.Context, guildID, kind string, p backend.ActivityPatch) (string, error) {
	k, err := domain.ParseKind(kind)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.backend.ModifyActivitySettings(ctx, guildID, k, p); err != nil {
		return "", err
	}
	st, err := s.backend.GetGuildSettings(ctx, guildID)
	if err != nil {
		return "✅ Actividad actualizada.", nil
	}
	return "✅ Actividad actualizada.\n" + describeActivity(st.Activity(k)), nil
}

func (s *SettingsService) CreateSpawnRoom(ctx context.Context, guildID, channelID string, o backend.SpawnRoomOptions) (string, error) {
	st, err := s.backend.GetGuildSettings(ctx, guildID)
	if err != nil {
		return "", err
	}
	if st.IsTemplate(channelID) {
		return "", fmt.Errorf("%w: <#%s> ya es un spawn room", ErrValidation, channelID)
	}
	t, err := s.backend.CreateSpawnRoom(ctx, guildID, channelID, o)
	if err != nil {
		return "", err
	}
	return "✅ Spawn room creado.\n" + describeTemplate(*t), nil
}

func (s *SettingsService) ModifySpawnRoom(ctx context.Context, guildID, channelID string, o backend.SpawnRoomOptions) (string, error) {
	if o.Empty() {
		return "", fmt.Errorf("%w: pasá al menos una opción", ErrValidation)
	}
	t, err := s.backend.UpdateSpawnRoom(ctx, guildID, channelID, o)
	if err != nil {
		return "", err
	}
	return "✅ Spawn room actualizado.\n" + describeTemplate(*t), nil
}

func (s *SettingsService) RemoveSpawnRoom(ctx context.Context, guildID, channelID string) (string, error) {
	ok, err := s.backend.DeleteSpawnRoom(ctx, guildID, channelID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "ℹ️ <#" + channelID + "> no era un spawn room.", nil
	}
	return "🗑️ Spawn room <#" + channelID + "> eliminado.", nil
}

const progressWidth = 12

// Profile arma el resumen de puntos del miembro para ambos tipos de actividad.
func (s *SettingsService) Profile(ctx context.Context, guildID, memberID string) (string, error) {
	p, err := s.backend.GetMemberProfile(ctx, guildID, memberID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Perfil de <@%s>** · rank #%d\n", memberID, p.Rank)
	for _, kind := range []domain.ActivityKind{domain.KindChat, domain.KindVoice} {
		a := p.Activity(kind)
		fmt.Fprintf(&b, "\n**%s** · %d pts (#%d)\n", strings.ToUpper(string(kind)), a.Points, a.Rank)
		if a.NextRole == nil {
			b.WriteString("🏆 Nivel máximo\n")
			continue
		}
		fmt.Fprintf(&b, "%s faltan **%d** para <@&%s>\n", progressBar(a.Points, a.NextRole.RequiredPoints), a.RemainingProgress, a.NextRole.RoleID)
	}
	return b.String(), nil
}

func progressBar(points, target int) string {
	if target <= 0 {
		return strings.Repeat("▰", progressWidth)
	}
	filled := points * progressWidth / target
	if filled > progressWidth {
		filled = progressWidth
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("▰", filled) + strings.Repeat("▱", progressWidth-filled)
}

func (s *SettingsService) SetCardStyle(ctx context.Context, guildID, memberID string, style int) (string, error) {
	if style < 0 {
		return "", fmt.Errorf("%w: card style must be >= 0", ErrValidation)
	}
	if _, err := s.backend.UpdateMemberProfile(ctx, guildID, memberID, backend.ProfilePatch{CardStyle: &style}); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Estilo de tarjeta actualizado a **%d**.", style), nil
}
