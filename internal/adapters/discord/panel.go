package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/activity-rooms-bot/internal/app/service"
	"github.com/jose-valero/activity-rooms-bot/internal/domain"
)

// custom ids de los botones y modales del panel
const (
	idRename     = "voice_room.rename"
	idToggleLock = "voice_room.toggle_lock"
	idAdjustLim  = "voice_room.adjust_limit"
	idReclaim    = "voice_room.reclaim_ownership"

	idRenameModal = "voice_room.rename_modal"
	idLimitModal  = "voice_room.limit_modal"
	fieldName     = "name"
	fieldLimit    = "limit"
)

func limitText(n int) string {
	if n == 0 {
		return "sin límite"
	}
	return fmt.Sprintf("%d", n)
}

func panelEmbed(p service.RoomPanel) *discordgo.MessageEmbed {
	state := "🔓 Abierto"
	if p.Locked {
		state = "🔒 Cerrado"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👑 Dueño: <@%s>\n", p.OwnerID)
	if p.OriginalOwnerID != "" && p.OriginalOwnerID != p.OwnerID {
		fmt.Fprintf(&b, "🏠 Creador: <@%s>\n", p.OriginalOwnerID)
	}
	fmt.Fprintf(&b, "%s · 👥 %s", state, limitText(p.UserLimit))
	return &discordgo.MessageEmbed{
		Title:       "Panel del room",
		Description: b.String(),
		Footer:      &discordgo.MessageEmbedFooter{Text: "Solo el dueño puede usar los botones"},
	}
}

func panelComponents(p service.RoomPanel) []discordgo.MessageComponent {
	lockLabel, lockEmoji := "Cerrar", "🔒"
	if p.Locked {
		lockLabel, lockEmoji = "Abrir", "🔓"
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Style:    discordgo.PrimaryButton,
					Label:    "Renombrar",
					CustomID: idRename,
					Emoji:    &discordgo.ComponentEmoji{Name: "✏️"},
					Disabled: !p.CanRename,
				},
				discordgo.Button{
					Style:    discordgo.SecondaryButton,
					Label:    lockLabel,
					CustomID: idToggleLock,
					Emoji:    &discordgo.ComponentEmoji{Name: lockEmoji},
					Disabled: !p.CanLock,
				},
				discordgo.Button{
					Style:    discordgo.SecondaryButton,
					Label:    "Límite",
					CustomID: idAdjustLim,
					Emoji:    &discordgo.ComponentEmoji{Name: "👥"},
					Disabled: !p.CanAdjustLimit || p.Locked,
				},
				discordgo.Button{
					Style:    discordgo.DangerButton,
					Label:    "Recuperar",
					CustomID: idReclaim,
					Emoji:    &discordgo.ComponentEmoji{Name: "👑"},
				},
			},
		},
	}
}

func renameModal(current string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: idRenameModal,
			Title:    "Renombrar room",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:  fieldName,
						Label:     "Nuevo nombre",
						Style:     discordgo.TextInputShort,
						Value:     current,
						Required:  true,
						MinLength: 1,
						MaxLength: 100,
					},
				}},
			},
		},
	}
}

func limitModal() *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: idLimitModal,
			Title:    "Límite de usuarios",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    fieldLimit,
						Label:       "Límite (0 = sin límite, máx 99)",
						Style:       discordgo.TextInputShort,
						Placeholder: "0",
						Required:    true,
						MinLength:   1,
						MaxLength:   2,
					},
				}},
			},
		},
	}
}

func rankUpText(n service.RankUpNotice) string {
	where := "chat"
	if n.Kind == domain.KindVoice {
		where = "voz"
	}
	return fmt.Sprintf("🎉 <@%s> subiste de rango por actividad en %s: ahora tenés <@&%s> (%d pts).",
		n.MemberID, where, n.Role.RoleID, n.Role.RequiredPoints)
}
