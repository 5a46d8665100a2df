package discord

import (
	"errors"

	"github.com/bwmarrin/discordgo"
)

const codeUnknownWebhook = 10015

func SendEphemeral(s *discordgo.Session, ic *discordgo.InteractionCreate, msg string) error {
	return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:         msg,
			Flags:           discordgo.MessageFlagsEphemeral,
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		},
	})
}

// Defer efímero (para trabajos >3s)
func DeferEphemeral(s *discordgo.Session, ic *discordgo.InteractionCreate) error {
	return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
}

// ReplyEphemeral manda el followup; si todavía no hubo respuesta (10015) responde directo.
func ReplyEphemeral(s *discordgo.Session, ic *discordgo.InteractionCreate, content string, embeds ...*discordgo.MessageEmbed) error {
	_, err := s.FollowupMessageCreate(ic.Interaction, true, &discordgo.WebhookParams{
		Content:         content,
		Embeds:          embeds,
		Flags:           discordgo.MessageFlagsEphemeral,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	if err == nil {
		return nil
	}
	var re *discordgo.RESTError
	if errors.As(err, &re) && re.Message != nil && re.Message.Code == codeUnknownWebhook {
		return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content:         content,
				Flags:           discordgo.MessageFlagsEphemeral,
				Embeds:          embeds,
				AllowedMentions: &discordgo.MessageAllowedMentions{},
			},
		})
	}
	return err
}

// ShowModal responde la interacción con un modal (no se puede diferir antes).
func ShowModal(s *discordgo.Session, ic *discordgo.InteractionCreate, modal *discordgo.InteractionResponse) error {
	return s.InteractionRespond(ic.Interaction, modal)
}
