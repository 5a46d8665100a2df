package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Ctx struct {
	Log     *zap.Logger
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	GuildID string
	UserID  string
	TraceID string
	// opciones de la hoja del comando (ya resueltos grupos/subcomandos)
	Opts []*discordgo.ApplicationCommandInteractionDataOption
	// TargetID: usuario del context menu
	TargetID string
}

// CommandHandler devuelve el texto de la respuesta efímera.
type CommandHandler func(ctx context.Context, c *Ctx) (string, error)

type Command struct {
	Name      string
	AdminOnly bool
	Handler   CommandHandler
}

type ComponentHandler func(ctx context.Context, c *Ctx) (string, error)

type Component struct {
	// Modal: el handler responde él mismo con un modal y no se difiere la interacción.
	Modal   bool
	Handler ComponentHandler
}
