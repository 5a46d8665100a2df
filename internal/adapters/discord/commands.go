package discord

import "github.com/bwmarrin/discordgo"

const (
	cmdSettings = "settings"
	cmdProfile  = "profile"
	cmdKick     = "Kick from Voice Room"
)

var (
	manageGuild int64 = discordgo.PermissionManageGuild
	zero              = 0.0
	maxLimit          = 99.0
)

func spawnRoomOptions() []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Type:         discordgo.ApplicationCommandOptionChannel,
			Name:         "channel",
			Description:  "Canal de voz que funciona como template",
			Required:     true,
			ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice},
		},
		{Type: discordgo.ApplicationCommandOptionInteger, Name: "user_limit", Description: "Límite de usuarios del room (0 = sin límite)", MinValue: &zero, MaxValue: maxLimit},
		{Type: discordgo.ApplicationCommandOptionBoolean, Name: "can_rename", Description: "El dueño puede renombrar"},
		{Type: discordgo.ApplicationCommandOptionBoolean, Name: "can_lock", Description: "El dueño puede cerrar el room"},
		{Type: discordgo.ApplicationCommandOptionBoolean, Name: "can_adjust_limit", Description: "El dueño puede cambiar el límite"},
	}
}

var Commands = []*discordgo.ApplicationCommand{
	{
		Name:                     cmdSettings,
		Description:              "Configuración del bot (admins)",
		DefaultMemberPermissions: &manageGuild,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "show", Description: "Ver configuración"},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
				Name:        "spawn-rooms",
				Description: "Templates de rooms de voz",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "create", Description: "Crear template", Options: spawnRoomOptions()},
					{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "modify", Description: "Modificar template (sólo lo que pases)", Options: spawnRoomOptions()},
					{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "remove", Description: "Quitar template", Options: spawnRoomOptions()[:1]},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "activity",
				Description: "Puntos por actividad (sólo lo que pases)",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "kind",
						Description: "Tipo de actividad",
						Required:    true,
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "chat", Value: "chat"},
							{Name: "voice", Value: "voice"},
						},
					},
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Activar/desactivar"},
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "points", Description: "Puntos por grant", MinValue: &zero},
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "cooldown", Description: "Cooldown en segundos", MinValue: &zero},
				},
			},
		},
	},
	{
		Name:        cmdProfile,
		Description: "Tus puntos de actividad",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "card_style", Description: "Cambiar el estilo de tu tarjeta", MinValue: &zero},
		},
	},
	{
		Name: cmdKick,
		Type: discordgo.UserApplicationCommand,
	},
}
