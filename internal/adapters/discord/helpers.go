package discord

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/activity-rooms-bot/internal/adapters/backend"
	"github.com/jose-valero/activity-rooms-bot/internal/app/service"
)

// commandPath baja por grupos y subcomandos: ["settings","spawn-rooms","create"].
// Devuelve también las opciones de la hoja.
func commandPath(data discordgo.ApplicationCommandInteractionData) ([]string, []*discordgo.ApplicationCommandInteractionDataOption) {
	path := []string{data.Name}
	opts := data.Options
	for len(opts) == 1 && (opts[0].Type == discordgo.ApplicationCommandOptionSubCommandGroup ||
		opts[0].Type == discordgo.ApplicationCommandOptionSubCommand) {
		path = append(path, opts[0].Name)
		opts = opts[0].Options
	}
	return path, opts
}

func findOpt(opts []*discordgo.ApplicationCommandInteractionDataOption, name string, t discordgo.ApplicationCommandOptionType) *discordgo.ApplicationCommandInteractionDataOption {
	for _, o := range opts {
		if o.Name == name && o.Type == t {
			return o
		}
	}
	return nil
}

func optStr(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) (string, bool) {
	if o := findOpt(opts, name, discordgo.ApplicationCommandOptionString); o != nil {
		return o.StringValue(), true
	}
	return "", false
}

func optBool(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) (bool, bool) {
	if o := findOpt(opts, name, discordgo.ApplicationCommandOptionBoolean); o != nil {
		return o.BoolValue(), true
	}
	return false, false
}

func optInt(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) (int, bool) {
	if o := findOpt(opts, name, discordgo.ApplicationCommandOptionInteger); o != nil {
		return int(o.IntValue()), true
	}
	return 0, false
}

// optChannelID lee el id crudo (ChannelValue pegaría a la API).
func optChannelID(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) (string, bool) {
	if o := findOpt(opts, name, discordgo.ApplicationCommandOptionChannel); o != nil {
		if id, ok := o.Value.(string); ok && id != "" {
			return id, true
		}
	}
	return "", false
}

func boolPtr(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) *bool {
	if v, ok := optBool(opts, name); ok {
		return &v
	}
	return nil
}

func intPtr(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) *int {
	if v, ok := optInt(opts, name); ok {
		return &v
	}
	return nil
}

// modalValue busca el TextInput por custom id dentro de las filas del modal.
func modalValue(data discordgo.ModalSubmitInteractionData, id string) string {
	for _, row := range data.Components {
		ar, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range ar.Components {
			if ti, ok := c.(*discordgo.TextInput); ok && ti.CustomID == id {
				return strings.TrimSpace(ti.Value)
			}
		}
	}
	return ""
}

func parseLimit(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: el límite tiene que ser un número", service.ErrValidation)
	}
	return n, nil
}

func userID(ic *discordgo.InteractionCreate) string {
	if ic.Member != nil && ic.Member.User != nil {
		return ic.Member.User.ID
	}
	if ic.User != nil {
		return ic.User.ID
	}
	return ""
}

func displayName(m *discordgo.Member) string {
	if m == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

// errMessage traduce los errores tipados a la respuesta para el usuario.
func errMessage(err error) string {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, service.ErrNotARoom):
		return "⚠️ Este canal no es un room activo."
	case errors.Is(err, service.ErrNotOwner):
		return "🔒 Solo el dueño del room puede hacer esto."
	case errors.Is(err, service.ErrNotOriginalOwner):
		return "🔒 Solo el creador del room puede recuperarlo."
	case errors.Is(err, service.ErrAlreadyOwner):
		return "ℹ️ Ya sos el dueño del room."
	case errors.Is(err, service.ErrNotAllowed):
		return "⛔ No permitido: " + detail(err, service.ErrNotAllowed)
	case errors.Is(err, service.ErrValidation):
		return "⚠️ Dato inválido: " + detail(err, service.ErrValidation)
	case errors.Is(err, backend.ErrNotFound):
		return "⚠️ No encontrado."
	case errors.As(err, &apiErr):
		return "⚠️ El backend respondió con error: " + apiErr.Message
	}
	return "❌ Ocurrió un error inesperado. Contacta con un administrador."
}

// detail quita el prefijo del sentinel ("action not allowed: xxx" -> "xxx").
func detail(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()+": "); i >= 0 {
		return msg[i+len(sentinel.Error())+2:]
	}
	return msg
}
