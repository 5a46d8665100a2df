package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (r *Router) componentTable() map[string]Component {
	return map[string]Component{
		idRename:      {Modal: true, Handler: r.openRename},
		idAdjustLim:   {Modal: true, Handler: r.openLimit},
		idToggleLock:  {Handler: r.toggleLock},
		idReclaim:     {Handler: r.reclaim},
		idRenameModal: {Handler: r.submitRename},
		idLimitModal:  {Handler: r.submitLimit},
	}
}

// handleMessageComponent atiende botones y modales; el panel vive en el chat del room,
// así que ic.ChannelID es el canal del room.
func (r *Router) handleMessageComponent(s *discordgo.Session, ic *discordgo.InteractionCreate, customID string) {
	c := &Ctx{Session: s, Event: ic, GuildID: ic.GuildID, UserID: userID(ic), TraceID: uuid.NewString()}
	c.Log = r.log.With(zap.String("component", customID), zap.String("user", c.UserID), zap.String("channel", ic.ChannelID), zap.String("trace", c.TraceID))

	defer func() {
		if rec := recover(); rec != nil {
			c.Log.Error("panic in component", zap.Any("panic", rec))
			r.reply(c, "❌ Ocurrió un error inesperado.")
		}
	}()

	comp, ok := r.components[customID]
	if !ok {
		c.Log.Debug("unknown component")
		return
	}
	if !r.clickLimiter.Allow(c.UserID + ":" + customID) {
		if err := SendEphemeral(s, ic, "⏳ Esperá un segundo…"); err != nil {
			c.Log.Warn("reply", zap.Error(err))
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), componentTimeout)
	defer cancel()

	if comp.Modal {
		if _, err := comp.Handler(ctx, c); err != nil {
			c.Log.Warn("modal", zap.Error(err))
		}
		return
	}

	if err := DeferEphemeral(s, ic); err != nil {
		c.Log.Warn("defer", zap.Error(err))
	}
	defer step(c.Log, "component.total")()
	msg, err := comp.Handler(ctx, c)
	if err != nil {
		c.Log.Warn("component failed", zap.Error(err))
		msg = errMessage(err)
	}
	r.reply(c, msg)
}

func (r *Router) openRename(_ context.Context, c *Ctx) (string, error) {
	current := ""
	if ch, err := c.Session.State.Channel(c.Event.ChannelID); err == nil && ch != nil {
		current = ch.Name
	}
	return "", ShowModal(c.Session, c.Event, renameModal(current))
}

func (r *Router) openLimit(_ context.Context, c *Ctx) (string, error) {
	return "", ShowModal(c.Session, c.Event, limitModal())
}

func (r *Router) toggleLock(ctx context.Context, c *Ctx) (string, error) {
	room, err := r.rooms.ToggleLock(ctx, c.GuildID, c.Event.ChannelID, c.UserID)
	if err != nil {
		return "", err
	}
	if room.IsLocked {
		return "🔒 Room cerrado.", nil
	}
	return "🔓 Room abierto.", nil
}

func (r *Router) reclaim(ctx context.Context, c *Ctx) (string, error) {
	if _, err := r.rooms.Reclaim(ctx, c.GuildID, c.Event.ChannelID, c.UserID); err != nil {
		return "", err
	}
	return "👑 Recuperaste el room.", nil
}

func (r *Router) submitRename(ctx context.Context, c *Ctx) (string, error) {
	name := modalValue(c.Event.ModalSubmitData(), fieldName)
	if err := r.rooms.Rename(ctx, c.GuildID, c.Event.ChannelID, c.UserID, name); err != nil {
		return "", err
	}
	return "✏️ Room renombrado a **" + name + "**.", nil
}

func (r *Router) submitLimit(ctx context.Context, c *Ctx) (string, error) {
	n, err := parseLimit(modalValue(c.Event.ModalSubmitData(), fieldLimit))
	if err != nil {
		return "", err
	}
	if err := r.rooms.AdjustLimit(ctx, c.GuildID, c.Event.ChannelID, c.UserID, n); err != nil {
		return "", err
	}
	return "👥 Límite actualizado a **" + limitText(n) + "**.", nil
}
