// esta es la logica de InteractionApplicationCommand de discordgo
// aqui solo vamos a manejar logica de la interaccion del usuario y despachar a los servicios correspondientes
package discord

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jose-valero/activity-rooms-bot/internal/adapters/backend"
)

func (r *Router) commandTable() map[string]Command {
	return map[string]Command{
		"settings/show":               {AdminOnly: true, Handler: r.settingsShow},
		"settings/spawn-rooms/create": {AdminOnly: true, Handler: r.spawnRoomCreate},
		"settings/spawn-rooms/modify": {AdminOnly: true, Handler: r.spawnRoomModify},
		"settings/spawn-rooms/remove": {AdminOnly: true, Handler: r.spawnRoomRemove},
		"settings/activity":           {AdminOnly: true, Handler: r.activityUpdate},
		cmdProfile:                    {Handler: r.profile},
		cmdKick:                       {Handler: r.kickFromRoom},
	}
}

// esto es basicamente mi reciver function
func (r *Router) handleSlashCommand(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	data := ic.ApplicationCommandData()
	path, opts := commandPath(data)
	key := strings.Join(path, "/")
	c := &Ctx{
		Session:  s,
		Event:    ic,
		GuildID:  ic.GuildID,
		UserID:   userID(ic),
		TraceID:  uuid.NewString(),
		Opts:     opts,
		TargetID: data.TargetID,
	}
	c.Log = r.log.With(zap.String("cmd", key), zap.String("user", c.UserID), zap.String("guild", c.GuildID), zap.String("trace", c.TraceID))
	c.Log.Info("cmd")

	defer func() {
		if rec := recover(); rec != nil {
			c.Log.Error("panic in cmd", zap.Any("panic", rec))
			r.reply(c, "❌ Ocurrió un error inesperado procesando el comando. Contacta con un administrador.")
		}
	}()

	if err := DeferEphemeral(s, ic); err != nil {
		c.Log.Warn("defer", zap.Error(err))
	}
	if ic.GuildID == "" {
		r.reply(c, "Este comando sólo funciona dentro de un servidor.")
		return
	}
	cmd, ok := r.commands[key]
	if !ok {
		r.reply(c, "⚠️ Comando desconocido.")
		return
	}
	if cmd.AdminOnly && !r.requireAdminOrRoles(s, ic) {
		r.reply(c, "🔒 No tienes permisos para esta acción.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	defer step(c.Log, "cmd.total")()

	msg, err := cmd.Handler(ctx, c)
	if err != nil {
		c.Log.Warn("cmd failed", zap.Error(err))
		msg = errMessage(err)
	}
	r.reply(c, msg)
}

func (r *Router) reply(c *Ctx, msg string) {
	if err := ReplyEphemeral(c.Session, c.Event, msg); err != nil {
		c.Log.Warn("reply", zap.Error(err))
	}
}

//--> /settings show
func (r *Router) settingsShow(ctx context.Context, c *Ctx) (string, error) {
	return r.settings.Show(ctx, c.GuildID)
}

func spawnOpts(opts []*discordgo.ApplicationCommandInteractionDataOption) backend.SpawnRoomOptions {
	return backend.SpawnRoomOptions{
		UserLimit:      intPtr(opts, "user_limit"),
		CanRename:      boolPtr(opts, "can_rename"),
		CanLock:        boolPtr(opts, "can_lock"),
		CanAdjustLimit: boolPtr(opts, "can_adjust_limit"),
	}
}

func (r *Router) spawnRoomCreate(ctx context.Context, c *Ctx) (string, error) {
	ch, ok := optChannelID(c.Opts, "channel")
	if !ok {
		return "Elegí un canal de voz.", nil
	}
	return r.settings.CreateSpawnRoom(ctx, c.GuildID, ch, spawnOpts(c.Opts))
}

func (r *Router) spawnRoomModify(ctx context.Context, c *Ctx) (string, error) {
	ch, ok := optChannelID(c.Opts, "channel")
	if !ok {
		return "Elegí un canal de voz.", nil
	}
	return r.settings.ModifySpawnRoom(ctx, c.GuildID, ch, spawnOpts(c.Opts))
}

func (r *Router) spawnRoomRemove(ctx context.Context, c *Ctx) (string, error) {
	ch, ok := optChannelID(c.Opts, "channel")
	if !ok {
		return "Elegí un canal de voz.", nil
	}
	return r.settings.RemoveSpawnRoom(ctx, c.GuildID, ch)
}

//--> /settings activity kind:<chat|voice> [enabled] [points] [cooldown]
func (r *Router) activityUpdate(ctx context.Context, c *Ctx) (string, error) {
	kind, _ := optStr(c.Opts, "kind")
	return r.settings.UpdateActivity(ctx, c.GuildID, kind, backend.ActivityPatch{
		Enabled:  boolPtr(c.Opts, "enabled"),
		Points:   intPtr(c.Opts, "points"),
		Cooldown: intPtr(c.Opts, "cooldown"),
	})
}

//--> /profile [card_style]
func (r *Router) profile(ctx context.Context, c *Ctx) (string, error) {
	if style, ok := optInt(c.Opts, "card_style"); ok {
		return r.settings.SetCardStyle(ctx, c.GuildID, c.UserID, style)
	}
	return r.settings.Profile(ctx, c.GuildID, c.UserID)
}

//--> context menu sobre un usuario
func (r *Router) kickFromRoom(ctx context.Context, c *Ctx) (string, error) {
	if c.TargetID == "" {
		return "⚠️ Selección inválida.", nil
	}
	if err := r.rooms.Kick(ctx, c.GuildID, c.UserID, c.TargetID); err != nil {
		return "", err
	}
	return "👢 <@" + c.TargetID + "> fue desconectado del room.", nil
}
