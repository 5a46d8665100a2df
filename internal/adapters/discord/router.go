package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jose-valero/activity-rooms-bot/internal/app/service"
	"github.com/jose-valero/activity-rooms-bot/internal/pkg/keyedqueue"
	"github.com/jose-valero/activity-rooms-bot/internal/pkg/ttlset"
)

const (
	commandTimeout   = 12 * time.Second
	componentTimeout = 8 * time.Second
	eventTimeout     = 10 * time.Second
	clickWindow      = time.Second
)

type dispatcher interface {
	Dispatch(ctx context.Context, ev service.Event) error
}

// ConfigureSession deja la sesión lista para el router. SyncEvents hace que
// discordgo llame los handlers en el goroutine del gateway, sin eso el orden
// se pierde antes de llegar a la cola por guild.
func ConfigureSession(s *discordgo.Session) {
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent
	s.SyncEvents = true
	s.StateEnabled = true
	s.State.TrackVoice = true
	s.State.TrackMembers = true
}

type Router struct {
	s *discordgo.Session

	presence dispatcher
	rooms    *service.RoomsService
	settings *service.SettingsService

	// eventos de gateway en orden FIFO por guild
	events       *keyedqueue.Queue
	clickLimiter *ttlset.Set
	adminRoleIDs []string
	log          *zap.Logger

	commands   map[string]Command
	components map[string]Component
}

func NewRouter(
	s *discordgo.Session,
	presence *service.Presence,
	rooms *service.RoomsService,
	settings *service.SettingsService,
	events *keyedqueue.Queue,
	adminRoleIDs []string,
	log *zap.Logger,
) *Router {
	r := &Router{
		s:            s,
		presence:     presence,
		rooms:        rooms,
		settings:     settings,
		events:       events,
		clickLimiter: ttlset.New(clickWindow),
		adminRoleIDs: adminRoleIDs,
		log:          log.Named("discord"),
	}
	r.commands = r.commandTable()
	r.components = r.componentTable()
	return r
}

// Register publica los comandos globales (reemplaza los anteriores).
func (r *Router) Register() error {
	appID := r.s.State.User.ID
	_, err := r.s.ApplicationCommandBulkOverwrite(appID, "", Commands)
	return err
}

func (r *Router) Handlers() {
	r.s.AddHandler(r.onInteraction)
	r.s.AddHandler(r.onVoiceStateUpdate)
	r.s.AddHandler(r.onMessageCreate)
}

func (r *Router) onInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	switch ic.Type {
	case discordgo.InteractionApplicationCommand:
		r.handleSlashCommand(s, ic)
	case discordgo.InteractionMessageComponent:
		r.handleMessageComponent(s, ic, ic.MessageComponentData().CustomID)
	case discordgo.InteractionModalSubmit:
		r.handleMessageComponent(s, ic, ic.ModalSubmitData().CustomID)
	}
}

// onVoiceStateUpdate arma la transición con el canal previo que guarda el state.
func (r *Router) onVoiceStateUpdate(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.GuildID == "" {
		return
	}
	if vs.Member != nil && vs.Member.User != nil && vs.Member.User.Bot {
		return
	}
	ev := voiceTransition(vs)
	r.submit(ev)
}

func voiceTransition(vs *discordgo.VoiceStateUpdate) service.VoiceTransition {
	ev := service.VoiceTransition{
		GuildID:      vs.GuildID,
		MemberID:     vs.UserID,
		DisplayName:  displayName(vs.Member),
		CurChannelID: vs.ChannelID,
	}
	if vs.BeforeUpdate != nil {
		ev.PrevChannelID = vs.BeforeUpdate.ChannelID
	}
	if ev.DisplayName == "" {
		ev.DisplayName = vs.UserID
	}
	return ev
}

func (r *Router) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.GuildID == "" || m.Author == nil {
		return
	}
	r.submit(chatMessage(m))
}

func chatMessage(m *discordgo.MessageCreate) service.ChatMessage {
	return service.ChatMessage{
		GuildID:    m.GuildID,
		ChannelID:  m.ChannelID,
		MessageID:  m.ID,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
		IsBot:      m.Author.Bot || m.WebhookID != "",
		IsSystem:   m.Author.System || (m.Type != discordgo.MessageTypeDefault && m.Type != discordgo.MessageTypeReply),
	}
}

func (r *Router) submit(ev service.Event) {
	trace := uuid.NewString()
	r.events.Submit(ev.Guild(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		defer step(r.log.With(zap.String("trace", trace)), "event."+ev.Kind().String())()
		// el error ya lo loguea Presence
		_ = r.presence.Dispatch(ctx, ev)
	})
}
