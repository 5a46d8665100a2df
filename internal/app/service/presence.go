package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type EventKind int

const (
	EventVoiceTransition EventKind = iota
	EventChatMessage
)

func (k EventKind) String() string {
	switch k {
	case EventVoiceTransition:
		return "voice_transition"
	case EventChatMessage:
		return "chat_message"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event es lo que el adapter de discord empuja al router.
type Event interface {
	Kind() EventKind
	Guild() string
}

// VoiceTransition: canal vacío = no conectado.
type VoiceTransition struct {
	GuildID       string
	MemberID      string
	DisplayName   string
	PrevChannelID string
	CurChannelID  string
}

func (VoiceTransition) Kind() EventKind  { return EventVoiceTransition }
func (e VoiceTransition) Guild() string { return e.GuildID }

type ChatMessage struct {
	GuildID    string
	ChannelID  string
	MessageID  string
	AuthorID   string
	AuthorName string
	IsBot      bool
	IsSystem   bool
}

func (ChatMessage) Kind() EventKind  { return EventChatMessage }
func (e ChatMessage) Guild() string { return e.GuildID }

type handlerFunc func(ctx context.Context, ev Event) error

// Presence enruta cada evento a su handler con una tabla fija por EventKind.
type Presence struct {
	backend  Backend
	rooms    *RoomsService
	activity *ActivityService
	tracker  *VoiceTracker
	log      *zap.Logger
	handlers map[EventKind]handlerFunc
}

func NewPresence(b Backend, rooms *RoomsService, activity *ActivityService, tracker *VoiceTracker, log *zap.Logger) *Presence {
	p := &Presence{backend: b, rooms: rooms, activity: activity, tracker: tracker, log: log.Named("presence")}
	p.handlers = map[EventKind]handlerFunc{
		EventVoiceTransition: func(ctx context.Context, ev Event) error { return p.onVoice(ctx, ev.(VoiceTransition)) },
		EventChatMessage:     func(ctx context.Context, ev Event) error { return p.onChat(ctx, ev.(ChatMessage)) },
	}
	return p
}

// Dispatch nunca deja escapar un panic; el error ya queda logueado.
func (p *Presence) Dispatch(ctx context.Context, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling %s: %v", ev.Kind(), r)
			p.log.Error("handler panic", zap.Stringer("event", ev.Kind()), zap.String("guild", ev.Guild()), zap.Any("panic", r))
		}
	}()

	h, ok := p.handlers[ev.Kind()]
	if !ok {
		return fmt.Errorf("no handler for %s", ev.Kind())
	}
	if err := h(ctx, ev); err != nil {
		p.log.Warn("event failed", zap.Stringer("event", ev.Kind()), zap.String("guild", ev.Guild()), zap.Error(err))
		return err
	}
	return nil
}

func (p *Presence) onVoice(ctx context.Context, ev VoiceTransition) error {
	p.rooms.ObserveTransition(ev)
	changed := ev.PrevChannelID != ev.CurChannelID

	if changed && ev.PrevChannelID != "" {
		if err := p.rooms.HandleDeparture(ctx, ev.GuildID, ev.PrevChannelID); err != nil {
			p.log.Warn("departure failed", zap.String("guild", ev.GuildID), zap.String("channel", ev.PrevChannelID), zap.Error(err))
		}
	}

	settings, err := p.backend.GetGuildSettings(ctx, ev.GuildID)
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}

	if changed {
		if tpl, ok := settings.Template(ev.CurChannelID); ok {
			if err := p.rooms.HandleTemplateJoin(ctx, ev, tpl); err != nil {
				p.log.Warn("room creation failed", zap.String("guild", ev.GuildID), zap.String("member", ev.MemberID), zap.Error(err))
			}
		}
	}

	return p.tracker.Reconcile(ctx, settings, ev)
}

func (p *Presence) onChat(ctx context.Context, msg ChatMessage) error {
	if msg.IsBot || msg.IsSystem || msg.GuildID == "" {
		return nil
	}
	return p.activity.GrantChat(ctx, msg)
}
