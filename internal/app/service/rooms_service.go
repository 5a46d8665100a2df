package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jose-valero/activity-rooms-bot/internal/adapters/backend"
	"github.com/jose-valero/activity-rooms-bot/internal/domain"
	"github.com/jose-valero/activity-rooms-bot/internal/infra/storage"
	"github.com/jose-valero/activity-rooms-bot/internal/pkg/ttlset"
)

const (
	maxRoomName  = 100
	maxUserLimit = 99
)

// RoomsService maneja el ciclo de vida de los rooms efímeros:
// creación desde un template, transferencia de dueño y borrado.
type RoomsService struct {
	backend Backend
	dc      Discord
	panels  PanelRepo
	guard   *ttlset.Set
	log     *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	joins map[string]map[string]time.Time // channel -> member -> primer join visto
}

func NewRoomsService(b Backend, dc Discord, panels PanelRepo, spawnCooldown time.Duration, log *zap.Logger) *RoomsService {
	return &RoomsService{
		backend: b,
		dc:      dc,
		panels:  panels,
		guard:   ttlset.New(spawnCooldown),
		log:     log.Named("rooms"),
		now:     time.Now,
		joins:   map[string]map[string]time.Time{},
	}
}

// WithClock reemplaza el reloj (tests). Afecta al ledger y al spawn guard.
func (s *RoomsService) WithClock(now func() time.Time) *RoomsService {
	s.now = now
	s.guard = s.guard.WithClock(now)
	return s
}

func guardKey(guildID, memberID string) string { return guildID + ":" + memberID }

// ---------- join ledger ----------

// ObserveTransition anota cuándo entró cada miembro a cada canal.
func (s *RoomsService) ObserveTransition(ev VoiceTransition) {
	if ev.PrevChannelID == ev.CurChannelID {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.PrevChannelID != "" {
		if m := s.joins[ev.PrevChannelID]; m != nil {
			delete(m, ev.MemberID)
			if len(m) == 0 {
				delete(s.joins, ev.PrevChannelID)
			}
		}
	}
	if ev.CurChannelID != "" {
		s.noteJoinLocked(ev.CurChannelID, ev.MemberID)
	}
}

func (s *RoomsService) noteJoinLocked(channelID, memberID string) {
	m := s.joins[channelID]
	if m == nil {
		m = map[string]time.Time{}
		s.joins[channelID] = m
	}
	if _, ok := m[memberID]; !ok {
		m[memberID] = s.now()
	}
}

func (s *RoomsService) forget(channelID string) {
	s.mu.Lock()
	delete(s.joins, channelID)
	s.mu.Unlock()
}

// successor: join más antiguo; sin join conocido va al final; empate por id menor.
func (s *RoomsService) successor(channelID string, members []domain.VoiceMember) string {
	s.mu.Lock()
	ledger := s.joins[channelID]
	type cand struct {
		id    string
		at    time.Time
		known bool
	}
	cands := make([]cand, 0, len(members))
	for _, m := range members {
		at, ok := ledger[m.UserID]
		cands = append(cands, cand{id: m.UserID, at: at, known: ok})
	}
	s.mu.Unlock()

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.known != b.known {
			return a.known
		}
		if a.known && !a.at.Equal(b.at) {
			return a.at.Before(b.at)
		}
		return snowflakeLess(a.id, b.id)
	})
	return cands[0].id
}

// los ids de discord son enteros en decimal
func snowflakeLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// ---------- creación ----------

// HandleTemplateJoin crea el room del miembro que entró a un canal template.
// Si el miembro está en cooldown de spawn se lo desconecta.
func (s *RoomsService) HandleTemplateJoin(ctx context.Context, ev VoiceTransition, tpl domain.SpawnRoomTemplate) error {
	log := s.log.With(zap.String("guild", ev.GuildID), zap.String("member", ev.MemberID), zap.String("template", tpl.ChannelID))
	gk := guardKey(ev.GuildID, ev.MemberID)

	if s.guard.Contains(gk) {
		log.Debug("spawn on cooldown, disconnecting")
		return s.dc.DisconnectMember(ctx, ev.GuildID, ev.MemberID)
	}

	parentID, err := s.dc.ChannelParent(ctx, tpl.ChannelID)
	if err != nil {
		log.Warn("template parent lookup failed", zap.Error(err))
	}

	roomID, err := s.dc.CreateVoiceChannel(ctx, ev.GuildID, roomName(ev.DisplayName), parentID, tpl.UserLimit)
	if err != nil {
		s.disconnect(ctx, ev.GuildID, ev.MemberID)
		return fmt.Errorf("create room channel: %w", err)
	}

	room, err := s.backend.CreateVoiceRoom(ctx, ev.GuildID, tpl.ChannelID, roomID, ev.MemberID)
	if err != nil {
		s.rollback(ctx, ev.GuildID, roomID, ev.MemberID, false)
		return fmt.Errorf("register room: %w", err)
	}

	s.guard.Add(gk)
	if err := s.dc.MoveMember(ctx, ev.GuildID, ev.MemberID, roomID); err != nil {
		s.rollback(ctx, ev.GuildID, roomID, ev.MemberID, true)
		return fmt.Errorf("move creator: %w", err)
	}

	s.mu.Lock()
	s.noteJoinLocked(roomID, ev.MemberID)
	s.mu.Unlock()

	log.Info("room created", zap.String("room", roomID))
	s.postPanel(ctx, ev.GuildID, room, tpl)
	return nil
}

func roomName(displayName string) string {
	name := "@" + strings.TrimSpace(displayName)
	const suffix = "'s Room"
	if utf8.RuneCountInString(name)+len(suffix) > maxRoomName {
		r := []rune(name)
		name = string(r[:maxRoomName-len(suffix)])
	}
	return name + suffix
}

func (s *RoomsService) rollback(ctx context.Context, guildID, roomID, memberID string, registered bool) {
	if err := s.dc.DeleteChannel(ctx, roomID); err != nil {
		s.log.Warn("rollback: delete channel", zap.String("room", roomID), zap.Error(err))
	}
	if registered {
		if _, err := s.backend.DeleteVoiceRoom(ctx, guildID, roomID); err != nil {
			s.log.Warn("rollback: delete record", zap.String("room", roomID), zap.Error(err))
		}
	}
	s.disconnect(ctx, guildID, memberID)
}

func (s *RoomsService) disconnect(ctx context.Context, guildID, memberID string) {
	if err := s.dc.DisconnectMember(ctx, guildID, memberID); err != nil {
		s.log.Warn("disconnect member", zap.String("member", memberID), zap.Error(err))
	}
}

// ---------- salida ----------

// HandleDeparture corre cuando alguien deja channelID. Si era un room sin su
// dueño, se transfiere o se borra.
func (s *RoomsService) HandleDeparture(ctx context.Context, guildID, channelID string) error {
	room, err := s.backend.GetVoiceRoom(ctx, guildID, channelID)
	if errors.Is(err, backend.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	members := s.dc.VoiceMembers(guildID, channelID)
	for _, m := range members {
		if m.UserID == room.CurrentOwnerID {
			return nil
		}
	}

	if len(members) == 0 {
		return s.teardown(ctx, guildID, channelID)
	}

	next := s.successor(channelID, members)
	updated, err := s.backend.UpdateVoiceRoom(ctx, guildID, channelID, backend.VoiceRoomPatch{CurrentOwnerID: &next})
	if err != nil {
		return fmt.Errorf("transfer room %s: %w", channelID, err)
	}
	s.log.Info("ownership transferred", zap.String("room", channelID), zap.String("from", room.CurrentOwnerID), zap.String("to", next))
	s.refreshPanel(ctx, guildID, updated)
	return nil
}

func (s *RoomsService) teardown(ctx context.Context, guildID, channelID string) error {
	if err := s.dc.DeleteChannel(ctx, channelID); err != nil {
		s.log.Warn("delete room channel", zap.String("room", channelID), zap.Error(err))
		_ = s.dc.SendNotice(ctx, channelID, "⚠️ No pude borrar este canal de voz, un moderador tiene que borrarlo a mano.")
	}
	if _, err := s.backend.DeleteVoiceRoom(ctx, guildID, channelID); err != nil {
		return fmt.Errorf("delete room %s: %w", channelID, err)
	}
	if err := s.panels.Delete(ctx, channelID); err != nil {
		s.log.Warn("delete panel row", zap.String("room", channelID), zap.Error(err))
	}
	s.forget(channelID)
	s.log.Info("room deleted", zap.String("room", channelID))
	return nil
}

// ---------- acciones del dueño ----------

// loadRoom re-lee el room y su template; la autorización siempre parte de acá.
func (s *RoomsService) loadRoom(ctx context.Context, guildID, channelID string) (*domain.VoiceRoom, domain.SpawnRoomTemplate, error) {
	room, err := s.backend.GetVoiceRoom(ctx, guildID, channelID)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, domain.SpawnRoomTemplate{}, ErrNotARoom
	}
	if err != nil {
		return nil, domain.SpawnRoomTemplate{}, err
	}
	settings, err := s.backend.GetGuildSettings(ctx, guildID)
	if err != nil {
		return nil, domain.SpawnRoomTemplate{}, err
	}
	tpl, _ := settings.Template(room.OriginChannelID)
	return room, tpl, nil
}

func (s *RoomsService) ToggleLock(ctx context.Context, guildID, channelID, actorID string) (*domain.VoiceRoom, error) {
	room, tpl, err := s.loadRoom(ctx, guildID, channelID)
	if err != nil {
		return nil, err
	}
	if !room.IsOwner(actorID) {
		return nil, ErrNotOwner
	}
	if !tpl.CanLock {
		return nil, fmt.Errorf("%w: locking is disabled for this room", ErrNotAllowed)
	}

	locked := !room.IsLocked
	limit, prev := tpl.UserLimit, 1
	if locked {
		limit, prev = 1, tpl.UserLimit
	}
	// primero discord: si falla, el registro queda como estaba
	if err := s.dc.SetUserLimit(ctx, channelID, limit); err != nil {
		return nil, fmt.Errorf("set user limit: %w", err)
	}
	updated, err := s.backend.UpdateVoiceRoom(ctx, guildID, channelID, backend.VoiceRoomPatch{IsLocked: &locked})
	if err != nil {
		if rerr := s.dc.SetUserLimit(ctx, channelID, prev); rerr != nil {
			s.log.Warn("restore user limit", zap.String("room", channelID), zap.Error(rerr))
		}
		return nil, err
	}
	s.refreshPanel(ctx, guildID, updated)
	return updated, nil
}

func (s *RoomsService) Reclaim(ctx context.Context, guildID, channelID, actorID string) (*domain.VoiceRoom, error) {
	room, _, err := s.loadRoom(ctx, guildID, channelID)
	if err != nil {
		return nil, err
	}
	if !room.IsOriginalOwner(actorID) {
		return nil, ErrNotOriginalOwner
	}
	if room.CurrentOwnerID == room.OriginalOwnerID {
		return nil, ErrAlreadyOwner
	}
	if ch, ok := s.dc.MemberVoiceChannel(guildID, actorID); !ok || ch != channelID {
		return nil, fmt.Errorf("%w: you must be connected to the room", ErrNotAllowed)
	}

	updated, err := s.backend.UpdateVoiceRoom(ctx, guildID, channelID, backend.VoiceRoomPatch{CurrentOwnerID: &actorID})
	if err != nil {
		return nil, err
	}
	s.refreshPanel(ctx, guildID, updated)
	return updated, nil
}

func (s *RoomsService) Rename(ctx context.Context, guildID, channelID, actorID, name string) error {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxRoomName {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrValidation, maxRoomName)
	}
	room, tpl, err := s.loadRoom(ctx, guildID, channelID)
	if err != nil {
		return err
	}
	if !room.IsOwner(actorID) {
		return ErrNotOwner
	}
	if !tpl.CanRename {
		return fmt.Errorf("%w: renaming is disabled for this room", ErrNotAllowed)
	}
	return s.dc.RenameChannel(ctx, channelID, name)
}

func (s *RoomsService) AdjustLimit(ctx context.Context, guildID, channelID, actorID string, limit int) error {
	if limit < 0 || limit > maxUserLimit {
		return fmt.Errorf("%w: limit must be 0-%d", ErrValidation, maxUserLimit)
	}
	room, tpl, err := s.loadRoom(ctx, guildID, channelID)
	if err != nil {
		return err
	}
	if !room.IsOwner(actorID) {
		return ErrNotOwner
	}
	if !tpl.CanAdjustLimit {
		return fmt.Errorf("%w: limit changes are disabled for this room", ErrNotAllowed)
	}
	if room.IsLocked {
		return fmt.Errorf("%w: unlock the room first", ErrNotAllowed)
	}
	return s.dc.SetUserLimit(ctx, channelID, limit)
}

// Kick desconecta a targetID del room del que actorID es dueño.
func (s *RoomsService) Kick(ctx context.Context, guildID, actorID, targetID string) error {
	if actorID == targetID {
		return fmt.Errorf("%w: you cannot kick yourself", ErrNotAllowed)
	}
	channelID, ok := s.dc.MemberVoiceChannel(guildID, targetID)
	if !ok {
		return fmt.Errorf("%w: member is not connected", ErrNotARoom)
	}
	room, err := s.backend.GetVoiceRoom(ctx, guildID, channelID)
	if errors.Is(err, backend.ErrNotFound) {
		return ErrNotARoom
	}
	if err != nil {
		return err
	}
	if !room.IsOwner(actorID) {
		return ErrNotOwner
	}
	mod, err := s.dc.CanModerateVoice(ctx, guildID, targetID)
	if err != nil {
		return err
	}
	if mod {
		return fmt.Errorf("%w: member is a voice moderator", ErrNotAllowed)
	}
	return s.dc.DisconnectMember(ctx, guildID, targetID)
}

// ---------- panel ----------

func panelFor(room *domain.VoiceRoom, tpl domain.SpawnRoomTemplate, guildID string) RoomPanel {
	limit := tpl.UserLimit
	if room.IsLocked {
		limit = 1
	}
	return RoomPanel{
		GuildID:         guildID,
		ChannelID:       room.ChannelID,
		OwnerID:         room.CurrentOwnerID,
		OriginalOwnerID: room.OriginalOwnerID,
		Locked:          room.IsLocked,
		UserLimit:       limit,
		CanRename:       tpl.CanRename,
		CanLock:         tpl.CanLock,
		CanAdjustLimit:  tpl.CanAdjustLimit,
	}
}

func (s *RoomsService) postPanel(ctx context.Context, guildID string, room *domain.VoiceRoom, tpl domain.SpawnRoomTemplate) {
	msgID, err := s.dc.SendPanel(ctx, panelFor(room, tpl, guildID))
	if err != nil {
		s.log.Warn("send panel", zap.String("room", room.ChannelID), zap.Error(err))
		return
	}
	if err := s.panels.Upsert(ctx, storage.RoomPanel{ChannelID: room.ChannelID, GuildID: guildID, MessageID: msgID}); err != nil {
		s.log.Warn("store panel", zap.String("room", room.ChannelID), zap.Error(err))
	}
}

// refreshPanel vuelve a dibujar el panel guardado; si no hay, no hace nada.
func (s *RoomsService) refreshPanel(ctx context.Context, guildID string, room *domain.VoiceRoom) {
	p, err := s.panels.Get(ctx, room.ChannelID)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		s.log.Warn("load panel", zap.String("room", room.ChannelID), zap.Error(err))
		return
	}
	settings, err := s.backend.GetGuildSettings(ctx, guildID)
	if err != nil {
		s.log.Warn("load settings for panel", zap.String("room", room.ChannelID), zap.Error(err))
		return
	}
	tpl, _ := settings.Template(room.OriginChannelID)
	if err := s.dc.EditPanel(ctx, p.MessageID, panelFor(room, tpl, guildID)); err != nil {
		s.log.Warn("edit panel", zap.String("room", room.ChannelID), zap.Error(err))
	}
}

// SweepPanels borra en un solo batch las filas de paneles cuyo canal ya no existe.
func (s *RoomsService) SweepPanels(ctx context.Context) (int64, error) {
	rows, err := s.panels.List(ctx)
	if err != nil {
		return 0, err
	}
	var gone []string
	for _, p := range rows {
		ok, err := s.dc.ChannelExists(ctx, p.GuildID, p.ChannelID)
		if err != nil {
			s.log.Warn("panel sweep lookup", zap.String("room", p.ChannelID), zap.Error(err))
			continue
		}
		if !ok {
			gone = append(gone, p.ChannelID)
		}
	}
	n, err := s.panels.DeleteMany(ctx, gone)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("stale panels removed", zap.Int64("count", n))
	}
	return n, nil
}
