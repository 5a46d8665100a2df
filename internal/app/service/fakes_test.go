package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/jose-valero/activity-rooms-bot/internal/adapters/backend"
	"github.com/jose-valero/activity-rooms-bot/internal/domain"
	"github.com/jose-valero/activity-rooms-bot/internal/infra/storage"
)

// ---------- reloj ----------

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// ---------- backend en memoria ----------

type fakeBackend struct {
	mu         sync.Mutex
	clock      *fakeClock
	settings   map[string]*domain.GuildSettings
	profiles   map[string]*domain.MemberProfile
	rooms      map[string]*domain.VoiceRoom
	increments int
	createErr  error
}

func newFakeBackend(clock *fakeClock) *fakeBackend {
	return &fakeBackend{
		clock:    clock,
		settings: map[string]*domain.GuildSettings{},
		profiles: map[string]*domain.MemberProfile{},
		rooms:    map[string]*domain.VoiceRoom{},
	}
}

func (b *fakeBackend) GetGuildSettings(_ context.Context, guildID string) (*domain.GuildSettings, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.settings[guildID]
	if !ok {
		return &domain.GuildSettings{}, nil
	}
	cp := *s
	cp.SpawnRooms = append([]domain.SpawnRoomTemplate(nil), s.SpawnRooms...)
	return &cp, nil
}

func (b *fakeBackend) profile(guildID, memberID string) *domain.MemberProfile {
	k := guildID + ":" + memberID
	p, ok := b.profiles[k]
	if !ok {
		p = &domain.MemberProfile{}
		b.profiles[k] = p
	}
	return p
}

func (b *fakeBackend) GetMemberProfile(_ context.Context, guildID, memberID string) (*domain.MemberProfile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *b.profile(guildID, memberID)
	return &cp, nil
}

// IncrementPoints imita al backend: suma grant_amount, marca last_grant y
// recalcula current_roles a partir de los umbrales.
func (b *fakeBackend) IncrementPoints(_ context.Context, guildID, memberID string, kind domain.ActivityKind) (*domain.MemberProfile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.increments++
	s := b.settings[guildID]
	act := s.Activity(kind)
	p := b.profile(guildID, memberID)
	ap := &p.ChatActivity
	if kind == domain.KindVoice {
		ap = &p.VoiceActivity
	}
	ap.Points += act.GrantAmount
	ap.LastGrant = b.clock.Now()
	ap.CurrentRoles = nil
	for _, r := range act.ActivityRoles {
		if ap.Points >= r.RequiredPoints {
			ap.CurrentRoles = append(ap.CurrentRoles, r)
		}
	}
	cp := *p
	return &cp, nil
}

func (b *fakeBackend) GetVoiceRoom(_ context.Context, _, channelID string) (*domain.VoiceRoom, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rooms[channelID]
	if !ok {
		return nil, fmt.Errorf("get voice room: %w", backend.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (b *fakeBackend) CreateVoiceRoom(_ context.Context, _, originID, roomID, creatorID string) (*domain.VoiceRoom, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return nil, b.createErr
	}
	r := &domain.VoiceRoom{OriginChannelID: originID, ChannelID: roomID, OriginalOwnerID: creatorID, CurrentOwnerID: creatorID}
	b.rooms[roomID] = r
	cp := *r
	return &cp, nil
}

func (b *fakeBackend) UpdateVoiceRoom(_ context.Context, _, roomID string, p backend.VoiceRoomPatch) (*domain.VoiceRoom, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rooms[roomID]
	if !ok {
		return nil, backend.ErrNotFound
	}
	if p.CurrentOwnerID != nil {
		r.CurrentOwnerID = *p.CurrentOwnerID
	}
	if p.IsLocked != nil {
		r.IsLocked = *p.IsLocked
	}
	cp := *r
	return &cp, nil
}

func (b *fakeBackend) DeleteVoiceRoom(_ context.Context, _, roomID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.rooms[roomID]
	delete(b.rooms, roomID)
	return ok, nil
}

func (b *fakeBackend) room(id string) (domain.VoiceRoom, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rooms[id]
	if !ok {
		return domain.VoiceRoom{}, false
	}
	return *r, true
}

// ---------- discord en memoria ----------

type fakeChannel struct {
	guildID, name, parentID string
	limit                   int
}

type fakeDiscord struct {
	mu         sync.Mutex
	nextID     int
	channels   map[string]*fakeChannel
	voice      map[string]string // guild:member -> channel
	states     map[string]domain.VoiceMember
	roles      map[string][]string
	moderators map[string]bool

	panels       []RoomPanel
	panelEdits   []RoomPanel
	rankUps      []RankUpNotice
	notices      []string
	disconnected []string

	createErr error
	moveErr   error
	deleteErr error
	limitErr  error
}

func newFakeDiscord() *fakeDiscord {
	return &fakeDiscord{
		channels:   map[string]*fakeChannel{},
		voice:      map[string]string{},
		states:     map[string]domain.VoiceMember{},
		roles:      map[string][]string{},
		moderators: map[string]bool{},
	}
}

func (d *fakeDiscord) addChannel(guildID, id, parentID string) {
	d.mu.Lock()
	d.channels[id] = &fakeChannel{guildID: guildID, parentID: parentID}
	d.mu.Unlock()
}

// connect pone al miembro en el canal (o lo saca con channelID vacío).
func (d *fakeDiscord) connect(guildID, memberID, channelID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := guildID + ":" + memberID
	if channelID == "" {
		delete(d.voice, k)
		return
	}
	d.voice[k] = channelID
	if _, ok := d.states[k]; !ok {
		d.states[k] = domain.VoiceMember{UserID: memberID}
	}
}

func (d *fakeDiscord) setState(guildID string, m domain.VoiceMember) {
	d.mu.Lock()
	d.states[guildID+":"+m.UserID] = m
	d.mu.Unlock()
}

func (d *fakeDiscord) CreateVoiceChannel(_ context.Context, guildID, name, parentID string, userLimit int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return "", d.createErr
	}
	d.nextID++
	id := fmt.Sprintf("room-%d", d.nextID)
	d.channels[id] = &fakeChannel{guildID: guildID, name: name, parentID: parentID, limit: userLimit}
	return id, nil
}

func (d *fakeDiscord) DeleteChannel(_ context.Context, channelID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deleteErr != nil {
		return d.deleteErr
	}
	delete(d.channels, channelID)
	return nil
}

func (d *fakeDiscord) RenameChannel(_ context.Context, channelID, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels[channelID].name = name
	return nil
}

func (d *fakeDiscord) SetUserLimit(_ context.Context, channelID string, limit int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.limitErr != nil {
		return d.limitErr
	}
	d.channels[channelID].limit = limit
	return nil
}

func (d *fakeDiscord) ChannelParent(_ context.Context, channelID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.channels[channelID]; ok {
		return ch.parentID, nil
	}
	return "", errors.New("unknown channel")
}

func (d *fakeDiscord) ChannelExists(_ context.Context, _, channelID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.channels[channelID]
	return ok, nil
}

func (d *fakeDiscord) channel(id string) (fakeChannel, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.channels[id]
	if !ok {
		return fakeChannel{}, false
	}
	return *ch, true
}

func (d *fakeDiscord) VoiceMembers(guildID, channelID string) []domain.VoiceMember {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.VoiceMember
	for k, ch := range d.voice {
		if ch == channelID && strings.HasPrefix(k, guildID+":") {
			out = append(out, d.states[k])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (d *fakeDiscord) MemberVoiceChannel(guildID, memberID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.voice[guildID+":"+memberID]
	return ch, ok
}

func (d *fakeDiscord) MoveMember(_ context.Context, guildID, memberID, channelID string) error {
	if d.moveErr != nil {
		return d.moveErr
	}
	d.connect(guildID, memberID, channelID)
	return nil
}

func (d *fakeDiscord) DisconnectMember(_ context.Context, guildID, memberID string) error {
	d.connect(guildID, memberID, "")
	d.mu.Lock()
	d.disconnected = append(d.disconnected, memberID)
	d.mu.Unlock()
	return nil
}

func (d *fakeDiscord) MemberRoles(_ context.Context, _, memberID string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.roles[memberID]...), nil
}

func (d *fakeDiscord) AddRole(_ context.Context, _, memberID, roleID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roles[memberID] = append(d.roles[memberID], roleID)
	return nil
}

func (d *fakeDiscord) CanModerateVoice(_ context.Context, _, memberID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.moderators[memberID], nil
}

func (d *fakeDiscord) SendPanel(_ context.Context, p RoomPanel) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.panels = append(d.panels, p)
	return "msg-" + p.ChannelID, nil
}

func (d *fakeDiscord) EditPanel(_ context.Context, _ string, p RoomPanel) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.panelEdits = append(d.panelEdits, p)
	return nil
}

func (d *fakeDiscord) SendRankUp(_ context.Context, n RankUpNotice) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rankUps = append(d.rankUps, n)
	return nil
}

func (d *fakeDiscord) SendNotice(_ context.Context, _, content string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, content)
	return nil
}

// ---------- scheduler en memoria ----------

type fakeScheduler struct {
	mu      sync.Mutex
	jobs    map[string]domain.RecurringJob
	creates int
	updates int
	cancels int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: map[string]domain.RecurringJob{}}
}

func (s *fakeScheduler) CreateRecurring(_ context.Context, name string, p domain.VoiceJobPayload, interval time.Duration, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	s.jobs[key] = domain.RecurringJob{Key: key, Name: name, Payload: p, IntervalMS: interval.Milliseconds(), EntryID: fmt.Sprintf("e%d", s.creates)}
	return nil
}

func (s *fakeScheduler) Cancel(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[key]; ok {
		s.cancels++
	}
	delete(s.jobs, key)
	return nil
}

func (s *fakeScheduler) List(_ context.Context) ([]domain.RecurringJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RecurringJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *fakeScheduler) UpdatePayload(_ context.Context, key string, p domain.VoiceJobPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[key]
	if !ok {
		return errors.New("no such job")
	}
	s.updates++
	j.Payload = p
	s.jobs[key] = j
	return nil
}

func (s *fakeScheduler) job(key string) (domain.RecurringJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[key]
	return j, ok
}

// ---------- repos ----------

type fakePanels struct {
	mu   sync.Mutex
	rows map[string]storage.RoomPanel
}

func newFakePanels() *fakePanels { return &fakePanels{rows: map[string]storage.RoomPanel{}} }

func (p *fakePanels) Get(_ context.Context, channelID string) (storage.RoomPanel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.rows[channelID]
	if !ok {
		return storage.RoomPanel{}, storage.ErrNotFound
	}
	return r, nil
}

func (p *fakePanels) Upsert(_ context.Context, r storage.RoomPanel) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows[r.ChannelID] = r
	return nil
}

func (p *fakePanels) Delete(_ context.Context, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.rows, channelID)
	return nil
}

func (p *fakePanels) List(_ context.Context) ([]storage.RoomPanel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []storage.RoomPanel
	for _, r := range p.rows {
		out = append(out, r)
	}
	return out, nil
}

func (p *fakePanels) DeleteMany(_ context.Context, ids []string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := p.rows[id]; ok {
			delete(p.rows, id)
			n++
		}
	}
	return n, nil
}

type mockRankUps struct{ mock.Mock }

func (m *mockRankUps) Record(ctx context.Context, e storage.RankUpEvent) error {
	return m.Called(ctx, e).Error(0)
}
