package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jose-valero/activity-rooms-bot/internal/domain"
	"github.com/jose-valero/activity-rooms-bot/internal/infra/storage"
)

type activityEnv struct {
	clock    *fakeClock
	be       *fakeBackend
	dc       *fakeDiscord
	rankups  *mockRankUps
	activity *ActivityService
}

func newActivityEnv(t *testing.T, chat, voice domain.ActivitySettings) *activityEnv {
	t.Helper()
	env := &activityEnv{clock: newClock(), dc: newFakeDiscord(), rankups: &mockRankUps{}}
	env.be = newFakeBackend(env.clock)
	env.be.settings[gid] = &domain.GuildSettings{ChatActivity: chat, VoiceActivity: voice}
	env.activity = NewActivityService(env.be, env.dc, env.rankups, zap.NewNop()).WithClock(env.clock.Now)
	env.rankups.On("Record", mock.Anything, mock.Anything).Return(nil).Maybe()
	return env
}

func chatSettings(roles ...domain.ActivityRole) domain.ActivitySettings {
	return domain.ActivitySettings{Enabled: true, GrantAmount: 10, Cooldown: 60, ActivityRoles: roles}
}

func msgFrom(author string) ChatMessage {
	return ChatMessage{GuildID: gid, ChannelID: "general", MessageID: "msg-1", AuthorID: author}
}

func TestGrantChat_CooldownBoundary(t *testing.T) {
	env := newActivityEnv(t, chatSettings(), domain.ActivitySettings{})
	ctx := context.Background()

	require.NoError(t, env.activity.GrantChat(ctx, msgFrom("alice")))
	assert.Equal(t, 1, env.be.increments)

	env.clock.Advance(59 * time.Second)
	require.NoError(t, env.activity.GrantChat(ctx, msgFrom("alice")))
	assert.Equal(t, 1, env.be.increments, "still inside the cooldown")

	env.clock.Advance(time.Second)
	require.NoError(t, env.activity.GrantChat(ctx, msgFrom("alice")))
	assert.Equal(t, 2, env.be.increments, "cooldown elapsed exactly")

	p, _ := env.be.GetMemberProfile(ctx, gid, "alice")
	assert.Equal(t, 20, p.ChatActivity.Points)
}

func TestGrantChat_Disabled(t *testing.T) {
	off := chatSettings()
	off.Enabled = false
	env := newActivityEnv(t, off, domain.ActivitySettings{})

	require.NoError(t, env.activity.GrantChat(context.Background(), msgFrom("alice")))
	assert.Zero(t, env.be.increments)
}

func TestGrantChat_DenyRoles(t *testing.T) {
	s := chatSettings()
	s.DenyRoles = []string{"muted"}
	env := newActivityEnv(t, s, domain.ActivitySettings{})
	env.dc.roles["alice"] = []string{"muted"}

	require.NoError(t, env.activity.GrantChat(context.Background(), msgFrom("alice")))
	assert.Zero(t, env.be.increments)
}

func TestGrantChat_SingleThresholdNotifies(t *testing.T) {
	bronze := domain.ActivityRole{RoleID: "bronze", RequiredPoints: 10}
	silver := domain.ActivityRole{RoleID: "silver", RequiredPoints: 20}
	env := newActivityEnv(t, chatSettings(bronze, silver), domain.ActivitySettings{})
	ctx := context.Background()

	require.NoError(t, env.activity.GrantChat(ctx, msgFrom("alice")))

	assert.Equal(t, []string{"bronze"}, env.dc.roles["alice"])
	require.Len(t, env.dc.rankUps, 1)
	n := env.dc.rankUps[0]
	assert.Equal(t, bronze, n.Role)
	assert.Equal(t, "msg-1", n.ReplyToMessageID)
	assert.Equal(t, domain.KindChat, n.Kind)

	env.rankups.AssertCalled(t, "Record", mock.Anything, storage.RankUpEvent{
		GuildID: gid, MemberID: "alice", Kind: "chat", RoleID: "bronze", RequiredPoints: 10,
	})
}

func TestGrantChat_MultipleThresholdsNoNotice(t *testing.T) {
	s := chatSettings(
		domain.ActivityRole{RoleID: "bronze", RequiredPoints: 5},
		domain.ActivityRole{RoleID: "silver", RequiredPoints: 10},
	)
	env := newActivityEnv(t, s, domain.ActivitySettings{})

	require.NoError(t, env.activity.GrantChat(context.Background(), msgFrom("alice")))

	assert.ElementsMatch(t, []string{"bronze", "silver"}, env.dc.roles["alice"])
	assert.Empty(t, env.dc.rankUps)
	env.rankups.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestGrantChat_NoNewRoleNoNotice(t *testing.T) {
	env := newActivityEnv(t, chatSettings(domain.ActivityRole{RoleID: "bronze", RequiredPoints: 10}), domain.ActivitySettings{})
	env.dc.roles["alice"] = []string{"bronze"}

	require.NoError(t, env.activity.GrantChat(context.Background(), msgFrom("alice")))
	assert.Equal(t, 1, env.be.increments)
	assert.Empty(t, env.dc.rankUps)
}

func voiceSettings() domain.ActivitySettings {
	return domain.ActivitySettings{Enabled: true, GrantAmount: 5, Cooldown: 60}
}

func voicePayload() domain.VoiceJobPayload {
	return domain.VoiceJobPayload{GuildID: gid, ChannelID: "vc", MemberID: "alice"}
}

func TestGrantVoice_TaskFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("tracking disabled", func(t *testing.T) {
		env := newActivityEnv(t, domain.ActivitySettings{}, domain.ActivitySettings{})
		var te *TaskError
		assert.ErrorAs(t, env.activity.GrantVoice(ctx, voicePayload()), &te)
		assert.Equal(t, domain.VoiceJobName, te.Task)
	})

	t.Run("channel gone", func(t *testing.T) {
		env := newActivityEnv(t, domain.ActivitySettings{}, voiceSettings())
		var te *TaskError
		assert.ErrorAs(t, env.activity.GrantVoice(ctx, voicePayload()), &te)
	})

	t.Run("member left", func(t *testing.T) {
		env := newActivityEnv(t, domain.ActivitySettings{}, voiceSettings())
		env.dc.addChannel(gid, "vc", "")
		env.dc.connect(gid, "bob", "vc")
		var te *TaskError
		assert.ErrorAs(t, env.activity.GrantVoice(ctx, voicePayload()), &te)
		assert.Equal(t, "alice", te.Payload.MemberID)
	})
}

func TestGrantVoice_Skips(t *testing.T) {
	ctx := context.Background()

	t.Run("alone", func(t *testing.T) {
		env := newActivityEnv(t, domain.ActivitySettings{}, voiceSettings())
		env.dc.addChannel(gid, "vc", "")
		env.dc.connect(gid, "alice", "vc")
		require.NoError(t, env.activity.GrantVoice(ctx, voicePayload()))
		assert.Zero(t, env.be.increments)
	})

	t.Run("self muted", func(t *testing.T) {
		env := newActivityEnv(t, domain.ActivitySettings{}, voiceSettings())
		env.dc.addChannel(gid, "vc", "")
		env.dc.connect(gid, "alice", "vc")
		env.dc.connect(gid, "bob", "vc")
		env.dc.setState(gid, domain.VoiceMember{UserID: "alice", Mute: true})
		require.NoError(t, env.activity.GrantVoice(ctx, voicePayload()))
		assert.Zero(t, env.be.increments)
	})

	t.Run("only one active member", func(t *testing.T) {
		env := newActivityEnv(t, domain.ActivitySettings{}, voiceSettings())
		env.dc.addChannel(gid, "vc", "")
		env.dc.connect(gid, "alice", "vc")
		env.dc.connect(gid, "bob", "vc")
		env.dc.setState(gid, domain.VoiceMember{UserID: "bob", Deaf: true})
		require.NoError(t, env.activity.GrantVoice(ctx, voicePayload()))
		assert.Zero(t, env.be.increments)
	})
}

func TestGrantVoice_GrantsAndNotifiesInChannel(t *testing.T) {
	role := domain.ActivityRole{RoleID: "talker", RequiredPoints: 5}
	vs := voiceSettings()
	vs.ActivityRoles = []domain.ActivityRole{role}
	env := newActivityEnv(t, domain.ActivitySettings{}, vs)
	env.dc.addChannel(gid, "vc", "")
	env.dc.connect(gid, "alice", "vc")
	env.dc.connect(gid, "bob", "vc")

	require.NoError(t, env.activity.GrantVoice(context.Background(), voicePayload()))
	assert.Equal(t, 1, env.be.increments)
	require.Len(t, env.dc.rankUps, 1)
	assert.Equal(t, "vc", env.dc.rankUps[0].ChannelID)
	assert.Empty(t, env.dc.rankUps[0].ReplyToMessageID)
}
