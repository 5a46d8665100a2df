package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/activity-rooms-bot/internal/adapters/backend"
	"github.com/jose-valero/activity-rooms-bot/internal/domain"
)

type mockSettingsBackend struct{ mock.Mock }

func (m *mockSettingsBackend) GetGuildSettings(ctx context.Context, g string) (*domain.GuildSettings, error) {
	args := m.Called(ctx, g)
	st, _ := args.Get(0).(*domain.GuildSettings)
	return st, args.Error(1)
}

func (m *mockSettingsBackend) ModifyActivitySettings(ctx context.Context, g string, k domain.ActivityKind, p backend.ActivityPatch) error {
	return m.Called(ctx, g, k, p).Error(0)
}

func (m *mockSettingsBackend) CreateSpawnRoom(ctx context.Context, g, ch string, o backend.SpawnRoomOptions) (*domain.SpawnRoomTemplate, error) {
	args := m.Called(ctx, g, ch, o)
	t, _ := args.Get(0).(*domain.SpawnRoomTemplate)
	return t, args.Error(1)
}

func (m *mockSettingsBackend) UpdateSpawnRoom(ctx context.Context, g, ch string, o backend.SpawnRoomOptions) (*domain.SpawnRoomTemplate, error) {
	args := m.Called(ctx, g, ch, o)
	t, _ := args.Get(0).(*domain.SpawnRoomTemplate)
	return t, args.Error(1)
}

func (m *mockSettingsBackend) DeleteSpawnRoom(ctx context.Context, g, ch string) (bool, error) {
	args := m.Called(ctx, g, ch)
	return args.Bool(0), args.Error(1)
}

func (m *mockSettingsBackend) GetMemberProfile(ctx context.Context, g, mem string) (*domain.MemberProfile, error) {
	args := m.Called(ctx, g, mem)
	p, _ := args.Get(0).(*domain.MemberProfile)
	return p, args.Error(1)
}

func (m *mockSettingsBackend) UpdateMemberProfile(ctx context.Context, g, mem string, p backend.ProfilePatch) (*domain.MemberProfile, error) {
	args := m.Called(ctx, g, mem, p)
	pr, _ := args.Get(0).(*domain.MemberProfile)
	return pr, args.Error(1)
}

func TestSettingsShow(t *testing.T) {
	b := new(mockSettingsBackend)
	b.On("GetGuildSettings", mock.Anything, "g").Return(&domain.GuildSettings{
		ChatActivity: domain.ActivitySettings{Enabled: true, GrantAmount: 5, Cooldown: 60},
		SpawnRooms:   []domain.SpawnRoomTemplate{{ChannelID: "t1", UserLimit: 4, CanLock: true}},
	}, nil)

	msg, err := NewSettingsService(b).Show(context.Background(), "g")
	require.NoError(t, err)
	assert.Contains(t, msg, "points: **5**")
	assert.Contains(t, msg, "cooldown: **60s**")
	assert.Contains(t, msg, "<#t1> limit **4**")
}

func TestUpdateActivity_InvalidKindNeverCallsBackend(t *testing.T) {
	b := new(mockSettingsBackend)
	_, err := NewSettingsService(b).UpdateActivity(context.Background(), "g", "music", backend.ActivityPatch{})
	assert.ErrorIs(t, err, ErrValidation)
	b.AssertNotCalled(t, "ModifyActivitySettings", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateActivity(t *testing.T) {
	b := new(mockSettingsBackend)
	pts := 10
	patch := backend.ActivityPatch{Points: &pts}
	b.On("ModifyActivitySettings", mock.Anything, "g", domain.KindVoice, patch).Return(nil)
	b.On("GetGuildSettings", mock.Anything, "g").Return(&domain.GuildSettings{
		VoiceActivity: domain.ActivitySettings{Enabled: true, GrantAmount: 10, Cooldown: 300},
	}, nil)

	msg, err := NewSettingsService(b).UpdateActivity(context.Background(), "g", "Voice", patch)
	require.NoError(t, err)
	assert.Contains(t, msg, "points: **10**")
	b.AssertExpectations(t)
}

func TestCreateSpawnRoom_RejectsExistingTemplate(t *testing.T) {
	b := new(mockSettingsBackend)
	b.On("GetGuildSettings", mock.Anything, "g").Return(&domain.GuildSettings{
		SpawnRooms: []domain.SpawnRoomTemplate{{ChannelID: "t1"}},
	}, nil)

	_, err := NewSettingsService(b).CreateSpawnRoom(context.Background(), "g", "t1", backend.SpawnRoomOptions{})
	assert.ErrorIs(t, err, ErrValidation)
	b.AssertNotCalled(t, "CreateSpawnRoom", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestModifySpawnRoom_EmptyPatch(t *testing.T) {
	_, err := NewSettingsService(new(mockSettingsBackend)).ModifySpawnRoom(context.Background(), "g", "t1", backend.SpawnRoomOptions{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRemoveSpawnRoom(t *testing.T) {
	b := new(mockSettingsBackend)
	b.On("DeleteSpawnRoom", mock.Anything, "g", "t1").Return(true, nil).Once()
	b.On("DeleteSpawnRoom", mock.Anything, "g", "t2").Return(false, nil).Once()
	svc := NewSettingsService(b)

	msg, err := svc.RemoveSpawnRoom(context.Background(), "g", "t1")
	require.NoError(t, err)
	assert.Contains(t, msg, "eliminado")

	msg, err = svc.RemoveSpawnRoom(context.Background(), "g", "t2")
	require.NoError(t, err)
	assert.Contains(t, msg, "no era")
}

func TestProfile(t *testing.T) {
	b := new(mockSettingsBackend)
	b.On("GetMemberProfile", mock.Anything, "g", "m").Return(&domain.MemberProfile{
		Rank: 3,
		ChatActivity: domain.ActivityProfile{
			Points: 50, Rank: 2, RemainingProgress: 50,
			NextRole: &domain.ActivityRole{RoleID: "r2", RequiredPoints: 100},
		},
		VoiceActivity: domain.ActivityProfile{Points: 900},
	}, nil)

	msg, err := NewSettingsService(b).Profile(context.Background(), "g", "m")
	require.NoError(t, err)
	assert.Contains(t, msg, "rank #3")
	assert.Contains(t, msg, "faltan **50** para <@&r2>")
	assert.Contains(t, msg, "▰▰▰▰▰▰▱▱▱▱▱▱")
	assert.Contains(t, msg, "Nivel máximo")
}

func TestProgressBarBounds(t *testing.T) {
	assert.Equal(t, "▱▱▱▱▱▱▱▱▱▱▱▱", progressBar(0, 100))
	assert.Equal(t, "▰▰▰▰▰▰▰▰▰▰▰▰", progressBar(500, 100))
	assert.Equal(t, "▰▰▰▰▰▰▰▰▰▰▰▰", progressBar(1, 0))
}

func TestSetCardStyle(t *testing.T) {
	b := new(mockSettingsBackend)
	style := 2
	b.On("UpdateMemberProfile", mock.Anything, "g", "m", backend.ProfilePatch{CardStyle: &style}).Return(&domain.MemberProfile{CardStyle: 2}, nil)
	svc := NewSettingsService(b)

	msg, err := svc.SetCardStyle(context.Background(), "g", "m", 2)
	require.NoError(t, err)
	assert.Contains(t, msg, "**2**")

	_, err = svc.SetCardStyle(context.Background(), "g", "m", -1)
	assert.ErrorIs(t, err, ErrValidation)
}
