package httpbackend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jose-valero/activity-rooms-bot/internal/infra/cache"
)

func newTestServer(t *testing.T) (*Server, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	inv := NewInvalidator(cache.New(rdb), zap.NewNop())
	return New("s3cret", inv, zap.NewNop()), mr
}

func post(s *Server, secret, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/backend/webhook", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestWebhook_RejectsBadSecret(t *testing.T) {
	s, mr := newTestServer(t)
	require.NoError(t, mr.Set("settings_g1", "{}"))

	assert.Equal(t, http.StatusUnauthorized, post(s, "", `{"type":"settings.updated","guild_id":"g1"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, post(s, "nope", `{"type":"settings.updated","guild_id":"g1"}`).Code)
	assert.True(t, mr.Exists("settings_g1"))
}

func TestWebhook_InvalidatesKeys(t *testing.T) {
	s, mr := newTestServer(t)
	require.NoError(t, mr.Set("settings_g1", "{}"))
	require.NoError(t, mr.Set("member-profile_g1:m1", "{}"))
	require.NoError(t, mr.Set("voice-room_g1:c1", "{}"))
	require.NoError(t, mr.Set("voice-room_g1:c2", "{}"))

	assert.Equal(t, http.StatusOK, post(s, "s3cret", `{"type":"settings.updated","guild_id":"g1"}`).Code)
	assert.Equal(t, http.StatusOK, post(s, "s3cret", `{"type":"profile.updated","guild_id":"g1","member_id":"m1"}`).Code)
	assert.Equal(t, http.StatusOK, post(s, "s3cret", `{"type":"voice_room.deleted","guild_id":"g1","channel_id":"c1"}`).Code)

	assert.False(t, mr.Exists("settings_g1"))
	assert.False(t, mr.Exists("member-profile_g1:m1"))
	assert.False(t, mr.Exists("voice-room_g1:c1"))
	assert.True(t, mr.Exists("voice-room_g1:c2"))
}

func TestWebhook_BadAndUnknownEvents(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, post(s, "s3cret", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, post(s, "s3cret", `{"type":"profile.updated","guild_id":"g1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(s, "s3cret", `{"type":"settings.updated"}`).Code)
	assert.Equal(t, http.StatusAccepted, post(s, "s3cret", `{"type":"leaderboard.updated","guild_id":"g1"}`).Code)
}

func TestWebhook_CacheDown(t *testing.T) {
	s, mr := newTestServer(t)
	mr.Close()
	assert.Equal(t, http.StatusInternalServerError, post(s, "s3cret", `{"type":"settings.updated","guild_id":"g1"}`).Code)
}

func TestAuthorized_EmptySecretRejectsAll(t *testing.T) {
	assert.False(t, Authorized("", ""))
	assert.False(t, Authorized("x", ""))
	assert.True(t, Authorized("x", "x"))
}

func TestInvalidator_Apply(t *testing.T) {
	_, mr := newTestServer(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	require.NoError(t, mr.Set("voice-room_g:c", "{}"))

	inv := NewInvalidator(cache.New(rdb), zap.NewNop())
	require.NoError(t, inv.Apply(context.Background(), Event{Type: EventVoiceRoomDeleted, GuildID: "g", ChannelID: "c"}))
	assert.False(t, mr.Exists("voice-room_g:c"))
	assert.ErrorIs(t, inv.Apply(context.Background(), Event{Type: "x", GuildID: "g"}), ErrUnknownEvent)
}
