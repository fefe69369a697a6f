package integration

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/relaychat/internal/presence"
	"github.com/Tyrowin/relaychat/internal/server"
	"github.com/Tyrowin/relaychat/test/testhelpers"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func onlineUsers(t *testing.T, app *testhelpers.TestApp) []server.OnlineUser {
	t.Helper()
	resp := testhelpers.Get(t, app.URL("/api/users/online"), 5*time.Second)
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	var body server.OnlineUsersResponse
	testhelpers.DecodeJSON(t, resp, &body)
	require.NotNil(t, body.OnlineUsers)
	return body.OnlineUsers
}

func heartbeat(t *testing.T, app *testhelpers.TestApp, id, avatar, color string) {
	t.Helper()
	resp := testhelpers.PostJSON(t, app.URL("/api/users/heartbeat"), map[string]string{
		"senderId": id, "avatar": avatar, "color": color,
	})
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	_ = resp.Body.Close()
}

// TestPresenceExpiresAfterOnlineTimeout covers a user who stops heartbeating
func TestPresenceExpiresAfterOnlineTimeout(t *testing.T) {
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	app := testhelpers.NewTestApp(t, nil, presence.WithClock(clock.Now))

	heartbeat(t, app, "u2", "🐶", "#123")
	assert.Equal(t, []server.OnlineUser{{ID: "u2", Avatar: "🐶", Color: "#123"}}, onlineUsers(t, app))

	clock.Advance(30 * time.Second)
	assert.Len(t, onlineUsers(t, app), 1, "still online at exactly the timeout")

	clock.Advance(time.Second)
	assert.Empty(t, onlineUsers(t, app))

	removed := app.Presence.Sweep(t.Context(), clock.Now())
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, app.Presence.Len())
}

// TestHeartbeatRefreshesProfile checks the latest avatar and color win
func TestHeartbeatRefreshesProfile(t *testing.T) {
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	app := testhelpers.NewTestApp(t, nil, presence.WithClock(clock.Now))

	heartbeat(t, app, "u1", "🐱", "#abc")
	clock.Advance(20 * time.Second)
	heartbeat(t, app, "u1", "🦁", "#def")
	clock.Advance(20 * time.Second)

	assert.Equal(t, []server.OnlineUser{{ID: "u1", Avatar: "🦁", Color: "#def"}}, onlineUsers(t, app))
}

// TestOnlineUsersSortedByID checks a stable listing order
func TestOnlineUsersSortedByID(t *testing.T) {
	app := testhelpers.NewTestApp(t, nil)

	heartbeat(t, app, "carol", "", "")
	heartbeat(t, app, "alice", "", "")
	heartbeat(t, app, "bob", "", "")

	users := onlineUsers(t, app)
	require.Len(t, users, 3)
	assert.Equal(t, "alice", users[0].ID)
	assert.Equal(t, "bob", users[1].ID)
	assert.Equal(t, "carol", users[2].ID)
}

// TestHeartbeatWithoutSender is rejected and leaves the registry untouched
func TestHeartbeatWithoutSender(t *testing.T) {
	app := testhelpers.NewTestApp(t, nil)

	resp := testhelpers.PostJSON(t, app.URL("/api/users/heartbeat"), map[string]string{"avatar": "🐱"})
	testhelpers.AssertStatusCode(t, resp, http.StatusBadRequest)
	var body server.ErrorResponse
	testhelpers.DecodeJSON(t, resp, &body)
	assert.Equal(t, "Missing senderId", body.Error)
	assert.Empty(t, onlineUsers(t, app))
}
