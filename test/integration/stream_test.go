package integration

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/relaychat/internal/server"
	"github.com/Tyrowin/relaychat/test/testhelpers"
)

// TestStreamAndPollShareMessages checks stream clients and long-poll readers
// are released by the same send
func TestStreamAndPollShareMessages(t *testing.T) {
	app := testhelpers.NewTestApp(t, nil)

	conn, _, err := testhelpers.ConnectWebSocket(app.WebSocketURL("/api/messages/stream"), "http://localhost:8080")
	require.NoError(t, err)
	defer conn.Close()

	results := make(chan pollResult, 1)
	startPoll(t, app, results)
	app.WaitForWaiters(t, 2)

	resp := testhelpers.PostJSON(t, app.URL("/api/messages"), map[string]string{"message": "both", "senderId": "u1"})
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	_ = resp.Body.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var streamed server.WireMessage
	require.NoError(t, json.Unmarshal(raw, &streamed))
	assert.Equal(t, "both", streamed.Message)

	r := <-results
	require.NotNil(t, r.resp.Message)
	assert.Equal(t, streamed, *r.resp.Message)
}

// TestMultipleStreamClients checks every connected stream receives each send
func TestMultipleStreamClients(t *testing.T) {
	app := testhelpers.NewTestApp(t, nil)
	url := app.WebSocketURL("/api/messages/stream")

	const clients = 3
	for i := 0; i < clients; i++ {
		conn, _, err := testhelpers.ConnectWebSocket(url, "")
		require.NoError(t, err)
		defer conn.Close()

		defer func(i int) {
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
			var msg server.WireMessage
			require.NoError(t, conn.ReadJSON(&msg), "client %d", i)
			assert.Equal(t, "fan-out", msg.Message)
		}(i)
	}
	app.WaitForWaiters(t, clients)
	assert.Equal(t, clients, app.Server.Streams().Count())

	resp := testhelpers.PostJSON(t, app.URL("/api/messages"), map[string]string{"message": "fan-out", "senderId": "u1"})
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	_ = resp.Body.Close()
}
