// Package testhelpers provides shared utilities for the relaychat integration
// tests: a fully wired test server, JSON request helpers and WebSocket
// dialing.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/relaychat/internal/presence"
	"github.com/Tyrowin/relaychat/internal/relay"
	"github.com/Tyrowin/relaychat/internal/server"
	"github.com/Tyrowin/relaychat/pkg/logger"
)

// TestApp is a running server together with the registries behind it.
type TestApp struct {
	HTTP     *httptest.Server
	Server   *server.Server
	Messages *relay.Registry
	Presence *presence.Registry
}

// NewTestApp starts a server with cfg (nil means defaults) and closes it
// when the test ends. Extra presence options, such as a fake clock, are
// applied after the configured online timeout.
func NewTestApp(t *testing.T, cfg *server.Config, presenceOpts ...presence.Option) *TestApp {
	t.Helper()

	if cfg == nil {
		cfg = server.NewConfig()
	}
	log := logger.Discard()

	messages := relay.NewRegistry(relay.WithLogger(log))
	opts := append([]presence.Option{
		presence.WithOnlineTimeout(cfg.OnlineTimeout),
		presence.WithLogger(log),
	}, presenceOpts...)
	people := presence.NewRegistry(opts...)

	srv := server.New(cfg, messages, people, log)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		_ = srv.Streams().Shutdown(2 * time.Second)
		messages.Close()
		people.Close()
		ts.Close()
	})

	return &TestApp{HTTP: ts, Server: srv, Messages: messages, Presence: people}
}

// URL joins path onto the server's base URL.
func (a *TestApp) URL(path string) string {
	return a.HTTP.URL + path
}

// WebSocketURL returns the ws:// address for path.
func (a *TestApp) WebSocketURL(path string) string {
	return "ws" + strings.TrimPrefix(a.HTTP.URL, "http") + path
}

// WaitForWaiters blocks until n readers are parked on the relay.
func (a *TestApp) WaitForWaiters(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return a.Messages.Len() == n
	}, 2*time.Second, 5*time.Millisecond, "expected %d parked readers", n)
}

// PostJSON sends body as JSON and returns the response.
func PostJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	return PostRaw(t, url, payload)
}

// PostRaw sends payload verbatim with a JSON content type.
func PostRaw(t *testing.T, url string, payload []byte) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

// Get issues a GET with the given client timeout.
func Get(t *testing.T, url string, timeout time.Duration) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	require.NoError(t, err)
	return resp
}

// DecodeJSON reads resp's body into dst and closes it.
func DecodeJSON(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

// ReadBody returns resp's body as a string and closes it.
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// ConnectWebSocket dials url with the given Origin header. An empty origin
// sends none.
func ConnectWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
