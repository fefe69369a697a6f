package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/Tyrowin/relaychat/internal/relay"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// streamClient is one WebSocket reader. Its write pump parks on the relay the
// same way a long-poll request does and forwards every message it receives.
type streamClient struct {
	id       string
	conn     *websocket.Conn
	addr     string
	messages *relay.Registry

	readLimit  int64
	pingPeriod time.Duration
	pongWait   time.Duration
	logger     *slog.Logger
}

func newStreamClient(id string, conn *websocket.Conn, addr string, messages *relay.Registry, cfg Config, logger *slog.Logger) *streamClient {
	return &streamClient{
		id:         id,
		conn:       conn,
		addr:       addr,
		messages:   messages,
		readLimit:  cfg.MaxMessageSize,
		pingPeriod: cfg.PollTimeout,
		pongWait:   2 * cfg.PollTimeout,
		logger:     logger.With("client", id, "remote", addr),
	}
}

func (c *streamClient) extendReadDeadline() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
		c.logger.Debug("Error setting read deadline", "error", err)
	}
}

// readPump drains inbound frames so control messages are processed. Data
// frames are ignored; messages are sent over POST /api/messages.
func (c *streamClient) readPump() {
	c.conn.SetReadLimit(c.readLimit)
	c.extendReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			c.logReadError(err)
			return
		}
		c.extendReadDeadline()
	}
}

func (c *streamClient) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("Stream frame exceeded maximum size", "limit", c.readLimit)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.logger.Debug("Stream client disconnected", "error", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Debug("Stream connection closed", "error", err)
	default:
		c.logger.Info("Stream read error", "error", err)
	}
}

// writePump forwards messages until ctx is done or the relay closes.
func (c *streamClient) writePump(ctx context.Context) {
	defer c.closeConnection()

	lastPing := time.Now()
	for {
		msg, err := c.messages.Wait(ctx, c.pingPeriod)
		if err != nil {
			c.writeClose(websocket.CloseGoingAway)
			return
		}
		if msg == nil && c.messages.Closed() {
			c.writeClose(websocket.CloseGoingAway)
			return
		}

		if msg != nil {
			if !c.writeMessage(newWireMessage(*msg)) {
				return
			}
		}
		if time.Since(lastPing) >= c.pingPeriod {
			if !c.writePing() {
				return
			}
			lastPing = time.Now()
		}
	}
}

func (c *streamClient) writeMessage(msg WireMessage) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Debug("Error setting write deadline", "error", err)
		return false
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Info("Error writing stream message", "error", err)
		}
		return false
	}
	return true
}

func (c *streamClient) writePing() bool {
	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Info("Error writing ping", "error", err)
		}
		return false
	}
	return true
}

func (c *streamClient) writeClose(code int) {
	payload := websocket.FormatCloseMessage(code, "server shutting down")
	if err := c.conn.WriteControl(websocket.CloseMessage, payload, time.Now().Add(writeWait)); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Debug("Error writing close message", "error", err)
		}
	}
}

func (c *streamClient) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Debug("Error closing stream connection", "error", err)
	}
}
