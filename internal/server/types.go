package server

import (
	"strings"

	"github.com/Tyrowin/relaychat/internal/presence"
	"github.com/Tyrowin/relaychat/internal/relay"
)

// sendMessageRequest is the body of POST /api/messages.
type sendMessageRequest struct {
	Message  string `json:"message"`
	SenderID string `json:"senderId"`
	Avatar   string `json:"avatar"`
	Color    string `json:"color"`
}

func (r sendMessageRequest) validate() error {
	if r.Message == "" || r.SenderID == "" {
		return errMissingFields
	}
	return nil
}

// heartbeatRequest is the body of POST /api/users/heartbeat.
type heartbeatRequest struct {
	SenderID string `json:"senderId"`
	Avatar   string `json:"avatar"`
	Color    string `json:"color"`
}

func (r heartbeatRequest) validate() error {
	if r.SenderID == "" {
		return errMissingSender
	}
	return nil
}

// WireMessage is the JSON shape of a delivered message. Timestamp is the
// publish time in Unix milliseconds.
type WireMessage struct {
	Message   string `json:"message"`
	SenderID  string `json:"senderId"`
	Avatar    string `json:"avatar"`
	Color     string `json:"color"`
	Timestamp int64  `json:"timestamp"`
}

func newWireMessage(m relay.Message) WireMessage {
	return WireMessage{
		Message:   m.Text,
		SenderID:  m.SenderID,
		Avatar:    m.Avatar,
		Color:     m.Color,
		Timestamp: m.SentAt.UnixMilli(),
	}
}

// PollResponse answers GET /api/messages/poll. Message is null on timeout.
type PollResponse struct {
	Message *WireMessage `json:"message"`
}

// OnlineUser is one entry of GET /api/users/online.
type OnlineUser struct {
	ID     string `json:"id"`
	Avatar string `json:"avatar"`
	Color  string `json:"color"`
}

// OnlineUsersResponse answers GET /api/users/online.
type OnlineUsersResponse struct {
	OnlineUsers []OnlineUser `json:"onlineUsers"`
}

func newOnlineUsersResponse(entries []presence.Entry) OnlineUsersResponse {
	users := make([]OnlineUser, 0, len(entries))
	for _, e := range entries {
		users = append(users, OnlineUser{ID: e.UserID, Avatar: e.Avatar, Color: e.Color})
	}
	return OnlineUsersResponse{OnlineUsers: users}
}

// StatusResponse is the body of successful writes.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every rejected request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
