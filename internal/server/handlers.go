package server

import (
	"fmt"
	"net/http"

	"github.com/Tyrowin/relaychat/internal/relay"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/Tyrowin/relaychat/internal/server")

// HealthHandler reports that the process is serving requests.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}

// SendMessageHandler validates a message and publishes it to every parked
// reader.
func (s *Server) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(w, r, s.cfg.MaxMessageSize, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, err)
		return
	}
	if !s.limiter.allow(req.SenderID) {
		s.logger.Warn("Rate limit exceeded", "sender", req.SenderID,
			"burst", s.cfg.RateLimit.Burst, "interval", s.cfg.RateLimit.RefillInterval)
		s.writeError(w, errRateLimited)
		return
	}

	ctx, span := tracer.Start(r.Context(), "relay.publish")
	defer span.End()

	_, released := s.messages.Publish(ctx, relay.Message{
		Text:     req.Message,
		SenderID: req.SenderID,
		Avatar:   req.Avatar,
		Color:    req.Color,
	})
	span.SetAttributes(attribute.Int("relay.released", released))

	writeJSON(w, http.StatusOK, StatusResponse{Status: "Message sent"})
}

// PollHandler parks the request until the next message or the poll timeout.
func (s *Server) PollHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "relay.poll")
	defer span.End()

	msg, err := s.messages.Wait(ctx, s.cfg.PollTimeout)
	if err != nil {
		s.logger.Debug("Poll abandoned by client", "remote", r.RemoteAddr, "error", err)
		return
	}

	var resp PollResponse
	if msg != nil {
		wire := newWireMessage(*msg)
		resp.Message = &wire
	}
	span.SetAttributes(attribute.Bool("relay.delivered", msg != nil))

	writeJSON(w, http.StatusOK, resp)
}

// StreamHandler upgrades the request to a WebSocket that receives every
// message published while it is connected.
func (s *Server) StreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Stream upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := newStreamClient(uuid.NewString(), conn, r.RemoteAddr, s.messages, s.cfg, s.logger)
	s.streams.serve(client)
}

// HeartbeatHandler marks the sender as online.
func (s *Server) HeartbeatHandler(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := decodeJSON(w, r, s.cfg.MaxMessageSize, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, err)
		return
	}

	s.presence.Heartbeat(r.Context(), req.SenderID, req.Avatar, req.Color)
	writeJSON(w, http.StatusOK, StatusResponse{Status: "OK"})
}

// OnlineUsersHandler lists the users currently online.
func (s *Server) OnlineUsersHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newOnlineUsersResponse(s.presence.ListOnline()))
}
