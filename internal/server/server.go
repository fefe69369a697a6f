package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Tyrowin/relaychat/internal/presence"
	"github.com/Tyrowin/relaychat/internal/relay"
	"github.com/gorilla/websocket"
)

// Server owns the HTTP boundary in front of the relay and presence
// registries.
type Server struct {
	cfg      Config
	messages *relay.Registry
	presence *presence.Registry
	streams  *Hub
	limiter  *senderLimiter
	origins  *originPolicy
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// New creates a Server. A nil cfg means defaults; a nil logger means
// slog.Default().
func New(cfg *Config, messages *relay.Registry, people *presence.Registry, logger *slog.Logger) *Server {
	c := defaultConfig()
	if cfg != nil {
		c = sanitizeConfig(*cfg)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      c,
		messages: messages,
		presence: people,
		streams:  NewHub(logger),
		limiter:  newSenderLimiter(c.RateLimit, time.Now),
		origins:  newOriginPolicy(c.AllowedOrigins, logger),
		logger:   logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s
}

// Config returns the sanitized configuration the server runs with.
func (s *Server) Config() Config {
	cfg := s.cfg
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// Streams returns the hub tracking WebSocket stream clients.
func (s *Server) Streams() *Hub {
	return s.streams
}

// Shutdown closes streams, releases every parked poll and then shuts the HTTP
// server down. Released polls answer with a null message, so httpServer does
// not wait out their deadlines.
func (s *Server) Shutdown(ctx context.Context, httpServer *http.Server) error {
	var errs []error

	timeout := s.cfg.ShutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := s.streams.Shutdown(timeout); err != nil {
		errs = append(errs, err)
	}

	released := s.messages.Close()
	s.logger.Info("Released parked polls", "count", released)

	if httpServer != nil {
		if err := ShutdownServer(ctx, httpServer); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
