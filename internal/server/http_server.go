package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// CreateServer creates an HTTP server for handler. The write timeout leaves
// room for a full poll.
func CreateServer(cfg *Config, handler http.Handler) *http.Server {
	c := defaultConfig()
	if cfg != nil {
		c = sanitizeConfig(*cfg)
	}
	return &http.Server{
		Addr:         c.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: c.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer listens until the server is shut down. A clean shutdown
// returns nil.
func StartServer(server *http.Server, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer stops accepting connections and waits for in-flight
// requests until ctx is done.
func ShutdownServer(ctx context.Context, server *http.Server) error {
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	return nil
}
