package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub tracks live stream clients so they can be closed together on shutdown.
// Each client runs its own pumps; the hub does no fan-out of its own.
type Hub struct {
	mutex   sync.Mutex
	clients map[*streamClient]struct{}
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients: make(map[*streamClient]struct{}),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

// serve registers c and starts its pumps. The write pump stops when the read
// pump sees the peer go away or when the hub shuts down.
func (h *Hub) serve(c *streamClient) {
	h.mutex.Lock()
	if h.ctx.Err() != nil {
		h.mutex.Unlock()
		c.writeClose(websocket.CloseGoingAway)
		c.closeConnection()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.wg.Add(2)
	h.mutex.Unlock()

	h.logger.Info("Stream client connected", "client", c.id, "remote", c.addr, "clients", count)

	ctx, cancel := context.WithCancel(h.ctx)
	go func() {
		defer h.wg.Done()
		c.writePump(ctx)
	}()
	go func() {
		defer h.wg.Done()
		defer cancel()
		c.readPump()
		h.remove(c)
	}()
}

func (h *Hub) remove(c *streamClient) {
	h.mutex.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mutex.Unlock()

	h.logger.Info("Stream client disconnected", "client", c.id, "clients", count)
}

// Count returns the number of connected stream clients.
func (h *Hub) Count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Shutdown asks every client to close and waits for their pumps to finish.
// Connections still open when timeout expires are closed forcibly and
// context.DeadlineExceeded is returned.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.mutex.Lock()
	h.cancel()
	count := len(h.clients)
	h.mutex.Unlock()

	h.logger.Info("Shutting down stream clients", "clients", count)

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		h.logger.Info("Stream hub shutdown completed")
		return nil
	case <-timer.C:
	}

	h.mutex.Lock()
	for c := range h.clients {
		c.closeConnection()
	}
	h.mutex.Unlock()

	h.logger.Warn("Stream hub shutdown timed out; connections closed forcibly")
	return context.DeadlineExceeded
}
