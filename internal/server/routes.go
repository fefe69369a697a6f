package server

import "net/http"

const (
	pollPath   = "/api/messages/poll"
	streamPath = "/api/messages/stream"
)

// SetupRoutes returns a ServeMux with every API route registered.
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", HealthHandler)
	mux.HandleFunc("POST /api/messages", s.SendMessageHandler)
	mux.HandleFunc("GET "+pollPath, s.PollHandler)
	mux.HandleFunc("GET "+streamPath, s.StreamHandler)
	mux.HandleFunc("POST /api/users/heartbeat", s.HeartbeatHandler)
	mux.HandleFunc("GET /api/users/online", s.OnlineUsersHandler)
	return mux
}

// Handler returns the routes wrapped in recovery, access logging and CORS.
func (s *Server) Handler() http.Handler {
	return recoverer(s.logger, requestLogger(s.logger, s.origins.cors(s.SetupRoutes())))
}
