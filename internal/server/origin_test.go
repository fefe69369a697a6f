package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Tyrowin/relaychat/pkg/logger"
)

func TestOriginPolicy_Allows(t *testing.T) {
	p := newOriginPolicy([]string{"http://Localhost:8080", "not a url", ""}, logger.Discard())

	assert.False(t, p.allowAll)
	assert.True(t, p.allows("http://localhost:8080"))
	assert.True(t, p.allows("HTTP://LOCALHOST:8080"))
	assert.False(t, p.allows("http://evil.example"))
	assert.False(t, p.allows("garbage"))
}

func TestOriginPolicy_Wildcard(t *testing.T) {
	p := newOriginPolicy([]string{"*"}, logger.Discard())

	assert.True(t, p.allowAll)
	assert.True(t, p.allows("http://anything.example"))
}

func TestOriginPolicy_CheckOrigin(t *testing.T) {
	strict := newOriginPolicy([]string{"http://localhost:8080"}, logger.Discard())
	open := newOriginPolicy([]string{"*"}, logger.Discard())

	noOrigin := httptest.NewRequest(http.MethodGet, "/api/messages/stream", http.NoBody)
	assert.False(t, strict.checkOrigin(noOrigin))
	assert.True(t, open.checkOrigin(noOrigin))

	good := httptest.NewRequest(http.MethodGet, "/api/messages/stream", http.NoBody)
	good.Header.Set("Origin", "http://localhost:8080")
	assert.True(t, strict.checkOrigin(good))

	bad := httptest.NewRequest(http.MethodGet, "/api/messages/stream", http.NoBody)
	bad.Header.Set("Origin", "http://evil.example")
	assert.False(t, strict.checkOrigin(bad))
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("preflight", func(t *testing.T) {
		h := newOriginPolicy([]string{"http://localhost:8080"}, logger.Discard()).cors(next)
		req := httptest.NewRequest(http.MethodOptions, "/api/messages", http.NoBody)
		req.Header.Set("Origin", "http://localhost:8080")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://localhost:8080", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Origin", rec.Header().Get("Vary"))
	})

	t.Run("wildcard", func(t *testing.T) {
		h := newOriginPolicy([]string{"*"}, logger.Discard()).cors(next)
		req := httptest.NewRequest(http.MethodGet, "/api/users/online", http.NoBody)
		req.Header.Set("Origin", "http://anywhere.example")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disallowed origin gets no headers", func(t *testing.T) {
		h := newOriginPolicy([]string{"http://localhost:8080"}, logger.Discard()).cors(next)
		req := httptest.NewRequest(http.MethodGet, "/api/users/online", http.NoBody)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
