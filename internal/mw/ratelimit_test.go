package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func limitedRequest(t *testing.T, rl *RateLimiter, remoteAddr string) int {
	t.Helper()
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	defer rl.Stop()

	assert.Equal(t, http.StatusOK, limitedRequest(t, rl, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, limitedRequest(t, rl, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, limitedRequest(t, rl, "10.0.0.1:1234"))
}

func TestRateLimiter_TracksClientsSeparately(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	defer rl.Stop()

	assert.Equal(t, http.StatusOK, limitedRequest(t, rl, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, limitedRequest(t, rl, "10.0.0.1:5678"))
	assert.Equal(t, http.StatusOK, limitedRequest(t, rl, "10.0.0.2:1234"))
}
