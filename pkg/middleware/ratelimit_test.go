package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/campus/pkg/observability"
)

func rateLimitFixture(t *testing.T, limit int) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewRateLimiter(client, limit, time.Minute, logger), server
}

func limitedProbe(rl *RateLimiter) http.Handler {
	return rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl, _ := rateLimitFixture(t, 3)
	handler := limitedProbe(rl)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/register", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusOK, recorder.Code)
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl, _ := rateLimitFixture(t, 2)
	handler := limitedProbe(rl)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/register", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimiter_KeysByClientIP(t *testing.T) {
	rl, _ := rateLimitFixture(t, 1)
	handler := limitedProbe(rl)

	first := httptest.NewRequest(http.MethodPost, "/register", nil)
	first.Header.Set("X-Forwarded-For", "198.51.100.1")
	firstRec := httptest.NewRecorder()
	handler.ServeHTTP(firstRec, first)
	require.Equal(t, http.StatusOK, firstRec.Code)

	// A different client is unaffected by the first client's quota.
	second := httptest.NewRequest(http.MethodPost, "/register", nil)
	second.Header.Set("X-Forwarded-For", "198.51.100.2")
	secondRec := httptest.NewRecorder()
	handler.ServeHTTP(secondRec, second)
	assert.Equal(t, http.StatusOK, secondRec.Code)
}

func TestRateLimiter_FailsOpenWhenRedisDown(t *testing.T) {
	rl, server := rateLimitFixture(t, 1)
	server.Close()

	handler := limitedProbe(rl)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/register", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusOK, recorder.Code)
	}
}

func TestRateLimiter_NilClientPassthrough(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	rl := NewRateLimiter(nil, 1, time.Minute, logger)
	handler := limitedProbe(rl)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/register", nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusOK, recorder.Code)
	}
}
