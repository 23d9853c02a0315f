package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRedis answers every script call with the next canned reply.
type scriptedRedis struct {
	replies []any
	err     error
	keys    []string
}

func (s *scriptedRedis) reply(ctx context.Context, keys []string) *redis.Cmd {
	s.keys = append(s.keys, keys...)
	cmd := redis.NewCmd(ctx)
	if s.err != nil {
		cmd.SetErr(s.err)
		return cmd
	}
	cmd.SetVal(s.replies[0])
	s.replies = s.replies[1:]
	return cmd
}

func (s *scriptedRedis) Eval(ctx context.Context, _ string, keys []string, _ ...any) *redis.Cmd {
	return s.reply(ctx, keys)
}

func (s *scriptedRedis) EvalSha(ctx context.Context, _ string, keys []string, _ ...any) *redis.Cmd {
	return s.reply(ctx, keys)
}

func (s *scriptedRedis) EvalRO(ctx context.Context, _ string, keys []string, _ ...any) *redis.Cmd {
	return s.reply(ctx, keys)
}

func (s *scriptedRedis) EvalShaRO(ctx context.Context, _ string, keys []string, _ ...any) *redis.Cmd {
	return s.reply(ctx, keys)
}

func (s *scriptedRedis) ScriptExists(ctx context.Context, _ ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceCmd(ctx)
}

func (s *scriptedRedis) ScriptLoad(ctx context.Context, _ string) *redis.StringCmd {
	return redis.NewStringCmd(ctx)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func routed(l *Limiter) http.Handler {
	r := chi.NewRouter()
	r.With(l.Middleware).Post("/happening/{slug}/registrations", okHandler().ServeHTTP)
	return r
}

func TestMiddlewareAllowsThenBlocks(t *testing.T) {
	rdb := &scriptedRedis{replies: []any{
		[]any{int64(1), int64(0), int64(0)},
		[]any{int64(0), int64(0), int64(1500)},
	}}
	h := routed(New(rdb, Config{Enabled: true, Capacity: 1}, zerolog.Nop()))

	req := httptest.NewRequest(http.MethodPost, "/happening/talk/registrations", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	require.Len(t, rdb.keys, 2)
	assert.Equal(t, "rl:ip:10.0.0.1:route:POST /happening/{slug}/registrations", rdb.keys[0])
}

func TestMiddlewareFailsOpen(t *testing.T) {
	rdb := &scriptedRedis{err: errors.New("connection refused")}
	h := routed(New(rdb, Config{Enabled: true}, zerolog.Nop()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/happening/talk/registrations", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewarePassThrough(t *testing.T) {
	tests := []struct {
		name string
		rdb  redis.Scripter
		cfg  Config
	}{
		{"disabled", &scriptedRedis{err: errors.New("unused")}, Config{Enabled: false}},
		{"no client", nil, Config{Enabled: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			New(tt.rdb, tt.cfg, zerolog.Nop()).Middleware(okHandler()).
				ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
		})
	}
}

func TestParseResult(t *testing.T) {
	res, err := parseResult([]any{int64(1), int64(4), int64(0)})
	require.NoError(t, err)
	assert.Equal(t, Result{Allowed: true, Remaining: 4}, res)

	_, err = parseResult("OK")
	assert.Error(t, err)
}

func TestConfigNormalized(t *testing.T) {
	cfg := Config{RefillInterval: 2 * time.Second}.normalized()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 10*time.Second, cfg.TTL)
	assert.Equal(t, "rl", cfg.Prefix)
}

func TestTokenBucketAgainstRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	l := New(rdb, Config{Enabled: true, Capacity: 2, RefillInterval: time.Hour}, zerolog.Nop())
	key := "test:" + time.Now().Format(time.RFC3339Nano)
	defer rdb.Del(context.Background(), key)

	for i, want := range []bool{true, true, false} {
		res, err := l.Take(context.Background(), key)
		require.NoError(t, err)
		assert.Equalf(t, want, res.Allowed, "take #%d", i+1)
	}
}
