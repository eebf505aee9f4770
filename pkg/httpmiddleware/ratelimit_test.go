package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, prepare func(r *http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if prepare != nil {
		prepare(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func fromAddr(addr string) func(*http.Request) {
	return func(r *http.Request) { r.RemoteAddr = addr }
}

func decodeError(t *testing.T, body []byte) (code int, msg string) {
	t.Helper()
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			code, err = d.Int()
		case "message":
			msg, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	require.NoError(t, err)
	return code, msg
}

func TestRateLimit_Burst(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := range 5 {
		w := serve(h, fromAddr("192.168.1.1:12345"))
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(4-i), w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_Exceeded(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, serve(h, fromAddr("10.0.0.1:9999")).Code)
	}

	w := serve(h, fromAddr("10.0.0.1:9999"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Positive(t, retry)
	assert.LessOrEqual(t, retry, 30)

	code, msg := decodeError(t, w.Body.Bytes())
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate limit exceeded", msg)
}

func TestRateLimit_Keys(t *testing.T) {
	for _, tt := range []struct {
		name  string
		cfg   RateLimitConfig
		first func(*http.Request)
		same  func(*http.Request)
		other func(*http.Request)
	}{
		{
			name:  "RemoteAddr",
			first: fromAddr("10.0.0.1:1234"),
			same:  fromAddr("10.0.0.1:5678"),
			other: fromAddr("10.0.0.2:1234"),
		},
		{
			name: "ForwardedFor",
			first: func(r *http.Request) {
				r.RemoteAddr = "192.168.1.1:4444"
				r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
			},
			same: func(r *http.Request) {
				r.RemoteAddr = "192.168.1.2:5555"
				r.Header.Set("X-Forwarded-For", "203.0.113.50")
			},
			other: func(r *http.Request) {
				r.RemoteAddr = "192.168.1.1:4444"
				r.Header.Set("X-Real-IP", "198.51.100.7")
			},
		},
		{
			name: "Custom",
			cfg: RateLimitConfig{KeyFunc: func(r *http.Request) string {
				return r.Header.Get(SessionHeader)
			}},
			first: func(r *http.Request) { r.Header.Set(SessionHeader, "a") },
			same:  func(r *http.Request) { r.Header.Set(SessionHeader, "a") },
			other: func(r *http.Request) { r.Header.Set(SessionHeader, "b") },
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.Max, cfg.Window = 1, time.Minute
			h := RateLimit(cfg)(okHandler())

			assert.Equal(t, http.StatusOK, serve(h, tt.first).Code)
			assert.Equal(t, http.StatusTooManyRequests, serve(h, tt.same).Code)
			assert.Equal(t, http.StatusOK, serve(h, tt.other).Code)
		})
	}
}

func TestRateLimit_Refill(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 2, Window: time.Second})
	now := time.Unix(1_700_000_000, 0)

	for range 2 {
		_, _, ok := rl.allow("k", now)
		require.True(t, ok)
	}
	_, wait, ok := rl.allow("k", now)
	require.False(t, ok)
	assert.Equal(t, 500*time.Millisecond, wait)

	_, _, ok = rl.allow("k", now.Add(wait))
	assert.True(t, ok)
}

func TestRateLimit_Cleanup(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	now := time.Unix(1_700_000_000, 0)

	rl.allow("idle", now)
	rl.allow("busy", now.Add(50*time.Second))
	rl.cleanup(now.Add(70 * time.Second))

	assert.NotContains(t, rl.clients, "idle")
	assert.Contains(t, rl.clients, "busy")
}
