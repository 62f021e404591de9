package bootstrap

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(redisAddr string) *Config {
	return &Config{
		ServerPort:         "0",
		AppEnv:             "test",
		LogLevel:           "warn",
		StoreBackend:       StoreRedis,
		RedisAddr:          redisAddr,
		KeyPrefix:          "test:",
		TxMaxRetries:       5,
		CORSAllowedOrigins: []string{"http://allowed.test"},
		RateLimitMax:       3,
		RateLimitWindow:    time.Minute,
		AgendaTimeout:      time.Second,
		RoomMaxAge:         time.Hour,
		RoomSweepSchedule:  "@every 10m",
	}
}

func newTestApp(t *testing.T, cfg *Config) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	app, err := NewApp(cfg)
	require.NoError(t, err)
	t.Cleanup(app.Shutdown)
	return app
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.1.1.1:5000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewApp_RoutesWithStores(t *testing.T) {
	for _, backend := range []string{StoreRedis, StoreSQLite} {
		t.Run(backend, func(t *testing.T) {
			mr := miniredis.RunT(t)
			cfg := testConfig(mr.Addr())
			cfg.StoreBackend = backend
			cfg.SQLitePath = "file:apptest_" + backend + "?mode=memory&cache=shared"
			cfg.RateLimitMax = 100
			app := newTestApp(t, cfg)
			h := app.HttpServer.Handler

			w := post(h, "/api/rooms", `{"username":"Alice","uid":"U1"}`)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var created struct {
				RoomID string `json:"roomId"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

			w = post(h, "/api/rooms/join", `{"roomId":"`+created.RoomID+`","username":"Bob","uid":"U2"}`)
			assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

			req := httptest.NewRequest(http.MethodGet, "/api/rooms/"+created.RoomID, nil)
			w = httptest.NewRecorder()
			h.ServeHTTP(w, req)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), `"Bob"`)
		})
	}
}

func TestNewApp_PingCORSAndRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	app := newTestApp(t, testConfig(mr.Addr()))
	h := app.HttpServer.Handler

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://allowed.test")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
	assert.Equal(t, "http://allowed.test", w.Header().Get("Access-Control-Allow-Origin"))

	// 限流只作用于 /api
	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		codes = append(codes, post(h, "/api/rooms", `{}`).Code)
	}
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)
}

func TestNewApp_AgendaUpstreamFailureIs502(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	mr := miniredis.RunT(t)
	cfg := testConfig(mr.Addr())
	cfg.GeminiBaseURL = upstream.URL
	cfg.GeminiAPIKey = "k"
	app := newTestApp(t, cfg)

	w := post(app.HttpServer.Handler, "/api/agenda", `{"topic":"X","total_duration":30}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestNewApp_RelayRequiresRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(mr.Addr())
	cfg.BroadcastRelay = true
	app := newTestApp(t, cfg)
	assert.NotNil(t, app.relayCancel)

	down, err := miniredis.Run()
	require.NoError(t, err)
	addr := down.Addr()
	down.Close()
	_, err = NewApp(testConfig(addr))
	assert.Error(t, err, "Redis must be reachable at startup")
}

func TestNewApp_RoomSweepIsOptIn(t *testing.T) {
	mr := miniredis.RunT(t)
	app := newTestApp(t, testConfig(mr.Addr()))
	assert.NotEmpty(t, app.sweepEntryID)

	cfg := testConfig(mr.Addr())
	cfg.RoomMaxAge = 0
	app = newTestApp(t, cfg)
	assert.Empty(t, app.sweepEntryID, "no sweep without ROOM_MAX_AGE")
}

func TestNewLogger_UsesConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{AppEnv: "production", LogLevel: "error"})
	log.SetOutput(&buf)
	log.Warn("hidden")
	log.Error("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
