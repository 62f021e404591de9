package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedRouter(t *testing.T, max int, window time.Duration) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.Use(RateLimit(rdb, "test:", max, window))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r, mr
}

func get(r http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = ip + ":1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BlocksAfterMax(t *testing.T) {
	r, mr := newLimitedRouter(t, 2, time.Minute)

	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1").Code)
	w := get(r, "10.0.0.1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = get(r, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// 其他 IP 不受影响
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.2").Code)

	// 窗口过期后重新计数
	mr.FastForward(2 * time.Minute)
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1").Code)
}

func TestRateLimit_RedisDownAllowsRequest(t *testing.T) {
	r, mr := newLimitedRouter(t, 1, time.Minute)
	mr.Close()

	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1").Code)
}

func TestRateLimit_PanicsOnBadConfig(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()

	assert.Panics(t, func() { RateLimit(nil, "", 1, time.Second) })
	assert.Panics(t, func() { RateLimit(rdb, "", 0, time.Second) })
	assert.Panics(t, func() { RateLimit(rdb, "", 1, 0) })
}

func TestLogger_LevelsByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	r := gin.New()
	r.Use(Logger(log))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok?x=1", nil))
	require.Contains(t, buf.String(), `"level":"info"`)
	assert.Contains(t, buf.String(), `"path":"/ok?x=1"`)

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Contains(t, buf.String(), `"level":"warning"`)
	assert.Contains(t, buf.String(), `"status_code":404`)
}
