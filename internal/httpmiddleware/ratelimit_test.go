package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"rfidattend/internal/auth"
)

func stationRouter(l *TokenBucket) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if s := c.GetHeader("X-Test-Station"); s != "" {
			c.Set("claims", auth.Claims{Subject: s, Role: auth.RoleScanner})
		}
		c.Next()
	})
	r.Use(l.GinMiddleware())
	r.GET("/scan", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r *gin.Engine, station, addr string) int {
	req := httptest.NewRequest(http.MethodGet, "/scan", nil)
	req.RemoteAddr = addr
	if station != "" {
		req.Header.Set("X-Test-Station", station)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestTokenBucketKeysPerStation(t *testing.T) {
	r := stationRouter(NewTokenBucket(1, 1))

	// Two stations behind the same address each get their own bucket.
	assert.Equal(t, http.StatusOK, hit(r, "station-a", "10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, hit(r, "station-b", "10.0.0.1:1234"))

	// A station exhausting its bucket is limited on its own key only.
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "station-a", "10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, hit(r, "station-c", "10.0.0.1:1234"))
}

func TestTokenBucketFallsBackToClientIP(t *testing.T) {
	r := stationRouter(NewTokenBucket(1, 1))

	assert.Equal(t, http.StatusOK, hit(r, "", "10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "", "10.0.0.1:1234"))

	// A different address is an independent bucket.
	assert.Equal(t, http.StatusOK, hit(r, "", "10.0.0.2:1234"))
}

func TestTokenBucketRefill(t *testing.T) {
	l := NewTokenBucket(2, 60)
	assert.True(t, l.allow("k"))
	assert.True(t, l.allow("k"))
	assert.False(t, l.allow("k"))
}
