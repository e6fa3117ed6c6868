package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func testContext(path string) *gin.Context {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	return c
}

func TestKeyFuncs(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c := testContext("/jobs/start_talk/drain")
	c.Params = gin.Params{{Key: "name", Value: "start_talk"}}
	a := KeyByRouteAndIP()(c)
	c.Params = gin.Params{{Key: "name", Value: "reply_talk"}}
	b := KeyByRouteAndIP()(c)
	if a == b {
		t.Fatalf("job names should get separate buckets: %q", a)
	}
	if !strings.Contains(a, "#start_talk") || !strings.HasSuffix(a, "|ip:203.0.113.9") {
		t.Fatalf("KeyByRouteAndIP = %q", a)
	}
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(2, 0, KeyByRouteAndIP())
	if rl.burst != 1 || rl.rps != rate.Limit(2) || rl.idleTTL != 10*time.Minute {
		t.Fatalf("unexpected defaults: %+v", rl)
	}
}

func TestLimiter_ReusesBucketAndEvictsIdle(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByRouteAndIP())

	first := rl.limiter("k1")
	if rl.limiter("k1") != first {
		t.Fatalf("same key should reuse its bucket")
	}

	rl.mu.Lock()
	rl.visitors["stale"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-time.Hour)}
	rl.lookups = 4999
	rl.mu.Unlock()

	rl.limiter("k1")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["stale"]; ok {
		t.Fatalf("idle bucket not evicted")
	}
	if _, ok := rl.visitors["k1"]; !ok {
		t.Fatalf("live bucket evicted")
	}
	if rl.lookups != 0 {
		t.Fatalf("lookup counter not reset: %d", rl.lookups)
	}
}

func TestHandler_429Envelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.0001, 1, KeyByRouteAndIP())

	r := gin.New()
	r.Use(RequestID(), rl.Handler())
	r.POST("/jobs/:name/drain", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := serve(r, httptest.NewRequest(http.MethodPost, "/jobs/a/drain", nil)); w.Code != http.StatusOK {
		t.Fatalf("first request = %d", w.Code)
	}
	w := serve(r, httptest.NewRequest(http.MethodPost, "/jobs/a/drain", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Fatalf("missing Retry-After")
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["code"] != "too_many_requests" || body["request_id"] == "" {
		t.Fatalf("body = %v", body)
	}
}

func TestHandler_SlackRetriesBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.0001, 1, KeyByRouteAndIP())

	r := gin.New()
	r.Use(SlackRetry(), rl.Handler())
	r.POST("/slack/events", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, httptest.NewRequest(http.MethodPost, "/slack/events", nil))
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/slack/events", nil)
		req.Header.Set(HeaderSlackRetryNum, "1")
		if w := serve(r, req); w.Code != http.StatusOK {
			t.Fatalf("retry %d throttled: %d", i, w.Code)
		}
	}
	if w := serve(r, httptest.NewRequest(http.MethodPost, "/slack/events", nil)); w.Code != http.StatusTooManyRequests {
		t.Fatalf("fresh delivery should still be limited, got %d", w.Code)
	}
}
