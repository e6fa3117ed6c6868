package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID_GeneratesOrPropagates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.POST("/slack/events", func(c *gin.Context) {
		if RequestIDFrom(c) == "" {
			t.Fatalf("request id not stored in context")
		}
		c.Status(http.StatusOK)
	})

	w := serve(r, httptest.NewRequest(http.MethodPost, "/slack/events", nil))
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated %s", requestIDHeader)
	}

	req := httptest.NewRequest(http.MethodPost, "/slack/events", nil)
	req.Header.Set(strings.ToLower(requestIDHeader), "rid-42")
	w = serve(r, req)
	if got := w.Header().Get(requestIDHeader); got != "rid-42" {
		t.Fatalf("propagated id = %q", got)
	}
}

func TestRedactingLogger_LevelsFollowStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}))
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/jobs/:name/drain", func(c *gin.Context) {
		_ = c.Error(errors.New("drain failed"))
		c.Status(http.StatusInternalServerError)
	})

	serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))
	serve(r, httptest.NewRequest(http.MethodPost, "/jobs/start_talk/drain", nil))

	out := buf.String()
	for _, want := range []string{
		`"level":"info"`, `"path":"/health"`,
		`"level":"warn"`, `"path":"/nope"`,
		`"level":"error"`, `"path":"/jobs/:name/drain"`, `"errors":"Error #01: drain failed`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %s:\n%s", want, out)
		}
	}
}

func TestLoggerFrom_TagsSlackRetries(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}), SlackRetry())
	r.POST("/slack/events", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("handled")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/slack/events", nil)
	req.Header.Set(HeaderSlackRetryNum, "2")
	req.Header.Set(HeaderSlackRetryReason, "http_timeout")
	serve(r, req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected handler and access lines, got:\n%s", buf.String())
	}
	if !strings.Contains(lines[0], `"message":"handled"`) || !strings.Contains(lines[0], `"slack_retry_num":2`) {
		t.Fatalf("handler line lacks retry number:\n%s", lines[0])
	}
	if !strings.Contains(lines[1], `"slack_retry_num":2`) || !strings.Contains(lines[1], `"X-Slack-Retry-Reason":"http_timeout"`) {
		t.Fatalf("access line lacks retry details:\n%s", lines[1])
	}
}

func TestRecovery_PanicBecomesJSON500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}), Recovery())
	r.POST("/slack/events", func(c *gin.Context) { panic("kaboom") })

	req := httptest.NewRequest(http.MethodPost, "/slack/events", nil)
	req.Header.Set(requestIDHeader, "rid-p")
	w := serve(r, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["code"] != "internal_error" || body["request_id"] != "rid-p" {
		t.Fatalf("body = %v", body)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Fatalf("panic not logged:\n%s", buf.String())
	}
}

func TestRecovery_PanicAfterWriteKeepsBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late")
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/late", nil))
	if strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("JSON error written after body: %q", w.Body.String())
	}
}

func TestLoggerFrom_ScopedAndFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)

	buf := captureLogger(t)
	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}))
	r.GET("/x", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("scoped")
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestIDHeader, "rid-s")
	serve(r, req)
	if !strings.Contains(buf.String(), `"request_id":"rid-s","method":"GET","path":"/x","remote_ip":`) {
		t.Fatalf("scoped logger lacks request fields:\n%s", buf.String())
	}

	buf = captureLogger(t)
	r = gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) {
		lg := LoggerFrom(c)
		if lg == nil {
			t.Fatalf("nil logger")
		}
		lg.Info().Msg("fallback")
		c.Status(http.StatusOK)
	})
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestIDHeader, "rid-f")
	serve(r, req)
	out := buf.String()
	if !strings.Contains(out, `"message":"fallback"`) || !strings.Contains(out, `"request_id":"rid-f"`) {
		t.Fatalf("fallback logger output:\n%s", out)
	}
	if strings.Contains(out, `"method"`) {
		t.Fatalf("fallback logger should not carry access fields:\n%s", out)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"abcdefgh", 5, "abcde…"},
		{"abc", 0, "abc"},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.max); got != tc.want {
			t.Errorf("truncate(%q,%d) = %q; want %q", tc.in, tc.max, got, tc.want)
		}
	}
	if asString(7) != "" || asString("x") != "x" {
		t.Fatalf("asString")
	}
}
