package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func securityRouter(opt SecurityOptions, pre gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := serve(securityRouter(SecurityOptions{}, RequestID()), httptest.NewRequest(http.MethodGet, "/health", nil))

	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" || h.Get("X-Frame-Options") != "DENY" || h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers: %v", h)
	}
	if h.Get("Permissions-Policy") != "" || h.Get("Cache-Control") != "" || h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("optional headers set: %v", h)
	}
	if h.Get("Access-Control-Expose-Headers") != requestIDHeader {
		t.Fatalf("expose = %q", h.Get("Access-Control-Expose-Headers"))
	}
}

func TestSecurityHeaders_ExposeAppendsOnce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pre := func(c *gin.Context) {
		c.Header(requestIDHeader, "rid")
		c.Header("Access-Control-Expose-Headers", "ETag")
		c.Next()
	}
	w := serve(securityRouter(SecurityOptions{}, pre), httptest.NewRequest(http.MethodGet, "/health", nil))
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "ETag, "+requestIDHeader {
		t.Fatalf("expose = %q", got)
	}
}

func TestSecurityHeaders_OptionalAndHSTS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	opt := SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour, NoStore: true, EnablePolicy: true}
	r := securityRouter(opt, nil)

	plain := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	if plain.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS over plain HTTP")
	}
	if plain.Header().Get("Cache-Control") != "no-store" || plain.Header().Get("Permissions-Policy") == "" {
		t.Fatalf("optional headers missing: %v", plain.Header())
	}

	proxied := httptest.NewRequest(http.MethodGet, "/health", nil)
	proxied.Header.Set("X-Forwarded-Proto", "HTTPS")
	if got := serve(r, proxied).Header().Get("Strict-Transport-Security"); !strings.HasPrefix(got, "max-age=3600;") {
		t.Fatalf("proxied HSTS = %q", got)
	}

	direct := httptest.NewRequest(http.MethodGet, "/health", nil)
	direct.TLS = &tls.ConnectionState{}
	if got := serve(securityRouter(SecurityOptions{EnableHSTS: true}, nil), direct).Header().Get("Strict-Transport-Security"); !strings.HasPrefix(got, "max-age=15552000;") {
		t.Fatalf("default HSTS = %q", got)
	}
}
