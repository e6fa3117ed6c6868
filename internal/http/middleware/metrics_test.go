package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsRoutesAndSkipsScrape(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics("/metrics"))
	r.POST("/jobs/:name/drain", func(c *gin.Context) { c.String(http.StatusOK, "{}") })
	r.POST("/slack/events", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", func(c *gin.Context) { c.String(http.StatusOK, "# metrics") })

	baseDrain := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/jobs/:name/drain", "200"))
	baseMissing := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/missing", "404"))
	baseScrape := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/metrics", "200"))

	serve(r, httptest.NewRequest(http.MethodPost, "/jobs/start_talk/drain", nil))
	serve(r, httptest.NewRequest(http.MethodPost, "/jobs/reply_talk/drain", nil))
	serve(r, httptest.NewRequest(http.MethodPost, "/slack/events", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/missing", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/jobs/:name/drain", "200")); got != baseDrain+2 {
		t.Fatalf("drain counter = %v; want %v", got, baseDrain+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/missing", "404")); got != baseMissing+1 {
		t.Fatalf("404 counter = %v; want %v", got, baseMissing+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/metrics", "200")); got != baseScrape {
		t.Fatalf("scrape endpoint should not be counted")
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight = %v", got)
	}
}
