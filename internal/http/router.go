// Package httpapi wires the HTTP transport (Gin) to the event dispatcher,
// the deferred job queue and the shared middleware: tracing, correlation
// IDs, redacted logging, panic recovery, metrics, Slack retry handling,
// signature checks, compression, CORS, security headers and rate limiting.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-slack-bot/docs"
	"github.com/tbourn/go-slack-bot/internal/config"
	"github.com/tbourn/go-slack-bot/internal/domain"
	"github.com/tbourn/go-slack-bot/internal/http/handlers"
	"github.com/tbourn/go-slack-bot/internal/http/middleware"
	"github.com/tbourn/go-slack-bot/internal/jobs"
	"github.com/tbourn/go-slack-bot/internal/repo"
)

// maxBodyBytes caps request bodies. Slack payloads are far below this.
const maxBodyBytes = 1 << 20

// Deps are the collaborators the routes need.
type Deps struct {
	DB         *gorm.DB
	Dispatcher handlers.Dispatcher
	Handoff    *jobs.Handoff
	Registry   *jobs.Registry
}

// jobQueue adapts the handoff, the registry and the repo free functions to
// handlers.JobQueue.
type jobQueue struct {
	db      *gorm.DB
	handoff *jobs.Handoff
	reg     *jobs.Registry
}

func (q jobQueue) Drain(ctx context.Context, name string) (int, error) {
	return jobs.DrainNamed(ctx, q.handoff, q.reg, name)
}

func (q jobQueue) Stats(ctx context.Context, name string) (repo.QueueStats, error) {
	return repo.JobStats(ctx, q.db, name)
}

func (q jobQueue) Requeue(ctx context.Context, name string) (int64, error) {
	return repo.RequeueDeadJobs(ctx, q.db, name)
}

func (q jobQueue) Dead(ctx context.Context, name string, limit int) ([]domain.Job, error) {
	return repo.ListJobs(ctx, q.db, name, domain.JobDead, limit)
}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger (needs the request id; masks Slack signatures)
//  4. Recovery
//  5. Body size limit
//  6. Metrics (the scrape endpoint is excluded)
//  7. SlackRetry (before the rate limiter so redeliveries bypass it)
//  8. gzip, CORS and security headers
//
// The Slack route adds the signing-secret check; the job routes add the
// token-bucket limiter. Swagger UI is served under /swagger/.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-Api-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(middleware.Metrics("/metrics"))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Use(middleware.SlackRetry())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(
		deps.Dispatcher,
		deps.Handoff,
		jobQueue{db: deps.DB, handoff: deps.Handoff, reg: deps.Registry},
		cfg.Jobs.TriggerToken,
	)

	base := groupWithPrefix(r, cfg.APIBasePath)

	// generated OpenAPI docs; operation paths are relative to the base path
	docs.SwaggerInfo.BasePath = base.BasePath()
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	base.POST("/slack/events", middleware.SlackSignature(cfg.Slack.SigningSecret), h.SlackEvents)

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByRouteAndIP())
	jobsAPI := base.Group("/jobs", rl.Handler())
	{
		jobsAPI.POST("/:name/drain", h.DrainJob)
		jobsAPI.GET("/:name/stats", h.JobStats)
		jobsAPI.GET("/:name/dead", h.DeadJobs)
		jobsAPI.POST("/:name/requeue", h.RequeueJobs)
	}
}

// corsMiddleware only matters for the operator endpoints; Slack never sends
// an Origin. With no allowlist every origin is accepted without credentials.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cors.New(cc)
}

// limitBody caps the request body at maxBytes; reads past it fail with
// *http.MaxBytesError.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
