package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-slack-bot/internal/domain"
	"github.com/tbourn/go-slack-bot/internal/events"
	"github.com/tbourn/go-slack-bot/internal/repo"
)

type fakeDispatcher struct {
	res  events.Result
	err  error
	seen []events.Delivery
}

func (f *fakeDispatcher) Handle(_ context.Context, d events.Delivery) (events.Result, error) {
	f.seen = append(f.seen, d)
	return f.res, f.err
}

type enqueued struct {
	name    string
	payload any
}

type fakeEnqueuer struct {
	mu   sync.Mutex
	err  error
	jobs []enqueued
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, name string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, enqueued{name, payload})
	return f.err
}

type fakeQueue struct {
	drained   []string
	drainN    int
	drainErr  error
	stats     repo.QueueStats
	statsErr  error
	requeued  int64
	dead      []domain.Job
	deadLimit int
}

func (f *fakeQueue) Drain(_ context.Context, name string) (int, error) {
	f.drained = append(f.drained, name)
	return f.drainN, f.drainErr
}

func (f *fakeQueue) Stats(_ context.Context, name string) (repo.QueueStats, error) {
	st := f.stats
	st.Name = name
	return st, f.statsErr
}

func (f *fakeQueue) Requeue(context.Context, string) (int64, error) {
	return f.requeued, nil
}

func (f *fakeQueue) Dead(_ context.Context, _ string, limit int) ([]domain.Job, error) {
	f.deadLimit = limit
	return f.dead, nil
}

func newTestRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-test")
		c.Next()
	})
	r.POST("/slack/events", h.SlackEvents)
	r.POST("/jobs/:name/drain", h.DrainJob)
	r.GET("/jobs/:name/stats", h.JobStats)
	r.GET("/jobs/:name/dead", h.DeadJobs)
	r.POST("/jobs/:name/requeue", h.RequeueJobs)
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
