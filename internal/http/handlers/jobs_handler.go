// Deferred job handlers.
//
//   - POST /jobs/{name}/drain    (run pending jobs now)
//   - GET  /jobs/{name}/stats    (backlog)
//   - GET  /jobs/{name}/dead     (parked jobs, ?limit=)
//   - POST /jobs/{name}/requeue  (revive dead jobs)
//
// All of them require "Authorization: Bearer <JOBS_TRIGGER_TOKEN>" when a
// token is configured.
package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-slack-bot/internal/jobs"
	"github.com/tbourn/go-slack-bot/internal/utils"
)

// DrainResponse reports how many jobs a drain consumed.
type DrainResponse struct {
	Job       string `json:"job"`
	Processed int    `json:"processed"`
}

// RequeueResponse reports how many dead jobs were revived.
type RequeueResponse struct {
	Job       string `json:"job"`
	Requeued int64  `json:"requeued"`
}

// DeadJob is one parked job as shown to operators. Payloads are omitted;
// they may carry conversation text.
type DeadJob struct {
	ID        string    `json:"id"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
	CreatedAt time.Time `json:"created_at"`
}

// DeadJobsResponse lists parked jobs for one name.
type DeadJobsResponse struct {
	Job  string    `json:"job"`
	Jobs []DeadJob `json:"jobs"`
}

const (
	defaultDeadLimit = 20
	maxDeadLimit     = 100
)

// authorized checks the bearer token in constant time.
func (h *Handlers) authorized(c *gin.Context) bool {
	if h.triggerToken == "" {
		return true
	}
	const prefix = "Bearer "
	auth := c.GetHeader("Authorization")
	if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return false
	}
	got := strings.TrimSpace(auth[len(prefix):])
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.triggerToken)) == 1
}

func (h *Handlers) jobName(c *gin.Context) (string, bool) {
	if !h.authorized(c) {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing or invalid trigger token")
		return "", false
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "job name required")
		return "", false
	}
	return name, true
}

// DrainJob runs the consumer for :name over its pending jobs. A consumer
// failure stops the drain and answers 500 with the failing job left queued.
//
// DrainJob godoc
// @ID          drainJob
// @Summary     Drain a job queue
// @Description Runs the registered consumer over every pending job of the queue, oldest first.
// @Tags        Jobs
// @Produce     json
// @Security    BearerAuth
// @Param       name  path  string  true  "Job name"  example(start_talk)
// @Success     200  {object}  handlers.DrainResponse  "Jobs consumed"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid trigger token"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown job"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Consumer failed"
// @Router      /jobs/{name}/drain [post]
func (h *Handlers) DrainJob(c *gin.Context) {
	name, good := h.jobName(c)
	if !good {
		return
	}

	n, err := h.jobs.Drain(c.Request.Context(), name)
	switch {
	case errors.Is(err, jobs.ErrUnknownJob):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "unknown job")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeDrainFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, DrainResponse{Job: name, Processed: n})
}

// JobStats godoc
// @ID          jobStats
// @Summary     Queue backlog
// @Description Reports pending and dead counts for the queue and the age of its oldest pending job.
// @Tags        Jobs
// @Produce     json
// @Security    BearerAuth
// @Param       name  path  string  true  "Job name"  example(reply_talk)
// @Success     200  {object}  repo.QueueStats         "Backlog"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid trigger token"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /jobs/{name}/stats [get]
func (h *Handlers) JobStats(c *gin.Context) {
	name, good := h.jobName(c)
	if !good {
		return
	}
	st, err := h.jobs.Stats(c.Request.Context(), name)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "stats failed")
		return
	}
	ok(c, http.StatusOK, st)
}

// RequeueJobs moves dead jobs for :name back to pending with a fresh
// attempt budget.
//
// RequeueJobs godoc
// @ID          requeueJobs
// @Summary     Revive dead jobs
// @Tags        Jobs
// @Produce     json
// @Security    BearerAuth
// @Param       name  path  string  true  "Job name"  example(start_talk)
// @Success     200  {object}  handlers.RequeueResponse  "Jobs requeued"
// @Failure     401  {object}  handlers.ErrorResponse    "Missing or invalid trigger token"
// @Failure     429  {object}  handlers.ErrorResponse    "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse    "Internal error"
// @Router      /jobs/{name}/requeue [post]
func (h *Handlers) RequeueJobs(c *gin.Context) {
	name, good := h.jobName(c)
	if !good {
		return
	}
	n, err := h.jobs.Requeue(c.Request.Context(), name)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "requeue failed")
		return
	}
	ok(c, http.StatusOK, RequeueResponse{Job: name, Requeued: n})
}

// DeadJobs lists up to ?limit= (default 20, max 100) dead jobs for :name,
// oldest first, with their last error.
//
// DeadJobs godoc
// @ID          deadJobs
// @Summary     List dead jobs
// @Description Payloads are omitted; they may carry conversation text.
// @Tags        Jobs
// @Produce     json
// @Security    BearerAuth
// @Param       name   path   string  true   "Job name"  example(start_talk)
// @Param       limit  query  int     false  "Max jobs to return (1-100)"  default(20)
// @Success     200  {object}  handlers.DeadJobsResponse  "Dead jobs"
// @Failure     401  {object}  handlers.ErrorResponse     "Missing or invalid trigger token"
// @Failure     429  {object}  handlers.ErrorResponse     "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse     "Internal error"
// @Router      /jobs/{name}/dead [get]
func (h *Handlers) DeadJobs(c *gin.Context) {
	name, good := h.jobName(c)
	if !good {
		return
	}
	limit := utils.Clamp(utils.AtoiDefault(c.Query("limit"), defaultDeadLimit), 1, maxDeadLimit)

	list, err := h.jobs.Dead(c.Request.Context(), name, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "list failed")
		return
	}
	out := DeadJobsResponse{Job: name, Jobs: make([]DeadJob, 0, len(list))}
	for _, j := range list {
		out.Jobs = append(out.Jobs, DeadJob{
			ID:        j.ID,
			Attempts:  j.Attempts,
			LastError: j.LastError,
			CreatedAt: j.CreatedAt,
		})
	}
	ok(c, http.StatusOK, out)
}
