package handlers

import (
	"context"

	"github.com/tbourn/go-slack-bot/internal/domain"
	"github.com/tbourn/go-slack-bot/internal/events"
	"github.com/tbourn/go-slack-bot/internal/repo"
)

// Dispatcher handles one raw Slack delivery.
type Dispatcher interface {
	Handle(ctx context.Context, d events.Delivery) (events.Result, error)
}

// Enqueuer hands work to the deferred job queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any) error
}

// JobQueue exposes the operator side of the deferred job queue.
type JobQueue interface {
	// Drain runs the consumer registered for name over its pending jobs.
	Drain(ctx context.Context, name string) (int, error)
	// Stats reports the backlog for name.
	Stats(ctx context.Context, name string) (repo.QueueStats, error)
	// Requeue moves dead jobs of name back to pending.
	Requeue(ctx context.Context, name string) (int64, error)
	// Dead lists up to limit dead jobs of name, oldest first.
	Dead(ctx context.Context, name string, limit int) ([]domain.Job, error)
}

// Handlers groups the webhook and job endpoints.
type Handlers struct {
	dispatcher   Dispatcher
	enqueuer     Enqueuer
	jobs         JobQueue
	triggerToken string
}

// New returns Handlers. An empty triggerToken leaves the job endpoints open,
// which is only sensible behind a private network.
func New(d Dispatcher, enq Enqueuer, jobs JobQueue, triggerToken string) *Handlers {
	return &Handlers{dispatcher: d, enqueuer: enq, jobs: jobs, triggerToken: triggerToken}
}
