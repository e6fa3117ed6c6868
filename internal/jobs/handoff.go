// Package jobs hands slow work from the webhook path to a later drain.
//
// Enqueue records a named JSON payload in the deferred_jobs table and
// returns. Drain, invoked by the Poller or the drain endpoint, feeds pending
// payloads of one name to its consumer in enqueue order. A payload is
// deleted only after its consumer returns nil; a failing consumer keeps the
// payload for the next drain and, after enough attempts, parks it as dead.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-slack-bot/internal/domain"
	"github.com/tbourn/go-slack-bot/internal/repo"
)

// Well-known job names.
const (
	StartTalk    = "start_talk"
	ReplyTalk    = "reply_talk"
	AsyncLogging = "async_logging"
)

// ErrEmptyName is returned for a blank job name.
var ErrEmptyName = errors.New("job name is empty")

// Consumer processes one payload. Returning an error keeps the payload.
type Consumer func(ctx context.Context, payload json.RawMessage) error

// Handoff is the durable job queue.
type Handoff struct {
	DB          *gorm.DB
	MaxAttempts int
	Lease       time.Duration
	BatchSize   int

	Now func() time.Time
}

// NewHandoff returns a Handoff with the given tuning; zero values get defaults.
func NewHandoff(db *gorm.DB, maxAttempts int, lease time.Duration, batch int) *Handoff {
	return &Handoff{DB: db, MaxAttempts: maxAttempts, Lease: lease, BatchSize: batch}
}

func (h *Handoff) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handoff) maxAttempts() int {
	if h.MaxAttempts <= 0 {
		return 5
	}
	return h.MaxAttempts
}

func (h *Handoff) lease() time.Duration {
	if h.Lease <= 0 {
		return 2 * time.Minute
	}
	return h.Lease
}

func (h *Handoff) batch() int {
	if h.BatchSize <= 0 {
		return 50
	}
	return h.BatchSize
}

// Enqueue durably records payload under name. It does not run anything.
func (h *Handoff) Enqueue(ctx context.Context, name string, payload any) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", name, err)
	}
	if _, err := repo.EnqueueJob(ctx, h.DB, name, b); err != nil {
		return fmt.Errorf("enqueue %s: %w", name, err)
	}
	jobsEnqueued.WithLabelValues(name).Inc()
	return nil
}

// Drain consumes pending payloads of name in FIFO order and returns how many
// were consumed. It stops at the first consumer failure so later payloads
// never overtake an earlier one; the failure is returned wrapped.
func (h *Handoff) Drain(ctx context.Context, name string, consume Consumer) (int, error) {
	tr := otel.Tracer("jobs/Handoff")
	ctx, span := tr.Start(ctx, "Drain", trace.WithAttributes(attribute.String("job.name", name)))
	defer span.End()

	if strings.TrimSpace(name) == "" {
		return 0, ErrEmptyName
	}

	done := 0
	for done < h.batch() {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		job, err := repo.ClaimNextJob(ctx, h.DB, name, h.lease(), h.now())
		if errors.Is(err, repo.ErrNotFound) || errors.Is(err, repo.ErrLeased) {
			break
		}
		if err != nil {
			span.RecordError(err)
			return done, fmt.Errorf("claim %s: %w", name, err)
		}

		if cerr := runConsumer(ctx, consume, json.RawMessage(job.Payload)); cerr != nil {
			jobsConsumed.WithLabelValues(name, "failed").Inc()
			failed, ferr := repo.FailJob(ctx, h.DB, job.Seq, cerr.Error(), h.maxAttempts(), h.now())
			if ferr != nil {
				return done, errors.Join(cerr, fmt.Errorf("record failure of %s #%d: %w", name, job.Seq, ferr))
			}
			if failed.Status == domain.JobDead {
				jobsConsumed.WithLabelValues(name, "dead").Inc()
			}
			span.RecordError(cerr)
			span.SetStatus(codes.Error, "consumer failed")
			return done, fmt.Errorf("job %s #%d (attempt %d): %w", name, job.Seq, failed.Attempts, cerr)
		}

		if err := repo.CompleteJob(ctx, h.DB, job.Seq); err != nil {
			return done, fmt.Errorf("complete %s #%d: %w", name, job.Seq, err)
		}
		jobsConsumed.WithLabelValues(name, "ok").Inc()
		done++
	}

	span.SetAttributes(attribute.Int("job.consumed", done))
	return done, nil
}

// runConsumer turns a consumer panic into an error so the payload survives.
func runConsumer(ctx context.Context, consume Consumer, payload json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("consumer panic: %v", r)
		}
	}()
	return consume(ctx, payload)
}
