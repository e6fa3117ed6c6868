// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the durable FIFO queue behind deferred
// jobs: enqueue, lease-based claiming, completion and failure bookkeeping.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-slack-bot/internal/domain"
)

// ErrLeased is returned by ClaimNextJob when the head of the queue is held by
// another drain. Skipping it would break FIFO order, so callers should stop.
var ErrLeased = errors.New("job leased by another drain")

// EnqueueJob durably records payload under name and returns the stored row.
func EnqueueJob(ctx context.Context, db *gorm.DB, name string, payload []byte) (*domain.Job, error) {
	now := time.Now().UTC()
	j := &domain.Job{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    domain.JobPending,
		Payload:   string(payload),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(j).Error; err != nil {
		return nil, err
	}
	return j, nil
}

// ClaimNextJob leases the oldest pending job for name until now+lease.
//
// Return values:
//   - the claimed job on success
//   - ErrNotFound when nothing is pending
//   - ErrLeased when the oldest pending job is leased by someone else
func ClaimNextJob(ctx context.Context, db *gorm.DB, name string, lease time.Duration, now time.Time) (*domain.Job, error) {
	now = now.UTC()
	var head domain.Job
	err := db.WithContext(ctx).
		Where("name = ? AND status = ?", name, domain.JobPending).
		Order("seq ASC").
		First(&head).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if head.LockedUntil != nil && head.LockedUntil.After(now) {
		return nil, ErrLeased
	}

	until := now.Add(lease)
	res := db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("seq = ? AND status = ? AND (locked_until IS NULL OR locked_until <= ?)", head.Seq, domain.JobPending, now).
		Updates(map[string]any{"locked_until": until, "updated_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race to a concurrent drain.
		return nil, ErrLeased
	}
	head.LockedUntil = &until
	head.UpdatedAt = now
	return &head, nil
}

// CompleteJob removes a consumed job.
func CompleteJob(ctx context.Context, db *gorm.DB, seq uint64) error {
	res := db.WithContext(ctx).Where("seq = ?", seq).Delete(&domain.Job{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FailJob records a failed attempt, releases the lease and parks the job as
// dead once maxAttempts is reached. The payload is always kept.
func FailJob(ctx context.Context, db *gorm.DB, seq uint64, cause string, maxAttempts int, now time.Time) (*domain.Job, error) {
	now = now.UTC()
	res := db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("seq = ?", seq).
		Updates(map[string]any{
			"attempts":     gorm.Expr("attempts + 1"),
			"status":       gorm.Expr("CASE WHEN attempts + 1 >= ? THEN ? ELSE status END", maxAttempts, domain.JobDead),
			"last_error":   cause,
			"locked_until": nil,
			"updated_at":   now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	var j domain.Job
	if err := db.WithContext(ctx).First(&j, "seq = ?", seq).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// ListJobs returns jobs for name in FIFO order, optionally filtered by status.
func ListJobs(ctx context.Context, db *gorm.DB, name, status string, limit int) ([]domain.Job, error) {
	var out []domain.Job
	q := db.WithContext(ctx).Where("name = ?", name).Order("seq ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// RequeueDeadJobs moves dead jobs for name back to pending with a fresh
// attempt budget and returns how many were requeued.
func RequeueDeadJobs(ctx context.Context, db *gorm.DB, name string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("name = ? AND status = ?", name, domain.JobDead).
		Updates(map[string]any{
			"status":       domain.JobPending,
			"attempts":     0,
			"locked_until": nil,
			"updated_at":   time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
