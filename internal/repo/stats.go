// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries over the job
// queue used by the HTTP layer to report backlog per job name.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-slack-bot/internal/domain"
)

// QueueStats summarizes the backlog of one job name.
type QueueStats struct {
	Name          string     `json:"name"`
	Pending       int64      `json:"pending"`
	Dead          int64      `json:"dead"`
	OldestPending *time.Time `json:"oldest_pending,omitempty"`
}

// JobStats counts pending and dead jobs for name and reports the creation
// time of the oldest pending one (nil when the queue is empty).
func JobStats(ctx context.Context, db *gorm.DB, name string) (QueueStats, error) {
	st := QueueStats{Name: name}
	base := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.Job{}).Where("name = ?", name)
	}

	if err := base().Where("status = ?", domain.JobPending).Count(&st.Pending).Error; err != nil {
		return st, err
	}
	if err := base().Where("status = ?", domain.JobDead).Count(&st.Dead).Error; err != nil {
		return st, err
	}
	if st.Pending == 0 {
		return st, nil
	}

	// avoid MIN() -> TEXT in SQLite
	var row struct {
		CreatedAt time.Time
	}
	if err := base().Where("status = ?", domain.JobPending).
		Select("created_at").Order("seq ASC").Limit(1).Scan(&row).Error; err != nil {
		return st, err
	}
	st.OldestPending = &row.CreatedAt
	return st, nil
}
