// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the dedup ledger for Slack deliveries:
// every event id is recorded once per retention window, before its handler
// runs.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-slack-bot/internal/domain"
)

// MarkEventSeen records eventID as dispatched and returns ErrDuplicate when a
// live record already exists. A record whose window has elapsed is purged
// first so the id can be recorded again. The insert relies on the primary
// key, so concurrent callers cannot both succeed.
func MarkEventSeen(ctx context.Context, db *gorm.DB, eventID, kind string, ttl time.Duration, now time.Time) (*domain.DedupRecord, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, errors.New("event id is empty")
	}
	now = now.UTC()

	if err := db.WithContext(ctx).
		Where("event_id = ? AND expires_at <= ?", eventID, now).
		Delete(&domain.DedupRecord{}).Error; err != nil {
		return nil, err
	}

	rec := &domain.DedupRecord{
		EventID:   eventID,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredDedup deletes every record whose window has elapsed and returns
// the number of rows removed.
func PurgeExpiredDedup(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&domain.DedupRecord{})
	return res.RowsAffected, res.Error
}
