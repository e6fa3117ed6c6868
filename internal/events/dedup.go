package events

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-slack-bot/internal/repo"
)

// StoreDedup keeps dedup records in the slack_events table. The insert
// relies on the primary key, so concurrent first sightings of one key
// cannot both succeed.
type StoreDedup struct {
	DB  *gorm.DB
	TTL time.Duration
	Now func() time.Time
}

// MarkSeen implements Deduper.
func (s *StoreDedup) MarkSeen(ctx context.Context, key, kind string) error {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	_, err := repo.MarkEventSeen(ctx, s.DB, key, kind, s.TTL, now)
	if errors.Is(err, repo.ErrDuplicate) {
		return ErrDuplicateDelivery
	}
	return err
}
