package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-slack-bot/internal/domain"
)

func TestMarkEventSeen_FirstThenDuplicate(t *testing.T) {
	db := newTestDB(t, &domain.DedupRecord{})
	ctx := context.Background()
	now := time.Now().UTC()

	rec, err := MarkEventSeen(ctx, db, "Ev1", "event_callback", time.Hour, now)
	if err != nil || rec == nil {
		t.Fatalf("first sighting: rec=%v err=%v", rec, err)
	}
	if !rec.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", rec.ExpiresAt)
	}

	if _, err := MarkEventSeen(ctx, db, "Ev1", "event_callback", time.Hour, now.Add(time.Minute)); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestMarkEventSeen_ExpiredRecordCanBeRecordedAgain(t *testing.T) {
	db := newTestDB(t, &domain.DedupRecord{})
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := MarkEventSeen(ctx, db, "Ev1", "event_callback", time.Minute, now); err != nil {
		t.Fatalf("first: %v", err)
	}
	later := now.Add(2 * time.Minute)
	if _, err := MarkEventSeen(ctx, db, "Ev1", "event_callback", time.Minute, later); err != nil {
		t.Fatalf("expected expired record to be replaced, got %v", err)
	}
}

func TestMarkEventSeen_EmptyID(t *testing.T) {
	db := newTestDB(t, &domain.DedupRecord{})
	if _, err := MarkEventSeen(context.Background(), db, "  ", "event_callback", time.Hour, time.Now()); err == nil {
		t.Fatalf("expected error for empty event id")
	}
}

func TestMarkEventSeen_ConcurrentDeliveriesOnlyOneWins(t *testing.T) {
	db := newTestDB(t, &domain.DedupRecord{})
	// Shared-cache SQLite reports table locks instead of waiting; serialize
	// statements while the goroutines still interleave.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	ctx := context.Background()
	now := time.Now().UTC()

	const n = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		dupes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := MarkEventSeen(ctx, db, "EvRace", "event_callback", time.Hour, now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrDuplicate):
				dupes++
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one first sighting, got %d (dupes=%d)", wins, dupes)
	}
}

func TestPurgeExpiredDedup(t *testing.T) {
	db := newTestDB(t, &domain.DedupRecord{})
	ctx := context.Background()
	now := time.Now().UTC()

	_, _ = MarkEventSeen(ctx, db, "old", "event_callback", time.Minute, now.Add(-time.Hour))
	_, _ = MarkEventSeen(ctx, db, "new", "event_callback", time.Hour, now)

	n, err := PurgeExpiredDedup(ctx, db, now)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 purged row, got n=%d err=%v", n, err)
	}
	var ids []string
	if err := db.Model(&domain.DedupRecord{}).Pluck("event_id", &ids).Error; err != nil {
		t.Fatalf("pluck: %v", err)
	}
	if len(ids) != 1 || ids[0] != "new" {
		t.Fatalf("live record should survive purge, got %v", ids)
	}
	if _, err := MarkEventSeen(ctx, db, "new", "event_callback", time.Hour, now); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for surviving record, got %v", err)
	}
}
