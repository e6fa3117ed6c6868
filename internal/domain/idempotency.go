// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository, queue and service layers.
package domain

import "time"

// DedupRecord remembers a Slack delivery that has already been dispatched,
// keyed by its event identifier (event_id for Events API callbacks,
// trigger_id for interactivity payloads). The primary key makes the first
// insert win, so two concurrent deliveries of the same event cannot both be
// classified as a first sighting. Rows are never updated; they expire after
// the configured retention window.
type DedupRecord struct {
	EventID   string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Kind      string    `gorm:"type:TEXT NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (DedupRecord) TableName() string { return "slack_events" }
