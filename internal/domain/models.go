package domain

import "time"

// Job states. A job is pending until a consumer succeeds (the row is then
// deleted) or until it exhausts its attempts and is parked as dead.
const (
	JobPending = "pending"
	JobDead    = "dead"
)

// Job is a durably recorded unit of deferred work.
//
// Fields:
//   - Seq: autoincrement sequence; defines FIFO order within a job name.
//   - ID: stable UUID used in logs and traces.
//   - Name: consumer name the payload was enqueued under (e.g. "reply_talk").
//   - Status: pending or dead.
//   - Payload: JSON document handed to the consumer verbatim.
//   - Attempts / LastError: failure bookkeeping for at-least-once redelivery.
//   - LockedUntil: lease held by the drain that claimed the job, if any.
type Job struct {
	Seq         uint64     `json:"seq"          gorm:"primaryKey;autoIncrement"`
	ID          string     `json:"id"           gorm:"type:char(36);not null;uniqueIndex"`
	Name        string     `json:"name"         gorm:"type:varchar(64);not null;index:idx_jobs_name_status,priority:1"`
	Status      string     `json:"status"       gorm:"type:varchar(16);not null;index:idx_jobs_name_status,priority:2;check:status IN ('pending','dead')"`
	Payload     string     `json:"payload"      gorm:"type:text;not null"`
	Attempts    int        `json:"attempts"     gorm:"not null"`
	LastError   string     `json:"last_error"   gorm:"type:text"`
	LockedUntil *time.Time `json:"locked_until"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Job.
func (Job) TableName() string { return "deferred_jobs" }

// Property scopes.
const (
	ScopeApp  = "app"
	ScopeUser = "user"
)

// Property is one entry of the scoped key-value store. App-wide entries use
// an empty Owner; per-user entries use the Slack user id as Owner.
type Property struct {
	Scope     string    `gorm:"type:varchar(8);primaryKey;check:scope IN ('app','user')"`
	Owner     string    `gorm:"type:varchar(64);primaryKey"`
	Key       string    `gorm:"type:varchar(128);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for Property.
func (Property) TableName() string { return "properties" }
