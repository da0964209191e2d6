// Package jobs runs initial analyses out of band: the API records a job and
// publishes its id, a worker picks it up and stores the generated text.
package jobs

import (
	"time"

	"gorm.io/datatypes"

	"github.com/hanzhi-dmd/companion/internal/content"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

type AnalysisJob struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	Username string       `gorm:"type:varchar(64);not null;index:uniq_job_idempo,unique,priority:1" json:"username"`
	Kind     content.Kind `gorm:"type:varchar(16);not null" json:"kind"`
	EntityID string       `gorm:"type:varchar(128);index" json:"entityId"`

	Entity  datatypes.JSON `gorm:"not null" json:"entity"`
	Profile datatypes.JSON `gorm:"not null" json:"profile"`
	Locale  string         `gorm:"type:varchar(8);not null" json:"locale"`

	Provider string `gorm:"type:varchar(32);not null" json:"provider"`
	Model    string `gorm:"type:varchar(64)" json:"model,omitempty"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_job_idempo,unique,priority:2" json:"-"`

	Status Status `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	Result *string `gorm:"type:text" json:"result,omitempty"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (AnalysisJob) TableName() string { return "analysis_jobs" }

func (j *AnalysisJob) Done() bool {
	return j.Status == StatusSucceeded || j.Status == StatusFailed
}
