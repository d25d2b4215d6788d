package jobhealth

import (
	"time"

	"gorm.io/datatypes"
)

const (
	JobWebhookRetry    = "webhook_retry"
	JobReauthorization = "reauthorization"
)

// Record is the rolling status of one background job.
type Record struct {
	JobName        string         `json:"job_name"`
	TotalRuns      int64          `json:"total_runs"`
	TotalFailures  int64          `json:"total_failures"`
	LastRunAt      *time.Time     `json:"last_run_at,omitempty"`
	LastDurationMs int64          `json:"last_duration_ms"`
	LastStats      datatypes.JSON `json:"last_stats,omitempty"`
	LastSuccess    bool           `json:"last_success"`
	LastSuccessAt  *time.Time     `json:"last_success_at,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Run is one cycle's outcome.
type Run struct {
	Job      string
	RanAt    time.Time
	Duration time.Duration
	Stats    any
	Success  bool
	Err      error
}
