package jobhealth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Record folds one run into the job's rolling status.
func (s *Store) Record(ctx context.Context, run Run) error {
	if s == nil || s.db == nil {
		return errors.New("job_health_unavailable")
	}
	job := strings.TrimSpace(run.Job)
	if job == "" {
		return errors.New("missing_job_name")
	}

	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return err
	}
	var lastError string
	if run.Err != nil {
		lastError = run.Err.Error()
	}
	failures := 0
	if !run.Success {
		failures = 1
	}
	ranAt := run.RanAt.UTC()
	var lastSuccessAt *time.Time
	if run.Success {
		lastSuccessAt = &ranAt
	}

	return s.db.WithContext(ctx).Exec(
		`INSERT INTO job_health (job_name, total_runs, total_failures, last_run_at, last_duration_ms, last_stats, last_success, last_success_at, last_error, updated_at)
		 VALUES (?, 1, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (job_name) DO UPDATE SET
			total_runs = job_health.total_runs + 1,
			total_failures = job_health.total_failures + excluded.total_failures,
			last_run_at = excluded.last_run_at,
			last_duration_ms = excluded.last_duration_ms,
			last_stats = excluded.last_stats,
			last_success = excluded.last_success,
			last_success_at = COALESCE(excluded.last_success_at, job_health.last_success_at),
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		job,
		failures,
		ranAt,
		run.Duration.Milliseconds(),
		datatypes.JSON(stats),
		run.Success,
		lastSuccessAt,
		lastError,
		ranAt,
	).Error
}

func (s *Store) Get(ctx context.Context, job string) (*Record, error) {
	var records []Record
	err := s.db.WithContext(ctx).Raw(
		`SELECT job_name, total_runs, total_failures, last_run_at, last_duration_ms, last_stats, last_success, last_success_at, last_error, updated_at
		 FROM job_health WHERE job_name = ?`,
		job,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (s *Store) List(ctx context.Context) ([]Record, error) {
	var records []Record
	err := s.db.WithContext(ctx).Raw(
		`SELECT job_name, total_runs, total_failures, last_run_at, last_duration_ms, last_stats, last_success, last_success_at, last_error, updated_at
		 FROM job_health ORDER BY job_name`,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
