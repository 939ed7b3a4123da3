package models

import "time"

// Schedule re-runs an experiment on a cron expression
type Schedule struct {
	ID           string           `json:"id" yaml:"-"`
	Name         string           `json:"name" yaml:"name"`
	CronSchedule string           `json:"cron_schedule" yaml:"cron_schedule"`
	DatasetPath  string           `json:"dataset_path,omitempty" yaml:"dataset_path,omitempty"` // empty uses the synthetic pool
	Config       ExperimentConfig `json:"config" yaml:"config"`
	Enabled      bool             `json:"enabled" yaml:"enabled"`
	CreatedAt    time.Time        `json:"created_at" yaml:"-"`
	LastRun      *time.Time       `json:"last_run,omitempty" yaml:"-"`
	NextRun      *time.Time       `json:"next_run,omitempty" yaml:"-"`
	LastRunID    string           `json:"last_run_id,omitempty" yaml:"-"`
}
