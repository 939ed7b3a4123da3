package store

import (
	"errors"

	"github.com/mimir-aip/activelearn/pkg/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// Store is the interface for experiment persistence: finished runs,
// schedules, and the result cache that lets repeated runs skip the
// baseline and full-data model.
type Store interface {
	// Run operations
	SaveRun(run *models.ExperimentRun) error
	GetRun(id string) (*models.ExperimentRun, error)
	ListRuns(limit int) ([]*models.ExperimentRun, error)
	DeleteRun(id string) error

	// Schedule operations
	SaveSchedule(schedule *models.Schedule) error
	GetSchedule(id string) (*models.Schedule, error)
	ListSchedules() ([]*models.Schedule, error)
	DeleteSchedule(id string) error

	// Result cache operations
	GetBaseline(key string) (*models.BaselineResult, bool, error)
	PutBaseline(key string, result *models.BaselineResult) error
	GetFullModel(key string) (*models.PerformanceRecord, bool, error)
	PutFullModel(key string, record *models.PerformanceRecord) error

	Close() error
}
