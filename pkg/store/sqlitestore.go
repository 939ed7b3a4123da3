package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mimir-aip/activelearn/pkg/models"
)

// SQLiteStore provides SQLite-based persistence for runs, schedules and
// cached results
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writes are serialized by SQLite anyway
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// retryOnBusy retries a write that failed because the database was locked
func (s *SQLiteStore) retryOnBusy(operation func() error, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}
		if strings.Contains(err.Error(), "SQLITE_BUSY") {
			// 10ms, 20ms, 40ms, ...
			time.Sleep(time.Duration(10*(1<<uint(i))) * time.Millisecond)
			continue
		}
		return err
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		pool_fingerprint TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		cron_schedule TEXT NOT NULL,
		enabled INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		last_run DATETIME,
		next_run DATETIME,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS result_cache (
		cache_key TEXT NOT NULL,
		artifact TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (cache_key, artifact)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun inserts or replaces a run
func (s *SQLiteStore) SaveRun(run *models.ExperimentRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO runs (id, name, status, pool_fingerprint, started_at, completed_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	err = s.retryOnBusy(func() error {
		_, execErr := s.db.Exec(query,
			run.ID,
			run.Name,
			string(run.Status),
			run.PoolFingerprint,
			run.StartedAt,
			run.CompletedAt,
			string(data),
		)
		return execErr
	}, 5)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id
func (s *SQLiteStore) GetRun(id string) (*models.ExperimentRun, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM runs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run models.ExperimentRun
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

// ListRuns lists runs, newest first. A non-positive limit lists all.
func (s *SQLiteStore) ListRuns(limit int) ([]*models.ExperimentRun, error) {
	query := `SELECT data FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*models.ExperimentRun, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}
		var run models.ExperimentRun
		if err := json.Unmarshal([]byte(data), &run); err != nil {
			continue
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// DeleteRun deletes a run
func (s *SQLiteStore) DeleteRun(id string) error {
	return s.deleteByID("runs", id)
}

// SaveSchedule inserts or replaces a schedule
func (s *SQLiteStore) SaveSchedule(schedule *models.Schedule) error {
	data, err := json.Marshal(schedule)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}

	enabled := 0
	if schedule.Enabled {
		enabled = 1
	}

	query := `
		INSERT OR REPLACE INTO schedules (id, name, cron_schedule, enabled, created_at, last_run, next_run, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	// Scheduled runs save concurrently with API writes
	err = s.retryOnBusy(func() error {
		_, execErr := s.db.Exec(query,
			schedule.ID,
			schedule.Name,
			schedule.CronSchedule,
			enabled,
			schedule.CreatedAt,
			schedule.LastRun,
			schedule.NextRun,
			string(data),
		)
		return execErr
	}, 5)
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}

// GetSchedule retrieves a schedule by id
func (s *SQLiteStore) GetSchedule(id string) (*models.Schedule, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM schedules WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}

	var schedule models.Schedule
	if err := json.Unmarshal([]byte(data), &schedule); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
	}
	return &schedule, nil
}

// ListSchedules lists all schedules, newest first
func (s *SQLiteStore) ListSchedules() ([]*models.Schedule, error) {
	rows, err := s.db.Query(`SELECT data FROM schedules ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	schedules := make([]*models.Schedule, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}
		var schedule models.Schedule
		if err := json.Unmarshal([]byte(data), &schedule); err != nil {
			continue
		}
		schedules = append(schedules, &schedule)
	}
	return schedules, rows.Err()
}

// DeleteSchedule deletes a schedule
func (s *SQLiteStore) DeleteSchedule(id string) error {
	return s.deleteByID("schedules", id)
}

func (s *SQLiteStore) deleteByID(table, id string) error {
	res, err := s.db.Exec(`DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s: %w", strings.TrimSuffix(table, "s"), id, ErrNotFound)
	}
	return nil
}

// GetBaseline returns a cached baseline result
func (s *SQLiteStore) GetBaseline(key string) (*models.BaselineResult, bool, error) {
	var result models.BaselineResult
	ok, err := s.getCached(key, "baseline", &result)
	if !ok || err != nil {
		return nil, false, err
	}
	return &result, true, nil
}

// PutBaseline caches a baseline result
func (s *SQLiteStore) PutBaseline(key string, result *models.BaselineResult) error {
	return s.putCached(key, "baseline", result)
}

// GetFullModel returns a cached full-data model record
func (s *SQLiteStore) GetFullModel(key string) (*models.PerformanceRecord, bool, error) {
	var record models.PerformanceRecord
	ok, err := s.getCached(key, "full_model", &record)
	if !ok || err != nil {
		return nil, false, err
	}
	return &record, true, nil
}

// PutFullModel caches a full-data model record
func (s *SQLiteStore) PutFullModel(key string, record *models.PerformanceRecord) error {
	return s.putCached(key, "full_model", record)
}

func (s *SQLiteStore) getCached(key, artifact string, out any) (bool, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM result_cache WHERE cache_key = ? AND artifact = ?`, key, artifact).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cached %s: %w", artifact, err)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached %s: %w", artifact, err)
	}
	return true, nil
}

func (s *SQLiteStore) putCached(key, artifact string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", artifact, err)
	}
	query := `
		INSERT OR REPLACE INTO result_cache (cache_key, artifact, created_at, data)
		VALUES (?, ?, ?, ?)
	`
	err = s.retryOnBusy(func() error {
		_, execErr := s.db.Exec(query, key, artifact, time.Now().UTC(), string(data))
		return execErr
	}, 5)
	if err != nil {
		return fmt.Errorf("failed to cache %s: %w", artifact, err)
	}
	return nil
}
