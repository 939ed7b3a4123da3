package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mimir-aip/activelearn/pkg/config"
	"github.com/mimir-aip/activelearn/pkg/dataset"
	"github.com/mimir-aip/activelearn/pkg/experiment"
	"github.com/mimir-aip/activelearn/pkg/models"
)

// ScheduleStore is the persistence the scheduler needs
type ScheduleStore interface {
	SaveSchedule(schedule *models.Schedule) error
	GetSchedule(id string) (*models.Schedule, error)
	ListSchedules() ([]*models.Schedule, error)
	DeleteSchedule(id string) error
}

// Executor runs one experiment. *experiment.Runner satisfies it.
type Executor interface {
	Run(ctx context.Context, name string, pool *dataset.Pool, cfg models.ExperimentConfig) (*experiment.Result, error)
}

// PoolLoader resolves a schedule's dataset path into a pool
type PoolLoader func(path string, seed int64) (*dataset.Pool, error)

// CreateRequest describes a new schedule
type CreateRequest struct {
	Name         string                   `json:"name"`
	CronSchedule string                   `json:"cron_schedule"`
	DatasetPath  string                   `json:"dataset_path,omitempty"`
	Config       *models.ExperimentConfig `json:"config,omitempty"`
	Enabled      bool                     `json:"enabled"`
}

// Service re-runs experiments on cron schedules
type Service struct {
	store    ScheduleStore
	executor Executor
	loadPool PoolLoader
	logger   *zap.Logger
	cron     *cron.Cron

	mu   sync.Mutex
	jobs map[string]cron.EntryID // schedule id -> cron entry

	ctx    context.Context
	cancel context.CancelFunc
}

// NewService creates a scheduler. A nil loader uses LoadPool.
func NewService(store ScheduleStore, executor Executor, loader PoolLoader, logger *zap.Logger) *Service {
	if loader == nil {
		loader = LoadPool
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:    store,
		executor: executor,
		loadPool: loader,
		logger:   logger,
		cron:     cron.New(),
		jobs:     make(map[string]cron.EntryID),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// LoadPool reads a CSV pool from path, or generates the default synthetic
// pool from seed when path is empty
func LoadPool(path string, seed int64) (*dataset.Pool, error) {
	if path != "" {
		pool, _, err := dataset.LoadCSVFile(path)
		return pool, err
	}
	examples, _, err := dataset.Generate(dataset.DefaultGeneratorOptions(), dataset.NewRand(seed, 1))
	if err != nil {
		return nil, err
	}
	return dataset.NewPool(examples)
}

// Start schedules every enabled schedule and starts the cron loop
func (s *Service) Start() error {
	schedules, err := s.store.ListSchedules()
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	scheduled := 0
	for _, schedule := range schedules {
		if !schedule.Enabled {
			continue
		}
		if err := s.schedule(schedule); err != nil {
			s.logger.Warn("Failed to schedule experiment",
				zap.String("schedule_id", schedule.ID),
				zap.Error(err))
			continue
		}
		scheduled++
	}

	s.cron.Start()
	s.logger.Info("Experiment scheduler started", zap.Int("schedules", scheduled))
	return nil
}

// Stop stops the cron loop, cancels running experiments and waits for them
func (s *Service) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Experiment scheduler stopped")
}

// Create validates and stores a new schedule, registering it if enabled
func (s *Service) Create(req *CreateRequest) (*models.Schedule, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: schedule name is required", models.ErrConfiguration)
	}
	spec, err := cron.ParseStandard(req.CronSchedule)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cron expression: %v", models.ErrConfiguration, err)
	}

	cfg := models.DefaultExperimentConfig()
	if req.Config != nil {
		cfg = *req.Config
	}
	if err := config.ValidateExperimentConfig(cfg); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	schedule := &models.Schedule{
		ID:           uuid.New().String(),
		Name:         req.Name,
		CronSchedule: req.CronSchedule,
		DatasetPath:  req.DatasetPath,
		Config:       cfg,
		Enabled:      req.Enabled,
		CreatedAt:    now,
	}
	if schedule.Enabled {
		next := spec.Next(now)
		schedule.NextRun = &next
	}

	if err := s.store.SaveSchedule(schedule); err != nil {
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}

	if schedule.Enabled {
		if err := s.schedule(schedule); err != nil {
			return nil, err
		}
	}
	return schedule, nil
}

// Get retrieves a schedule by id
func (s *Service) Get(id string) (*models.Schedule, error) {
	return s.store.GetSchedule(id)
}

// List lists all schedules
func (s *Service) List() ([]*models.Schedule, error) {
	return s.store.ListSchedules()
}

// Delete unregisters and removes a schedule
func (s *Service) Delete(id string) error {
	s.unschedule(id)
	return s.store.DeleteSchedule(id)
}

// Trigger runs a schedule immediately, outside its cron cadence
func (s *Service) Trigger(ctx context.Context, id string) (*models.ExperimentRun, error) {
	schedule, err := s.store.GetSchedule(id)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, schedule)
}

// Scheduled reports whether a schedule is registered with the cron loop
func (s *Service) Scheduled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	return ok
}

func (s *Service) schedule(schedule *models.Schedule) error {
	spec, err := cron.ParseStandard(schedule.CronSchedule)
	if err != nil {
		return fmt.Errorf("%w: invalid cron expression: %v", models.ErrConfiguration, err)
	}

	id := schedule.ID
	entryID := s.cron.Schedule(spec, cron.FuncJob(func() {
		// Reload so runs see edits made since registration
		current, err := s.store.GetSchedule(id)
		if err != nil {
			s.logger.Warn("Scheduled experiment disappeared", zap.String("schedule_id", id), zap.Error(err))
			return
		}
		if _, err := s.execute(s.ctx, current); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("Scheduled experiment failed", zap.String("schedule_id", id), zap.Error(err))
		}
	}))

	s.mu.Lock()
	if old, ok := s.jobs[id]; ok {
		s.cron.Remove(old)
	}
	s.jobs[id] = entryID
	s.mu.Unlock()

	s.logger.Info("Scheduled experiment",
		zap.String("schedule_id", id),
		zap.String("name", schedule.Name),
		zap.String("cron", schedule.CronSchedule))
	return nil
}

func (s *Service) unschedule(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.jobs[id]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, id)
	}
}

func (s *Service) execute(ctx context.Context, schedule *models.Schedule) (*models.ExperimentRun, error) {
	logger := s.logger.With(zap.String("schedule_id", schedule.ID))
	logger.Info("Executing scheduled experiment", zap.String("name", schedule.Name))

	pool, err := s.loadPool(schedule.DatasetPath, schedule.Config.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to load pool for schedule %s: %w", schedule.Name, err)
	}

	result, runErr := s.executor.Run(ctx, schedule.Name, pool, schedule.Config)

	now := time.Now().UTC()
	schedule.LastRun = &now
	if spec, err := cron.ParseStandard(schedule.CronSchedule); err == nil && schedule.Enabled {
		next := spec.Next(now)
		schedule.NextRun = &next
	}
	var run *models.ExperimentRun
	if result != nil && result.Run != nil {
		run = result.Run
		schedule.LastRunID = run.ID
	}
	if err := s.store.SaveSchedule(schedule); err != nil {
		logger.Warn("Failed to update schedule after run", zap.Error(err))
	}

	if runErr != nil {
		return run, runErr
	}
	logger.Info("Scheduled experiment completed", zap.String("run_id", schedule.LastRunID))
	return run, nil
}
