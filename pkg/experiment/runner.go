// Package experiment wires the partitioner, the active-learning loop, the
// passive baselines and the significance test into a single reproducible
// run.
//
// All randomness comes from one stream seeded by ExperimentConfig.Seed and
// consumed in a fixed order: partition, initial stratified sample, the
// presample and weighted draw of every round, then the seeds of the
// baseline groups and of the Monte Carlo trials.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mimir-aip/activelearn/pkg/activelearning"
	"github.com/mimir-aip/activelearn/pkg/baseline"
	"github.com/mimir-aip/activelearn/pkg/config"
	"github.com/mimir-aip/activelearn/pkg/dataset"
	"github.com/mimir-aip/activelearn/pkg/evaluation"
	"github.com/mimir-aip/activelearn/pkg/mlmodel"
	"github.com/mimir-aip/activelearn/pkg/models"
	"github.com/mimir-aip/activelearn/pkg/observability"
	"github.com/mimir-aip/activelearn/pkg/significance"
)

// Runner executes experiments
type Runner struct {
	logger           *zap.Logger
	metrics          *observability.Metrics
	cache            ResultCache
	recorder         RunRecorder
	trainer          mlmodel.Trainer
	skipBaseline     bool
	skipSignificance bool
	now              func() time.Time
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithMetrics sets the Prometheus collector
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithCache reuses baseline and full-model results across runs
func WithCache(cache ResultCache) Option {
	return func(r *Runner) { r.cache = cache }
}

// WithRecorder persists every finished run, failed ones included
func WithRecorder(recorder RunRecorder) Option {
	return func(r *Runner) { r.recorder = recorder }
}

// WithTrainer overrides the trainer selected by ExperimentConfig.Model
func WithTrainer(trainer mlmodel.Trainer) Option {
	return func(r *Runner) { r.trainer = trainer }
}

// WithoutBaseline skips the passive baseline and full-data model
func WithoutBaseline() Option {
	return func(r *Runner) { r.skipBaseline = true }
}

// WithoutSignificance skips the Monte Carlo test
func WithoutSignificance() Option {
	return func(r *Runner) { r.skipSignificance = true }
}

// NewRunner creates a runner
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is a finished run plus the in-memory artifacts that are not
// persisted, such as trained models
type Result struct {
	Run              *models.ExperimentRun
	History          []activelearning.IterationResult
	FinalTrainingSet []models.Example
}

// Run executes one experiment on pool. On failure the returned run, if any,
// carries status failed and the error message.
func (r *Runner) Run(ctx context.Context, name string, pool *dataset.Pool, cfg models.ExperimentConfig) (*Result, error) {
	run := &models.ExperimentRun{
		ID:              uuid.New().String(),
		Name:            name,
		Status:          models.RunStatusRunning,
		Config:          cfg,
		PoolFingerprint: pool.Fingerprint(),
		PoolSize:        pool.Len(),
		StartedAt:       r.now(),
	}
	logger := r.logger.With(zap.String("run_id", run.ID))
	logger.Info("Starting experiment",
		zap.String("name", name),
		zap.Int("pool_size", pool.Len()),
		zap.Int64("seed", cfg.Seed),
		zap.String("model", string(cfg.Model)))

	result, err := r.execute(ctx, logger, run, pool, cfg)
	completed := r.now()
	run.CompletedAt = &completed
	if err != nil {
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		logger.Error("Experiment failed", zap.Error(err))
	} else {
		run.Status = models.RunStatusCompleted
		logger.Info("Experiment completed",
			zap.Int("iterations", len(run.Iterations)),
			zap.Int("final_training_size", len(run.FinalTrainingIDs)),
			zap.Duration("duration", completed.Sub(run.StartedAt)))
	}
	r.metrics.ObserveRun(string(run.Status))

	if r.recorder != nil {
		if saveErr := r.recorder.SaveRun(run); saveErr != nil {
			logger.Warn("Failed to save run", zap.Error(saveErr))
			if err == nil {
				err = fmt.Errorf("failed to save run: %w", saveErr)
			}
		}
	}
	if result == nil {
		result = &Result{}
	}
	result.Run = run
	return result, err
}

func (r *Runner) execute(ctx context.Context, logger *zap.Logger, run *models.ExperimentRun, pool *dataset.Pool, cfg models.ExperimentConfig) (*Result, error) {
	if err := config.ValidateExperimentConfig(cfg); err != nil {
		return nil, models.NewStepError(models.StepConfiguration, err)
	}

	trainer := r.trainer
	if trainer == nil {
		var err error
		trainer, err = mlmodel.NewTrainerFactory(uint64(cfg.Seed)).GetTrainer(cfg.Model)
		if err != nil {
			return nil, models.NewStepError(models.StepConfiguration, err)
		}
	}
	evaluator, err := evaluation.NewEvaluator(cfg.Metrics, cfg.DecisionThreshold)
	if err != nil {
		return nil, models.NewStepError(models.StepConfiguration, err)
	}
	scorer, err := activelearning.NewGaussianScorer(cfg.Mu, cfg.Sigma)
	if err != nil {
		return nil, models.NewStepError(models.StepConfiguration, err)
	}
	selector, err := activelearning.NewCaseSelector(scorer, cfg.ExamplesToLabelPerIteration, cfg.PresampleSize)
	if err != nil {
		return nil, models.NewStepError(models.StepConfiguration, err)
	}

	rng := dataset.NewRand(cfg.Seed, 0)

	test, unlabeled, err := dataset.Partition(pool, cfg.TestSetSize, rng)
	if err != nil {
		return nil, models.NewStepError(models.StepPartition, err)
	}
	initial, err := dataset.StratifiedInitialSet(pool, cfg.InitialExamplesPerClass, rng)
	if err != nil {
		return nil, models.NewStepError(models.StepInitialSampling, err)
	}
	logger.Debug("Data partitioned",
		zap.Int("test_size", len(test)),
		zap.Int("unlabeled_size", len(unlabeled)),
		zap.Int("initial_size", len(initial)))

	controller, err := activelearning.NewController(activelearning.Options{
		Trainer:       trainer,
		Evaluator:     evaluator,
		Selector:      selector,
		Oracle:        dataset.NewLookupOracle(pool),
		NumIterations: cfg.NumIterations,
		Logger:        logger,
		Metrics:       r.metrics,
	}, initial, test, unlabeled, rng)
	if err != nil {
		return nil, err
	}
	if err := controller.Run(ctx); err != nil {
		return nil, err
	}

	history := controller.History()
	state := controller.State()
	run.PerformanceTable = controller.PerformanceTable()
	run.Iterations = make([]models.IterationRecord, len(history))
	for i, h := range history {
		run.Iterations[i] = h.Record()
	}
	run.FinalTrainingIDs = models.IDs(state.TrainingSet())
	result := &Result{History: history, FinalTrainingSet: state.TrainingSet()}

	baselineSeeds := dataset.DeriveSeeds(rng, cfg.GroupCount)
	trialSeeds := dataset.DeriveSeeds(rng, cfg.MonteCarloSamples)

	if !r.skipBaseline {
		gen := &baseline.Generator{
			Trainer:   trainer,
			Evaluator: evaluator,
			Metrics:   cfg.Metrics,
			Workers:   cfg.Workers,
			Logger:    logger,
			Observer:  r.metrics,
		}
		run.Baseline, err = r.baseline(ctx, gen, run, cfg, initial, unlabeled, test, baselineSeeds)
		if err != nil {
			return result, err
		}
		run.FullModel, err = r.fullModel(gen, run, cfg, unlabeled, test)
		if err != nil {
			return result, err
		}
	}

	if !r.skipSignificance {
		last := run.PerformanceTable[len(run.PerformanceTable)-1]
		tester := &significance.Tester{
			Trainer:   trainer,
			Evaluator: evaluator,
			Workers:   cfg.Workers,
			Logger:    logger,
			Observer:  r.metrics,
		}
		run.Significance, err = tester.Test(ctx, initial, unlabeled, test,
			last.TrainingSize-len(initial), last.Metrics, trialSeeds)
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

// baseline returns the cached baseline for this configuration or computes it
func (r *Runner) baseline(ctx context.Context, gen *baseline.Generator, run *models.ExperimentRun, cfg models.ExperimentConfig, initial, unlabeled, test []models.Example, seeds []int64) (*models.BaselineResult, error) {
	key := CacheKey(ArtifactBaseline, run.PoolFingerprint, cfg)
	if r.cache != nil {
		cached, ok, err := r.cache.GetBaseline(key)
		if err != nil {
			r.logger.Warn("Baseline cache lookup failed", zap.Error(err))
		}
		r.metrics.ObserveCacheLookup(ArtifactBaseline, ok)
		if ok {
			r.logger.Info("Using cached baseline", zap.String("key", key))
			return cached, nil
		}
	}

	targetSizes := make([]int, len(run.PerformanceTable))
	for i, record := range run.PerformanceTable {
		targetSizes[i] = record.TrainingSize
	}
	result, err := gen.RunRandomBaseline(ctx, initial, unlabeled, test, targetSizes, seeds)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if err := r.cache.PutBaseline(key, result); err != nil {
			r.logger.Warn("Failed to cache baseline", zap.Error(err))
		}
	}
	return result, nil
}

// fullModel returns the cached full-data result or computes it
func (r *Runner) fullModel(gen *baseline.Generator, run *models.ExperimentRun, cfg models.ExperimentConfig, unlabeled, test []models.Example) (*models.PerformanceRecord, error) {
	key := CacheKey(ArtifactFullModel, run.PoolFingerprint, cfg)
	if r.cache != nil {
		cached, ok, err := r.cache.GetFullModel(key)
		if err != nil {
			r.logger.Warn("Full-model cache lookup failed", zap.Error(err))
		}
		r.metrics.ObserveCacheLookup(ArtifactFullModel, ok)
		if ok {
			r.logger.Info("Using cached full-data model", zap.String("key", key))
			return cached, nil
		}
	}

	record, err := gen.FullModel(unlabeled, test)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if err := r.cache.PutFullModel(key, record); err != nil {
			r.logger.Warn("Failed to cache full-data model", zap.Error(err))
		}
	}
	return record, nil
}

// IsUserError reports whether err comes from bad configuration or data
// rather than from a failing component
func IsUserError(err error) bool {
	return errors.Is(err, models.ErrConfiguration) ||
		errors.Is(err, models.ErrInvalidBatchSize) ||
		errors.Is(err, models.ErrInsufficientData)
}
