package activelearning

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/mimir-aip/activelearn/pkg/dataset"
	"github.com/mimir-aip/activelearn/pkg/evaluation"
	"github.com/mimir-aip/activelearn/pkg/mlmodel"
	"github.com/mimir-aip/activelearn/pkg/models"
	"github.com/mimir-aip/activelearn/pkg/observability"
)

// Phase is the controller's position in its lifecycle
type Phase string

const (
	PhaseInitialized Phase = "initialized"
	PhaseIterating   Phase = "iterating"
	PhaseComplete    Phase = "complete"
)

// ErrComplete is returned by Step once all rounds have run
var ErrComplete = errors.New("active learning run is complete")

// Evaluator scores a trained model against the fixed test set
type Evaluator interface {
	Evaluate(model mlmodel.Model, test []models.Example) (*evaluation.Evaluation, error)
}

// IterationResult is the outcome of one round of the loop. It is not
// modified after Step returns it.
type IterationResult struct {
	Iteration    int
	Model        mlmodel.Model
	Evaluation   *evaluation.Evaluation
	Selected     []models.Example
	TrainingSize int // size of the set Model was trained on
}

// Record returns the persisted form of the result
func (r IterationResult) Record() models.IterationRecord {
	return models.IterationRecord{
		Iteration:    r.Iteration,
		TrainingSize: r.TrainingSize,
		SelectedIDs:  models.IDs(r.Selected),
		Performance:  r.Evaluation.Record(r.TrainingSize),
	}
}

// Options configures a Controller
type Options struct {
	Trainer       mlmodel.Trainer
	Evaluator     Evaluator
	Selector      *CaseSelector
	Oracle        dataset.Oracle
	NumIterations int
	Logger        *zap.Logger
	Metrics       *observability.Metrics
}

// Controller runs the train, select, reveal, append loop. It owns the
// training-set state exclusively; callers read copies.
type Controller struct {
	opts      Options
	logger    *zap.Logger
	test      []models.Example
	unlabeled []models.Example
	rng       *rand.Rand

	phase     Phase
	state     State
	iteration int
	table     []models.PerformanceRecord
	history   []IterationResult
}

// NewController prepares a run from the initial training set. rng is
// consumed in a fixed order: presample then weighted draw, once per round.
func NewController(opts Options, initial, test, unlabeled []models.Example, rng *rand.Rand) (*Controller, error) {
	if opts.Trainer == nil || opts.Evaluator == nil || opts.Selector == nil || opts.Oracle == nil {
		return nil, fmt.Errorf("%w: controller needs a trainer, evaluator, selector and oracle", models.ErrConfiguration)
	}
	if opts.NumIterations < 0 {
		return nil, fmt.Errorf("%w: num_iterations must be non-negative, got %d", models.ErrConfiguration, opts.NumIterations)
	}
	state, err := NewState(initial)
	if err != nil {
		return nil, models.NewStepError(models.StepInitialSampling, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		opts:      opts,
		logger:    logger,
		test:      test,
		unlabeled: unlabeled,
		rng:       rng,
		phase:     PhaseInitialized,
		state:     state,
	}, nil
}

// Run steps until the controller is complete
func (c *Controller) Run(ctx context.Context) error {
	for c.phase != PhaseComplete {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.Step(); err != nil {
			return err
		}
	}
	c.logger.Info("Active learning complete",
		zap.Int("iterations", len(c.history)),
		zap.Int("training_size", c.state.Size()))
	return nil
}

// Step performs one round. From PhaseInitialized it runs the initial
// model's selection round, which adds a performance row but no
// IterationResult. From PhaseIterating it runs the next loop iteration.
func (c *Controller) Step() (*IterationResult, error) {
	switch c.phase {
	case PhaseComplete:
		return nil, ErrComplete
	case PhaseInitialized:
		if _, err := c.round(0); err != nil {
			return nil, models.NewIndexedStepError(models.StepIteration, 0, err)
		}
		c.advance()
		return nil, nil
	}

	c.iteration++
	result, err := c.round(c.iteration)
	if err != nil {
		return nil, models.NewIndexedStepError(models.StepIteration, c.iteration, err)
	}
	c.history = append(c.history, *result)
	c.advance()
	return result, nil
}

func (c *Controller) advance() {
	if c.iteration >= c.opts.NumIterations {
		c.phase = PhaseComplete
	} else {
		c.phase = PhaseIterating
	}
}

// round trains on the current set, evaluates, selects and appends a batch
func (c *Controller) round(iteration int) (*IterationResult, error) {
	log := c.logger.With(zap.Int("iteration", iteration), zap.Int("training_size", c.state.Size()))

	start := time.Now()
	model, err := c.opts.Trainer.Fit(c.state.TrainingSet())
	if err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}
	c.opts.Metrics.ObserveTraining("active", time.Since(start).Seconds())

	eval, err := c.opts.Evaluator.Evaluate(model, c.test)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	candidates := c.state.Candidates(c.unlabeled)
	picked, err := c.opts.Selector.Select(model, candidates, c.rng)
	if err != nil {
		return nil, fmt.Errorf("selection failed: %w", err)
	}
	selected, err := c.opts.Oracle.Reveal(picked)
	if err != nil {
		return nil, fmt.Errorf("label reveal failed: %w", err)
	}

	trainedOn := c.state.Size()
	next, err := c.state.Append(selected)
	if err != nil {
		return nil, err
	}
	c.state = next
	c.table = append(c.table, eval.Record(trainedOn))
	c.opts.Metrics.ObserveIteration(len(selected), eval.Metrics)

	log.Debug("Round complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(selected)),
		zap.Any("metrics", eval.Metrics))

	return &IterationResult{
		Iteration:    iteration,
		Model:        model,
		Evaluation:   eval,
		Selected:     selected,
		TrainingSize: trainedOn,
	}, nil
}

// Phase returns the current lifecycle phase
func (c *Controller) Phase() Phase {
	return c.phase
}

// History returns the loop iteration results in order
func (c *Controller) History() []IterationResult {
	return append([]IterationResult(nil), c.history...)
}

// PerformanceTable returns one record per evaluated model, initial first
func (c *Controller) PerformanceTable() []models.PerformanceRecord {
	return append([]models.PerformanceRecord(nil), c.table...)
}

// State returns the current training-set state
func (c *Controller) State() State {
	return c.state
}
