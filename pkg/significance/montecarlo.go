package significance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mimir-aip/activelearn/pkg/activelearning"
	"github.com/mimir-aip/activelearn/pkg/dataset"
	"github.com/mimir-aip/activelearn/pkg/mlmodel"
	"github.com/mimir-aip/activelearn/pkg/models"
	"github.com/mimir-aip/activelearn/pkg/observability"
)

// Tester estimates how often random selection of a matched size does at
// least as well as active selection
type Tester struct {
	Trainer   mlmodel.Trainer
	Evaluator activelearning.Evaluator
	Workers   int
	Logger    *zap.Logger
	Observer  *observability.Metrics
}

// Test runs one trial per seed. Each trial trains on initial plus
// batchSize examples drawn uniformly from pool, excluding only initial ids,
// and is evaluated on test. The p-value of a metric is the fraction of
// trials scoring at least target[metric].
func (m *Tester) Test(ctx context.Context, initial, pool, test []models.Example, batchSize int, target map[string]float64, seeds []int64) (*models.SignificanceResult, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: at least one Monte Carlo trial is required", models.ErrConfiguration)
	}
	candidates := dataset.Exclude(pool, dataset.IDSet(initial))
	if batchSize < 0 || batchSize > len(candidates) {
		return nil, fmt.Errorf("%w: cannot draw %d of %d candidates", models.ErrInsufficientData, batchSize, len(candidates))
	}
	logger := m.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	trials := make([]map[string]float64, len(seeds))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(1, m.Workers))
	for i, seed := range seeds {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			metrics, err := m.trial(initial, candidates, test, batchSize, seed)
			if err != nil {
				return models.NewIndexedStepError(models.StepMonteCarloTrial, i, err)
			}
			trials[i] = metrics
			m.Observer.ObserveTrial()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	pValues := make(map[string]float64, len(target))
	for name, observed := range target {
		values := make([]float64, len(trials))
		for i, trial := range trials {
			values[i] = trial[name]
		}
		pValues[name] = PValue(values, observed)
	}

	logger.Info("Monte Carlo significance test complete",
		zap.Int("trials", len(seeds)),
		zap.Int("sample_size", batchSize),
		zap.Any("p_values", pValues))

	targetCopy := make(map[string]float64, len(target))
	for k, v := range target {
		targetCopy[k] = v
	}
	return &models.SignificanceResult{
		Trials:       len(seeds),
		SampleSize:   batchSize,
		Target:       targetCopy,
		PValues:      pValues,
		TrialMetrics: trials,
	}, nil
}

func (m *Tester) trial(initial, candidates, test []models.Example, batchSize int, seed int64) (map[string]float64, error) {
	sample, err := dataset.SampleExamples(candidates, batchSize, dataset.NewRand(seed, 0))
	if err != nil {
		return nil, err
	}
	training := make([]models.Example, 0, len(initial)+len(sample))
	training = append(training, initial...)
	training = append(training, sample...)

	start := time.Now()
	model, err := m.Trainer.Fit(training)
	if err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}
	m.Observer.ObserveTraining("monte_carlo", time.Since(start).Seconds())

	eval, err := m.Evaluator.Evaluate(model, test)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}
	return eval.Metrics, nil
}

// PValue returns the fraction of trials at or above observed
func PValue(trials []float64, observed float64) float64 {
	if len(trials) == 0 {
		return 0
	}
	count := 0
	for _, v := range trials {
		if v >= observed {
			count++
		}
	}
	return float64(count) / float64(len(trials))
}
