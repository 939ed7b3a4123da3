// Package baseline measures passive learning: training sets grown by
// uniform random selection, and a model trained on the whole pool.
package baseline

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/mimir-aip/activelearn/pkg/activelearning"
	"github.com/mimir-aip/activelearn/pkg/dataset"
	"github.com/mimir-aip/activelearn/pkg/mlmodel"
	"github.com/mimir-aip/activelearn/pkg/models"
	"github.com/mimir-aip/activelearn/pkg/observability"
)

// Generator runs independent random-selection groups
type Generator struct {
	Trainer   mlmodel.Trainer
	Evaluator activelearning.Evaluator
	Metrics   []string // metric names to aggregate
	Workers   int
	Logger    *zap.Logger
	Observer  *observability.Metrics
}

// RunRandomBaseline grows one random training set per seed from initial
// through targetSizes, recording metrics at every size. Groups run in
// parallel; group g uses only seeds[g], so the result does not depend on
// the worker count.
func (g *Generator) RunRandomBaseline(ctx context.Context, initial, unlabeled, test []models.Example, targetSizes []int, seeds []int64) (*models.BaselineResult, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: baseline needs at least one group", models.ErrConfiguration)
	}
	for i, size := range targetSizes {
		if size < len(initial) || (i > 0 && size < targetSizes[i-1]) {
			return nil, fmt.Errorf("%w: target sizes must be non-decreasing and at least %d, got %v",
				models.ErrConfiguration, len(initial), targetSizes)
		}
	}
	logger := g.logger()

	groups := make([][]models.PerformanceRecord, len(seeds))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(1, g.Workers))
	for i, seed := range seeds {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			records, err := g.runGroup(initial, unlabeled, test, targetSizes, seed)
			if err != nil {
				return models.NewIndexedStepError(models.StepBaselineRun, i, err)
			}
			groups[i] = records
			g.Observer.ObserveBaselineRun()
			logger.Debug("Baseline group complete", zap.Int("group", i))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return &models.BaselineResult{
		TargetSizes: append([]int(nil), targetSizes...),
		Groups:      groups,
		Summary:     Summarize(groups, g.Metrics),
	}, nil
}

func (g *Generator) runGroup(initial, unlabeled, test []models.Example, targetSizes []int, seed int64) ([]models.PerformanceRecord, error) {
	rng := dataset.NewRand(seed, 0)
	training := append([]models.Example(nil), initial...)
	remaining := dataset.Exclude(unlabeled, dataset.IDSet(initial))

	records := make([]models.PerformanceRecord, 0, len(targetSizes))
	for _, size := range targetSizes {
		delta := size - len(training)
		idxs, err := dataset.SampleIndices(len(remaining), delta, rng)
		if err != nil {
			return nil, fmt.Errorf("size %d: %w", size, err)
		}
		taken := make(map[int]struct{}, len(idxs))
		for _, idx := range idxs {
			training = append(training, remaining[idx])
			taken[idx] = struct{}{}
		}
		remaining = dropIndices(remaining, taken)

		record, err := g.trainAndEvaluate(training, test, "baseline")
		if err != nil {
			return nil, fmt.Errorf("size %d: %w", size, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// FullModel trains on the whole unlabeled pool and evaluates on the test set
func (g *Generator) FullModel(unlabeled, test []models.Example) (*models.PerformanceRecord, error) {
	record, err := g.trainAndEvaluate(unlabeled, test, "full")
	if err != nil {
		return nil, models.NewStepError(models.StepFullModel, err)
	}
	g.logger().Info("Full-data model evaluated",
		zap.Int("training_size", record.TrainingSize),
		zap.Any("metrics", record.Metrics))
	return &record, nil
}

func (g *Generator) trainAndEvaluate(training, test []models.Example, phase string) (models.PerformanceRecord, error) {
	start := time.Now()
	model, err := g.Trainer.Fit(training)
	if err != nil {
		return models.PerformanceRecord{}, fmt.Errorf("training failed: %w", err)
	}
	g.Observer.ObserveTraining(phase, time.Since(start).Seconds())

	eval, err := g.Evaluator.Evaluate(model, test)
	if err != nil {
		return models.PerformanceRecord{}, fmt.Errorf("evaluation failed: %w", err)
	}
	return eval.Record(len(training)), nil
}

func (g *Generator) logger() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}

func dropIndices(examples []models.Example, drop map[int]struct{}) []models.Example {
	out := make([]models.Example, 0, len(examples)-len(drop))
	for i, e := range examples {
		if _, ok := drop[i]; !ok {
			out = append(out, e)
		}
	}
	return out
}

// Summarize returns the mean and standard deviation of each metric across
// groups at every target size. A single group has zero deviation.
func Summarize(groups [][]models.PerformanceRecord, metrics []string) []models.BaselineSummaryRow {
	if len(groups) == 0 {
		return nil
	}
	rows := make([]models.BaselineSummaryRow, len(groups[0]))
	values := make([]float64, len(groups))
	for step := range rows {
		row := models.BaselineSummaryRow{
			TrainingSize: groups[0][step].TrainingSize,
			Mean:         make(map[string]float64, len(metrics)),
			StdDev:       make(map[string]float64, len(metrics)),
		}
		for _, name := range metrics {
			for gi, group := range groups {
				values[gi] = group[step].Metrics[name]
			}
			mean, std := stat.MeanStdDev(values, nil)
			if math.IsNaN(std) {
				std = 0
			}
			row.Mean[name] = mean
			row.StdDev[name] = std
		}
		rows[step] = row
	}
	return rows
}
