package activelearning

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mimir-aip/activelearn/pkg/dataset"
	"github.com/mimir-aip/activelearn/pkg/evaluation"
	"github.com/mimir-aip/activelearn/pkg/mlmodel"
	"github.com/mimir-aip/activelearn/pkg/models"
	"github.com/mimir-aip/activelearn/pkg/observability"
)

// constantModel predicts the same probability for every case
type constantModel float64

func (m constantModel) PredictProbabilities(features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for i := range out {
		out[i] = float64(m)
	}
	return out, nil
}

// firstFeatureModel uses the first feature as the probability
type firstFeatureModel struct{}

func (firstFeatureModel) PredictProbabilities(features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for i, x := range features {
		out[i] = x[0]
	}
	return out, nil
}

func makeCases(n int) []models.Case {
	cases := make([]models.Case, n)
	for i := range cases {
		cases[i] = models.Case{ID: string(rune('a'+i%26)) + string(rune('A'+i/26)), Features: []float64{float64(i) / float64(n)}}
	}
	return cases
}

func caseIDs(cases []models.Case) []string {
	ids := make([]string, len(cases))
	for i, c := range cases {
		ids[i] = c.ID
	}
	return ids
}

func TestGaussianScorerPeaksAtMu(t *testing.T) {
	for _, mu := range []float64{0.5, 0.2, 0.9} {
		scorer, err := NewGaussianScorer(mu, 0.1)
		require.NoError(t, err)

		peak := scorer.Uncertainty(mu)
		prevLeft, prevRight := peak, peak
		for step := 0.01; step <= 1; step += 0.01 {
			if p := mu + step; p <= 1 {
				w := scorer.Uncertainty(p)
				assert.LessOrEqual(t, w, prevRight)
				prevRight = w
			}
			if p := mu - step; p >= 0 {
				w := scorer.Uncertainty(p)
				assert.LessOrEqual(t, w, prevLeft)
				prevLeft = w
			}
		}
	}
}

func TestGaussianScorerNeverZero(t *testing.T) {
	scorer, err := NewGaussianScorer(0.5, 0.01)
	require.NoError(t, err)
	assert.Equal(t, MinWeight, scorer.Uncertainty(0))
	assert.Equal(t, MinWeight, scorer.Uncertainty(1))
	assert.Equal(t, MinWeight, scorer.Uncertainty(math.NaN()))
}

func TestGaussianScorerValidation(t *testing.T) {
	_, err := NewGaussianScorer(0.5, 0)
	assert.ErrorIs(t, err, models.ErrConfiguration)
	_, err = NewGaussianScorer(1.5, 0.1)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestSelectorStaysInsideAvailable(t *testing.T) {
	scorer, err := NewGaussianScorer(0.5, 0.1)
	require.NoError(t, err)
	selector, err := NewCaseSelector(scorer, 5, 50)
	require.NoError(t, err)

	available := makeCases(30)
	allowed := make(map[string]bool)
	for _, c := range available {
		allowed[c.ID] = true
	}

	for seed := int64(0); seed < 25; seed++ {
		batch, err := selector.Select(firstFeatureModel{}, available, dataset.NewRand(seed, 0))
		require.NoError(t, err)
		require.Len(t, batch, 5)

		seen := make(map[string]bool)
		for _, c := range batch {
			assert.True(t, allowed[c.ID])
			assert.False(t, seen[c.ID], "duplicate %s", c.ID)
			seen[c.ID] = true
		}
	}
}

func TestSelectorTakesEverythingWhenSizesMatch(t *testing.T) {
	scorer, err := NewGaussianScorer(0.5, 0.1)
	require.NoError(t, err)
	selector, err := NewCaseSelector(scorer, 12, 12)
	require.NoError(t, err)

	available := makeCases(12)
	batch, err := selector.Select(firstFeatureModel{}, available, dataset.NewRand(1, 0))
	require.NoError(t, err)
	assert.ElementsMatch(t, caseIDs(available), caseIDs(batch))
}

func TestSelectorPrefersUncertainCases(t *testing.T) {
	scorer, err := NewGaussianScorer(0.5, 0.05)
	require.NoError(t, err)
	selector, err := NewCaseSelector(scorer, 1, 100)
	require.NoError(t, err)

	available := makeCases(100)
	near := 0
	for seed := int64(0); seed < 200; seed++ {
		batch, err := selector.Select(firstFeatureModel{}, available, dataset.NewRand(seed, 0))
		require.NoError(t, err)
		if p := batch[0].Features[0]; p > 0.35 && p < 0.65 {
			near++
		}
	}
	assert.Greater(t, near, 190)
}

func TestSelectorEqualWeightsStillSample(t *testing.T) {
	scorer, err := NewGaussianScorer(0.5, 0.1)
	require.NoError(t, err)
	selector, err := NewCaseSelector(scorer, 1, 10)
	require.NoError(t, err)

	available := makeCases(10)
	picked := make(map[string]bool)
	for seed := int64(0); seed < 200; seed++ {
		batch, err := selector.Select(constantModel(0.5), available, dataset.NewRand(seed, 0))
		require.NoError(t, err)
		picked[batch[0].ID] = true
	}
	assert.Len(t, picked, 10, "ties must be broken across all candidates")
}

func TestSelectorInvalidBatchSize(t *testing.T) {
	scorer, err := NewGaussianScorer(0.5, 0.1)
	require.NoError(t, err)

	_, err = NewCaseSelector(scorer, 50, 20)
	assert.ErrorIs(t, err, models.ErrInvalidBatchSize)

	selector, err := NewCaseSelector(scorer, 5, 20)
	require.NoError(t, err)
	_, err = selector.Select(constantModel(0.5), makeCases(4), dataset.NewRand(1, 0))
	assert.ErrorIs(t, err, models.ErrInvalidBatchSize)
}

func TestSelectorIsDeterministic(t *testing.T) {
	scorer, err := NewGaussianScorer(0.5, 0.1)
	require.NoError(t, err)
	selector, err := NewCaseSelector(scorer, 7, 40)
	require.NoError(t, err)

	available := makeCases(80)
	a, err := selector.Select(firstFeatureModel{}, available, dataset.NewRand(42, 0))
	require.NoError(t, err)
	b, err := selector.Select(firstFeatureModel{}, available, dataset.NewRand(42, 0))
	require.NoError(t, err)
	assert.Equal(t, caseIDs(a), caseIDs(b))
}

func TestStateAppendRejectsDuplicates(t *testing.T) {
	initial := []models.Example{{ID: "a"}, {ID: "b"}}
	state, err := NewState(initial)
	require.NoError(t, err)

	next, err := state.Append([]models.Example{{ID: "c"}})
	require.NoError(t, err)
	assert.Equal(t, 2, state.Size(), "append must not mutate the previous state")
	assert.Equal(t, 3, next.Size())
	assert.Contains(t, next.AlreadySelected(), "c")
	assert.NotContains(t, next.AlreadySelected(), "a")

	_, err = next.Append([]models.Example{{ID: "a"}})
	assert.ErrorIs(t, err, models.ErrDuplicateSelection)

	_, err = NewState([]models.Example{{ID: "a"}, {ID: "a"}})
	assert.ErrorIs(t, err, models.ErrDuplicateSelection)
}

type fixture struct {
	pool      *dataset.Pool
	initial   []models.Example
	test      []models.Example
	unlabeled []models.Example
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	opts := dataset.DefaultGeneratorOptions()
	opts.Flagged, opts.Unflagged = 150, 150
	examples, _, err := dataset.Generate(opts, dataset.NewRand(5, 0))
	require.NoError(t, err)
	pool, err := dataset.NewPool(examples)
	require.NoError(t, err)

	rng := dataset.NewRand(5, 1)
	test, unlabeled, err := dataset.Partition(pool, 60, rng)
	require.NoError(t, err)
	initial, err := dataset.StratifiedInitialSet(pool, 10, rng)
	require.NoError(t, err)
	return fixture{pool: pool, initial: initial, test: test, unlabeled: unlabeled}
}

func newController(t *testing.T, f fixture, trainer mlmodel.Trainer, oracle dataset.Oracle, iterations int) *Controller {
	t.Helper()
	scorer, err := NewGaussianScorer(0.5, 0.1)
	require.NoError(t, err)
	selector, err := NewCaseSelector(scorer, 8, 40)
	require.NoError(t, err)
	evaluator, err := evaluation.NewEvaluator([]string{models.MetricAccuracy, models.MetricAUC}, 0.5)
	require.NoError(t, err)

	c, err := NewController(Options{
		Trainer:       trainer,
		Evaluator:     evaluator,
		Selector:      selector,
		Oracle:        oracle,
		NumIterations: iterations,
		Logger:        zaptest.NewLogger(t),
		Metrics:       observability.NewMetrics(),
	}, f.initial, f.test, f.unlabeled, dataset.NewRand(9, 2))
	require.NoError(t, err)
	return c
}

func TestControllerInvariants(t *testing.T) {
	f := newFixture(t)
	c := newController(t, f, mlmodel.NewLogisticRegressionTrainer(), dataset.NewLookupOracle(f.pool), 6)
	assert.Equal(t, PhaseInitialized, c.Phase())

	_, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, PhaseIterating, c.Phase())
	assert.Equal(t, len(f.initial)+8, c.State().Size())

	unlabeledIDs := dataset.IDSet(f.unlabeled)
	prevSelected := c.State().AlreadySelected()
	for c.Phase() != PhaseComplete {
		before := c.State()
		beforeIDs := dataset.IDSet(before.TrainingSet())

		result, err := c.Step()
		require.NoError(t, err)
		require.NotNil(t, result)

		after := c.State()
		assert.Equal(t, before.Size()+8, after.Size())
		assert.Equal(t, before.Size(), result.TrainingSize)
		for _, e := range result.Selected {
			_, reused := beforeIDs[e.ID]
			assert.False(t, reused, "iteration %d reselected %s", result.Iteration, e.ID)
			_, fromPool := unlabeledIDs[e.ID]
			assert.True(t, fromPool)
		}

		selected := after.AlreadySelected()
		for id := range prevSelected {
			assert.Contains(t, selected, id)
		}
		prevSelected = selected
	}

	assert.Len(t, c.History(), 6)
	table := c.PerformanceTable()
	require.Len(t, table, 7)
	for i := 1; i < len(table); i++ {
		assert.Greater(t, table[i].TrainingSize, table[i-1].TrainingSize)
	}
	assert.Len(t, dataset.IDSet(c.State().TrainingSet()), c.State().Size())

	_, err = c.Step()
	assert.ErrorIs(t, err, ErrComplete)
}

func TestControllerZeroIterations(t *testing.T) {
	f := newFixture(t)
	c := newController(t, f, mlmodel.NewLogisticRegressionTrainer(), dataset.NewLookupOracle(f.pool), 0)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, PhaseComplete, c.Phase())
	assert.Empty(t, c.History())
	assert.Len(t, c.PerformanceTable(), 1)
	assert.Equal(t, len(f.initial)+8, c.State().Size())
}

func TestControllerIsDeterministic(t *testing.T) {
	f := newFixture(t)
	run := func() []string {
		c := newController(t, f, mlmodel.NewLogisticRegressionTrainer(), dataset.NewLookupOracle(f.pool), 3)
		require.NoError(t, c.Run(context.Background()))
		return models.IDs(c.State().TrainingSet())
	}
	assert.Equal(t, run(), run())
}

// replayOracle returns a fixed example no matter what was asked
type replayOracle struct {
	example models.Example
}

func (o replayOracle) Reveal(cases []models.Case) ([]models.Example, error) {
	out := make([]models.Example, len(cases))
	for i := range out {
		out[i] = o.example
	}
	return out, nil
}

func TestControllerDetectsDuplicateSelection(t *testing.T) {
	f := newFixture(t)
	c := newController(t, f, mlmodel.NewLogisticRegressionTrainer(), replayOracle{example: f.initial[0]}, 2)

	err := c.Run(context.Background())
	require.ErrorIs(t, err, models.ErrDuplicateSelection)

	var stepErr *models.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, models.StepIteration, stepErr.Step)
	assert.Equal(t, 0, stepErr.Index)
}

func TestControllerNamesFailingIteration(t *testing.T) {
	f := newFixture(t)
	calls := 0
	trainer := mlmodel.TrainerFunc(func(training []models.Example) (mlmodel.Model, error) {
		calls++
		if calls == 3 {
			return nil, errors.New("boom")
		}
		return firstFeatureModel{}, nil
	})
	c := newController(t, f, trainer, dataset.NewLookupOracle(f.pool), 5)

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "iteration 2")
	assert.Len(t, c.History(), 1)
}

func TestControllerHonorsContext(t *testing.T) {
	f := newFixture(t)
	c := newController(t, f, mlmodel.NewLogisticRegressionTrainer(), dataset.NewLookupOracle(f.pool), 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Run(ctx), context.Canceled)
	assert.Equal(t, PhaseInitialized, c.Phase())
}
