package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimir-aip/activelearn/pkg/mlmodel"
	"github.com/mimir-aip/activelearn/pkg/models"
)

var allMetrics = []string{
	models.MetricAccuracy,
	models.MetricPrecision,
	models.MetricRecall,
	models.MetricF1,
	models.MetricSpecificity,
	models.MetricAUC,
	models.MetricBalancedAccuracy,
	models.MetricMCC,
}

func TestScoreConfusionAndMetrics(t *testing.T) {
	ev, err := NewEvaluator(allMetrics, 0.5)
	require.NoError(t, err)

	probs := []float64{0.9, 0.8, 0.3, 0.6, 0.2, 0.1}
	truth := []bool{true, true, true, false, false, false}

	result, err := ev.Score(probs, truth)
	require.NoError(t, err)

	assert.Equal(t, models.ConfusionMatrix{
		TruePositives:  2,
		FalsePositives: 1,
		TrueNegatives:  2,
		FalseNegatives: 1,
	}, result.Confusion)
	assert.Equal(t, []bool{true, true, false, true, false, false}, result.Predicted)

	m := result.Metrics
	assert.InDelta(t, 4.0/6.0, m[models.MetricAccuracy], 1e-9)
	assert.InDelta(t, 2.0/3.0, m[models.MetricPrecision], 1e-9)
	assert.InDelta(t, 2.0/3.0, m[models.MetricRecall], 1e-9)
	assert.InDelta(t, 2.0/3.0, m[models.MetricF1], 1e-9)
	assert.InDelta(t, 2.0/3.0, m[models.MetricSpecificity], 1e-9)
	assert.InDelta(t, 2.0/3.0, m[models.MetricBalancedAccuracy], 1e-9)
	assert.InDelta(t, 1.0/3.0, m[models.MetricMCC], 1e-9)
	// 8 of 9 positive/negative pairs are ordered correctly
	assert.InDelta(t, 8.0/9.0, m[models.MetricAUC], 1e-9)
}

func TestAUC(t *testing.T) {
	assert.InDelta(t, 1.0, AUC([]float64{0.1, 0.2, 0.8, 0.9}, []bool{false, false, true, true}), 1e-9)
	assert.InDelta(t, 0.0, AUC([]float64{0.9, 0.8, 0.2, 0.1}, []bool{false, false, true, true}), 1e-9)
	assert.InDelta(t, 0.5, AUC([]float64{0.5, 0.5, 0.5, 0.5}, []bool{false, true, false, true}), 1e-9)
	assert.Equal(t, 0.5, AUC([]float64{0.2, 0.7}, []bool{true, true}))
}

func TestEmptyDenominators(t *testing.T) {
	var c models.ConfusionMatrix
	assert.Zero(t, Accuracy(c))
	assert.Zero(t, Precision(c))
	assert.Zero(t, F1(c))
	assert.Zero(t, MCC(c))

	c = models.ConfusionMatrix{TrueNegatives: 10}
	assert.Equal(t, 1.0, Accuracy(c))
	assert.Zero(t, Recall(c))
}

func TestNewEvaluatorValidation(t *testing.T) {
	_, err := NewEvaluator(nil, 0.5)
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = NewEvaluator([]string{"logloss"}, 0.5)
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = NewEvaluator([]string{models.MetricAccuracy}, 1)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestEvaluateModel(t *testing.T) {
	test := []models.Example{
		{ID: "a", Features: []float64{0.9}, Flagged: true},
		{ID: "b", Features: []float64{0.1}, Flagged: false},
	}
	// echoes the first feature as its probability
	model := modelFunc(func(features [][]float64) ([]float64, error) {
		out := make([]float64, len(features))
		for i, x := range features {
			out[i] = x[0]
		}
		return out, nil
	})

	ev, err := NewEvaluator([]string{models.MetricAccuracy, models.MetricAUC}, 0.5)
	require.NoError(t, err)

	result, err := ev.Evaluate(model, test)
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Metrics[models.MetricAccuracy])

	record := result.Record(7)
	assert.Equal(t, 7, record.TrainingSize)
	assert.Equal(t, result.Metrics, record.Metrics)

	_, err = ev.Evaluate(model, nil)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

type modelFunc func([][]float64) ([]float64, error)

func (f modelFunc) PredictProbabilities(features [][]float64) ([]float64, error) {
	return f(features)
}

var _ mlmodel.Model = modelFunc(nil)
