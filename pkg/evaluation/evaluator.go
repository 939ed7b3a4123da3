package evaluation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/mimir-aip/activelearn/pkg/mlmodel"
	"github.com/mimir-aip/activelearn/pkg/models"
)

// Evaluation holds a model's predictions on a test set and the metrics
// derived from them
type Evaluation struct {
	Probabilities []float64              `json:"probabilities"`
	Predicted     []bool                 `json:"predicted"`
	Confusion     models.ConfusionMatrix `json:"confusion"`
	Metrics       map[string]float64     `json:"metrics"`
}

// Record tags the metrics with a training-set size
func (e *Evaluation) Record(trainingSize int) models.PerformanceRecord {
	metrics := make(map[string]float64, len(e.Metrics))
	for k, v := range e.Metrics {
		metrics[k] = v
	}
	return models.PerformanceRecord{
		TrainingSize: trainingSize,
		Metrics:      metrics,
		Confusion:    e.Confusion,
	}
}

// Evaluator scores models against a fixed test set
type Evaluator struct {
	metrics   []string
	threshold float64
}

// NewEvaluator creates an evaluator computing the named metrics. A
// probability at or above threshold predicts flagged.
func NewEvaluator(metrics []string, threshold float64) (*Evaluator, error) {
	if len(metrics) == 0 {
		return nil, fmt.Errorf("%w: at least one metric is required", models.ErrConfiguration)
	}
	for _, name := range metrics {
		if _, ok := metricFuncs[name]; !ok && name != models.MetricAUC {
			return nil, fmt.Errorf("%w: unknown metric %q", models.ErrConfiguration, name)
		}
	}
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("%w: decision threshold must be in (0,1), got %v", models.ErrConfiguration, threshold)
	}
	return &Evaluator{
		metrics:   append([]string(nil), metrics...),
		threshold: threshold,
	}, nil
}

// Metrics returns the configured metric names in order
func (ev *Evaluator) Metrics() []string {
	return append([]string(nil), ev.metrics...)
}

// Evaluate predicts the test set with model and computes all configured metrics
func (ev *Evaluator) Evaluate(model mlmodel.Model, test []models.Example) (*Evaluation, error) {
	if len(test) == 0 {
		return nil, fmt.Errorf("%w: empty test set", models.ErrInsufficientData)
	}
	probs, err := model.PredictProbabilities(models.FeatureMatrix(test))
	if err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}
	if len(probs) != len(test) {
		return nil, fmt.Errorf("model returned %d probabilities for %d examples", len(probs), len(test))
	}
	return ev.Score(probs, models.Labels(test))
}

// Score computes metrics from probabilities and true labels
func (ev *Evaluator) Score(probs []float64, truth []bool) (*Evaluation, error) {
	if len(probs) != len(truth) {
		return nil, fmt.Errorf("probabilities and labels must have same length")
	}

	result := &Evaluation{
		Probabilities: probs,
		Predicted:     make([]bool, len(probs)),
		Metrics:       make(map[string]float64, len(ev.metrics)),
	}
	for i, p := range probs {
		predicted := p >= ev.threshold
		result.Predicted[i] = predicted
		switch {
		case predicted && truth[i]:
			result.Confusion.TruePositives++
		case predicted && !truth[i]:
			result.Confusion.FalsePositives++
		case !predicted && !truth[i]:
			result.Confusion.TrueNegatives++
		default:
			result.Confusion.FalseNegatives++
		}
	}

	for _, name := range ev.metrics {
		if name == models.MetricAUC {
			result.Metrics[name] = AUC(probs, truth)
			continue
		}
		result.Metrics[name] = metricFuncs[name](result.Confusion)
	}
	return result, nil
}

var metricFuncs = map[string]func(models.ConfusionMatrix) float64{
	models.MetricAccuracy:         Accuracy,
	models.MetricPrecision:        Precision,
	models.MetricRecall:           Recall,
	models.MetricF1:               F1,
	models.MetricSpecificity:      Specificity,
	models.MetricBalancedAccuracy: BalancedAccuracy,
	models.MetricMCC:              MCC,
}

// ratio returns 0 when the denominator is empty
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Accuracy is the fraction of correct predictions
func Accuracy(c models.ConfusionMatrix) float64 {
	return ratio(c.TruePositives+c.TrueNegatives, c.Total())
}

// Precision is TP / (TP + FP)
func Precision(c models.ConfusionMatrix) float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalsePositives)
}

// Recall is TP / (TP + FN)
func Recall(c models.ConfusionMatrix) float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalseNegatives)
}

// Specificity is TN / (TN + FP)
func Specificity(c models.ConfusionMatrix) float64 {
	return ratio(c.TrueNegatives, c.TrueNegatives+c.FalsePositives)
}

// F1 is the harmonic mean of precision and recall
func F1(c models.ConfusionMatrix) float64 {
	p, r := Precision(c), Recall(c)
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func BalancedAccuracy(c models.ConfusionMatrix) float64 {
	return (Recall(c) + Specificity(c)) / 2
}

// MCC is the Matthews correlation coefficient, 0 when any margin is empty
func MCC(c models.ConfusionMatrix) float64 {
	tp, fp := float64(c.TruePositives), float64(c.FalsePositives)
	tn, fn := float64(c.TrueNegatives), float64(c.FalseNegatives)
	den := math.Sqrt((tp + fp) * (tp + fn) * (tn + fp) * (tn + fn))
	if den == 0 {
		return 0
	}
	return (tp*tn - fp*fn) / den
}

// AUC is the area under the ROC curve. It returns 0.5 when the labels
// contain a single class.
func AUC(probs []float64, truth []bool) float64 {
	positives := 0
	for _, t := range truth {
		if t {
			positives++
		}
	}
	if positives == 0 || positives == len(truth) {
		return 0.5
	}

	y := append([]float64(nil), probs...)
	classes := append([]bool(nil), truth...)
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	if len(tpr) < 2 {
		return 0.5
	}
	return integrate.Trapezoidal(fpr, tpr)
}
