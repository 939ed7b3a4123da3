package mlmodel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/mimir-aip/activelearn/pkg/models"
)

// LogisticRegressionTrainer fits an L2-regularized logistic regression on
// standardized features with L-BFGS.
type LogisticRegressionTrainer struct {
	Lambda        float64 // L2 penalty on the weights
	MaxIterations int
}

// NewLogisticRegressionTrainer creates a trainer with default regularization
func NewLogisticRegressionTrainer() *LogisticRegressionTrainer {
	return &LogisticRegressionTrainer{
		Lambda:        1e-2,
		MaxIterations: 200,
	}
}

// Type returns the model type
func (t *LogisticRegressionTrainer) Type() models.ModelType {
	return models.ModelTypeLogisticRegression
}

// Fit trains a new model on training
func (t *LogisticRegressionTrainer) Fit(training []models.Example) (Model, error) {
	X, y, err := splitTraining(training)
	if err != nil {
		return nil, err
	}

	n := len(X)
	d := len(X[0])

	// Per-feature standardization
	means := make([]float64, d)
	scales := make([]float64, d)
	column := make([]float64, n)
	for j := 0; j < d; j++ {
		for i := range X {
			column[i] = X[i][j]
		}
		mean, std := stat.MeanStdDev(column, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		means[j] = mean
		scales[j] = std
	}

	Z := make([][]float64, n)
	for i, x := range X {
		Z[i] = standardize(x, means, scales)
	}
	targets := make([]float64, n)
	for i, label := range y {
		if label {
			targets[i] = 1
		}
	}

	lambda := t.Lambda
	// params[0] is the intercept, params[1:] the weights
	problem := optimize.Problem{
		Func: func(params []float64) float64 {
			loss := 0.0
			for i, z := range Z {
				s := params[0] + floats.Dot(params[1:], z)
				loss += softplus(s) - targets[i]*s
			}
			w := params[1:]
			return loss/float64(n) + 0.5*lambda*floats.Dot(w, w)
		},
		Grad: func(grad, params []float64) {
			for k := range grad {
				grad[k] = 0
			}
			for i, z := range Z {
				s := params[0] + floats.Dot(params[1:], z)
				r := sigmoid(s) - targets[i]
				grad[0] += r
				floats.AddScaled(grad[1:], r, z)
			}
			floats.Scale(1/float64(n), grad)
			floats.AddScaled(grad[1:], lambda, params[1:])
		},
	}

	settings := &optimize.Settings{
		MajorIterations:   t.MaxIterations,
		GradientThreshold: 1e-6,
	}
	result, err := optimize.Minimize(problem, make([]float64, d+1), settings, &optimize.LBFGS{})
	if result == nil {
		return nil, fmt.Errorf("logistic regression optimization failed: %w", err)
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("logistic regression diverged (status %v): %v", result.Status, err)
		}
	}

	params := make([]float64, d+1)
	copy(params, result.X)
	return &LogisticRegressionModel{
		Intercept: params[0],
		Weights:   params[1:],
		Means:     means,
		Scales:    scales,
	}, nil
}

// LogisticRegressionModel is a fitted logistic regression
type LogisticRegressionModel struct {
	Intercept float64   `json:"intercept"`
	Weights   []float64 `json:"weights"`
	Means     []float64 `json:"means"`
	Scales    []float64 `json:"scales"`
}

// PredictProbabilities returns P(flagged) for each row
func (m *LogisticRegressionModel) PredictProbabilities(features [][]float64) ([]float64, error) {
	if err := checkWidth(features, len(m.Weights)); err != nil {
		return nil, err
	}
	out := make([]float64, len(features))
	for i, x := range features {
		z := standardize(x, m.Means, m.Scales)
		out[i] = sigmoid(m.Intercept + floats.Dot(m.Weights, z))
	}
	return out, nil
}

func standardize(x, means, scales []float64) []float64 {
	z := make([]float64, len(x))
	for j, v := range x {
		z[j] = (v - means[j]) / scales[j]
	}
	return z
}

func sigmoid(s float64) float64 {
	if s >= 0 {
		return 1 / (1 + math.Exp(-s))
	}
	e := math.Exp(s)
	return e / (1 + e)
}

// softplus computes log(1 + e^s) without overflow
func softplus(s float64) float64 {
	if s > 0 {
		return s + math.Log1p(math.Exp(-s))
	}
	return math.Log1p(math.Exp(s))
}
