package mlmodel

import (
	"fmt"

	"github.com/mimir-aip/activelearn/pkg/models"
)

// Model scores feature vectors with the estimated probability of the
// flagged class.
type Model interface {
	PredictProbabilities(features [][]float64) ([]float64, error)
}

// Trainer fits a new Model from scratch on a training set. Implementations
// must not keep state between Fit calls.
type Trainer interface {
	Fit(training []models.Example) (Model, error)
	Type() models.ModelType
}

// TrainerFunc adapts a function to the Trainer interface
type TrainerFunc func(training []models.Example) (Model, error)

// Fit calls f
func (f TrainerFunc) Fit(training []models.Example) (Model, error) {
	return f(training)
}

// Type reports an unnamed trainer
func (f TrainerFunc) Type() models.ModelType {
	return "custom"
}

// splitTraining validates a training set and returns its design matrix and labels
func splitTraining(training []models.Example) ([][]float64, []bool, error) {
	if len(training) == 0 {
		return nil, nil, fmt.Errorf("%w: empty training data", models.ErrInsufficientData)
	}
	width := len(training[0].Features)
	if width == 0 {
		return nil, nil, fmt.Errorf("training examples have no features")
	}
	for _, e := range training {
		if len(e.Features) != width {
			return nil, nil, fmt.Errorf("example %q has %d features, expected %d", e.ID, len(e.Features), width)
		}
	}
	return models.FeatureMatrix(training), models.Labels(training), nil
}

func checkWidth(features [][]float64, width int) error {
	for i, x := range features {
		if len(x) != width {
			return fmt.Errorf("row %d: expected %d features, got %d", i, width, len(x))
		}
	}
	return nil
}
