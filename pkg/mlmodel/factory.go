package mlmodel

import (
	"fmt"

	"github.com/mimir-aip/activelearn/pkg/models"
)

// TrainerFactory creates trainers for different model types
type TrainerFactory struct {
	trainers map[models.ModelType]Trainer
}

// NewTrainerFactory registers a trainer for each supported model type.
// seed fixes the randomness of the ensemble trainers.
func NewTrainerFactory(seed uint64) *TrainerFactory {
	factory := &TrainerFactory{
		trainers: make(map[models.ModelType]Trainer),
	}

	factory.trainers[models.ModelTypeLogisticRegression] = NewLogisticRegressionTrainer()
	factory.trainers[models.ModelTypeDecisionTree] = NewDecisionTreeTrainer(0, 0, 0)
	factory.trainers[models.ModelTypeRandomForest] = NewRandomForestTrainer(0, seed)

	return factory
}

// Register replaces the trainer for a model type
func (f *TrainerFactory) Register(modelType models.ModelType, trainer Trainer) {
	f.trainers[modelType] = trainer
}

// GetTrainer returns the trainer for a model type
func (f *TrainerFactory) GetTrainer(modelType models.ModelType) (Trainer, error) {
	trainer, ok := f.trainers[modelType]
	if !ok {
		return nil, fmt.Errorf("%w: no trainer available for model type: %s", models.ErrConfiguration, modelType)
	}
	return trainer, nil
}
