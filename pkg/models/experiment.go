package models

import (
	"time"
)

// ModelType names a classifier implementation behind the Model contract
type ModelType string

const (
	ModelTypeLogisticRegression ModelType = "logistic_regression"
	ModelTypeDecisionTree       ModelType = "decision_tree"
	ModelTypeRandomForest       ModelType = "random_forest"
)

// Metric names understood by the evaluator
const (
	MetricAccuracy         = "accuracy"
	MetricPrecision        = "precision"
	MetricRecall           = "recall"
	MetricF1               = "f1"
	MetricSpecificity      = "specificity"
	MetricAUC              = "auc"
	MetricBalancedAccuracy = "balanced_accuracy"
	MetricMCC              = "mcc"
)

// ExperimentConfig holds every recognized option of an experiment run
type ExperimentConfig struct {
	Seed                        int64     `yaml:"seed" json:"seed"`
	InitialExamplesPerClass     int       `yaml:"initial_examples_per_class" json:"initial_examples_per_class" validate:"gte=1"`
	ExamplesToLabelPerIteration int       `yaml:"examples_to_label_per_iteration" json:"examples_to_label_per_iteration" validate:"gte=1"`
	NumIterations               int       `yaml:"num_iterations" json:"num_iterations" validate:"gte=0"`
	PresampleSize               int       `yaml:"presample_size" json:"presample_size" validate:"gte=1"`
	MonteCarloSamples           int       `yaml:"monte_carlo_samples" json:"monte_carlo_samples" validate:"gte=1"`
	Mu                          float64   `yaml:"mu" json:"mu" validate:"gte=0,lte=1"`
	Sigma                       float64   `yaml:"sigma" json:"sigma" validate:"gt=0"`
	TestSetSize                 int       `yaml:"test_set_size" json:"test_set_size" validate:"gte=1"`
	GroupCount                  int       `yaml:"group_count" json:"group_count" validate:"gte=1"`
	Model                       ModelType `yaml:"model" json:"model" validate:"oneof=logistic_regression decision_tree random_forest"`
	Metrics                     []string  `yaml:"metrics" json:"metrics" validate:"min=1,dive,oneof=accuracy precision recall f1 specificity auc balanced_accuracy mcc"`
	DecisionThreshold           float64   `yaml:"decision_threshold" json:"decision_threshold" validate:"gt=0,lt=1"`
	Workers                     int       `yaml:"workers" json:"workers" validate:"gte=1"`
	Schedule                    string    `yaml:"schedule,omitempty" json:"schedule,omitempty"`
}

// DefaultExperimentConfig returns the configuration used when no file or
// override sets a value.
func DefaultExperimentConfig() ExperimentConfig {
	return ExperimentConfig{
		Seed:                        3,
		InitialExamplesPerClass:     20,
		ExamplesToLabelPerIteration: 10,
		NumIterations:               5,
		PresampleSize:               100,
		MonteCarloSamples:           100,
		Mu:                          0.5,
		Sigma:                       0.1,
		TestSetSize:                 200,
		GroupCount:                  10,
		Model:                       ModelTypeLogisticRegression,
		Metrics: []string{
			MetricAccuracy,
			MetricPrecision,
			MetricRecall,
			MetricF1,
			MetricAUC,
		},
		DecisionThreshold: 0.5,
		Workers:           4,
	}
}

// ConfusionMatrix counts binary outcomes with flagged as the positive class
type ConfusionMatrix struct {
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	TrueNegatives  int `json:"true_negatives"`
	FalseNegatives int `json:"false_negatives"`
}

// Total returns the number of counted predictions
func (c ConfusionMatrix) Total() int {
	return c.TruePositives + c.FalsePositives + c.TrueNegatives + c.FalseNegatives
}

// PerformanceRecord is one row of metric values tagged with the training-set
// size the model was trained on.
type PerformanceRecord struct {
	TrainingSize int                `json:"training_size"`
	Metrics      map[string]float64 `json:"metrics"`
	Confusion    ConfusionMatrix    `json:"confusion"`
}

// IterationRecord is the persisted form of one active-learning round
type IterationRecord struct {
	Iteration    int               `json:"iteration"`
	TrainingSize int               `json:"training_size"`
	SelectedIDs  []string          `json:"selected_ids"`
	Performance  PerformanceRecord `json:"performance"`
}

// BaselineSummaryRow aggregates the passive baseline across groups at one size
type BaselineSummaryRow struct {
	TrainingSize int                `json:"training_size"`
	Mean         map[string]float64 `json:"mean"`
	StdDev       map[string]float64 `json:"std_dev"`
}

// BaselineResult holds every group's learning curve and their aggregate
type BaselineResult struct {
	TargetSizes []int                 `json:"target_sizes"`
	Groups      [][]PerformanceRecord `json:"groups"`
	Summary     []BaselineSummaryRow  `json:"summary"`
}

// SignificanceResult holds Monte Carlo p-values against the active result
type SignificanceResult struct {
	Trials       int                  `json:"trials"`
	SampleSize   int                  `json:"sample_size"`
	Target       map[string]float64   `json:"target"`
	PValues      map[string]float64   `json:"p_values"`
	TrialMetrics []map[string]float64 `json:"trial_metrics,omitempty"`
}

// RunStatus represents the lifecycle state of an experiment run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ExperimentRun is the stored outcome of one experiment
type ExperimentRun struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Status           RunStatus           `json:"status"`
	Config           ExperimentConfig    `json:"config"`
	PoolFingerprint  string              `json:"pool_fingerprint"`
	PoolSize         int                 `json:"pool_size"`
	PerformanceTable []PerformanceRecord `json:"performance_table"`
	Iterations       []IterationRecord   `json:"iterations"`
	FinalTrainingIDs []string            `json:"final_training_ids"`
	Baseline         *BaselineResult     `json:"baseline,omitempty"`
	FullModel        *PerformanceRecord  `json:"full_model,omitempty"`
	Significance     *SignificanceResult `json:"significance,omitempty"`
	Error            string              `json:"error,omitempty"`
	StartedAt        time.Time           `json:"started_at"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`
}
