package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is returned when a stratum or pool holds fewer
	// examples than a requested sample size.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidBatchSize is returned when more cases are requested than
	// candidates are available.
	ErrInvalidBatchSize = errors.New("invalid batch size")

	// ErrDuplicateSelection signals that an id would enter the training set twice.
	ErrDuplicateSelection = errors.New("duplicate selection")

	// ErrConfiguration is returned for out-of-range parameters.
	ErrConfiguration = errors.New("invalid configuration")
)

// Step names used in StepError.
const (
	StepConfiguration   = "configuration"
	StepPartition       = "partition"
	StepInitialSampling = "initial sampling"
	StepIteration       = "iteration"
	StepBaselineRun     = "baseline run"
	StepFullModel       = "full model"
	StepMonteCarloTrial = "monte carlo trial"
)

// StepError names the experiment step that failed. Index is the iteration,
// baseline group or trial number for indexed steps and -1 otherwise.
type StepError struct {
	Step  string
	Index int
	Err   error
}

// NewStepError wraps err for an unindexed step.
func NewStepError(step string, err error) *StepError {
	return &StepError{Step: step, Index: -1, Err: err}
}

// NewIndexedStepError wraps err for the index-th occurrence of step.
func NewIndexedStepError(step string, index int, err error) *StepError {
	return &StepError{Step: step, Index: index, Err: err}
}

func (e *StepError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s %d: %v", e.Step, e.Index, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
