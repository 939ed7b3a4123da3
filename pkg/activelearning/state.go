package activelearning

import (
	"fmt"

	"github.com/mimir-aip/activelearn/pkg/dataset"
	"github.com/mimir-aip/activelearn/pkg/models"
)

// State is the training set and selection bookkeeping carried between
// rounds. Values are immutable: Append returns a new State.
type State struct {
	training        []models.Example
	inTraining      map[string]struct{}
	alreadySelected map[string]struct{}
}

// NewState starts from the initial training set. Its ids are never offered
// for selection but are not counted as selected.
func NewState(initial []models.Example) (State, error) {
	s := State{
		training:        make([]models.Example, 0, len(initial)),
		inTraining:      make(map[string]struct{}, len(initial)),
		alreadySelected: make(map[string]struct{}),
	}
	for _, e := range initial {
		if _, dup := s.inTraining[e.ID]; dup {
			return State{}, fmt.Errorf("%w: id %q appears twice in the initial training set",
				models.ErrDuplicateSelection, e.ID)
		}
		s.inTraining[e.ID] = struct{}{}
		s.training = append(s.training, e)
	}
	return s, nil
}

// Append returns the state after labeling batch
func (s State) Append(batch []models.Example) (State, error) {
	next := State{
		training:        make([]models.Example, len(s.training), len(s.training)+len(batch)),
		inTraining:      make(map[string]struct{}, len(s.inTraining)+len(batch)),
		alreadySelected: make(map[string]struct{}, len(s.alreadySelected)+len(batch)),
	}
	copy(next.training, s.training)
	for id := range s.inTraining {
		next.inTraining[id] = struct{}{}
	}
	for id := range s.alreadySelected {
		next.alreadySelected[id] = struct{}{}
	}

	for _, e := range batch {
		if _, dup := next.inTraining[e.ID]; dup {
			return State{}, fmt.Errorf("%w: id %q is already in the training set",
				models.ErrDuplicateSelection, e.ID)
		}
		next.inTraining[e.ID] = struct{}{}
		next.alreadySelected[e.ID] = struct{}{}
		next.training = append(next.training, e)
	}
	return next, nil
}

// Candidates returns the cases of unlabeled that may still be selected
func (s State) Candidates(unlabeled []models.Example) []models.Case {
	return models.Cases(dataset.Exclude(unlabeled, s.inTraining))
}

// TrainingSet returns a copy of the training set in insertion order
func (s State) TrainingSet() []models.Example {
	return append([]models.Example(nil), s.training...)
}

// Size returns the training-set size
func (s State) Size() int {
	return len(s.training)
}

// AlreadySelected returns a copy of the ids drawn by selection so far
func (s State) AlreadySelected() map[string]struct{} {
	out := make(map[string]struct{}, len(s.alreadySelected))
	for id := range s.alreadySelected {
		out[id] = struct{}{}
	}
	return out
}
