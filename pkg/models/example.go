package models

// Example is a single labeled record of the pool. Flagged is the ground truth
// label and also the stratification key.
type Example struct {
	ID       string    `json:"id"`
	Features []float64 `json:"features"`
	Flagged  bool      `json:"flagged"`
}

// Case returns the example with its label hidden.
func (e Example) Case() Case {
	return Case{ID: e.ID, Features: e.Features}
}

// Case is an example as seen by the selection process: features only, label
// unknown until an oracle reveals it.
type Case struct {
	ID       string    `json:"id"`
	Features []float64 `json:"features"`
}

// Cases hides the labels of a slice of examples.
func Cases(examples []Example) []Case {
	cases := make([]Case, len(examples))
	for i, e := range examples {
		cases[i] = e.Case()
	}
	return cases
}

// IDs returns the identifiers of examples in order.
func IDs(examples []Example) []string {
	ids := make([]string, len(examples))
	for i, e := range examples {
		ids[i] = e.ID
	}
	return ids
}

// FeatureMatrix returns the feature rows of examples in order.
func FeatureMatrix(examples []Example) [][]float64 {
	rows := make([][]float64, len(examples))
	for i, e := range examples {
		rows[i] = e.Features
	}
	return rows
}

// Labels returns the ground truth labels of examples in order.
func Labels(examples []Example) []bool {
	labels := make([]bool, len(examples))
	for i, e := range examples {
		labels[i] = e.Flagged
	}
	return labels
}
