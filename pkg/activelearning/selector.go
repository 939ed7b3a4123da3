package activelearning

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/mimir-aip/activelearn/pkg/dataset"
	"github.com/mimir-aip/activelearn/pkg/mlmodel"
	"github.com/mimir-aip/activelearn/pkg/models"
)

// CaseSelector picks the next batch of cases to label
type CaseSelector struct {
	scorer        Scorer
	batchSize     int
	presampleSize int
}

// NewCaseSelector creates a selector drawing batchSize cases from a
// presample of at most presampleSize
func NewCaseSelector(scorer Scorer, batchSize, presampleSize int) (*CaseSelector, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("%w: batch size must be at least 1, got %d", models.ErrInvalidBatchSize, batchSize)
	}
	if presampleSize < batchSize {
		return nil, fmt.Errorf("%w: presample size %d is smaller than batch size %d",
			models.ErrInvalidBatchSize, presampleSize, batchSize)
	}
	return &CaseSelector{
		scorer:        scorer,
		batchSize:     batchSize,
		presampleSize: presampleSize,
	}, nil
}

// BatchSize returns the number of cases returned by each Select
func (s *CaseSelector) BatchSize() int {
	return s.batchSize
}

// Select draws min(len(available), presample size) candidates uniformly,
// scores them with model and returns a batch drawn without replacement
// with probability proportional to uncertainty.
func (s *CaseSelector) Select(model mlmodel.Model, available []models.Case, rng *rand.Rand) ([]models.Case, error) {
	k := min(len(available), s.presampleSize)
	if s.batchSize > k {
		return nil, fmt.Errorf("%w: batch of %d requested from %d candidates",
			models.ErrInvalidBatchSize, s.batchSize, k)
	}

	idxs, err := dataset.SampleIndices(len(available), k, rng)
	if err != nil {
		return nil, err
	}
	candidates := make([]models.Case, k)
	features := make([][]float64, k)
	for i, idx := range idxs {
		candidates[i] = available[idx]
		features[i] = available[idx].Features
	}

	probs, err := model.PredictProbabilities(features)
	if err != nil {
		return nil, fmt.Errorf("failed to score candidates: %w", err)
	}
	if len(probs) != k {
		return nil, fmt.Errorf("model returned %d probabilities for %d candidates", len(probs), k)
	}

	weights := make([]float64, k)
	for i, p := range probs {
		weights[i] = s.scorer.Uncertainty(p)
	}

	sampler := sampleuv.NewWeighted(weights, rng)
	selected := make([]models.Case, 0, s.batchSize)
	for len(selected) < s.batchSize {
		idx, ok := sampler.Take()
		if !ok {
			return nil, fmt.Errorf("%w: weighted sampler exhausted after %d cases",
				models.ErrInvalidBatchSize, len(selected))
		}
		selected = append(selected, candidates[idx])
	}
	return selected, nil
}
