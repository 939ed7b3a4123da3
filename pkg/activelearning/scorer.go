package activelearning

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mimir-aip/activelearn/pkg/models"
)

// MinWeight is the smallest weight a scorer returns, so that weighted
// sampling can still reach confidently predicted cases.
const MinWeight = 1e-12

// Scorer maps an estimated probability of the flagged class to a
// non-negative sampling weight
type Scorer interface {
	Uncertainty(probability float64) float64
}

// GaussianScorer weights probabilities by a normal density centered on
// the decision point
type GaussianScorer struct {
	density distuv.Normal
}

// NewGaussianScorer creates a scorer peaking at mu with spread sigma
func NewGaussianScorer(mu, sigma float64) (*GaussianScorer, error) {
	if mu < 0 || mu > 1 || math.IsNaN(mu) {
		return nil, fmt.Errorf("%w: mu must be in [0,1], got %v", models.ErrConfiguration, mu)
	}
	if !(sigma > 0) {
		return nil, fmt.Errorf("%w: sigma must be positive, got %v", models.ErrConfiguration, sigma)
	}
	return &GaussianScorer{density: distuv.Normal{Mu: mu, Sigma: sigma}}, nil
}

// Uncertainty returns the density at probability, floored at MinWeight
func (s *GaussianScorer) Uncertainty(probability float64) float64 {
	w := s.density.Prob(probability)
	if math.IsNaN(w) || w < MinWeight {
		return MinWeight
	}
	return w
}
