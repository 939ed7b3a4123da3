package mlmodel

import (
	"fmt"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/mimir-aip/activelearn/pkg/models"
)

// RandomForestTrainer fits a bagged ensemble of decision trees. Each tree
// sees a bootstrap sample and a random subset of sqrt(d) features.
type RandomForestTrainer struct {
	NumTrees        int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Seed            uint64
	Workers         int
}

// NewRandomForestTrainer creates a forest trainer. Fitting the same data
// with the same seed always yields the same forest.
func NewRandomForestTrainer(numTrees int, seed uint64) *RandomForestTrainer {
	if numTrees <= 0 {
		numTrees = 50
	}
	return &RandomForestTrainer{
		NumTrees:        numTrees,
		MaxDepth:        6,
		MinSamplesSplit: 4,
		MinSamplesLeaf:  2,
		Seed:            seed,
		Workers:         4,
	}
}

// Type returns the model type
func (t *RandomForestTrainer) Type() models.ModelType {
	return models.ModelTypeRandomForest
}

// Fit trains NumTrees trees in parallel
func (t *RandomForestTrainer) Fit(training []models.Example) (Model, error) {
	X, y, err := splitTraining(training)
	if err != nil {
		return nil, err
	}
	d := len(X[0])
	maxFeatures := max(1, int(math.Sqrt(float64(d))))

	// Draw every tree's sample and feature subset up front so the result
	// does not depend on goroutine scheduling.
	rng := rand.New(rand.NewPCG(t.Seed, uint64(len(X))))
	samples := make([][]int, t.NumTrees)
	subsets := make([][]int, t.NumTrees)
	for i := range samples {
		samples[i] = bootstrapSample(len(X), rng)
		subsets[i] = rng.Perm(d)[:maxFeatures]
	}

	tree := NewDecisionTreeTrainer(t.MaxDepth, t.MinSamplesSplit, t.MinSamplesLeaf)
	trees := make([]*DecisionTreeModel, t.NumTrees)

	var g errgroup.Group
	g.SetLimit(max(1, t.Workers))
	for i := range trees {
		g.Go(func() error {
			bootX := make([][]float64, len(samples[i]))
			bootY := make([]bool, len(samples[i]))
			for k, idx := range samples[i] {
				bootX[k] = X[idx]
				bootY[k] = y[idx]
			}
			trees[i] = tree.grow(bootX, bootY, subsets[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("forest training failed: %w", err)
	}

	return &RandomForestModel{Trees: trees, NumFeatures: d}, nil
}

func bootstrapSample(n int, rng *rand.Rand) []int {
	sample := make([]int, n)
	for i := range sample {
		sample[i] = rng.IntN(n)
	}
	return sample
}

// RandomForestModel averages the leaf probabilities of its trees
type RandomForestModel struct {
	Trees       []*DecisionTreeModel `json:"trees"`
	NumFeatures int                  `json:"num_features"`
}

// PredictProbabilities returns the mean tree probability for each row
func (m *RandomForestModel) PredictProbabilities(features [][]float64) ([]float64, error) {
	if len(m.Trees) == 0 {
		return nil, fmt.Errorf("model not trained")
	}
	if err := checkWidth(features, m.NumFeatures); err != nil {
		return nil, err
	}
	out := make([]float64, len(features))
	for i, x := range features {
		sum := 0.0
		for _, tree := range m.Trees {
			sum += tree.leaf(x).probability()
		}
		out[i] = sum / float64(len(m.Trees))
	}
	return out, nil
}
