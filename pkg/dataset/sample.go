package dataset

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/mimir-aip/activelearn/pkg/models"
)

// SampleIndices draws k distinct indices uniformly from [0, n).
func SampleIndices(n, k int, rng *rand.Rand) ([]int, error) {
	if k < 0 {
		return nil, fmt.Errorf("%w: negative sample size %d", models.ErrInvalidBatchSize, k)
	}
	if k > n {
		return nil, fmt.Errorf("%w: requested %d of %d", models.ErrInsufficientData, k, n)
	}
	if k == 0 {
		return []int{}, nil
	}
	idxs := make([]int, k)
	sampleuv.WithoutReplacement(idxs, n, rng)
	return idxs, nil
}

// SampleExamples draws k distinct examples uniformly without replacement.
func SampleExamples(examples []models.Example, k int, rng *rand.Rand) ([]models.Example, error) {
	idxs, err := SampleIndices(len(examples), k, rng)
	if err != nil {
		return nil, err
	}
	out := make([]models.Example, len(idxs))
	for i, idx := range idxs {
		out[i] = examples[idx]
	}
	return out, nil
}

// Exclude returns the examples whose id is not in skip, preserving order.
func Exclude(examples []models.Example, skip map[string]struct{}) []models.Example {
	out := make([]models.Example, 0, len(examples))
	for _, e := range examples {
		if _, ok := skip[e.ID]; !ok {
			out = append(out, e)
		}
	}
	return out
}

// IDSet collects the ids of examples.
func IDSet(examples []models.Example) map[string]struct{} {
	set := make(map[string]struct{}, len(examples))
	for _, e := range examples {
		set[e.ID] = struct{}{}
	}
	return set
}

// NewRand returns a PCG-backed generator for seed. stream separates
// generators derived from the same seed.
func NewRand(seed int64, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), stream))
}

// DeriveSeeds draws n child seeds from rng, in order.
func DeriveSeeds(rng *rand.Rand, n int) []int64 {
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = rng.Int64()
	}
	return seeds
}
