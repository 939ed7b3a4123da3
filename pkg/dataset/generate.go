package dataset

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mimir-aip/activelearn/pkg/models"
)

// GeneratorOptions shapes a synthetic two-cluster pool
type GeneratorOptions struct {
	Flagged    int     // number of positive examples
	Unflagged  int     // number of negative examples
	Features   int     // feature vector width
	Separation float64 // distance between class means along every feature
	Noise      float64 // per-feature standard deviation
}

// DefaultGeneratorOptions returns a balanced, moderately overlapping pool of 1000
func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{
		Flagged:    500,
		Unflagged:  500,
		Features:   5,
		Separation: 1.0,
		Noise:      1.0,
	}
}

// Generate draws a synthetic pool: each class is an isotropic Gaussian
// centered at ±Separation/2. Ids are assigned after shuffling.
func Generate(opts GeneratorOptions, rng *rand.Rand) ([]models.Example, []string, error) {
	if opts.Features < 1 {
		return nil, nil, fmt.Errorf("%w: generator needs at least one feature", models.ErrConfiguration)
	}
	if opts.Flagged < 0 || opts.Unflagged < 0 || opts.Flagged+opts.Unflagged == 0 {
		return nil, nil, fmt.Errorf("%w: generator needs a positive example count", models.ErrConfiguration)
	}
	if opts.Noise <= 0 {
		return nil, nil, fmt.Errorf("%w: generator noise must be positive", models.ErrConfiguration)
	}

	draw := func(flagged bool) models.Example {
		center := -opts.Separation / 2
		if flagged {
			center = opts.Separation / 2
		}
		dist := distuv.Normal{Mu: center, Sigma: opts.Noise, Src: rng}
		features := make([]float64, opts.Features)
		for j := range features {
			features[j] = dist.Rand()
		}
		return models.Example{Features: features, Flagged: flagged}
	}

	examples := make([]models.Example, 0, opts.Flagged+opts.Unflagged)
	for i := 0; i < opts.Flagged; i++ {
		examples = append(examples, draw(true))
	}
	for i := 0; i < opts.Unflagged; i++ {
		examples = append(examples, draw(false))
	}
	rng.Shuffle(len(examples), func(i, j int) {
		examples[i], examples[j] = examples[j], examples[i]
	})
	for i := range examples {
		examples[i].ID = fmt.Sprintf("case-%05d", i)
	}

	names := make([]string, opts.Features)
	for j := range names {
		names[j] = fmt.Sprintf("f%d", j+1)
	}
	return examples, names, nil
}
