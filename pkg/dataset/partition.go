package dataset

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/mimir-aip/activelearn/pkg/models"
)

// Partition splits the pool into a test set of testSize examples drawn
// uniformly without replacement and the unlabeled pool holding the rest.
// Both slices keep pool order.
func Partition(pool *Pool, testSize int, rng *rand.Rand) (test, unlabeled []models.Example, err error) {
	if testSize < 1 {
		return nil, nil, fmt.Errorf("%w: test_set_size must be at least 1, got %d", models.ErrConfiguration, testSize)
	}
	if testSize >= pool.Len() {
		return nil, nil, fmt.Errorf("%w: test set of %d leaves no unlabeled examples in a pool of %d",
			models.ErrInsufficientData, testSize, pool.Len())
	}

	idxs, err := SampleIndices(pool.Len(), testSize, rng)
	if err != nil {
		return nil, nil, err
	}
	sort.Ints(idxs)

	inTest := make([]bool, pool.Len())
	for _, idx := range idxs {
		inTest[idx] = true
	}

	test = make([]models.Example, 0, testSize)
	unlabeled = make([]models.Example, 0, pool.Len()-testSize)
	for i, e := range pool.Examples() {
		if inTest[i] {
			test = append(test, e)
		} else {
			unlabeled = append(unlabeled, e)
		}
	}
	return test, unlabeled, nil
}

// StratifiedInitialSet draws perClass examples of each label value from the
// full pool, unflagged first, and concatenates them. The draw ignores any
// test split.
func StratifiedInitialSet(pool *Pool, perClass int, rng *rand.Rand) ([]models.Example, error) {
	if perClass < 1 {
		return nil, fmt.Errorf("%w: initial_examples_per_class must be at least 1, got %d", models.ErrConfiguration, perClass)
	}

	var unflagged, flagged []models.Example
	for _, e := range pool.Examples() {
		if e.Flagged {
			flagged = append(flagged, e)
		} else {
			unflagged = append(unflagged, e)
		}
	}

	training := make([]models.Example, 0, 2*perClass)
	for _, stratum := range []struct {
		label   bool
		members []models.Example
	}{
		{false, unflagged},
		{true, flagged},
	} {
		if len(stratum.members) < perClass {
			return nil, fmt.Errorf("%w: class flagged=%t has %d examples, %d requested",
				models.ErrInsufficientData, stratum.label, len(stratum.members), perClass)
		}
		drawn, err := SampleExamples(stratum.members, perClass, rng)
		if err != nil {
			return nil, err
		}
		training = append(training, drawn...)
	}
	return training, nil
}
