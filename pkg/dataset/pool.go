package dataset

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/mimir-aip/activelearn/pkg/models"
)

// fingerprintNamespace scopes pool fingerprints so they never collide with
// run ids or other name-based UUIDs.
var fingerprintNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://mimir-aip/activelearn/pool"))

// Pool is the immutable labeled pool of an experiment
type Pool struct {
	examples []models.Example
	index    map[string]int
}

// NewPool indexes examples by id. Ids must be unique and every example must
// carry the same number of features.
func NewPool(examples []models.Example) (*Pool, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("%w: empty pool", models.ErrInsufficientData)
	}

	width := len(examples[0].Features)
	index := make(map[string]int, len(examples))
	for i, e := range examples {
		if e.ID == "" {
			return nil, fmt.Errorf("example %d has no id", i)
		}
		if _, dup := index[e.ID]; dup {
			return nil, fmt.Errorf("duplicate example id %q", e.ID)
		}
		if len(e.Features) != width {
			return nil, fmt.Errorf("example %q has %d features, expected %d", e.ID, len(e.Features), width)
		}
		index[e.ID] = i
	}

	copied := make([]models.Example, len(examples))
	copy(copied, examples)
	return &Pool{examples: copied, index: index}, nil
}

// Examples returns the pool in load order. Callers must not modify it.
func (p *Pool) Examples() []models.Example {
	return p.examples
}

// Len returns the number of examples
func (p *Pool) Len() int {
	return len(p.examples)
}

// NumFeatures returns the feature vector width
func (p *Pool) NumFeatures() int {
	return len(p.examples[0].Features)
}

// Get looks up an example by id
func (p *Pool) Get(id string) (models.Example, bool) {
	i, ok := p.index[id]
	if !ok {
		return models.Example{}, false
	}
	return p.examples[i], true
}

// ClassCounts returns the number of flagged and unflagged examples
func (p *Pool) ClassCounts() (flagged, unflagged int) {
	for _, e := range p.examples {
		if e.Flagged {
			flagged++
		} else {
			unflagged++
		}
	}
	return flagged, unflagged
}

// Fingerprint identifies the pool contents. Two pools with the same examples
// in the same order share a fingerprint.
func (p *Pool) Fingerprint() string {
	buf := make([]byte, 0, 64*len(p.examples))
	for _, e := range p.examples {
		buf = append(buf, e.ID...)
		buf = append(buf, 0)
		buf = strconv.AppendBool(buf, e.Flagged)
		for _, f := range e.Features {
			buf = append(buf, ',')
			buf = strconv.AppendFloat(buf, f, 'g', -1, 64)
		}
		buf = append(buf, '\n')
	}
	return uuid.NewSHA1(fingerprintNamespace, buf).String()
}
