package mlmodel

import (
	"fmt"
	"sort"

	"github.com/mimir-aip/activelearn/pkg/models"
)

// TreeNode is a node in a binary classification tree
type TreeNode struct {
	IsLeaf       bool      `json:"is_leaf"`
	Flagged      int       `json:"flagged"`   // flagged samples reaching this node
	Unflagged    int       `json:"unflagged"` // unflagged samples reaching this node
	FeatureIndex int       `json:"feature_index,omitempty"`
	Threshold    float64   `json:"threshold,omitempty"`
	Left         *TreeNode `json:"left,omitempty"`  // x[FeatureIndex] <= Threshold
	Right        *TreeNode `json:"right,omitempty"` // x[FeatureIndex] > Threshold
	Depth        int       `json:"depth"`
}

// probability of the flagged class with Laplace smoothing, so a pure leaf
// never reports exactly 0 or 1
func (n *TreeNode) probability() float64 {
	return (float64(n.Flagged) + 1) / (float64(n.Flagged+n.Unflagged) + 2)
}

// DecisionTreeTrainer grows a Gini-impurity decision tree
type DecisionTreeTrainer struct {
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
}

// NewDecisionTreeTrainer creates a trainer, falling back to defaults for
// non-positive hyperparameters
func NewDecisionTreeTrainer(maxDepth, minSamplesSplit, minSamplesLeaf int) *DecisionTreeTrainer {
	if maxDepth <= 0 {
		maxDepth = 8
	}
	if minSamplesSplit <= 0 {
		minSamplesSplit = 4
	}
	if minSamplesLeaf <= 0 {
		minSamplesLeaf = 2
	}
	return &DecisionTreeTrainer{
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		MinSamplesLeaf:  minSamplesLeaf,
	}
}

// Type returns the model type
func (t *DecisionTreeTrainer) Type() models.ModelType {
	return models.ModelTypeDecisionTree
}

// Fit grows a new tree on training
func (t *DecisionTreeTrainer) Fit(training []models.Example) (Model, error) {
	X, y, err := splitTraining(training)
	if err != nil {
		return nil, err
	}
	return t.grow(X, y, allFeatures(len(X[0]))), nil
}

// grow builds a tree considering only the listed feature columns
func (t *DecisionTreeTrainer) grow(X [][]float64, y []bool, features []int) *DecisionTreeModel {
	indices := make([]int, len(X))
	for i := range indices {
		indices[i] = i
	}
	b := &treeBuilder{trainer: t, X: X, y: y, features: features}
	return &DecisionTreeModel{
		Root:        b.build(indices, 0),
		NumFeatures: len(X[0]),
	}
}

type treeBuilder struct {
	trainer  *DecisionTreeTrainer
	X        [][]float64
	y        []bool
	features []int
}

func (b *treeBuilder) build(indices []int, depth int) *TreeNode {
	node := &TreeNode{Depth: depth}
	for _, idx := range indices {
		if b.y[idx] {
			node.Flagged++
		} else {
			node.Unflagged++
		}
	}

	// Stopping criteria
	if depth >= b.trainer.MaxDepth || len(indices) < b.trainer.MinSamplesSplit ||
		node.Flagged == 0 || node.Unflagged == 0 {
		node.IsLeaf = true
		return node
	}

	feature, threshold, gain := b.findBestSplit(indices, node.Flagged)
	if gain <= 0 {
		node.IsLeaf = true
		return node
	}

	left, right := b.splitData(indices, feature, threshold)
	if len(left) < b.trainer.MinSamplesLeaf || len(right) < b.trainer.MinSamplesLeaf {
		node.IsLeaf = true
		return node
	}

	node.FeatureIndex = feature
	node.Threshold = threshold
	node.Left = b.build(left, depth+1)
	node.Right = b.build(right, depth+1)
	return node
}

// findBestSplit sweeps each feature in sorted order and returns the split
// with the largest Gini gain
func (b *treeBuilder) findBestSplit(indices []int, flagged int) (int, float64, float64) {
	n := len(indices)
	parent := gini(flagged, n)

	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	order := make([]int, n)
	for _, feature := range b.features {
		copy(order, indices)
		sort.SliceStable(order, func(i, j int) bool {
			return b.X[order[i]][feature] < b.X[order[j]][feature]
		})

		leftFlagged := 0
		for i := 0; i < n-1; i++ {
			if b.y[order[i]] {
				leftFlagged++
			}
			lo, hi := b.X[order[i]][feature], b.X[order[i+1]][feature]
			if lo == hi {
				continue
			}
			nLeft := i + 1
			nRight := n - nLeft
			weighted := (float64(nLeft)*gini(leftFlagged, nLeft) +
				float64(nRight)*gini(flagged-leftFlagged, nRight)) / float64(n)
			if gain := parent - weighted; gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = (lo + hi) / 2
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}

func (b *treeBuilder) splitData(indices []int, feature int, threshold float64) ([]int, []int) {
	var left, right []int
	for _, idx := range indices {
		if b.X[idx][feature] <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	return left, right
}

// gini impurity of a binary node with pos positives out of n
func gini(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 1 - p*p - (1-p)*(1-p)
}

func allFeatures(d int) []int {
	features := make([]int, d)
	for j := range features {
		features[j] = j
	}
	return features
}

// DecisionTreeModel is a fitted decision tree
type DecisionTreeModel struct {
	Root        *TreeNode `json:"root"`
	NumFeatures int       `json:"num_features"`
}

// PredictProbabilities returns the smoothed flagged fraction at each row's leaf
func (m *DecisionTreeModel) PredictProbabilities(features [][]float64) ([]float64, error) {
	if m.Root == nil {
		return nil, fmt.Errorf("model not trained")
	}
	if err := checkWidth(features, m.NumFeatures); err != nil {
		return nil, err
	}
	out := make([]float64, len(features))
	for i, x := range features {
		out[i] = m.leaf(x).probability()
	}
	return out, nil
}

func (m *DecisionTreeModel) leaf(x []float64) *TreeNode {
	node := m.Root
	for !node.IsLeaf {
		if x[node.FeatureIndex] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

// Depth returns the depth of the deepest leaf
func (m *DecisionTreeModel) Depth() int {
	var walk func(*TreeNode) int
	walk = func(n *TreeNode) int {
		if n == nil {
			return 0
		}
		if n.IsLeaf {
			return n.Depth
		}
		return max(walk(n.Left), walk(n.Right))
	}
	return walk(m.Root)
}
