package ml

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"sort"
)

// TreeTrainer grows a DecisionTree. Params: max_depth (default 3) and
// min_samples_leaf (default 1).
type TreeTrainer struct{}

func (TreeTrainer) Name() string { return "decision_tree" }

func (TreeTrainer) Train(features [][]float64, labels []string, params Params) (Predictor, error) {
	dt := &DecisionTree{}
	if err := dt.Train(features, labels, int(params.Get("max_depth", 3)), int(params.Get("min_samples_leaf", 1))); err != nil {
		return nil, err
	}
	return dt, nil
}

// DecisionTree is a binary tree over numeric thresholds. Leaves hold the
// class frequencies of the training records that reached them.
type DecisionTree struct {
	classes []string
	nodes   []TreeNode
}

type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold"`
	LeftChild  int       `json:"left_child"`
	RightChild int       `json:"right_child"`
	ClassLabel int       `json:"class_label"`
	Probs      []float64 `json:"probs"`
	IsLeaf     bool      `json:"is_leaf"`
}

type treeFile struct {
	Classes []string   `json:"classes"`
	Nodes   []TreeNode `json:"nodes"`
}

func (dt *DecisionTree) Train(features [][]float64, labels []string, maxDepth, minLeaf int) error {
	if err := checkTrainingSet(features, labels); err != nil {
		return err
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}
	if minLeaf <= 0 {
		minLeaf = 1
	}
	classes, ys := classIndex(labels)
	dt.classes = classes
	dt.nodes = dt.buildNode(features, ys, 0, maxDepth, minLeaf)
	return nil
}

func (dt *DecisionTree) Classes() []string {
	return append([]string(nil), dt.classes...)
}

func (dt *DecisionTree) PredictProbability(features [][]float64) ([][]float64, error) {
	out := make([][]float64, len(features))
	for i, row := range features {
		leaf, err := dt.leaf(row)
		if err != nil {
			return nil, err
		}
		out[i] = append([]float64(nil), leaf.Probs...)
	}
	return out, nil
}

// predict returns the majority class of the leaf a record falls into and
// that class's leaf frequency.
func (dt *DecisionTree) predict(features []float64) (string, float64, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return "", 0, err
	}
	return dt.classes[leaf.ClassLabel], leaf.Probs[leaf.ClassLabel], nil
}

func (dt *DecisionTree) leaf(features []float64) (TreeNode, error) {
	if len(dt.nodes) == 0 {
		return TreeNode{}, errors.New("model not trained")
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return TreeNode{}, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return TreeNode{}, errors.New("invalid tree state")
		}
	}
}

func (dt *DecisionTree) Save(path string) error {
	if len(dt.nodes) == 0 {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(treeFile{Classes: dt.classes, Nodes: dt.nodes})
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (dt *DecisionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file treeFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return err
	}
	if len(file.Nodes) == 0 || len(file.Classes) == 0 {
		return errors.New("model file is empty")
	}
	dt.classes = file.Classes
	dt.nodes = file.Nodes
	return nil
}

func (dt *DecisionTree) buildNode(features [][]float64, labels []int, depth, maxDepth, minLeaf int) []TreeNode {
	counts := classCounts(labels, len(dt.classes))
	leaf := []TreeNode{dt.leafNode(counts, len(labels))}
	if depth >= maxDepth || isPure(labels) || len(labels) < 2*minLeaf {
		return leaf
	}

	bestFeature, threshold, ok := findBestSplit(features, labels, len(dt.classes), minLeaf)
	if !ok {
		return leaf
	}

	leftFeatures, leftLabels, rightFeatures, rightLabels := splitData(features, labels, bestFeature, threshold)
	leftNodes := dt.buildNode(leftFeatures, leftLabels, depth+1, maxDepth, minLeaf)
	rightNodes := dt.buildNode(rightFeatures, rightLabels, depth+1, maxDepth, minLeaf)

	root := TreeNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
		ClassLabel: leaf[0].ClassLabel,
		IsLeaf:     false,
	}

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, leftNodes...)
	nodes = append(nodes, rightNodes...)
	return nodes
}

func (dt *DecisionTree) leafNode(counts []int, n int) TreeNode {
	probs := make([]float64, len(counts))
	best := 0
	for c, count := range counts {
		probs[c] = float64(count) / float64(n)
		if count > counts[best] {
			best = c
		}
	}
	return TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		ClassLabel: best,
		Probs:      probs,
		IsLeaf:     true,
	}
}

// findBestSplit tries the median of every feature and keeps the split with
// the lowest weighted gini that leaves at least minLeaf records per side.
func findBestSplit(features [][]float64, labels []int, numClasses, minLeaf int) (int, float64, bool) {
	featureCount := len(features[0])
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.MaxFloat64

	values := make([]float64, len(features))
	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		for i := range features {
			values[i] = features[i][featureIdx]
		}
		threshold := median(values)
		leftLabels, rightLabels := splitLabels(features, labels, featureIdx, threshold)
		if len(leftLabels) < minLeaf || len(rightLabels) < minLeaf || len(leftLabels) == 0 || len(rightLabels) == 0 {
			continue
		}
		impurity := weightedGini(leftLabels, rightLabels, numClasses)
		if impurity < bestImpurity {
			bestImpurity = impurity
			bestFeature = featureIdx
			bestThreshold = threshold
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitData(features [][]float64, labels []int, featureIdx int, threshold float64) ([][]float64, []int, [][]float64, []int) {
	leftFeatures := make([][]float64, 0)
	leftLabels := make([]int, 0)
	rightFeatures := make([][]float64, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftFeatures = append(leftFeatures, feature)
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightFeatures = append(rightFeatures, feature)
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftFeatures, leftLabels, rightFeatures, rightLabels
}

func splitLabels(features [][]float64, labels []int, featureIdx int, threshold float64) ([]int, []int) {
	leftLabels := make([]int, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftLabels, rightLabels
}

func weightedGini(leftLabels, rightLabels []int, numClasses int) float64 {
	leftWeight := float64(len(leftLabels))
	rightWeight := float64(len(rightLabels))
	total := leftWeight + rightWeight
	return (leftWeight/total)*gini(leftLabels, numClasses) + (rightWeight/total)*gini(rightLabels, numClasses)
}

func gini(labels []int, numClasses int) float64 {
	if len(labels) == 0 {
		return 0
	}
	impurity := 1.0
	for _, count := range classCounts(labels, numClasses) {
		prob := float64(count) / float64(len(labels))
		impurity -= prob * prob
	}
	return impurity
}

func classCounts(labels []int, numClasses int) []int {
	counts := make([]int, numClasses)
	for _, label := range labels {
		counts[label]++
	}
	return counts
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func isPure(labels []int) bool {
	if len(labels) == 0 {
		return true
	}
	first := labels[0]
	for _, label := range labels[1:] {
		if label != first {
			return false
		}
	}
	return true
}
