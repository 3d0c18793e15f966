package classifier

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"
	"sync"
)

// ForestParams configures the ensemble
type ForestParams struct {
	Trees       int    `msgpack:"trees"`
	MaxDepth    int    `msgpack:"max_depth"` // 0 grows until leaves are pure
	MinLeafSize int    `msgpack:"min_leaf_size"`
	Seed        uint64 `msgpack:"seed"`
}

// DefaultForestParams returns 100 fully grown trees
func DefaultForestParams() ForestParams {
	return ForestParams{Trees: 100, MinLeafSize: 1, Seed: 1}
}

// Forest is a bagged ensemble of CART trees. Each tree sees a bootstrap
// sample and considers √d random features per split; the ensemble
// probability is the mean of the leaf class distributions. Classes are the
// distinct training labels in ascending order.
type Forest struct {
	params  ForestParams
	classes []Label
	dim     int
	trees   []tree
}

type tree struct {
	Nodes []node `msgpack:"nodes"`
}

// node is a split when Feature >= 0 and a leaf otherwise
type node struct {
	Feature   int       `msgpack:"f"`
	Threshold float64   `msgpack:"t"`
	Left      int       `msgpack:"l"`
	Right     int       `msgpack:"r"`
	Dist      []float64 `msgpack:"d,omitempty"`
}

// NewForest creates an unfitted forest. Non-positive params take defaults.
func NewForest(params ForestParams) *Forest {
	defaults := DefaultForestParams()
	if params.Trees <= 0 {
		params.Trees = defaults.Trees
	}
	if params.MinLeafSize <= 0 {
		params.MinLeafSize = defaults.MinLeafSize
	}
	return &Forest{params: params}
}

func (f *Forest) Kind() string { return KindForest }

func (f *Forest) Classes() []Label {
	return slices.Clone(f.classes)
}

// Fit grows the trees over a bounded worker pool. Each tree draws from its
// own generator seeded from Seed and its index, so results do not depend on
// scheduling.
func (f *Forest) Fit(X [][]float64, y []Label) error {
	dim, err := validateTraining(X, y)
	if err != nil {
		return err
	}

	classes := sortedLabels(y)
	classIndex := make(map[Label]int, len(classes))
	for i, c := range classes {
		classIndex[c] = i
	}
	targets := make([]int, len(y))
	for i, label := range y {
		targets[i] = classIndex[label]
	}

	trees := make([]tree, f.params.Trees)
	jobs := make(chan int, f.params.Trees)
	for i := range f.params.Trees {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for range max(1, min(runtime.NumCPU(), f.params.Trees)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				g := &grower{
					X:        X,
					y:        targets,
					classes:  len(classes),
					dim:      dim,
					maxDepth: f.params.MaxDepth,
					minLeaf:  f.params.MinLeafSize,
					rng:      rand.New(rand.NewPCG(f.params.Seed, uint64(idx)+1)),
				}
				trees[idx] = g.grow()
			}
		}()
	}
	wg.Wait()

	f.classes = classes
	f.dim = dim
	f.trees = trees
	return nil
}

// PredictProba averages the leaf distributions of every tree
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(f.trees) == 0 {
		return nil, ErrNotFitted
	}
	if len(x) != f.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(x), f.dim)
	}

	probs := make([]float64, len(f.classes))
	for _, t := range f.trees {
		dist := t.leaf(x)
		for c := range probs {
			probs[c] += dist[c]
		}
	}
	for c := range probs {
		probs[c] /= float64(len(f.trees))
	}
	return probs, nil
}

func (t tree) leaf(x []float64) []float64 {
	i := 0
	for t.Nodes[i].Feature >= 0 {
		n := t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Dist
}

// grower builds one tree
type grower struct {
	X        [][]float64
	y        []int
	classes  int
	dim      int
	maxDepth int
	minLeaf  int
	rng      *rand.Rand
	nodes    []node
}

func (g *grower) grow() tree {
	n := len(g.X)
	sample := make([]int, n)
	for i := range sample {
		sample[i] = g.rng.IntN(n)
	}

	g.nodes = g.nodes[:0]
	g.split(sample, 0)
	return tree{Nodes: g.nodes}
}

// split appends the node for sample and returns its index
func (g *grower) split(sample []int, depth int) int {
	counts := make([]float64, g.classes)
	for _, i := range sample {
		counts[g.y[i]]++
	}

	idx := len(g.nodes)
	g.nodes = append(g.nodes, node{Feature: -1})

	pure := slices.Index(counts, float64(len(sample))) >= 0
	if pure || len(sample) < 2*g.minLeaf || (g.maxDepth > 0 && depth >= g.maxDepth) {
		g.nodes[idx].Dist = normalize(counts)
		return idx
	}

	feature, threshold, ok := g.bestSplit(sample, counts)
	if !ok {
		g.nodes[idx].Dist = normalize(counts)
		return idx
	}

	var left, right []int
	for _, i := range sample {
		if g.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := g.split(left, depth+1)
	r := g.split(right, depth+1)
	g.nodes[idx] = node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return idx
}

// bestSplit searches √d random features, continuing past that budget only
// while every feature tried so far was constant on the sample
func (g *grower) bestSplit(sample []int, counts []float64) (int, float64, bool) {
	mtry := max(1, int(math.Sqrt(float64(g.dim))))
	features := g.rng.Perm(g.dim)

	parent := gini(counts, float64(len(sample)))
	bestGain := 0.0
	bestFeature, bestThreshold := -1, 0.0

	order := slices.Clone(sample)
	leftCounts := make([]float64, g.classes)
	rightCounts := make([]float64, g.classes)

	evaluated := 0
	for _, feature := range features {
		if evaluated >= mtry && bestFeature >= 0 {
			break
		}

		slices.SortFunc(order, func(a, b int) int {
			switch va, vb := g.X[a][feature], g.X[b][feature]; {
			case va < vb:
				return -1
			case va > vb:
				return 1
			default:
				return 0
			}
		})
		if g.X[order[0]][feature] == g.X[order[len(order)-1]][feature] {
			continue
		}
		evaluated++

		clear(leftCounts)
		copy(rightCounts, counts)
		total := float64(len(order))

		for k := 0; k < len(order)-1; k++ {
			c := g.y[order[k]]
			leftCounts[c]++
			rightCounts[c]--

			cur, next := g.X[order[k]][feature], g.X[order[k+1]][feature]
			if cur == next {
				continue
			}
			nl := float64(k + 1)
			nr := total - nl
			if int(nl) < g.minLeaf || int(nr) < g.minLeaf {
				continue
			}

			impurity := (nl*gini(leftCounts, nl) + nr*gini(rightCounts, nr)) / total
			if gain := parent - impurity; gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = cur + (next-cur)/2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func gini(counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / total
		sum += p * p
	}
	return 1 - sum
}

func normalize(counts []float64) []float64 {
	total := 0.0
	for _, c := range counts {
		total += c
	}
	dist := make([]float64, len(counts))
	if total == 0 {
		return dist
	}
	for i, c := range counts {
		dist[i] = c / total
	}
	return dist
}
