package index

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/motion.match/internal/config"
	"github.com/banshee-data/motion.match/internal/monitoring"
	"github.com/banshee-data/motion.match/internal/motion/cost"
	"github.com/banshee-data/motion.match/internal/motion/feature"
	"github.com/banshee-data/motion.match/internal/motion/posedb"
	"github.com/banshee-data/motion.match/internal/motion/skeleton"
)

// ErrStale is returned when an index does not match its database.
var ErrStale = errors.New("optimisation index does not match pose database")

// Config holds the index build parameters.
type Config struct {
	Enabled  bool
	LeafSize int // maximum poses per leaf box
	MaxDepth int // maximum number of layers below the root
}

// ConfigFromTuning builds a Config from a loaded MatchConfig.
func ConfigFromTuning(cfg *config.MatchConfig) Config {
	return Config{
		Enabled:  cfg.GetIndexEnabled(),
		LeafSize: cfg.GetIndexLeafSize(),
		MaxDepth: cfg.GetIndexMaxDepth(),
	}
}

func (c Config) leafSize() int {
	if c.LeafSize < 1 {
		return 16
	}
	return c.LeafSize
}

func (c Config) maxDepth() int {
	if c.MaxDepth < 1 {
		return 12
	}
	return c.MaxDepth
}

// node is one bounding box. Leaves have Left == -1 and own IDs[Start:End].
type node struct {
	Lo, Hi      []float64
	Left, Right int
	Start, End  int
	MinFavour   float64
	Depth       int
}

func (n *node) leaf() bool { return n.Left < 0 }

type tree struct {
	Traits uint64
	Nodes  []node
	IDs    []int
}

// Index is a set of bounding-box trees, one per trait partition.
type Index struct {
	cfg       Config
	db        *posedb.Database
	groups    []feature.Group
	trees     map[uint64]*tree
	poseCount int
	stride    int
}

// Build constructs trees for every trait partition of db. Split axes are
// chosen by extent scaled with the partition's calibration weights.
func Build(db *posedb.Database, cfg Config) (*Index, error) {
	if db == nil || db.Len() == 0 {
		return nil, posedb.ErrEmpty
	}
	ix := &Index{
		cfg:       cfg,
		db:        db,
		groups:    db.Schema.Groups(),
		trees:     make(map[uint64]*tree),
		poseCount: db.Len(),
		stride:    db.AtomCount(),
	}
	for _, traits := range db.TraitGroups() {
		ids := append([]int(nil), db.Partition(traits)...)
		b := builder{ix: ix, weights: db.Calibration.Weights(traits), t: &tree{Traits: traits, IDs: ids}}
		b.build(0, len(ids), 0)
		ix.trees[traits] = b.t
	}
	st := ix.Stats()
	monitoring.Logf("[index] %s: %d trees, %d nodes, %d leaves, depth %d", db.Name, st.Trees, st.Nodes, st.Leaves, st.MaxDepth)
	return ix, nil
}

type builder struct {
	ix      *Index
	weights []float64
	t       *tree
}

func (b *builder) build(start, end, depth int) int {
	db := b.ix.db
	n := node{Left: -1, Right: -1, Start: start, End: end, Depth: depth, MinFavour: math.Inf(1)}
	n.Lo = make([]float64, b.ix.stride)
	n.Hi = make([]float64, b.ix.stride)
	for k := range n.Lo {
		n.Lo[k], n.Hi[k] = math.Inf(1), math.Inf(-1)
	}
	for _, id := range b.t.IDs[start:end] {
		row := db.Row(id)
		for k, v := range row {
			n.Lo[k] = math.Min(n.Lo[k], v)
			n.Hi[k] = math.Max(n.Hi[k], v)
		}
		n.MinFavour = math.Min(n.MinFavour, db.Pose(id).Favour)
	}

	self := len(b.t.Nodes)
	b.t.Nodes = append(b.t.Nodes, n)
	if end-start <= b.ix.cfg.leafSize() || depth >= b.ix.cfg.maxDepth() {
		return self
	}
	axis := b.splitAxis(&n)
	if axis < 0 {
		return self
	}
	ids := b.t.IDs[start:end]
	sort.SliceStable(ids, func(i, j int) bool { return db.Row(ids[i])[axis] < db.Row(ids[j])[axis] })
	mid := start + (end-start)/2
	left := b.build(start, mid, depth+1)
	right := b.build(mid, end, depth+1)
	b.t.Nodes[self].Left, b.t.Nodes[self].Right = left, right
	return self
}

// splitAxis returns the atom with the largest weighted extent, or -1 when
// every row in the box is identical.
func (b *builder) splitAxis(n *node) int {
	best, bestScore := -1, 0.0
	for gi, g := range b.ix.groups {
		w := 1.0
		if b.weights != nil {
			w = b.weights[gi]
		}
		for k := g.Offset; k < g.Offset+g.Size; k++ {
			extent := n.Hi[k] - n.Lo[k]
			score := w * extent
			if g.Metric == feature.MetricSquared {
				score *= extent
			}
			if score > bestScore {
				best, bestScore = k, score
			}
		}
	}
	return best
}

// Valid reports whether the index still matches its database.
func (ix *Index) Valid() bool {
	return ix != nil && ix.db != nil && ix.db.Len() == ix.poseCount && ix.db.AtomCount() == ix.stride
}

// Has reports whether a tree exists for traits.
func (ix *Index) Has(traits uint64) bool {
	if ix == nil {
		return false
	}
	_, ok := ix.trees[traits]
	return ok
}

// Stats summarises the index shape.
type Stats struct {
	Trees, Nodes, Leaves, MaxDepth int
}

// Stats returns the index shape.
func (ix *Index) Stats() Stats {
	var st Stats
	if ix == nil {
		return st
	}
	st.Trees = len(ix.trees)
	for _, t := range ix.trees {
		st.Nodes += len(t.Nodes)
		for i := range t.Nodes {
			if t.Nodes[i].leaf() {
				st.Leaves++
			}
			if t.Nodes[i].Depth > st.MaxDepth {
				st.MaxDepth = t.Nodes[i].Depth
			}
		}
	}
	return st
}

// lowerBound returns a value no larger than the scaled cost of any pose
// inside n.
func (ix *Index) lowerBound(eval *cost.Evaluator, n *node, query, weights []float64) float64 {
	var sum float64
	for gi, g := range ix.groups {
		w := 1.0
		if weights != nil {
			w = weights[gi]
		}
		if w == 0 {
			continue
		}
		var d float64
		switch g.Metric {
		case feature.MetricAngle:
			d = arcDistance(query[g.Offset], n.Lo[g.Offset], n.Hi[g.Offset])
		case feature.MetricAbsolute:
			d = math.Abs(query[g.Offset] - clamp(query[g.Offset], n.Lo[g.Offset], n.Hi[g.Offset]))
		default:
			for k := g.Offset; k < g.Offset+g.Size; k++ {
				delta := query[k] - clamp(query[k], n.Lo[k], n.Hi[k])
				d += delta * delta
			}
		}
		sum += w * d
	}
	return sum * eval.MinScale(n.MinFavour)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// arcDistance returns the shortest angular distance from q to the arc of
// wrapped headings [lo, hi].
func arcDistance(q, lo, hi float64) float64 {
	q = skeleton.WrapAngle(q)
	if q >= lo && q <= hi {
		return 0
	}
	a := math.Abs(skeleton.AngleDelta(q, lo))
	b := math.Abs(skeleton.AngleDelta(q, hi))
	return math.Min(a, b)
}

// String describes the index for logs.
func (ix *Index) String() string {
	st := ix.Stats()
	return fmt.Sprintf("index{trees=%d nodes=%d leaves=%d depth=%d}", st.Trees, st.Nodes, st.Leaves, st.MaxDepth)
}
