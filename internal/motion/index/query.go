package index

import (
	"container/heap"
	"math"
	"sort"

	"github.com/banshee-data/motion.match/internal/motion/cost"
)

type entry struct {
	node  int
	bound float64
}

// boundHeap orders nodes by ascending lower bound.
type boundHeap []entry

func (h boundHeap) Len() int            { return len(h) }
func (h boundHeap) Less(i, j int) bool  { return h[i].bound < h[j].bound }
func (h boundHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *boundHeap) Push(x interface{}) { *h = append(*h, x.(entry)) }
func (h *boundHeap) Pop() interface{} {
	old := *h
	e := old[len(old)-1]
	*h = old[:len(old)-1]
	return e
}

// Scratch holds the per-caller buffers of a query. It must not be shared
// between concurrent queries.
type Scratch struct {
	open       boundHeap
	candidates []int
	// Visited and Evaluated count the boxes and poses touched by the last
	// query.
	Visited   int
	Evaluated int
	// Best is the lowest-cost candidate of the last query, the lowest id
	// on ties, or -1. BestCost is its cost.
	Best     int
	BestCost float64
}

// NewScratch returns an empty Scratch.
func NewScratch() *Scratch {
	return &Scratch{}
}

// Query returns the candidate poses of the traits partition for query, in
// ascending pose id, and leaves the best of them in s. Poses are costed and
// boxes bounded with eval, which must be the evaluator of the caller's own
// ranking. The slice aliases s and is valid until the next query with s.
// naturalNext is the pose continuing playback reaches, or -1.
//
// A nil result means the index cannot answer (invalid, stale or no tree
// for traits) and the caller should scan the partition linearly.
func (ix *Index) Query(eval *cost.Evaluator, query []float64, traits uint64, weights []float64, naturalNext int, s *Scratch) []int {
	if !ix.Valid() || len(query) != ix.stride {
		return nil
	}
	t, ok := ix.trees[traits]
	if !ok || len(t.Nodes) == 0 {
		return nil
	}

	s.open = s.open[:0]
	s.candidates = s.candidates[:0]
	s.Visited, s.Evaluated = 0, 0
	s.Best, s.BestCost = -1, math.Inf(1)

	heap.Push(&s.open, entry{node: 0, bound: ix.lowerBound(eval, &t.Nodes[0], query, weights)})
	for s.open.Len() > 0 {
		e := heap.Pop(&s.open).(entry)
		// Boxes bounded exactly at best may hold a tie and are kept.
		if e.bound > slack(s.BestCost) {
			break
		}
		n := &t.Nodes[e.node]
		s.Visited++
		if !n.leaf() {
			for _, child := range [2]int{n.Left, n.Right} {
				if b := ix.lowerBound(eval, &t.Nodes[child], query, weights); b <= slack(s.BestCost) {
					heap.Push(&s.open, entry{node: child, bound: b})
				}
			}
			continue
		}
		for _, id := range t.IDs[n.Start:n.End] {
			s.Evaluated++
			c, done := eval.CostBelow(query, ix.db, id, weights, naturalNext, s.BestCost)
			if done && (c < s.BestCost || c == s.BestCost && id < s.Best) {
				s.Best, s.BestCost = id, c
			}
		}
		s.candidates = append(s.candidates, t.IDs[n.Start:n.End]...)
	}
	sort.Ints(s.candidates)
	return s.candidates
}

// slack widens a pruning limit by a rounding margin so a box whose bound
// equals a pose's exact cost is never discarded.
func slack(best float64) float64 {
	return best + 1e-9*(1+best)
}
