package search

import (
	"fmt"
	"math"

	"github.com/banshee-data/motion.match/internal/monitoring"
	"github.com/banshee-data/motion.match/internal/motion/cost"
	"github.com/banshee-data/motion.match/internal/motion/feature"
	"github.com/banshee-data/motion.match/internal/motion/index"
	"github.com/banshee-data/motion.match/internal/motion/posedb"
	"github.com/banshee-data/motion.match/internal/motion/skeleton"
	"github.com/go-gl/mathgl/mgl64"
)

// State is the path a selection took.
type State int

const (
	NoSearchNeeded State = iota
	NextPoseToleranceCheck
	LinearScan
	OptimizedScan
)

func (s State) String() string {
	switch s {
	case NoSearchNeeded:
		return "no_search_needed"
	case NextPoseToleranceCheck:
		return "next_pose_tolerance_check"
	case LinearScan:
		return "linear_scan"
	case OptimizedScan:
		return "optimized_scan"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Trigger is the reason a search is due.
type Trigger int

const (
	TriggerNone Trigger = iota
	TriggerInterval
	// The following triggers force a search past the tolerance test.
	TriggerClipEnd
	TriggerDoNotUse
	TriggerNoPlayback
)

// Forced reports whether the trigger skips the tolerance short-circuit.
func (t Trigger) Forced() bool { return t >= TriggerClipEnd }

func (t Trigger) String() string {
	switch t {
	case TriggerNone:
		return "none"
	case TriggerInterval:
		return "interval"
	case TriggerClipEnd:
		return "clip_end"
	case TriggerDoNotUse:
		return "do_not_use"
	case TriggerNoPlayback:
		return "no_playback"
	}
	return fmt.Sprintf("Trigger(%d)", int(t))
}

// Playback describes the dominant channel at the start of a tick.
type Playback struct {
	PoseID    int     // database pose nearest the playing time, -1 when idle
	Remaining float64 // seconds left before the clip end
	Loop      bool
}

// Location identifies a playing point of the database.
type Location struct {
	AnimID        int
	Mirrored      bool
	Time          float64
	BlendPosition mgl64.Vec2
}

// Request is the input of one search.
type Request struct {
	Query       []float64
	Traits      uint64
	NaturalNext int // pose continuing playback reaches, -1 when none
	Trigger     Trigger
	Playing     *Location // dominant channel, nil when idle
	Chosen      *Location // channel blending in, nil when none
	// OmitPose leaves the pose channel out of every cost. Set it when the
	// query holds no recorded pose yet.
	OmitPose bool
}

// Result is the outcome of one search.
type Result struct {
	PoseID     int // -1 when nothing could be selected
	Cost       float64
	State      State
	Transition bool
	Evaluated  int
}

// Counters accumulate how searches were resolved.
type Counters struct {
	Searches  int
	Skipped   int
	Linear    int
	Optimized int
	Fallbacks int
}

// Selector runs searches for one character.
type Selector struct {
	cfg     Config
	db      *posedb.Database
	eval    *cost.Evaluator
	index   *index.Index
	scratch *index.Scratch
	elapsed float64
	futures []int
	times   []float64
	masked  []float64

	Counters Counters
}

// New returns a Selector over db. idx may be nil, in which case every
// search scans linearly.
func New(db *posedb.Database, eval *cost.Evaluator, idx *index.Index, cfg Config) *Selector {
	return &Selector{
		cfg:     cfg,
		db:      db,
		eval:    eval,
		index:   idx,
		scratch: index.NewScratch(),
		elapsed: math.Inf(1),
		futures: db.Schema.FuturePoints(),
		times:   db.Schema.TrajectoryTimes(),
	}
}

// Config returns the selector configuration.
func (s *Selector) Config() Config { return s.cfg }

// Reset makes the next ShouldSearch report an interval trigger.
func (s *Selector) Reset() { s.elapsed = math.Inf(1) }

// ShouldSearch advances the search clock by dt and reports whether a
// search is due for pb.
func (s *Selector) ShouldSearch(dt float64, pb Playback) Trigger {
	s.elapsed += dt
	p := s.db.Pose(pb.PoseID)
	switch {
	case p == nil:
		return TriggerNoPlayback
	case p.DoNotUse:
		return TriggerDoNotUse
	case !pb.Loop && pb.Remaining <= dt:
		return TriggerClipEnd
	case s.elapsed >= s.cfg.Interval.Seconds():
		return TriggerInterval
	}
	return TriggerNone
}

// NextPoseWithinTolerance reports whether every future trajectory point of
// pose id lies within tolerance of query. Tolerances grow linearly with the
// prediction time of each point. Unusable poses and poses outside traits
// never pass.
func (s *Selector) NextPoseWithinTolerance(query []float64, id int, traits uint64) bool {
	p := s.db.Pose(id)
	if p == nil || p.DoNotUse || p.Traits != traits {
		return false
	}
	schema := s.db.Schema
	row := s.db.Row(id)
	for _, i := range s.futures {
		t := s.times[i]
		cand := schema.TrajectoryPoint(row, i)
		want := schema.TrajectoryPoint(query, i)
		if cand.Position.Sub(want.Position).Len() > t*s.cfg.PositionTolerance {
			return false
		}
		if math.Abs(skeleton.AngleDelta(cand.Facing, want.Facing)) > t*s.cfg.FacingTolerance {
			return false
		}
	}
	return true
}

// Search selects the best pose for req and resets the search clock.
func (s *Selector) Search(req Request) Result {
	s.elapsed = 0
	s.Counters.Searches++
	weights := s.db.Calibration.Weights(req.Traits)
	if req.OmitPose {
		s.masked = s.eval.WithoutChannel(s.masked, weights, feature.ChannelPose)
		weights = s.masked
	}

	if !req.Trigger.Forced() && s.cfg.ToleranceTest && req.NaturalNext >= 0 &&
		s.NextPoseWithinTolerance(req.Query, req.NaturalNext, req.Traits) {
		s.Counters.Skipped++
		return Result{
			PoseID:    req.NaturalNext,
			Cost:      s.eval.Cost(req.Query, s.db, req.NaturalNext, weights, req.NaturalNext),
			State:     NextPoseToleranceCheck,
			Evaluated: 1,
		}
	}

	res := Result{PoseID: -1, Cost: math.Inf(1), State: LinearScan}
	if s.cfg.UseIndex && s.index != nil {
		if ids := s.index.Query(s.eval, req.Query, req.Traits, weights, req.NaturalNext, s.scratch); ids != nil {
			res.State = OptimizedScan
			res.PoseID, res.Cost, res.Evaluated = s.scratch.Best, s.scratch.BestCost, s.scratch.Evaluated
			s.Counters.Optimized++
		} else {
			s.Counters.Fallbacks++
			monitoring.Debugf(2, "[search] %s: index unavailable for traits %#x, scanning linearly", s.db.Name, req.Traits)
		}
	}
	if res.State == LinearScan {
		ids := s.db.Partition(req.Traits)
		s.Counters.Linear++
		if len(ids) == 0 {
			monitoring.WarnOnce(fmt.Sprintf("search-traits:%s:%d", s.db.Name, req.Traits),
				"[search] %s: no usable poses for traits %#x", s.db.Name, req.Traits)
			return res
		}
		res.PoseID, res.Cost, res.Evaluated = s.scan(req.Query, ids, weights, req.NaturalNext)
	}

	res.Transition = res.PoseID >= 0 && !s.SameLocation(res.PoseID, req.Playing) && !s.SameLocation(res.PoseID, req.Chosen)
	monitoring.Debugf(3, "[search] %s: %s picked pose %d cost %.4f over %d poses (transition=%v)",
		s.db.Name, res.State, res.PoseID, res.Cost, res.Evaluated, res.Transition)
	return res
}

// scan returns the first pose in ids with the lowest cost.
func (s *Selector) scan(query []float64, ids []int, weights []float64, naturalNext int) (int, float64, int) {
	best, bestCost := -1, math.Inf(1)
	for _, id := range ids {
		if c, ok := s.eval.CostBelow(query, s.db, id, weights, naturalNext, bestCost); ok && c < bestCost {
			best, bestCost = id, c
		}
	}
	return best, bestCost, len(ids)
}

// SameLocation reports whether pose id plays the same animation as loc,
// with the same mirroring, a nearby time and blend position. Times of
// looping animations are compared around the loop.
func (s *Selector) SameLocation(id int, loc *Location) bool {
	p := s.db.Pose(id)
	if p == nil || loc == nil {
		return false
	}
	if p.AnimID != loc.AnimID || p.Mirrored != loc.Mirrored {
		return false
	}
	if p.BlendPosition.Sub(loc.BlendPosition).Len() > s.cfg.BlendPositionEpsilon {
		return false
	}
	dt := math.Abs(p.Time - loc.Time)
	if a := s.db.Anim(p.AnimID); a != nil && a.Loop && a.Length > 0 {
		dt = math.Mod(dt, a.Length)
		dt = math.Min(dt, a.Length-dt)
	}
	return dt < s.cfg.SameLocationTime.Seconds()
}
