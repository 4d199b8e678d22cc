package distmatch

import (
	"fmt"
	"math"

	"github.com/banshee-data/motion.match/internal/monitoring"
	"github.com/banshee-data/motion.match/internal/motion/animsrc"
	"github.com/banshee-data/motion.match/internal/motion/cost"
	"github.com/banshee-data/motion.match/internal/motion/posedb"
	"github.com/go-gl/mathgl/mgl64"
)

// endEpsilon is the slack, in seconds, for reaching the end of a curve.
const endEpsilon = 1e-4

// Section is one clip pass that can be driven by a distance curve.
type Section struct {
	Name          string
	AnimID        int
	Mirrored      bool
	BlendPosition mgl64.Vec2
	Curve         *animsrc.DistanceCurve
}

// TimeForDistance returns the clip time at which the section's curve
// reaches distance.
func (s *Section) TimeForDistance(distance float64) float64 {
	return s.Curve.TimeAtDistance(distance)
}

// End returns the clip time of the last curve sample.
func (s *Section) End() float64 {
	return s.Curve.Times[len(s.Curve.Times)-1]
}

// Done reports whether time t has reached the end of the curve.
func (s *Section) Done(t float64) bool {
	return t >= s.End()-endEpsilon
}

func (s *Section) String() string {
	return fmt.Sprintf("%s(anim=%d mirrored=%v %s)", s.Name, s.AnimID, s.Mirrored, s.Curve.Trigger)
}

// Selection is the outcome of SelectStart.
type Selection struct {
	Section *Section
	Time    float64
	PoseID  int // database pose nearest Time
	Cost    float64
}

// Matcher holds the distance-matching sections of one database.
type Matcher struct {
	db       *posedb.Database
	eval     *cost.Evaluator
	sections map[animsrc.MatchTrigger][]*Section
	row      []float64
}

// New collects the sections of db. sources is indexed by database AnimID.
// Invalid curves are skipped with a warning.
func New(db *posedb.Database, sources []*animsrc.Source, eval *cost.Evaluator) *Matcher {
	m := &Matcher{
		db:       db,
		eval:     eval,
		sections: make(map[animsrc.MatchTrigger][]*Section),
		row:      make([]float64, db.AtomCount()),
	}
	for anim, src := range sources {
		if src == nil || db.Anim(anim) == nil {
			continue
		}
		positions := db.Anim(anim).BlendPositions
		if len(positions) == 0 {
			positions = []mgl64.Vec2{{}}
		}
		for ci := range src.DistanceCurves {
			curve := &src.DistanceCurves[ci]
			if err := curve.Validate(); err != nil {
				monitoring.WarnOnce(fmt.Sprintf("distmatch-curve:%s:%s:%d", db.Name, src.Name, ci),
					"[distmatch] %s: %s curve on %s ignored: %v", db.Name, curve.Trigger, src.Name, err)
				continue
			}
			for _, bp := range positions {
				for _, mirrored := range []bool{false, true} {
					if len(db.Run(anim, mirrored, bp)) == 0 {
						continue
					}
					m.sections[curve.Trigger] = append(m.sections[curve.Trigger], &Section{
						Name: src.Name, AnimID: anim, Mirrored: mirrored, BlendPosition: bp, Curve: curve,
					})
				}
			}
		}
	}
	return m
}

// Has reports whether any section exists for trigger.
func (m *Matcher) Has(trigger animsrc.MatchTrigger) bool {
	return len(m.sections[trigger]) > 0
}

// Sections returns the sections for trigger.
func (m *Matcher) Sections(trigger animsrc.MatchTrigger) []*Section {
	return m.sections[trigger]
}

// SelectStart picks the section and start time for a trigger fired at
// marker distance. Each section is evaluated at the time its curve reaches
// distance, with the same cost as a pose search against query. It returns
// false, and warns once, when no usable curve exists for trigger.
func (m *Matcher) SelectStart(trigger animsrc.MatchTrigger, distance float64, query []float64, traits uint64) (Selection, bool) {
	sections := m.sections[trigger]
	if len(sections) == 0 {
		monitoring.WarnOnce(fmt.Sprintf("distmatch-missing:%s:%s", m.db.Name, trigger),
			"[distmatch] %s: no distance curve for %s; staying in motion matching", m.db.Name, trigger)
		return Selection{}, false
	}
	weights := m.db.Calibration.Weights(traits)

	best := Selection{PoseID: -1, Cost: math.Inf(1)}
	for _, s := range sections {
		t := s.TimeForDistance(distance)
		if s.Done(t) {
			continue
		}
		id := m.db.InterpolateRow(s.AnimID, s.Mirrored, s.BlendPosition, t, m.row)
		if id < 0 {
			continue
		}
		c := m.eval.Raw(query, m.row, weights) * m.eval.Scale(m.db.Pose(id), -1)
		if c < best.Cost {
			best = Selection{Section: s, Time: t, PoseID: id, Cost: c}
		}
	}
	if best.Section == nil {
		monitoring.Debugf(1, "[distmatch] %s: marker distance %.3f is past every %s curve", m.db.Name, distance, trigger)
		return best, false
	}
	monitoring.Debugf(2, "[distmatch] %s: %s selected %s at t=%.3f cost %.4f", m.db.Name, trigger, best.Section, best.Time, best.Cost)
	return best, true
}
