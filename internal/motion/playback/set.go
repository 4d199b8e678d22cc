package playback

import (
	"math"

	"github.com/banshee-data/motion.match/internal/monitoring"
	"github.com/banshee-data/motion.match/internal/motion/animsrc"
	"github.com/banshee-data/motion.match/internal/motion/posedb"
	"github.com/banshee-data/motion.match/internal/motion/skeleton"
)

// weightFloor is the total weight below which the dominant channel is
// used on its own.
const weightFloor = 1e-6

// Event is a notify crossed by a channel during Advance.
type Event struct {
	animsrc.Notify
	AnimID   int
	Mirrored bool
	Weight   float64
}

// Step is the outcome of one Advance.
type Step struct {
	RootMotion  skeleton.Transform
	Events      []Event
	Inertialize bool // a cut happened since the last step
	Removed     int  // channels that finished decaying
}

// Set is the collection of live channels of one character.
type Set struct {
	cfg     Config
	db      *posedb.Database
	sources []*animsrc.Source
	skel    skeleton.Skeleton
	mirror  *skeleton.MirrorTable

	channels    []*Channel
	weights     []float64
	poses       []skeleton.Pose
	serial      int
	inertialize bool
}

// NewSet returns an empty set. sources is indexed by database AnimID.
func NewSet(db *posedb.Database, sources []*animsrc.Source, skel skeleton.Skeleton, mirror *skeleton.MirrorTable, cfg Config) *Set {
	return &Set{cfg: cfg, db: db, sources: sources, skel: skel, mirror: mirror}
}

// Config returns the playback configuration.
func (s *Set) Config() Config { return s.cfg }

// Channels returns the live channels in creation order. The slice is owned
// by the set.
func (s *Set) Channels() []*Channel { return s.channels }

// Len returns the number of live channels.
func (s *Set) Len() int { return len(s.channels) }

// Reset drops every channel.
func (s *Set) Reset() {
	s.channels = s.channels[:0]
	s.inertialize = false
}

func (s *Set) source(c *Channel) *animsrc.Source {
	if c.AnimID < 0 || c.AnimID >= len(s.sources) {
		return nil
	}
	if src := s.sources[c.AnimID]; src.Valid() {
		return src
	}
	return nil
}

// TransitionToPose starts a channel at database pose id. It returns nil
// when id is out of range.
func (s *Set) TransitionToPose(id int) *Channel {
	p := s.db.Pose(id)
	if p == nil {
		return nil
	}
	return s.start(p, p.Time)
}

// TransitionToTime starts a channel on the clip pass of pose id at time t.
func (s *Set) TransitionToTime(id int, t float64) *Channel {
	p := s.db.Pose(id)
	if p == nil {
		return nil
	}
	return s.start(p, t)
}

func (s *Set) start(p *posedb.Pose, t float64) *Channel {
	s.serial++
	c := &Channel{
		Serial:        s.serial,
		AnimID:        p.AnimID,
		Kind:          p.AnimKind,
		StartPoseID:   p.ID,
		StartTime:     t,
		Time:          t,
		Mirrored:      p.Mirrored,
		BlendPosition: p.BlendPosition,
		motion:        skeleton.Identity(),
	}
	if a := s.db.Anim(p.AnimID); a != nil {
		c.Loop = a.Loop
		c.Length = a.Length
	}
	if src := s.source(c); src != nil {
		c.Loop = src.Loop
		c.Length = src.Length(p.BlendPosition)
	}

	if !s.cfg.crossfades() || len(s.channels) == 0 {
		if len(s.channels) > 0 && s.cfg.Method == TransitionInertialization {
			s.inertialize = true
		}
		s.channels = s.channels[:0]
		c.Status, c.Weight, c.HighestWeight = Dominant, 1, 1
		s.channels = append(s.channels, c)
		monitoring.Debugf(2, "[playback] cut to %s", c)
		return c
	}

	for _, o := range s.channels {
		if o.Status == Chosen {
			s.decay(o)
		}
	}
	c.Status = Chosen
	s.channels = append(s.channels, c)
	monitoring.Debugf(2, "[playback] blending in %s", c)
	return c
}

func (s *Set) decay(c *Channel) {
	c.Status = Decay
	c.DecayAge = 0
	c.HighestWeight = c.Weight
}

// Drive makes the next Advance move c to time t instead of stepping it by
// the tick delta.
func (s *Set) Drive(c *Channel, t float64) {
	c.driven, c.target = true, t
}

// Advance moves every channel forward by dt seconds, updates blend weights
// and collects root motion and notifies.
func (s *Set) Advance(dt float64) Step {
	step := Step{RootMotion: skeleton.Identity(), Inertialize: s.inertialize}
	s.inertialize = false
	if len(s.channels) == 0 {
		return step
	}

	blend := s.cfg.blendSeconds()
	var promoted *Channel
	for _, c := range s.channels {
		s.move(c, dt)
		c.Age += dt
		switch c.Status {
		case Dominant:
			c.Weight = 1
		case Chosen:
			c.Weight = Ease(c.Age / blend)
			if c.Age >= blend {
				promoted = c
			}
		case Decay:
			c.DecayAge += dt
			c.Weight = c.HighestWeight * (1 - Ease(c.DecayAge/blend))
		}
		c.HighestWeight = math.Max(c.HighestWeight, c.Weight)
	}
	if promoted != nil {
		for _, c := range s.channels {
			if c != promoted && c.Status == Dominant {
				s.decay(c)
			}
		}
		promoted.Status, promoted.Weight = Dominant, 1
	}

	delta := 1.0
	if blend > 0 {
		delta = dt / blend
	}
	live := s.channels[:0]
	for _, c := range s.channels {
		if c.Status == Decay && c.Weight < delta {
			c.Status = Inactive
			step.Removed++
			continue
		}
		live = append(live, c)
	}
	for i := len(live); i < len(s.channels); i++ {
		s.channels[i] = nil
	}
	s.channels = live

	weights := s.Weights()
	dom := s.Dominant()
	var acc float64
	for i, c := range s.channels {
		w := weights[i]
		if w > 0 {
			acc += w
			step.RootMotion = skeleton.Blend(step.RootMotion, c.motion, w/acc)
		}
		if s.cfg.Notify == NotifyAll && w > 0 || c == dom {
			for _, n := range c.notifies {
				step.Events = append(step.Events, Event{Notify: n, AnimID: c.AnimID, Mirrored: c.Mirrored, Weight: w})
			}
		}
	}
	return step
}

// move advances the clip time of c and records its root motion and
// notifies for the step.
func (s *Set) move(c *Channel, dt float64) {
	from := c.Time
	to := from + dt
	if c.driven {
		to = c.target
		c.driven = false
	}
	c.notifies = c.notifies[:0]
	c.motion = skeleton.Identity()

	src := s.source(c)
	if src == nil {
		c.Time = clampTime(c, to)
		return
	}
	c.motion = src.RootMotion(s.skel, from, to, c.BlendPosition)
	if c.Mirrored {
		c.motion = s.mirror.MirrorTransform(c.motion)
	}
	c.Time = src.WrapTime(to, c.BlendPosition)
	if to > from {
		c.notifies = append(c.notifies, src.Notifies(from, c.Time, c.BlendPosition)...)
	}
}

func clampTime(c *Channel, t float64) float64 {
	if c.Length <= 0 {
		return 0
	}
	if c.Loop {
		t = math.Mod(t, c.Length)
		if t < 0 {
			t += c.Length
		}
		return t
	}
	return math.Max(0, math.Min(t, c.Length))
}

// Weights returns the channel weights normalised to sum to one, aligned
// with Channels. When the total is negligible the dominant channel gets
// the full weight. The slice is reused by the next call.
func (s *Set) Weights() []float64 {
	s.weights = s.weights[:0]
	var sum float64
	for _, c := range s.channels {
		s.weights = append(s.weights, c.Weight)
		sum += c.Weight
	}
	if len(s.channels) == 0 {
		return s.weights
	}
	if sum < weightFloor {
		dom := s.dominantIndex()
		for i := range s.weights {
			s.weights[i] = 0
		}
		s.weights[dom] = 1
		return s.weights
	}
	for i := range s.weights {
		s.weights[i] /= sum
	}
	return s.weights
}

func (s *Set) dominantIndex() int {
	best := 0
	for i, c := range s.channels {
		b := s.channels[best]
		if c.Weight > b.Weight || c.Weight == b.Weight && c.Status == Dominant && b.Status != Dominant {
			best = i
		}
	}
	return best
}

// Dominant returns the channel with the highest weight, or nil when the
// set is empty.
func (s *Set) Dominant() *Channel {
	if len(s.channels) == 0 {
		return nil
	}
	return s.channels[s.dominantIndex()]
}

// Chosen returns the channel currently blending in, or nil.
func (s *Set) Chosen() *Channel {
	for _, c := range s.channels {
		if c.Status == Chosen {
			return c
		}
	}
	return nil
}
