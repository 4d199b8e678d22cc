package animsrc

import (
	"fmt"
	"math"

	"github.com/banshee-data/motion.match/internal/motion/skeleton"
	"github.com/go-gl/mathgl/mgl64"
)

// Kind is the closed set of animation asset kinds.
type Kind int

const (
	KindSequence Kind = iota
	KindBlendSpace
	KindComposite
)

func (k Kind) String() string {
	switch k {
	case KindSequence:
		return "sequence"
	case KindBlendSpace:
		return "blend_space"
	case KindComposite:
		return "composite"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a kind name to its value.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "sequence", "":
		return KindSequence, nil
	case "blend_space":
		return KindBlendSpace, nil
	case "composite":
		return KindComposite, nil
	}
	return 0, fmt.Errorf("unknown animation kind %q", s)
}

// NoAdjacent marks a missing preceding or following source.
const NoAdjacent = -1

// Source is one animation registered with a motion database. Exactly one
// of Sequence, BlendSpace or Composite is set, selected by Kind.
type Source struct {
	Name       string
	Kind       Kind
	Sequence   *Sequence
	BlendSpace *BlendSpace
	Composite  *Composite

	Loop   bool
	Favour float64
	Traits uint64

	// Preceding and Following index into the owning source list and supply
	// trajectory beyond the clip edges.
	Preceding int
	Following int

	// BlendPositions are the blend space positions to preprocess.
	BlendPositions []mgl64.Vec2

	Tags           []Tag
	DistanceCurves []DistanceCurve
}

// NewSequenceSource wraps seq with default metadata.
func NewSequenceSource(seq *Sequence, loop bool) *Source {
	return &Source{Name: seq.Name, Kind: KindSequence, Sequence: seq, Loop: loop, Favour: 1, Preceding: NoAdjacent, Following: NoAdjacent}
}

// NewBlendSpaceSource wraps bs, preprocessed at each of positions.
func NewBlendSpaceSource(bs *BlendSpace, loop bool, positions ...mgl64.Vec2) *Source {
	return &Source{Name: bs.Name, Kind: KindBlendSpace, BlendSpace: bs, Loop: loop, Favour: 1,
		Preceding: NoAdjacent, Following: NoAdjacent, BlendPositions: positions}
}

// NewCompositeSource wraps c with default metadata.
func NewCompositeSource(c *Composite, loop bool) *Source {
	return &Source{Name: c.Name, Kind: KindComposite, Composite: c, Loop: loop, Favour: 1, Preceding: NoAdjacent, Following: NoAdjacent}
}

// Valid reports whether the asset for Kind is present and has a length.
func (s *Source) Valid() bool {
	if s == nil {
		return false
	}
	switch s.Kind {
	case KindSequence:
		return s.Sequence != nil && s.Sequence.Length > 0
	case KindBlendSpace:
		return s.BlendSpace != nil && len(s.BlendSpace.Samples) > 0
	case KindComposite:
		return s.Composite != nil && s.Composite.Length() > 0
	}
	return false
}

// GetFavour returns Favour, treating zero as 1.
func (s *Source) GetFavour() float64 {
	if s.Favour <= 0 {
		return 1
	}
	return s.Favour
}

// Positions returns the blend positions to preprocess. Non blend-space
// sources yield a single zero position.
func (s *Source) Positions() []mgl64.Vec2 {
	if s.Kind == KindBlendSpace && len(s.BlendPositions) > 0 {
		return s.BlendPositions
	}
	return []mgl64.Vec2{{}}
}

// Length returns the playable length at blend position bp.
func (s *Source) Length(bp mgl64.Vec2) float64 {
	if !s.Valid() {
		return 0
	}
	switch s.Kind {
	case KindSequence:
		return s.Sequence.Length
	case KindBlendSpace:
		return s.BlendSpace.Length(bp)
	case KindComposite:
		return s.Composite.Length()
	}
	return 0
}

// WrapTime maps t into the playable range. Looping sources wrap and others
// clamp.
func (s *Source) WrapTime(t float64, bp mgl64.Vec2) float64 {
	length := s.Length(bp)
	if length <= 0 {
		return 0
	}
	if !s.Loop {
		return clamp(t, 0, length)
	}
	t = math.Mod(t, length)
	if t < 0 {
		t += length
	}
	return t
}

// SampleComponent returns the component-space pose at time t. An invalid
// source yields the reference pose.
func (s *Source) SampleComponent(skel skeleton.Skeleton, t float64, bp mgl64.Vec2) skeleton.Pose {
	if !s.Valid() {
		return skeleton.ReferencePose(skel)
	}
	switch s.Kind {
	case KindSequence:
		return skeleton.LocalToComponent(skel, s.Sequence.SampleLocal(skel, t))
	case KindBlendSpace:
		return skeleton.LocalToComponent(skel, s.BlendSpace.SampleLocal(skel, t, bp))
	case KindComposite:
		return s.Composite.SampleComponent(skel, t)
	}
	return skeleton.ReferencePose(skel)
}

// RootAt returns the root transform at time t, clamped to the clip.
func (s *Source) RootAt(skel skeleton.Skeleton, t float64, bp mgl64.Vec2) skeleton.Transform {
	if !s.Valid() {
		return skel.RefPose(0)
	}
	switch s.Kind {
	case KindSequence:
		return s.Sequence.SampleRoot(skel, t)
	case KindBlendSpace:
		return s.BlendSpace.SampleRoot(skel, t, bp)
	case KindComposite:
		return s.Composite.SampleRoot(skel, t)
	}
	return skel.RefPose(0)
}

const maxLoopWalk = 1024

// RootMotion returns the root displacement from time from to time to,
// expressed in the root frame at from. Looping sources may cross the clip
// end any number of times in either direction. Other sources clamp both
// ends to the clip.
func (s *Source) RootMotion(skel skeleton.Skeleton, from, to float64, bp mgl64.Vec2) skeleton.Transform {
	length := s.Length(bp)
	if length <= 0 {
		return skeleton.Identity()
	}
	if !s.Loop {
		return s.RootAt(skel, clamp(from, 0, length), bp).Relative(s.RootAt(skel, clamp(to, 0, length), bp))
	}

	acc := skeleton.Identity()
	cur := s.WrapTime(from, bp)
	remaining := to - from
	for i := 0; i < maxLoopWalk && math.Abs(remaining) > 1e-12; i++ {
		if remaining > 0 {
			if cur >= length {
				cur = 0
			}
			step := math.Min(remaining, length-cur)
			acc = acc.Compose(s.RootAt(skel, cur, bp).Relative(s.RootAt(skel, cur+step, bp)))
			cur += step
			remaining -= step
			continue
		}
		if cur <= 0 {
			cur = length
		}
		step := math.Min(-remaining, cur)
		acc = acc.Compose(s.RootAt(skel, cur, bp).Relative(s.RootAt(skel, cur-step, bp)))
		cur -= step
		remaining += step
	}
	return acc
}

// Notifies returns the notifies crossed when advancing from from to to.
// For looping sources a wrap (to < from) collects both ends of the clip.
func (s *Source) Notifies(from, to float64, bp mgl64.Vec2) []Notify {
	if !s.Valid() {
		return nil
	}
	if s.Loop && to < from {
		out := s.notifiesIn(from, s.Length(bp), bp)
		return append(out, s.notifiesIn(-1e-9, to, bp)...)
	}
	return s.notifiesIn(from, to, bp)
}

func (s *Source) notifiesIn(from, to float64, bp mgl64.Vec2) []Notify {
	switch s.Kind {
	case KindSequence:
		return s.Sequence.NotifiesIn(from, to)
	case KindBlendSpace:
		return s.BlendSpace.NotifiesIn(from, to, bp)
	case KindComposite:
		return s.Composite.NotifiesIn(from, to)
	}
	return nil
}

// TraitsAt returns the source traits plus any trait tags covering t.
func (s *Source) TraitsAt(t float64) uint64 {
	traits := s.Traits
	for _, tag := range s.Tags {
		if tag.Kind == TagTraits && tag.Covers(t) {
			traits |= tag.Traits
		}
	}
	return traits
}

// Curve returns the distance curve for trigger, or nil.
func (s *Source) Curve(trigger MatchTrigger) *DistanceCurve {
	for i := range s.DistanceCurves {
		if s.DistanceCurves[i].Trigger == trigger {
			return &s.DistanceCurves[i]
		}
	}
	return nil
}
