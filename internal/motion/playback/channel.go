package playback

import (
	"fmt"
	"math"

	"github.com/banshee-data/motion.match/internal/motion/animsrc"
	"github.com/banshee-data/motion.match/internal/motion/skeleton"
	"github.com/go-gl/mathgl/mgl64"
)

// Status is the blend state of a channel.
type Status int

const (
	Inactive Status = iota
	Dominant
	Chosen
	Decay
)

func (s Status) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Dominant:
		return "dominant"
	case Chosen:
		return "chosen"
	case Decay:
		return "decay"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Channel is one animation playing in the blend set.
type Channel struct {
	Serial        int // creation order within the set
	AnimID        int
	Kind          animsrc.Kind
	StartPoseID   int
	StartTime     float64
	Time          float64
	Age           float64 // seconds since creation
	DecayAge      float64 // seconds since leaving Dominant or Chosen
	Weight        float64
	HighestWeight float64
	Status        Status
	Loop          bool
	Mirrored      bool
	Length        float64
	BlendPosition mgl64.Vec2

	driven   bool
	target   float64
	motion   skeleton.Transform
	notifies []animsrc.Notify
}

// Remaining returns the seconds left before the clip end. Looping
// channels never run out.
func (c *Channel) Remaining() float64 {
	if c.Loop {
		return math.Inf(1)
	}
	return math.Max(0, c.Length-c.Time)
}

// Finished reports whether a non-looping channel has reached its end.
func (c *Channel) Finished() bool {
	return !c.Loop && c.Time >= c.Length
}

func (c *Channel) String() string {
	return fmt.Sprintf("channel{anim=%d t=%.3f w=%.3f %s mirrored=%v}", c.AnimID, c.Time, c.Weight, c.Status, c.Mirrored)
}

// Ease is the half-sine ease in over [0,1]. Inputs outside the range are
// clamped.
func Ease(x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	return 0.5 - 0.5*math.Cos(math.Pi*x)
}
