package feature

import (
	"fmt"

	"github.com/banshee-data/motion.match/internal/motion/skeleton"
	"github.com/go-gl/mathgl/mgl64"
)

// Metric selects how a group's difference contributes to cost.
type Metric int

const (
	// MetricSquared contributes w·|Δ|² over the group's components.
	MetricSquared Metric = iota
	// MetricAbsolute contributes w·|Δ| for a scalar group.
	MetricAbsolute
	// MetricAngle contributes w·|angleDelta| for a heading in radians.
	MetricAngle
)

// Channel is the cost channel a group belongs to. Channels are accumulated
// in declaration order.
type Channel int

const (
	ChannelMomentum Channel = iota
	ChannelAngularMomentum
	ChannelTrajectory
	ChannelPose
	ChannelExtra
)

func (c Channel) String() string {
	switch c {
	case ChannelMomentum:
		return "momentum"
	case ChannelAngularMomentum:
		return "angular_momentum"
	case ChannelTrajectory:
		return "trajectory"
	case ChannelPose:
		return "pose"
	case ChannelExtra:
		return "extra"
	}
	return fmt.Sprintf("Channel(%d)", int(c))
}

// Group is one independently weighted scalar sub-feature: a contiguous run
// of atoms sharing a weight.
type Group struct {
	Offset  int
	Size    int
	Metric  Metric
	Channel Channel
	Label   string
}

// Kind names a concrete feature implementation.
type Kind string

const (
	KindMomentum         Kind = "momentum"
	KindAngularMomentum  Kind = "angular_momentum"
	KindTrajectory       Kind = "trajectory"
	KindBonePosVel       Kind = "bone_pos_vel"
	KindBoneAxis         Kind = "bone_axis"
	KindInteractionPoint Kind = "interaction_point"
)

// TrajectoryPoint is one character-space trajectory sample.
type TrajectoryPoint struct {
	Position mgl64.Vec3
	Facing   float64
}

// JointData is the character-space position and velocity of a matched bone.
type JointData struct {
	Position mgl64.Vec3
	Velocity mgl64.Vec3
}

// Sample is the offline extraction context for one pose. Pose and PrevPose
// are component-space transforms relative to the root at the sample time.
// LocalVelocity, RotationalVelocity and Trajectory are already mirrored
// when Mirrored is set; bone data is mirrored by each feature.
type Sample struct {
	Skeleton  skeleton.Skeleton
	Mirror    *skeleton.MirrorTable
	Mirrored  bool
	Valid     bool
	Pose      skeleton.Pose
	PrevPose  skeleton.Pose
	DeltaTime float64

	LocalVelocity      mgl64.Vec3
	RotationalVelocity float64
	Trajectory         []TrajectoryPoint
}

// RuntimePose is the live extraction context. Pose is relative to the
// current character root and PrevPose is the previous tick expressed in the
// same frame.
type RuntimePose struct {
	Pose      skeleton.Pose
	PrevPose  skeleton.Pose
	DeltaTime float64

	LocalVelocity      mgl64.Vec3
	RotationalVelocity float64
	Trajectory         []TrajectoryPoint
	Interactions       map[string]mgl64.Vec3
}

// MatchFeature is the contract every feature kind implements. Extraction
// always writes exactly Size() values, zeros when the input is unusable.
type MatchFeature interface {
	Kind() Kind
	Size() int
	// Groups returns the feature's groups with offsets relative to the
	// feature start.
	Groups() []Group
	// ResolveBone returns the skeleton index of the bone the feature reads
	// at runtime, or -1 when it reads none or the bone is missing.
	ResolveBone(skel skeleton.Skeleton) int
	ExtractPreprocess(s *Sample, out []float64)
	// ExtractRuntime reads bone, the index ResolveBone returned for the
	// live skeleton.
	ExtractRuntime(rt *RuntimePose, bone int, out []float64)
	// AccumulateDeviation adds each group's squared distance between row
	// and mean into acc, one entry per group.
	AccumulateDeviation(row, mean, acc []float64)
	Descriptor() Descriptor
}

// Descriptor is the serialisable description of a feature.
type Descriptor struct {
	Kind  Kind       `json:"kind"`
	Bone  string     `json:"bone,omitempty"`
	Name  string     `json:"name,omitempty"`
	Axis  [3]float64 `json:"axis,omitempty"`
	Times []float64  `json:"times,omitempty"`
}

// FromDescriptor rebuilds a feature from its description.
func FromDescriptor(d Descriptor) (MatchFeature, error) {
	switch d.Kind {
	case KindMomentum:
		return NewMomentum(), nil
	case KindAngularMomentum:
		return NewAngularMomentum(), nil
	case KindTrajectory:
		return NewTrajectory(d.Times), nil
	case KindBonePosVel:
		return NewBonePosVel(d.Bone), nil
	case KindBoneAxis:
		return NewBoneAxis(d.Bone, mgl64.Vec3(d.Axis)), nil
	case KindInteractionPoint:
		return NewInteractionPoint(d.Name), nil
	}
	return nil, fmt.Errorf("unknown feature kind %q", d.Kind)
}

func zero(out []float64) {
	for i := range out {
		out[i] = 0
	}
}

func putVec3(out []float64, v mgl64.Vec3) {
	out[0], out[1], out[2] = v[0], v[1], v[2]
}

// groupBase supplies the group bookkeeping shared by all features.
type groupBase struct {
	groups []Group
	size   int
}

func newGroupBase(groups ...Group) groupBase {
	size := 0
	for i := range groups {
		groups[i].Offset = size
		size += groups[i].Size
	}
	return groupBase{groups: groups, size: size}
}

func (b groupBase) Size() int       { return b.size }
func (b groupBase) Groups() []Group { return b.groups }

func (b groupBase) AccumulateDeviation(row, mean, acc []float64) {
	for gi, g := range b.groups {
		acc[gi] += GroupDistance(g, row[g.Offset:g.Offset+g.Size], mean[g.Offset:g.Offset+g.Size], true)
	}
}

// GroupDistance returns the difference between a and b under g's metric.
// With squared set, absolute and angle metrics are squared as well; that
// form is used for deviation statistics.
func GroupDistance(g Group, a, b []float64, squared bool) float64 {
	switch g.Metric {
	case MetricAngle:
		d := skeleton.AngleDelta(a[0], b[0])
		if squared {
			return d * d
		}
		if d < 0 {
			return -d
		}
		return d
	case MetricAbsolute:
		d := a[0] - b[0]
		if squared {
			return d * d
		}
		if d < 0 {
			return -d
		}
		return d
	}
	var sum float64
	for i := 0; i < g.Size; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
