package feature

import (
	"fmt"

	"github.com/banshee-data/motion.match/internal/monitoring"
	"github.com/banshee-data/motion.match/internal/motion/skeleton"
	"github.com/go-gl/mathgl/mgl64"
)

// Momentum is the root-relative body velocity.
type Momentum struct{ groupBase }

// NewMomentum returns the body momentum feature.
func NewMomentum() *Momentum {
	return &Momentum{newGroupBase(Group{Size: 3, Metric: MetricSquared, Channel: ChannelMomentum, Label: "momentum"})}
}

func (f *Momentum) Kind() Kind                        { return KindMomentum }
func (f *Momentum) ResolveBone(skeleton.Skeleton) int { return -1 }
func (f *Momentum) Descriptor() Descriptor            { return Descriptor{Kind: KindMomentum} }
func (f *Momentum) ExtractRuntime(rt *RuntimePose, _ int, out []float64) {
	putVec3(out, rt.LocalVelocity)
}

func (f *Momentum) ExtractPreprocess(s *Sample, out []float64) {
	if !s.Valid {
		zero(out)
		return
	}
	putVec3(out, s.LocalVelocity)
}

// AngularMomentum is the root yaw rate in radians per second.
type AngularMomentum struct{ groupBase }

// NewAngularMomentum returns the angular momentum feature.
func NewAngularMomentum() *AngularMomentum {
	return &AngularMomentum{newGroupBase(Group{Size: 1, Metric: MetricAbsolute, Channel: ChannelAngularMomentum, Label: "angular_momentum"})}
}

func (f *AngularMomentum) Kind() Kind                        { return KindAngularMomentum }
func (f *AngularMomentum) ResolveBone(skeleton.Skeleton) int { return -1 }
func (f *AngularMomentum) Descriptor() Descriptor            { return Descriptor{Kind: KindAngularMomentum} }
func (f *AngularMomentum) ExtractRuntime(rt *RuntimePose, _ int, out []float64) {
	out[0] = rt.RotationalVelocity
}

func (f *AngularMomentum) ExtractPreprocess(s *Sample, out []float64) {
	if !s.Valid {
		zero(out)
		return
	}
	out[0] = s.RotationalVelocity
}

// Trajectory stores a position and facing per configured time offset.
type Trajectory struct {
	groupBase
	times []float64
}

// NewTrajectory returns a trajectory feature for ascending times.
func NewTrajectory(times []float64) *Trajectory {
	groups := make([]Group, 0, 2*len(times))
	for _, t := range times {
		groups = append(groups,
			Group{Size: 3, Metric: MetricSquared, Channel: ChannelTrajectory, Label: fmt.Sprintf("traj[%+.2f].pos", t)},
			Group{Size: 1, Metric: MetricAngle, Channel: ChannelTrajectory, Label: fmt.Sprintf("traj[%+.2f].facing", t)},
		)
	}
	return &Trajectory{groupBase: newGroupBase(groups...), times: append([]float64(nil), times...)}
}

func (f *Trajectory) Kind() Kind                        { return KindTrajectory }
func (f *Trajectory) ResolveBone(skeleton.Skeleton) int { return -1 }
func (f *Trajectory) Times() []float64                  { return f.times }
func (f *Trajectory) Descriptor() Descriptor {
	return Descriptor{Kind: KindTrajectory, Times: append([]float64(nil), f.times...)}
}

func (f *Trajectory) write(points []TrajectoryPoint, out []float64) {
	if len(points) != len(f.times) {
		zero(out)
		return
	}
	for i, p := range points {
		putVec3(out[4*i:], p.Position)
		out[4*i+3] = p.Facing
	}
}

func (f *Trajectory) ExtractPreprocess(s *Sample, out []float64) {
	if !s.Valid {
		zero(out)
		return
	}
	f.write(s.Trajectory, out)
}

func (f *Trajectory) ExtractRuntime(rt *RuntimePose, _ int, out []float64) {
	f.write(rt.Trajectory, out)
}

// boneRef names the bone a feature reads. Indices are resolved per
// skeleton by the caller and never stored here, so a schema can be shared
// by characters with different skeletons.
type boneRef struct {
	name string
}

func (b boneRef) resolve(skel skeleton.Skeleton) int {
	if skel == nil {
		return -1
	}
	idx := skel.BoneIndex(b.name)
	if idx < 0 {
		monitoring.WarnOnce("feature-bone:"+b.name, "[feature] bone %q not found in skeleton; feature emits zeros", b.name)
	}
	return idx
}

// sampleIndex returns the bone to read for s, swapped to its mirror
// partner when the sample is mirrored.
func (b boneRef) sampleIndex(s *Sample) int {
	if s.Skeleton == nil {
		return -1
	}
	name := b.name
	if s.Mirrored {
		name = s.Mirror.MirrorBoneName(name)
	}
	idx := s.Skeleton.BoneIndex(name)
	if idx < 0 || idx >= len(s.Pose) {
		return -1
	}
	return idx
}

func (s *Sample) mirrorVec(v mgl64.Vec3) mgl64.Vec3 {
	if !s.Mirrored {
		return v
	}
	return s.Mirror.MirrorVector(v)
}

func jointVelocity(pose, prev skeleton.Pose, idx int, dt float64) mgl64.Vec3 {
	if dt <= 0 || idx >= len(prev) {
		return mgl64.Vec3{}
	}
	return pose[idx].Translation.Sub(prev[idx].Translation).Mul(1 / dt)
}

// BonePosVel matches a bone's character-space position and velocity.
type BonePosVel struct {
	groupBase
	bone boneRef
}

// NewBonePosVel returns a position+velocity feature for bone.
func NewBonePosVel(bone string) *BonePosVel {
	return &BonePosVel{
		groupBase: newGroupBase(
			Group{Size: 3, Metric: MetricSquared, Channel: ChannelPose, Label: bone + ".pos"},
			Group{Size: 3, Metric: MetricSquared, Channel: ChannelPose, Label: bone + ".vel"},
		),
		bone: boneRef{name: bone},
	}
}

func (f *BonePosVel) Kind() Kind                             { return KindBonePosVel }
func (f *BonePosVel) Bone() string                           { return f.bone.name }
func (f *BonePosVel) ResolveBone(skel skeleton.Skeleton) int { return f.bone.resolve(skel) }
func (f *BonePosVel) Descriptor() Descriptor                 { return Descriptor{Kind: KindBonePosVel, Bone: f.bone.name} }

func (f *BonePosVel) ExtractPreprocess(s *Sample, out []float64) {
	idx := f.bone.sampleIndex(s)
	if !s.Valid || idx < 0 {
		zero(out)
		return
	}
	putVec3(out, s.mirrorVec(s.Pose[idx].Translation))
	putVec3(out[3:], s.mirrorVec(jointVelocity(s.Pose, s.PrevPose, idx, s.DeltaTime)))
}

func (f *BonePosVel) ExtractRuntime(rt *RuntimePose, idx int, out []float64) {
	if idx < 0 || idx >= len(rt.Pose) {
		zero(out)
		return
	}
	putVec3(out, rt.Pose[idx].Translation)
	putVec3(out[3:], jointVelocity(rt.Pose, rt.PrevPose, idx, rt.DeltaTime))
}

// BoneAxis matches the direction of a local bone axis in character space.
type BoneAxis struct {
	groupBase
	bone boneRef
	axis mgl64.Vec3
}

// NewBoneAxis returns an axis projection feature for bone.
func NewBoneAxis(bone string, axis mgl64.Vec3) *BoneAxis {
	if axis.Len() > 0 {
		axis = axis.Normalize()
	}
	return &BoneAxis{
		groupBase: newGroupBase(Group{Size: 3, Metric: MetricSquared, Channel: ChannelExtra, Label: bone + ".axis"}),
		bone:      boneRef{name: bone},
		axis:      axis,
	}
}

func (f *BoneAxis) Kind() Kind                             { return KindBoneAxis }
func (f *BoneAxis) ResolveBone(skel skeleton.Skeleton) int { return f.bone.resolve(skel) }
func (f *BoneAxis) Descriptor() Descriptor {
	return Descriptor{Kind: KindBoneAxis, Bone: f.bone.name, Axis: [3]float64(f.axis)}
}

func (f *BoneAxis) ExtractPreprocess(s *Sample, out []float64) {
	idx := f.bone.sampleIndex(s)
	if !s.Valid || idx < 0 {
		zero(out)
		return
	}
	putVec3(out, s.mirrorVec(s.Pose[idx].Rotation.Rotate(f.axis)))
}

func (f *BoneAxis) ExtractRuntime(rt *RuntimePose, idx int, out []float64) {
	if idx < 0 || idx >= len(rt.Pose) {
		zero(out)
		return
	}
	putVec3(out, rt.Pose[idx].Rotation.Rotate(f.axis))
}

// InteractionPoint matches a character-space contact location. Offline
// values come from interaction tags, written after extraction.
type InteractionPoint struct {
	groupBase
	name string
}

// NewInteractionPoint returns an interaction point feature.
func NewInteractionPoint(name string) *InteractionPoint {
	return &InteractionPoint{
		groupBase: newGroupBase(Group{Size: 3, Metric: MetricSquared, Channel: ChannelExtra, Label: "interaction." + name}),
		name:      name,
	}
}

func (f *InteractionPoint) Kind() Kind                        { return KindInteractionPoint }
func (f *InteractionPoint) Name() string                      { return f.name }
func (f *InteractionPoint) ResolveBone(skeleton.Skeleton) int { return -1 }
func (f *InteractionPoint) Descriptor() Descriptor {
	return Descriptor{Kind: KindInteractionPoint, Name: f.name}
}

func (f *InteractionPoint) ExtractPreprocess(_ *Sample, out []float64) {
	zero(out)
}

func (f *InteractionPoint) ExtractRuntime(rt *RuntimePose, _ int, out []float64) {
	p, ok := rt.Interactions[f.name]
	if !ok {
		zero(out)
		return
	}
	putVec3(out, p)
}
