package skeleton

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Axis selects the normal of the mirror plane.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// MirrorTable reflects poses across the plane normal to Axis and swaps
// paired bones. Pairs is symmetric after NewMirrorTable.
type MirrorTable struct {
	Axis  Axis
	Pairs map[string]string
}

// NewMirrorTable builds a table from one-directional pairs ("hand_l": "hand_r").
func NewMirrorTable(axis Axis, pairs map[string]string) *MirrorTable {
	m := &MirrorTable{Axis: axis, Pairs: make(map[string]string, 2*len(pairs))}
	for a, b := range pairs {
		m.Pairs[a] = b
		m.Pairs[b] = a
	}
	return m
}

// MirrorBoneName returns the paired bone name, or name itself when unpaired.
func (m *MirrorTable) MirrorBoneName(name string) string {
	if m == nil {
		return name
	}
	if other, ok := m.Pairs[name]; ok {
		return other
	}
	return name
}

// MirrorBoneIndex returns the index of the paired bone in skel.
func (m *MirrorTable) MirrorBoneIndex(skel Skeleton, bone int) int {
	if m == nil || skel == nil {
		return bone
	}
	idx := skel.BoneIndex(m.MirrorBoneName(skel.BoneName(bone)))
	if idx < 0 {
		return bone
	}
	return idx
}

// MirrorVector negates the component along the mirror axis.
func (m *MirrorTable) MirrorVector(v mgl64.Vec3) mgl64.Vec3 {
	if m == nil {
		return v
	}
	v[m.Axis] = -v[m.Axis]
	return v
}

// MirrorRotation reflects a rotation across the mirror plane. The vector
// component along the axis is kept and the other two are negated.
func (m *MirrorTable) MirrorRotation(q mgl64.Quat) mgl64.Quat {
	if m == nil {
		return q
	}
	out := mgl64.Quat{W: q.W, V: q.V.Mul(-1)}
	out.V[m.Axis] = q.V[m.Axis]
	return out
}

// MirrorTransform reflects a transform across the mirror plane.
func (m *MirrorTable) MirrorTransform(t Transform) Transform {
	if m == nil {
		return t
	}
	return Transform{
		Translation: m.MirrorVector(t.Translation),
		Rotation:    m.MirrorRotation(t.Rotation),
		Scale:       t.Scale,
	}
}

// MirrorYaw reflects a heading about Z. It agrees with the yaw of
// MirrorRotation applied to a pure yaw rotation.
func (m *MirrorTable) MirrorYaw(yaw float64) float64 {
	if m == nil || m.Axis == AxisZ {
		return yaw
	}
	return WrapAngle(-yaw)
}

// MirrorYawRate reflects an angular velocity about Z.
func (m *MirrorTable) MirrorYawRate(rate float64) float64 {
	if m == nil || m.Axis == AxisZ {
		return rate
	}
	return -rate
}

// MirrorPose reflects a component-space pose and swaps paired bones.
func (m *MirrorTable) MirrorPose(skel Skeleton, pose Pose) Pose {
	if m == nil {
		return pose.Clone()
	}
	out := make(Pose, len(pose))
	for i := range pose {
		src := i
		if skel != nil {
			src = m.MirrorBoneIndex(skel, i)
			if src >= len(pose) {
				src = i
			}
		}
		out[i] = m.MirrorTransform(pose[src])
	}
	return out
}
