package skeleton

import (
	"errors"
	"fmt"
)

// Skeleton is the bone hierarchy query surface supplied by the host engine.
type Skeleton interface {
	// BoneCount returns the number of bones.
	BoneCount() int
	// ParentIndex returns the parent of bone, or -1 for the root.
	ParentIndex(bone int) int
	// BoneIndex returns the index of the named bone, or -1 when missing.
	BoneIndex(name string) int
	// BoneName returns the name of bone, or "" when out of range.
	BoneName(bone int) string
	// RefPose returns the bone's local reference-pose transform.
	RefPose(bone int) Transform
}

// ErrInvalidSkeleton is returned when a bone list cannot form a hierarchy.
var ErrInvalidSkeleton = errors.New("invalid skeleton")

// Bone describes one bone of a RefSkeleton.
type Bone struct {
	Name   string    `json:"name"`
	Parent int       `json:"parent"` // -1 for root
	Local  Transform `json:"-"`
}

// RefSkeleton is an in-memory Skeleton. Parents always precede children.
type RefSkeleton struct {
	bones  []Bone
	byName map[string]int
}

// NewRefSkeleton validates bones and builds a skeleton.
func NewRefSkeleton(bones []Bone) (*RefSkeleton, error) {
	if len(bones) == 0 {
		return nil, fmt.Errorf("%w: no bones", ErrInvalidSkeleton)
	}
	s := &RefSkeleton{
		bones:  make([]Bone, len(bones)),
		byName: make(map[string]int, len(bones)),
	}
	for i, b := range bones {
		if b.Name == "" {
			return nil, fmt.Errorf("%w: bone %d has no name", ErrInvalidSkeleton, i)
		}
		if _, dup := s.byName[b.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate bone %q", ErrInvalidSkeleton, b.Name)
		}
		if i == 0 && b.Parent != -1 {
			return nil, fmt.Errorf("%w: bone 0 must be the root", ErrInvalidSkeleton)
		}
		if i > 0 && (b.Parent < 0 || b.Parent >= i) {
			return nil, fmt.Errorf("%w: bone %q parent %d must precede it", ErrInvalidSkeleton, b.Name, b.Parent)
		}
		if b.Local == (Transform{}) {
			b.Local = Identity()
		}
		s.bones[i] = b
		s.byName[b.Name] = i
	}
	return s, nil
}

// BoneCount implements Skeleton.
func (s *RefSkeleton) BoneCount() int { return len(s.bones) }

// ParentIndex implements Skeleton.
func (s *RefSkeleton) ParentIndex(bone int) int {
	if bone < 0 || bone >= len(s.bones) {
		return -1
	}
	return s.bones[bone].Parent
}

// BoneIndex implements Skeleton.
func (s *RefSkeleton) BoneIndex(name string) int {
	if i, ok := s.byName[name]; ok {
		return i
	}
	return -1
}

// BoneName implements Skeleton.
func (s *RefSkeleton) BoneName(bone int) string {
	if bone < 0 || bone >= len(s.bones) {
		return ""
	}
	return s.bones[bone].Name
}

// RefPose implements Skeleton.
func (s *RefSkeleton) RefPose(bone int) Transform {
	if bone < 0 || bone >= len(s.bones) {
		return Identity()
	}
	return s.bones[bone].Local
}

// Pose is a component-space transform per bone, indexed like the skeleton.
type Pose []Transform

// Clone returns a copy of p.
func (p Pose) Clone() Pose {
	return append(Pose(nil), p...)
}

// Root returns the root bone transform, or identity for an empty pose.
func (p Pose) Root() Transform {
	if len(p) == 0 {
		return Identity()
	}
	return p[0]
}

// RelativeTo expresses every bone of p in the frame of root.
func (p Pose) RelativeTo(root Transform) Pose {
	inv := root.Inverse()
	out := make(Pose, len(p))
	for i := range p {
		out[i] = inv.Compose(p[i])
	}
	return out
}

// LocalToComponent converts local bone transforms to component space.
// Missing local entries fall back to the reference pose.
func LocalToComponent(skel Skeleton, local []Transform) Pose {
	n := skel.BoneCount()
	out := make(Pose, n)
	for i := 0; i < n; i++ {
		l := skel.RefPose(i)
		if i < len(local) {
			l = local[i]
		}
		parent := skel.ParentIndex(i)
		if parent < 0 {
			out[i] = l
			continue
		}
		out[i] = out[parent].Compose(l)
	}
	return out
}

// ReferencePose returns the component-space reference pose of skel.
func ReferencePose(skel Skeleton) Pose {
	if skel == nil {
		return nil
	}
	return LocalToComponent(skel, nil)
}
