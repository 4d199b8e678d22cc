package feature

import (
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/motion.match/internal/config"
	"github.com/banshee-data/motion.match/internal/motion/skeleton"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrNoTrajectory is returned for a schema without trajectory points.
	ErrNoTrajectory = errors.New("no trajectory points configured")
	// ErrNoBones is returned for a schema without matched bones.
	ErrNoBones = errors.New("no matched bones configured")
)

// Schema is the ordered feature list defining the pose row layout:
// momentum, angular momentum, trajectory, one BonePosVel per matched bone,
// then any extra features. AtomCount never changes after construction.
type Schema struct {
	features   []MatchFeature
	offsets    []int
	groups     []Group
	atomCount  int
	trajectory *Trajectory
	bones      []*BonePosVel
	trajStart  int
	boneStart  []int
	momStart   int
	angStart   int
}

// NewSchema builds the standard layout for the given trajectory times and
// matched bones.
func NewSchema(times []float64, bones []string, extras ...MatchFeature) (*Schema, error) {
	if len(times) == 0 {
		return nil, ErrNoTrajectory
	}
	if len(bones) == 0 {
		return nil, ErrNoBones
	}
	if !sort.Float64sAreSorted(times) {
		return nil, fmt.Errorf("trajectory times must ascend: %v", times)
	}
	features := []MatchFeature{NewMomentum(), NewAngularMomentum(), NewTrajectory(times)}
	for _, b := range bones {
		features = append(features, NewBonePosVel(b))
	}
	features = append(features, extras...)
	return newSchema(features)
}

// SchemaFromConfig builds the standard layout from matching configuration.
// The configured extra features come first, followed by extras.
func SchemaFromConfig(cfg *config.MatchConfig, extras ...MatchFeature) (*Schema, error) {
	var features []MatchFeature
	for i, fc := range cfg.GetFeatures() {
		f, err := FromDescriptor(Descriptor{Kind: Kind(fc.Kind), Bone: fc.Bone, Name: fc.Name, Axis: fc.Axis})
		if err != nil {
			return nil, fmt.Errorf("features[%d]: %w", i, err)
		}
		features = append(features, f)
	}
	return NewSchema(cfg.GetTrajectoryTimes(), cfg.GetMatchBones(), append(features, extras...)...)
}

// SchemaFromDescriptors rebuilds a schema from stored descriptors.
func SchemaFromDescriptors(ds []Descriptor) (*Schema, error) {
	features := make([]MatchFeature, 0, len(ds))
	for _, d := range ds {
		f, err := FromDescriptor(d)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return newSchema(features)
}

func newSchema(features []MatchFeature) (*Schema, error) {
	s := &Schema{features: features, momStart: -1, angStart: -1}
	for _, f := range features {
		s.offsets = append(s.offsets, s.atomCount)
		for _, g := range f.Groups() {
			g.Offset += s.atomCount
			s.groups = append(s.groups, g)
		}
		switch ft := f.(type) {
		case *Momentum:
			s.momStart = s.atomCount
		case *AngularMomentum:
			s.angStart = s.atomCount
		case *Trajectory:
			if s.trajectory == nil {
				s.trajectory = ft
				s.trajStart = s.atomCount
			}
		case *BonePosVel:
			s.bones = append(s.bones, ft)
			s.boneStart = append(s.boneStart, s.atomCount)
		}
		s.atomCount += f.Size()
	}
	if s.trajectory == nil || len(s.trajectory.times) == 0 {
		return nil, ErrNoTrajectory
	}
	if len(s.bones) == 0 {
		return nil, ErrNoBones
	}
	return s, nil
}

// AtomCount is the fixed row stride.
func (s *Schema) AtomCount() int { return s.atomCount }

// Features returns the ordered features.
func (s *Schema) Features() []MatchFeature { return s.features }

// Groups returns every group with absolute row offsets, in row order.
func (s *Schema) Groups() []Group { return s.groups }

// TrajectoryTimes returns the configured time offsets.
func (s *Schema) TrajectoryTimes() []float64 { return s.trajectory.times }

// TrajectoryCount is the number of trajectory points.
func (s *Schema) TrajectoryCount() int { return len(s.trajectory.times) }

// BoneCount is the number of matched bones.
func (s *Schema) BoneCount() int { return len(s.bones) }

// Bones returns the matched bone names in schema order.
func (s *Schema) Bones() []string {
	out := make([]string, len(s.bones))
	for i, b := range s.bones {
		out[i] = b.Bone()
	}
	return out
}

// FuturePoints returns the indices of trajectory points with time > 0.
func (s *Schema) FuturePoints() []int {
	var out []int
	for i, t := range s.trajectory.times {
		if t > 0 {
			out = append(out, i)
		}
	}
	return out
}

// BoneMap holds one skeleton bone index per schema feature, -1 where the
// feature reads no bone. It belongs to the character that resolved it.
type BoneMap []int

// ResolveBones maps the schema's bones onto skel for runtime extraction.
// The schema itself is not modified.
func (s *Schema) ResolveBones(skel skeleton.Skeleton) BoneMap {
	out := make(BoneMap, len(s.features))
	for i, f := range s.features {
		out[i] = f.ResolveBone(skel)
	}
	return out
}

// ExtractPreprocess fills row from an offline sample.
func (s *Schema) ExtractPreprocess(sample *Sample, row []float64) {
	for i, f := range s.features {
		f.ExtractPreprocess(sample, row[s.offsets[i]:s.offsets[i]+f.Size()])
	}
}

// ExtractRuntime fills row from a live pose, reading bones through bones.
// Features missing from bones extract as if their bone were absent.
func (s *Schema) ExtractRuntime(rt *RuntimePose, bones BoneMap, row []float64) {
	for i, f := range s.features {
		bone := -1
		if i < len(bones) {
			bone = bones[i]
		}
		f.ExtractRuntime(rt, bone, row[s.offsets[i]:s.offsets[i]+f.Size()])
	}
}

// AccumulateDeviation adds per-group squared distances of row from mean to
// acc, which has one entry per schema group.
func (s *Schema) AccumulateDeviation(row, mean, acc []float64) {
	gi := 0
	for i, f := range s.features {
		off, n := s.offsets[i], f.Size()
		ng := len(f.Groups())
		f.AccumulateDeviation(row[off:off+n], mean[off:off+n], acc[gi:gi+ng])
		gi += ng
	}
}

// LocalVelocity reads the momentum atoms of row.
func (s *Schema) LocalVelocity(row []float64) mgl64.Vec3 {
	if s.momStart < 0 {
		return mgl64.Vec3{}
	}
	o := s.momStart
	return mgl64.Vec3{row[o], row[o+1], row[o+2]}
}

// RotationalVelocity reads the angular momentum atom of row.
func (s *Schema) RotationalVelocity(row []float64) float64 {
	if s.angStart < 0 {
		return 0
	}
	return row[s.angStart]
}

// TrajectoryPoint reads point i of row.
func (s *Schema) TrajectoryPoint(row []float64, i int) TrajectoryPoint {
	o := s.trajStart + 4*i
	return TrajectoryPoint{Position: mgl64.Vec3{row[o], row[o+1], row[o+2]}, Facing: row[o+3]}
}

// Trajectory reads all trajectory points of row.
func (s *Schema) Trajectory(row []float64) []TrajectoryPoint {
	out := make([]TrajectoryPoint, s.TrajectoryCount())
	for i := range out {
		out[i] = s.TrajectoryPoint(row, i)
	}
	return out
}

// WriteTrajectory overwrites the trajectory atoms of row. A mismatched
// point count leaves row unchanged.
func (s *Schema) WriteTrajectory(row []float64, points []TrajectoryPoint) {
	if len(points) != s.TrajectoryCount() {
		return
	}
	s.trajectory.write(points, row[s.trajStart:s.trajStart+s.trajectory.Size()])
}

// Joint reads matched bone i of row.
func (s *Schema) Joint(row []float64, i int) JointData {
	o := s.boneStart[i]
	return JointData{
		Position: mgl64.Vec3{row[o], row[o+1], row[o+2]},
		Velocity: mgl64.Vec3{row[o+3], row[o+4], row[o+5]},
	}
}

// Joints reads every matched bone of row.
func (s *Schema) Joints(row []float64) []JointData {
	out := make([]JointData, len(s.bones))
	for i := range out {
		out[i] = s.Joint(row, i)
	}
	return out
}

// InteractionOffset returns the row offset of the named interaction point,
// or of the first one when name is empty.
func (s *Schema) InteractionOffset(name string) (int, bool) {
	for i, f := range s.features {
		ip, ok := f.(*InteractionPoint)
		if ok && (name == "" || ip.Name() == name) {
			return s.offsets[i], true
		}
	}
	return 0, false
}

// Descriptors returns the serialisable schema description.
func (s *Schema) Descriptors() []Descriptor {
	out := make([]Descriptor, len(s.features))
	for i, f := range s.features {
		out[i] = f.Descriptor()
	}
	return out
}

// Equal reports whether two schemas describe the same layout.
func (s *Schema) Equal(o *Schema) bool {
	if s == nil || o == nil {
		return s == o
	}
	a, b := s.Descriptors(), o.Descriptors()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].Bone != b[i].Bone || a[i].Name != b[i].Name || a[i].Axis != b[i].Axis {
			return false
		}
		if len(a[i].Times) != len(b[i].Times) {
			return false
		}
		for j := range a[i].Times {
			if a[i].Times[j] != b[i].Times[j] {
				return false
			}
		}
	}
	return true
}
