package calibration

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/motion.match/internal/config"
	"github.com/banshee-data/motion.match/internal/motion/feature"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrCalibrationMismatch means stored weights were computed for a
// different schema and the database must be preprocessed again.
var ErrCalibrationMismatch = errors.New("calibration does not match feature schema")

// JointWeight weights one matched bone.
type JointWeight struct {
	Position float64 `json:"position"`
	Velocity float64 `json:"velocity"`
}

// TrajectoryWeight weights one trajectory point.
type TrajectoryWeight struct {
	Position float64 `json:"position"`
	Facing   float64 `json:"facing"`
}

// Data holds one weight per schema group, arranged by channel.
type Data struct {
	WeightMomentum        float64            `json:"weight_momentum"`
	WeightAngularMomentum float64            `json:"weight_angular_momentum"`
	PoseJointWeights      []JointWeight      `json:"pose_joint_weights"`
	TrajectoryWeights     []TrajectoryWeight `json:"trajectory_weights"`
	ExtraWeights          []float64          `json:"extra_weights,omitempty"`
}

// NewUniform returns weights of 1 sized for schema.
func NewUniform(schema *feature.Schema) *Data {
	w := make([]float64, len(schema.Groups()))
	for i := range w {
		w[i] = 1
	}
	d, _ := FromFlat(schema, w)
	return d
}

// Clone returns a deep copy.
func (d *Data) Clone() *Data {
	if d == nil {
		return nil
	}
	out := *d
	out.PoseJointWeights = append([]JointWeight(nil), d.PoseJointWeights...)
	out.TrajectoryWeights = append([]TrajectoryWeight(nil), d.TrajectoryWeights...)
	out.ExtraWeights = append([]float64(nil), d.ExtraWeights...)
	return &out
}

func extraGroupCount(schema *feature.Schema) int {
	n := 0
	for _, g := range schema.Groups() {
		if g.Channel == feature.ChannelExtra {
			n++
		}
	}
	return n
}

// IsValidWithConfig checks array lengths against the live schema.
func (d *Data) IsValidWithConfig(schema *feature.Schema) error {
	if d == nil {
		return fmt.Errorf("%w: no calibration", ErrCalibrationMismatch)
	}
	if len(d.PoseJointWeights) != schema.BoneCount() {
		return fmt.Errorf("%w: %d joint weights for %d matched bones", ErrCalibrationMismatch, len(d.PoseJointWeights), schema.BoneCount())
	}
	if len(d.TrajectoryWeights) != schema.TrajectoryCount() {
		return fmt.Errorf("%w: %d trajectory weights for %d trajectory points", ErrCalibrationMismatch, len(d.TrajectoryWeights), schema.TrajectoryCount())
	}
	if n := extraGroupCount(schema); len(d.ExtraWeights) != n {
		return fmt.Errorf("%w: %d extra weights for %d extra groups", ErrCalibrationMismatch, len(d.ExtraWeights), n)
	}
	return nil
}

// Flatten returns one weight per schema group, in group order.
func (d *Data) Flatten(schema *feature.Schema) ([]float64, error) {
	if err := d.IsValidWithConfig(schema); err != nil {
		return nil, err
	}
	out := make([]float64, len(schema.Groups()))
	var traj, pose, extra int
	for i, g := range schema.Groups() {
		switch g.Channel {
		case feature.ChannelMomentum:
			out[i] = d.WeightMomentum
		case feature.ChannelAngularMomentum:
			out[i] = d.WeightAngularMomentum
		case feature.ChannelTrajectory:
			w := d.TrajectoryWeights[traj/2]
			out[i] = w.Position
			if traj%2 == 1 {
				out[i] = w.Facing
			}
			traj++
		case feature.ChannelPose:
			w := d.PoseJointWeights[pose/2]
			out[i] = w.Position
			if pose%2 == 1 {
				out[i] = w.Velocity
			}
			pose++
		case feature.ChannelExtra:
			out[i] = d.ExtraWeights[extra]
			extra++
		}
	}
	return out, nil
}

// FromFlat is the inverse of Flatten.
func FromFlat(schema *feature.Schema, w []float64) (*Data, error) {
	groups := schema.Groups()
	if len(w) != len(groups) {
		return nil, fmt.Errorf("%w: %d weights for %d groups", ErrCalibrationMismatch, len(w), len(groups))
	}
	d := &Data{
		PoseJointWeights:  make([]JointWeight, schema.BoneCount()),
		TrajectoryWeights: make([]TrajectoryWeight, schema.TrajectoryCount()),
	}
	var traj, pose int
	for i, g := range groups {
		switch g.Channel {
		case feature.ChannelMomentum:
			d.WeightMomentum = w[i]
		case feature.ChannelAngularMomentum:
			d.WeightAngularMomentum = w[i]
		case feature.ChannelTrajectory:
			if traj%2 == 0 {
				d.TrajectoryWeights[traj/2].Position = w[i]
			} else {
				d.TrajectoryWeights[traj/2].Facing = w[i]
			}
			traj++
		case feature.ChannelPose:
			if pose%2 == 0 {
				d.PoseJointWeights[pose/2].Position = w[i]
			} else {
				d.PoseJointWeights[pose/2].Velocity = w[i]
			}
			pose++
		case feature.ChannelExtra:
			d.ExtraWeights = append(d.ExtraWeights, w[i])
		}
	}
	return d, nil
}

// FromTuning builds authored weights for schema from the configured
// calibration. Omitted entries weigh 1; list lengths are checked when the
// result is validated against the schema.
func FromTuning(schema *feature.Schema, a *config.AuthoredCalibration) *Data {
	d := NewUniform(schema)
	if a == nil {
		return d
	}
	if a.Momentum != nil {
		d.WeightMomentum = *a.Momentum
	}
	if a.AngularMomentum != nil {
		d.WeightAngularMomentum = *a.AngularMomentum
	}
	if a.Joints != nil {
		d.PoseJointWeights = make([]JointWeight, len(a.Joints))
		for i, j := range a.Joints {
			d.PoseJointWeights[i] = JointWeight{Position: j.Position, Velocity: j.Velocity}
		}
	}
	if a.Trajectory != nil {
		d.TrajectoryWeights = make([]TrajectoryWeight, len(a.Trajectory))
		for i, p := range a.Trajectory {
			d.TrajectoryWeights[i] = TrajectoryWeight{Position: p.Position, Facing: p.Facing}
		}
	}
	if a.Extra != nil {
		d.ExtraWeights = append([]float64(nil), a.Extra...)
	}
	return d
}

// minDeviation is the mean squared distance below which a group is treated
// as constant and left unscaled.
const minDeviation = 1e-12

// StandardDeviation computes normaliser weights over rows, one partition's
// usable poses. Each group gets 1/sqrt(mean squared distance to the mean);
// angle groups use the circular mean. An empty partition yields uniform
// weights.
func StandardDeviation(schema *feature.Schema, rows [][]float64) *Data {
	if len(rows) == 0 {
		return NewUniform(schema)
	}
	mean := Mean(schema, rows)
	acc := make([]float64, len(schema.Groups()))
	for _, row := range rows {
		schema.AccumulateDeviation(row, mean, acc)
	}
	w := make([]float64, len(acc))
	for i, sum := range acc {
		msd := sum / float64(len(rows))
		if msd < minDeviation {
			w[i] = 1
			continue
		}
		w[i] = 1 / math.Sqrt(msd)
	}
	d, _ := FromFlat(schema, w)
	return d
}

// Mean returns the per-atom mean of rows, circular for angle groups.
func Mean(schema *feature.Schema, rows [][]float64) []float64 {
	atoms := schema.AtomCount()
	mean := make([]float64, atoms)
	col := make([]float64, len(rows))
	for a := 0; a < atoms; a++ {
		for r, row := range rows {
			col[r] = row[a]
		}
		mean[a] = stat.Mean(col, nil)
	}
	sin := make([]float64, len(rows))
	cos := make([]float64, len(rows))
	for _, g := range schema.Groups() {
		if g.Metric != feature.MetricAngle {
			continue
		}
		for r, row := range rows {
			sin[r], cos[r] = math.Sincos(row[g.Offset])
		}
		mean[g.Offset] = math.Atan2(stat.Mean(sin, nil), stat.Mean(cos, nil))
	}
	return mean
}

// Compose returns authored × responsiveness multiplier × normaliser for
// every group. Trajectory groups scale by ratio×2 and all other channels
// by (1−ratio)×2, with ratio clamped to [0,1].
func Compose(schema *feature.Schema, authored, stdDev *Data, responsiveness float64) (*Data, error) {
	a, err := authored.Flatten(schema)
	if err != nil {
		return nil, err
	}
	s, err := stdDev.Flatten(schema)
	if err != nil {
		return nil, err
	}
	ratio := math.Max(0, math.Min(1, responsiveness))
	mult := make([]float64, len(a))
	for i, g := range schema.Groups() {
		if g.Channel == feature.ChannelTrajectory {
			mult[i] = ratio * 2
		} else {
			mult[i] = (1 - ratio) * 2
		}
	}
	out := make([]float64, len(a))
	floats.MulTo(out, a, s)
	floats.Mul(out, mult)
	return FromFlat(schema, out)
}
