package calibration

import (
	"math"
	"testing"

	"github.com/banshee-data/motion.match/internal/config"
	"github.com/banshee-data/motion.match/internal/motion/feature"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T, bones ...string) *feature.Schema {
	t.Helper()
	if len(bones) == 0 {
		bones = []string{"foot_l"}
	}
	s, err := feature.NewSchema([]float64{-0.2, 0.4}, bones)
	require.NoError(t, err)
	return s
}

func row(s *feature.Schema, set func(r []float64)) []float64 {
	r := make([]float64, s.AtomCount())
	set(r)
	return r
}

func TestStandardDeviation(t *testing.T) {
	t.Parallel()

	s := testSchema(t)
	trajFacing := s.Groups()[3].Offset // first trajectory facing atom
	rows := [][]float64{
		row(s, func(r []float64) { r[0] = 0; r[3] = 1; r[trajFacing] = math.Pi - 0.1 }),
		row(s, func(r []float64) { r[0] = 4; r[3] = 3; r[trajFacing] = -math.Pi + 0.1 }),
	}

	d := StandardDeviation(s, rows)
	assert.InDelta(t, 0.5, d.WeightMomentum, 1e-12, "|x-mean|² = 4 ⇒ 1/sqrt(4)")
	assert.InDelta(t, 1.0, d.WeightAngularMomentum, 1e-12)
	assert.InDelta(t, 10.0, d.TrajectoryWeights[0].Facing, 1e-9, "facing uses the circular mean")
	assert.Equal(t, 1.0, d.TrajectoryWeights[1].Position, "constant group is left unscaled")
	assert.Equal(t, 1.0, d.PoseJointWeights[0].Velocity)
}

func TestStandardDeviationEmptyPartition(t *testing.T) {
	t.Parallel()

	s := testSchema(t)
	assert.Equal(t, NewUniform(s), StandardDeviation(s, nil))
}

func TestMeanCircular(t *testing.T) {
	t.Parallel()

	s := testSchema(t)
	facing := s.Groups()[3].Offset
	rows := [][]float64{
		row(s, func(r []float64) { r[facing] = math.Pi - 0.2 }),
		row(s, func(r []float64) { r[facing] = -math.Pi + 0.2 }),
	}
	mean := Mean(s, rows)
	assert.InDelta(t, math.Pi, math.Abs(mean[facing]), 1e-9)
}

func TestCompose(t *testing.T) {
	t.Parallel()

	s := testSchema(t)
	authored := NewUniform(s)
	authored.WeightMomentum = 2
	authored.TrajectoryWeights[1].Position = 3
	stdDev := NewUniform(s)
	stdDev.WeightMomentum = 0.5

	tests := []struct {
		name           string
		responsiveness float64
		wantMomentum   float64
		wantTraj       float64
	}{
		{"neutral", 0.5, 1.0, 3.0},
		{"all trajectory", 1.0, 0.0, 6.0},
		{"all pose", 0.0, 2.0, 0.0},
		{"clamped", 7, 0.0, 6.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			final, err := Compose(s, authored, stdDev, tt.responsiveness)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantMomentum, final.WeightMomentum, 1e-12)
			assert.InDelta(t, tt.wantTraj, final.TrajectoryWeights[1].Position, 1e-12)
		})
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	t.Parallel()

	s := testSchema(t, "foot_l", "foot_r")
	d := &Data{
		WeightMomentum:        1,
		WeightAngularMomentum: 2,
		TrajectoryWeights:     []TrajectoryWeight{{3, 4}, {5, 6}},
		PoseJointWeights:      []JointWeight{{7, 8}, {9, 10}},
	}
	flat, err := d.Flatten(s)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, flat)

	back, err := FromFlat(s, flat)
	require.NoError(t, err)
	if diff := cmp.Diff(d, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFromTuning(t *testing.T) {
	t.Parallel()

	s := testSchema(t, "foot_l", "foot_r")
	two := 2.0
	d := FromTuning(s, &config.AuthoredCalibration{
		Momentum: &two,
		Joints:   []config.JointWeights{{Position: 3, Velocity: 0.5}, {Position: 1, Velocity: 1}},
	})
	require.NoError(t, d.IsValidWithConfig(s))
	want := &Data{
		WeightMomentum:        2,
		WeightAngularMomentum: 1,
		PoseJointWeights:      []JointWeight{{Position: 3, Velocity: 0.5}, {Position: 1, Velocity: 1}},
		TrajectoryWeights:     []TrajectoryWeight{{Position: 1, Facing: 1}, {Position: 1, Facing: 1}},
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("authored weights mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, NewUniform(s), FromTuning(s, nil))

	short := FromTuning(s, &config.AuthoredCalibration{Joints: []config.JointWeights{{Position: 3}}})
	assert.ErrorIs(t, short.IsValidWithConfig(s), ErrCalibrationMismatch)
}

func TestIsValidWithConfig(t *testing.T) {
	t.Parallel()

	one := testSchema(t, "foot_l")
	two := testSchema(t, "foot_l", "foot_r")
	d := NewUniform(one)
	require.NoError(t, d.IsValidWithConfig(one))
	assert.ErrorIs(t, d.IsValidWithConfig(two), ErrCalibrationMismatch)

	longer, err := feature.NewSchema([]float64{-0.2, 0.4, 0.8}, []string{"foot_l"})
	require.NoError(t, err)
	assert.ErrorIs(t, d.IsValidWithConfig(longer), ErrCalibrationMismatch)

	var nilData *Data
	assert.ErrorIs(t, nilData.IsValidWithConfig(one), ErrCalibrationMismatch)
}

func TestBuildSetPerTraits(t *testing.T) {
	t.Parallel()

	s := testSchema(t)
	partitions := map[uint64][][]float64{
		0: {row(s, func(r []float64) { r[0] = 0 }), row(s, func(r []float64) { r[0] = 2 })},
		1: {row(s, func(r []float64) { r[0] = 0 }), row(s, func(r []float64) { r[0] = 8 })},
	}
	set, err := Build(s, partitions, nil, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, set.Traits())
	assert.InDelta(t, 1.0, set.Entry(0).Final.WeightMomentum, 1e-12)
	assert.InDelta(t, 0.25, set.Entry(1).Final.WeightMomentum, 1e-12)
	assert.Len(t, set.Weights(1), len(s.Groups()))
	assert.Nil(t, set.Weights(2))
	require.NoError(t, set.IsValidWithConfig(s))
	assert.ErrorIs(t, set.IsValidWithConfig(testSchema(t, "foot_l", "foot_r")), ErrCalibrationMismatch)

	_, err = Build(s, partitions, NewUniform(testSchema(t, "a", "b")), 0.5)
	assert.ErrorIs(t, err, ErrCalibrationMismatch)
}

func TestRebuildLeavesOriginalUntouched(t *testing.T) {
	t.Parallel()

	s := testSchema(t)
	partitions := map[uint64][][]float64{0: {row(s, func(r []float64) { r[0] = 0 }), row(s, func(r []float64) { r[0] = 2 })}}
	set, err := Build(s, partitions, nil, 0.5)
	require.NoError(t, err)
	before := set.Weights(0)[0]

	snap := set.Snapshot()
	snap.Authored.WeightMomentum = 10
	rebuilt, err := set.Rebuild(s, snap)
	require.NoError(t, err)

	assert.InDelta(t, before, set.Weights(0)[0], 0, "original set is immutable")
	assert.Equal(t, 1.0, set.Authored.WeightMomentum, "snapshot is a copy")
	assert.InDelta(t, 10*before, rebuilt.Weights(0)[0], 1e-12)
}
