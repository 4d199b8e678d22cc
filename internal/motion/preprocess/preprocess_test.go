package preprocess_test

import (
	"context"
	"errors"
	"testing"

	"github.com/banshee-data/motion.match/internal/config"
	"github.com/banshee-data/motion.match/internal/motion/animsrc"
	"github.com/banshee-data/motion.match/internal/motion/feature"
	"github.com/banshee-data/motion.match/internal/motion/motiontest"
	"github.com/banshee-data/motion.match/internal/motion/posedb"
	"github.com/banshee-data/motion.match/internal/motion/preprocess"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleSourceLibrary(src *animsrc.Source) *animsrc.Library {
	return &animsrc.Library{Skeleton: motiontest.Skeleton(), Mirror: motiontest.Mirror(), Sources: []*animsrc.Source{src}}
}

func shortSchema(t *testing.T, extras ...feature.MatchFeature) *feature.Schema {
	t.Helper()
	s, err := feature.NewSchema([]float64{-0.2, 0.4}, []string{"foot_l"}, extras...)
	require.NoError(t, err)
	return s
}

func configWith(policy string, mirror bool) preprocess.Config {
	cfg := motiontest.Config()
	cfg.EdgePolicy = policy
	cfg.Mirror = mirror
	return cfg
}

func poseAt(t *testing.T, db *posedb.Database, anim int, mirrored bool, time float64) int {
	t.Helper()
	id := db.FindPose(anim, mirrored, mgl64.Vec2{}, time)
	require.GreaterOrEqual(t, id, 0)
	require.InDelta(t, time, db.Pose(id).Time, 1e-6)
	return id
}

func TestLoopingClipScenario(t *testing.T) {
	t.Parallel()

	lib := singleSourceLibrary(animsrc.NewSequenceSource(motiontest.Straight("loop", 2.0, 1), true))
	db := motiontest.DatabaseWith(t, lib, shortSchema(t), configWith(config.EdgePolicyIgnoreEdges, false))

	require.Equal(t, 21, db.Len())
	assert.InDelta(t, 1.9, db.Pose(db.Pose(0).LastPoseID).Time, 1e-6)
	assert.Equal(t, 0, db.Pose(20).NextPoseID)
	for i := range db.Poses {
		assert.False(t, db.Poses[i].DoNotUse, "pose %d", i)
		assert.Len(t, db.Joints(i), 1)
		assert.Len(t, db.Trajectory(i), 2)
		assert.Len(t, db.Row(i), db.Schema.AtomCount())
	}
	require.NotNil(t, db.Calibration)
	assert.Len(t, db.Calibration.Weights(0), len(db.Schema.Groups()))
}

func TestLoopVelocityAcrossWrap(t *testing.T) {
	t.Parallel()

	lib := singleSourceLibrary(animsrc.NewSequenceSource(motiontest.Straight("loop", 1.0, 1.5), true))
	db := motiontest.DatabaseWith(t, lib, shortSchema(t), configWith(config.EdgePolicyIgnoreEdges, false))

	for i := range db.Poses {
		v := db.Schema.LocalVelocity(db.Row(i))
		assert.InDelta(t, 1.5, v[0], 1e-6, "pose %d", i)
		assert.InDelta(t, 0, db.Schema.RotationalVelocity(db.Row(i)), 1e-6)
		traj := db.Trajectory(i)
		assert.InDelta(t, -0.3, traj[0].Position[0], 1e-6, "past point of pose %d", i)
		assert.InDelta(t, 0.6, traj[1].Position[0], 1e-6, "future point of pose %d", i)
	}
}

func TestIgnoreEdgesMarksDoNotUse(t *testing.T) {
	t.Parallel()

	lib := singleSourceLibrary(animsrc.NewSequenceSource(motiontest.Straight("long", 3.0, 1), false))

	tests := []struct {
		policy string
		time   float64
		want   bool
	}{
		{config.EdgePolicyIgnoreEdges, 0.1, true},
		{config.EdgePolicyIgnoreEdges, 0.5, false},
		{config.EdgePolicyIgnoreEdges, 1.5, false},
		{config.EdgePolicyIgnoreEdges, 2.9, true},
		{config.EdgePolicyExtrapolate, 0.1, false},
		{config.EdgePolicyNone, 2.9, false},
	}
	dbs := map[string]*posedb.Database{}
	for _, tt := range tests {
		db, ok := dbs[tt.policy]
		if !ok {
			db = motiontest.DatabaseWith(t, lib, shortSchema(t), configWith(tt.policy, false))
			dbs[tt.policy] = db
		}
		id := poseAt(t, db, 0, false, tt.time)
		assert.Equal(t, tt.want, db.Pose(id).DoNotUse, "%s at %.1f", tt.policy, tt.time)
	}
}

func TestEdgePolicyTrajectories(t *testing.T) {
	t.Parallel()

	lib := singleSourceLibrary(animsrc.NewSequenceSource(motiontest.Straight("short", 1.0, 1), false))

	tests := []struct {
		name       string
		policy     string
		time       float64
		point      int
		wantX      float64
		wantIgnore bool
	}{
		{"clamp past", config.EdgePolicyNone, 0, 0, 0, false},
		{"extrapolate past", config.EdgePolicyExtrapolate, 0, 0, -0.2, false},
		{"clamp future", config.EdgePolicyNone, 1.0, 1, 0, false},
		{"extrapolate future", config.EdgePolicyExtrapolate, 1.0, 1, 0.4, false},
		{"ignore future", config.EdgePolicyIgnoreEdges, 1.0, 1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := motiontest.DatabaseWith(t, lib, shortSchema(t), configWith(tt.policy, false))
			id := poseAt(t, db, 0, false, tt.time)
			assert.InDelta(t, tt.wantX, db.Trajectory(id)[tt.point].Position[0], 1e-6)
			assert.Equal(t, tt.wantIgnore, db.Pose(id).DoNotUse)
		})
	}
}

func TestUseAdjacentAnimation(t *testing.T) {
	t.Parallel()

	lib := motiontest.Library()
	db := motiontest.DatabaseWith(t, lib, motiontest.Schema(t), configWith(config.EdgePolicyUseAdjacent, false))

	// The stop clip is preceded by the 1.5 m/s walk loop.
	id := poseAt(t, db, motiontest.Stop, false, 0)
	past := db.Trajectory(id)[0]
	assert.InDelta(t, -0.45, past.Position[0], 1e-6)
	assert.False(t, db.Pose(id).DoNotUse)

	// The start clip has a following walk but no preceding clip.
	id = poseAt(t, db, motiontest.Start, false, 0)
	assert.InDelta(t, 0, db.Trajectory(id)[0].Position[0], 1e-6, "no preceding clip clamps")
}

func TestMirroredPass(t *testing.T) {
	t.Parallel()

	lib := motiontest.Library()
	db := motiontest.DatabaseWith(t, lib, motiontest.Schema(t), configWith(config.EdgePolicyExtrapolate, true))

	orig := poseAt(t, db, motiontest.TurnLeft, false, 0.5)
	mirr := poseAt(t, db, motiontest.TurnLeft, true, 0.5)
	assert.NotEqual(t, db.Pose(orig).LastPoseID, db.Pose(mirr).LastPoseID)

	a, b := db.Trajectory(orig), db.Trajectory(mirr)
	for i := range a {
		assert.InDelta(t, a[i].Position[0], b[i].Position[0], 1e-6)
		assert.InDelta(t, -a[i].Position[1], b[i].Position[1], 1e-6)
		assert.InDelta(t, -a[i].Facing, b[i].Facing, 1e-6)
	}
	assert.Greater(t, a[len(a)-1].Position[1], 0.0, "turn_left curves towards +Y")

	rowA, rowB := db.Row(orig), db.Row(mirr)
	assert.InDelta(t, -db.Schema.RotationalVelocity(rowA), db.Schema.RotationalVelocity(rowB), 1e-6)
	assert.InDelta(t, 1.2, db.Schema.RotationalVelocity(rowA), 1e-6)

	ja, jb := db.Joints(orig), db.Joints(mirr)
	want := ja[1].Position
	want[1] = -want[1]
	assert.InDeltaSlice(t, want[:], jb[0].Position[:], 1e-6, "mirrored foot_l reads foot_r")
}

func TestTagsApplyAfterSequencing(t *testing.T) {
	t.Parallel()

	src := animsrc.NewSequenceSource(motiontest.Straight("tagged", 2.0, 1), true)
	src.Tags = []animsrc.Tag{
		{Kind: animsrc.TagFavour, Start: 0, End: 0.5, Favour: 2},
		{Kind: animsrc.TagDoNotUse, Start: 1.0, End: 1.25},
		{Kind: animsrc.TagAction, Start: 0.3, End: 0.35, ActionID: 7},
		{Kind: animsrc.TagTraits, Start: 0, End: 1.0, Traits: 4},
		{Kind: animsrc.TagInteraction, Name: "seat", Start: 0.45, End: 0.55, Location: mgl64.Vec3{1, 0, 0}},
	}
	schema := shortSchema(t, feature.NewInteractionPoint("seat"))
	db := motiontest.DatabaseWith(t, singleSourceLibrary(src), schema, configWith(config.EdgePolicyIgnoreEdges, false))

	assert.InDelta(t, 2.0, db.Pose(poseAt(t, db, 0, false, 0.2)).Favour, 1e-9)
	assert.InDelta(t, 1.0, db.Pose(poseAt(t, db, 0, false, 0.7)).Favour, 1e-9)
	assert.True(t, db.Pose(poseAt(t, db, 0, false, 1.1)).DoNotUse)
	assert.False(t, db.Pose(poseAt(t, db, 0, false, 1.3)).DoNotUse)

	action := db.PosesWithAction(7)
	require.Len(t, action, 1)
	assert.InDelta(t, 0.3, db.Pose(action[0]).Time, 1e-6)

	assert.Equal(t, uint64(4), db.Pose(poseAt(t, db, 0, false, 0.2)).Traits)
	assert.Equal(t, []uint64{0, 4}, db.TraitGroups())
	assert.NotNil(t, db.Calibration.Entry(4))

	seat := poseAt(t, db, 0, false, 0.5)
	off, ok := schema.InteractionOffset("seat")
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{0.5, 0, 0}, db.Row(seat)[off:off+3], 1e-6)
	assert.InDeltaSlice(t, []float64{0, 0, 0}, db.Row(poseAt(t, db, 0, false, 0.7))[off:off+3], 1e-9)
}

func TestValidateAggregatesProblems(t *testing.T) {
	t.Parallel()

	p := &preprocess.Preprocessor{Name: "empty", Config: configWith(config.EdgePolicyIgnoreEdges, true)}
	err := p.Validate()
	require.Error(t, err)

	var verr *preprocess.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 4)
	assert.ErrorIs(t, err, preprocess.ErrNoSkeleton)
	assert.ErrorIs(t, err, preprocess.ErrNoSchema)
	assert.ErrorIs(t, err, preprocess.ErrNoAnimations)
	assert.ErrorIs(t, err, preprocess.ErrNoMirrorTable)

	db, err := p.Run(context.Background())
	assert.Nil(t, db)
	assert.ErrorIs(t, err, preprocess.ErrNoSkeleton)
}

func TestValidateSourceProblems(t *testing.T) {
	t.Parallel()

	lib := motiontest.Library()
	lib.Sources[motiontest.Walk].Following = 42
	lib.Sources = append(lib.Sources, nil, &animsrc.Source{Name: "missing"})

	cfg := motiontest.Config()
	cfg.EdgePolicy = "sideways"
	err := preprocess.New("bad", lib, motiontest.Schema(t), cfg).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adjacent source 42")
	assert.Contains(t, err.Error(), "sideways")
	assert.NotErrorIs(t, err, preprocess.ErrNoAnimations)
}

func TestInvalidSourcesKeepAnimIDs(t *testing.T) {
	t.Parallel()

	lib := motiontest.Library()
	lib.Sources = append([]*animsrc.Source{{Name: "deleted"}}, lib.Sources...)
	for _, src := range lib.Sources[1:] {
		src.Preceding, src.Following = animsrc.NoAdjacent, animsrc.NoAdjacent
	}
	db := motiontest.Database(t, lib)

	require.Len(t, db.Anims, len(lib.Sources))
	assert.Equal(t, "deleted", db.Anims[0].Name)
	assert.Empty(t, db.Run(0, false, mgl64.Vec2{}))
	assert.NotEmpty(t, db.Run(1, false, mgl64.Vec2{}))
}

func TestRunHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	db, err := preprocess.New("cancelled", motiontest.Library(), motiontest.Schema(t), motiontest.Config()).Run(ctx)
	assert.Nil(t, db)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoseCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		length, interval float64
		want             int
	}{
		{2.0, 0.1, 21},
		{1.0, 0.3, 5},
		{0.95, 0.1, 11},
		{0, 0.1, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, preprocess.PoseCount(tt.length, tt.interval), "%v/%v", tt.length, tt.interval)
	}
}

func TestConfigFromTuning(t *testing.T) {
	t.Parallel()

	cfg := preprocess.DefaultConfig()
	assert.Greater(t, cfg.Interval(), 0.0)
	assert.Equal(t, config.EdgePolicyIgnoreEdges, cfg.EdgePolicy)

	clamped := preprocess.Config{PoseInterval: 0.001, MinPoseInterval: 0.01}
	assert.InDelta(t, 0.01, clamped.Interval(), 1e-12)
}

func TestAuthoredCalibrationReachesDatabase(t *testing.T) {
	t.Parallel()

	three := 3.0
	cfg := &config.MatchConfig{
		AuthoredCalibration: &config.AuthoredCalibration{
			Momentum: &three,
			Joints:   []config.JointWeights{{Position: 0, Velocity: 0}, {Position: 2, Velocity: 1}},
		},
	}
	require.NoError(t, cfg.Validate())
	schema, err := feature.SchemaFromConfig(cfg)
	require.NoError(t, err)

	pcfg := preprocess.ConfigFromTuning(cfg)
	require.NotNil(t, pcfg.Authored)
	authored := motiontest.DatabaseWith(t, motiontest.Library(), schema, pcfg)

	pcfg.Authored = nil
	uniform := motiontest.DatabaseWith(t, motiontest.Library(), schema, pcfg)

	got := authored.Calibration
	assert.InDelta(t, 3, got.Authored.WeightMomentum, 1e-12)
	assert.InDelta(t, 1, got.Authored.WeightAngularMomentum, 1e-12)
	for _, traits := range got.Traits() {
		final, base := got.Entry(traits).Final, uniform.Calibration.Entry(traits).Final
		assert.InDelta(t, 3*base.WeightMomentum, final.WeightMomentum, 1e-9)
		assert.InDelta(t, base.WeightAngularMomentum, final.WeightAngularMomentum, 1e-9)
		assert.Zero(t, final.PoseJointWeights[0].Position)
		assert.Zero(t, final.PoseJointWeights[0].Velocity)
		assert.InDelta(t, 2*base.PoseJointWeights[1].Position, final.PoseJointWeights[1].Position, 1e-9)
	}

	assert.Nil(t, preprocess.ConfigFromTuning(config.EmptyMatchConfig()).Authored)
}
