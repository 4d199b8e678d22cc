package animsrc

import (
	"testing"

	"github.com/banshee-data/motion.match/internal/config"
	"github.com/banshee-data/motion.match/internal/motion/skeleton"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSkeleton(t *testing.T) *skeleton.RefSkeleton {
	t.Helper()
	skel, err := skeleton.NewRefSkeleton([]skeleton.Bone{
		{Name: "root", Parent: -1},
		{Name: "pelvis", Parent: 0, Local: skeleton.NewTransform(mgl64.Vec3{0, 0, 1}, mgl64.QuatIdent())},
	})
	require.NoError(t, err)
	return skel
}

// linearClip moves the root along +X at speed m/s for length seconds.
func linearClip(name string, length, speed float64) *Sequence {
	return NewSequence(name, length, []Track{{
		Bone: "root",
		Keys: []Keyframe{
			{Time: 0, Local: skeleton.Identity()},
			{Time: length, Local: skeleton.NewTransform(mgl64.Vec3{length * speed, 0, 0}, mgl64.QuatIdent())},
		},
	}}, []Notify{{Name: "foot_down", Time: 0.25}, {Name: "foot_up", Time: 0.75}})
}

func TestSequenceSampleInterpolates(t *testing.T) {
	t.Parallel()

	skel := testSkeleton(t)
	seq := linearClip("walk", 1, 2)

	local := seq.SampleLocal(skel, 0.5)
	require.Len(t, local, 2)
	assert.InDelta(t, 1.0, local[0].Translation[0], 1e-9)
	assert.Equal(t, skel.RefPose(1), local[1], "untracked bone holds reference pose")

	assert.InDelta(t, 2.0, seq.SampleRoot(skel, 5).Translation[0], 1e-9, "sampling clamps past the end")
}

func TestRootMotionAcrossLoop(t *testing.T) {
	t.Parallel()

	skel := testSkeleton(t)
	src := NewSequenceSource(linearClip("walk", 1, 1), true)

	tests := []struct {
		name     string
		from, to float64
		want     float64
	}{
		{"inside", 0.2, 0.6, 0.4},
		{"wrap forward", 0.8, 1.3, 0.5},
		{"two loops", 0.5, 2.5, 2.0},
		{"backward", 0.2, -0.3, -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := src.RootMotion(skel, tt.from, tt.to, mgl64.Vec2{})
			assert.InDelta(t, tt.want, got.Translation[0], 1e-9)
		})
	}
}

func TestRootMotionClampsWithoutLoop(t *testing.T) {
	t.Parallel()

	skel := testSkeleton(t)
	src := NewSequenceSource(linearClip("stop", 1, 1), false)
	got := src.RootMotion(skel, 0.5, 3, mgl64.Vec2{})
	assert.InDelta(t, 0.5, got.Translation[0], 1e-9)
	assert.InDelta(t, 1.0, src.WrapTime(7, mgl64.Vec2{}), 1e-12)
}

func TestNotifiesWrap(t *testing.T) {
	t.Parallel()

	src := NewSequenceSource(linearClip("walk", 1, 1), true)
	names := func(ns []Notify) []string {
		var out []string
		for _, n := range ns {
			out = append(out, n.Name)
		}
		return out
	}
	assert.Equal(t, []string{"foot_down"}, names(src.Notifies(0.1, 0.3, mgl64.Vec2{})))
	assert.Equal(t, []string{"foot_up", "foot_down"}, names(src.Notifies(0.7, 0.3, mgl64.Vec2{})))
	assert.Empty(t, src.Notifies(0.3, 0.7, mgl64.Vec2{}))
}

func TestBlendSpaceWeights(t *testing.T) {
	t.Parallel()

	bs := &BlendSpace{Name: "locomotion", Samples: []BlendSample{
		{Position: mgl64.Vec2{0, 0}, Sequence: linearClip("walk", 1, 1)},
		{Position: mgl64.Vec2{1, 0}, Sequence: linearClip("run", 0.5, 4)},
	}}

	assert.Equal(t, []float64{1, 0}, bs.Weights(mgl64.Vec2{0, 0}))
	mid := bs.Weights(mgl64.Vec2{0.5, 0})
	assert.InDelta(t, 0.5, mid[0], 1e-12)
	assert.InDelta(t, 0.5, mid[1], 1e-12)
	assert.InDelta(t, 0.75, bs.Length(mgl64.Vec2{0.5, 0}), 1e-12)

	skel := testSkeleton(t)
	// Both samples reach the end of their root track at full phase.
	root := bs.SampleRoot(skel, 0.75, mgl64.Vec2{0.5, 0})
	assert.InDelta(t, 1.5, root.Translation[0], 1e-9)
}

func TestCompositeStitchesRoot(t *testing.T) {
	t.Parallel()

	skel := testSkeleton(t)
	c := &Composite{Name: "walk_twice", Segments: []*Sequence{linearClip("a", 1, 1), linearClip("b", 1, 1)}}
	src := NewCompositeSource(c, false)

	assert.InDelta(t, 2.0, src.Length(mgl64.Vec2{}), 1e-12)
	assert.InDelta(t, 1.5, src.RootAt(skel, 1.5, mgl64.Vec2{}).Translation[0], 1e-9)
	pose := src.SampleComponent(skel, 1.5, mgl64.Vec2{})
	assert.InDelta(t, 1.5, pose[1].Translation[0], 1e-9)
	assert.InDelta(t, 1.0, pose[1].Translation[2], 1e-9)

	ns := c.NotifiesIn(1.0, 1.3)
	require.Len(t, ns, 1)
	assert.InDelta(t, 1.25, ns[0].Time, 1e-12)
}

func TestDistanceCurve(t *testing.T) {
	t.Parallel()

	stop := DistanceCurve{Trigger: TriggerStop, Times: []float64{0, 0.5, 1}, Distances: []float64{2, 1, 0}}
	require.NoError(t, stop.Validate())
	assert.InDelta(t, 0.25, stop.TimeAtDistance(1.5), 1e-12)
	assert.InDelta(t, 0.0, stop.TimeAtDistance(10), 1e-12)
	assert.InDelta(t, 1.0, stop.TimeAtDistance(-1), 1e-12)
	assert.InDelta(t, 0.5, stop.DistanceAt(0.75), 1e-12)

	start := DistanceCurve{Trigger: TriggerStart, Times: []float64{0, 1}, Distances: []float64{0, 3}}
	assert.InDelta(t, 0.5, start.TimeAtDistance(1.5), 1e-12)

	bad := DistanceCurve{Times: []float64{0, 1, 2}, Distances: []float64{0, 2, 1}}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidCurve)
	assert.ErrorIs(t, (&DistanceCurve{Times: []float64{0}}).Validate(), ErrInvalidCurve)
}

func TestParseTrigger(t *testing.T) {
	t.Parallel()

	for i := TriggerNone; i <= TriggerJump; i++ {
		got, err := ParseTrigger(i.String())
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}
	_, err := ParseTrigger("cartwheel")
	assert.Error(t, err)
}

func TestTraitsAt(t *testing.T) {
	t.Parallel()

	src := NewSequenceSource(linearClip("walk", 1, 1), true)
	src.Traits = 1
	src.Tags = []Tag{{Kind: TagTraits, Start: 0.5, End: 0.8, Traits: 4}}
	assert.Equal(t, uint64(1), src.TraitsAt(0.2))
	assert.Equal(t, uint64(5), src.TraitsAt(0.5))
	assert.Equal(t, uint64(1), src.TraitsAt(0.8))
}

const libraryJSON = `{
  "skeleton": {"bones": [
    {"name": "root", "parent": -1},
    {"name": "foot_l", "parent": 0, "translation": [0, -0.2, 0]},
    {"name": "foot_r", "parent": 0, "translation": [0, 0.2, 0]}
  ]},
  "mirror": {"axis": "y", "pairs": {"foot_l": "foot_r"}},
  "sequences": [
    {"name": "walk", "length": 1.0, "tracks": [{"bone": "root", "keys": [
      {"time": 0, "translation": [0, 0, 0]},
      {"time": 1, "translation": [1.2, 0, 0], "yaw": 0.1}
    ]}], "notifies": [{"name": "step", "time": 0.5}]},
    {"name": "stop", "length": 0.8, "tracks": []}
  ],
  "sources": [
    {"name": "walk", "kind": "sequence", "sequence": "walk", "loop": true, "traits": ["armed"], "following": "stop",
     "tags": [{"kind": "action", "start": 0.2, "end": 0.4, "action_id": 7}]},
    {"name": "stop", "sequence": "stop", "favour": 0.8,
     "distance_curves": [{"trigger": "stop", "times": [0, 0.8], "distances": [1, 0]}]},
    {"name": "loco", "kind": "blend_space", "loop": true,
     "blend_space": [{"position": [0, 0], "sequence": "walk"}, {"position": [1, 0], "sequence": "stop"}],
     "blend_positions": [[0, 0], [0.5, 0]]}
  ]
}`

func TestParseLibrary(t *testing.T) {
	t.Parallel()

	traits := config.NewTraitRegistry([]string{"crouch", "armed"})
	lib, err := ParseLibrary([]byte(libraryJSON), traits)
	require.NoError(t, err)

	assert.Equal(t, 3, lib.Skeleton.BoneCount())
	require.NotNil(t, lib.Mirror)
	assert.Equal(t, "foot_r", lib.Mirror.MirrorBoneName("foot_l"))
	require.Len(t, lib.Sources, 3)

	walk := lib.Sources[0]
	assert.Equal(t, KindSequence, walk.Kind)
	assert.True(t, walk.Loop)
	assert.Equal(t, uint64(2), walk.Traits)
	assert.Equal(t, 1, walk.Following)
	assert.Equal(t, NoAdjacent, walk.Preceding)
	require.Len(t, walk.Tags, 1)
	assert.Equal(t, TagAction, walk.Tags[0].Kind)
	assert.Equal(t, 7, walk.Tags[0].ActionID)
	assert.InDelta(t, 0.1, walk.RootAt(lib.Skeleton, 1, mgl64.Vec2{}).Yaw(), 1e-9)

	stop := lib.Sources[1]
	assert.InDelta(t, 0.8, stop.GetFavour(), 1e-12)
	require.NotNil(t, stop.Curve(TriggerStop))
	assert.Nil(t, stop.Curve(TriggerJump))

	loco := lib.Sources[2]
	assert.Equal(t, KindBlendSpace, loco.Kind)
	assert.Len(t, loco.Positions(), 2)
	assert.True(t, loco.Valid())
}

func TestParseLibraryErrors(t *testing.T) {
	t.Parallel()

	traits := config.NewTraitRegistry([]string{"crouch"})
	cases := map[string]string{
		"bad json":         `{`,
		"unknown trait":    `{"skeleton":{"bones":[{"name":"root","parent":-1}]},"sequences":[{"name":"a","length":1}],"sources":[{"name":"a","sequence":"a","traits":["flying"]}]}`,
		"unknown sequence": `{"skeleton":{"bones":[{"name":"root","parent":-1}]},"sources":[{"name":"a","sequence":"missing"}]}`,
		"bad adjacent":     `{"skeleton":{"bones":[{"name":"root","parent":-1}]},"sequences":[{"name":"a","length":1}],"sources":[{"name":"a","sequence":"a","preceding":"nope"}]}`,
		"zero length":      `{"skeleton":{"bones":[{"name":"root","parent":-1}]},"sequences":[{"name":"a","length":0}]}`,
		"no skeleton":      `{"sequences":[]}`,
		"bad kind":         `{"skeleton":{"bones":[{"name":"root","parent":-1}]},"sources":[{"name":"a","kind":"ragdoll"}]}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseLibrary([]byte(data), traits)
			assert.Error(t, err)
		})
	}
}

func TestRecorderRootRelative(t *testing.T) {
	t.Parallel()

	var r Recorder
	assert.False(t, r.Ready())

	first := skeleton.Pose{
		skeleton.NewTransform(mgl64.Vec3{1, 0, 0}, mgl64.QuatIdent()),
		skeleton.NewTransform(mgl64.Vec3{1, 0, 1}, mgl64.QuatIdent()),
	}
	second := skeleton.Pose{
		skeleton.NewTransform(mgl64.Vec3{1.1, 0, 0}, mgl64.QuatIdent()),
		skeleton.NewTransform(mgl64.Vec3{1.1, 0, 1}, mgl64.QuatIdent()),
	}
	r.Record(first, 0.1)
	r.Record(second, 0.1)
	require.True(t, r.Ready())

	cur, prev := r.Current(), r.Previous()
	assert.True(t, cur[1].Translation.ApproxEqualThreshold(mgl64.Vec3{0, 0, 1}, 1e-12))
	assert.True(t, prev[1].Translation.ApproxEqualThreshold(mgl64.Vec3{-0.1, 0, 1}, 1e-12))

	r.Reset()
	assert.False(t, r.Ready())
}
