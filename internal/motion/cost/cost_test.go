package cost

import (
	"math"
	"math/rand"
	"testing"

	"github.com/banshee-data/motion.match/internal/motion/feature"
	"github.com/banshee-data/motion.match/internal/motion/posedb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *feature.Schema {
	t.Helper()
	s, err := feature.NewSchema([]float64{-0.2, 0.4}, []string{"foot_l"})
	require.NoError(t, err)
	return s
}

// testDB stores rows as poses of one animation with the given favours.
func testDB(t *testing.T, s *feature.Schema, favours []float64, rows ...[]float64) *posedb.Database {
	t.Helper()
	db := posedb.New("cost", s, 0.1)
	anim := db.AddAnim(posedb.AnimInfo{Name: "clip", Length: 1})
	for i, row := range rows {
		_, err := db.Append(posedb.Pose{AnimID: anim, Time: float64(i) * 0.1, Favour: favours[i]}, row)
		require.NoError(t, err)
	}
	db.GeneratePoseSequencing()
	return db
}

func set(row []float64, g feature.Group, v ...float64) {
	copy(row[g.Offset:g.Offset+g.Size], v)
}

func TestMomentumOnlyScenario(t *testing.T) {
	t.Parallel()

	s := testSchema(t)
	g := s.Groups()
	query := make([]float64, s.AtomCount())
	cand := make([]float64, s.AtomCount())
	set(query, g[0], 1, 0, 0)
	set(cand, g[0], 1, 0, 0)

	weights := make([]float64, len(g))
	weights[0] = 2
	db := testDB(t, s, []float64{3}, cand)
	e := New(s, Config{})

	assert.Equal(t, 0.0, e.Raw(query, cand, weights))
	assert.Equal(t, 0.0, e.Cost(query, db, 0, weights, -1))
}

func TestChannelsAreAdditive(t *testing.T) {
	t.Parallel()

	s := testSchema(t)
	g := s.Groups()
	query := make([]float64, s.AtomCount())
	cand := make([]float64, s.AtomCount())
	set(cand, g[0], 1, 2, 0)
	set(cand, g[1], 0.5)
	set(cand, g[2], 0, 0, 1)
	set(query, g[3], math.Pi-0.1)
	set(cand, g[3], -math.Pi+0.1)
	set(cand, g[6], 1, 0, 0)
	set(cand, g[7], 0, 1, 0)

	weights := []float64{2, 3, 1, 1, 1, 1, 1, 0.5}
	e := New(s, Config{})
	b := e.Breakdown(query, cand, weights)

	assert.InDelta(t, 10, b.Channel(feature.ChannelMomentum), 1e-9)
	assert.InDelta(t, 1.5, b.Channel(feature.ChannelAngularMomentum), 1e-9)
	assert.InDelta(t, 1.2, b.Channel(feature.ChannelTrajectory), 1e-9, "facing uses the shortest angle")
	assert.InDelta(t, 1.5, b.Channel(feature.ChannelPose), 1e-9)
	assert.InDelta(t, 0, b.Channel(feature.ChannelExtra), 1e-9)
	assert.InDelta(t, 14.2, b.Total(), 1e-9)
	assert.InDelta(t, b.Total(), e.Raw(query, cand, weights), 1e-9)

	db := testDB(t, s, []float64{2}, cand)
	assert.InDelta(t, 28.4, e.Cost(query, db, 0, weights, -1), 1e-9)
}

func TestWithoutChannel(t *testing.T) {
	t.Parallel()

	s := testSchema(t)
	g := s.Groups()
	e := New(s, Config{})
	query := make([]float64, s.AtomCount())
	cand := make([]float64, s.AtomCount())
	set(cand, g[0], 1, 0, 0)
	set(cand, g[6], 3, 0, 0)
	set(cand, g[7], 0, 3, 0)

	weights := []float64{2, 3, 1, 1, 1, 1, 1, 0.5}
	masked := e.WithoutChannel(nil, weights, feature.ChannelPose)
	require.Len(t, masked, len(g))
	assert.Equal(t, []float64{2, 3, 1, 1, 1, 1, 1, 0.5}, weights, "input is not modified")

	b := e.Breakdown(query, cand, masked)
	assert.Zero(t, b.Channel(feature.ChannelPose))
	assert.InDelta(t, 2, b.Channel(feature.ChannelMomentum), 1e-9)

	uniform := e.WithoutChannel(masked, nil, feature.ChannelPose)
	for i, gr := range g {
		want := 1.0
		if gr.Channel == feature.ChannelPose {
			want = 0
		}
		assert.Equal(t, want, uniform[i], gr.Label)
	}
}

func TestCostMonotonicInWeights(t *testing.T) {
	t.Parallel()

	s := testSchema(t)
	e := New(s, Config{})
	rng := rand.New(rand.NewSource(7))
	random := func() []float64 {
		row := make([]float64, s.AtomCount())
		for i := range row {
			row[i] = rng.Float64()*4 - 2
		}
		return row
	}

	for trial := 0; trial < 50; trial++ {
		query, cand := random(), random()
		weights := make([]float64, len(s.Groups()))
		for i := range weights {
			weights[i] = rng.Float64()
		}
		base := e.Breakdown(query, cand, weights)
		for i, g := range s.Groups() {
			bumped := append([]float64(nil), weights...)
			bumped[i] += rng.Float64() * 3
			got := e.Breakdown(query, cand, bumped)
			assert.GreaterOrEqual(t, got.Channel(g.Channel), base.Channel(g.Channel), "group %s", g.Label)
			assert.GreaterOrEqual(t, got.Total(), base.Total())
		}
	}
}

func TestNilWeightsAreUniform(t *testing.T) {
	t.Parallel()

	s := testSchema(t)
	e := New(s, Config{})
	query := make([]float64, s.AtomCount())
	cand := make([]float64, s.AtomCount())
	for i := range cand {
		cand[i] = 0.5
	}
	ones := make([]float64, len(s.Groups()))
	for i := range ones {
		ones[i] = 1
	}
	assert.InDelta(t, e.Raw(query, cand, ones), e.Raw(query, cand, nil), 1e-12)
}

func TestFavourCurrentPoseBreaksTie(t *testing.T) {
	t.Parallel()

	s := testSchema(t)
	query := make([]float64, s.AtomCount())
	row := make([]float64, s.AtomCount())
	set(row, s.Groups()[0], 1, 0, 0)
	db := testDB(t, s, []float64{1, 1, 1}, row, row, row)
	e := New(s, Config{FavourCurrentPose: true, CurrentPoseFavour: 0.9})

	naturalNext := 1
	best, bestCost := -1, math.Inf(1)
	for id := 0; id < db.Len(); id++ {
		if c := e.Cost(query, db, id, nil, naturalNext); c < bestCost {
			best, bestCost = id, c
		}
	}
	assert.Equal(t, naturalNext, best)
	assert.InDelta(t, 0.9, bestCost, 1e-12)

	off := New(s, Config{FavourCurrentPose: false, CurrentPoseFavour: 0.9})
	assert.InDelta(t, 1.0, off.Cost(query, db, naturalNext, nil, naturalNext), 1e-12)
	assert.InDelta(t, 0.9, e.MinScale(1), 1e-12)
	assert.InDelta(t, 2.0, off.MinScale(2), 1e-12)
}

func TestCostBelow(t *testing.T) {
	t.Parallel()

	s := testSchema(t)
	g := s.Groups()
	query := make([]float64, s.AtomCount())
	cand := make([]float64, s.AtomCount())
	set(cand, g[0], 2, 0, 0) // momentum 4
	set(cand, g[6], 1, 0, 0) // pose 1
	db := testDB(t, s, []float64{1}, cand)
	e := New(s, Config{})

	full := e.Cost(query, db, 0, nil, -1)
	require.InDelta(t, 5, full, 1e-12)

	tests := []struct {
		name    string
		limit   float64
		wantOK  bool
		wantMin float64
	}{
		{"above", 10, true, 5},
		{"equal is kept", 5, true, 5},
		{"abandoned after momentum", 3, false, 4},
		{"abandoned at pose", 4.5, false, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := e.CostBelow(query, db, 0, nil, -1, tt.limit)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.wantMin, got, 1e-12)
			assert.LessOrEqual(t, got, full)
		})
	}
}
