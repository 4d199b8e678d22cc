package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/motion.match/internal/motion/cost"
	"github.com/banshee-data/motion.match/internal/motion/motiontest"
	"github.com/banshee-data/motion.match/internal/motion/posedb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureDB(t *testing.T) *posedb.Database {
	t.Helper()
	return motiontest.Database(t, motiontest.Library())
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	db := fixtureDB(t)
	s := Summarize(db)

	assert.Equal(t, db.Len(), s.Poses)
	assert.Equal(t, db.AtomCount(), s.AtomCount)
	require.Len(t, s.Anims, len(db.Anims))

	total, mirrored := 0, 0
	for _, a := range s.Anims {
		total += a.Poses
		mirrored += a.Mirrored
		assert.LessOrEqual(t, a.DoNotUse, a.Poses, a.Name)
	}
	assert.Equal(t, s.Poses, total)
	assert.Greater(t, mirrored, 0)
	assert.Greater(t, s.Usable, 0)
	assert.LessOrEqual(t, s.Usable, s.Poses)

	assert.Equal(t, "run", s.Anims[motiontest.Run].Name)
	assert.True(t, s.Anims[motiontest.Run].Loop)
	assert.InDelta(t, 4.0, s.SpeedMax, 0.1)
	assert.GreaterOrEqual(t, s.SpeedMin, 0.0)
	assert.LessOrEqual(t, s.SpeedMin, s.SpeedMedian)
	assert.LessOrEqual(t, s.SpeedMedian, s.SpeedMax)

	var buf bytes.Buffer
	require.NoError(t, s.WriteText(&buf))
	for _, a := range db.Anims {
		assert.Contains(t, buf.String(), a.Name)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	t.Parallel()

	db := posedb.New("empty", motiontest.Schema(t), 0.1)
	s := Summarize(db)
	assert.Zero(t, s.Poses)
	assert.Zero(t, s.SpeedMax)
	assert.Empty(t, s.Anims)
}

func TestPlots(t *testing.T) {
	t.Parallel()

	db := fixtureDB(t)
	dir := t.TempDir()

	trajPath := filepath.Join(dir, "trajectories.png")
	require.NoError(t, PlotTrajectories(db, trajPath))

	eval := cost.New(db.Schema, cost.Config{})
	traits := db.TraitGroups()[0]
	ids := db.Partition(traits)
	costs := CostDistribution(db, eval, db.Row(ids[0]), traits)
	require.Len(t, costs, len(ids))
	assert.InDelta(t, 0, costs[0], 1e-9)
	for _, c := range costs {
		assert.False(t, math.IsNaN(c))
		assert.GreaterOrEqual(t, c, 0.0)
	}

	histPath := filepath.Join(dir, "costs.png")
	require.NoError(t, CostHistogram(costs, 0, "costs", histPath))

	for _, p := range []string{trajPath, histPath} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0), p)
	}

	assert.Error(t, CostHistogram([]float64{math.Inf(1)}, 10, "none", filepath.Join(dir, "none.png")))
}

func TestRenderCoverage(t *testing.T) {
	t.Parallel()

	db := fixtureDB(t)
	var buf bytes.Buffer
	require.NoError(t, RenderCoverage(db, &buf))

	html := buf.String()
	assert.True(t, strings.Contains(html, "<html"), "rendered page is not html")
	for _, a := range db.Anims {
		assert.Contains(t, html, a.Name)
	}
}
