package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/motion.match/internal/config"
	"github.com/banshee-data/motion.match/internal/motion/animsrc"
	"github.com/banshee-data/motion.match/internal/motion/feature"
	"github.com/banshee-data/motion.match/internal/motion/motiontest"
	"github.com/banshee-data/motion.match/internal/motion/storage/sqlite"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFixture(t *testing.T) (*sqlite.Store, *buildResult) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "motion.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	res, err := build(context.Background(), buildOptions{
		Name:    "fixture",
		Library: motiontest.Library(),
		Config:  config.MustLoadDefaultConfig(),
		Store:   store,
	})
	require.NoError(t, err)
	return store, res
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "motion.db", *dbPath)
	assert.Empty(t, *configPath)
	assert.False(t, *listOnly)
	assert.False(t, *showVersion)
}

func TestBuildStoresDatabase(t *testing.T) {
	t.Parallel()

	store, res := buildFixture(t)
	require.NotNil(t, res.Record)
	assert.Equal(t, res.DB.Len(), res.Record.PoseCount)
	assert.Equal(t, len(res.DB.Anims), res.Record.AnimCount)
	assert.True(t, res.Record.HasIndex)
	require.NotNil(t, res.Index)

	found, err := store.Find(context.Background(), "fixture")
	require.NoError(t, err)
	assert.Equal(t, res.Record.ID, found.ID)

	loaded, err := store.Load(context.Background(), found.ID)
	require.NoError(t, err)
	assert.Equal(t, res.DB.Len(), loaded.Len())
}

func TestBuildWithConfiguredFeatures(t *testing.T) {
	t.Parallel()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "motion.db"))
	require.NoError(t, err)
	defer store.Close()

	lib := motiontest.Library()
	lib.Sources[motiontest.Walk].Tags = []animsrc.Tag{
		{Kind: animsrc.TagInteraction, Name: "seat", Start: 0.45, End: 0.55, Location: mgl64.Vec3{1, 0.5, 0}},
	}
	cfg := config.MustLoadDefaultConfig()
	cfg.Features = []config.FeatureConfig{
		{Kind: config.FeatureInteractionPoint, Name: "seat"},
		{Kind: config.FeatureBoneAxis, Bone: "foot_l", Axis: [3]float64{1, 0, 0}},
	}
	four := 4.0
	cfg.AuthoredCalibration = &config.AuthoredCalibration{Momentum: &four, Extra: []float64{5, 0.5}}
	require.NoError(t, cfg.Validate())

	res, err := build(context.Background(), buildOptions{Name: "features", Library: lib, Config: cfg, Store: store})
	require.NoError(t, err)

	schema := res.DB.Schema
	off, ok := schema.InteractionOffset("seat")
	require.True(t, ok)
	seat := res.DB.FindPose(motiontest.Walk, false, mgl64.Vec2{}, 0.5)
	require.GreaterOrEqual(t, seat, 0)
	// Walk covers 0.75m by t=0.5; rows hold the tag relative to the root.
	assert.InDeltaSlice(t, []float64{0.25, 0.5, 0}, res.DB.Row(seat)[off:off+3], 1e-6)

	kinds := []feature.Kind{}
	for _, d := range schema.Descriptors() {
		kinds = append(kinds, d.Kind)
	}
	assert.Contains(t, kinds, feature.KindBoneAxis)

	authored := res.DB.Calibration.Authored
	assert.InDelta(t, 4, authored.WeightMomentum, 1e-12)
	assert.Equal(t, []float64{5, 0.5}, authored.ExtraWeights)

	loaded, err := store.Load(context.Background(), res.Record.ID)
	require.NoError(t, err)
	assert.True(t, schema.Equal(loaded.Schema))
	assert.Equal(t, []float64{5, 0.5}, loaded.Calibration.Authored.ExtraWeights)
}

func TestBuildMissingLibrary(t *testing.T) {
	t.Parallel()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "motion.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = build(context.Background(), buildOptions{
		Name:        "missing",
		LibraryPath: filepath.Join(t.TempDir(), "nope.json"),
		Config:      config.MustLoadDefaultConfig(),
		Store:       store,
	})
	assert.Error(t, err)
}

func TestWriteReports(t *testing.T) {
	t.Parallel()

	_, res := buildFixture(t)
	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "coverage.html")
	var text bytes.Buffer

	require.NoError(t, writeReports(res, reportOptions{PlotDir: filepath.Join(dir, "plots"), HTMLPath: htmlPath, Text: &text}))
	assert.Contains(t, text.String(), "database fixture")

	_, err := os.Stat(filepath.Join(dir, "plots", "fixture-trajectories.png"))
	assert.NoError(t, err)
	matches, err := filepath.Glob(filepath.Join(dir, "plots", "fixture-costs-*.png"))
	require.NoError(t, err)
	assert.Len(t, matches, len(res.DB.TraitGroups()))

	html, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Motion coverage")
}

func TestListDatabases(t *testing.T) {
	t.Parallel()

	store, res := buildFixture(t)
	var out bytes.Buffer
	require.NoError(t, listDatabases(context.Background(), store, &out))
	assert.Contains(t, out.String(), res.Record.ID)
	assert.Contains(t, out.String(), "fixture")
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pose_interval": 0.05}`), 0o644))
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, cfg.GetPoseInterval(), 1e-12)
}
