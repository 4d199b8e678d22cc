package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMatchConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "pose_interval": 0.05,
  "mirror_animations": true,
  "search_interval": "50ms",
  "transition_method": "inertialization",
  "trajectory_times": [-0.5, 0.5, 1.0],
  "trait_names": ["crouch"]
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadMatchConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetPoseInterval() != 0.05 {
		t.Errorf("GetPoseInterval() = %f, want 0.05", cfg.GetPoseInterval())
	}
	if !cfg.GetMirrorAnimations() {
		t.Errorf("GetMirrorAnimations() = false, want true")
	}
	if cfg.GetSearchInterval() != 50*time.Millisecond {
		t.Errorf("GetSearchInterval() = %v, want 50ms", cfg.GetSearchInterval())
	}
	if cfg.GetTransitionMethod() != TransitionInertialize {
		t.Errorf("GetTransitionMethod() = %q, want %q", cfg.GetTransitionMethod(), TransitionInertialize)
	}
	if got := cfg.GetTrajectoryTimes(); len(got) != 3 || got[0] != -0.5 {
		t.Errorf("GetTrajectoryTimes() = %v", got)
	}
	// Untouched fields fall back to defaults.
	if cfg.GetBlendTime() != 300*time.Millisecond {
		t.Errorf("GetBlendTime() = %v, want 300ms", cfg.GetBlendTime())
	}
}

func TestLoadMatchConfigMissing(t *testing.T) {
	_, err := LoadMatchConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadMatchConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadMatchConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadMatchConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadMatchConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadMatchConfig("../../config/matching.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.GetPoseInterval() != 0.1 {
		t.Errorf("Expected 0.1, got %f", cfg.GetPoseInterval())
	}
	if cfg.GetTraitRegistry().Len() != 3 {
		t.Errorf("Expected 3 traits, got %d", cfg.GetTraitRegistry().Len())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *MatchConfig
		wantErr bool
	}{
		{name: "empty config is valid", cfg: &MatchConfig{}},
		{name: "negative pose interval", cfg: &MatchConfig{PoseInterval: ptrFloat64(-0.1)}, wantErr: true},
		{name: "responsiveness too high", cfg: &MatchConfig{Responsiveness: ptrFloat64(1.5)}, wantErr: true},
		{name: "zero current pose favour", cfg: &MatchConfig{CurrentPoseFavour: ptrFloat64(0)}, wantErr: true},
		{name: "invalid search interval", cfg: &MatchConfig{SearchInterval: ptrString("soon")}, wantErr: true},
		{name: "negative blend time", cfg: &MatchConfig{BlendTime: ptrString("-1s")}, wantErr: true},
		{name: "unknown edge policy", cfg: &MatchConfig{TrajectoryEdgePolicy: ptrString("wrap")}, wantErr: true},
		{name: "unknown transition", cfg: &MatchConfig{TransitionMethod: ptrString("morph")}, wantErr: true},
		{name: "unsorted trajectory times", cfg: &MatchConfig{TrajectoryTimes: []float64{0.5, -0.5}}, wantErr: true},
		{name: "duplicate trait", cfg: &MatchConfig{TraitNames: []string{"a", "a"}}, wantErr: true},
		{name: "zero leaf size", cfg: &MatchConfig{IndexLeafSize: ptrInt(0)}, wantErr: true},
		{name: "unknown feature kind", cfg: &MatchConfig{Features: []FeatureConfig{{Kind: "momentum"}}}, wantErr: true},
		{name: "bone axis without axis", cfg: &MatchConfig{Features: []FeatureConfig{{Kind: FeatureBoneAxis, Bone: "hips"}}}, wantErr: true},
		{name: "unnamed interaction", cfg: &MatchConfig{Features: []FeatureConfig{{Kind: FeatureInteractionPoint}}}, wantErr: true},
		{name: "duplicate interaction", cfg: &MatchConfig{Features: []FeatureConfig{
			{Kind: FeatureInteractionPoint, Name: "seat"},
			{Kind: FeatureInteractionPoint, Name: "seat"},
		}}, wantErr: true},
		{name: "negative authored momentum", cfg: &MatchConfig{AuthoredCalibration: &AuthoredCalibration{Momentum: ptrFloat64(-1)}}, wantErr: true},
		{name: "authored joints for default bones", cfg: &MatchConfig{AuthoredCalibration: &AuthoredCalibration{
			Joints: []JointWeights{{Position: 2, Velocity: 1}, {Position: 2, Velocity: 1}},
		}}},
		{name: "authored joints length mismatch", cfg: &MatchConfig{AuthoredCalibration: &AuthoredCalibration{
			Joints: []JointWeights{{Position: 2, Velocity: 1}},
		}}, wantErr: true},
		{name: "authored extra follows features", cfg: &MatchConfig{
			Features:            []FeatureConfig{{Kind: FeatureBoneAxis, Bone: "hips", Axis: [3]float64{1, 0, 0}}},
			AuthoredCalibration: &AuthoredCalibration{Extra: []float64{0.5}},
		}},
		{name: "authored extra without features", cfg: &MatchConfig{AuthoredCalibration: &AuthoredCalibration{Extra: []float64{0.5}}}, wantErr: true},
		{name: "valid explicit values", cfg: &MatchConfig{
			PoseInterval:      ptrFloat64(0.05),
			MirrorAnimations:  ptrBool(true),
			TransitionMethod:  ptrString(TransitionNone),
			CurrentPoseFavour: ptrFloat64(0.9),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetPoseIntervalClampsToMinimum(t *testing.T) {
	cfg := &MatchConfig{PoseInterval: ptrFloat64(0.001)}
	if got := cfg.GetPoseInterval(); got != 0.01 {
		t.Errorf("GetPoseInterval() = %f, want clamp to 0.01", got)
	}
	cfg.MinPoseInterval = ptrFloat64(0.0005)
	if got := cfg.GetPoseInterval(); got != 0.001 {
		t.Errorf("GetPoseInterval() = %f, want 0.001", got)
	}
}

func TestGetterDefaults(t *testing.T) {
	cfg := EmptyMatchConfig()

	if cfg.GetTrajectoryEdgePolicy() != EdgePolicyIgnoreEdges {
		t.Errorf("GetTrajectoryEdgePolicy() = %q", cfg.GetTrajectoryEdgePolicy())
	}
	if cfg.GetSearchInterval() != 100*time.Millisecond {
		t.Errorf("GetSearchInterval() = %v", cfg.GetSearchInterval())
	}
	if cfg.GetSameLocationTime() != 250*time.Millisecond {
		t.Errorf("GetSameLocationTime() = %v", cfg.GetSameLocationTime())
	}
	if cfg.GetCurrentPoseFavour() != 0.95 {
		t.Errorf("GetCurrentPoseFavour() = %f", cfg.GetCurrentPoseFavour())
	}
	if !cfg.GetNextPoseToleranceTest() {
		t.Errorf("GetNextPoseToleranceTest() = false, want true")
	}
	if cfg.GetNotifyMode() != NotifyModeDominant {
		t.Errorf("GetNotifyMode() = %q", cfg.GetNotifyMode())
	}
	if cfg.GetIndexLeafSize() != 16 {
		t.Errorf("GetIndexLeafSize() = %d", cfg.GetIndexLeafSize())
	}
}

func TestGetTrajectoryTimesReturnsCopy(t *testing.T) {
	cfg := &MatchConfig{TrajectoryTimes: []float64{-0.2, 0.4}}
	times := cfg.GetTrajectoryTimes()
	times[0] = 99
	if cfg.TrajectoryTimes[0] != -0.2 {
		t.Errorf("GetTrajectoryTimes leaked internal slice")
	}
}

func TestTraitRegistry(t *testing.T) {
	reg := NewTraitRegistry([]string{"crouch", "armed", "injured"})

	mask, err := reg.Mask("crouch", "injured")
	if err != nil {
		t.Fatalf("Mask: %v", err)
	}
	if mask != 0b101 {
		t.Errorf("Mask = %b, want 101", mask)
	}
	if got := reg.Format(mask); got != "crouch|injured" {
		t.Errorf("Format = %q", got)
	}
	if got := reg.Format(0); got != "none" {
		t.Errorf("Format(0) = %q", got)
	}
	if _, err := reg.Mask("flying"); err == nil {
		t.Error("expected error for unknown trait")
	}
}

func TestParseFeaturesAndCalibration(t *testing.T) {
	data := []byte(`{
		"match_bones": ["foot_l"],
		"features": [
			{"kind": "interaction_point", "name": "seat"},
			{"kind": "bone_axis", "bone": "hips", "axis": [0, 0, 1]}
		],
		"authored_calibration": {
			"momentum": 2,
			"joints": [{"position": 3, "velocity": 0.5}],
			"extra": [4, 1]
		}
	}`)
	cfg, err := ParseMatchConfig(data)
	if err != nil {
		t.Fatalf("ParseMatchConfig() error = %v", err)
	}

	features := cfg.GetFeatures()
	if len(features) != 2 || features[0].Name != "seat" || features[1].Axis != [3]float64{0, 0, 1} {
		t.Errorf("GetFeatures() = %+v", features)
	}
	a := cfg.GetAuthoredCalibration()
	if a == nil {
		t.Fatal("GetAuthoredCalibration() = nil")
	}
	if a.Momentum == nil || *a.Momentum != 2 {
		t.Errorf("Momentum = %v, want 2", a.Momentum)
	}
	if a.AngularMomentum != nil {
		t.Errorf("AngularMomentum = %v, want unset", *a.AngularMomentum)
	}
	if len(a.Joints) != 1 || a.Joints[0].Position != 3 {
		t.Errorf("Joints = %+v", a.Joints)
	}
	if cfg := EmptyMatchConfig(); cfg.GetAuthoredCalibration() != nil || cfg.GetFeatures() != nil {
		t.Errorf("empty config should have no features or authored calibration")
	}
}
