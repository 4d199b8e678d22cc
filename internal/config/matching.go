package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical matching defaults file.
// This is the single source of truth for all default matching values.
const DefaultConfigPath = "config/matching.defaults.json"

// MaxTraits is the width of the trait bitfield carried by every pose.
const MaxTraits = 64

// Trajectory edge policies accepted by trajectory_edge_policy.
const (
	EdgePolicyNone         = "none"
	EdgePolicyIgnoreEdges  = "ignore_edges"
	EdgePolicyExtrapolate  = "extrapolate"
	EdgePolicyUseAdjacent  = "use_adjacent"
	TransitionNone         = "none"
	TransitionBlend        = "blend"
	TransitionInertialize  = "inertialization"
	NotifyModeDominant     = "dominant"
	NotifyModeAllChannels  = "all"
	defaultTransitionBlend = TransitionBlend
)

// MatchConfig represents the root configuration for motion matching.
// A single JSON document configures preprocessing, search and playback so
// the same file can be shared by the offline tool and the runtime.
type MatchConfig struct {
	// Preprocessing
	PoseInterval         *float64  `json:"pose_interval,omitempty"`     // seconds between sampled poses
	MinPoseInterval      *float64  `json:"min_pose_interval,omitempty"` // lower clamp for pose_interval
	MirrorAnimations     *bool     `json:"mirror_animations,omitempty"`
	TrajectoryTimes      []float64 `json:"trajectory_times,omitempty"` // seconds, negative = past
	MatchBones           []string  `json:"match_bones,omitempty"`
	TrajectoryEdgePolicy *string   `json:"trajectory_edge_policy,omitempty"`
	Responsiveness       *float64  `json:"responsiveness,omitempty"` // [0,1], 0.5 = neutral

	// Extra match features and the authored calibration
	Features            []FeatureConfig      `json:"features,omitempty"`
	AuthoredCalibration *AuthoredCalibration `json:"authored_calibration,omitempty"`

	// Search
	SearchInterval        *string  `json:"search_interval,omitempty"` // duration string like "100ms"
	NextPoseToleranceTest *bool    `json:"next_pose_tolerance_test,omitempty"`
	PositionTolerance     *float64 `json:"position_tolerance,omitempty"` // metres per second of prediction
	FacingTolerance       *float64 `json:"facing_tolerance,omitempty"`   // radians per second of prediction
	FavourCurrentPose     *bool    `json:"favour_current_pose,omitempty"`
	CurrentPoseFavour     *float64 `json:"current_pose_favour,omitempty"`
	SameLocationTime      *string  `json:"same_location_time,omitempty"`
	BlendPositionEpsilon  *float64 `json:"blend_position_epsilon,omitempty"`

	// Optimisation index
	IndexEnabled  *bool `json:"index_enabled,omitempty"`
	IndexLeafSize *int  `json:"index_leaf_size,omitempty"`
	IndexMaxDepth *int  `json:"index_max_depth,omitempty"`

	// Playback
	TransitionMethod *string `json:"transition_method,omitempty"`
	BlendTime        *string `json:"blend_time,omitempty"`
	NotifyMode       *string `json:"notify_mode,omitempty"`
	UseRecordedPose  *bool   `json:"use_recorded_pose,omitempty"`

	// Sub-modes
	ActionLeadPoses         *int    `json:"action_lead_poses,omitempty"`
	ActionTailTime          *string `json:"action_tail_time,omitempty"`
	DistanceMatchingEnabled *bool   `json:"distance_matching_enabled,omitempty"`

	// Diagnostics and registries
	DebugLevel *int     `json:"debug_level,omitempty"`
	TraitNames []string `json:"trait_names,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyMatchConfig returns a MatchConfig with all fields set to nil.
// Use LoadMatchConfig to load actual values from the defaults file.
func EmptyMatchConfig() *MatchConfig {
	return &MatchConfig{}
}

// LoadMatchConfig loads a MatchConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadMatchConfig(path string) (*MatchConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseMatchConfig(data)
}

// ParseMatchConfig decodes and validates a MatchConfig from raw JSON.
func ParseMatchConfig(data []byte) (*MatchConfig, error) {
	cfg := EmptyMatchConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical matching defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *MatchConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/motion/x/
		"../../../../" + DefaultConfigPath,    // from internal/motion/storage/sqlite/
		"../../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadMatchConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *MatchConfig) Validate() error {
	if c.PoseInterval != nil && *c.PoseInterval <= 0 {
		return fmt.Errorf("pose_interval must be positive, got %f", *c.PoseInterval)
	}
	if c.MinPoseInterval != nil && *c.MinPoseInterval <= 0 {
		return fmt.Errorf("min_pose_interval must be positive, got %f", *c.MinPoseInterval)
	}
	if c.Responsiveness != nil {
		if *c.Responsiveness < 0 || *c.Responsiveness > 1 {
			return fmt.Errorf("responsiveness must be between 0 and 1, got %f", *c.Responsiveness)
		}
	}
	if c.CurrentPoseFavour != nil {
		if *c.CurrentPoseFavour <= 0 || *c.CurrentPoseFavour > 1 {
			return fmt.Errorf("current_pose_favour must be in (0, 1], got %f", *c.CurrentPoseFavour)
		}
	}
	if c.PositionTolerance != nil && *c.PositionTolerance < 0 {
		return fmt.Errorf("position_tolerance must be non-negative, got %f", *c.PositionTolerance)
	}
	if c.FacingTolerance != nil && *c.FacingTolerance < 0 {
		return fmt.Errorf("facing_tolerance must be non-negative, got %f", *c.FacingTolerance)
	}

	for _, t := range c.TrajectoryTimes {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("trajectory_times must be finite, got %v", t)
		}
	}
	for i := 1; i < len(c.TrajectoryTimes); i++ {
		if c.TrajectoryTimes[i] <= c.TrajectoryTimes[i-1] {
			return fmt.Errorf("trajectory_times must be strictly ascending (past to future)")
		}
	}

	if c.TrajectoryEdgePolicy != nil {
		switch *c.TrajectoryEdgePolicy {
		case EdgePolicyNone, EdgePolicyIgnoreEdges, EdgePolicyExtrapolate, EdgePolicyUseAdjacent:
		default:
			return fmt.Errorf("unknown trajectory_edge_policy %q", *c.TrajectoryEdgePolicy)
		}
	}
	if c.TransitionMethod != nil {
		switch *c.TransitionMethod {
		case TransitionNone, TransitionBlend, TransitionInertialize:
		default:
			return fmt.Errorf("unknown transition_method %q", *c.TransitionMethod)
		}
	}
	if c.NotifyMode != nil {
		switch *c.NotifyMode {
		case NotifyModeDominant, NotifyModeAllChannels:
		default:
			return fmt.Errorf("unknown notify_mode %q", *c.NotifyMode)
		}
	}

	durations := map[string]*string{
		"search_interval":    c.SearchInterval,
		"same_location_time": c.SameLocationTime,
		"blend_time":         c.BlendTime,
		"action_tail_time":   c.ActionTailTime,
	}
	for name, v := range durations {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, *v)
		}
	}

	if c.IndexLeafSize != nil && *c.IndexLeafSize < 1 {
		return fmt.Errorf("index_leaf_size must be at least 1, got %d", *c.IndexLeafSize)
	}
	if c.IndexMaxDepth != nil && *c.IndexMaxDepth < 1 {
		return fmt.Errorf("index_max_depth must be at least 1, got %d", *c.IndexMaxDepth)
	}
	if c.ActionLeadPoses != nil && *c.ActionLeadPoses < 0 {
		return fmt.Errorf("action_lead_poses must be non-negative, got %d", *c.ActionLeadPoses)
	}
	if err := validateFeatures(c.Features); err != nil {
		return err
	}
	if c.AuthoredCalibration != nil {
		if err := c.AuthoredCalibration.validate(len(c.GetMatchBones()), len(c.GetTrajectoryTimes()), len(c.Features)); err != nil {
			return err
		}
	}
	if len(c.TraitNames) > MaxTraits {
		return fmt.Errorf("trait_names supports at most %d entries, got %d", MaxTraits, len(c.TraitNames))
	}
	seen := make(map[string]bool, len(c.TraitNames))
	for _, name := range c.TraitNames {
		if name == "" {
			return fmt.Errorf("trait_names entries must be non-empty")
		}
		if seen[name] {
			return fmt.Errorf("duplicate trait name %q", name)
		}
		seen[name] = true
	}

	return nil
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetPoseInterval returns the pose sampling interval in seconds, clamped to
// GetMinPoseInterval so a tiny value cannot produce a runaway pose count.
func (c *MatchConfig) GetPoseInterval() float64 {
	interval := 0.1
	if c.PoseInterval != nil {
		interval = *c.PoseInterval
	}
	if minInterval := c.GetMinPoseInterval(); interval < minInterval {
		return minInterval
	}
	return interval
}

// GetMinPoseInterval returns the min_pose_interval value or the default.
func (c *MatchConfig) GetMinPoseInterval() float64 {
	if c.MinPoseInterval == nil {
		return 0.01
	}
	return *c.MinPoseInterval
}

// GetMirrorAnimations returns the mirror_animations value or the default.
func (c *MatchConfig) GetMirrorAnimations() bool {
	if c.MirrorAnimations == nil {
		return false
	}
	return *c.MirrorAnimations
}

// GetTrajectoryTimes returns a copy of the configured trajectory sample times.
func (c *MatchConfig) GetTrajectoryTimes() []float64 {
	if c.TrajectoryTimes == nil {
		return []float64{-0.3, 0.3, 0.6, 1.0}
	}
	return append([]float64(nil), c.TrajectoryTimes...)
}

// GetMatchBones returns a copy of the configured matched bone names.
func (c *MatchConfig) GetMatchBones() []string {
	if c.MatchBones == nil {
		return []string{"foot_l", "foot_r"}
	}
	return append([]string(nil), c.MatchBones...)
}

// GetTrajectoryEdgePolicy returns the trajectory_edge_policy value or the default.
func (c *MatchConfig) GetTrajectoryEdgePolicy() string {
	if c.TrajectoryEdgePolicy == nil || *c.TrajectoryEdgePolicy == "" {
		return EdgePolicyIgnoreEdges
	}
	return *c.TrajectoryEdgePolicy
}

// GetResponsiveness returns the responsiveness value or the default.
func (c *MatchConfig) GetResponsiveness() float64 {
	if c.Responsiveness == nil {
		return 0.5
	}
	return *c.Responsiveness
}

// GetSearchInterval parses and returns the SearchInterval as a time.Duration.
func (c *MatchConfig) GetSearchInterval() time.Duration {
	return parseDurationOr(c.SearchInterval, 100*time.Millisecond)
}

// GetNextPoseToleranceTest returns the next_pose_tolerance_test value or the default.
func (c *MatchConfig) GetNextPoseToleranceTest() bool {
	if c.NextPoseToleranceTest == nil {
		return true
	}
	return *c.NextPoseToleranceTest
}

// GetPositionTolerance returns the position_tolerance value or the default.
func (c *MatchConfig) GetPositionTolerance() float64 {
	if c.PositionTolerance == nil {
		return 0.15
	}
	return *c.PositionTolerance
}

// GetFacingTolerance returns the facing_tolerance value or the default.
func (c *MatchConfig) GetFacingTolerance() float64 {
	if c.FacingTolerance == nil {
		return 0.35
	}
	return *c.FacingTolerance
}

// GetFavourCurrentPose returns the favour_current_pose value or the default.
func (c *MatchConfig) GetFavourCurrentPose() bool {
	if c.FavourCurrentPose == nil {
		return true
	}
	return *c.FavourCurrentPose
}

// GetCurrentPoseFavour returns the current_pose_favour value or the default.
func (c *MatchConfig) GetCurrentPoseFavour() float64 {
	if c.CurrentPoseFavour == nil {
		return 0.95
	}
	return *c.CurrentPoseFavour
}

// GetSameLocationTime parses and returns the SameLocationTime as a time.Duration.
func (c *MatchConfig) GetSameLocationTime() time.Duration {
	return parseDurationOr(c.SameLocationTime, 250*time.Millisecond)
}

// GetBlendPositionEpsilon returns the blend_position_epsilon value or the default.
func (c *MatchConfig) GetBlendPositionEpsilon() float64 {
	if c.BlendPositionEpsilon == nil {
		return 0.01
	}
	return *c.BlendPositionEpsilon
}

// GetIndexEnabled returns the index_enabled value or the default.
func (c *MatchConfig) GetIndexEnabled() bool {
	if c.IndexEnabled == nil {
		return true
	}
	return *c.IndexEnabled
}

// GetIndexLeafSize returns the index_leaf_size value or the default.
func (c *MatchConfig) GetIndexLeafSize() int {
	if c.IndexLeafSize == nil {
		return 16
	}
	return *c.IndexLeafSize
}

// GetIndexMaxDepth returns the index_max_depth value or the default.
func (c *MatchConfig) GetIndexMaxDepth() int {
	if c.IndexMaxDepth == nil {
		return 12
	}
	return *c.IndexMaxDepth
}

// GetTransitionMethod returns the transition_method value or the default.
func (c *MatchConfig) GetTransitionMethod() string {
	if c.TransitionMethod == nil || *c.TransitionMethod == "" {
		return defaultTransitionBlend
	}
	return *c.TransitionMethod
}

// GetBlendTime parses and returns the BlendTime as a time.Duration.
func (c *MatchConfig) GetBlendTime() time.Duration {
	return parseDurationOr(c.BlendTime, 300*time.Millisecond)
}

// GetNotifyMode returns the notify_mode value or the default.
func (c *MatchConfig) GetNotifyMode() string {
	if c.NotifyMode == nil || *c.NotifyMode == "" {
		return NotifyModeDominant
	}
	return *c.NotifyMode
}

// GetUseRecordedPose returns the use_recorded_pose value or the default.
func (c *MatchConfig) GetUseRecordedPose() bool {
	if c.UseRecordedPose == nil {
		return false
	}
	return *c.UseRecordedPose
}

// GetActionLeadPoses returns the action_lead_poses value or the default.
func (c *MatchConfig) GetActionLeadPoses() int {
	if c.ActionLeadPoses == nil {
		return 3
	}
	return *c.ActionLeadPoses
}

// GetActionTailTime parses and returns the ActionTailTime as a time.Duration.
func (c *MatchConfig) GetActionTailTime() time.Duration {
	return parseDurationOr(c.ActionTailTime, 500*time.Millisecond)
}

// GetDistanceMatchingEnabled returns the distance_matching_enabled value or the default.
func (c *MatchConfig) GetDistanceMatchingEnabled() bool {
	if c.DistanceMatchingEnabled == nil {
		return true
	}
	return *c.DistanceMatchingEnabled
}

// GetDebugLevel returns the debug_level value or the default.
func (c *MatchConfig) GetDebugLevel() int {
	if c.DebugLevel == nil {
		return 0
	}
	return *c.DebugLevel
}

// GetTraitRegistry builds the trait-name table. Bit i of a pose's trait
// field corresponds to TraitNames[i].
func (c *MatchConfig) GetTraitRegistry() *TraitRegistry {
	return NewTraitRegistry(c.TraitNames)
}
