package preprocess

import (
	"github.com/banshee-data/motion.match/internal/config"
	"github.com/banshee-data/motion.match/internal/motion/calibration"
	"github.com/banshee-data/motion.match/internal/motion/feature"
)

// Config holds the preprocessing parameters.
type Config struct {
	PoseInterval    float64 // seconds between sampled poses
	MinPoseInterval float64 // lower clamp for PoseInterval
	Mirror          bool    // add a mirrored pass of every source
	EdgePolicy      string  // one of the config.EdgePolicy* values
	Responsiveness  float64 // [0,1] trajectory vs pose emphasis

	// Authored is the user calibration. Nil means uniform weights.
	Authored *calibration.Data
}

// DefaultConfig returns preprocessing configuration loaded from the
// canonical matching defaults file (config/matching.defaults.json).
// Panics if the file cannot be found; intended for tests.
func DefaultConfig() Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded MatchConfig. The authored
// calibration is laid out for feature.SchemaFromConfig(cfg).
func ConfigFromTuning(cfg *config.MatchConfig) Config {
	c := Config{
		PoseInterval:    cfg.GetPoseInterval(),
		MinPoseInterval: cfg.GetMinPoseInterval(),
		Mirror:          cfg.GetMirrorAnimations(),
		EdgePolicy:      cfg.GetTrajectoryEdgePolicy(),
		Responsiveness:  cfg.GetResponsiveness(),
	}
	if a := cfg.GetAuthoredCalibration(); a != nil {
		// A config whose schema cannot be built fails before preprocessing.
		if schema, err := feature.SchemaFromConfig(cfg); err == nil {
			c.Authored = calibration.FromTuning(schema, a)
		}
	}
	return c
}

// Interval returns PoseInterval clamped to MinPoseInterval.
func (c Config) Interval() float64 {
	minInterval := c.MinPoseInterval
	if minInterval <= 0 {
		minInterval = 0.01
	}
	if c.PoseInterval < minInterval {
		return minInterval
	}
	return c.PoseInterval
}
