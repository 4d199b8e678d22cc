package search

import (
	"time"

	"github.com/banshee-data/motion.match/internal/config"
)

// Config holds the selector parameters.
type Config struct {
	Interval             time.Duration // minimum time between searches
	ToleranceTest        bool          // enable the next-pose tolerance short-circuit
	PositionTolerance    float64       // metres per second of prediction time
	FacingTolerance      float64       // radians per second of prediction time
	SameLocationTime     time.Duration // winners closer than this to playback do not transition
	BlendPositionEpsilon float64
	UseIndex             bool
}

// DefaultConfig returns selector configuration loaded from the canonical
// matching defaults file. Panics if the file cannot be found; intended for
// tests.
func DefaultConfig() Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded MatchConfig.
func ConfigFromTuning(cfg *config.MatchConfig) Config {
	return Config{
		Interval:             cfg.GetSearchInterval(),
		ToleranceTest:        cfg.GetNextPoseToleranceTest(),
		PositionTolerance:    cfg.GetPositionTolerance(),
		FacingTolerance:      cfg.GetFacingTolerance(),
		SameLocationTime:     cfg.GetSameLocationTime(),
		BlendPositionEpsilon: cfg.GetBlendPositionEpsilon(),
		UseIndex:             cfg.GetIndexEnabled(),
	}
}
