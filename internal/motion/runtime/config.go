package runtime

import (
	"time"

	"github.com/banshee-data/motion.match/internal/config"
	"github.com/banshee-data/motion.match/internal/motion/cost"
	"github.com/banshee-data/motion.match/internal/motion/playback"
	"github.com/banshee-data/motion.match/internal/motion/search"
)

// Config holds the runtime parameters of one character.
type Config struct {
	Search   search.Config
	Cost     cost.Config
	Playback playback.Config

	ActionLeadPoses  int           // poses played before the tagged action pose
	ActionTailTime   time.Duration // time held in Action after the lead-in
	DistanceMatching bool
	// UseRecordedPose builds the query pose from the last evaluated output
	// instead of the playing database row.
	UseRecordedPose bool
}

// DefaultConfig returns runtime configuration loaded from the canonical
// matching defaults file. Panics if the file cannot be found; intended for
// tests.
func DefaultConfig() Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded MatchConfig.
func ConfigFromTuning(cfg *config.MatchConfig) Config {
	return Config{
		Search:           search.ConfigFromTuning(cfg),
		Cost:             cost.ConfigFromTuning(cfg),
		Playback:         playback.ConfigFromTuning(cfg),
		ActionLeadPoses:  cfg.GetActionLeadPoses(),
		ActionTailTime:   cfg.GetActionTailTime(),
		DistanceMatching: cfg.GetDistanceMatchingEnabled(),
		UseRecordedPose:  cfg.GetUseRecordedPose(),
	}
}
