package playback

import (
	"fmt"
	"time"

	"github.com/banshee-data/motion.match/internal/config"
	"github.com/banshee-data/motion.match/internal/monitoring"
)

// TransitionMethod selects how a new channel replaces the current one.
type TransitionMethod int

const (
	// TransitionNone cuts to the new channel.
	TransitionNone TransitionMethod = iota
	// TransitionBlend crossfades through the Chosen and Decay states.
	TransitionBlend
	// TransitionInertialization cuts and requests external smoothing.
	TransitionInertialization
)

func (m TransitionMethod) String() string {
	switch m {
	case TransitionNone:
		return config.TransitionNone
	case TransitionBlend:
		return config.TransitionBlend
	case TransitionInertialization:
		return config.TransitionInertialize
	}
	return fmt.Sprintf("TransitionMethod(%d)", int(m))
}

// ParseTransitionMethod maps a transition_method value to a method.
func ParseTransitionMethod(s string) (TransitionMethod, error) {
	switch s {
	case config.TransitionNone:
		return TransitionNone, nil
	case config.TransitionBlend, "":
		return TransitionBlend, nil
	case config.TransitionInertialize:
		return TransitionInertialization, nil
	}
	return TransitionBlend, fmt.Errorf("unknown transition method %q", s)
}

// NotifyMode selects which channels report notifies.
type NotifyMode int

const (
	NotifyDominant NotifyMode = iota
	NotifyAll
)

// Config holds the playback parameters.
type Config struct {
	Method    TransitionMethod
	BlendTime time.Duration
	Notify    NotifyMode
}

// DefaultConfig returns playback configuration loaded from the canonical
// matching defaults file. Panics if the file cannot be found; intended for
// tests.
func DefaultConfig() Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded MatchConfig. Unknown
// values fall back to blending and dominant-channel notifies.
func ConfigFromTuning(cfg *config.MatchConfig) Config {
	method, err := ParseTransitionMethod(cfg.GetTransitionMethod())
	if err != nil {
		monitoring.Warnf("[playback] %v; using %s", err, method)
	}
	notify := NotifyDominant
	if cfg.GetNotifyMode() == config.NotifyModeAllChannels {
		notify = NotifyAll
	}
	return Config{Method: method, BlendTime: cfg.GetBlendTime(), Notify: notify}
}

func (c Config) blendSeconds() float64 {
	return c.BlendTime.Seconds()
}

// crossfades reports whether transitions keep the previous channel alive.
func (c Config) crossfades() bool {
	return c.Method == TransitionBlend && c.blendSeconds() > 0
}
