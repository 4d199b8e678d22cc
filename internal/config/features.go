package config

import (
	"fmt"
	"math"
)

// Extra feature kinds accepted in features.
const (
	FeatureBoneAxis         = "bone_axis"
	FeatureInteractionPoint = "interaction_point"
)

// FeatureConfig declares an extra match feature. Extra features follow the
// matched bones in the row layout, in list order.
type FeatureConfig struct {
	Kind string     `json:"kind"`
	Bone string     `json:"bone,omitempty"` // bone_axis
	Axis [3]float64 `json:"axis,omitempty"` // bone_axis, local bone axis
	Name string     `json:"name,omitempty"` // interaction_point, matches interaction tag names
}

// JointWeights weights the position and velocity of one matched bone.
type JointWeights struct {
	Position float64 `json:"position"`
	Velocity float64 `json:"velocity"`
}

// TrajectoryWeights weights the position and facing of one trajectory point.
type TrajectoryWeights struct {
	Position float64 `json:"position"`
	Facing   float64 `json:"facing"`
}

// AuthoredCalibration is the user calibration multiplied into every
// partition's normalised weights. Omitted entries weigh 1. Joints follow
// match_bones order, trajectory follows trajectory_times and extra follows
// features.
type AuthoredCalibration struct {
	Momentum        *float64            `json:"momentum,omitempty"`
	AngularMomentum *float64            `json:"angular_momentum,omitempty"`
	Joints          []JointWeights      `json:"joints,omitempty"`
	Trajectory      []TrajectoryWeights `json:"trajectory,omitempty"`
	Extra           []float64           `json:"extra,omitempty"`
}

func validWeight(w float64) bool {
	return w >= 0 && !math.IsInf(w, 0)
}

func (a *AuthoredCalibration) validate(bones, points, extras int) error {
	for name, w := range map[string]*float64{"momentum": a.Momentum, "angular_momentum": a.AngularMomentum} {
		if w != nil && !validWeight(*w) {
			return fmt.Errorf("authored_calibration.%s must be a non-negative number, got %v", name, *w)
		}
	}
	if a.Joints != nil && len(a.Joints) != bones {
		return fmt.Errorf("authored_calibration.joints has %d entries for %d match_bones", len(a.Joints), bones)
	}
	for i, j := range a.Joints {
		if !validWeight(j.Position) || !validWeight(j.Velocity) {
			return fmt.Errorf("authored_calibration.joints[%d] weights must be non-negative", i)
		}
	}
	if a.Trajectory != nil && len(a.Trajectory) != points {
		return fmt.Errorf("authored_calibration.trajectory has %d entries for %d trajectory_times", len(a.Trajectory), points)
	}
	for i, p := range a.Trajectory {
		if !validWeight(p.Position) || !validWeight(p.Facing) {
			return fmt.Errorf("authored_calibration.trajectory[%d] weights must be non-negative", i)
		}
	}
	if a.Extra != nil && len(a.Extra) != extras {
		return fmt.Errorf("authored_calibration.extra has %d entries for %d features", len(a.Extra), extras)
	}
	for i, w := range a.Extra {
		if !validWeight(w) {
			return fmt.Errorf("authored_calibration.extra[%d] must be non-negative, got %v", i, w)
		}
	}
	return nil
}

func validateFeatures(features []FeatureConfig) error {
	names := make(map[string]bool)
	for i, f := range features {
		switch f.Kind {
		case FeatureBoneAxis:
			if f.Bone == "" {
				return fmt.Errorf("features[%d]: bone_axis needs a bone", i)
			}
			if f.Axis == [3]float64{} {
				return fmt.Errorf("features[%d]: bone_axis needs a non-zero axis", i)
			}
		case FeatureInteractionPoint:
			if f.Name == "" {
				return fmt.Errorf("features[%d]: interaction_point needs a name", i)
			}
			if names[f.Name] {
				return fmt.Errorf("features[%d]: duplicate interaction point %q", i, f.Name)
			}
			names[f.Name] = true
		default:
			return fmt.Errorf("features[%d]: unknown kind %q", i, f.Kind)
		}
	}
	return nil
}

// GetFeatures returns a copy of the configured extra features.
func (c *MatchConfig) GetFeatures() []FeatureConfig {
	return append([]FeatureConfig(nil), c.Features...)
}

// GetAuthoredCalibration returns the authored calibration, or nil for
// uniform weights.
func (c *MatchConfig) GetAuthoredCalibration() *AuthoredCalibration {
	return c.AuthoredCalibration
}
