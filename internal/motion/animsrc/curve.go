package animsrc

import (
	"errors"
	"fmt"
	"sort"
)

// MatchTrigger names the locomotion event a distance curve describes.
type MatchTrigger int

const (
	TriggerNone MatchTrigger = iota
	TriggerStart
	TriggerStop
	TriggerPlant
	TriggerPivot
	TriggerTurnInPlace
	TriggerJump
)

var triggerNames = [...]string{"none", "start", "stop", "plant", "pivot", "turn_in_place", "jump"}

func (m MatchTrigger) String() string {
	if m >= 0 && int(m) < len(triggerNames) {
		return triggerNames[m]
	}
	return fmt.Sprintf("MatchTrigger(%d)", int(m))
}

// ParseTrigger maps a trigger name to its value.
func ParseTrigger(s string) (MatchTrigger, error) {
	for i, name := range triggerNames {
		if name == s {
			return MatchTrigger(i), nil
		}
	}
	return TriggerNone, fmt.Errorf("unknown match trigger %q", s)
}

// ErrInvalidCurve is returned when a distance curve is not monotonic.
var ErrInvalidCurve = errors.New("invalid distance curve")

// DistanceCurve maps clip time to the remaining (stops) or travelled
// (starts) root distance. Times ascend and distances are monotonic.
type DistanceCurve struct {
	Trigger   MatchTrigger
	Times     []float64
	Distances []float64
}

// Validate checks the curve shape.
func (c *DistanceCurve) Validate() error {
	if len(c.Times) < 2 || len(c.Times) != len(c.Distances) {
		return fmt.Errorf("%w: need matching times and distances, got %d and %d", ErrInvalidCurve, len(c.Times), len(c.Distances))
	}
	rising, falling := true, true
	for i := 1; i < len(c.Times); i++ {
		if c.Times[i] <= c.Times[i-1] {
			return fmt.Errorf("%w: times must ascend at %d", ErrInvalidCurve, i)
		}
		if c.Distances[i] < c.Distances[i-1] {
			rising = false
		}
		if c.Distances[i] > c.Distances[i-1] {
			falling = false
		}
	}
	if !rising && !falling {
		return fmt.Errorf("%w: distances are not monotonic", ErrInvalidCurve)
	}
	return nil
}

func (c *DistanceCurve) rising() bool {
	return c.Distances[len(c.Distances)-1] >= c.Distances[0]
}

// TimeAtDistance returns the clip time at which the curve reaches d,
// interpolating between samples and clamping outside the curve.
func (c *DistanceCurve) TimeAtDistance(d float64) float64 {
	n := len(c.Times)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return c.Times[0]
	}
	rising := c.rising()
	i := sort.Search(n, func(i int) bool {
		if rising {
			return c.Distances[i] >= d
		}
		return c.Distances[i] <= d
	})
	switch {
	case i == 0:
		return c.Times[0]
	case i >= n:
		return c.Times[n-1]
	}
	d0, d1 := c.Distances[i-1], c.Distances[i]
	if d1 == d0 {
		return c.Times[i]
	}
	alpha := (d - d0) / (d1 - d0)
	return c.Times[i-1] + alpha*(c.Times[i]-c.Times[i-1])
}

// DistanceAt returns the curve value at clip time t.
func (c *DistanceCurve) DistanceAt(t float64) float64 {
	n := len(c.Times)
	if n == 0 {
		return 0
	}
	if t <= c.Times[0] {
		return c.Distances[0]
	}
	if t >= c.Times[n-1] {
		return c.Distances[n-1]
	}
	i := sort.SearchFloat64s(c.Times, t)
	t0, t1 := c.Times[i-1], c.Times[i]
	return c.Distances[i-1] + (t-t0)/(t1-t0)*(c.Distances[i]-c.Distances[i-1])
}
