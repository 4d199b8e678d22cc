package animsrc

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// TagKind identifies what a time-ranged tag changes.
type TagKind int

const (
	// TagTraits ORs Traits into every pose in range.
	TagTraits TagKind = iota
	// TagFavour multiplies pose cost by Favour.
	TagFavour
	// TagDoNotUse excludes poses from the search.
	TagDoNotUse
	// TagAction marks poses as the lead-in of ActionID.
	TagAction
	// TagInteraction records a world-relative contact point.
	TagInteraction
)

var tagKindNames = map[TagKind]string{
	TagTraits:      "traits",
	TagFavour:      "favour",
	TagDoNotUse:    "do_not_use",
	TagAction:      "action",
	TagInteraction: "interaction",
}

func (k TagKind) String() string {
	if s, ok := tagKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("TagKind(%d)", int(k))
}

// ParseTagKind maps a tag name to its kind.
func ParseTagKind(s string) (TagKind, error) {
	for k, name := range tagKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown tag kind %q", s)
}

// Tag marks the half-open clip range [Start, End).
type Tag struct {
	Kind     TagKind
	Name     string
	Start    float64
	End      float64
	Traits   uint64
	Favour   float64
	ActionID int
	Location mgl64.Vec3
}

// Covers reports whether t falls inside the tag range.
func (t Tag) Covers(time float64) bool {
	return time >= t.Start && time < t.End
}
