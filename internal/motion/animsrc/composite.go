package animsrc

import (
	"github.com/banshee-data/motion.match/internal/motion/skeleton"
)

// Composite plays its segments back to back. Root motion is stitched so
// each segment continues from where the previous one ended.
type Composite struct {
	Name     string
	Segments []*Sequence
}

// Length returns the summed segment length.
func (c *Composite) Length() float64 {
	var length float64
	for _, seg := range c.Segments {
		if seg != nil {
			length += seg.Length
		}
	}
	return length
}

// locate returns the segment index containing t, the segment start time and
// the root offset accumulated by earlier segments.
func (c *Composite) locate(skel skeleton.Skeleton, t float64) (int, float64, skeleton.Transform) {
	base := skeleton.Identity()
	var start float64
	last, lastStart, lastBase := -1, 0.0, base
	for i, seg := range c.Segments {
		if seg == nil {
			continue
		}
		if t <= start+seg.Length {
			return i, start, base
		}
		last, lastStart, lastBase = i, start, base
		base = base.Compose(seg.SampleRoot(skel, 0).Relative(seg.SampleRoot(skel, seg.Length)))
		start += seg.Length
	}
	return last, lastStart, lastBase
}

// SampleComponent returns the component-space pose at time t.
func (c *Composite) SampleComponent(skel skeleton.Skeleton, t float64) skeleton.Pose {
	i, start, base := c.locate(skel, clamp(t, 0, c.Length()))
	if i < 0 {
		return skeleton.ReferencePose(skel)
	}
	seg := c.Segments[i]
	pose := skeleton.LocalToComponent(skel, seg.SampleLocal(skel, t-start))
	offset := base.Compose(seg.SampleRoot(skel, 0).Inverse())
	for b := range pose {
		pose[b] = offset.Compose(pose[b])
	}
	return pose
}

// SampleRoot returns the stitched root transform at time t.
func (c *Composite) SampleRoot(skel skeleton.Skeleton, t float64) skeleton.Transform {
	i, start, base := c.locate(skel, clamp(t, 0, c.Length()))
	if i < 0 {
		return skel.RefPose(0)
	}
	seg := c.Segments[i]
	return base.Compose(seg.SampleRoot(skel, 0).Relative(seg.SampleRoot(skel, t-start)))
}

// NotifiesIn returns notifies from all segments, in composite time.
func (c *Composite) NotifiesIn(from, to float64) []Notify {
	var out []Notify
	var start float64
	for _, seg := range c.Segments {
		if seg == nil {
			continue
		}
		for _, n := range seg.NotifiesIn(from-start, to-start) {
			out = append(out, Notify{Name: n.Name, Time: n.Time + start})
		}
		start += seg.Length
	}
	return out
}
