package animsrc

import (
	"sort"

	"github.com/banshee-data/motion.match/internal/motion/skeleton"
)

// Keyframe is one local-space bone sample.
type Keyframe struct {
	Time  float64
	Local skeleton.Transform
}

// Track holds the keyframes for one bone, ascending by time.
type Track struct {
	Bone string
	Keys []Keyframe
}

// Notify is an authored event at a point in time.
type Notify struct {
	Name string
	Time float64
}

// Sequence is a plain keyframed clip. Bones without a track hold their
// reference pose.
type Sequence struct {
	Name     string
	Length   float64
	Tracks   []Track
	Notifies []Notify
}

// NewSequence sorts keys and notifies by time and returns the sequence.
func NewSequence(name string, length float64, tracks []Track, notifies []Notify) *Sequence {
	for i := range tracks {
		keys := tracks[i].Keys
		sort.SliceStable(keys, func(a, b int) bool { return keys[a].Time < keys[b].Time })
	}
	sort.SliceStable(notifies, func(a, b int) bool { return notifies[a].Time < notifies[b].Time })
	return &Sequence{Name: name, Length: length, Tracks: tracks, Notifies: notifies}
}

func (s *Sequence) track(bone string) *Track {
	for i := range s.Tracks {
		if s.Tracks[i].Bone == bone {
			return &s.Tracks[i]
		}
	}
	return nil
}

func sampleKeys(keys []Keyframe, t float64) skeleton.Transform {
	switch {
	case len(keys) == 0:
		return skeleton.Identity()
	case t <= keys[0].Time:
		return keys[0].Local
	case t >= keys[len(keys)-1].Time:
		return keys[len(keys)-1].Local
	}
	i := sort.Search(len(keys), func(i int) bool { return keys[i].Time > t })
	a, b := keys[i-1], keys[i]
	span := b.Time - a.Time
	if span <= 0 {
		return b.Local
	}
	return skeleton.Blend(a.Local, b.Local, (t-a.Time)/span)
}

// SampleLocal returns local bone transforms at time t, clamped to the clip.
func (s *Sequence) SampleLocal(skel skeleton.Skeleton, t float64) []skeleton.Transform {
	t = clamp(t, 0, s.Length)
	n := skel.BoneCount()
	out := make([]skeleton.Transform, n)
	for i := 0; i < n; i++ {
		if tr := s.track(skel.BoneName(i)); tr != nil && len(tr.Keys) > 0 {
			out[i] = sampleKeys(tr.Keys, t)
			continue
		}
		out[i] = skel.RefPose(i)
	}
	return out
}

// SampleRoot returns the root bone transform at time t.
func (s *Sequence) SampleRoot(skel skeleton.Skeleton, t float64) skeleton.Transform {
	t = clamp(t, 0, s.Length)
	if tr := s.track(skel.BoneName(0)); tr != nil && len(tr.Keys) > 0 {
		return sampleKeys(tr.Keys, t)
	}
	return skel.RefPose(0)
}

// NotifiesIn returns notifies with from < Time <= to.
func (s *Sequence) NotifiesIn(from, to float64) []Notify {
	var out []Notify
	for _, n := range s.Notifies {
		if n.Time > from && n.Time <= to {
			out = append(out, n)
		}
	}
	return out
}

func refLocals(skel skeleton.Skeleton) []skeleton.Transform {
	out := make([]skeleton.Transform, skel.BoneCount())
	for i := range out {
		out[i] = skel.RefPose(i)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
