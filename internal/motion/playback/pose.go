package playback

import (
	"github.com/banshee-data/motion.match/internal/motion/skeleton"
)

// PoseBlender combines several component-space poses. weights sum to one
// and align with poses.
type PoseBlender interface {
	BlendPoses(poses []skeleton.Pose, weights []float64) skeleton.Pose
}

// LinearBlender blends bone by bone with skeleton.Blend.
type LinearBlender struct{}

// BlendPoses implements PoseBlender.
func (LinearBlender) BlendPoses(poses []skeleton.Pose, weights []float64) skeleton.Pose {
	if len(poses) == 0 {
		return nil
	}
	out := poses[0].Clone()
	acc := 0.0
	for i, p := range poses {
		w := weights[i]
		if w <= 0 {
			continue
		}
		acc += w
		for b := range out {
			if b < len(p) {
				out[b] = skeleton.Blend(out[b], p[b], w/acc)
			}
		}
	}
	return out
}

// EvaluatePose samples every channel and blends them with blender. A
// single contributing channel, or a nil blender, returns the dominant
// channel's pose directly. Channels whose source is missing contribute the
// reference pose; an empty set yields the reference pose.
func (s *Set) EvaluatePose(blender PoseBlender) skeleton.Pose {
	if len(s.channels) == 0 {
		return skeleton.ReferencePose(s.skel)
	}
	weights := s.Weights()
	contributing := 0
	for _, w := range weights {
		if w > 0 {
			contributing++
		}
	}
	if contributing <= 1 || blender == nil {
		return s.sample(s.Dominant())
	}

	s.poses = s.poses[:0]
	for _, c := range s.channels {
		s.poses = append(s.poses, s.sample(c))
	}
	return blender.BlendPoses(s.poses, weights)
}

// sample returns the component-space pose of c, mirrored when the channel
// plays a mirrored pass.
func (s *Set) sample(c *Channel) skeleton.Pose {
	src := s.source(c)
	if src == nil {
		return skeleton.ReferencePose(s.skel)
	}
	pose := src.SampleComponent(s.skel, c.Time, c.BlendPosition)
	if c.Mirrored {
		pose = s.mirror.MirrorPose(s.skel, pose)
	}
	return pose
}
