package preprocess

import (
	"math"

	"github.com/banshee-data/motion.match/internal/config"
	"github.com/banshee-data/motion.match/internal/motion/animsrc"
	"github.com/banshee-data/motion.match/internal/motion/feature"
	"github.com/banshee-data/motion.match/internal/motion/skeleton"
	"github.com/go-gl/mathgl/mgl64"
)

// buildSample assembles the extraction context for src at time t. The
// second result reports whether the pose lies within the trajectory
// horizon of a non-looping clip edge under the ignore_edges policy.
func (p *Preprocessor) buildSample(src *animsrc.Source, t float64, bp mgl64.Vec2, mirrored bool, interval float64) (*feature.Sample, bool) {
	skel := p.Skeleton
	length := src.Length(bp)

	root := src.RootAt(skel, t, bp)
	pose := src.SampleComponent(skel, t, bp).RelativeTo(root)

	// Velocities are backward differences over one interval, clamped to
	// the clip start for non-looping sources.
	prevTime := t - interval
	if !src.Loop {
		prevTime = math.Max(prevTime, 0)
	}
	dt := t - prevTime
	prevRoot := src.RootMotion(skel, t, prevTime, bp)
	prevPose := src.SampleComponent(skel, src.WrapTime(prevTime, bp), bp).
		RelativeTo(src.RootAt(skel, src.WrapTime(prevTime, bp), bp))
	for i := range prevPose {
		prevPose[i] = prevRoot.Compose(prevPose[i])
	}

	var velocity mgl64.Vec3
	var yawRate float64
	if dt > 0 {
		velocity = prevRoot.Translation.Mul(-1 / dt)
		yawRate = -skeleton.WrapAngle(prevRoot.Yaw()) / dt
	}

	times := p.Schema.TrajectoryTimes()
	traj := make([]feature.TrajectoryPoint, len(times))
	doNotUse := false
	for i, offset := range times {
		rel, outside := p.trajectoryAt(src, t, offset, bp, interval)
		if outside && p.Config.EdgePolicy == config.EdgePolicyIgnoreEdges {
			doNotUse = true
		}
		traj[i] = feature.TrajectoryPoint{Position: rel.Translation, Facing: skeleton.WrapAngle(rel.Yaw())}
	}
	if length <= 0 {
		doNotUse = true
	}

	if mirrored {
		velocity = p.Mirror.MirrorVector(velocity)
		yawRate = p.Mirror.MirrorYawRate(yawRate)
		for i := range traj {
			traj[i].Position = p.Mirror.MirrorVector(traj[i].Position)
			traj[i].Facing = p.Mirror.MirrorYaw(traj[i].Facing)
		}
	}

	return &feature.Sample{
		Skeleton:           skel,
		Mirror:             p.Mirror,
		Mirrored:           mirrored,
		Valid:              true,
		Pose:               pose,
		PrevPose:           prevPose,
		DeltaTime:          dt,
		LocalVelocity:      velocity,
		RotationalVelocity: yawRate,
		Trajectory:         traj,
	}, doNotUse
}

// trajectoryAt returns the root at t+offset expressed in the root frame at
// t, and whether t+offset falls outside a non-looping clip.
func (p *Preprocessor) trajectoryAt(src *animsrc.Source, t, offset float64, bp mgl64.Vec2, interval float64) (skeleton.Transform, bool) {
	skel := p.Skeleton
	target := t + offset
	length := src.Length(bp)
	if src.Loop || (target >= 0 && target <= length) {
		return src.RootMotion(skel, t, target, bp), false
	}

	edge, overshoot := length, target-length
	if target < 0 {
		edge, overshoot = 0, target
	}
	toEdge := src.RootMotion(skel, t, edge, bp)

	switch p.Config.EdgePolicy {
	case config.EdgePolicyExtrapolate:
		return toEdge.Compose(p.extrapolate(src, edge, overshoot, bp, interval)), true
	case config.EdgePolicyUseAdjacent:
		if beyond, ok := p.adjacentMotion(src, overshoot); ok {
			return toEdge.Compose(beyond), true
		}
	}
	return toEdge, true
}

// extrapolate continues the root motion of the interval next to edge for
// overshoot seconds (negative before the clip start).
func (p *Preprocessor) extrapolate(src *animsrc.Source, edge, overshoot float64, bp mgl64.Vec2, interval float64) skeleton.Transform {
	length := src.Length(bp)
	step := math.Min(interval, length)
	if step <= 0 {
		return skeleton.Identity()
	}
	// Motion over one step leading into the edge, from inside the clip.
	var motion skeleton.Transform
	if edge > 0 {
		motion = src.RootMotion(p.Skeleton, edge-step, edge, bp)
	} else {
		motion = src.RootMotion(p.Skeleton, step, 0, bp)
	}
	k := math.Abs(overshoot) / step
	return skeleton.YawTransform(motion.Translation.Mul(k), skeleton.WrapAngle(motion.Yaw())*k)
}

// adjacentMotion returns the root motion for overshoot seconds into the
// preceding (negative) or following (positive) source.
func (p *Preprocessor) adjacentMotion(src *animsrc.Source, overshoot float64) (skeleton.Transform, bool) {
	idx := src.Following
	if overshoot < 0 {
		idx = src.Preceding
	}
	if idx == animsrc.NoAdjacent || idx < 0 || idx >= len(p.Sources) || !p.Sources[idx].Valid() {
		return skeleton.Transform{}, false
	}
	adj := p.Sources[idx]
	bp := adj.Positions()[0]
	if overshoot < 0 {
		end := adj.Length(bp)
		return adj.RootMotion(p.Skeleton, end, end+overshoot, bp), true
	}
	return adj.RootMotion(p.Skeleton, 0, overshoot, bp), true
}
