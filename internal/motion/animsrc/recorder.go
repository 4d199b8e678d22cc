package animsrc

import (
	"github.com/banshee-data/motion.match/internal/motion/skeleton"
)

// Recorder keeps the last two evaluated component-space poses of a live
// character so joint velocities can be derived at runtime.
type Recorder struct {
	cur, prev skeleton.Pose
	dt        float64
	frames    int
}

// Record stores pose as the newest snapshot. dt is the time since the
// previous snapshot.
func (r *Recorder) Record(pose skeleton.Pose, dt float64) {
	r.prev, r.cur = r.cur, pose.Clone()
	r.dt = dt
	r.frames++
}

// Reset discards all snapshots.
func (r *Recorder) Reset() {
	*r = Recorder{}
}

// Ready reports whether two snapshots are available.
func (r *Recorder) Ready() bool {
	return r.frames >= 2 && r.dt > 0
}

// DeltaTime returns the time between the two snapshots.
func (r *Recorder) DeltaTime() float64 { return r.dt }

// Current returns the newest snapshot relative to its own root bone.
func (r *Recorder) Current() skeleton.Pose {
	return r.cur.RelativeTo(r.cur.Root())
}

// Previous returns the older snapshot relative to the newest root bone so
// differences between the two include root motion.
func (r *Recorder) Previous() skeleton.Pose {
	if r.frames < 2 {
		return r.Current()
	}
	return r.prev.RelativeTo(r.cur.Root())
}
