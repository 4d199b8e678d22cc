package posedb

import (
	"math"
	"sort"
)

// GeneratePoseSequencing sets LastPoseID and NextPoseID for every pose.
// Neighbours come from the same clip pass (animation, mirror flag and blend
// position). At a pass boundary a looping clip wraps: the first pose links
// back to the pose nearest one interval before the end, and the last pose
// links forward to the first. Non-looping boundaries link to themselves.
func (db *Database) GeneratePoseSequencing() {
	db.Finalize()
	for _, run := range db.runs {
		length := db.Poses[run[len(run)-1]].Time
		for k, id := range run {
			p := &db.Poses[id]
			loop := db.Anims[p.AnimID].Loop && len(run) > 1 && length > 0

			switch {
			case k > 0:
				p.LastPoseID = run[k-1]
			case loop:
				p.LastPoseID = db.nearestInRun(run, wrapTime(p.Time-db.PoseInterval, length))
			default:
				p.LastPoseID = id
			}

			switch {
			case k < len(run)-1:
				p.NextPoseID = run[k+1]
			case loop:
				p.NextPoseID = run[0]
			default:
				p.NextPoseID = id
			}
		}
	}
}

func wrapTime(t, length float64) float64 {
	t = math.Mod(t, length)
	if t < 0 {
		t += length
	}
	return t
}

func (db *Database) nearestInRun(run []int, t float64) int {
	i := sort.Search(len(run), func(i int) bool { return db.Poses[run[i]].Time >= t })
	switch {
	case i == 0:
		return run[0]
	case i == len(run):
		return run[len(run)-1]
	}
	if t-db.Poses[run[i-1]].Time <= db.Poses[run[i]].Time-t {
		return run[i-1]
	}
	return run[i]
}
