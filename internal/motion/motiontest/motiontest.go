// Package motiontest provides synthetic skeletons, clips and databases
// shared by the motion package tests.
//
// Every clip is generated analytically so tests can predict root motion,
// trajectories and foot positions exactly.
package motiontest

import (
	"context"
	"math"
	"testing"

	"github.com/banshee-data/motion.match/internal/config"
	"github.com/banshee-data/motion.match/internal/motion/animsrc"
	"github.com/banshee-data/motion.match/internal/motion/feature"
	"github.com/banshee-data/motion.match/internal/motion/posedb"
	"github.com/banshee-data/motion.match/internal/motion/preprocess"
	"github.com/banshee-data/motion.match/internal/motion/skeleton"
	"github.com/go-gl/mathgl/mgl64"
)

// Source indices of Library.
const (
	Walk = iota
	Run
	TurnLeft
	Stop
	Start
	Idle
)

// TrajectoryTimes are the trajectory offsets used by Schema.
var TrajectoryTimes = []float64{-0.3, 0.3, 0.6, 1.0}

// MatchBones are the bones matched by Schema.
var MatchBones = []string{"foot_l", "foot_r"}

// keyStep is the spacing of generated keyframes.
const keyStep = 0.05

// Skeleton returns a six-bone biped: root, pelvis, feet and hands.
func Skeleton() *skeleton.RefSkeleton {
	at := func(x, y, z float64) skeleton.Transform {
		return skeleton.NewTransform(mgl64.Vec3{x, y, z}, mgl64.QuatIdent())
	}
	skel, err := skeleton.NewRefSkeleton([]skeleton.Bone{
		{Name: "root", Parent: -1},
		{Name: "pelvis", Parent: 0, Local: at(0, 0, 1)},
		{Name: "foot_l", Parent: 1, Local: at(0, 0.1, -0.9)},
		{Name: "foot_r", Parent: 1, Local: at(0, -0.1, -0.9)},
		{Name: "hand_l", Parent: 1, Local: at(0, 0.3, 0.4)},
		{Name: "hand_r", Parent: 1, Local: at(0, -0.3, 0.4)},
	})
	if err != nil {
		panic(err)
	}
	return skel
}

// Mirror returns the left/right mirror table across the Y axis.
func Mirror() *skeleton.MirrorTable {
	return skeleton.NewMirrorTable(skeleton.AxisY, map[string]string{
		"foot_l": "foot_r",
		"hand_l": "hand_r",
	})
}

// rootPath returns the root transform at t.
type rootPath func(t float64) skeleton.Transform

// clip samples path and a stride cycle of period seconds into a sequence.
// stride scales the foot swing; zero keeps the feet planted.
func clip(name string, length, period, stride float64, path rootPath) *animsrc.Sequence {
	n := int(math.Ceil(length/keyStep-1e-9)) + 1
	root := make([]animsrc.Keyframe, 0, n)
	left := make([]animsrc.Keyframe, 0, n)
	right := make([]animsrc.Keyframe, 0, n)
	for i := 0; i < n; i++ {
		t := math.Min(float64(i)*keyStep, length)
		swing := 0.0
		if period > 0 {
			swing = stride * math.Sin(2*math.Pi*t/period)
		}
		root = append(root, animsrc.Keyframe{Time: t, Local: path(t)})
		left = append(left, animsrc.Keyframe{Time: t, Local: skeleton.NewTransform(mgl64.Vec3{swing, 0.1, -0.9}, mgl64.QuatIdent())})
		right = append(right, animsrc.Keyframe{Time: t, Local: skeleton.NewTransform(mgl64.Vec3{-swing, -0.1, -0.9}, mgl64.QuatIdent())})
	}
	var notifies []animsrc.Notify
	if period > 0 {
		notifies = []animsrc.Notify{{Name: "foot_l_down", Time: period / 4}, {Name: "foot_r_down", Time: 3 * period / 4}}
	}
	return animsrc.NewSequence(name, length, []animsrc.Track{
		{Bone: "root", Keys: root},
		{Bone: "foot_l", Keys: left},
		{Bone: "foot_r", Keys: right},
	}, notifies)
}

// Straight returns a looping-friendly clip moving along +X at speed.
func Straight(name string, length, speed float64) *animsrc.Sequence {
	return clip(name, length, length, 0.2, func(t float64) skeleton.Transform {
		return skeleton.NewTransform(mgl64.Vec3{speed * t, 0, 0}, mgl64.QuatIdent())
	})
}

// Turn returns a clip following a circular arc at speed, turning at
// yawRate radians per second (positive turns left).
func Turn(name string, length, speed, yawRate float64) *animsrc.Sequence {
	return clip(name, length, length/2, 0.15, func(t float64) skeleton.Transform {
		return skeleton.YawTransform(ArcPosition(speed, yawRate, t), yawRate*t)
	})
}

// ArcPosition returns the position after t seconds on an arc starting at
// the origin facing +X.
func ArcPosition(speed, yawRate, t float64) mgl64.Vec3 {
	if math.Abs(yawRate) < 1e-9 {
		return mgl64.Vec3{speed * t, 0, 0}
	}
	r := speed / yawRate
	yaw := yawRate * t
	return mgl64.Vec3{r * math.Sin(yaw), r * (1 - math.Cos(yaw)), 0}
}

// StopDistance returns the distance covered after t seconds of a linear
// deceleration from speed to rest over length seconds.
func StopDistance(speed, length, t float64) float64 {
	t = math.Max(0, math.Min(t, length))
	return speed * (t - t*t/(2*length))
}

// StartDistance returns the distance covered after t seconds of a linear
// acceleration from rest to speed over length seconds.
func StartDistance(speed, length, t float64) float64 {
	t = math.Max(0, math.Min(t, length))
	return speed * t * t / (2 * length)
}

// StopClip decelerates from speed to rest.
func StopClip(name string, length, speed float64) *animsrc.Sequence {
	return clip(name, length, length, 0.1, func(t float64) skeleton.Transform {
		return skeleton.NewTransform(mgl64.Vec3{StopDistance(speed, length, t), 0, 0}, mgl64.QuatIdent())
	})
}

// StartClip accelerates from rest to speed.
func StartClip(name string, length, speed float64) *animsrc.Sequence {
	return clip(name, length, length, 0.1, func(t float64) skeleton.Transform {
		return skeleton.NewTransform(mgl64.Vec3{StartDistance(speed, length, t), 0, 0}, mgl64.QuatIdent())
	})
}

// IdleClip holds the root still.
func IdleClip(name string, length float64) *animsrc.Sequence {
	return clip(name, length, 0, 0, func(float64) skeleton.Transform { return skeleton.Identity() })
}

// DistanceCurve samples dist over [0, length] for trigger.
func DistanceCurve(trigger animsrc.MatchTrigger, length float64, dist func(t float64) float64) animsrc.DistanceCurve {
	c := animsrc.DistanceCurve{Trigger: trigger}
	for t := 0.0; t < length+1e-9; t += keyStep {
		tt := math.Min(t, length)
		c.Times = append(c.Times, tt)
		c.Distances = append(c.Distances, dist(tt))
	}
	return c
}

// Library returns the standard fixture library, indexed by Walk, Run,
// TurnLeft, Stop, Start and Idle. The stop clip carries a falling distance
// to the stop marker and the start clip a rising distance from the start.
func Library() *animsrc.Library {
	const stopLen, startLen = 1.0, 1.0
	walk := animsrc.NewSequenceSource(Straight("walk", 1.2, 1.5), true)
	run := animsrc.NewSequenceSource(Straight("run", 0.8, 4), true)
	turn := animsrc.NewSequenceSource(Turn("turn_left", 1.6, 1.5, 1.2), false)
	turn.Preceding, turn.Following = Walk, Walk

	stop := animsrc.NewSequenceSource(StopClip("stop", stopLen, 1.5), false)
	total := StopDistance(1.5, stopLen, stopLen)
	stop.DistanceCurves = []animsrc.DistanceCurve{DistanceCurve(animsrc.TriggerStop, stopLen, func(t float64) float64 {
		return total - StopDistance(1.5, stopLen, t)
	})}
	stop.Preceding = Walk

	start := animsrc.NewSequenceSource(StartClip("start", startLen, 1.5), false)
	start.DistanceCurves = []animsrc.DistanceCurve{DistanceCurve(animsrc.TriggerStart, startLen, func(t float64) float64 {
		return StartDistance(1.5, startLen, t)
	})}
	start.Following = Walk

	idle := animsrc.NewSequenceSource(IdleClip("idle", 2), true)

	return &animsrc.Library{
		Skeleton: Skeleton(),
		Mirror:   Mirror(),
		Sources:  []*animsrc.Source{walk, run, turn, stop, start, idle},
	}
}

// Schema returns the fixture feature schema.
func Schema(tb testing.TB, extras ...feature.MatchFeature) *feature.Schema {
	tb.Helper()
	s, err := feature.NewSchema(TrajectoryTimes, MatchBones, extras...)
	if err != nil {
		tb.Fatalf("schema: %v", err)
	}
	return s
}

// Config returns the fixture preprocessing configuration.
func Config() preprocess.Config {
	return preprocess.Config{
		PoseInterval:    0.1,
		MinPoseInterval: 0.01,
		Mirror:          true,
		EdgePolicy:      config.EdgePolicyIgnoreEdges,
		Responsiveness:  0.5,
	}
}

// Database preprocesses lib with the fixture schema and configuration.
func Database(tb testing.TB, lib *animsrc.Library) *posedb.Database {
	tb.Helper()
	return DatabaseWith(tb, lib, Schema(tb), Config())
}

// DatabaseWith preprocesses lib with an explicit schema and configuration.
func DatabaseWith(tb testing.TB, lib *animsrc.Library, schema *feature.Schema, cfg preprocess.Config) *posedb.Database {
	tb.Helper()
	db, err := preprocess.New("fixture", lib, schema, cfg).Run(context.Background())
	if err != nil {
		tb.Fatalf("preprocess: %v", err)
	}
	return db
}

// StraightTrajectory returns a desired trajectory moving along +X at speed
// for the given offsets.
func StraightTrajectory(times []float64, speed float64) []feature.TrajectoryPoint {
	out := make([]feature.TrajectoryPoint, len(times))
	for i, t := range times {
		out[i] = feature.TrajectoryPoint{Position: mgl64.Vec3{speed * t, 0, 0}}
	}
	return out
}

// ArcTrajectory returns a desired trajectory on an arc.
func ArcTrajectory(times []float64, speed, yawRate float64) []feature.TrajectoryPoint {
	out := make([]feature.TrajectoryPoint, len(times))
	for i, t := range times {
		out[i] = feature.TrajectoryPoint{Position: ArcPosition(speed, yawRate, t), Facing: skeleton.WrapAngle(yawRate * t)}
	}
	return out
}
