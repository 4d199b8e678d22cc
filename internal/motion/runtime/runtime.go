package runtime

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/motion.match/internal/monitoring"
	"github.com/banshee-data/motion.match/internal/motion/animsrc"
	"github.com/banshee-data/motion.match/internal/motion/cost"
	"github.com/banshee-data/motion.match/internal/motion/distmatch"
	"github.com/banshee-data/motion.match/internal/motion/feature"
	"github.com/banshee-data/motion.match/internal/motion/index"
	"github.com/banshee-data/motion.match/internal/motion/playback"
	"github.com/banshee-data/motion.match/internal/motion/posedb"
	"github.com/banshee-data/motion.match/internal/motion/search"
	"github.com/banshee-data/motion.match/internal/motion/skeleton"
	"github.com/go-gl/mathgl/mgl64"
)

// Mode is the runtime sub-mode.
type Mode int

const (
	ModeMotionMatching Mode = iota
	ModeDistanceMatching
	ModeAction
)

func (m Mode) String() string {
	switch m {
	case ModeMotionMatching:
		return "motion_matching"
	case ModeDistanceMatching:
		return "distance_matching"
	case ModeAction:
		return "action"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Deps are the engine collaborators of a Runtime.
type Deps struct {
	Skeleton skeleton.Skeleton
	Mirror   *skeleton.MirrorTable
	// Sources is indexed by database AnimID. Missing entries play the
	// reference pose.
	Sources []*animsrc.Source
	// Blender combines channel poses; nil uses playback.LinearBlender.
	Blender playback.PoseBlender
}

// TickInput is the per-tick input from the character.
type TickInput struct {
	DeltaTime float64
	// Trajectory is the desired trajectory at the schema's time offsets.
	Trajectory         []feature.TrajectoryPoint
	LocalVelocity      mgl64.Vec3
	RotationalVelocity float64
	Traits             uint64
	Interactions       map[string]mgl64.Vec3
}

// TickOutput is the result of one Update.
type TickOutput struct {
	Pose        skeleton.Pose
	RootMotion  skeleton.Transform
	Events      []playback.Event
	Inertialize bool
	Mode        Mode
	Search      search.Result
	Searched    bool
	// Valid is false when the runtime is not valid to evaluate and the
	// tick held the last pose.
	Valid bool
}

type marker struct {
	trigger  animsrc.MatchTrigger
	distance float64
	consumed bool // a distance match was already attempted for trigger
}

func (m marker) active() bool { return m.trigger != animsrc.TriggerNone }

// Runtime plays one character from a published pose database.
type Runtime struct {
	cfg  Config
	db   *posedb.Database
	idx  *index.Index
	deps Deps

	valid    bool
	eval     *cost.Evaluator
	selector *search.Selector
	channels *playback.Set
	matcher  *distmatch.Matcher
	recorder animsrc.Recorder
	bones    feature.BoneMap
	query    []float64
	last     skeleton.Pose

	mode          Mode
	marker        marker
	section       *distmatch.Section
	driven        *playback.Channel
	pendingAction int
	actionLeft    float64
	queryHasPose  bool
}

// New returns a runtime over db. idx may be nil. The runtime is not valid
// to evaluate until Initialize succeeds.
func New(db *posedb.Database, idx *index.Index, cfg Config, deps Deps) *Runtime {
	if deps.Blender == nil {
		deps.Blender = playback.LinearBlender{}
	}
	return &Runtime{cfg: cfg, db: db, idx: idx, deps: deps, pendingAction: posedb.NoAction}
}

func (r *Runtime) name() string {
	if r.db == nil {
		return "<nil>"
	}
	return r.db.Name
}

// Initialize validates the configuration, resolves the schema bones
// against the character skeleton and builds the per-character state. On error the runtime stays invalid and every
// Update is a no-op.
func (r *Runtime) Initialize() error {
	r.valid = false
	if err := r.validate(); err != nil {
		monitoring.Warnf("[runtime] %s: not valid to evaluate: %v", r.name(), err)
		return err
	}

	schema := r.db.Schema
	r.bones = schema.ResolveBones(r.deps.Skeleton)
	r.eval = cost.New(schema, r.cfg.Cost)
	r.selector = search.New(r.db, r.eval, r.idx, r.cfg.Search)
	r.channels = playback.NewSet(r.db, r.deps.Sources, r.deps.Skeleton, r.deps.Mirror, r.cfg.Playback)
	r.matcher = distmatch.New(r.db, r.deps.Sources, r.eval)
	r.query = make([]float64, r.db.AtomCount())
	r.recorder.Reset()
	r.last = skeleton.ReferencePose(r.deps.Skeleton)
	r.mode, r.marker, r.section, r.driven = ModeMotionMatching, marker{}, nil, nil
	r.pendingAction = posedb.NoAction

	for anim := range r.db.Anims {
		if anim >= len(r.deps.Sources) || !r.deps.Sources[anim].Valid() {
			monitoring.WarnOnce(fmt.Sprintf("runtime-source:%s:%d", r.db.Name, anim),
				"[runtime] %s: source for animation %q is missing; its poses play the reference pose", r.db.Name, r.db.Anims[anim].Name)
		}
	}
	if r.idx != nil && !r.idx.Valid() {
		monitoring.Debugf(1, "[runtime] %s: index is stale, searches scan linearly", r.db.Name)
	}

	r.valid = true
	monitoring.Logf("[runtime] %s: ready with %d poses (%s, blend %s)",
		r.db.Name, r.db.Len(), r.cfg.Playback.Method, r.cfg.Playback.BlendTime)
	return nil
}

func (r *Runtime) validate() error {
	if r.db == nil {
		return ErrNoDatabase
	}
	if r.db.Schema == nil {
		return fmt.Errorf("database %s: %w", r.db.Name, ErrNoSchema)
	}
	var errs []error
	if r.deps.Skeleton == nil {
		errs = append(errs, ErrNoSkeleton)
	}
	if r.db.Schema.TrajectoryCount() == 0 {
		errs = append(errs, ErrNoTrajectory)
	}
	if r.db.Schema.BoneCount() == 0 {
		errs = append(errs, ErrNoBones)
	}
	if r.db.Calibration == nil {
		errs = append(errs, ErrNoCalibration)
	}
	if err := r.db.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database %s: %w", r.db.Name, err))
	}
	if r.deps.Mirror == nil {
		for i := range r.db.Poses {
			if r.db.Poses[i].Mirrored {
				errs = append(errs, ErrNoMirrorTable)
				break
			}
		}
	}
	return errors.Join(errs...)
}

// ValidToEvaluate reports whether Initialize succeeded.
func (r *Runtime) ValidToEvaluate() bool { return r.valid }

// Mode returns the active sub-mode.
func (r *Runtime) Mode() Mode { return r.mode }

// Channels returns the playback channels, or nil before Initialize.
func (r *Runtime) Channels() *playback.Set { return r.channels }

// Counters returns the selector counters.
func (r *Runtime) Counters() search.Counters {
	if r.selector == nil {
		return search.Counters{}
	}
	return r.selector.Counters
}

// RequestAction asks the next Update to play the lead-in of action id.
func (r *Runtime) RequestAction(id int) {
	r.pendingAction = id
}

// TriggerDistanceMatch starts or updates a distance-matching marker. The
// distance is the remaining distance to a stop-like marker or the distance
// travelled from a start-like one. A new trigger may start one distance
// match; repeating the same trigger only updates the distance.
func (r *Runtime) TriggerDistanceMatch(trigger animsrc.MatchTrigger, distance float64) {
	if trigger != r.marker.trigger {
		r.marker = marker{trigger: trigger}
	}
	r.marker.distance = distance
}

// ClearDistanceMatch clears the marker. An active distance match returns
// to motion matching on the next Update.
func (r *Runtime) ClearDistanceMatch() {
	r.marker = marker{}
}

// Update runs one tick.
func (r *Runtime) Update(in TickInput) TickOutput {
	if !r.valid {
		return TickOutput{Pose: r.holdPose(), RootMotion: skeleton.Identity(), Mode: r.mode}
	}
	dt := math.Max(0, in.DeltaTime)
	out := TickOutput{Valid: true, Search: search.Result{PoseID: -1, State: search.NoSearchNeeded}}

	r.buildQuery(in)
	if r.pendingAction != posedb.NoAction {
		r.startAction(r.pendingAction, in.Traits)
		r.pendingAction = posedb.NoAction
	}
	if r.mode == ModeDistanceMatching {
		r.driveDistanceMatch()
	}
	if r.mode == ModeMotionMatching && r.marker.active() && !r.marker.consumed && r.cfg.DistanceMatching {
		r.startDistanceMatch(in.Traits)
	}
	if r.mode == ModeMotionMatching {
		out.Search, out.Searched = r.motionMatch(dt, in.Traits)
	}

	step := r.channels.Advance(dt)
	r.afterAdvance(dt)

	pose := r.channels.EvaluatePose(r.deps.Blender)
	r.recorder.Record(pose, dt)
	r.last = pose

	out.Pose = pose
	out.RootMotion = step.RootMotion
	out.Events = step.Events
	out.Inertialize = step.Inertialize
	out.Mode = r.mode
	return out
}

func (r *Runtime) holdPose() skeleton.Pose {
	if r.last != nil {
		return r.last
	}
	if r.deps.Skeleton != nil {
		return skeleton.ReferencePose(r.deps.Skeleton)
	}
	return nil
}

// buildQuery fills r.query. The pose part comes from the playing database
// row, or from the recorded output pose when configured or when nothing
// plays yet. Trajectory and interactions always come from the input. Until
// the recorder holds two frames the pose part is left out of searches.
func (r *Runtime) buildQuery(in TickInput) {
	schema := r.db.Schema
	if len(in.Trajectory) != schema.TrajectoryCount() {
		monitoring.WarnOnce("runtime-trajectory:"+r.db.Name,
			"[runtime] %s: input trajectory has %d points, schema expects %d", r.db.Name, len(in.Trajectory), schema.TrajectoryCount())
	}

	dom := r.channels.Dominant()
	if dom != nil && !r.cfg.UseRecordedPose &&
		r.db.InterpolateRow(dom.AnimID, dom.Mirrored, dom.BlendPosition, dom.Time, r.query) >= 0 {
		schema.WriteTrajectory(r.query, in.Trajectory)
		for name, loc := range in.Interactions {
			if off, ok := schema.InteractionOffset(name); ok {
				copy(r.query[off:off+3], loc[:])
			}
		}
		r.queryHasPose = true
		return
	}

	rt := feature.RuntimePose{
		Pose:               r.recorder.Current(),
		PrevPose:           r.recorder.Previous(),
		DeltaTime:          r.recorder.DeltaTime(),
		LocalVelocity:      in.LocalVelocity,
		RotationalVelocity: in.RotationalVelocity,
		Trajectory:         in.Trajectory,
		Interactions:       in.Interactions,
	}
	schema.ExtractRuntime(&rt, r.bones, r.query)
	r.queryHasPose = r.recorder.Ready()
}

func (r *Runtime) poseAt(c *playback.Channel) int {
	return r.db.FindPose(c.AnimID, c.Mirrored, c.BlendPosition, c.Time)
}

func location(c *playback.Channel) *search.Location {
	if c == nil {
		return nil
	}
	return &search.Location{AnimID: c.AnimID, Mirrored: c.Mirrored, Time: c.Time, BlendPosition: c.BlendPosition}
}

func (r *Runtime) motionMatch(dt float64, traits uint64) (search.Result, bool) {
	pb := search.Playback{PoseID: -1}
	dom := r.channels.Dominant()
	if dom != nil {
		pb = search.Playback{PoseID: r.poseAt(dom), Remaining: dom.Remaining(), Loop: dom.Loop}
	}
	trigger := r.selector.ShouldSearch(dt, pb)
	if trigger == search.TriggerNone {
		return search.Result{PoseID: -1, State: search.NoSearchNeeded}, false
	}

	req := search.Request{
		Query:       r.query,
		Traits:      traits,
		NaturalNext: -1,
		Trigger:     trigger,
		Playing:     location(dom),
		Chosen:      location(r.channels.Chosen()),
		OmitPose:    !r.queryHasPose,
	}
	if p := r.db.Pose(pb.PoseID); p != nil {
		req.NaturalNext = p.NextPoseID
	}
	res := r.selector.Search(req)
	if res.Transition {
		r.channels.TransitionToPose(res.PoseID)
		monitoring.Debugf(2, "[runtime] %s: %s search moved to pose %d", r.db.Name, trigger, res.PoseID)
	}
	return res, true
}

func (r *Runtime) startDistanceMatch(traits uint64) {
	r.marker.consumed = true
	sel, ok := r.matcher.SelectStart(r.marker.trigger, r.marker.distance, r.query, traits)
	if !ok {
		return
	}
	c := r.channels.TransitionToTime(sel.PoseID, sel.Time)
	if c == nil {
		return
	}
	r.channels.Drive(c, sel.Time)
	r.mode, r.section, r.driven = ModeDistanceMatching, sel.Section, c
	monitoring.Debugf(1, "[runtime] %s: distance matching %s from t=%.3f", r.db.Name, sel.Section, sel.Time)
}

// driveDistanceMatch moves the driven channel to the curve time of the
// marker distance. Time never runs backwards.
func (r *Runtime) driveDistanceMatch() {
	switch {
	case r.marker.trigger != r.section.Curve.Trigger:
		r.exitToMotionMatching("marker cleared")
	case !r.live(r.driven):
		r.exitToMotionMatching("channel removed")
	default:
		t := math.Max(r.section.TimeForDistance(r.marker.distance), r.driven.Time)
		r.channels.Drive(r.driven, t)
	}
}

func (r *Runtime) live(c *playback.Channel) bool {
	for _, o := range r.channels.Channels() {
		if o == c {
			return true
		}
	}
	return false
}

// startAction plays the lead-in of the lowest pose-cost pose tagged with
// action id.
func (r *Runtime) startAction(id int, traits uint64) {
	ids := r.db.PosesWithAction(id)
	if len(ids) == 0 {
		monitoring.WarnOnce(fmt.Sprintf("runtime-action:%s:%d", r.db.Name, id),
			"[runtime] %s: no poses tagged with action %d", r.db.Name, id)
		return
	}
	weights := r.db.Calibration.Weights(traits)
	best, bestCost := -1, math.Inf(1)
	for _, pid := range ids {
		c := r.eval.Breakdown(r.query, r.db.Row(pid), weights).Channel(feature.ChannelPose)
		if c < bestCost {
			best, bestCost = pid, c
		}
	}
	if best < 0 {
		monitoring.Debugf(1, "[runtime] %s: no finite pose cost for action %d", r.db.Name, id)
		return
	}
	start, steps := r.leadIn(best)
	if r.channels.TransitionToPose(start) == nil {
		return
	}
	r.mode, r.section, r.driven = ModeAction, nil, nil
	r.actionLeft = float64(steps)*r.db.PoseInterval + r.cfg.ActionTailTime.Seconds()
	monitoring.Debugf(1, "[runtime] %s: action %d from pose %d (%d lead poses), holding %.3fs",
		r.db.Name, id, start, steps, r.actionLeft)
}

// leadIn steps back from pose id up to ActionLeadPoses poses within its
// clip pass and returns the start pose and the number of steps taken.
func (r *Runtime) leadIn(id int) (int, int) {
	p := r.db.Pose(id)
	steps := 0
	for steps < r.cfg.ActionLeadPoses {
		prev := r.db.Pose(p.LastPoseID)
		if prev == nil || prev.ID == p.ID || !prev.SameRun(p) {
			break
		}
		if a := r.db.Anim(p.AnimID); (a == nil || !a.Loop) && prev.Time >= p.Time {
			break
		}
		p = prev
		steps++
	}
	return p.ID, steps
}

func (r *Runtime) afterAdvance(dt float64) {
	switch r.mode {
	case ModeDistanceMatching:
		if r.section.Done(r.driven.Time) {
			r.exitToMotionMatching("curve end")
		}
	case ModeAction:
		r.actionLeft -= dt
		if r.actionLeft <= 1e-9 {
			r.exitToMotionMatching("action complete")
		}
	}
}

func (r *Runtime) exitToMotionMatching(reason string) {
	monitoring.Debugf(1, "[runtime] %s: %s -> %s (%s)", r.db.Name, r.mode, ModeMotionMatching, reason)
	r.mode, r.section, r.driven = ModeMotionMatching, nil, nil
	r.selector.Reset()
}
