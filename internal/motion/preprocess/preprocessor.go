package preprocess

import (
	"context"
	"fmt"
	"math"

	"github.com/banshee-data/motion.match/internal/config"
	"github.com/banshee-data/motion.match/internal/monitoring"
	"github.com/banshee-data/motion.match/internal/motion/animsrc"
	"github.com/banshee-data/motion.match/internal/motion/calibration"
	"github.com/banshee-data/motion.match/internal/motion/feature"
	"github.com/banshee-data/motion.match/internal/motion/posedb"
	"github.com/banshee-data/motion.match/internal/motion/skeleton"
	"github.com/go-gl/mathgl/mgl64"
)

// Preprocessor builds a pose database from a set of sources. Source i
// becomes AnimID i, so runtimes can sample a pose's animation by indexing
// the same source list.
type Preprocessor struct {
	Name     string
	Config   Config
	Skeleton skeleton.Skeleton
	Mirror   *skeleton.MirrorTable
	Sources  []*animsrc.Source
	Schema   *feature.Schema
}

// New returns a Preprocessor for every source in lib.
func New(name string, lib *animsrc.Library, schema *feature.Schema, cfg Config) *Preprocessor {
	p := &Preprocessor{Name: name, Config: cfg, Schema: schema}
	if lib != nil {
		if lib.Skeleton != nil {
			p.Skeleton = lib.Skeleton
		}
		p.Mirror = lib.Mirror
		p.Sources = lib.Sources
	}
	return p
}

// Validate reports every configuration problem at once. It returns nil or
// a *ValidationError.
func (p *Preprocessor) Validate() error {
	var problems []error
	if p.Skeleton == nil {
		problems = append(problems, ErrNoSkeleton)
	}
	if p.Schema == nil {
		problems = append(problems, ErrNoSchema)
	} else {
		if p.Schema.TrajectoryCount() == 0 {
			problems = append(problems, feature.ErrNoTrajectory)
		}
		if p.Schema.BoneCount() == 0 {
			problems = append(problems, feature.ErrNoBones)
		}
		if p.Config.Authored != nil {
			if err := p.Config.Authored.IsValidWithConfig(p.Schema); err != nil {
				problems = append(problems, err)
			}
		}
	}
	if p.Config.Mirror && p.Mirror == nil {
		problems = append(problems, ErrNoMirrorTable)
	}
	switch p.Config.EdgePolicy {
	case config.EdgePolicyNone, config.EdgePolicyIgnoreEdges, config.EdgePolicyExtrapolate, config.EdgePolicyUseAdjacent:
	default:
		problems = append(problems, fmt.Errorf("unknown trajectory edge policy %q", p.Config.EdgePolicy))
	}

	valid := 0
	for i, src := range p.Sources {
		if !src.Valid() {
			continue
		}
		valid++
		for _, adj := range []int{src.Preceding, src.Following} {
			if adj != animsrc.NoAdjacent && (adj < 0 || adj >= len(p.Sources)) {
				problems = append(problems, fmt.Errorf("source %d (%s) references adjacent source %d out of range", i, src.Name, adj))
			}
		}
	}
	if valid == 0 {
		problems = append(problems, ErrNoAnimations)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Run validates the configuration and builds the database. Nothing is
// produced when validation fails. ctx is checked between sources.
func (p *Preprocessor) Run(ctx context.Context) (*posedb.Database, error) {
	if err := p.Validate(); err != nil {
		monitoring.Logf("[preprocess] %s: %v", p.Name, err)
		return nil, err
	}
	// Resolving once surfaces missing-bone warnings before sampling.
	p.Schema.ResolveBones(p.Skeleton)

	interval := p.Config.Interval()
	db := posedb.New(p.Name, p.Schema, interval)
	row := make([]float64, p.Schema.AtomCount())

	for i, src := range p.Sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info := posedb.AnimInfo{Name: fmt.Sprintf("source-%d", i)}
		if src != nil {
			info = posedb.AnimInfo{
				Name:   src.Name,
				Kind:   src.Kind,
				Loop:   src.Loop,
				Favour: src.GetFavour(),
				Traits: src.Traits,
			}
		}
		if !src.Valid() {
			monitoring.Warnf("[preprocess] %s: source %d (%s) has no usable animation; skipped", p.Name, i, info.Name)
			db.AddAnim(info)
			continue
		}
		info.Length = src.Length(mgl64.Vec2{})
		if src.Kind == animsrc.KindBlendSpace {
			info.BlendPositions = append([]mgl64.Vec2(nil), src.Positions()...)
		}
		anim := db.AddAnim(info)

		passes := []bool{false}
		if p.Config.Mirror {
			passes = append(passes, true)
		}
		for _, mirrored := range passes {
			for _, bp := range src.Positions() {
				if err := p.samplePass(db, anim, src, mirrored, bp, interval, row); err != nil {
					return nil, err
				}
			}
		}
		monitoring.Debugf(1, "[preprocess] %s: source %s sampled, %d poses so far", p.Name, src.Name, db.Len())
	}

	db.GeneratePoseSequencing()
	p.applyTags(db)
	db.Finalize()

	calib, err := calibration.Build(p.Schema, db.AllPartitionRows(), p.Config.Authored, p.Config.Responsiveness)
	if err != nil {
		return nil, fmt.Errorf("failed to build calibration: %w", err)
	}
	db.Calibration = calib
	if err := db.Validate(); err != nil {
		return nil, fmt.Errorf("preprocessed database is invalid: %w", err)
	}
	monitoring.Logf("[preprocess] %s: %d poses from %d sources, %d trait groups",
		p.Name, db.Len(), len(p.Sources), len(db.TraitGroups()))
	return db, nil
}

// PoseCount returns the number of poses sampled from a clip of length
// seconds at interval. Both clip ends are sampled.
func PoseCount(length, interval float64) int {
	if length <= 0 || interval <= 0 {
		return 1
	}
	return int(math.Ceil(length/interval-1e-6)) + 1
}

func (p *Preprocessor) samplePass(db *posedb.Database, anim int, src *animsrc.Source, mirrored bool, bp mgl64.Vec2, interval float64, row []float64) error {
	length := src.Length(bp)
	count := PoseCount(length, interval)
	for i := 0; i < count; i++ {
		t := math.Min(float64(i)*interval, length)
		sample, doNotUse := p.buildSample(src, t, bp, mirrored, interval)
		p.Schema.ExtractPreprocess(sample, row)
		pose := posedb.Pose{
			AnimID:        anim,
			AnimKind:      src.Kind,
			Time:          t,
			Mirrored:      mirrored,
			Traits:        src.Traits,
			Favour:        src.GetFavour(),
			DoNotUse:      doNotUse,
			BlendPosition: bp,
			ActionID:      posedb.NoAction,
		}
		if _, err := db.Append(pose, row); err != nil {
			return fmt.Errorf("source %s at %.3fs: %w", src.Name, t, err)
		}
	}
	return nil
}
