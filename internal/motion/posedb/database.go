package posedb

import (
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/motion.match/internal/motion/calibration"
	"github.com/banshee-data/motion.match/internal/motion/feature"
	"github.com/banshee-data/motion.match/internal/motion/skeleton"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrStride is returned when a row does not match the schema stride.
	ErrStride = errors.New("pose row stride mismatch")
	// ErrEmpty is returned when a database holds no poses.
	ErrEmpty = errors.New("pose database is empty")
)

type runKey struct {
	anim     int
	mirrored bool
	bp       mgl64.Vec2
}

// Database is the published pose table.
type Database struct {
	Name         string
	PoseInterval float64
	Schema       *feature.Schema
	Poses        []Pose
	Matrix       Matrix
	Anims        []AnimInfo
	Calibration  *calibration.Set

	partitions map[uint64][]int
	actions    map[int][]int
	runs       map[runKey][]int
}

// New returns an empty database for schema sampled every interval seconds.
func New(name string, schema *feature.Schema, interval float64) *Database {
	return &Database{
		Name:         name,
		PoseInterval: interval,
		Schema:       schema,
		Matrix:       Matrix{Stride: schema.AtomCount()},
	}
}

// AddAnim registers a source animation and returns its AnimID.
func (db *Database) AddAnim(info AnimInfo) int {
	db.Anims = append(db.Anims, info)
	return len(db.Anims) - 1
}

// Append stores a pose and its feature row, assigning the pose id.
func (db *Database) Append(p Pose, row []float64) (int, error) {
	if len(row) != db.Matrix.Stride {
		return -1, fmt.Errorf("%w: got %d atoms, want %d", ErrStride, len(row), db.Matrix.Stride)
	}
	p.ID = db.Matrix.Append(row)
	if p.Favour <= 0 {
		p.Favour = 1
	}
	p.LastPoseID, p.NextPoseID = p.ID, p.ID
	db.Poses = append(db.Poses, p)
	return p.ID, nil
}

// Len returns the number of poses.
func (db *Database) Len() int { return len(db.Poses) }

// AtomCount returns the row stride.
func (db *Database) AtomCount() int { return db.Matrix.Stride }

// Row returns the feature row of pose id without copying.
func (db *Database) Row(id int) []float64 { return db.Matrix.Row(id) }

// Pose returns the metadata of pose id, or nil when out of range.
func (db *Database) Pose(id int) *Pose {
	if id < 0 || id >= len(db.Poses) {
		return nil
	}
	return &db.Poses[id]
}

// Anim returns the animation record for id, or nil.
func (db *Database) Anim(id int) *AnimInfo {
	if id < 0 || id >= len(db.Anims) {
		return nil
	}
	return &db.Anims[id]
}

// Joints reads the matched bone data of pose id.
func (db *Database) Joints(id int) []feature.JointData {
	return db.Schema.Joints(db.Row(id))
}

// Trajectory reads the trajectory of pose id.
func (db *Database) Trajectory(id int) []feature.TrajectoryPoint {
	return db.Schema.Trajectory(db.Row(id))
}

// Finalize builds the lookup tables. It must run after the last Append or
// pose edit and before the database is shared.
func (db *Database) Finalize() {
	db.partitions = make(map[uint64][]int)
	db.actions = make(map[int][]int)
	db.runs = make(map[runKey][]int)
	for i := range db.Poses {
		p := &db.Poses[i]
		k := runKey{anim: p.AnimID, mirrored: p.Mirrored, bp: p.BlendPosition}
		db.runs[k] = append(db.runs[k], p.ID)
		if p.ActionID != NoAction {
			db.actions[p.ActionID] = append(db.actions[p.ActionID], p.ID)
		}
		if p.DoNotUse {
			continue
		}
		db.partitions[p.Traits] = append(db.partitions[p.Traits], p.ID)
	}
	for _, ids := range db.runs {
		sort.SliceStable(ids, func(a, b int) bool { return db.Poses[ids[a]].Time < db.Poses[ids[b]].Time })
	}
}

// TraitGroups returns the distinct trait values of usable poses, ascending.
func (db *Database) TraitGroups() []uint64 {
	out := make([]uint64, 0, len(db.partitions))
	for t := range db.partitions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Partition returns the usable pose ids whose traits equal traits exactly,
// in ascending id order.
func (db *Database) Partition(traits uint64) []int {
	return db.partitions[traits]
}

// PartitionRows returns the rows of Partition(traits).
func (db *Database) PartitionRows(traits uint64) [][]float64 {
	ids := db.partitions[traits]
	rows := make([][]float64, len(ids))
	for i, id := range ids {
		rows[i] = db.Row(id)
	}
	return rows
}

// AllPartitionRows returns rows for every trait partition.
func (db *Database) AllPartitionRows() map[uint64][][]float64 {
	out := make(map[uint64][][]float64, len(db.partitions))
	for t := range db.partitions {
		out[t] = db.PartitionRows(t)
	}
	return out
}

// PosesWithAction returns pose ids tagged with action id, ascending.
func (db *Database) PosesWithAction(id int) []int {
	return db.actions[id]
}

// Run returns the pose ids of one clip pass ordered by time.
func (db *Database) Run(anim int, mirrored bool, bp mgl64.Vec2) []int {
	return db.runs[runKey{anim: anim, mirrored: mirrored, bp: bp}]
}

// FindPose returns the pose of the given clip pass nearest to time t, or
// -1 when the pass does not exist.
func (db *Database) FindPose(anim int, mirrored bool, bp mgl64.Vec2, t float64) int {
	run := db.Run(anim, mirrored, bp)
	if len(run) == 0 {
		return -1
	}
	i := sort.Search(len(run), func(i int) bool { return db.Poses[run[i]].Time >= t })
	switch {
	case i == 0:
		return run[0]
	case i == len(run):
		return run[len(run)-1]
	}
	before, after := run[i-1], run[i]
	if t-db.Poses[before].Time <= db.Poses[after].Time-t {
		return before
	}
	return after
}

// InterpolateRow writes into out the feature row of the clip pass at time
// t, interpolating between the two surrounding poses. It returns the id of
// the nearest pose, or -1 when the pass does not exist.
func (db *Database) InterpolateRow(anim int, mirrored bool, bp mgl64.Vec2, t float64, out []float64) int {
	run := db.Run(anim, mirrored, bp)
	if len(run) == 0 {
		return -1
	}
	i := sort.Search(len(run), func(i int) bool { return db.Poses[run[i]].Time >= t })
	if i == 0 || i == len(run) {
		id := run[0]
		if i == len(run) {
			id = run[len(run)-1]
		}
		copy(out, db.Row(id))
		return id
	}
	a, b := &db.Poses[run[i-1]], &db.Poses[run[i]]
	span := b.Time - a.Time
	alpha := 0.0
	if span > 0 {
		alpha = (t - a.Time) / span
	}
	ra, rb := db.Row(a.ID), db.Row(b.ID)
	for _, g := range db.Schema.Groups() {
		for k := g.Offset; k < g.Offset+g.Size; k++ {
			if g.Metric == feature.MetricAngle {
				out[k] = skeleton.WrapAngle(ra[k] + alpha*skeleton.AngleDelta(rb[k], ra[k]))
				continue
			}
			out[k] = ra[k] + alpha*(rb[k]-ra[k])
		}
	}
	if alpha <= 0.5 {
		return a.ID
	}
	return b.ID
}

// Validate checks the stride invariant, link ranges and calibration.
func (db *Database) Validate() error {
	if len(db.Poses) == 0 {
		return ErrEmpty
	}
	stride := db.Schema.AtomCount()
	if db.Matrix.Stride != stride {
		return fmt.Errorf("%w: matrix stride %d, schema %d", ErrStride, db.Matrix.Stride, stride)
	}
	if db.Matrix.Len() != len(db.Poses) || len(db.Matrix.Data) != stride*len(db.Poses) {
		return fmt.Errorf("%w: %d atoms for %d poses", ErrStride, len(db.Matrix.Data), len(db.Poses))
	}
	for i := range db.Poses {
		p := &db.Poses[i]
		if p.ID != i {
			return fmt.Errorf("pose %d has id %d", i, p.ID)
		}
		if p.AnimID < 0 || p.AnimID >= len(db.Anims) {
			return fmt.Errorf("pose %d references unknown animation %d", i, p.AnimID)
		}
		if p.LastPoseID < 0 || p.LastPoseID >= len(db.Poses) || p.NextPoseID < 0 || p.NextPoseID >= len(db.Poses) {
			return fmt.Errorf("pose %d has out of range links %d/%d", i, p.LastPoseID, p.NextPoseID)
		}
	}
	if db.Calibration != nil {
		if err := db.Calibration.IsValidWithConfig(db.Schema); err != nil {
			return err
		}
	}
	return nil
}
