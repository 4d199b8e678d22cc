package posedb

import (
	"github.com/banshee-data/motion.match/internal/motion/animsrc"
	"github.com/go-gl/mathgl/mgl64"
)

// NoAction marks a pose outside any action tag.
const NoAction = 0

// Pose is the metadata of one database row. Feature values live in the
// matrix row with the same id.
type Pose struct {
	ID            int
	AnimID        int
	AnimKind      animsrc.Kind
	Time          float64
	Mirrored      bool
	Traits        uint64
	Favour        float64
	DoNotUse      bool
	BlendPosition mgl64.Vec2
	LastPoseID    int
	NextPoseID    int
	ActionID      int
}

// SameRun reports whether two poses were sampled from the same clip pass.
func (p *Pose) SameRun(o *Pose) bool {
	return p.AnimID == o.AnimID && p.AnimKind == o.AnimKind &&
		p.Mirrored == o.Mirrored && p.BlendPosition == o.BlendPosition
}

// AnimInfo is the database's record of one source animation.
type AnimInfo struct {
	Name           string
	Kind           animsrc.Kind
	Length         float64
	Loop           bool
	Favour         float64
	Traits         uint64
	BlendPositions []mgl64.Vec2
}

// Matrix is the contiguous pose feature buffer, Stride atoms per row.
type Matrix struct {
	Stride int
	Data   []float64
}

// Len returns the number of rows.
func (m *Matrix) Len() int {
	if m.Stride == 0 {
		return 0
	}
	return len(m.Data) / m.Stride
}

// Row returns row i without copying.
func (m *Matrix) Row(i int) []float64 {
	return m.Data[i*m.Stride : (i+1)*m.Stride : (i+1)*m.Stride]
}

// Append copies row onto the end of the buffer and returns its index.
func (m *Matrix) Append(row []float64) int {
	id := m.Len()
	m.Data = append(m.Data, row[:m.Stride]...)
	return id
}
