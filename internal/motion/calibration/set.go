package calibration

import (
	"fmt"
	"sort"

	"github.com/banshee-data/motion.match/internal/motion/feature"
)

// Entry is the calibration for one trait partition.
type Entry struct {
	StdDev *Data `json:"std_dev"`
	Final  *Data `json:"final"`
	// Weights is Final flattened to schema group order for the cost loop.
	Weights []float64 `json:"weights"`
}

// Set maps trait bitfields to calibration entries. A Set is never mutated
// after Build or Rebuild returns, so concurrent readers are safe.
type Set struct {
	Authored       *Data             `json:"authored"`
	Responsiveness float64           `json:"responsiveness"`
	ByTraits       map[uint64]*Entry `json:"by_traits"`
}

// Snapshot is a value copy of the authored inputs of a Set.
type Snapshot struct {
	Authored       *Data
	Responsiveness float64
}

// Build computes std-dev normalisers and final weights for every
// partition. A nil authored calibration means uniform weights.
func Build(schema *feature.Schema, partitions map[uint64][][]float64, authored *Data, responsiveness float64) (*Set, error) {
	if authored == nil {
		authored = NewUniform(schema)
	}
	if err := authored.IsValidWithConfig(schema); err != nil {
		return nil, err
	}
	s := &Set{Authored: authored.Clone(), Responsiveness: responsiveness, ByTraits: make(map[uint64]*Entry, len(partitions))}
	for traits, rows := range partitions {
		entry, err := newEntry(schema, StandardDeviation(schema, rows), s.Authored, responsiveness)
		if err != nil {
			return nil, fmt.Errorf("traits 0x%x: %w", traits, err)
		}
		s.ByTraits[traits] = entry
	}
	return s, nil
}

func newEntry(schema *feature.Schema, stdDev, authored *Data, responsiveness float64) (*Entry, error) {
	final, err := Compose(schema, authored, stdDev, responsiveness)
	if err != nil {
		return nil, err
	}
	weights, err := final.Flatten(schema)
	if err != nil {
		return nil, err
	}
	return &Entry{StdDev: stdDev, Final: final, Weights: weights}, nil
}

// Entry returns the calibration for traits, or nil.
func (s *Set) Entry(traits uint64) *Entry {
	if s == nil {
		return nil
	}
	return s.ByTraits[traits]
}

// Weights returns flattened final weights for traits, or nil.
func (s *Set) Weights(traits uint64) []float64 {
	if e := s.Entry(traits); e != nil {
		return e.Weights
	}
	return nil
}

// Traits returns the calibrated trait values in ascending order.
func (s *Set) Traits() []uint64 {
	out := make([]uint64, 0, len(s.ByTraits))
	for t := range s.ByTraits {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsValidWithConfig checks every entry against the live schema.
func (s *Set) IsValidWithConfig(schema *feature.Schema) error {
	if s == nil {
		return fmt.Errorf("%w: no calibration set", ErrCalibrationMismatch)
	}
	if err := s.Authored.IsValidWithConfig(schema); err != nil {
		return err
	}
	groups := len(schema.Groups())
	for _, traits := range s.Traits() {
		e := s.ByTraits[traits]
		if err := e.StdDev.IsValidWithConfig(schema); err != nil {
			return fmt.Errorf("traits 0x%x: %w", traits, err)
		}
		if err := e.Final.IsValidWithConfig(schema); err != nil {
			return fmt.Errorf("traits 0x%x: %w", traits, err)
		}
		if len(e.Weights) != groups {
			return fmt.Errorf("%w: traits 0x%x has %d weights for %d groups", ErrCalibrationMismatch, traits, len(e.Weights), groups)
		}
	}
	return nil
}

// Snapshot copies the authored inputs.
func (s *Set) Snapshot() Snapshot {
	return Snapshot{Authored: s.Authored.Clone(), Responsiveness: s.Responsiveness}
}

// Rebuild returns a new Set with final weights recomputed from snap. The
// normalisers are reused and the receiver is left untouched.
func (s *Set) Rebuild(schema *feature.Schema, snap Snapshot) (*Set, error) {
	authored := snap.Authored
	if authored == nil {
		authored = NewUniform(schema)
	}
	if err := authored.IsValidWithConfig(schema); err != nil {
		return nil, err
	}
	out := &Set{Authored: authored.Clone(), Responsiveness: snap.Responsiveness, ByTraits: make(map[uint64]*Entry, len(s.ByTraits))}
	for traits, e := range s.ByTraits {
		entry, err := newEntry(schema, e.StdDev.Clone(), out.Authored, snap.Responsiveness)
		if err != nil {
			return nil, fmt.Errorf("traits 0x%x: %w", traits, err)
		}
		out.ByTraits[traits] = entry
	}
	return out, nil
}
