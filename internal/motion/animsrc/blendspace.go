package animsrc

import (
	"github.com/banshee-data/motion.match/internal/motion/skeleton"
	"github.com/go-gl/mathgl/mgl64"
)

// BlendSample places one sequence at a 2D blend position.
type BlendSample struct {
	Position mgl64.Vec2
	Sequence *Sequence
}

// BlendSpace blends its samples by inverse-distance weights. All samples
// are played at the same normalised phase.
type BlendSpace struct {
	Name    string
	Samples []BlendSample
}

// Weights returns one normalised weight per sample for position pos. A
// sample exactly at pos takes the full weight.
func (b *BlendSpace) Weights(pos mgl64.Vec2) []float64 {
	w := make([]float64, len(b.Samples))
	if len(w) == 0 {
		return w
	}
	var total float64
	for i, s := range b.Samples {
		d := s.Position.Sub(pos)
		d2 := d.Dot(d)
		if d2 < 1e-12 {
			for j := range w {
				w[j] = 0
			}
			w[i] = 1
			return w
		}
		w[i] = 1 / d2
		total += w[i]
	}
	for i := range w {
		w[i] /= total
	}
	return w
}

// Length returns the weighted clip length at pos.
func (b *BlendSpace) Length(pos mgl64.Vec2) float64 {
	var length float64
	for i, w := range b.Weights(pos) {
		if seq := b.Samples[i].Sequence; seq != nil {
			length += w * seq.Length
		}
	}
	return length
}

func (b *BlendSpace) phase(t float64, pos mgl64.Vec2) float64 {
	length := b.Length(pos)
	if length <= 0 {
		return 0
	}
	return clamp(t/length, 0, 1)
}

// blend accumulates weighted transforms with a running normalised lerp.
func blend(acc []skeleton.Transform, accWeight float64, next []skeleton.Transform, w float64) ([]skeleton.Transform, float64) {
	if w <= 0 {
		return acc, accWeight
	}
	if acc == nil {
		return next, w
	}
	total := accWeight + w
	alpha := w / total
	for i := range acc {
		if i < len(next) {
			acc[i] = skeleton.Blend(acc[i], next[i], alpha)
		}
	}
	return acc, total
}

// SampleLocal returns blended local transforms at time t and position pos.
func (b *BlendSpace) SampleLocal(skel skeleton.Skeleton, t float64, pos mgl64.Vec2) []skeleton.Transform {
	phase := b.phase(t, pos)
	var acc []skeleton.Transform
	var accWeight float64
	for i, w := range b.Weights(pos) {
		seq := b.Samples[i].Sequence
		if seq == nil {
			continue
		}
		acc, accWeight = blend(acc, accWeight, seq.SampleLocal(skel, phase*seq.Length), w)
	}
	if acc == nil {
		return refLocals(skel)
	}
	return acc
}

// SampleRoot returns the blended root transform.
func (b *BlendSpace) SampleRoot(skel skeleton.Skeleton, t float64, pos mgl64.Vec2) skeleton.Transform {
	phase := b.phase(t, pos)
	var acc []skeleton.Transform
	var accWeight float64
	for i, w := range b.Weights(pos) {
		seq := b.Samples[i].Sequence
		if seq == nil {
			continue
		}
		acc, accWeight = blend(acc, accWeight, []skeleton.Transform{seq.SampleRoot(skel, phase*seq.Length)}, w)
	}
	if acc == nil {
		return skel.RefPose(0)
	}
	return acc[0]
}

// NotifiesIn returns the notifies of the heaviest sample in the phase range.
func (b *BlendSpace) NotifiesIn(from, to float64, pos mgl64.Vec2) []Notify {
	weights := b.Weights(pos)
	best := -1
	for i, w := range weights {
		if b.Samples[i].Sequence != nil && (best < 0 || w > weights[best]) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	seq := b.Samples[best].Sequence
	length := b.Length(pos)
	if length <= 0 {
		return nil
	}
	scale := seq.Length / length
	var out []Notify
	for _, n := range seq.NotifiesIn(from*scale, to*scale) {
		out = append(out, Notify{Name: n.Name, Time: n.Time / scale})
	}
	return out
}
