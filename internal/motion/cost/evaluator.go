package cost

import (
	"github.com/banshee-data/motion.match/internal/config"
	"github.com/banshee-data/motion.match/internal/motion/feature"
	"github.com/banshee-data/motion.match/internal/motion/posedb"
)

// Config holds the cost biasing parameters.
type Config struct {
	FavourCurrentPose bool    // scale the natural next pose by CurrentPoseFavour
	CurrentPoseFavour float64 // (0,1], smaller sticks harder to current playback
}

// ConfigFromTuning builds a Config from a loaded MatchConfig.
func ConfigFromTuning(cfg *config.MatchConfig) Config {
	return Config{
		FavourCurrentPose: cfg.GetFavourCurrentPose(),
		CurrentPoseFavour: cfg.GetCurrentPoseFavour(),
	}
}

const numChannels = int(feature.ChannelExtra) + 1

// Breakdown is the unscaled cost contributed by each channel.
type Breakdown [numChannels]float64

// Total returns the sum over channels.
func (b Breakdown) Total() float64 {
	var sum float64
	for _, v := range b {
		sum += v
	}
	return sum
}

// Channel returns the contribution of ch.
func (b Breakdown) Channel(ch feature.Channel) float64 {
	return b[ch]
}

// Evaluator computes costs for one schema. It holds no per-query state and
// may be shared between goroutines.
type Evaluator struct {
	cfg    Config
	groups []feature.Group
	// checkpoints[i] is true when group i is the last of its channel.
	checkpoints []bool
}

// New returns an evaluator for schema.
func New(schema *feature.Schema, cfg Config) *Evaluator {
	groups := schema.Groups()
	e := &Evaluator{cfg: cfg, groups: groups, checkpoints: make([]bool, len(groups))}
	for i := range groups {
		e.checkpoints[i] = i == len(groups)-1 || groups[i+1].Channel != groups[i].Channel
	}
	return e
}

// Config returns the evaluator configuration.
func (e *Evaluator) Config() Config { return e.cfg }

func weightAt(weights []float64, i int) float64 {
	if weights == nil {
		return 1
	}
	return weights[i]
}

func (e *Evaluator) group(i int, query, row []float64) float64 {
	g := e.groups[i]
	return feature.GroupDistance(g, row[g.Offset:g.Offset+g.Size], query[g.Offset:g.Offset+g.Size], false)
}

// WithoutChannel copies weights into dst with every group of ch zeroed and
// returns dst. nil weights count as uniform.
func (e *Evaluator) WithoutChannel(dst, weights []float64, ch feature.Channel) []float64 {
	dst = dst[:0]
	for i, g := range e.groups {
		w := 0.0
		if g.Channel != ch {
			w = weightAt(weights, i)
		}
		dst = append(dst, w)
	}
	return dst
}

// Raw returns the unscaled weighted cost of row against query. weights
// holds one entry per schema group; nil means uniform weights.
func (e *Evaluator) Raw(query, row, weights []float64) float64 {
	var sum float64
	for i := range e.groups {
		sum += weightAt(weights, i) * e.group(i, query, row)
	}
	return sum
}

// Breakdown returns the unscaled cost split by channel.
func (e *Evaluator) Breakdown(query, row, weights []float64) Breakdown {
	var b Breakdown
	for i, g := range e.groups {
		b[g.Channel] += weightAt(weights, i) * e.group(i, query, row)
	}
	return b
}

// Scale returns the multiplier applied to the raw cost of p: its Favour,
// times CurrentPoseFavour when p is the pose playback would reach anyway.
func (e *Evaluator) Scale(p *posedb.Pose, naturalNext int) float64 {
	scale := p.Favour
	if scale <= 0 {
		scale = 1
	}
	if e.cfg.FavourCurrentPose && naturalNext >= 0 && p.ID == naturalNext && e.cfg.CurrentPoseFavour > 0 {
		scale *= e.cfg.CurrentPoseFavour
	}
	return scale
}

// MinScale returns the smallest Scale any pose with the given favour can
// receive.
func (e *Evaluator) MinScale(favour float64) float64 {
	if favour <= 0 {
		favour = 1
	}
	if e.cfg.FavourCurrentPose && e.cfg.CurrentPoseFavour > 0 && e.cfg.CurrentPoseFavour < 1 {
		return favour * e.cfg.CurrentPoseFavour
	}
	return favour
}

// Cost returns the scaled cost of pose id. naturalNext is the pose that
// continuing playback would reach, or -1.
func (e *Evaluator) Cost(query []float64, db *posedb.Database, id int, weights []float64, naturalNext int) float64 {
	return e.Raw(query, db.Row(id), weights) * e.Scale(db.Pose(id), naturalNext)
}

// CostBelow evaluates pose id channel by channel and gives up as soon as
// the scaled partial sum exceeds limit. The second result is false when
// the evaluation was abandoned; the returned cost is then only a lower
// bound. A pose whose full cost equals limit is never abandoned.
func (e *Evaluator) CostBelow(query []float64, db *posedb.Database, id int, weights []float64, naturalNext int, limit float64) (float64, bool) {
	row := db.Row(id)
	scale := e.Scale(db.Pose(id), naturalNext)
	var sum float64
	for i := range e.groups {
		sum += weightAt(weights, i) * e.group(i, query, row)
		if e.checkpoints[i] && sum*scale > limit {
			return sum * scale, false
		}
	}
	return sum * scale, true
}
