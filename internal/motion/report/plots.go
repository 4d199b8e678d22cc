package report

import (
	"fmt"
	"math"

	"github.com/banshee-data/motion.match/internal/motion/cost"
	"github.com/banshee-data/motion.match/internal/motion/posedb"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotTrajectories draws the trajectory of every usable, unmirrored pose
// in character space, one colour per animation, and saves it as a PNG.
func PlotTrajectories(db *posedb.Database, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - pose trajectories", db.Name)
	p.X.Label.Text = "Forward (m)"
	p.Y.Label.Text = "Lateral (m)"
	p.Add(plotter.NewGrid())

	labelled := make([]bool, len(db.Anims))
	for i := range db.Poses {
		pose := &db.Poses[i]
		if pose.DoNotUse || pose.Mirrored {
			continue
		}
		traj := db.Trajectory(pose.ID)
		pts := make(plotter.XYs, len(traj))
		for j, tp := range traj {
			pts[j] = plotter.XY{X: tp.Position.X(), Y: tp.Position.Y()}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(pose.AnimID)
		line.Width = vg.Points(1)
		p.Add(line)
		if !labelled[pose.AnimID] {
			p.Legend.Add(db.Anims[pose.AnimID].Name, line)
			labelled[pose.AnimID] = true
		}
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save trajectory plot: %w", err)
	}
	return nil
}

// CostDistribution returns the cost of every usable pose of the traits
// partition against query.
func CostDistribution(db *posedb.Database, eval *cost.Evaluator, query []float64, traits uint64) []float64 {
	weights := db.Calibration.Weights(traits)
	ids := db.Partition(traits)
	out := make([]float64, 0, len(ids))
	for _, id := range ids {
		out = append(out, eval.Cost(query, db, id, weights, -1))
	}
	return out
}

// CostHistogram saves a histogram of costs with the given number of bins
// as a PNG.
func CostHistogram(costs []float64, bins int, title, path string) error {
	finite := make(plotter.Values, 0, len(costs))
	for _, c := range costs {
		if !math.IsInf(c, 0) && !math.IsNaN(c) {
			finite = append(finite, c)
		}
	}
	if len(finite) == 0 {
		return fmt.Errorf("no finite costs to plot")
	}
	if bins < 1 {
		bins = 20
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Cost"
	p.Y.Label.Text = "Poses"
	h, err := plotter.NewHist(finite, bins)
	if err != nil {
		return err
	}
	h.FillColor = plotutil.Color(0)
	p.Add(h)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save cost histogram: %w", err)
	}
	return nil
}
