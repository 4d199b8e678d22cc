package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/banshee-data/motion.match/internal/motion/posedb"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// AnimSummary counts the poses of one source animation.
type AnimSummary struct {
	Name     string
	Kind     string
	Length   float64
	Loop     bool
	Poses    int
	DoNotUse int
	Mirrored int
	Actions  int
}

// Summary describes a pose database.
type Summary struct {
	Name        string
	Poses       int
	Usable      int
	AtomCount   int
	TraitGroups []uint64
	Anims       []AnimSummary

	// Speed statistics over usable poses, metres per second.
	SpeedMean, SpeedStdDev     float64
	SpeedMin, SpeedMax         float64
	SpeedMedian                float64
	YawRateMean, YawRateStdDev float64
}

// Summarize computes a Summary of db.
func Summarize(db *posedb.Database) Summary {
	s := Summary{
		Name:        db.Name,
		Poses:       db.Len(),
		AtomCount:   db.AtomCount(),
		TraitGroups: db.TraitGroups(),
		Anims:       make([]AnimSummary, len(db.Anims)),
	}
	for i, a := range db.Anims {
		s.Anims[i] = AnimSummary{Name: a.Name, Kind: a.Kind.String(), Length: a.Length, Loop: a.Loop}
	}

	var speeds, yawRates []float64
	for i := range db.Poses {
		p := &db.Poses[i]
		as := &s.Anims[p.AnimID]
		as.Poses++
		if p.Mirrored {
			as.Mirrored++
		}
		if p.ActionID != posedb.NoAction {
			as.Actions++
		}
		if p.DoNotUse {
			as.DoNotUse++
			continue
		}
		s.Usable++
		row := db.Row(p.ID)
		speeds = append(speeds, db.Schema.LocalVelocity(row).Len())
		yawRates = append(yawRates, db.Schema.RotationalVelocity(row))
	}
	if len(speeds) == 0 {
		return s
	}
	s.SpeedMean, s.SpeedStdDev = stat.MeanStdDev(speeds, nil)
	s.SpeedMin, s.SpeedMax = floats.Min(speeds), floats.Max(speeds)
	sort.Float64s(speeds)
	s.SpeedMedian = stat.Quantile(0.5, stat.Empirical, speeds, nil)
	s.YawRateMean, s.YawRateStdDev = stat.MeanStdDev(yawRates, nil)
	return s
}

// WriteText writes s as an aligned table.
func (s Summary) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "database %s: %d poses (%d usable), %d atoms per row, trait groups %v\n",
		s.Name, s.Poses, s.Usable, s.AtomCount, s.TraitGroups)
	fmt.Fprintf(w, "speed m/s: mean %.3f sd %.3f min %.3f median %.3f max %.3f\n",
		s.SpeedMean, s.SpeedStdDev, s.SpeedMin, s.SpeedMedian, s.SpeedMax)
	fmt.Fprintf(w, "yaw rate rad/s: mean %.3f sd %.3f\n\n", s.YawRateMean, s.YawRateStdDev)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ANIM\tKIND\tLENGTH\tLOOP\tPOSES\tMIRRORED\tDO_NOT_USE\tACTION")
	for _, a := range s.Anims {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%v\t%d\t%d\t%d\t%d\n", a.Name, a.Kind, a.Length, a.Loop, a.Poses, a.Mirrored, a.DoNotUse, a.Actions)
	}
	return tw.Flush()
}
