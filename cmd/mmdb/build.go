package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/motion.match/internal/config"
	"github.com/banshee-data/motion.match/internal/monitoring"
	"github.com/banshee-data/motion.match/internal/motion/animsrc"
	"github.com/banshee-data/motion.match/internal/motion/cost"
	"github.com/banshee-data/motion.match/internal/motion/feature"
	"github.com/banshee-data/motion.match/internal/motion/index"
	"github.com/banshee-data/motion.match/internal/motion/posedb"
	"github.com/banshee-data/motion.match/internal/motion/preprocess"
	"github.com/banshee-data/motion.match/internal/motion/report"
	"github.com/banshee-data/motion.match/internal/motion/storage/sqlite"
)

type buildOptions struct {
	Name        string
	LibraryPath string
	// Library is used instead of LibraryPath when set.
	Library *animsrc.Library
	Config  *config.MatchConfig
	Store   *sqlite.Store
}

type buildResult struct {
	DB     *posedb.Database
	Eval   *cost.Evaluator
	Index  *index.Index
	Record *sqlite.Record
}

// build preprocesses the library, builds the search index when enabled and
// saves both to the store, replacing any database with the same name.
func build(ctx context.Context, opts buildOptions) (*buildResult, error) {
	lib := opts.Library
	if lib == nil {
		var err error
		lib, err = animsrc.LoadLibrary(opts.LibraryPath, opts.Config.GetTraitRegistry())
		if err != nil {
			return nil, fmt.Errorf("load library: %w", err)
		}
	}
	schema, err := feature.SchemaFromConfig(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	start := time.Now()
	db, err := preprocess.New(opts.Name, lib, schema, preprocess.ConfigFromTuning(opts.Config)).Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}

	res := &buildResult{DB: db, Eval: cost.New(db.Schema, cost.ConfigFromTuning(opts.Config))}
	if icfg := index.ConfigFromTuning(opts.Config); icfg.Enabled {
		res.Index, err = index.Build(db, icfg)
		if err != nil {
			return nil, fmt.Errorf("index: %w", err)
		}
	}

	res.Record, err = opts.Store.Save(ctx, db, res.Index)
	if err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	monitoring.Logf("[mmdb] built %s in %s", res.Record, time.Since(start).Round(time.Millisecond))
	return res, nil
}

type reportOptions struct {
	PlotDir  string
	HTMLPath string
	Text     io.Writer
}

// writeReports prints the database summary and writes whichever plots were
// requested.
func writeReports(res *buildResult, opts reportOptions) error {
	if opts.Text != nil {
		if err := report.Summarize(res.DB).WriteText(opts.Text); err != nil {
			return err
		}
	}

	if opts.PlotDir != "" {
		if err := os.MkdirAll(opts.PlotDir, 0o755); err != nil {
			return fmt.Errorf("create plot dir: %w", err)
		}
		if err := report.PlotTrajectories(res.DB, filepath.Join(opts.PlotDir, res.DB.Name+"-trajectories.png")); err != nil {
			return err
		}
		for _, traits := range res.DB.TraitGroups() {
			ids := res.DB.Partition(traits)
			if len(ids) == 0 {
				continue
			}
			// Costs are measured from the first pose of each partition.
			costs := report.CostDistribution(res.DB, res.Eval, res.DB.Row(ids[0]), traits)
			path := filepath.Join(opts.PlotDir, fmt.Sprintf("%s-costs-%x.png", res.DB.Name, traits))
			title := fmt.Sprintf("%s cost from pose %d (traits %x)", res.DB.Name, ids[0], traits)
			if err := report.CostHistogram(costs, 30, title, path); err != nil {
				return err
			}
		}
	}

	if opts.HTMLPath != "" {
		f, err := os.Create(opts.HTMLPath)
		if err != nil {
			return fmt.Errorf("create html report: %w", err)
		}
		defer f.Close()
		if err := report.RenderCoverage(res.DB, f); err != nil {
			return fmt.Errorf("render html report: %w", err)
		}
	}
	return nil
}

// listDatabases writes one line per stored database, newest first.
func listDatabases(ctx context.Context, store *sqlite.Store, w io.Writer) error {
	recs, err := store.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPOSES\tATOMS\tANIMS\tINDEX\tCREATED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%v\t%s\n", r.ID, r.Name, r.PoseCount, r.AtomCount, r.AnimCount, r.HasIndex,
			time.Unix(0, r.CreatedAt).UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
