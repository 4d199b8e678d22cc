package report

import (
	"fmt"
	"io"

	"github.com/banshee-data/motion.match/internal/motion/posedb"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderCoverage writes an HTML page with two charts: a scatter of local
// speed against yaw rate for every usable unmirrored pose, one series per
// animation, and a bar chart of pose counts per animation.
func RenderCoverage(db *posedb.Database, w io.Writer) error {
	series := make([][]opts.ScatterData, len(db.Anims))
	for i := range db.Poses {
		p := &db.Poses[i]
		if p.DoNotUse || p.Mirrored {
			continue
		}
		row := db.Row(p.ID)
		v := db.Schema.LocalVelocity(row)
		series[p.AnimID] = append(series[p.AnimID], opts.ScatterData{
			Value: []interface{}{v.X(), db.Schema.RotationalVelocity(row), p.Time},
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: db.Name, Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Motion coverage", Subtitle: fmt.Sprintf("database=%s poses=%d", db.Name, db.Len())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Forward speed (m/s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Yaw rate (rad/s)", NameLocation: "middle", NameGap: 30}),
	)
	for anim, data := range series {
		if len(data) == 0 {
			continue
		}
		scatter.AddSeries(db.Anims[anim].Name, data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	}

	summary := Summarize(db)
	names := make([]string, len(summary.Anims))
	usable := make([]opts.BarData, len(summary.Anims))
	excluded := make([]opts.BarData, len(summary.Anims))
	for i, a := range summary.Anims {
		names[i] = a.Name
		usable[i] = opts.BarData{Value: a.Poses - a.DoNotUse}
		excluded[i] = opts.BarData{Value: a.DoNotUse}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Poses per animation", Subtitle: fmt.Sprintf("usable=%d", summary.Usable)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)
	bar.SetXAxis(names).
		AddSeries("usable", usable, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("do not use", excluded)

	page := components.NewPage()
	page.AddCharts(scatter, bar)
	return page.Render(w)
}
