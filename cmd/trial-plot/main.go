// Command trial-plot renders the persisted trial records as bar charts
// in a standalone HTML page, for eyeballing a batch of trials.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/formation.report/internal/triallog"
)

func main() {
	dbPath := flag.String("db", "trials.db", "path to the trial store")
	output := flag.String("o", "trials.html", "output HTML path")
	flag.Parse()

	store, err := triallog.NewStore(*dbPath)
	if err != nil {
		log.Fatalf("failed to open trial store: %v", err)
	}
	defer store.Close()

	records, err := store.ListRecords()
	if err != nil {
		log.Fatalf("failed to list trial records: %v", err)
	}
	if len(records) == 0 {
		log.Fatal("no trial records to plot")
	}

	labels := make([]string, len(records))
	convergence := make([]opts.BarData, len(records))
	avoidance := make([]opts.BarData, len(records))
	distance := make([]opts.BarData, len(records))
	for i, rec := range records {
		labels[i] = fmt.Sprintf("trial %d", rec.Trial)
		convergence[i] = opts.BarData{Value: sum(rec.ConvergenceSecs)}
		avoidance[i] = opts.BarData{Value: sum(rec.AvoidanceSecs)}
		distance[i] = opts.BarData{Value: sum(rec.Distances)}
	}

	page := components.NewPage()
	page.AddCharts(
		barChart("Convergence time (s)", labels, convergence),
		barChart("Time in avoidance (s)", labels, avoidance),
		barChart("Total distance traveled (m)", labels, distance),
	)

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("failed to create output file: %v", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		log.Fatalf("failed to render charts: %v", err)
	}
	log.Printf("✓ Created: %s (%d trials)", *output, len(records))
}

func barChart(title string, labels []string, data []opts.BarData) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).
		AddSeries(title, data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func sum(vals []float64) float64 {
	var total float64
	for _, v := range vals {
		total += v
	}
	return total
}
