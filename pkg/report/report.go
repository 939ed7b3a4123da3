// Package report renders experiment runs as terminal tables, ascii
// learning curves and JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"

	"github.com/mimir-aip/activelearn/pkg/models"
)

func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// LearningCurve writes one row per training size comparing the active
// model with the baseline mean and the full-data model on metric
func LearningCurve(w io.Writer, run *models.ExperimentRun, metric string) {
	table := tablewriter.NewWriter(w)
	header := []string{"Training size", "Active"}
	if run.Baseline != nil {
		header = append(header, "Random mean", "Random sd")
	}
	if run.FullModel != nil {
		header = append(header, "Full data")
	}
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for i, record := range run.PerformanceTable {
		row := []string{strconv.Itoa(record.TrainingSize), formatMetric(record.Metrics[metric])}
		if run.Baseline != nil {
			if i < len(run.Baseline.Summary) {
				summary := run.Baseline.Summary[i]
				row = append(row, formatMetric(summary.Mean[metric]), formatMetric(summary.StdDev[metric]))
			} else {
				row = append(row, "", "")
			}
		}
		if run.FullModel != nil {
			cell := ""
			if i == len(run.PerformanceTable)-1 {
				cell = formatMetric(run.FullModel.Metrics[metric])
			}
			row = append(row, cell)
		}
		table.Append(row)
	}
	table.Render()
}

// PerformanceTable writes every configured metric of the active run
func PerformanceTable(w io.Writer, run *models.ExperimentRun) {
	metrics := run.Config.Metrics
	table := tablewriter.NewWriter(w)
	table.SetHeader(append([]string{"Training size"}, metrics...))
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, record := range run.PerformanceTable {
		row := []string{strconv.Itoa(record.TrainingSize)}
		for _, name := range metrics {
			row = append(row, formatMetric(record.Metrics[name]))
		}
		table.Append(row)
	}
	table.Render()
}

// Significance writes the Monte Carlo p-values, if the run has them
func Significance(w io.Writer, run *models.ExperimentRun) {
	if run.Significance == nil {
		return
	}
	sig := run.Significance

	names := make([]string, 0, len(sig.PValues))
	for name := range sig.PValues {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Active", "p-value"})
	table.SetCaption(true, fmt.Sprintf("%d trials of %d random cases", sig.Trials, sig.SampleSize))
	for _, name := range names {
		table.Append([]string{name, formatMetric(sig.Target[name]), formatMetric(sig.PValues[name])})
	}
	table.Render()
}

// Runs writes a one-line summary per run
func Runs(w io.Writer, runs []*models.ExperimentRun) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name", "Status", "Model", "Started", "Final size"})
	for _, run := range runs {
		table.Append([]string{
			run.ID,
			run.Name,
			string(run.Status),
			string(run.Config.Model),
			run.StartedAt.Format("2006-01-02 15:04:05"),
			strconv.Itoa(len(run.FinalTrainingIDs)),
		})
	}
	table.Render()
}

// Plot draws metric against training size for the active run
func Plot(run *models.ExperimentRun, metric string, height int) string {
	if len(run.PerformanceTable) == 0 {
		return ""
	}
	series := make([]float64, len(run.PerformanceTable))
	for i, record := range run.PerformanceTable {
		series[i] = record.Metrics[metric]
	}
	first := run.PerformanceTable[0].TrainingSize
	last := run.PerformanceTable[len(run.PerformanceTable)-1].TrainingSize
	return asciigraph.Plot(series,
		asciigraph.Height(height),
		asciigraph.Caption(fmt.Sprintf("%s, training size %d to %d", metric, first, last)))
}

// WriteJSON writes run as indented JSON
func WriteJSON(w io.Writer, run *models.ExperimentRun) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}
