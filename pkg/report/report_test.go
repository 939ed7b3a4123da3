package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimir-aip/activelearn/pkg/models"
)

func sampleRun() *models.ExperimentRun {
	cfg := models.DefaultExperimentConfig()
	cfg.Metrics = []string{models.MetricAccuracy, models.MetricAUC}
	return &models.ExperimentRun{
		ID:     "run-1",
		Name:   "demo",
		Status: models.RunStatusCompleted,
		Config: cfg,
		PerformanceTable: []models.PerformanceRecord{
			{TrainingSize: 40, Metrics: map[string]float64{"accuracy": 0.70, "auc": 0.75}},
			{TrainingSize: 50, Metrics: map[string]float64{"accuracy": 0.74, "auc": 0.80}},
			{TrainingSize: 60, Metrics: map[string]float64{"accuracy": 0.79, "auc": 0.86}},
		},
		Baseline: &models.BaselineResult{
			TargetSizes: []int{40, 50, 60},
			Summary: []models.BaselineSummaryRow{
				{TrainingSize: 40, Mean: map[string]float64{"accuracy": 0.70}, StdDev: map[string]float64{"accuracy": 0.01}},
				{TrainingSize: 50, Mean: map[string]float64{"accuracy": 0.71}, StdDev: map[string]float64{"accuracy": 0.02}},
				{TrainingSize: 60, Mean: map[string]float64{"accuracy": 0.72}, StdDev: map[string]float64{"accuracy": 0.02}},
			},
		},
		FullModel: &models.PerformanceRecord{TrainingSize: 800, Metrics: map[string]float64{"accuracy": 0.88}},
		Significance: &models.SignificanceResult{
			Trials:     100,
			SampleSize: 20,
			Target:     map[string]float64{"accuracy": 0.79},
			PValues:    map[string]float64{"accuracy": 0.03},
		},
		FinalTrainingIDs: make([]string, 70),
		StartedAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLearningCurve(t *testing.T) {
	var buf bytes.Buffer
	LearningCurve(&buf, sampleRun(), models.MetricAccuracy)
	out := buf.String()

	assert.Contains(t, out, "RANDOM MEAN")
	assert.Contains(t, out, "FULL DATA")
	assert.Contains(t, out, "0.7900")
	assert.Contains(t, out, "0.7200")
	assert.Contains(t, out, "0.8800")
}

func TestLearningCurveWithoutBaselines(t *testing.T) {
	run := sampleRun()
	run.Baseline = nil
	run.FullModel = nil

	var buf bytes.Buffer
	LearningCurve(&buf, run, models.MetricAUC)
	out := buf.String()
	assert.NotContains(t, out, "RANDOM")
	assert.Contains(t, out, "0.8600")
}

func TestPerformanceAndSignificanceTables(t *testing.T) {
	var buf bytes.Buffer
	PerformanceTable(&buf, sampleRun())
	assert.Contains(t, buf.String(), "AUC")
	assert.Contains(t, buf.String(), "0.8600")
	assert.Equal(t, 4, strings.Count(buf.String(), "0.7"))

	buf.Reset()
	Significance(&buf, sampleRun())
	assert.Contains(t, buf.String(), "0.0300")
	assert.Contains(t, buf.String(), "100 trials")

	buf.Reset()
	run := sampleRun()
	run.Significance = nil
	Significance(&buf, run)
	assert.Empty(t, buf.String())
}

func TestRuns(t *testing.T) {
	var buf bytes.Buffer
	Runs(&buf, []*models.ExperimentRun{sampleRun()})
	assert.Contains(t, buf.String(), "run-1")
	assert.Contains(t, buf.String(), "logistic_regression")
	assert.Contains(t, buf.String(), "2026-03-01 12:00:00")
}

func TestPlot(t *testing.T) {
	out := Plot(sampleRun(), models.MetricAccuracy, 5)
	assert.Contains(t, out, "accuracy, training size 40 to 60")
	assert.GreaterOrEqual(t, strings.Count(out, "\n"), 5)

	assert.Empty(t, Plot(&models.ExperimentRun{}, models.MetricAccuracy, 5))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleRun()))

	var decoded models.ExperimentRun
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.ID)
	assert.Len(t, decoded.PerformanceTable, 3)
}
