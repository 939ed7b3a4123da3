package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimir-aip/activelearn/pkg/models"
)

// TestLoadConfig tests configuration loading
func TestLoadConfig(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PORT", "9090")
	t.Setenv("AL_WORKERS", "8")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "test-data", cfg.StorageDir)
	assert.Equal(t, 8, cfg.Workers)
}

// TestLoadConfigDefaults tests default values
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development-data", cfg.StorageDir)
	assert.Equal(t, 0, cfg.Workers)
}

func TestLoadExperimentConfigDefaults(t *testing.T) {
	cfg, err := LoadExperimentConfig("")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultExperimentConfig(), cfg)
}

func TestLoadExperimentConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	content := `
seed: 11
initial_examples_per_class: 5
examples_to_label_per_iteration: 4
num_iterations: 2
presample_size: 30
sigma: 0.2
model: decision_tree
metrics: [accuracy, auc]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadExperimentConfig(path)
	require.NoError(t, err)

	assert.Equal(t, int64(11), cfg.Seed)
	assert.Equal(t, 5, cfg.InitialExamplesPerClass)
	assert.Equal(t, 4, cfg.ExamplesToLabelPerIteration)
	assert.Equal(t, 2, cfg.NumIterations)
	assert.Equal(t, 30, cfg.PresampleSize)
	assert.Equal(t, 0.2, cfg.Sigma)
	assert.Equal(t, models.ModelTypeDecisionTree, cfg.Model)
	assert.Equal(t, []string{"accuracy", "auc"}, cfg.Metrics)
	// untouched keys keep their defaults
	assert.Equal(t, 0.5, cfg.Mu)
	assert.Equal(t, 200, cfg.TestSetSize)
}

func TestLoadExperimentConfigEnvOverrides(t *testing.T) {
	t.Setenv("AL_SEED", "99")
	t.Setenv("AL_NUM_ITERATIONS", "7")
	t.Setenv("AL_SIGMA", "0.05")
	t.Setenv("AL_METRICS", "accuracy, mcc")

	cfg, err := LoadExperimentConfig("")
	require.NoError(t, err)

	assert.Equal(t, int64(99), cfg.Seed)
	assert.Equal(t, 7, cfg.NumIterations)
	assert.Equal(t, 0.05, cfg.Sigma)
	assert.Equal(t, []string{"accuracy", "mcc"}, cfg.Metrics)
}

func TestValidateExperimentConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.ExperimentConfig)
		wantErr error
	}{
		{"defaults are valid", func(c *models.ExperimentConfig) {}, nil},
		{"zero sigma", func(c *models.ExperimentConfig) { c.Sigma = 0 }, models.ErrConfiguration},
		{"negative sigma", func(c *models.ExperimentConfig) { c.Sigma = -1 }, models.ErrConfiguration},
		{"mu above one", func(c *models.ExperimentConfig) { c.Mu = 1.5 }, models.ErrConfiguration},
		{"zero batch", func(c *models.ExperimentConfig) { c.ExamplesToLabelPerIteration = 0 }, models.ErrConfiguration},
		{"negative iterations", func(c *models.ExperimentConfig) { c.NumIterations = -1 }, models.ErrConfiguration},
		{"zero iterations allowed", func(c *models.ExperimentConfig) { c.NumIterations = 0 }, nil},
		{"zero trials", func(c *models.ExperimentConfig) { c.MonteCarloSamples = 0 }, models.ErrConfiguration},
		{"zero groups", func(c *models.ExperimentConfig) { c.GroupCount = 0 }, models.ErrConfiguration},
		{"unknown model", func(c *models.ExperimentConfig) { c.Model = "svm" }, models.ErrConfiguration},
		{"unknown metric", func(c *models.ExperimentConfig) { c.Metrics = []string{"accuracy", "logloss"} }, models.ErrConfiguration},
		{"no metrics", func(c *models.ExperimentConfig) { c.Metrics = nil }, models.ErrConfiguration},
		{"threshold at one", func(c *models.ExperimentConfig) { c.DecisionThreshold = 1 }, models.ErrConfiguration},
		{
			"presample smaller than batch",
			func(c *models.ExperimentConfig) {
				c.ExamplesToLabelPerIteration = 50
				c.PresampleSize = 20
			},
			models.ErrInvalidBatchSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := models.DefaultExperimentConfig()
			tt.mutate(&cfg)

			err := ValidateExperimentConfig(cfg)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
