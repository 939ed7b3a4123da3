package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mimir-aip/activelearn/pkg/models"
)

// Config holds the process-level configuration
type Config struct {
	Environment    string
	LogLevel       string
	Port           string
	StorageDir     string
	ExperimentFile string
	Workers        int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Port:           getEnv("PORT", "8080"),
		StorageDir:     getEnv("STORAGE_DIR", ""),
		ExperimentFile: getEnv("AL_CONFIG_FILE", ""),
		Workers:        getEnvAsInt("AL_WORKERS", 0),
	}

	if config.StorageDir == "" {
		config.StorageDir = config.Environment + "-data"
	}
	if config.Workers < 0 {
		return nil, fmt.Errorf("%w: AL_WORKERS must not be negative", models.ErrConfiguration)
	}

	return config, nil
}

// LoadExperimentConfig builds an experiment configuration from the defaults,
// the YAML file at path (skipped when path is empty) and AL_* environment
// overrides, in that order. The result is validated.
func LoadExperimentConfig(path string) (models.ExperimentConfig, error) {
	cfg := models.DefaultExperimentConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read experiment config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: failed to parse %s: %v", models.ErrConfiguration, path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := ValidateExperimentConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *models.ExperimentConfig) {
	cfg.Seed = int64(getEnvAsInt("AL_SEED", int(cfg.Seed)))
	cfg.InitialExamplesPerClass = getEnvAsInt("AL_INITIAL_EXAMPLES_PER_CLASS", cfg.InitialExamplesPerClass)
	cfg.ExamplesToLabelPerIteration = getEnvAsInt("AL_EXAMPLES_TO_LABEL_PER_ITERATION", cfg.ExamplesToLabelPerIteration)
	cfg.NumIterations = getEnvAsInt("AL_NUM_ITERATIONS", cfg.NumIterations)
	cfg.PresampleSize = getEnvAsInt("AL_PRESAMPLE_SIZE", cfg.PresampleSize)
	cfg.MonteCarloSamples = getEnvAsInt("AL_MONTE_CARLO_SAMPLES", cfg.MonteCarloSamples)
	cfg.Mu = getEnvAsFloat("AL_MU", cfg.Mu)
	cfg.Sigma = getEnvAsFloat("AL_SIGMA", cfg.Sigma)
	cfg.TestSetSize = getEnvAsInt("AL_TEST_SET_SIZE", cfg.TestSetSize)
	cfg.GroupCount = getEnvAsInt("AL_GROUP_COUNT", cfg.GroupCount)
	cfg.Workers = getEnvAsInt("AL_WORKERS", cfg.Workers)
	if model := os.Getenv("AL_MODEL"); model != "" {
		cfg.Model = models.ModelType(model)
	}
	if metrics := os.Getenv("AL_METRICS"); metrics != "" {
		cfg.Metrics = splitList(metrics)
	}
	if schedule := os.Getenv("AL_SCHEDULE"); schedule != "" {
		cfg.Schedule = schedule
	}
}

var validate = validator.New()

// ValidateExperimentConfig checks every option's range. Range failures wrap
// models.ErrConfiguration; a presample smaller than the batch wraps
// models.ErrInvalidBatchSize since no selection round could ever succeed.
func ValidateExperimentConfig(cfg models.ExperimentConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", models.ErrConfiguration, fe.Field(), fieldRule(fe), fe.Value())
		}
		return fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}

	if cfg.PresampleSize < cfg.ExamplesToLabelPerIteration {
		return fmt.Errorf("%w: presample_size %d is smaller than examples_to_label_per_iteration %d",
			models.ErrInvalidBatchSize, cfg.PresampleSize, cfg.ExamplesToLabelPerIteration)
	}

	return nil
}

func fieldRule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
