package experiment

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/mimir-aip/activelearn/pkg/models"
)

// Artifact names used in cache keys and metrics
const (
	ArtifactBaseline  = "baseline"
	ArtifactFullModel = "full_model"
)

var cacheNamespace = uuid.MustParse("5b0f4e0a-9a55-4f0e-8d43-3c1d7f6a2e11")

// ResultCache stores expensive intermediate results between runs
type ResultCache interface {
	GetBaseline(key string) (*models.BaselineResult, bool, error)
	PutBaseline(key string, result *models.BaselineResult) error
	GetFullModel(key string) (*models.PerformanceRecord, bool, error)
	PutFullModel(key string, record *models.PerformanceRecord) error
}

// RunRecorder persists finished experiment runs
type RunRecorder interface {
	SaveRun(run *models.ExperimentRun) error
}

// CacheKey derives a stable key for an artifact from the pool fingerprint
// and the configuration. Workers and schedule do not affect results and
// are left out.
func CacheKey(artifact, poolFingerprint string, cfg models.ExperimentConfig) string {
	cfg.Workers = 0
	cfg.Schedule = ""
	if artifact == ArtifactFullModel {
		// The full-data model only depends on the partition and the model.
		cfg = models.ExperimentConfig{
			Seed:              cfg.Seed,
			TestSetSize:       cfg.TestSetSize,
			Model:             cfg.Model,
			Metrics:           cfg.Metrics,
			DecisionThreshold: cfg.DecisionThreshold,
		}
	}
	payload, _ := json.Marshal(struct {
		Artifact string                  `json:"artifact"`
		Pool     string                  `json:"pool"`
		Config   models.ExperimentConfig `json:"config"`
	}{artifact, poolFingerprint, cfg})
	return uuid.NewSHA1(cacheNamespace, payload).String()
}

// MemoryCache is a ResultCache kept in process memory
type MemoryCache struct {
	mu        sync.RWMutex
	baselines map[string]*models.BaselineResult
	full      map[string]*models.PerformanceRecord
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		baselines: make(map[string]*models.BaselineResult),
		full:      make(map[string]*models.PerformanceRecord),
	}
}

func (c *MemoryCache) GetBaseline(key string) (*models.BaselineResult, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.baselines[key]
	return result, ok, nil
}

func (c *MemoryCache) PutBaseline(key string, result *models.BaselineResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baselines[key] = result
	return nil
}

func (c *MemoryCache) GetFullModel(key string) (*models.PerformanceRecord, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	record, ok := c.full[key]
	return record, ok, nil
}

func (c *MemoryCache) PutFullModel(key string, record *models.PerformanceRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.full[key] = record
	return nil
}
