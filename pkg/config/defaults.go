package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults carries every policy constant of the review pipeline. All values
// can be overridden through environment variables; the zero-config values
// match the retrieval collaborator's filters and the documented stage
// budgets.
type Defaults struct {
	// Batching
	MaxBatchSize int
	MinBatchSize int

	// Stage-1 parallelism
	MaxParallelStage1 int

	// Diff ingestion limits
	LargeContentBytes int
	MaxHunkLines      int

	// Similarity thresholds
	CrossBatchDedupThreshold float64
	ReconcileAdoptThreshold  float64
	PostProcessThreshold     float64

	// Retrieval
	ContextTopK           int
	DeterministicPerFile  int
	MinChunkScore         float64
	MinDeterministicScore float64

	// Tool budgets
	Stage1ToolBudget int
	Stage3ToolBudget int

	// Structured-output repair retries
	RepairRetries int

	// External call timeouts
	LLMTimeout       time.Duration
	RetrievalTimeout time.Duration
}

// Load builds Defaults from the environment.
func Load() *Defaults {
	return &Defaults{
		MaxBatchSize:      envInt("REVIEW_MAX_BATCH_SIZE", 7),
		MinBatchSize:      envInt("REVIEW_MIN_BATCH_SIZE", 3),
		MaxParallelStage1: envInt("REVIEW_MAX_PARALLEL_STAGE1", 5),

		LargeContentBytes: envInt("REVIEW_LARGE_CONTENT_BYTES", 25*1024),
		MaxHunkLines:      envInt("REVIEW_MAX_HUNK_LINES", 1000),

		CrossBatchDedupThreshold: envFloat("REVIEW_CROSS_BATCH_DEDUP_THRESHOLD", 0.75),
		ReconcileAdoptThreshold:  envFloat("REVIEW_RECONCILE_ADOPT_THRESHOLD", 0.70),
		PostProcessThreshold:     envFloat("REVIEW_POSTPROCESS_DEDUP_THRESHOLD", 0.75),

		ContextTopK:           envInt("REVIEW_CONTEXT_TOP_K", 10),
		DeterministicPerFile:  envInt("REVIEW_DETERMINISTIC_PER_FILE", 5),
		MinChunkScore:         envFloat("REVIEW_MIN_CHUNK_SCORE", 0.70),
		MinDeterministicScore: envFloat("REVIEW_MIN_DETERMINISTIC_SCORE", 0.90),

		Stage1ToolBudget: envInt("REVIEW_STAGE1_TOOL_BUDGET", 3),
		Stage3ToolBudget: envInt("REVIEW_STAGE3_TOOL_BUDGET", 5),

		RepairRetries: envInt("REVIEW_REPAIR_RETRIES", 2),

		LLMTimeout:       envDuration("REVIEW_LLM_TIMEOUT", 5*time.Minute),
		RetrievalTimeout: envDuration("REVIEW_RETRIEVAL_TIMEOUT", 30*time.Second),
	}
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
