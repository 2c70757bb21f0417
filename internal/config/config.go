package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
)

type Config struct {
	DBPath    string           `json:"db_path"`
	Port      int              `json:"port"`
	LogConfig logger.LogConfig `json:"log_config"`
	AI        AIConfig         `json:"ai"`
	Index     IndexConfig      `json:"index"`
	Retrieval RetrievalConfig  `json:"retrieval"`
	Schedule  ScheduleConfig   `json:"schedule"`
	CORSList  []string         `json:"cors_allowlist"`
	// Minimum seconds between /api/ask calls from the same client.
	AskRateWindowSec int `json:"ask_rate_window_sec"`
}

type AIConfig struct {
	Provider        string `json:"provider"`
	APIKey          string `json:"api_key"`
	EmbeddingModel  string `json:"embedding_model"`
	GenerationModel string `json:"generation_model"`
	MaxInputChars   int    `json:"max_input_chars"`
}

type IndexConfig struct {
	// MaxChunkBytes is the single chunk-size limit applied by ingestion and
	// every repair path.
	MaxChunkBytes int `json:"max_chunk_bytes"`
	// ChunkOverlap is accepted for compatibility with older deployments but
	// the sentence splitter does not overlap chunks.
	ChunkOverlap    int     `json:"chunk_overlap"`
	EmbedRatePerSec float64 `json:"embed_rate_per_sec"`
	EmbedBurst      int     `json:"embed_burst"`
}

type RetrievalConfig struct {
	TopK int `json:"top_k"`
	// SimilarityThreshold filters scan results before top-k truncation.
	// Zero disables filtering.
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

type ScheduleConfig struct {
	OrphanSweepSpec string `json:"orphan_sweep_spec"`
}

func Load(path string) (*Config, error) {
	// Optional .env next to the working directory, same as the old deployment.
	_ = godotenv.Load()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 8320
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "gemini"
	}
	// Environment wins over the config file.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.AI.APIKey = key
	}
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = "text-embedding-004"
	}
	if cfg.AI.GenerationModel == "" {
		cfg.AI.GenerationModel = "gemini-1.5-pro"
	}
	if cfg.AI.MaxInputChars == 0 {
		cfg.AI.MaxInputChars = 100000
	}
	if cfg.Index.MaxChunkBytes == 0 {
		cfg.Index.MaxChunkBytes = 10000
	}
	if cfg.Index.EmbedRatePerSec == 0 {
		cfg.Index.EmbedRatePerSec = 2
	}
	if cfg.Index.EmbedBurst == 0 {
		cfg.Index.EmbedBurst = 1
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Schedule.OrphanSweepSpec == "" {
		cfg.Schedule.OrphanSweepSpec = "0 3 * * *"
	}
	return nil
}
