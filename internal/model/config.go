package model

import "time"

// Config is the complete beacon configuration.
// Hierarchy: CLI flags > BEACON_* env > config file > DefaultConfig.
type Config struct {
	Retrieval   RetrievalConfig   `mapstructure:"retrieval" yaml:"retrieval"`
	Overlay     OverlayConfig     `mapstructure:"overlay" yaml:"overlay"`
	LLM         LLMTiersConfig    `mapstructure:"llm" yaml:"llm"`
	Classifier  ClassifierConfig  `mapstructure:"classifier" yaml:"classifier"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Analysis    AnalysisConfig    `mapstructure:"analysis" yaml:"analysis"`
	Storage     StorageConfig     `mapstructure:"storage" yaml:"storage"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store" yaml:"vector_store"`
	Publish     PublishConfig     `mapstructure:"publish" yaml:"publish"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output"`
}

// RetrievalConfig controls the ranker
type RetrievalConfig struct {
	TopK              int           `mapstructure:"top_k" yaml:"top_k"`
	MinSimilarity     float64       `mapstructure:"min_similarity" yaml:"min_similarity"`
	SearchTimeout     time.Duration `mapstructure:"search_timeout" yaml:"search_timeout"`
	MultiChunkPerFile bool          `mapstructure:"multi_chunk_per_file" yaml:"multi_chunk_per_file"`
}

// OverlayConfig controls lexical matching of corrections
type OverlayConfig struct {
	MinSharedTerms int     `mapstructure:"min_shared_terms" yaml:"min_shared_terms"`
	MinOverlap     float64 `mapstructure:"min_overlap" yaml:"min_overlap"`
}

// LLMTiersConfig holds one provider configuration per reasoning tier
type LLMTiersConfig struct {
	Fast    LLMConfig `mapstructure:"fast" yaml:"fast"`
	Capable LLMConfig `mapstructure:"capable" yaml:"capable"`
}

// LLMConfig configures a single reasoning provider
type LLMConfig struct {
	Provider   string `mapstructure:"provider" yaml:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model      string `mapstructure:"model" yaml:"model"`
	APIKey     string `mapstructure:"api_key" yaml:"-"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Timeout    int    `mapstructure:"timeout" yaml:"timeout"` // seconds
	MaxTokens  int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	HTTPProxy  string `mapstructure:"http_proxy" yaml:"http_proxy,omitempty"`
	HTTPSProxy string `mapstructure:"https_proxy" yaml:"https_proxy,omitempty"`
	NoProxy    string `mapstructure:"no_proxy" yaml:"no_proxy,omitempty"`
}

// ClassifierConfig controls topic classification
type ClassifierConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// CacheConfig controls the response cache
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	Dir             string        `mapstructure:"dir" yaml:"dir"`
	MemoryTTL       time.Duration `mapstructure:"memory_ttl" yaml:"memory_ttl"`
	DiskTTL         time.Duration `mapstructure:"disk_ttl" yaml:"disk_ttl"`
	AnalysisTTL     time.Duration `mapstructure:"analysis_ttl" yaml:"analysis_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// AnalysisConfig controls the batch content-opportunity job
type AnalysisConfig struct {
	WindowDays          int           `mapstructure:"window_days" yaml:"window_days"`
	MinFrequency        int           `mapstructure:"min_frequency" yaml:"min_frequency"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold" yaml:"similarity_threshold"`
	BatchSize           int           `mapstructure:"batch_size" yaml:"batch_size"`
	Workers             int           `mapstructure:"workers" yaml:"workers"`
	MaxClusters         int           `mapstructure:"max_clusters" yaml:"max_clusters"`
	RequestsPerSecond   float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst               int           `mapstructure:"burst" yaml:"burst"`
	ReasoningTimeout    time.Duration `mapstructure:"reasoning_timeout" yaml:"reasoning_timeout"`
	TopK                int           `mapstructure:"top_k" yaml:"top_k"`
	BackfillTopics      bool          `mapstructure:"backfill_topics" yaml:"backfill_topics"`
}

// StorageConfig points at the SQLite question log
type StorageConfig struct {
	Database string `mapstructure:"database" yaml:"database"`
}

// VectorStoreConfig configures the in-process vector index
type VectorStoreConfig struct {
	Path           string `mapstructure:"path" yaml:"path"`
	Collection     string `mapstructure:"collection" yaml:"collection"`
	EmbeddingModel string `mapstructure:"embedding_model" yaml:"embedding_model"`
	InMemory       bool   `mapstructure:"in_memory" yaml:"in_memory"`
}

// PublishConfig points at the published content catalogue
type PublishConfig struct {
	Catalog        string  `mapstructure:"catalog" yaml:"catalog"`
	MatchThreshold float64 `mapstructure:"match_threshold" yaml:"match_threshold"`
}

// ServerConfig configures the HTTP boundary
type ServerConfig struct {
	Addr           string        `mapstructure:"addr" yaml:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// OutputConfig controls logging output
type OutputConfig struct {
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
	JSONLog bool `mapstructure:"json_log" yaml:"json_log"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Retrieval: RetrievalConfig{
			TopK:          5,
			MinSimilarity: 0.5,
			SearchTimeout: 5 * time.Second,
		},
		Overlay: OverlayConfig{
			MinSharedTerms: 2,
			MinOverlap:     0.6,
		},
		LLM: LLMTiersConfig{
			Fast: LLMConfig{
				Provider:  "", // Disabled by default
				Model:     "claude-haiku-4-5-20251001",
				Timeout:   15,
				MaxTokens: 200,
			},
			Capable: LLMConfig{
				Provider:  "",
				Model:     "claude-sonnet-4-5-20250929",
				Timeout:   30,
				MaxTokens: 1000,
			},
		},
		Classifier: ClassifierConfig{
			Timeout: 8 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:         true,
			Dir:             ".beacon-cache",
			MemoryTTL:       24 * time.Hour,
			DiskTTL:         24 * time.Hour,
			AnalysisTTL:     time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Analysis: AnalysisConfig{
			WindowDays:          30,
			MinFrequency:        2,
			SimilarityThreshold: 0.3,
			BatchSize:           8,
			Workers:             4,
			MaxClusters:         200,
			RequestsPerSecond:   2,
			Burst:               4,
			ReasoningTimeout:    30 * time.Second,
			TopK:                5,
			BackfillTopics:      true,
		},
		Storage: StorageConfig{
			Database: "beacon.db",
		},
		VectorStore: VectorStoreConfig{
			Path:           ".beacon-vectors",
			Collection:     "knowledge",
			EmbeddingModel: "text-embedding-3-small",
		},
		Publish: PublishConfig{
			Catalog:        "published.yaml",
			MatchThreshold: 0.75,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 2 * time.Minute,
		},
	}
}
