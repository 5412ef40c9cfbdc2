// Package config loads and validates ingestor configuration from layered
// sources: hardcoded defaults, an optional .ingestor.yaml in the working
// directory, and environment variables such as MAX_FILE_SIZE or LOG_LEVEL
// (highest precedence).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ChunkStrategy names a Chunker splitting strategy (§4.3).
type ChunkStrategy string

const (
	ChunkStrategyParagraph ChunkStrategy = "paragraph"
	ChunkStrategyLine      ChunkStrategy = "line"
	ChunkStrategyToken     ChunkStrategy = "token"
	ChunkStrategyCharacter ChunkStrategy = "character"
)

// Config is the complete ingestor configuration. It mirrors the
// configuration surface defined in spec section 6.
type Config struct {
	Store   StoreConfig   `yaml:"store" json:"store"`
	Chunk   ChunkConfig   `yaml:"chunk" json:"chunk"`
	Extract ExtractConfig `yaml:"extract" json:"extract"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Limits  LimitsConfig  `yaml:"limits" json:"limits"`
}

// StoreConfig configures the embedded SQLite store and its on-disk layout.
type StoreConfig struct {
	// DefaultDatabase is the database name used when callers don't specify one.
	DefaultDatabase string `yaml:"default_database" json:"default_database"`
	// DBDir is the directory holding <name>.sqlite content databases.
	DBDir string `yaml:"db_dir" json:"db_dir"`
	// TempDir is scratch space for in-flight file probing/chunking.
	TempDir string `yaml:"temp_dir" json:"temp_dir"`
	// LogDir is where the batch engine and store write structured logs.
	LogDir string `yaml:"log_dir" json:"log_dir"`
	// JournalMode is the SQLite journal_mode pragma (default WAL).
	JournalMode string `yaml:"journal_mode" json:"journal_mode"`
	// AutoVacuum is the SQLite auto_vacuum pragma: none, full, or incremental.
	AutoVacuum string `yaml:"auto_vacuum" json:"auto_vacuum"`
	// KeepTempFiles disables cleanup of temp probe/chunk artifacts after processing.
	KeepTempFiles bool `yaml:"keep_temp_files" json:"keep_temp_files"`
}

// ChunkConfig configures the default Chunker behavior (§4.3).
type ChunkConfig struct {
	MaxChunkSize int           `yaml:"max_chunk_size" json:"max_chunk_size"`
	ChunkOverlap int           `yaml:"chunk_overlap" json:"chunk_overlap"`
	Strategy     ChunkStrategy `yaml:"strategy" json:"strategy"`
}

// ExtractConfig configures entity extraction and normalization (§4.4, §4.5).
type ExtractConfig struct {
	EntityConfidenceThreshold float64       `yaml:"entity_confidence_threshold" json:"entity_confidence_threshold"`
	EntityMaxCount            int           `yaml:"entity_max_count" json:"entity_max_count"`
	ClaudeMaxRetries          int           `yaml:"claude_max_retries" json:"claude_max_retries"`
	ClaudeTimeout             time.Duration `yaml:"claude_timeout" json:"claude_timeout"`
	// LLMEndpoint is the base URL of the LLM extraction service (§6
	// "LLM extraction service (consumed)"). Empty disables LLMClient,
	// forcing RuleExtractor-only operation.
	LLMEndpoint string `yaml:"llm_endpoint" json:"llm_endpoint"`
	// LLMAPIKey is the bearer credential supplied at startup (§6).
	LLMAPIKey string `yaml:"llm_api_key" json:"-"`
	// LLMModel names the model the LLM extraction service should route to.
	LLMModel string `yaml:"llm_model" json:"llm_model"`
}

// LoggingConfig configures process-wide structured logging.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Structured bool   `yaml:"structured" json:"structured"`
}

// LimitsConfig configures ingestion-wide resource limits.
type LimitsConfig struct {
	// MaxFileSize rejects input content larger than this, in bytes.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`
}

// NewConfig returns a Config populated with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Store: StoreConfig{
			DefaultDatabase: "ingestor",
			DBDir:           filepath.Join(defaultHome(), "databases"),
			TempDir:         filepath.Join(defaultHome(), "temp"),
			LogDir:          filepath.Join(defaultHome(), "logs"),
			JournalMode:     "WAL",
			AutoVacuum:      "incremental",
			KeepTempFiles:   false,
		},
		Chunk: ChunkConfig{
			MaxChunkSize: 4 * 1024 * 1024,
			ChunkOverlap: 200,
			Strategy:     ChunkStrategyParagraph,
		},
		Extract: ExtractConfig{
			EntityConfidenceThreshold: 0.5,
			EntityMaxCount:            50,
			ClaudeMaxRetries:          3,
			ClaudeTimeout:             30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: true,
		},
		Limits: LimitsConfig{
			MaxFileSize: 50 * 1024 * 1024,
		},
	}
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".ingestor")
	}
	return filepath.Join(home, ".ingestor")
}

// Load loads configuration from dir in order of increasing precedence:
//  1. Hardcoded defaults
//  2. .ingestor.yaml (or .yml) in dir
//  3. Environment variables (MAX_FILE_SIZE, CHUNK_STRATEGY, LOG_LEVEL, ...)
//
// The result is validated before being returned.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".ingestor.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".ingestor.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}

	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero fields of other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Store.DefaultDatabase != "" {
		c.Store.DefaultDatabase = other.Store.DefaultDatabase
	}
	if other.Store.DBDir != "" {
		c.Store.DBDir = other.Store.DBDir
	}
	if other.Store.TempDir != "" {
		c.Store.TempDir = other.Store.TempDir
	}
	if other.Store.LogDir != "" {
		c.Store.LogDir = other.Store.LogDir
	}
	if other.Store.JournalMode != "" {
		c.Store.JournalMode = other.Store.JournalMode
	}
	if other.Store.AutoVacuum != "" {
		c.Store.AutoVacuum = other.Store.AutoVacuum
	}
	c.Store.KeepTempFiles = c.Store.KeepTempFiles || other.Store.KeepTempFiles

	if other.Chunk.MaxChunkSize != 0 {
		c.Chunk.MaxChunkSize = other.Chunk.MaxChunkSize
	}
	if other.Chunk.ChunkOverlap != 0 {
		c.Chunk.ChunkOverlap = other.Chunk.ChunkOverlap
	}
	if other.Chunk.Strategy != "" {
		c.Chunk.Strategy = other.Chunk.Strategy
	}

	if other.Extract.EntityConfidenceThreshold != 0 {
		c.Extract.EntityConfidenceThreshold = other.Extract.EntityConfidenceThreshold
	}
	if other.Extract.EntityMaxCount != 0 {
		c.Extract.EntityMaxCount = other.Extract.EntityMaxCount
	}
	if other.Extract.ClaudeMaxRetries != 0 {
		c.Extract.ClaudeMaxRetries = other.Extract.ClaudeMaxRetries
	}
	if other.Extract.ClaudeTimeout != 0 {
		c.Extract.ClaudeTimeout = other.Extract.ClaudeTimeout
	}
	if other.Extract.LLMEndpoint != "" {
		c.Extract.LLMEndpoint = other.Extract.LLMEndpoint
	}
	if other.Extract.LLMAPIKey != "" {
		c.Extract.LLMAPIKey = other.Extract.LLMAPIKey
	}
	if other.Extract.LLMModel != "" {
		c.Extract.LLMModel = other.Extract.LLMModel
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}

	if other.Limits.MaxFileSize != 0 {
		c.Limits.MaxFileSize = other.Limits.MaxFileSize
	}
}

// applyEnvOverrides applies environment variable overrides, the
// highest-precedence configuration source (spec §6). The variables are
// read by their bare names (MAX_FILE_SIZE, DB_DIR, ...), with no prefix.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Limits.MaxFileSize = n
		}
	}
	if v := os.Getenv("MAX_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chunk.MaxChunkSize = n
		}
	}
	if v := os.Getenv("CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Chunk.ChunkOverlap = n
		}
	}
	if v := os.Getenv("CHUNK_STRATEGY"); v != "" {
		c.Chunk.Strategy = ChunkStrategy(strings.ToLower(v))
	}
	if v := os.Getenv("ENTITY_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			c.Extract.EntityConfidenceThreshold = f
		}
	}
	if v := os.Getenv("ENTITY_MAX_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Extract.EntityMaxCount = n
		}
	}
	if v := os.Getenv("CLAUDE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Extract.ClaudeMaxRetries = n
		}
	}
	if v := os.Getenv("CLAUDE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Extract.ClaudeTimeout = d
		} else if n, err := strconv.Atoi(v); err == nil {
			c.Extract.ClaudeTimeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("LLM_ENDPOINT"); v != "" {
		c.Extract.LLMEndpoint = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.Extract.LLMAPIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.Extract.LLMModel = v
	}
	if v := os.Getenv("DB_JOURNAL_MODE"); v != "" {
		c.Store.JournalMode = strings.ToUpper(v)
	}
	if v := os.Getenv("DB_AUTO_VACUUM"); v != "" {
		c.Store.AutoVacuum = strings.ToLower(v)
	}
	if v := os.Getenv("DEFAULT_DATABASE"); v != "" {
		c.Store.DefaultDatabase = v
	}
	if v := os.Getenv("DB_DIR"); v != "" {
		c.Store.DBDir = v
	}
	if v := os.Getenv("TEMP_DIR"); v != "" {
		c.Store.TempDir = v
	}
	if v := os.Getenv("LOG_DIR"); v != "" {
		c.Store.LogDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_STRUCTURED"); v != "" {
		c.Logging.Structured = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("KEEP_TEMP_FILES"); v != "" {
		c.Store.KeepTempFiles = strings.ToLower(v) == "true" || v == "1"
	}
}

// Validate checks the configuration for internally-inconsistent values.
func (c *Config) Validate() error {
	if c.Limits.MaxFileSize <= 0 {
		return fmt.Errorf("limits.max_file_size must be positive, got %d", c.Limits.MaxFileSize)
	}
	if c.Chunk.MaxChunkSize <= 0 {
		return fmt.Errorf("chunk.max_chunk_size must be positive, got %d", c.Chunk.MaxChunkSize)
	}
	if c.Chunk.ChunkOverlap < 0 {
		return fmt.Errorf("chunk.chunk_overlap must be non-negative, got %d", c.Chunk.ChunkOverlap)
	}
	if c.Chunk.ChunkOverlap >= c.Chunk.MaxChunkSize {
		return fmt.Errorf("chunk.chunk_overlap (%d) must be smaller than chunk.max_chunk_size (%d)", c.Chunk.ChunkOverlap, c.Chunk.MaxChunkSize)
	}
	switch c.Chunk.Strategy {
	case ChunkStrategyParagraph, ChunkStrategyLine, ChunkStrategyToken, ChunkStrategyCharacter:
	default:
		return fmt.Errorf("chunk.strategy must be paragraph, line, token, or character, got %s", c.Chunk.Strategy)
	}

	if c.Extract.EntityConfidenceThreshold < 0 || c.Extract.EntityConfidenceThreshold > 1 {
		return fmt.Errorf("extract.entity_confidence_threshold must be between 0 and 1, got %f", c.Extract.EntityConfidenceThreshold)
	}
	if c.Extract.EntityMaxCount <= 0 {
		return fmt.Errorf("extract.entity_max_count must be positive, got %d", c.Extract.EntityMaxCount)
	}
	if c.Extract.ClaudeMaxRetries < 0 {
		return fmt.Errorf("extract.claude_max_retries must be non-negative, got %d", c.Extract.ClaudeMaxRetries)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warning": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be debug, info, warning, or error, got %s", c.Logging.Level)
	}

	validJournalModes := map[string]bool{"WAL": true, "DELETE": true, "TRUNCATE": true, "PERSIST": true, "MEMORY": true, "OFF": true}
	if !validJournalModes[strings.ToUpper(c.Store.JournalMode)] {
		return fmt.Errorf("store.journal_mode must be a valid SQLite journal mode, got %s", c.Store.JournalMode)
	}

	return nil
}

// WriteYAML writes the configuration to path as YAML.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// EnsureDirs creates the store's db/temp/log directories if they don't exist.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Store.DBDir, c.Store.TempDir, c.Store.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
