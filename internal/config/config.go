package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	RateLimit   RateLimitConfig
	Gemini      GeminiConfig
	VectorStore VectorStoreConfig
	Storage     StorageConfig
	Retrieval   RetrievalConfig
	History     HistoryConfig
	Log         LogConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Environment    string
	AllowedOrigin  string
	MaxUploadBytes int
	MaxConnections int
}

// Production reports whether error details must be hidden from clients.
func (s ServerConfig) Production() bool {
	return s.Environment == "production"
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type GeminiConfig struct {
	APIKey            string
	ChatModel         string
	EmbedModel        string
	EmbedTimeout      time.Duration
	CompletionTimeout time.Duration
}

type VectorStoreConfig struct {
	Backend        string
	PineconeAPIKey string
	PineconeIndex  string
	Timeout        time.Duration
}

type StorageConfig struct {
	DataDir string
}

type RetrievalConfig struct {
	TopK         int
	ChunkSize    int
	ChunkOverlap int
}

type HistoryConfig struct {
	MaxPairs int
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	BackendPinecone = "pinecone"
	BackendSQLite   = "sqlite"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           3001,
			Environment:    "development",
			AllowedOrigin:  "http://localhost:5173",
			MaxUploadBytes: 10 << 20,
		},
		RateLimit: RateLimitConfig{
			Requests: 100,
			Window:   15 * time.Minute,
		},
		Gemini: GeminiConfig{
			ChatModel:         "gemini-2.5-flash",
			EmbedModel:        "text-embedding-004",
			EmbedTimeout:      30 * time.Second,
			CompletionTimeout: 2 * time.Minute,
		},
		VectorStore: VectorStoreConfig{
			Backend: BackendPinecone,
			Timeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			DataDir: ":memory:",
		},
		Retrieval: RetrievalConfig{
			TopK:         5,
			ChunkSize:    1500,
			ChunkOverlap: 200,
		},
		History: HistoryConfig{
			MaxPairs: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration in three layers: built-in defaults, the YAML file
// at $XDG_CONFIG_HOME/papermind/config.yaml, and environment variables.
// A .env file in the working directory is loaded into the environment first;
// variables already set in the process win over it.
//
// Provider keys are never required here. A server without them starts and
// reports itself as not ready.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "[WARN] could not read .env file: %v\n", err)
	}
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a request.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes must be positive"))
	}
	if c.Retrieval.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.chunk_size must be positive"))
	}
	if c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		errs = append(errs, fmt.Errorf("retrieval.chunk_overlap %d must be in [0, %d)", c.Retrieval.ChunkOverlap, c.Retrieval.ChunkSize))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be positive"))
	}
	if c.History.MaxPairs <= 0 {
		errs = append(errs, fmt.Errorf("history.max_pairs must be positive"))
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, fmt.Errorf("rate limit requires positive requests and window"))
	}
	switch c.VectorStore.Backend {
	case BackendPinecone, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("vectorstore.backend %q: want %q or %q", c.VectorStore.Backend, BackendPinecone, BackendSQLite))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
