package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "PAPERMIND_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.environment", typ: kString, env: "PAPERMIND_ENV",
		apply:   func(cfg *Config, v any) { cfg.Server.Environment = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Environment },
	},
	{
		key: "server.allowed_origin", typ: kString, env: "FRONTEND_URL",
		apply:   func(cfg *Config, v any) { cfg.Server.AllowedOrigin = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AllowedOrigin },
	},
	{
		key: "server.max_upload_bytes", typ: kInt, env: "MAX_FILE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxUploadBytes = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxUploadBytes },
	},
	{
		key: "server.max_connections", typ: kInt, env: "PAPERMIND_MAX_CONNECTIONS",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxConnections = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxConnections },
	},
	{
		key: "ratelimit.requests", typ: kInt, env: "RATE_LIMIT_MAX_REQUESTS",
		apply:   func(cfg *Config, v any) { cfg.RateLimit.Requests = v.(int) },
		extract: func(cfg Config) any { return cfg.RateLimit.Requests },
	},
	{
		key: "ratelimit.window", typ: kDuration, env: "RATE_LIMIT_WINDOW",
		apply:   func(cfg *Config, v any) { cfg.RateLimit.Window = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.RateLimit.Window },
	},
	{
		key: "gemini.api_key", typ: kString, env: "GEMINI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "gemini.chat_model", typ: kString, env: "PAPERMIND_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.ChatModel },
	},
	{
		key: "gemini.embed_model", typ: kString, env: "PAPERMIND_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.EmbedModel },
	},
	{
		key: "gemini.embed_timeout", typ: kDuration, env: "PAPERMIND_EMBED_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Gemini.EmbedTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Gemini.EmbedTimeout },
	},
	{
		key: "gemini.completion_timeout", typ: kDuration, env: "PAPERMIND_COMPLETION_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Gemini.CompletionTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Gemini.CompletionTimeout },
	},
	{
		key: "vectorstore.backend", typ: kString, env: "PAPERMIND_VECTOR_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.VectorStore.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.VectorStore.Backend },
	},
	{
		key: "vectorstore.pinecone_api_key", typ: kString, env: "PINECONE_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.VectorStore.PineconeAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.VectorStore.PineconeAPIKey },
	},
	{
		key: "vectorstore.pinecone_index", typ: kString, env: "PINECONE_INDEX",
		apply:   func(cfg *Config, v any) { cfg.VectorStore.PineconeIndex = v.(string) },
		extract: func(cfg Config) any { return cfg.VectorStore.PineconeIndex },
	},
	{
		key: "vectorstore.timeout", typ: kDuration, env: "PAPERMIND_VECTOR_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.VectorStore.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.VectorStore.Timeout },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PAPERMIND_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "PAPERMIND_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TopK },
	},
	{
		key: "retrieval.chunk_size", typ: kInt, env: "PAPERMIND_CHUNK_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.ChunkSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.ChunkSize },
	},
	{
		key: "retrieval.chunk_overlap", typ: kInt, env: "PAPERMIND_CHUNK_OVERLAP",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.ChunkOverlap = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.ChunkOverlap },
	},
	{
		key: "history.max_pairs", typ: kInt, env: "PAPERMIND_HISTORY_MAX_PAIRS",
		apply:   func(cfg *Config, v any) { cfg.History.MaxPairs = v.(int) },
		extract: func(cfg Config) any { return cfg.History.MaxPairs },
	},
	{
		key: "log.level", typ: kString, env: "PAPERMIND_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "PAPERMIND_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
}

// envAliases are legacy variable names. The primary env var of the same key
// wins when both are set.
var envAliases = []struct {
	env   string
	key   string
	parse func(raw string) (any, error)
}{
	{env: "NODE_ENV", key: "server.environment", parse: func(raw string) (any, error) { return raw, nil }},
	{env: "RATE_LIMIT_WINDOW_MS", key: "ratelimit.window", parse: parseMillis},
}

func parseMillis(raw string) (any, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	if ms < 0 {
		return nil, fmt.Errorf("negative duration %dms", ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parseValue converts raw text into the Go type a spec's apply func expects.
func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, a := range envAliases {
		raw := os.Getenv(a.env)
		if raw == "" {
			continue
		}
		v, err := a.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", a.env, raw, err)
			continue
		}
		if s, ok := lookupSpec(a.key); ok {
			s.apply(cfg, v)
		}
	}
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
