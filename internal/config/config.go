package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type CacheBackend string

const (
	CacheFile     CacheBackend = "file"
	CacheRedis    CacheBackend = "redis"
	CachePostgres CacheBackend = "postgres"
)

// Config is the process configuration. It is read once at startup and passed
// down explicitly; nothing else reads the environment.
type Config struct {
	Port         string
	LogMode      string
	CacheBackend CacheBackend
	CacheFile    string
	CacheTTL     time.Duration
	RedisURL     string
	DatabaseURL  string
	Fetcher      string
	FetchTimeout time.Duration
	Parallelism  int
	SourcesFile  string
	OllamaURL    string
	OllamaModel  string
	JWTSecret    string
	ForcePlan    string
	Location     *time.Location
}

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Port:         get("PORT", "8081"),
		LogMode:      get("LOG_MODE", "dev"),
		CacheBackend: CacheBackend(strings.ToLower(get("CACHE_BACKEND", string(CacheFile)))),
		CacheFile:    get("CACHE_FILE", "data/campaigns_cache.json"),
		RedisURL:     get("REDIS_URL", "localhost:6379"),
		DatabaseURL:  get("DATABASE_URL", ""),
		Fetcher:      strings.ToLower(get("FETCHER", "colly")),
		SourcesFile:  get("SOURCES_FILE", ""),
		OllamaURL:    get("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:  get("OLLAMA_MODEL", "qwen2.5:7b-instruct"),
		JWTSecret:    get("JWT_SECRET", ""),
		ForcePlan:    strings.ToLower(get("FORCE_PLAN", "")),
	}

	var err error
	if cfg.CacheTTL, err = time.ParseDuration(get("CACHE_TTL", "24h")); err != nil {
		return Config{}, fmt.Errorf("CACHE_TTL: %w", err)
	}
	if cfg.FetchTimeout, err = time.ParseDuration(get("FETCH_TIMEOUT", "10s")); err != nil {
		return Config{}, fmt.Errorf("FETCH_TIMEOUT: %w", err)
	}
	if cfg.Parallelism, err = strconv.Atoi(get("COLLECT_PARALLELISM", "3")); err != nil {
		return Config{}, fmt.Errorf("COLLECT_PARALLELISM: %w", err)
	}
	if cfg.Location, err = time.LoadLocation(get("LOCATION", "Asia/Tokyo")); err != nil {
		return Config{}, fmt.Errorf("LOCATION: %w", err)
	}

	switch cfg.CacheBackend {
	case CacheFile, CacheRedis:
	case CachePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("CACHE_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown CACHE_BACKEND %q", cfg.CacheBackend)
	}
	switch cfg.Fetcher {
	case "colly", "http":
	default:
		return Config{}, fmt.Errorf("unknown FETCHER %q", cfg.Fetcher)
	}
	switch cfg.ForcePlan {
	case "", "free", "paid":
	default:
		return Config{}, fmt.Errorf("unknown FORCE_PLAN %q", cfg.ForcePlan)
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	return cfg, nil
}
