package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type DimensionCacheCfg struct {
	MaxSize   int
	TTL       time.Duration
	RedisAddr string
	OpTimeout time.Duration
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr             string
	LogLevel         string
	LogConsole       bool
	LogSampleN       int
	ResizerURL       string
	AdvancedFeatures bool
	AutoGravity      bool
	Derivatives      bool
	DerivativesFile  string
	DimensionCache   DimensionCacheCfg
	Invalidation     InvalidationCfg
	Metrics          MetricsCfg
}

func FromEnv() Config {
	return Config{
		Addr:             getenv("ADDR", ":8090"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogConsole:       getbool("LOG_CONSOLE", false),
		LogSampleN:       getint("LOG_SAMPLE_N", 0),
		ResizerURL:       getenv("RESIZER_URL", "http://localhost:8787"),
		AdvancedFeatures: getbool("ADVANCED_FEATURES_ENABLED", false),
		AutoGravity:      getbool("AUTO_GRAVITY_ENABLED", true),
		Derivatives:      getbool("DERIVATIVES_ENABLED", true),
		DerivativesFile:  getenv("DERIVATIVES_FILE", ""),
		DimensionCache: DimensionCacheCfg{
			MaxSize:   getint("DIM_CACHE_MAX_SIZE", 100),
			TTL:       getduration("DIM_CACHE_TTL", 24*time.Hour),
			RedisAddr: getenv("DIM_CACHE_REDIS_ADDR", ""),
			OpTimeout: getduration("DIM_CACHE_OP_TIMEOUT", 250*time.Millisecond),
		},
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "image-invalidation"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "dimension-invalidator"),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
