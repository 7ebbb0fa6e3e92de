package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/disaster-alert-service/internal/domain"
)

// State backends.
const (
	StateBackendFile   = "file"
	StateBackendRedis  = "redis"
	StateBackendMemory = "memory"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Polling.
	PollInterval time.Duration
	PollEnabled  bool
	FetchTimeout time.Duration

	// Live endpoints per feed. Feeds without one are fallback-only.
	Endpoints    map[domain.FeedType]string
	SnapshotPath string

	// Seen-alert state.
	SeenHistorySize int
	StateBackend    string
	StateDir        string
	StateKey        string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// Notifications.
	NotifyEnabled    bool
	NotifyWebhookURL string
	NotifyTimeout    time.Duration

	// Record publishing.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	pollInterval, err := parsePositiveDuration("POLL_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	notifyTimeout, err := parsePositiveDuration("NOTIFY_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	pollEnabled, err := parseBool("POLL_ENABLED", true)
	if err != nil {
		return nil, err
	}
	notifyEnabled, err := parseBool("NOTIFY_ENABLED", true)
	if err != nil {
		return nil, err
	}
	kafkaEnabled, err := parseBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}

	historySize, err := parsePositiveInt("SEEN_HISTORY_SIZE", 10)
	if err != nil {
		return nil, err
	}
	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PollInterval: pollInterval,
		PollEnabled:  pollEnabled,
		FetchTimeout: fetchTimeout,

		Endpoints: map[domain.FeedType]string{
			domain.FeedEarthquake:      sharedcfg.EnvOrDefault("EARTHQUAKE_URL", "https://api.p2pquake.net/v2/history?codes=551&limit=10"),
			domain.FeedEEW:             sharedcfg.EnvOrDefault("EEW_URL", "https://api.wolfx.jp/jma_eew.json"),
			domain.FeedVolcano:         os.Getenv("VOLCANO_URL"),
			domain.FeedWeatherWarnings: os.Getenv("WEATHER_WARNINGS_URL"),
			domain.FeedLandslide:       os.Getenv("LANDSLIDE_URL"),
		},
		SnapshotPath: os.Getenv("SNAPSHOT_PATH"),

		SeenHistorySize: historySize,
		StateBackend:    sharedcfg.EnvOrDefault("STATE_BACKEND", StateBackendFile),
		StateDir:        sharedcfg.EnvOrDefault("STATE_DIR", "data"),
		StateKey:        sharedcfg.EnvOrDefault("STATE_KEY", "seen-alerts"),
		RedisAddr:       sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,

		NotifyEnabled:    notifyEnabled,
		NotifyWebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
		NotifyTimeout:    notifyTimeout,

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "normalized-alerts"),
	}

	switch cfg.StateBackend {
	case StateBackendFile, StateBackendRedis, StateBackendMemory:
	default:
		return nil, fmt.Errorf("invalid STATE_BACKEND %q", cfg.StateBackend)
	}
	if cfg.StateBackend == StateBackendFile && cfg.StateDir == "" {
		return nil, errors.New("STATE_DIR is required for the file backend")
	}
	if cfg.StateKey == "" {
		return nil, errors.New("STATE_KEY is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
