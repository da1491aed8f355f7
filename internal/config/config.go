package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers      []string
	KafkaReportsTopic string
	KafkaGroupID      string
	HTTPAddr          string
	LogLevel          string
	LogFormat         string
	ShutdownTimeout   time.Duration

	BatchSize int

	// Hazard lifecycle.
	SilenceWindow time.Duration
	SweepInterval time.Duration
	Retention     time.Duration

	// Impact radius mapping: radius = base + intensity * metersPerPoint.
	ImpactBaseRadiusM    float64
	ImpactMetersPerPoint float64

	// Dispatch.
	DispatchWorkers int
	DispatchQueue   int
	SendTimeout     time.Duration
	RetryInterval   time.Duration
	RetryBatch      int

	// Ledger.
	LedgerPath       string
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
	RetryJitterFrac  float64
	RetryMaxAttempts int
	RetryMaxAge      time.Duration

	// Channel providers.
	SMSGatewayURL    string
	SMSGatewayToken  string
	PushServiceURL   string
	PushServiceToken string
	ProviderTimeout  time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	cfg := &Config{
		KafkaBrokers:      parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaReportsTopic: envOrDefault("KAFKA_REPORTS_TOPIC", "raw-hazard-reports"),
		KafkaGroupID:      envOrDefault("KAFKA_GROUP_ID", "hazard-engine"),
		HTTPAddr:          envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          envOrDefault("LOG_LEVEL", "info"),
		LogFormat:         envOrDefault("LOG_FORMAT", "json"),

		LedgerPath: envOrDefault("LEDGER_PATH", "hazard-ledger.db"),

		SMSGatewayURL:    os.Getenv("SMS_GATEWAY_URL"),
		SMSGatewayToken:  os.Getenv("SMS_GATEWAY_TOKEN"),
		PushServiceURL:   os.Getenv("PUSH_SERVICE_URL"),
		PushServiceToken: os.Getenv("PUSH_SERVICE_TOKEN"),
	}

	var err error
	if cfg.ShutdownTimeout, err = parseDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = parseInt("BATCH_SIZE", 50); err != nil {
		return nil, err
	}
	if cfg.SilenceWindow, err = parseDuration("SILENCE_WINDOW", "30m"); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = parseDuration("SWEEP_INTERVAL", "1m"); err != nil {
		return nil, err
	}
	if cfg.Retention, err = parseDuration("RESOLVED_RETENTION", "24h"); err != nil {
		return nil, err
	}
	if cfg.ImpactBaseRadiusM, err = parseFloat("IMPACT_BASE_RADIUS_M", 1000); err != nil {
		return nil, err
	}
	if cfg.ImpactMetersPerPoint, err = parseFloat("IMPACT_METERS_PER_POINT", 200); err != nil {
		return nil, err
	}
	if cfg.DispatchWorkers, err = parseInt("DISPATCH_WORKERS", 8); err != nil {
		return nil, err
	}
	if cfg.DispatchQueue, err = parseInt("DISPATCH_QUEUE", 1024); err != nil {
		return nil, err
	}
	if cfg.SendTimeout, err = parseDuration("SEND_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if cfg.RetryInterval, err = parseDuration("RETRY_INTERVAL", "10s"); err != nil {
		return nil, err
	}
	if cfg.RetryBatch, err = parseInt("RETRY_BATCH", 100); err != nil {
		return nil, err
	}
	if cfg.RetryBackoffBase, err = parseDuration("RETRY_BACKOFF_BASE", "30s"); err != nil {
		return nil, err
	}
	if cfg.RetryBackoffMax, err = parseDuration("RETRY_BACKOFF_MAX", "10m"); err != nil {
		return nil, err
	}
	if cfg.RetryJitterFrac, err = parseFloat("RETRY_JITTER_FRAC", 0.2); err != nil {
		return nil, err
	}
	if cfg.RetryMaxAttempts, err = parseInt("RETRY_MAX_ATTEMPTS", 6); err != nil {
		return nil, err
	}
	if cfg.RetryMaxAge, err = parseDuration("RETRY_MAX_AGE", "6h"); err != nil {
		return nil, err
	}
	if cfg.ProviderTimeout, err = parseDuration("PROVIDER_TIMEOUT", "5s"); err != nil {
		return nil, err
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaReportsTopic == "" {
		return nil, errors.New("KAFKA_REPORTS_TOPIC is required")
	}
	if cfg.LedgerPath == "" {
		return nil, errors.New("LEDGER_PATH is required")
	}
	if cfg.SilenceWindow <= 0 {
		return nil, errors.New("SILENCE_WINDOW must be positive")
	}
	if cfg.DispatchWorkers <= 0 {
		return nil, errors.New("DISPATCH_WORKERS must be positive")
	}
	if cfg.RetryJitterFrac < 0 || cfg.RetryJitterFrac >= 1 {
		return nil, errors.New("RETRY_JITTER_FRAC must be in [0, 1)")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}
