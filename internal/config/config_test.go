package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "raw-hazard-reports", cfg.KafkaReportsTopic)
	assert.Equal(t, "hazard-engine", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 30*time.Minute, cfg.SilenceWindow)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.Retention)
	assert.InEpsilon(t, 1000.0, cfg.ImpactBaseRadiusM, 0.0001)
	assert.InEpsilon(t, 200.0, cfg.ImpactMetersPerPoint, 0.0001)
	assert.Equal(t, 8, cfg.DispatchWorkers)
	assert.Equal(t, 1024, cfg.DispatchQueue)
	assert.Equal(t, 5*time.Second, cfg.SendTimeout)
	assert.Equal(t, 10*time.Second, cfg.RetryInterval)
	assert.Equal(t, "hazard-ledger.db", cfg.LedgerPath)
	assert.Equal(t, 30*time.Second, cfg.RetryBackoffBase)
	assert.Equal(t, 10*time.Minute, cfg.RetryBackoffMax)
	assert.InEpsilon(t, 0.2, cfg.RetryJitterFrac, 0.0001)
	assert.Equal(t, 6, cfg.RetryMaxAttempts)
	assert.Equal(t, 6*time.Hour, cfg.RetryMaxAge)
	assert.Empty(t, cfg.SMSGatewayURL)
	assert.Empty(t, cfg.PushServiceURL)
	assert.Equal(t, 5*time.Second, cfg.ProviderTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_REPORTS_TOPIC", "custom-reports")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("SILENCE_WINDOW", "15m")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("RESOLVED_RETENTION", "48h")
	t.Setenv("IMPACT_BASE_RADIUS_M", "500")
	t.Setenv("IMPACT_METERS_PER_POINT", "100")
	t.Setenv("DISPATCH_WORKERS", "4")
	t.Setenv("LEDGER_PATH", "/var/lib/hazard/ledger.db")
	t.Setenv("RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("SMS_GATEWAY_URL", "https://sms.example.com")
	t.Setenv("SMS_GATEWAY_TOKEN", "sms-token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-reports", cfg.KafkaReportsTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 15*time.Minute, cfg.SilenceWindow)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 48*time.Hour, cfg.Retention)
	assert.InEpsilon(t, 500.0, cfg.ImpactBaseRadiusM, 0.0001)
	assert.InEpsilon(t, 100.0, cfg.ImpactMetersPerPoint, 0.0001)
	assert.Equal(t, 4, cfg.DispatchWorkers)
	assert.Equal(t, "/var/lib/hazard/ledger.db", cfg.LedgerPath)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, "https://sms.example.com", cfg.SMSGatewayURL)
	assert.Equal(t, "sms-token", cfg.SMSGatewayToken)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeSilenceWindow(t *testing.T) {
	t.Setenv("SILENCE_WINDOW", "-5m")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SILENCE_WINDOW")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidRetryMaxAttempts(t *testing.T) {
	t.Setenv("RETRY_MAX_ATTEMPTS", "zero")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RETRY_MAX_ATTEMPTS")
}

func TestLoad_JitterFracOutOfRange(t *testing.T) {
	t.Setenv("RETRY_JITTER_FRAC", "1.5")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RETRY_JITTER_FRAC")
}
