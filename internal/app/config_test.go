package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, "record", cfg.ShortagePolicy)
	require.Equal(t, 5*time.Second, cfg.StoreTimeout)
	require.Equal(t, 1, cfg.StoreRetries)
	require.False(t, cfg.KafkaEnabled())
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SHORTAGE_POLICY", "ignore")
	t.Setenv("TRANSFER_CONFLICT_RETRIES", "2")
	t.Setenv("STORE_TIMEOUT", "750ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.True(t, cfg.KafkaEnabled())
	require.Equal(t, "ignore", cfg.ShortagePolicy)
	require.Equal(t, 2, cfg.TransferConflictRetries)
	require.Equal(t, 750*time.Millisecond, cfg.StoreTimeout)
}

func TestLoadConfigRejectsBadPolicy(t *testing.T) {
	t.Setenv("SHORTAGE_POLICY", "panic")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "SHORTAGE_POLICY")
}

func TestLoadConfigRejectsNegativeRetries(t *testing.T) {
	t.Setenv("TRANSFER_CONFLICT_RETRIES", "-1")
	_, err := LoadConfig()
	require.Error(t, err)
}
