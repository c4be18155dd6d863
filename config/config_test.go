package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  order_status_topic_name: "orders.status_changed"
  review_updated_topic_name: "reviews.updated"
redis:
  host: "localhost"
  port: 6379
risksync:
  http_addr: ":8080"
  kafka_consumer_group: "risk-api"
  enabled: true
  api_key: "secret"
  approve_status: "processing"
  review_status: "on-hold"
  reject_status: "cancelled"
  review_cache_ttl_seconds: 600
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "orders.status_changed", cfg.Kafka.OrderStatusTopicName)
	require.Equal(t, "reviews.updated", cfg.Kafka.ReviewUpdatedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.RiskSync.HTTPAddr)
	require.True(t, cfg.RiskSync.Enabled)
	require.Equal(t, "on-hold", cfg.RiskSync.ReviewStatus)
}

func TestLoadConfig_StripsStatusPrefix(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
risksync:
  approve_status: "wc-processing"
  review_status: "wc-on-hold"
  reject_status: "wc-cancelled"
  submit_status: "wc-processing"
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "processing", cfg.RiskSync.ApproveStatus)
	require.Equal(t, "on-hold", cfg.RiskSync.ReviewStatus)
	require.Equal(t, "cancelled", cfg.RiskSync.RejectStatus)
	require.Equal(t, "processing", cfg.RiskSync.SubmitStatus)
}
