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
  order_updated_topic_name: "repairhub.order.updated"
  shipping_refreshed_topic_name: "repairhub.shipping.refreshed"
redis:
  host: "localhost"
  port: 6379
carrier:
  base_url: "https://app.bosta.co/api/v2"
  api_token: "secret"
hub:
  http_addr: ":8080"
  kafka_consumer_group: "hub-api"
  summary_ttl_seconds: 60
  scan_rate_limit_per_minute: 120
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "repairhub.order.updated", cfg.Kafka.OrderUpdatedTopicName)
	require.Equal(t, "repairhub.shipping.refreshed", cfg.Kafka.ShippingRefreshedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, "secret", cfg.Carrier.APIToken)
	require.Equal(t, ":8080", cfg.Hub.HTTPAddr)
	require.Equal(t, 120, cfg.Hub.ScanRateLimitPerMinute)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
