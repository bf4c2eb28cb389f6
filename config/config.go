package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Carrier  CarrierConfig  `yaml:"carrier"`
	Hub      HubConfig      `yaml:"hub"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                       string `yaml:"host"`
	Port                       int    `yaml:"port"`
	OrderUpdatedTopicName      string `yaml:"order_updated_topic_name"`
	ShippingRefreshedTopicName string `yaml:"shipping_refreshed_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type CarrierConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIToken string `yaml:"api_token"`

	// "fake" swaps the HTTP client for the deterministic emulator.
	Mode string `yaml:"mode"`
}

type HubConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	SummaryTTLSeconds  int    `yaml:"summary_ttl_seconds"`

	ScanRateLimitPerMinute int `yaml:"scan_rate_limit_per_minute"`

	WorkerPollIntervalSeconds int `yaml:"worker_poll_interval_seconds"`
	WorkerBatchSize           int `yaml:"worker_batch_size"`
	WorkerConcurrency         int `yaml:"worker_concurrency"`
	WorkerLeaseSeconds        int `yaml:"worker_lease_seconds"`
	WorkerRateLimitPerMinute  int `yaml:"worker_rate_limit_per_minute"`

	WorkerHTTPAddr string `yaml:"worker_http_addr"`

	// Worker scheduling (optional). Defaults: active 30 minutes, unknown
	// 60 minutes, settled 30 days, backoff 5/15/30/60 minutes.
	WorkerRefreshActiveMinSeconds int `yaml:"worker_refresh_active_min_seconds"`
	WorkerRefreshActiveMaxSeconds int `yaml:"worker_refresh_active_max_seconds"`
	WorkerRefreshUnknownSeconds   int `yaml:"worker_refresh_unknown_seconds"`
	WorkerRefreshSettledSeconds   int `yaml:"worker_refresh_settled_seconds"`
	WorkerBackoff1Seconds         int `yaml:"worker_backoff_1_seconds"`
	WorkerBackoff2Seconds         int `yaml:"worker_backoff_2_seconds"`
	WorkerBackoff3Seconds         int `yaml:"worker_backoff_3_seconds"`
	WorkerBackoff4Seconds         int `yaml:"worker_backoff_4_seconds"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
