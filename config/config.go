package config

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	RiskSync RiskSyncConfig `yaml:"risksync"`
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
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	OrderStatusTopicName   string `yaml:"order_status_topic_name"`
	ReviewUpdatedTopicName string `yaml:"review_updated_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type RiskSyncConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	Enabled  bool   `yaml:"enabled"`
	APIKey   string `yaml:"api_key"`
	DebugLog bool   `yaml:"debug_log"`

	// Local order statuses driven by remote verdicts. Values may carry the
	// host platform's legacy "wc-" prefix; LoadConfig strips it.
	ApproveStatus string `yaml:"approve_status"`
	ReviewStatus  string `yaml:"review_status"`
	RejectStatus  string `yaml:"reject_status"`

	// Local status at which an order is first submitted to the remote service.
	SubmitStatus string `yaml:"submit_status"`

	FraudMessage string `yaml:"fraud_message"`

	RemoteBaseURL        string `yaml:"remote_base_url"`
	RemoteTimeoutSeconds int    `yaml:"remote_timeout_seconds"`

	// Public base URL of this service, advertised to the remote side when
	// registering postback endpoints. Empty disables registration.
	PostbackBaseURL string `yaml:"postback_base_url"`

	HostAPIBaseURL string `yaml:"host_api_base_url"`
	HostAPIToken   string `yaml:"host_api_token"`

	ReviewCacheTTLSeconds    int `yaml:"review_cache_ttl_seconds"`
	RemoteRateLimitPerMinute int `yaml:"remote_rate_limit_per_minute"`
	OrderLockTTLSeconds      int `yaml:"order_lock_ttl_seconds"`
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

	config.RiskSync.ApproveStatus = stripStatusPrefix(config.RiskSync.ApproveStatus)
	config.RiskSync.ReviewStatus = stripStatusPrefix(config.RiskSync.ReviewStatus)
	config.RiskSync.RejectStatus = stripStatusPrefix(config.RiskSync.RejectStatus)
	config.RiskSync.SubmitStatus = stripStatusPrefix(config.RiskSync.SubmitStatus)

	return &config, nil
}

func stripStatusPrefix(s string) string {
	return strings.TrimPrefix(s, "wc-")
}
