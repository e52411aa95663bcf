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
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Couriers CouriersConfig `yaml:"couriers"`
	Bot      BotConfig      `yaml:"bot"`
}

type DatabaseConfig struct {
	// Driver is "postgres" (default) or "memory".
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Empty topics disable the corresponding flow.
	InboundTopicName       string `yaml:"inbound_topic_name"`
	ShipmentEventTopicName string `yaml:"shipment_event_topic_name"`
}

// Empty Host disables Redis; locks fall back to in-process.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type WhatsAppConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIVersion     string `yaml:"api_version"`
	PhoneNumberID  string `yaml:"phone_number_id"`
	AccessToken    string `yaml:"access_token"`
	VerifyToken    string `yaml:"verify_token"`
	AppSecret      string `yaml:"app_secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type CouriersConfig struct {
	ShipmozoEnabled   *bool  `yaml:"shipmozo_enabled"`
	ShipmozoBaseURL   string `yaml:"shipmozo_base_url"`
	ShipmozoPublicKey string `yaml:"shipmozo_public_key"`

	DelhiveryEnabled *bool  `yaml:"delhivery_enabled"`
	DelhiveryBaseURL string `yaml:"delhivery_base_url"`

	// Fake courier for demos; advances one stage per step.
	FakeEnabled     bool `yaml:"fake_enabled"`
	FakeStepSeconds int  `yaml:"fake_step_seconds"`

	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type BotConfig struct {
	GRPCAddr               string `yaml:"grpc_addr"`
	HTTPAddr               string `yaml:"http_addr"`
	KafkaConsumerGroup     string `yaml:"kafka_consumer_group"`
	HistoryCacheTTLSeconds int    `yaml:"history_cache_ttl_seconds"`

	WorkerHTTPAddr                    string `yaml:"worker_http_addr"`
	WorkerMinIntervalSeconds          int    `yaml:"worker_min_interval_seconds"`
	WorkerMaxIntervalSeconds          int    `yaml:"worker_max_interval_seconds"`
	WorkerBatchSize                   int    `yaml:"worker_batch_size"`
	WorkerConcurrency                 int    `yaml:"worker_concurrency"`
	WorkerFetchTimeoutSeconds         int    `yaml:"worker_fetch_timeout_seconds"`
	WorkerRateLimitPerMinute          int    `yaml:"worker_rate_limit_per_minute"`
	WorkerRateLimitShipmozoPerMinute  int    `yaml:"worker_rate_limit_shipmozo_per_minute"`
	WorkerRateLimitDelhiveryPerMinute int    `yaml:"worker_rate_limit_delhivery_per_minute"`
	WorkerMessageRetentionHours       int    `yaml:"worker_message_retention_hours"`

	WorkerBackoff1Seconds int `yaml:"worker_backoff_1_seconds"`
	WorkerBackoff2Seconds int `yaml:"worker_backoff_2_seconds"`
	WorkerBackoff3Seconds int `yaml:"worker_backoff_3_seconds"`
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

	config.applyEnv()
	return &config, nil
}

// applyEnv lets secrets live outside the YAML file.
func (c *Config) applyEnv() {
	for env, dst := range map[string]*string{
		"WHATSAPP_ACCESS_TOKEN":    &c.WhatsApp.AccessToken,
		"WHATSAPP_VERIFY_TOKEN":    &c.WhatsApp.VerifyToken,
		"WHATSAPP_APP_SECRET":      &c.WhatsApp.AppSecret,
		"WHATSAPP_PHONE_NUMBER_ID": &c.WhatsApp.PhoneNumberID,
		"SHIPMOZO_PUBLIC_KEY":      &c.Couriers.ShipmozoPublicKey,
		"DATABASE_PASSWORD":        &c.Database.Password,
		"REDIS_PASSWORD":           &c.Redis.Password,
	} {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*dst = v
		}
	}
}

func enabled(v *bool) bool { return v == nil || *v }

func (c CouriersConfig) Shipmozo() bool  { return enabled(c.ShipmozoEnabled) }
func (c CouriersConfig) Delhivery() bool { return enabled(c.DelhiveryEnabled) }

// ConnString builds the Postgres DSN.
func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}
