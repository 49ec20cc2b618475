package utils

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration, loaded from YAML.
type Config struct {
	Capture   CaptureConfig   `yaml:"capture"`
	Rules     RulesConfig     `yaml:"rules"`
	Detection DetectionConfig `yaml:"detection"`
	Alerting  AlertingConfig  `yaml:"alerting"`
	GeoIP     GeoIPConfig     `yaml:"geoip"`
	Storage   StorageConfig   `yaml:"storage"`
	API       APIConfig       `yaml:"api"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CaptureConfig selects the packet source. When PcapFile is set the
// daemon replays it instead of opening the interface.
type CaptureConfig struct {
	Interface   string `yaml:"interface"`
	PcapFile    string `yaml:"pcap_file,omitempty"`
	BPFFilter   string `yaml:"bpf_filter,omitempty"`
	Snaplen     int32  `yaml:"snaplen"`
	Promiscuous bool   `yaml:"promiscuous"`
}

type RulesConfig struct {
	SignatureFile string `yaml:"signature_file"`
}

type DetectionConfig struct {
	LearningPeriodSeconds     int  `yaml:"learning_period_seconds"`
	PortScanPorts             int  `yaml:"port_scan_ports"`
	PortScanSyns              int  `yaml:"port_scan_syns"`
	SynFloodThreshold         int  `yaml:"syn_flood_threshold"`
	DNSQueryLength            int  `yaml:"dns_query_length"`
	HorizontalScanLegacyPorts bool `yaml:"horizontal_scan_legacy_ports"`
	MaxTrackedSources         int  `yaml:"max_tracked_sources"`
}

type AlertingConfig struct {
	QueueSize int            `yaml:"queue_size"`
	Telegram  TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	BotToken        string `yaml:"bot_token"`
	ChatID          string `yaml:"chat_id"`
	ParseMode       string `yaml:"parse_mode"`
	Enabled         bool   `yaml:"enabled"`
	MessageTemplate string `yaml:"message_template,omitempty"`
}

type GeoIPConfig struct {
	Endpoint       string `yaml:"endpoint"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	CacheSize      int    `yaml:"cache_size"`
}

type StorageConfig struct {
	PostgresURL string `yaml:"postgres_url,omitempty"`
	MaxAlerts   int    `yaml:"max_alerts"`
}

type APIConfig struct {
	Port string `yaml:"port"`
}

type MetricsConfig struct {
	Port string `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		filename = "configs/netsentry.yaml"
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	config.applyDefaults()
	config.applyEnvOverrides()
	return &config, nil
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	config := &Config{}
	config.applyDefaults()
	config.applyEnvOverrides()
	return config
}

func (c *Config) applyDefaults() {
	if c.Capture.Interface == "" {
		c.Capture.Interface = "eth0"
	}
	if c.Capture.Snaplen <= 0 {
		c.Capture.Snaplen = 65535
	}
	if c.Rules.SignatureFile == "" {
		c.Rules.SignatureFile = "configs/signature_rules.json"
	}
	if c.Detection.LearningPeriodSeconds <= 0 {
		c.Detection.LearningPeriodSeconds = 300
	}
	if c.Detection.MaxTrackedSources <= 0 {
		c.Detection.MaxTrackedSources = 100000
	}
	if c.Alerting.QueueSize <= 0 {
		c.Alerting.QueueSize = 1000
	}
	if c.Alerting.Telegram.ParseMode == "" {
		c.Alerting.Telegram.ParseMode = "Markdown"
	}
	if c.GeoIP.Endpoint == "" {
		c.GeoIP.Endpoint = "https://ipapi.co"
	}
	if c.GeoIP.TimeoutSeconds <= 0 {
		c.GeoIP.TimeoutSeconds = 5
	}
	if c.GeoIP.CacheSize <= 0 {
		c.GeoIP.CacheSize = 10000
	}
	if c.Storage.MaxAlerts <= 0 {
		c.Storage.MaxAlerts = 10000
	}
	if c.API.Port == "" {
		c.API.Port = "5000"
	}
	if c.Metrics.Port == "" {
		c.Metrics.Port = "9105"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
}

// applyEnvOverrides lets the notification credentials come from the
// environment, which takes precedence over the file.
func (c *Config) applyEnvOverrides() {
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Alerting.Telegram.BotToken = token
		c.Alerting.Telegram.Enabled = true
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		c.Alerting.Telegram.ChatID = chatID
	}
}
