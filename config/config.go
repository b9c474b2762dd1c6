package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	LogLevel   string           `mapstructure:"log_level"`
	TikTok     TikTokConfig     `mapstructure:"tiktok"`
	Probe      ProbeConfig      `mapstructure:"probe"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Port int
	Host string
}

type TikTokConfig struct {
	BaseURL        string `mapstructure:"baseUrl"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
	DefaultEvent   string `mapstructure:"defaultEvent"`
}

type ProbeConfig struct {
	TimeoutSeconds int              `mapstructure:"timeoutSeconds"`
	GeoProviders   []ProviderConfig `mapstructure:"geoProviders"`
}

type ProviderConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

type MonitoringConfig struct {
	PrometheusPort int    `mapstructure:"prometheusPort"`
	MetricsPath    string `mapstructure:"metricsPath"`
}

func (c TikTokConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c ProbeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("tiktok.baseUrl", "https://business-api.tiktok.com")
	viper.SetDefault("tiktok.timeoutSeconds", 5)
	viper.SetDefault("tiktok.defaultEvent", "PageView")
	viper.SetDefault("probe.timeoutSeconds", 5)
	viper.SetDefault("monitoring.prometheusPort", 9090)
	viper.SetDefault("monitoring.metricsPath", "/metrics")

	// The config file is optional; defaults and env overrides are enough
	// to run the service.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Override with environment variables
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if promPort := os.Getenv("PROMETHEUS_PORT"); promPort != "" {
		if p, err := strconv.Atoi(promPort); err == nil {
			cfg.Monitoring.PrometheusPort = p
		}
	}

	if base := os.Getenv("TIKTOK_BASE_URL"); base != "" {
		cfg.TikTok.BaseURL = base
	}
	if timeout := os.Getenv("TIKTOK_TIMEOUT_SECONDS"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil && t > 0 {
			cfg.TikTok.TimeoutSeconds = t
			cfg.Probe.TimeoutSeconds = t
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if len(cfg.Probe.GeoProviders) == 0 {
		cfg.Probe.GeoProviders = []ProviderConfig{
			{Name: "ipapi.co", URL: "https://ipapi.co/json/"},
			{Name: "ip-api.com", URL: "http://ip-api.com/json/"},
		}
	}

	return &cfg, nil
}
