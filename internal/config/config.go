package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/sentinelops/ptt/internal/domain"
)

type ChannelConfig struct {
	ID                string `mapstructure:"id"`
	DisplayName       string `mapstructure:"display_name"`
	Kind              string `mapstructure:"kind"`
	RequiredClearance int    `mapstructure:"required_clearance"`
}

type DeviceConfig struct {
	ID    string `mapstructure:"id"`
	Kind  string `mapstructure:"kind"`
	Label string `mapstructure:"label"`
}

type Config struct {
	Mode string `mapstructure:"mode"`
	Port int    `mapstructure:"port"`

	SignalingURL  string `mapstructure:"signaling_url"`
	SessionURL    string `mapstructure:"session_url"`
	IdentityToken string `mapstructure:"identity_token"`
	Clearance     int    `mapstructure:"clearance"`

	Region       string `mapstructure:"region"`
	MediaBaseURL string `mapstructure:"media_base_url"`

	PingPeriod time.Duration `mapstructure:"ping_period"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	BackoffMin time.Duration `mapstructure:"backoff_min"`
	BackoffMax time.Duration `mapstructure:"backoff_max"`

	Channels []ChannelConfig `mapstructure:"channels"`
	Devices  []DeviceConfig  `mapstructure:"devices"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("signaling_url", "ws://localhost:8080/api/ws/signal")
	v.SetDefault("session_url", "http://localhost:8080")
	v.SetDefault("region", "us-west-2")
	v.SetDefault("media_base_url", "http://localhost:8080")
	v.SetDefault("ping_period", "54s")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("backoff_min", "500ms")
	v.SetDefault("backoff_max", "30s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Catalog converts the configured channel list into the validated runtime
// catalog.
func (c *Config) Catalog() (domain.Catalog, error) {
	channels := make([]domain.Channel, 0, len(c.Channels))
	for _, cc := range c.Channels {
		channels = append(channels, domain.Channel{
			ID:                domain.ChannelID(cc.ID),
			DisplayName:       cc.DisplayName,
			Kind:              domain.ChannelKind(cc.Kind),
			RequiredClearance: cc.RequiredClearance,
		})
	}
	return domain.NewCatalog(channels...)
}

// StaticDevices returns the configured device list for deployments without
// a runtime enumerator.
func (c *Config) StaticDevices() []domain.Device {
	devices := make([]domain.Device, 0, len(c.Devices))
	for _, dc := range c.Devices {
		devices = append(devices, domain.Device{
			ID:    domain.DeviceID(dc.ID),
			Kind:  domain.DeviceKind(dc.Kind),
			Label: dc.Label,
		})
	}
	return devices
}
