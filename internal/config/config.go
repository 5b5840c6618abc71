package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the daemon configuration.
type Config struct {
	App struct {
		Name     string
		Timezone string
	}
	Storage struct {
		Path string
	}
	NATS struct {
		URLs           []string
		MaxReconnects  int
		ReconnectWait  time.Duration
		ConnectTimeout time.Duration
	}
	Reminder struct {
		DefaultIntervalMinutes int
		GracePeriod            time.Duration
		RetentionDays          int
	}
	Notifications struct {
		Enabled bool
		Email   struct {
			Enabled  bool
			Host     string
			Port     int
			Username string
			Password string
			From     string
			To       []string
		}
	}
}

// Load reads config.yaml from the given directory, applying defaults for
// everything not set.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetDefault("app.name", "remindd")
	v.SetDefault("app.timezone", "Local")
	v.SetDefault("storage.path", "remindd.db")
	v.SetDefault("nats.urls", []string{"nats://127.0.0.1:4222"})
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.connect_timeout", 5*time.Second)
	v.SetDefault("reminder.default_interval_minutes", 10)
	v.SetDefault("reminder.grace_period", 2*time.Hour)
	v.SetDefault("reminder.retention_days", 30)
	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.email.enabled", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Defaults only.
	}

	var cfg Config
	cfg.App.Name = v.GetString("app.name")
	cfg.App.Timezone = v.GetString("app.timezone")
	cfg.Storage.Path = v.GetString("storage.path")
	cfg.NATS.URLs = v.GetStringSlice("nats.urls")
	cfg.NATS.MaxReconnects = v.GetInt("nats.max_reconnects")
	cfg.NATS.ReconnectWait = v.GetDuration("nats.reconnect_wait")
	cfg.NATS.ConnectTimeout = v.GetDuration("nats.connect_timeout")
	cfg.Reminder.DefaultIntervalMinutes = v.GetInt("reminder.default_interval_minutes")
	cfg.Reminder.GracePeriod = v.GetDuration("reminder.grace_period")
	cfg.Reminder.RetentionDays = v.GetInt("reminder.retention_days")
	cfg.Notifications.Enabled = v.GetBool("notifications.enabled")
	cfg.Notifications.Email.Enabled = v.GetBool("notifications.email.enabled")
	cfg.Notifications.Email.Host = v.GetString("notifications.email.host")
	cfg.Notifications.Email.Port = v.GetInt("notifications.email.port")
	cfg.Notifications.Email.Username = v.GetString("notifications.email.username")
	cfg.Notifications.Email.Password = v.GetString("notifications.email.password")
	cfg.Notifications.Email.From = v.GetString("notifications.email.from")
	cfg.Notifications.Email.To = v.GetStringSlice("notifications.email.to")

	return &cfg, nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" || c.App.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.App.Timezone, err)
	}
	return loc, nil
}
