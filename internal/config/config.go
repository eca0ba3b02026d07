package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	LogLevel  string                  `toml:"log_level"`
	Scheduler SchedulerConfig         `toml:"scheduler"`
	Storage   StorageConfig           `toml:"storage"`
	Server    ServerConfig            `toml:"server"`
	Assets    AssetsConfig            `toml:"assets"`
	Sources   map[string]SourceConfig `toml:"sources"`
	Platforms PlatformsConfig         `toml:"platforms"`
}

type SchedulerConfig struct {
	Interval         string `toml:"interval"`
	MaxPerCycle      int    `toml:"max_per_cycle"`
	FailureThreshold int    `toml:"failure_threshold"`
	BackoffExtension string `toml:"backoff_extension"`
	// RetryTransient keeps items whose every platform outcome was transient
	// or rate-limited eligible for the next cycle instead of marking them
	// permanently attempted.
	RetryTransient bool `toml:"retry_transient"`
}

type StorageConfig struct {
	Type string `toml:"type"`
	Path string `toml:"path"`
}

type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type AssetsConfig struct {
	CaptionTemplate string `toml:"caption_template"`
	MaxCaption      int    `toml:"max_caption"`
	MaxAbstract     int    `toml:"max_abstract"`
	MediaHostURL    string `toml:"media_host_url"`
	WorkDir         string `toml:"work_dir"`
}

type SourceConfig struct {
	Type     string                 `toml:"type"`
	Enabled  bool                   `toml:"enabled"`
	Settings map[string]interface{} `toml:"settings"`
}

type PlatformsConfig struct {
	Instagram InstagramConfig `toml:"instagram"`
	YouTube   YouTubeConfig   `toml:"youtube"`
	Discord   DiscordConfig   `toml:"discord"`
}

type InstagramConfig struct {
	Enabled      bool   `toml:"enabled"`
	AccountID    string `toml:"account_id"`
	AccessToken  string `toml:"access_token"`
	PostsPerHour int    `toml:"posts_per_hour"`
}

type YouTubeConfig struct {
	Enabled     bool   `toml:"enabled"`
	AccessToken string `toml:"access_token"`
	DailyQuota  int    `toml:"daily_quota"`
	Privacy     string `toml:"privacy"`
}

type DiscordConfig struct {
	Enabled   bool   `toml:"enabled"`
	BotToken  string `toml:"bot_token"`
	ChannelID string `toml:"channel_id"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	switch config.LogLevel {
	case "":
		config.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", config.LogLevel)
	}

	if config.Scheduler.Interval == "" {
		config.Scheduler.Interval = "15m"
	}
	if _, err := time.ParseDuration(config.Scheduler.Interval); err != nil {
		return fmt.Errorf("invalid scheduler interval: %w", err)
	}

	if config.Scheduler.BackoffExtension == "" {
		config.Scheduler.BackoffExtension = "5m"
	}
	if _, err := time.ParseDuration(config.Scheduler.BackoffExtension); err != nil {
		return fmt.Errorf("invalid backoff extension: %w", err)
	}

	if config.Scheduler.MaxPerCycle <= 0 {
		config.Scheduler.MaxPerCycle = 1
	}
	if config.Scheduler.FailureThreshold <= 0 {
		config.Scheduler.FailureThreshold = 3
	}

	if config.Storage.Type == "" {
		config.Storage.Type = "sqlite"
	}
	if config.Storage.Path == "" {
		config.Storage.Path = "./newsreel.db"
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":10000"
	}

	if config.Assets.MaxCaption <= 0 {
		config.Assets.MaxCaption = 500
	}
	if config.Assets.MaxAbstract <= 0 {
		config.Assets.MaxAbstract = 150
	}
	if config.Assets.MediaHostURL == "" {
		config.Assets.MediaHostURL = "https://tmpfiles.org/api/v1/upload"
	}

	enabledSources := 0
	for _, src := range config.Sources {
		if src.Enabled {
			enabledSources++
		}
	}
	if enabledSources == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}

	return validateCredentials(config)
}

// validateCredentials fails fast before the loop starts: an enabled platform
// with a missing mandatory credential is a startup error, not a per-cycle one.
func validateCredentials(config *Config) error {
	ig := config.Platforms.Instagram
	if ig.Enabled {
		if ig.AccessToken == "" {
			return fmt.Errorf("instagram enabled but access_token is missing")
		}
		if ig.AccountID == "" {
			return fmt.Errorf("instagram enabled but account_id is missing")
		}
	}

	yt := config.Platforms.YouTube
	if yt.Enabled && yt.AccessToken == "" {
		return fmt.Errorf("youtube enabled but access_token is missing")
	}

	dc := config.Platforms.Discord
	if dc.Enabled {
		if dc.BotToken == "" {
			return fmt.Errorf("discord enabled but bot_token is missing")
		}
		if dc.ChannelID == "" {
			return fmt.Errorf("discord enabled but channel_id is missing")
		}
	}

	if !ig.Enabled && !yt.Enabled && !dc.Enabled {
		return fmt.Errorf("at least one platform must be enabled")
	}

	return nil
}

func (c *SchedulerConfig) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.Interval)
	return d
}

func (c *SchedulerConfig) BackoffExtensionDuration() time.Duration {
	d, _ := time.ParseDuration(c.BackoffExtension)
	return d
}

func GetString(settings map[string]interface{}, key string, defaultValue string) string {
	if val, ok := settings[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultValue
}

func GetInt(settings map[string]interface{}, key string, defaultValue int) int {
	if val, ok := settings[key]; ok {
		if i, ok := val.(int64); ok {
			return int(i)
		}
		if i, ok := val.(int); ok {
			return i
		}
	}
	return defaultValue
}

func GetStringSlice(settings map[string]interface{}, key string) []string {
	if val, ok := settings[key]; ok {
		if arr, ok := val.([]interface{}); ok {
			result := make([]string, 0, len(arr))
			for _, item := range arr {
				if str, ok := item.(string); ok {
					result = append(result, str)
				}
			}
			return result
		}
	}
	return []string{}
}
