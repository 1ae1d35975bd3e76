package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"screener-alerts/internal/history"
	"screener-alerts/internal/logging"
	"screener-alerts/internal/market"
	"screener-alerts/internal/notify"
	"screener-alerts/internal/provider"
	"screener-alerts/internal/scheduler"
	"screener-alerts/internal/scoring"
	"screener-alerts/internal/tracker"
)

// Config materialises application configuration. Every tunable lives
// here and is injected into components at construction; nothing reads
// process-wide state.
type Config struct {
	App       AppConfig                 `mapstructure:"app"`
	Logging   logging.Config            `mapstructure:"logging"`
	Scoring   scoring.Config            `mapstructure:"scoring"`
	Scheduler scheduler.Options         `mapstructure:"scheduler"`
	Tracking  tracker.Options           `mapstructure:"tracking"`
	Markets   map[string]market.Session `mapstructure:"markets"`
	Storage   StorageConfig             `mapstructure:"storage"`
	Prices    provider.ChartOptions     `mapstructure:"prices"`
	Snapshots SnapshotConfig            `mapstructure:"snapshots"`
	Notify    NotifyConfig              `mapstructure:"notify"`
	Retention RetentionConfig           `mapstructure:"retention"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StorageConfig selects and parameterises the history backend.
type StorageConfig struct {
	Backend  string                 `mapstructure:"backend"` // file | postgres | sheets
	File     FileStorageConfig      `mapstructure:"file"`
	Postgres history.PostgresConfig `mapstructure:"postgres"`
	Sheets   history.SheetsConfig   `mapstructure:"sheets"`
}

// FileStorageConfig locates the local keyed file store.
type FileStorageConfig struct {
	Dir string `mapstructure:"dir"`
}

// SnapshotConfig locates exported feature snapshots.
type SnapshotConfig struct {
	Dir string `mapstructure:"dir"`
}

// NotifyConfig routes save-pass summaries.
type NotifyConfig struct {
	Telegram notify.TelegramConfig `mapstructure:"telegram"`
}

// RetentionConfig bounds how long saved alerts are kept.
type RetentionConfig struct {
	Days int `mapstructure:"days"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCREENER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "screener-alerts")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	defaults := scoring.DefaultConfig()
	v.SetDefault("scoring.weights.trend_alignment", defaults.Weights.TrendAlignment)
	v.SetDefault("scoring.weights.rsi", defaults.Weights.RSI)
	v.SetDefault("scoring.weights.macd", defaults.Weights.MACD)
	v.SetDefault("scoring.weights.bollinger", defaults.Weights.Bollinger)
	v.SetDefault("scoring.weights.adx", defaults.Weights.ADX)
	v.SetDefault("scoring.weights.breakout", defaults.Weights.Breakout)
	v.SetDefault("scoring.weights.volume", defaults.Weights.Volume)
	v.SetDefault("scoring.weights.pattern_each", defaults.Weights.PatternEach)
	v.SetDefault("scoring.weights.pattern_cap", defaults.Weights.PatternCap)
	v.SetDefault("scoring.weights.support_resist", defaults.Weights.SupportResist)
	v.SetDefault("scoring.rsi_oversold", defaults.RSIOversold)
	v.SetDefault("scoring.rsi_overbought", defaults.RSIOverbought)
	v.SetDefault("scoring.direction_margin", defaults.DirectionMargin)
	v.SetDefault("scoring.high_band_min", defaults.HighBandMin)
	v.SetDefault("scoring.mid_band_min", defaults.MidBandMin)
	v.SetDefault("scoring.setups.bullish_low_vol", string(defaults.Setups.BullishLowVol))
	v.SetDefault("scoring.setups.bullish_high_vol", string(defaults.Setups.BullishHighVol))
	v.SetDefault("scoring.setups.bearish_low_vol", string(defaults.Setups.BearishLowVol))
	v.SetDefault("scoring.setups.bearish_high_vol", string(defaults.Setups.BearishHighVol))
	v.SetDefault("scoring.setups.mid_band", string(defaults.Setups.MidBand))

	v.SetDefault("scheduler.min_auto_save_score", 5)
	v.SetDefault("tracking.tracking_window", 20)

	for m, session := range market.DefaultSessions() {
		key := "markets." + strings.ToLower(m.String())
		v.SetDefault(key+".timezone", session.Timezone)
		v.SetDefault(key+".close_hour", session.CloseHour)
		v.SetDefault(key+".close_minute", session.CloseMinute)
	}

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.file.dir", "data/history")
	v.SetDefault("storage.postgres.max_open_conns", 10)
	v.SetDefault("storage.postgres.max_idle_conns", 5)
	v.SetDefault("storage.postgres.conn_max_lifetime", "30m")

	v.SetDefault("prices.timeout", "10s")
	v.SetDefault("prices.user_agent", "screener-alerts/1.0")

	v.SetDefault("snapshots.dir", "data/snapshots")

	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("retention.days", 60)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "file", "postgres", "sheets":
	default:
		return fmt.Errorf("storage.backend must be one of file, postgres, sheets")
	}
	if c.Storage.Backend == "file" && c.Storage.File.Dir == "" {
		return fmt.Errorf("storage.file.dir is required for the file backend")
	}
	if c.Tracking.TrackingWindow < 5 || c.Tracking.TrackingWindow > 20 {
		return fmt.Errorf("tracking.tracking_window must be within [5,20]")
	}
	if c.Scheduler.MinAutoSaveScore < 1 || c.Scheduler.MinAutoSaveScore > 10 {
		return fmt.Errorf("scheduler.min_auto_save_score must be within [1,10]")
	}
	if c.Scoring.DirectionMargin < 0 {
		return fmt.Errorf("scoring.direction_margin cannot be negative")
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("retention.days must be greater than zero")
	}
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" {
			return fmt.Errorf("notify.telegram.bot_token is required when enabled")
		}
		if c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram.chat_id is required when enabled")
		}
	}
	for name := range c.Markets {
		if _, err := market.Parse(name); err != nil {
			return fmt.Errorf("markets: %w", err)
		}
	}
	return nil
}

// Sessions resolves the configured market session table.
func (c *Config) Sessions() map[market.Market]market.Session {
	sessions := market.DefaultSessions()
	for name, session := range c.Markets {
		m, err := market.Parse(name)
		if err != nil {
			continue
		}
		if session.Timezone == "" {
			session.Timezone = sessions[m].Timezone
		}
		sessions[m] = session
	}
	return sessions
}
