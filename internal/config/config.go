package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"desk-sentinel/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Stocks    StocksConfig    `mapstructure:"stocks"`
	Games     GamesConfig     `mapstructure:"games"`
	Options   OptionsConfig   `mapstructure:"options"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Timezone    string `mapstructure:"timezone"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN disables
// persistence; watchers then run on in-memory state only.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// StocksConfig governs the equity watcher.
type StocksConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Watchlist      []string      `mapstructure:"watchlist"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	SeriesCapacity int           `mapstructure:"series_capacity"`
}

// GamesConfig governs the storefront deal watcher.
type GamesConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Slugs        []string      `mapstructure:"slugs"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// SaleFraction is the "on sale" trigger: new price at or below this
	// fraction of the normal price.
	SaleFraction float64 `mapstructure:"sale_fraction"`
}

// OptionsConfig governs the option contract watcher.
type OptionsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Underlyings  []string      `mapstructure:"underlyings"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	ExpiryDays   int           `mapstructure:"expiry_days"`
}

// ProvidersConfig selects market-data backends by available credentials.
type ProvidersConfig struct {
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	Polygon        PolygonConfig   `mapstructure:"polygon"`
	Alpaca         AlpacaConfig    `mapstructure:"alpaca"`
	Chainlink      ChainlinkConfig `mapstructure:"chainlink"`
	ITAD           ITADConfig      `mapstructure:"itad"`
}

// PolygonConfig holds Polygon.io access.
type PolygonConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// AlpacaConfig holds Alpaca market-data access.
type AlpacaConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// ChainlinkConfig holds on-chain aggregator access.
type ChainlinkConfig struct {
	RPCURL string            `mapstructure:"rpc_url"`
	Feeds  map[string]string `mapstructure:"feeds"`
}

// ITADConfig holds IsThereAnyDeal access.
type ITADConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Country    string `mapstructure:"country"`
	MaxEntries int    `mapstructure:"max_entries"`
}

// AlertingConfig defines suppression policy and notification routing.
type AlertingConfig struct {
	// QuietHours is a local-time "HH:MM-HH:MM" window; malformed or empty
	// disables the check rather than failing startup.
	QuietHours string         `mapstructure:"quiet_hours"`
	Cooldown   time.Duration  `mapstructure:"cooldown"`
	Discord    DiscordConfig  `mapstructure:"discord"`
	Telegram   TelegramConfig `mapstructure:"telegram"`
	Limits     LimitsConfig   `mapstructure:"limits"`
}

// DiscordConfig describes the webhook transport.
type DiscordConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
}

// TelegramConfig describes the bot transport.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// LimitsConfig caps outbound payload sizes before sending.
type LimitsConfig struct {
	Text        int `mapstructure:"text"`
	Title       int `mapstructure:"title"`
	Description int `mapstructure:"description"`
	Field       int `mapstructure:"field"`
}

// ScheduleConfig governs the daily ping/brief runner.
type ScheduleConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	// BriefTailLimit bounds how many recent alerts a composed brief quotes.
	BriefTailLimit int `mapstructure:"brief_tail_limit"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SENTINEL")
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
	v.SetDefault("app.name", "desksentinel")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.timezone", "America/Los_Angeles")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("stocks.enabled", true)
	v.SetDefault("stocks.watchlist", []string{"NVDA", "QUBT", "PLTR", "LMT", "JPM", "AAPL"})
	v.SetDefault("stocks.poll_interval", "30s")
	v.SetDefault("stocks.series_capacity", 200)

	v.SetDefault("games.enabled", true)
	v.SetDefault("games.slugs", []string{"hades", "cyberpunk-2077"})
	v.SetDefault("games.poll_interval", "1h")
	v.SetDefault("games.sale_fraction", 0.8)

	v.SetDefault("options.enabled", false)
	v.SetDefault("options.underlyings", []string{"NVDA"})
	v.SetDefault("options.poll_interval", "30s")
	v.SetDefault("options.expiry_days", 5)

	v.SetDefault("providers.request_timeout", "10s")
	v.SetDefault("providers.polygon.base_url", "https://api.polygon.io")
	v.SetDefault("providers.alpaca.base_url", "https://data.alpaca.markets")
	v.SetDefault("providers.itad.base_url", "https://api.isthereanydeal.com")
	v.SetDefault("providers.itad.country", "US")
	v.SetDefault("providers.itad.max_entries", 3)

	v.SetDefault("alerting.quiet_hours", "23:00-07:00")
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.discord.enabled", true)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.limits.text", 1900)
	v.SetDefault("alerting.limits.title", 256)
	v.SetDefault("alerting.limits.description", 4096)
	v.SetDefault("alerting.limits.field", 1024)

	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.check_interval", "30s")
	v.SetDefault("schedule.brief_tail_limit", 40)

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
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

// Validate performs basic sanity checks. Missing transport secrets are not
// errors here: a transport without credentials is simply not wired, so a bad
// webhook never takes the watchers down with it.
func (c *Config) Validate() error {
	if c.Stocks.PollInterval <= 0 {
		return fmt.Errorf("stocks.poll_interval must be greater than zero")
	}
	if c.Games.PollInterval <= 0 {
		return fmt.Errorf("games.poll_interval must be greater than zero")
	}
	if c.Options.PollInterval <= 0 {
		return fmt.Errorf("options.poll_interval must be greater than zero")
	}
	if c.Stocks.SeriesCapacity <= 0 {
		return fmt.Errorf("stocks.series_capacity must be greater than zero")
	}
	if c.Games.SaleFraction <= 0 || c.Games.SaleFraction >= 1 {
		return fmt.Errorf("games.sale_fraction must be inside (0, 1)")
	}
	if c.Schedule.CheckInterval <= 0 || c.Schedule.CheckInterval > time.Minute {
		return fmt.Errorf("schedule.check_interval must be inside (0, 1m]")
	}
	if c.Alerting.Cooldown < 0 {
		return fmt.Errorf("alerting.cooldown cannot be negative")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// Location resolves the configured timezone, defaulting to UTC on failure so
// quiet hours and schedules still evaluate deterministically.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
