package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Stocks:   StocksConfig{PollInterval: 30 * time.Second, SeriesCapacity: 200},
		Games:    GamesConfig{PollInterval: time.Hour, SaleFraction: 0.8},
		Options:  OptionsConfig{PollInterval: 30 * time.Second},
		Schedule: ScheduleConfig{CheckInterval: 30 * time.Second},
		Export:   ExportConfig{MaxDataPoints: 1000},
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	mutations := map[string]func(*Config){
		"zero stock interval":     func(c *Config) { c.Stocks.PollInterval = 0 },
		"zero series capacity":    func(c *Config) { c.Stocks.SeriesCapacity = 0 },
		"sale fraction too large": func(c *Config) { c.Games.SaleFraction = 1.5 },
		"check interval over 1m":  func(c *Config) { c.Schedule.CheckInterval = 2 * time.Minute },
		"zero export points":      func(c *Config) { c.Export.MaxDataPoints = 0 },
	}
	for name, mutate := range mutations {
		cfg := validConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s should be rejected", name)
		}
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := validConfig()
	cfg.App.Timezone = "Not/AZone"
	if cfg.Location() != time.UTC {
		t.Fatal("bad timezone should fall back to UTC")
	}
}
