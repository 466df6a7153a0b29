package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`

	DefenseWindowSecs int    `env:"DEFENSE_WINDOW_SECONDS" envDefault:"60"`
	SweepIntervalSecs int    `env:"SWEEP_INTERVAL_SECONDS" envDefault:"5"`
	ExpiryPolicy      string `env:"EXPIRY_POLICY" envDefault:"default_win"`
	StakePercentages  []int  `env:"STAKE_PERCENTAGES" envDefault:"25,50,75"`

	NotifyEnabled    bool   `env:"NOTIFY_ENABLED" envDefault:"false"`
	NotifyWebhookURL string `env:"NOTIFY_WEBHOOK_URL"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.ExpiryPolicy != "default_win" && cfg.ExpiryPolicy != "void" {
		return cfg, fmt.Errorf("invalid EXPIRY_POLICY %q", cfg.ExpiryPolicy)
	}
	if cfg.DefenseWindowSecs < 1 {
		return cfg, fmt.Errorf("DEFENSE_WINDOW_SECONDS must be >= 1")
	}
	for _, pct := range cfg.StakePercentages {
		if pct < 1 || pct > 100 {
			return cfg, fmt.Errorf("invalid stake percentage %d", pct)
		}
	}
	return cfg, nil
}
