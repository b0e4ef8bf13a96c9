package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

func Load() (*config, error) {
	if err := godotenv.Load(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	return &config{
		Exchange: ExchangeConfig{
			APIKey:    os.Getenv("BINANCE_API_KEY"),
			SecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		},
		Database: DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     EnvtoInt(os.Getenv("DB_PORT")),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
		},
	}, nil
}

// LoadStrategyConfig reads and validates a strategy YAML document. Invalid
// documents fail here, before any run starts.
func LoadStrategyConfig(path string) (*StrategyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading strategy config: %w", err)
	}

	var cfg StrategyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing strategy config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *StrategyConfig) Validate() error {
	if c.Trading.Symbol == "" {
		return fmt.Errorf("strategy config: trading.symbol is required")
	}
	if c.Trading.Side != "long" && c.Trading.Side != "short" {
		return fmt.Errorf("strategy config: trading.side must be \"long\" or \"short\", got %q", c.Trading.Side)
	}
	if c.Trading.Leverage < 1 {
		return fmt.Errorf("strategy config: trading.leverage must be >= 1, got %d", c.Trading.Leverage)
	}
	if c.Martingale.InitialPosition <= 0 {
		return fmt.Errorf("strategy config: martingale.initial_position must be > 0, got %v", c.Martingale.InitialPosition)
	}
	if c.Martingale.Multiplier <= 1 {
		return fmt.Errorf("strategy config: martingale.multiplier must be > 1, got %v", c.Martingale.Multiplier)
	}
	if c.Martingale.MaxAdditions < 0 {
		return fmt.Errorf("strategy config: martingale.max_additions must be >= 0, got %d", c.Martingale.MaxAdditions)
	}
	if c.Trigger.PriceDropPercent <= 0 {
		return fmt.Errorf("strategy config: trigger.price_drop_percent must be > 0, got %v", c.Trigger.PriceDropPercent)
	}
	return nil
}

// helper env(string) to int
func EnvtoInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}
