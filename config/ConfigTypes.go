package config

type config struct {
	Exchange ExchangeConfig
	Database DatabaseConfig
}

type ExchangeConfig struct {
	APIKey    string
	SecretKey string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// StrategyConfig is the YAML document describing one strategy run. It is
// consumed by the strategy builders and validated before any run starts.
type StrategyConfig struct {
	Trading    TradingConfig    `yaml:"trading"`
	Martingale MartingaleConfig `yaml:"martingale"`
	Trigger    TriggerConfig    `yaml:"trigger"`
	Risk       RiskConfig       `yaml:"risk"`
}

type TradingConfig struct {
	Symbol   string `yaml:"symbol"`
	Side     string `yaml:"side"` // "long" or "short"
	Leverage int    `yaml:"leverage"`
}

type MartingaleConfig struct {
	InitialPosition float64 `yaml:"initial_position"` // quote currency notional
	Multiplier      float64 `yaml:"multiplier"`
	MaxAdditions    int     `yaml:"max_additions"`
}

type TriggerConfig struct {
	PriceDropPercent float64 `yaml:"price_drop_percent"`
	StartImmediately bool    `yaml:"start_immediately"`
	AdditionCooldown int     `yaml:"addition_cooldown"` // seconds
}

type RiskConfig struct {
	StopLossPercent   float64 `yaml:"stop_loss_percent"`
	TakeProfitPercent float64 `yaml:"take_profit_percent"`
	MaxLossPercent    float64 `yaml:"max_loss_percent"`
}
