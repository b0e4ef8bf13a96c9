// backtest/types.go

package backtest

import (
	"fmt"

	"CryptoBacktester/internal/operations/candles"
	"CryptoBacktester/internal/operations/exchange"
	"CryptoBacktester/internal/services/strategy"
)

// Simulation config
type Config struct {
	Symbol         string
	Timeframe      string
	InitialBalance float64

	// SubSample expands every candle into one tick per second, so intrabar
	// excursions can trigger decisions between closes.
	SubSample bool
}

// NewConfig creates default config
func NewConfig() Config {
	return Config{
		Timeframe:      "1m",
		InitialBalance: 10000.0,
	}
}

func (c Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("backtest config: symbol is required")
	}
	if c.InitialBalance <= 0 {
		return fmt.Errorf("backtest config: initial balance must be > 0, got %v", c.InitialBalance)
	}
	if _, err := candles.TimeframeSeconds(c.Timeframe); err != nil {
		return fmt.Errorf("backtest config: %w", err)
	}
	return nil
}

// Final backtest results
type Results struct {
	// Balance metrics
	InitialBalance    float64 `json:"initial_balance"`
	FinalBalance      float64 `json:"final_balance"`
	TotalReturn       float64 `json:"total_return"`
	TotalReturnAmount float64 `json:"total_return_amount"`

	// Trade metrics
	TotalTrades int     `json:"total_trades"`
	WinTrades   int     `json:"win_trades"`
	LossTrades  int     `json:"loss_trades"`
	WinRate     float64 `json:"win_rate"`

	// Performance metrics
	MaxDrawdown       float64 `json:"max_drawdown"`
	MaxDrawdownAmount float64 `json:"max_drawdown_amount"`
	SharpeRatio       float64 `json:"sharpe_ratio"`
	ProfitFactor      float64 `json:"profit_factor"`
	AvgWin            float64 `json:"avg_win"`
	AvgLoss           float64 `json:"avg_loss"`
	AvgTradeReturn    float64 `json:"avg_trade_return"`

	// Detailed records
	EquityCurve []exchange.EquityPoint `json:"equity_curve"`
	Trades      []strategy.Trade       `json:"trades"`
	PriceData   []candles.Candle       `json:"price_data"`
}
