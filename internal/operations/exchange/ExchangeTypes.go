package exchange

import (
	"errors"

	"CryptoBacktester/internal/operations/candles"
)

// Account balance in quote currency.
type Balance struct {
	Total float64 `json:"total"`
	Free  float64 `json:"free"`
	Used  float64 `json:"used"`
}

// Position is the single open position per symbol. Contracts and EntryPrice
// are the held state; MarkPrice, UnrealizedPnL and Notional are derived at
// query time.
type Position struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Contracts  float64 `json:"contracts"`
	EntryPrice float64 `json:"entryPrice"`
	Margin     float64 `json:"margin"`

	MarkPrice     float64 `json:"markPrice"`
	UnrealizedPnL float64 `json:"unrealizedPnl"`
	Notional      float64 `json:"notional"`
}

// Order is the ephemeral fill record. Amount is notional in quote currency,
// Contracts the filled quantity. Orders are always fully filled at the
// current candle close.
type Order struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Amount    float64 `json:"amount"`
	Price     float64 `json:"price"`
	Contracts float64 `json:"contracts"`
	Timestamp int64   `json:"timestamp"`
	Status    string  `json:"status"`
	Filled    float64 `json:"filled"`
	PnL       float64 `json:"pnl,omitempty"`
}

type Ticker struct {
	Symbol    string  `json:"symbol"`
	Last      float64 `json:"last"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Timestamp int64   `json:"timestamp"`
}

// EquityPoint records total account value after an event. Owned by the
// simulated exchange, consumed read-only for metrics.
type EquityPoint struct {
	Timestamp int64   `json:"timestamp"`
	Balance   float64 `json:"balance"`
}

const (
	SideLong  = "long"
	SideShort = "short"

	OrderSideBuy  = "buy"
	OrderSideSell = "sell"

	OrderStatusFilled = "filled"

	// Margin approximation for short entries, matching the long side's
	// full-notional margin at 1x.
	AssumedLeverage = 10
)

var (
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrPriceUnavailable     = errors.New("price unavailable")
)

// Exchange is the venue contract strategies trade against. The simulated
// exchange implements it in-memory; a live adapter would satisfy the same
// interface.
type Exchange interface {
	GetTicker(symbol string) (*Ticker, error)
	GetOHLCV(symbol string, limit int) ([]candles.Candle, error)
	GetBalance() (*Balance, error)
	GetOpenPosition(symbol string) (*Position, error)
	GetAllOpenPositions() (map[string]*Position, error)
	CreateMarketOrder(symbol, side string, amount float64, reduceOnly bool) (*Order, error)
	ClosePosition(symbol string) (bool, error)
	SetLeverage(symbol string, leverage int) error
}
