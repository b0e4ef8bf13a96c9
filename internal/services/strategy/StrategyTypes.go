package strategy

import (
	"context"
	"time"
)

// Strategy is the contract the backtest driver runs against. RunOnce
// processes exactly one tick and reports whether the strategy wants to keep
// running; tick-local errors are returned alongside and never stop the run.
type Strategy interface {
	Name() string
	Description() string
	SetCallbacks(callbacks Callbacks)
	Report() Report
	Start(ctx context.Context) error
	Stop(ctx context.Context, closePositions bool) error
	RunOnce(ctx context.Context) (bool, error)
}

// Strategy lifecycle states
const (
	StatusIdle    = "idle"
	StatusRunning = "running"
	StatusStopped = "stopped"
	StatusError   = "error"
)

// Trade event types
const (
	TradeTypeOpen  = "open"
	TradeTypeAdd   = "add"
	TradeTypeClose = "close"
)

// CloseReasonManual marks closes requested by Stop rather than a risk rule.
const CloseReasonManual = "manual_stop"

// Trade is an append-only record of one executed decision. PnL is nil for
// opening and adding trades; only closes realize a result.
type Trade struct {
	Type        string   `json:"type"`
	Side        string   `json:"side"`
	Symbol      string   `json:"symbol"`
	Price       float64  `json:"price"`
	Amount      float64  `json:"amount"`
	OrderID     string   `json:"order_id,omitempty"`
	PnL         *float64 `json:"pnl"`
	CloseReason string   `json:"close_reason,omitempty"`
	Timestamp   int64    `json:"timestamp"`
}

// Callbacks are optional side channels. The backtest driver wires OnTrade to
// its own trade log; all fields may be nil.
type Callbacks struct {
	OnTrade        func(Trade)
	OnStatusChange func(status string)
	OnError        func(message string)
}

// Clock abstracts time lookups so cooldown math can run against simulated
// timestamps during a replay instead of wall-clock time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock implementation used outside backtests.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
