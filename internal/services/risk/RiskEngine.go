package risk

import (
	"log"

	"CryptoBacktester/internal/operations/exchange"
)

// Close reasons reported by ShouldClosePosition.
const (
	ReasonStopLoss   = "stop_loss"
	ReasonTakeProfit = "take_profit"
	ReasonMaxLoss    = "max_loss"
)

// Config holds the risk thresholds, all in percent.
type Config struct {
	StopLossPercent   float64
	TakeProfitPercent float64
	MaxLossPercent    float64
}

// Engine evaluates stop-loss, take-profit and max-loss conditions against a
// remembered baseline. The baseline is set by the strategy when a position
// opens and reset after a full close.
type Engine struct {
	config Config

	initialBalance float64
	entryPrice     float64
	entryBalance   float64
}

func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

func (e *Engine) SetInitialBalance(balance float64) {
	e.initialBalance = balance
	log.Printf("Risk baseline: initial balance %.2f", balance)
}

func (e *Engine) SetEntryPrice(price, balance float64) {
	e.entryPrice = price
	e.entryBalance = balance
}

// Reset clears the per-cycle baseline. The initial balance survives so the
// max-loss check keeps guarding the whole run.
func (e *Engine) Reset() {
	e.entryPrice = 0
	e.entryBalance = 0
}

func (e *Engine) EntryPrice() float64 {
	return e.entryPrice
}

func (e *Engine) EntryBalance() float64 {
	return e.entryBalance
}

func (e *Engine) InitialBalance() float64 {
	return e.initialBalance
}

// CheckStopLoss reports whether the adverse excursion from the entry price
// meets the stop-loss threshold. Without an entry price there is no baseline
// and the check never fires.
func (e *Engine) CheckStopLoss(currentPrice float64, side string) bool {
	if e.entryPrice == 0 {
		return false
	}
	threshold := e.config.StopLossPercent / 100.0
	if side == exchange.SideLong {
		drop := (e.entryPrice - currentPrice) / e.entryPrice
		if drop >= threshold {
			log.Printf("Stop loss hit: price %.2f, entry %.2f, drop %.2f%%", currentPrice, e.entryPrice, drop*100)
			return true
		}
		return false
	}
	rise := (currentPrice - e.entryPrice) / e.entryPrice
	if rise >= threshold {
		log.Printf("Stop loss hit: price %.2f, entry %.2f, rise %.2f%%", currentPrice, e.entryPrice, rise*100)
		return true
	}
	return false
}

// CheckTakeProfit mirrors the stop-loss check in the favorable direction.
func (e *Engine) CheckTakeProfit(currentPrice float64, side string) bool {
	if e.entryPrice == 0 {
		return false
	}
	threshold := e.config.TakeProfitPercent / 100.0
	if side == exchange.SideLong {
		rise := (currentPrice - e.entryPrice) / e.entryPrice
		if rise >= threshold {
			log.Printf("Take profit hit: price %.2f, entry %.2f, rise %.2f%%", currentPrice, e.entryPrice, rise*100)
			return true
		}
		return false
	}
	drop := (e.entryPrice - currentPrice) / e.entryPrice
	if drop >= threshold {
		log.Printf("Take profit hit: price %.2f, entry %.2f, drop %.2f%%", currentPrice, e.entryPrice, drop*100)
		return true
	}
	return false
}

// CheckMaxLoss reports whether equity has fallen from the initial balance by
// the max-loss threshold. A nil balance means the balance could not be
// observed this tick; that is never treated as a loss, so the check is
// skipped.
func (e *Engine) CheckMaxLoss(currentBalance *float64) bool {
	if e.initialBalance == 0 || currentBalance == nil {
		return false
	}
	loss := e.initialBalance - *currentBalance
	lossPercent := (loss / e.initialBalance) * 100.0
	if lossPercent >= e.config.MaxLossPercent {
		log.Printf("Max loss limit hit: balance %.2f, initial %.2f, loss %.2f%%", *currentBalance, e.initialBalance, lossPercent)
		return true
	}
	return false
}

// ShouldClosePosition evaluates stop-loss, take-profit and max-loss in that
// strict order and returns the first reason that fires. The order is part of
// the contract: it keeps close reasons deterministic when several thresholds
// are met on the same tick.
func (e *Engine) ShouldClosePosition(currentPrice float64, currentBalance *float64, side string) (bool, string) {
	if e.CheckStopLoss(currentPrice, side) {
		return true, ReasonStopLoss
	}
	if e.CheckTakeProfit(currentPrice, side) {
		return true, ReasonTakeProfit
	}
	if e.CheckMaxLoss(currentBalance) {
		return true, ReasonMaxLoss
	}
	return false, ""
}

// Status describes the current risk situation for reporting.
type Status struct {
	EntryPrice     float64 `json:"entry_price"`
	CurrentPrice   float64 `json:"current_price"`
	InitialBalance float64 `json:"initial_balance"`
	CurrentBalance float64 `json:"current_balance"`

	PriceChangePercent   float64 `json:"price_change_percent"`
	BalanceChange        float64 `json:"balance_change"`
	BalanceChangePercent float64 `json:"balance_change_percent"`

	StopLossPrice   float64 `json:"stop_loss_price"`
	TakeProfitPrice float64 `json:"take_profit_price"`
}

// GetStatus reports the baseline, the favorable-direction price change and
// the derived stop/take trigger prices for the given side.
func (e *Engine) GetStatus(currentPrice, currentBalance float64, side string) Status {
	s := Status{
		EntryPrice:     e.entryPrice,
		CurrentPrice:   currentPrice,
		InitialBalance: e.initialBalance,
		CurrentBalance: currentBalance,
	}

	if e.entryPrice > 0 {
		if side == exchange.SideLong {
			s.PriceChangePercent = (currentPrice - e.entryPrice) / e.entryPrice * 100
			s.StopLossPrice = e.entryPrice * (1 - e.config.StopLossPercent/100)
			s.TakeProfitPrice = e.entryPrice * (1 + e.config.TakeProfitPercent/100)
		} else {
			s.PriceChangePercent = (e.entryPrice - currentPrice) / e.entryPrice * 100
			s.StopLossPrice = e.entryPrice * (1 + e.config.StopLossPercent/100)
			s.TakeProfitPrice = e.entryPrice * (1 - e.config.TakeProfitPercent/100)
		}
	}
	if e.initialBalance > 0 {
		s.BalanceChange = currentBalance - e.initialBalance
		s.BalanceChangePercent = s.BalanceChange / e.initialBalance * 100
	}
	return s
}
