// backtest/engine.go

package backtest

import (
	"context"
	"fmt"
	"log"

	"CryptoBacktester/internal/operations/exchange"
	"CryptoBacktester/internal/services/strategy"
)

// Engine drives one strategy against one simulated exchange until the candle
// data is exhausted. Each run owns its exchange/strategy pair; nothing is
// shared between runs, so the replay needs no locking.
type Engine struct {
	exchange *exchange.SimulatedExchange
	strategy strategy.Strategy
	config   Config

	trades []strategy.Trade
}

func NewEngine(sim *exchange.SimulatedExchange, strat strategy.Strategy, config Config) *Engine {
	e := &Engine{
		exchange: sim,
		strategy: strat,
		config:   config,
		trades:   make([]strategy.Trade, 0),
	}
	strat.SetCallbacks(strategy.Callbacks{
		OnTrade: func(trade strategy.Trade) {
			e.trades = append(e.trades, trade)
		},
	})
	return e
}

// Run replays the candle series tick by tick. Only a failed strategy start
// aborts the run; per-tick failures are contained, and a cancelled context
// stops the loop at the next tick boundary. Whatever was accumulated up to
// termination is always returned as results.
func (e *Engine) Run(ctx context.Context) (*Results, error) {
	log.Printf("Backtest starting: %s %s, %d candles, initial balance %.2f",
		e.config.Symbol, e.config.Timeframe, e.exchange.Series().Len(), e.config.InitialBalance)

	if err := e.strategy.Start(ctx); err != nil {
		return nil, fmt.Errorf("strategy start: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			log.Printf("Backtest cancelled: %v", err)
			break
		}
		if !e.runTick(ctx) {
			break
		}
		if !e.exchange.Advance() {
			break
		}
	}

	if err := e.strategy.Stop(ctx, false); err != nil {
		log.Printf("Strategy stop: %v", err)
	}

	results := e.calculateResults()
	log.Printf("Backtest finished: %d trades, final balance %.2f (%+.2f%%)",
		results.TotalTrades, results.FinalBalance, results.TotalReturn)
	return results, nil
}

// runTick executes one strategy tick. Panics and errors inside the decision
// logic are contained here: the tick becomes a no-op and the replay goes on.
func (e *Engine) runTick(ctx context.Context) (active bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Strategy panic contained, tick skipped: %v", r)
			active = true
		}
	}()

	active, err := e.strategy.RunOnce(ctx)
	if err != nil {
		log.Printf("Strategy error, tick skipped: %v", err)
	}
	return active
}
