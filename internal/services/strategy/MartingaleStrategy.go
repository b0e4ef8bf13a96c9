package strategy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"CryptoBacktester/config"
	"CryptoBacktester/internal/operations/exchange"
	"CryptoBacktester/internal/services/risk"
)

// Martingale opens a position (immediately or on a price trigger), adds to it
// with geometrically growing size as price moves against it, and closes on
// the risk engine's signal. After a close it resets its cycle state and keeps
// monitoring, so one run can contain many cycles.
type Martingale struct {
	Base

	exchange exchange.Exchange
	risk     *risk.Engine
	sizer    *PositionSizer
	clock    Clock

	symbol           string
	side             string
	leverage         int
	startImmediately bool

	primed       bool
	entryBalance float64
}

func NewMartingale(cfg *config.StrategyConfig, ex exchange.Exchange, riskEngine *risk.Engine, clock Clock) *Martingale {
	if clock == nil {
		clock = SystemClock{}
	}
	sizer := NewPositionSizer(SizerConfig{
		InitialPosition:  cfg.Martingale.InitialPosition,
		Multiplier:       cfg.Martingale.Multiplier,
		PriceDropPercent: cfg.Trigger.PriceDropPercent,
		MaxAdditions:     cfg.Martingale.MaxAdditions,
		AdditionCooldown: time.Duration(cfg.Trigger.AdditionCooldown) * time.Second,
		Side:             cfg.Trading.Side,
	}, clock)

	return &Martingale{
		Base:             NewBase("martingale", "Adds to a losing position on fixed price drops with geometrically growing size"),
		exchange:         ex,
		risk:             riskEngine,
		sizer:            sizer,
		clock:            clock,
		symbol:           cfg.Trading.Symbol,
		side:             cfg.Trading.Side,
		leverage:         cfg.Trading.Leverage,
		startImmediately: cfg.Trigger.StartImmediately,
	}
}

// Start configures leverage, snapshots the initial balance for the max-loss
// guard and activates the strategy. Failures here abort the run before any
// tick is processed.
func (m *Martingale) Start(ctx context.Context) error {
	if err := m.exchange.SetLeverage(m.symbol, m.leverage); err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}

	bal, err := m.exchange.GetBalance()
	if err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}
	if bal == nil {
		return errors.New("balance unavailable")
	}
	m.risk.SetInitialBalance(bal.Total)

	m.primed = false
	m.SetActive(true)
	m.SetRunning(true)
	m.SetStatus(StatusRunning)
	log.Printf("Strategy %s started: %s %s, leverage %dx", m.Name(), m.side, m.symbol, m.leverage)
	return nil
}

// Stop deactivates the strategy, optionally flattening any open position
// first.
func (m *Martingale) Stop(ctx context.Context, closePositions bool) error {
	if closePositions {
		pos, err := m.exchange.GetOpenPosition(m.symbol)
		if err != nil {
			return fmt.Errorf("fetch position: %w", err)
		}
		if pos != nil {
			price := pos.EntryPrice
			ticker, err := m.exchange.GetTicker(m.symbol)
			if err != nil {
				return fmt.Errorf("fetch ticker: %w", err)
			}
			if ticker != nil {
				price = ticker.Last
			}

			var balanceTotal *float64
			if bal, err := m.exchange.GetBalance(); err == nil && bal != nil {
				balanceTotal = &bal.Total
			}
			if err := m.closePosition(price, pos, CloseReasonManual, balanceTotal); err != nil {
				return err
			}
		}
	}

	m.SetActive(false)
	m.SetRunning(false)
	m.SetStatus(StatusStopped)
	log.Printf("Strategy %s stopped", m.Name())
	return nil
}

// RunOnce processes one tick. Errors are tick-local: the strategy stays
// active and the caller decides whether to log and continue.
func (m *Martingale) RunOnce(ctx context.Context) (bool, error) {
	if !m.IsActive() {
		return false, nil
	}

	ticker, err := m.exchange.GetTicker(m.symbol)
	if err != nil {
		return true, fmt.Errorf("fetch ticker: %w", err)
	}
	if ticker == nil {
		// No price this tick, nothing to decide.
		return true, nil
	}
	price := ticker.Last

	m.sizer.UpdateReference(price)

	pos, err := m.exchange.GetOpenPosition(m.symbol)
	if err != nil {
		return true, fmt.Errorf("fetch position: %w", err)
	}
	if pos != nil {
		return true, m.manageOpenPosition(price, pos)
	}
	return true, m.maybeEnter(price)
}

func (m *Martingale) manageOpenPosition(price float64, pos *exchange.Position) error {
	// A failed balance fetch skips the balance-dependent checks rather
	// than counting as a loss.
	var balanceTotal *float64
	bal, err := m.exchange.GetBalance()
	if err != nil {
		log.Printf("Balance unavailable: %v", err)
	} else if bal != nil {
		balanceTotal = &bal.Total
	}

	if shouldClose, reason := m.risk.ShouldClosePosition(price, balanceTotal, m.side); shouldClose {
		return m.closePosition(price, pos, reason, balanceTotal)
	}

	if m.sizer.ShouldAdd(price) {
		return m.addToPosition(price)
	}
	return nil
}

func (m *Martingale) maybeEnter(price float64) error {
	if m.startImmediately && !m.primed {
		return m.openPosition(price)
	}
	if m.sizer.ShouldOpen(price) {
		return m.openPosition(price)
	}
	return nil
}

func (m *Martingale) openPosition(price float64) error {
	// Balance before the fill is the baseline for this cycle's pnl.
	var entryBalance float64
	if bal, err := m.exchange.GetBalance(); err == nil && bal != nil {
		entryBalance = bal.Total
	}

	amount := m.sizer.Size(0)
	order, err := m.exchange.CreateMarketOrder(m.symbol, m.orderSide(), amount, false)
	if err != nil {
		if errors.Is(err, exchange.ErrInsufficientBalance) {
			m.ReportError(fmt.Sprintf("entry skipped: %v", err))
			return nil
		}
		return fmt.Errorf("entry order: %w", err)
	}

	m.primed = true
	m.entryBalance = entryBalance
	m.sizer.SetReference(order.Price)
	m.risk.SetEntryPrice(order.Price, entryBalance)

	m.RecordTrade(Trade{
		Type:      TradeTypeOpen,
		Side:      m.side,
		Symbol:    m.symbol,
		Price:     order.Price,
		Amount:    amount,
		OrderID:   order.ID,
		Timestamp: m.clock.Now().UnixMilli(),
	})
	log.Printf("Opened %s position: %.2f %s at %.2f", m.side, amount, m.symbol, order.Price)
	return nil
}

func (m *Martingale) addToPosition(price float64) error {
	amount := m.sizer.Size(m.sizer.AdditionCount() + 1)
	order, err := m.exchange.CreateMarketOrder(m.symbol, m.orderSide(), amount, false)
	if err != nil {
		if errors.Is(err, exchange.ErrInsufficientBalance) {
			m.ReportError(fmt.Sprintf("addition skipped: %v", err))
			return nil
		}
		return fmt.Errorf("addition order: %w", err)
	}
	m.sizer.RecordAddition()

	// The exchange holds the weighted entry; rebase the risk checks on it.
	if pos, err := m.exchange.GetOpenPosition(m.symbol); err == nil && pos != nil {
		m.risk.SetEntryPrice(pos.EntryPrice, m.entryBalance)
	}

	m.RecordTrade(Trade{
		Type:      TradeTypeAdd,
		Side:      m.side,
		Symbol:    m.symbol,
		Price:     order.Price,
		Amount:    amount,
		OrderID:   order.ID,
		Timestamp: m.clock.Now().UnixMilli(),
	})
	log.Printf("Added to %s position: %.2f %s at %.2f (addition %d)", m.side, amount, m.symbol, order.Price, m.sizer.AdditionCount())
	return nil
}

func (m *Martingale) closePosition(price float64, pos *exchange.Position, reason string, balanceTotal *float64) error {
	closed, err := m.exchange.ClosePosition(m.symbol)
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	if !closed {
		return nil
	}

	var pnl *float64
	if balanceTotal != nil && m.entryBalance > 0 {
		v := *balanceTotal - m.entryBalance
		pnl = &v
	}
	m.RecordTrade(Trade{
		Type:        TradeTypeClose,
		Side:        m.side,
		Symbol:      m.symbol,
		Price:       price,
		Amount:      pos.Contracts * price,
		PnL:         pnl,
		CloseReason: reason,
		Timestamp:   m.clock.Now().UnixMilli(),
	})
	if pnl != nil {
		log.Printf("Closed %s position (%s): pnl %.2f", m.side, reason, *pnl)
	} else {
		log.Printf("Closed %s position (%s)", m.side, reason)
	}

	// New cycle: sizing and risk baselines restart from scratch.
	m.sizer.Reset()
	m.risk.Reset()
	m.entryBalance = 0
	return nil
}

func (m *Martingale) orderSide() string {
	if m.side == exchange.SideShort {
		return exchange.OrderSideSell
	}
	return exchange.OrderSideBuy
}
