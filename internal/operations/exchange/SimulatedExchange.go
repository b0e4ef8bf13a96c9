package exchange

import (
	"fmt"
	"log"
	"time"

	"CryptoBacktester/internal/operations/candles"
)

// Tolerance for contract quantities reconstructed from notional amounts.
const contractsEpsilon = 1e-9

// SimulatedExchange replays a candle series and fills market orders at the
// current candle close. One instance owns one backtest's state: cursor,
// balance, positions, order history and equity curve. Not safe for use by
// concurrent backtests; each run constructs its own instance.
type SimulatedExchange struct {
	series *candles.Series
	cursor int

	balance     Balance
	positions   map[string]*Position
	orders      []Order
	equityCurve []EquityPoint
}

func NewSimulatedExchange(series *candles.Series, initialBalance float64) *SimulatedExchange {
	return &SimulatedExchange{
		series: series,
		balance: Balance{
			Total: initialBalance,
			Free:  initialBalance,
			Used:  0,
		},
		positions:   make(map[string]*Position),
		orders:      make([]Order, 0),
		equityCurve: make([]EquityPoint, 0),
	}
}

// GetCurrentPrice returns the close of the candle at the cursor. The second
// return is false once the cursor is past the end of the data.
func (e *SimulatedExchange) GetCurrentPrice() (float64, bool) {
	if e.cursor < e.series.Len() {
		return e.series.At(e.cursor).Close, true
	}
	return 0, false
}

func (e *SimulatedExchange) GetCurrentTimestamp() (int64, bool) {
	if e.cursor < e.series.Len() {
		return e.series.At(e.cursor).Timestamp, true
	}
	return 0, false
}

// Now exposes the replay clock: the timestamp of the current candle. Cooldown
// timers driven by this clock stay meaningful without wall-clock sleeps.
func (e *SimulatedExchange) Now() time.Time {
	ts, ok := e.GetCurrentTimestamp()
	if !ok {
		ts = e.series.At(e.series.Len() - 1).Timestamp
	}
	return time.UnixMilli(ts)
}

func (e *SimulatedExchange) GetTicker(symbol string) (*Ticker, error) {
	price, ok := e.GetCurrentPrice()
	if !ok {
		return nil, nil
	}
	ts, _ := e.GetCurrentTimestamp()
	return &Ticker{
		Symbol:    symbol,
		Last:      price,
		Bid:       price * 0.9999,
		Ask:       price * 1.0001,
		Timestamp: ts,
	}, nil
}

// GetOHLCV returns a candle window starting at the cursor.
func (e *SimulatedExchange) GetOHLCV(symbol string, limit int) ([]candles.Candle, error) {
	if e.cursor >= e.series.Len() || limit <= 0 {
		return nil, nil
	}
	end := e.cursor + limit
	if end > e.series.Len() {
		end = e.series.Len()
	}
	window := make([]candles.Candle, 0, end-e.cursor)
	for i := e.cursor; i < end; i++ {
		window = append(window, e.series.At(i))
	}
	return window, nil
}

func (e *SimulatedExchange) SetLeverage(symbol string, leverage int) error {
	return nil
}

// GetBalance recomputes Total as free + used + unrealized PnL of all open
// positions at the current price and returns a copy.
func (e *SimulatedExchange) GetBalance() (*Balance, error) {
	total := e.balance.Free + e.balance.Used
	if price, ok := e.GetCurrentPrice(); ok {
		for _, pos := range e.positions {
			if pos.Contracts > 0 {
				total += unrealizedPnL(pos, price)
			}
		}
	}
	e.balance.Total = total
	b := e.balance
	return &b, nil
}

func (e *SimulatedExchange) GetOpenPosition(symbol string) (*Position, error) {
	pos, exists := e.positions[symbol]
	if !exists || pos.Contracts == 0 {
		return nil, nil
	}
	return e.enrich(pos), nil
}

func (e *SimulatedExchange) GetAllOpenPositions() (map[string]*Position, error) {
	result := make(map[string]*Position)
	for symbol, pos := range e.positions {
		if pos.Contracts != 0 {
			result[symbol] = e.enrich(pos)
		}
	}
	return result, nil
}

func (e *SimulatedExchange) enrich(pos *Position) *Position {
	p := *pos
	if price, ok := e.GetCurrentPrice(); ok {
		p.MarkPrice = price
		p.UnrealizedPnL = unrealizedPnL(pos, price)
		p.Notional = pos.Contracts * price
	}
	return &p
}

// CreateMarketOrder fills a market order at the current candle close. Amount
// is notional in quote currency. All validation happens before any balance or
// position mutation, so a rejected order leaves no partial state behind.
func (e *SimulatedExchange) CreateMarketOrder(symbol, side string, amount float64, reduceOnly bool) (*Order, error) {
	price, ok := e.GetCurrentPrice()
	if !ok {
		return nil, ErrPriceUnavailable
	}
	contracts := amount / price

	pos := e.positions[symbol]
	closing := pos != nil && pos.Contracts > 0 &&
		((pos.Side == SideLong && side == OrderSideSell) ||
			(pos.Side == SideShort && side == OrderSideBuy))

	if closing {
		if contracts > pos.Contracts {
			if contracts-pos.Contracts < contractsEpsilon {
				contracts = pos.Contracts
			} else {
				log.Printf("Rejected %s %s: requested %.8f contracts, held %.8f", side, symbol, contracts, pos.Contracts)
				return nil, ErrInsufficientPosition
			}
		}
		pnl := e.closeFill(pos, contracts, price)
		order := e.recordOrder(fmt.Sprintf("sim-%d", len(e.orders)), symbol, side, amount, price, contracts, pnl)
		e.appendEquityPoint()
		return order, nil
	}

	if reduceOnly {
		log.Printf("Rejected reduce-only %s %s: no position to reduce", side, symbol)
		return nil, ErrInsufficientPosition
	}

	// Opening or adding. Longs post full notional as margin, shorts an
	// approximated fraction of it.
	margin := amount
	posSide := SideLong
	if side == OrderSideSell {
		margin = amount / AssumedLeverage
		posSide = SideShort
	}
	if e.balance.Free < margin {
		log.Printf("Rejected %s %s: need %.2f margin, free %.2f", side, symbol, margin, e.balance.Free)
		return nil, ErrInsufficientBalance
	}

	e.balance.Free -= margin
	e.balance.Used += margin

	if pos == nil || pos.Contracts == 0 {
		e.positions[symbol] = &Position{
			Symbol:     symbol,
			Side:       posSide,
			Contracts:  contracts,
			EntryPrice: price,
			Margin:     margin,
		}
	} else {
		total := pos.Contracts + contracts
		pos.EntryPrice = (pos.EntryPrice*pos.Contracts + price*contracts) / total
		pos.Contracts = total
		pos.Margin += margin
	}

	order := e.recordOrder(fmt.Sprintf("sim-%d", len(e.orders)), symbol, side, amount, price, contracts, 0)
	e.appendEquityPoint()
	return order, nil
}

// closeFill realizes pnl for a closing fill and releases the position's
// margin proportionally, so used never goes negative and free+used only moves
// by the realized pnl.
func (e *SimulatedExchange) closeFill(pos *Position, contracts, price float64) float64 {
	pnl := unrealizedPnLAt(pos.Side, pos.EntryPrice, price, contracts)
	release := pos.Margin * (contracts / pos.Contracts)

	e.balance.Free += release + pnl
	e.balance.Used -= release
	e.balance.Total += pnl

	pos.Margin -= release
	pos.Contracts -= contracts
	if pos.Contracts <= contractsEpsilon {
		delete(e.positions, pos.Symbol)
	}
	return pnl
}

// ClosePosition fully closes the symbol's position with a reduce-only market
// fill at the current price. Returns false when there is nothing to close.
func (e *SimulatedExchange) ClosePosition(symbol string) (bool, error) {
	pos, exists := e.positions[symbol]
	if !exists || pos.Contracts == 0 {
		return false, nil
	}
	price, ok := e.GetCurrentPrice()
	if !ok {
		return false, ErrPriceUnavailable
	}

	contracts := pos.Contracts
	side := OrderSideSell
	if pos.Side == SideShort {
		side = OrderSideBuy
	}

	pnl := e.closeFill(pos, contracts, price)
	e.recordOrder(fmt.Sprintf("sim-close-%d", len(e.orders)), symbol, side, contracts*price, price, contracts, pnl)
	e.appendEquityPoint()
	return true, nil
}

func (e *SimulatedExchange) recordOrder(id, symbol, side string, amount, price, contracts, pnl float64) *Order {
	ts, _ := e.GetCurrentTimestamp()
	order := Order{
		ID:        id,
		Symbol:    symbol,
		Side:      side,
		Amount:    amount,
		Price:     price,
		Contracts: contracts,
		Timestamp: ts,
		Status:    OrderStatusFilled,
		Filled:    contracts,
		PnL:       pnl,
	}
	e.orders = append(e.orders, order)
	return &order
}

// Advance moves the cursor to the next candle and appends an equity point.
// Returns false when no further candle exists.
func (e *SimulatedExchange) Advance() bool {
	if e.cursor < e.series.Len()-1 {
		e.cursor++
		e.appendEquityPoint()
		return true
	}
	return false
}

func (e *SimulatedExchange) appendEquityPoint() {
	ts, ok := e.GetCurrentTimestamp()
	if !ok {
		return
	}
	balance, _ := e.GetBalance()
	e.equityCurve = append(e.equityCurve, EquityPoint{Timestamp: ts, Balance: balance.Total})
}

func (e *SimulatedExchange) Series() *candles.Series {
	return e.series
}

func (e *SimulatedExchange) EquityCurve() []EquityPoint {
	return e.equityCurve
}

func (e *SimulatedExchange) Orders() []Order {
	return e.orders
}

func unrealizedPnL(pos *Position, price float64) float64 {
	return unrealizedPnLAt(pos.Side, pos.EntryPrice, price, pos.Contracts)
}

func unrealizedPnLAt(side string, entry, price, contracts float64) float64 {
	if side == SideLong {
		return (price - entry) * contracts
	}
	return (entry - price) * contracts
}
