package exchange

import (
	"testing"
	"time"

	"CryptoBacktester/internal/operations/candles"

	"github.com/stretchr/testify/require"
)

// flatSeries builds one flat candle per close, one minute apart.
func flatSeries(t *testing.T, closes ...float64) *candles.Series {
	t.Helper()
	bars := make([]candles.Candle, 0, len(closes))
	for i, c := range closes {
		bars = append(bars, candles.Candle{
			Timestamp: int64(i+1) * 60000,
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1,
		})
	}
	series, err := candles.NewSeries(bars)
	require.NoError(t, err)
	return series
}

func TestGetTickerSpread(t *testing.T) {
	ex := NewSimulatedExchange(flatSeries(t, 100.0), 10000)

	ticker, err := ex.GetTicker("BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, ticker)
	require.Equal(t, "BTCUSDT", ticker.Symbol)
	require.Equal(t, 100.0, ticker.Last)
	require.InDelta(t, 99.99, ticker.Bid, 1e-9)
	require.InDelta(t, 100.01, ticker.Ask, 1e-9)
	require.Equal(t, int64(60000), ticker.Timestamp)
}

func TestNowFollowsCursor(t *testing.T) {
	ex := NewSimulatedExchange(flatSeries(t, 100.0, 101.0), 10000)

	require.Equal(t, time.UnixMilli(60000), ex.Now())
	require.True(t, ex.Advance())
	require.Equal(t, time.UnixMilli(120000), ex.Now())
}

func TestMarketOrderOpensLong(t *testing.T) {
	ex := NewSimulatedExchange(flatSeries(t, 100.0), 10000)

	order, err := ex.CreateMarketOrder("BTCUSDT", OrderSideBuy, 2000, false)
	require.NoError(t, err)
	require.Equal(t, "sim-0", order.ID)
	require.Equal(t, OrderStatusFilled, order.Status)
	require.Equal(t, 100.0, order.Price)
	require.InDelta(t, 20.0, order.Contracts, 1e-9)
	require.Equal(t, order.Contracts, order.Filled)

	pos, err := ex.GetOpenPosition("BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, pos)
	require.Equal(t, SideLong, pos.Side)
	require.Equal(t, 100.0, pos.EntryPrice)
	require.InDelta(t, 20.0, pos.Contracts, 1e-9)
	require.Equal(t, 2000.0, pos.Margin)

	balance, err := ex.GetBalance()
	require.NoError(t, err)
	require.Equal(t, 8000.0, balance.Free)
	require.Equal(t, 2000.0, balance.Used)
	require.Equal(t, 10000.0, balance.Total)
}

func TestShortEntryPostsFractionalMargin(t *testing.T) {
	ex := NewSimulatedExchange(flatSeries(t, 100.0), 10000)

	_, err := ex.CreateMarketOrder("BTCUSDT", OrderSideSell, 2000, false)
	require.NoError(t, err)

	pos, err := ex.GetOpenPosition("BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, pos)
	require.Equal(t, SideShort, pos.Side)
	require.Equal(t, 200.0, pos.Margin)

	balance, err := ex.GetBalance()
	require.NoError(t, err)
	require.Equal(t, 9800.0, balance.Free)
	require.Equal(t, 200.0, balance.Used)
}

func TestAdditionsUseContractsWeightedEntry(t *testing.T) {
	ex := NewSimulatedExchange(flatSeries(t, 100.0, 90.0), 100000)

	_, err := ex.CreateMarketOrder("BTCUSDT", OrderSideBuy, 20000, false)
	require.NoError(t, err)
	require.True(t, ex.Advance())
	_, err = ex.CreateMarketOrder("BTCUSDT", OrderSideBuy, 36000, false)
	require.NoError(t, err)

	pos, err := ex.GetOpenPosition("BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, pos)
	// 200 contracts at 100 plus 400 contracts at 90.
	require.InDelta(t, 600.0, pos.Contracts, 1e-9)
	require.InDelta(t, 56000.0/600.0, pos.EntryPrice, 1e-9)
	require.Equal(t, 56000.0, pos.Margin)
}

func TestBalanceConservation(t *testing.T) {
	ex := NewSimulatedExchange(flatSeries(t, 100.0, 95.0, 105.0), 10000)

	_, err := ex.CreateMarketOrder("BTCUSDT", OrderSideBuy, 1000, false)
	require.NoError(t, err)

	// Opening moves funds between free and used but creates no value.
	balance, err := ex.GetBalance()
	require.NoError(t, err)
	require.Equal(t, 10000.0, balance.Free+balance.Used)
	require.Equal(t, 10000.0, balance.Total)

	// Total drifts with the mark price while free and used stay put.
	require.True(t, ex.Advance())
	balance, err = ex.GetBalance()
	require.NoError(t, err)
	require.Equal(t, 10000.0, balance.Free+balance.Used)
	require.InDelta(t, 9950.0, balance.Total, 1e-9)

	// Closing realizes exactly the unrealized pnl, nothing else.
	require.True(t, ex.Advance())
	closed, err := ex.ClosePosition("BTCUSDT")
	require.NoError(t, err)
	require.True(t, closed)

	balance, err = ex.GetBalance()
	require.NoError(t, err)
	require.Equal(t, 0.0, balance.Used)
	require.InDelta(t, 10050.0, balance.Free, 1e-9)
	require.InDelta(t, 10050.0, balance.Total, 1e-9)
}

func TestRejectedOrderLeavesNoPartialState(t *testing.T) {
	ex := NewSimulatedExchange(flatSeries(t, 100.0), 100)

	_, err := ex.CreateMarketOrder("BTCUSDT", OrderSideBuy, 500, false)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	balance, err := ex.GetBalance()
	require.NoError(t, err)
	require.Equal(t, 100.0, balance.Free)
	require.Equal(t, 0.0, balance.Used)

	pos, err := ex.GetOpenPosition("BTCUSDT")
	require.NoError(t, err)
	require.Nil(t, pos)
	require.Empty(t, ex.Orders())
	require.Empty(t, ex.EquityCurve())
}

func TestOverCloseRejected(t *testing.T) {
	ex := NewSimulatedExchange(flatSeries(t, 100.0), 10000)

	_, err := ex.CreateMarketOrder("BTCUSDT", OrderSideBuy, 1000, false)
	require.NoError(t, err)

	_, err = ex.CreateMarketOrder("BTCUSDT", OrderSideSell, 2000, false)
	require.ErrorIs(t, err, ErrInsufficientPosition)

	pos, err := ex.GetOpenPosition("BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, pos)
	require.InDelta(t, 10.0, pos.Contracts, 1e-9)

	balance, err := ex.GetBalance()
	require.NoError(t, err)
	require.Equal(t, 9000.0, balance.Free)
	require.Equal(t, 1000.0, balance.Used)
}

func TestReduceOnlyRequiresPosition(t *testing.T) {
	ex := NewSimulatedExchange(flatSeries(t, 100.0), 10000)

	_, err := ex.CreateMarketOrder("BTCUSDT", OrderSideSell, 1000, true)
	require.ErrorIs(t, err, ErrInsufficientPosition)
}

func TestPartialCloseReleasesMarginProportionally(t *testing.T) {
	ex := NewSimulatedExchange(flatSeries(t, 100.0), 10000)

	_, err := ex.CreateMarketOrder("BTCUSDT", OrderSideBuy, 2000, false)
	require.NoError(t, err)

	order, err := ex.CreateMarketOrder("BTCUSDT", OrderSideSell, 1000, false)
	require.NoError(t, err)
	require.InDelta(t, 10.0, order.Contracts, 1e-9)

	pos, err := ex.GetOpenPosition("BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, pos)
	require.InDelta(t, 10.0, pos.Contracts, 1e-9)
	require.InDelta(t, 1000.0, pos.Margin, 1e-9)

	balance, err := ex.GetBalance()
	require.NoError(t, err)
	require.InDelta(t, 9000.0, balance.Free, 1e-9)
	require.InDelta(t, 1000.0, balance.Used, 1e-9)
}

func TestClosePositionWhenFlat(t *testing.T) {
	ex := NewSimulatedExchange(flatSeries(t, 100.0), 10000)

	closed, err := ex.ClosePosition("BTCUSDT")
	require.NoError(t, err)
	require.False(t, closed)
}

func TestShortCloseRealizesInverseMove(t *testing.T) {
	ex := NewSimulatedExchange(flatSeries(t, 100.0, 90.0), 10000)

	_, err := ex.CreateMarketOrder("BTCUSDT", OrderSideSell, 1000, false)
	require.NoError(t, err)
	require.True(t, ex.Advance())

	closed, err := ex.ClosePosition("BTCUSDT")
	require.NoError(t, err)
	require.True(t, closed)

	balance, err := ex.GetBalance()
	require.NoError(t, err)
	require.InDelta(t, 10100.0, balance.Total, 1e-9)

	orders := ex.Orders()
	require.Len(t, orders, 2)
	require.Equal(t, "sim-close-1", orders[1].ID)
	require.Equal(t, OrderSideBuy, orders[1].Side)
	require.InDelta(t, 100.0, orders[1].PnL, 1e-9)
}

func TestAdvanceStopsAtLastCandle(t *testing.T) {
	ex := NewSimulatedExchange(flatSeries(t, 100.0, 101.0, 102.0), 10000)

	require.True(t, ex.Advance())
	require.True(t, ex.Advance())
	require.False(t, ex.Advance())

	price, ok := ex.GetCurrentPrice()
	require.True(t, ok)
	require.Equal(t, 102.0, price)
}

func TestEquityCurveRecordsOrdersAndAdvances(t *testing.T) {
	ex := NewSimulatedExchange(flatSeries(t, 100.0, 95.0, 105.0), 10000)

	_, err := ex.CreateMarketOrder("BTCUSDT", OrderSideBuy, 1000, false)
	require.NoError(t, err)
	require.True(t, ex.Advance())
	require.True(t, ex.Advance())

	curve := ex.EquityCurve()
	require.Len(t, curve, 3)
	require.Equal(t, int64(60000), curve[0].Timestamp)
	require.Equal(t, 10000.0, curve[0].Balance)
	require.Equal(t, int64(120000), curve[1].Timestamp)
	require.InDelta(t, 9950.0, curve[1].Balance, 1e-9)
	require.Equal(t, int64(180000), curve[2].Timestamp)
	require.InDelta(t, 10050.0, curve[2].Balance, 1e-9)
}

func TestGetOpenPositionReturnsCopy(t *testing.T) {
	ex := NewSimulatedExchange(flatSeries(t, 100.0, 95.0), 10000)

	_, err := ex.CreateMarketOrder("BTCUSDT", OrderSideBuy, 1000, false)
	require.NoError(t, err)
	require.True(t, ex.Advance())

	pos, err := ex.GetOpenPosition("BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, pos)
	require.Equal(t, 95.0, pos.MarkPrice)
	require.InDelta(t, -50.0, pos.UnrealizedPnL, 1e-9)
	require.InDelta(t, 950.0, pos.Notional, 1e-9)

	pos.Contracts = 999

	again, err := ex.GetOpenPosition("BTCUSDT")
	require.NoError(t, err)
	require.InDelta(t, 10.0, again.Contracts, 1e-9)
}

func TestGetOHLCVWindowsFromCursor(t *testing.T) {
	ex := NewSimulatedExchange(flatSeries(t, 1.0, 2.0, 3.0, 4.0), 10000)

	window, err := ex.GetOHLCV("BTCUSDT", 2)
	require.NoError(t, err)
	require.Len(t, window, 2)
	require.Equal(t, 1.0, window[0].Close)

	require.True(t, ex.Advance())
	window, err = ex.GetOHLCV("BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, window, 3)
	require.Equal(t, 2.0, window[0].Close)

	window, err = ex.GetOHLCV("BTCUSDT", 0)
	require.NoError(t, err)
	require.Nil(t, window)
}

func TestExactNotionalCloseToleratesFloatDrift(t *testing.T) {
	ex := NewSimulatedExchange(flatSeries(t, 97.0), 10000)

	open, err := ex.CreateMarketOrder("BTCUSDT", OrderSideBuy, 1000, false)
	require.NoError(t, err)

	// Closing by notional reconstructed from the held contracts must not
	// trip the over-close check on floating point residue.
	_, err = ex.CreateMarketOrder("BTCUSDT", OrderSideSell, open.Contracts*97.0, false)
	require.NoError(t, err)

	pos, err := ex.GetOpenPosition("BTCUSDT")
	require.NoError(t, err)
	require.Nil(t, pos)
}
