package candles

import (
	"errors"
	"fmt"

	"CryptoBacktester/internal/models"
)

// Candle is a single OHLCV bar with a millisecond timestamp.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Series holds an ordered candle sequence with unique ascending timestamps.
type Series struct {
	candles []Candle
}

func NewSeries(candles []Candle) (*Series, error) {
	if len(candles) == 0 {
		return nil, errors.New("candle series cannot be empty")
	}
	for i := 1; i < len(candles); i++ {
		if candles[i].Timestamp <= candles[i-1].Timestamp {
			return nil, fmt.Errorf("candle timestamps must be strictly ascending at index %d", i)
		}
	}
	return &Series{candles: candles}, nil
}

func (s *Series) Len() int {
	return len(s.candles)
}

func (s *Series) At(i int) Candle {
	return s.candles[i]
}

// Candles returns the underlying slice. Callers must treat it as read-only.
func (s *Series) Candles() []Candle {
	return s.candles
}

// FromPrices converts stored kline rows into replay candles.
func FromPrices(prices []models.Price) []Candle {
	result := make([]Candle, 0, len(prices))
	for _, p := range prices {
		result = append(result, Candle{
			Timestamp: p.OpenTime.UnixMilli(),
			Open:      p.Open,
			High:      p.High,
			Low:       p.Low,
			Close:     p.Close,
			Volume:    p.Volume,
		})
	}
	return result
}
