package candles

import (
	"fmt"
	"math"
)

// Seconds per supported timeframe label.
var timeframeSeconds = map[string]int64{
	"1m":  60,
	"5m":  300,
	"15m": 900,
	"30m": 1800,
	"1h":  3600,
	"4h":  14400,
	"1d":  86400,
}

// TimeframeSeconds returns the duration of a timeframe label in seconds.
func TimeframeSeconds(timeframe string) (int64, error) {
	secs, ok := timeframeSeconds[timeframe]
	if !ok {
		return 0, fmt.Errorf("unsupported timeframe: %s", timeframe)
	}
	return secs, nil
}

// ExpandToSeconds synthesizes one candle per second inside each coarse candle.
// The price path linearly interpolates open to close and superimposes two sine
// components scaled to the candle's high-low range (30% half-period, 10%
// higher frequency), clamped to [low, high]. Volume is split evenly and prices
// are rounded to 4 decimal places. The expansion is a documented approximation
// of intraperiod movement, not a replay of real tick data, but it is fully
// deterministic for identical inputs.
func ExpandToSeconds(in []Candle, timeframe string) ([]Candle, error) {
	secs, err := TimeframeSeconds(timeframe)
	if err != nil {
		return nil, err
	}

	out := make([]Candle, 0, int64(len(in))*secs)
	for _, c := range in {
		out = append(out, expandCandle(c, secs)...)
	}
	return out, nil
}

func expandCandle(c Candle, secs int64) []Candle {
	priceRange := c.High - c.Low
	secVolume := c.Volume / float64(secs)

	// Price at normalized position p in [0, 1]. At p == 1 both sine terms
	// vanish and the path lands exactly on the close.
	priceAt := func(p float64) float64 {
		base := c.Open + (c.Close-c.Open)*p
		fluct := math.Sin(p*math.Pi)*0.30*priceRange + math.Sin(3*p*math.Pi)*0.10*priceRange
		return round4(clamp(base+fluct, c.Low, c.High))
	}

	out := make([]Candle, 0, secs)
	for i := int64(0); i < secs; i++ {
		open := priceAt(float64(i) / float64(secs))
		close := priceAt(float64(i+1) / float64(secs))
		out = append(out, Candle{
			Timestamp: c.Timestamp + i*1000,
			Open:      open,
			High:      math.Max(open, close),
			Low:       math.Min(open, close),
			Close:     close,
			Volume:    secVolume,
		})
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
