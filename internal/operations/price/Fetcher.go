package price

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"CryptoBacktester/internal/models"
	"CryptoBacktester/internal/operations/binance"

	"github.com/adshao/go-binance/v2/futures"
)

// Binance caps one klines request at this many rows.
const fetchLimit = 1000

type PriceFetcher struct {
	client *binance.BinanceClient
}

func NewPriceFetcher(client *binance.BinanceClient) *PriceFetcher {
	return &PriceFetcher{client: client}
}

// FetchRange pulls all klines for the window in cursor-advancing chunks,
// then deduplicates by open time and returns them sorted ascending.
func (f *PriceFetcher) FetchRange(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]models.Price, error) {
	startMs := start.UnixNano() / int64(time.Millisecond)
	endMs := end.UnixNano() / int64(time.Millisecond)

	var allPrices []models.Price
	since := startMs

	for since < endMs {
		klines, err := f.client.GetKlines(ctx, symbol, timeframe, since, endMs, fetchLimit)
		if err != nil {
			return nil, fmt.Errorf("error fetching klines for %s: %w", symbol, err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			allPrices = append(allPrices, toPrice(symbol, timeframe, k))
		}

		last := klines[len(klines)-1].OpenTime
		log.Printf("Fetched %d %s candles for %s up to %s",
			len(klines),
			timeframe,
			symbol,
			time.Unix(last/1000, 0).Format("2006-01-02 15:04:05"))

		// Advance past the last seen candle; bail out if the cursor is
		// stuck to avoid refetching the same page forever.
		if last+1 <= since {
			break
		}
		since = last + 1
	}

	return dedupeSort(allPrices), nil
}

func toPrice(symbol, timeframe string, k *futures.Kline) models.Price {
	return models.Price{
		Symbol:     symbol,
		TimeFrame:  timeframe,
		OpenTime:   time.Unix(k.OpenTime/1000, 0),
		CloseTime:  time.Unix(k.CloseTime/1000, 0),
		Open:       parseFloat(k.Open),
		High:       parseFloat(k.High),
		Low:        parseFloat(k.Low),
		Close:      parseFloat(k.Close),
		Volume:     parseFloat(k.Volume),
		TradeCount: k.TradeNum,
	}
}

// dedupeSort drops duplicate open times (chunk boundaries overlap) and
// returns candles in ascending time order.
func dedupeSort(prices []models.Price) []models.Price {
	seen := make(map[int64]bool, len(prices))
	result := make([]models.Price, 0, len(prices))
	for _, p := range prices {
		ts := p.OpenTime.Unix()
		if seen[ts] {
			continue
		}
		seen[ts] = true
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenTime.Before(result[j].OpenTime)
	})
	return result
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Printf("Error parsing float: %v", err)
		return 0
	}
	return f
}
