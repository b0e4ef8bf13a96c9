package price

import (
	"context"
	"fmt"
	"log"
	"time"

	"CryptoBacktester/internal/models"
	"CryptoBacktester/internal/operations/candles"
	"CryptoBacktester/internal/repositories"
)

// PriceLoader serves candle windows storage-first: a window already covered
// by the database is returned as-is, anything else is fetched, persisted and
// returned. Stored data keeps replays reproducible and spares the API.
type PriceLoader struct {
	fetcher   *PriceFetcher
	priceRepo *repositories.PriceRepository
}

func NewPriceLoader(fetcher *PriceFetcher, priceRepo *repositories.PriceRepository) *PriceLoader {
	return &PriceLoader{
		fetcher:   fetcher,
		priceRepo: priceRepo,
	}
}

func (l *PriceLoader) Load(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]models.Price, error) {
	stored, err := l.priceRepo.GetPricesByTimeFrame(symbol, timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("error loading stored prices: %w", err)
	}

	if covered(stored, timeframe, start, end) {
		log.Printf("Serving %d %s candles for %s from storage", len(stored), timeframe, symbol)
		return stored, nil
	}

	if l.fetcher == nil {
		if len(stored) > 0 {
			log.Printf("No fetcher configured, serving %d stored candles for %s", len(stored), symbol)
			return stored, nil
		}
		return nil, fmt.Errorf("no stored prices for %s %s and no fetcher configured", symbol, timeframe)
	}

	fetched, err := l.fetcher.FetchRange(ctx, symbol, timeframe, start, end)
	if err != nil {
		// Partial stored data beats failing the whole run.
		if len(stored) > 0 {
			log.Printf("Fetch failed (%v), falling back to %d stored candles", err, len(stored))
			return stored, nil
		}
		return nil, err
	}
	if len(fetched) == 0 {
		return nil, fmt.Errorf("no candles available for %s %s between %s and %s",
			symbol, timeframe,
			start.Format("2006-01-02 15:04:05"),
			end.Format("2006-01-02 15:04:05"))
	}

	if err := l.priceRepo.SaveBatch(fetched); err != nil {
		log.Printf("Error persisting fetched candles: %v", err)
	}
	return fetched, nil
}

// covered reports whether the stored rows plausibly span the whole window.
// A small shortfall is tolerated for exchange downtime gaps.
func covered(stored []models.Price, timeframe string, start, end time.Time) bool {
	if len(stored) == 0 {
		return false
	}
	secs, err := candles.TimeframeSeconds(timeframe)
	if err != nil {
		return false
	}
	expected := int(end.Sub(start).Seconds()) / int(secs)
	if expected <= 0 {
		return true
	}
	return len(stored) >= expected*95/100
}
