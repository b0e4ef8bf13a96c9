package repositories

import (
	"fmt"
	"testing"
	"time"

	"CryptoBacktester/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a per-test in-memory database. The shared cache keeps the
// database alive across the connections gorm pools.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Price{}, &models.BacktestRecord{}))
	return db
}

func testPrice(symbol, timeFrame string, openTime time.Time, close float64) models.Price {
	return models.Price{
		Symbol:    symbol,
		TimeFrame: timeFrame,
		OpenTime:  openTime,
		CloseTime: openTime.Add(time.Minute),
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    1,
	}
}

func TestPriceCreateAndFindByID(t *testing.T) {
	repo := NewPriceRepository(setupTestDB(t))
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	price := testPrice("BTCUSDT", models.PriceTimeFrame1m, base, 50000)
	require.NoError(t, repo.Create(&price))
	require.NotZero(t, price.ID)

	found, err := repo.FindByID(price.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "BTCUSDT", found.Symbol)
	assert.Equal(t, 50000.0, found.Close)

	missing, err := repo.FindByID(9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = repo.FindByID(0)
	assert.Error(t, err)
}

func TestPriceCreateRejectsNil(t *testing.T) {
	repo := NewPriceRepository(setupTestDB(t))
	assert.Error(t, repo.Create(nil))
}

func TestSaveBatchSkipsDuplicates(t *testing.T) {
	repo := NewPriceRepository(setupTestDB(t))
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	batch := []models.Price{
		testPrice("BTCUSDT", models.PriceTimeFrame1m, base, 50000),
		testPrice("BTCUSDT", models.PriceTimeFrame1m, base.Add(time.Minute), 50100),
		testPrice("BTCUSDT", models.PriceTimeFrame1m, base.Add(2*time.Minute), 50200),
	}
	require.NoError(t, repo.SaveBatch(batch))

	// Re-saving the same window plus one new candle only adds the new one.
	batch = append(batch, testPrice("BTCUSDT", models.PriceTimeFrame1m, base.Add(3*time.Minute), 50300))
	for i := range batch {
		batch[i].ID = 0
	}
	require.NoError(t, repo.SaveBatch(batch))

	count, err := repo.CountByTimeFrame("BTCUSDT", models.PriceTimeFrame1m, base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestSaveBatchEmptyIsNoop(t *testing.T) {
	repo := NewPriceRepository(setupTestDB(t))
	assert.NoError(t, repo.SaveBatch(nil))
}

func TestGetPricesByTimeFrame(t *testing.T) {
	repo := NewPriceRepository(setupTestDB(t))
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// Inserted out of order on purpose.
	require.NoError(t, repo.Create(&models.Price{Symbol: "BTCUSDT", TimeFrame: "1m", OpenTime: base.Add(2 * time.Minute), Close: 3}))
	require.NoError(t, repo.Create(&models.Price{Symbol: "BTCUSDT", TimeFrame: "1m", OpenTime: base, Close: 1}))
	require.NoError(t, repo.Create(&models.Price{Symbol: "BTCUSDT", TimeFrame: "1m", OpenTime: base.Add(time.Minute), Close: 2}))
	require.NoError(t, repo.Create(&models.Price{Symbol: "ETHUSDT", TimeFrame: "1m", OpenTime: base, Close: 9}))

	prices, err := repo.GetPricesByTimeFrame("BTCUSDT", "1m", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, prices, 3)
	assert.Equal(t, 1.0, prices[0].Close)
	assert.Equal(t, 2.0, prices[1].Close)
	assert.Equal(t, 3.0, prices[2].Close)

	// The window bounds the result set.
	prices, err = repo.GetPricesByTimeFrame("BTCUSDT", "1m", base, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, prices, 2)

	_, err = repo.GetPricesByTimeFrame("", "1m", base, base)
	assert.Error(t, err)
}

func TestGetLatestPriceByTimeFrame(t *testing.T) {
	repo := NewPriceRepository(setupTestDB(t))
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(&models.Price{Symbol: "BTCUSDT", TimeFrame: "1m", OpenTime: base, Close: 1}))
	require.NoError(t, repo.Create(&models.Price{Symbol: "BTCUSDT", TimeFrame: "1m", OpenTime: base.Add(time.Minute), Close: 2}))

	latest, err := repo.GetLatestPriceByTimeFrame("BTCUSDT", "1m")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 2.0, latest.Close)

	none, err := repo.GetLatestPriceByTimeFrame("XRPUSDT", "1m")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = repo.GetLatestPriceByTimeFrame("BTCUSDT", "")
	assert.Error(t, err)
}

func TestCountByTimeFrame(t *testing.T) {
	repo := NewPriceRepository(setupTestDB(t))
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(&models.Price{
			Symbol: "BTCUSDT", TimeFrame: "1m",
			OpenTime: base.Add(time.Duration(i) * time.Minute), Close: float64(i),
		}))
	}

	count, err := repo.CountByTimeFrame("BTCUSDT", "1m", base, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = repo.CountByTimeFrame("BTCUSDT", "5m", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
