package repositories

import (
	"errors"
	"log"
	"time"

	"CryptoBacktester/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PriceRepository struct {
	db *gorm.DB
}

// NewPriceRepository creates a new instance of PriceRepository
func NewPriceRepository(db *gorm.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// Create adds a new Price record to the database
func (r *PriceRepository) Create(price *models.Price) error {
	if price == nil {
		return errors.New("price cannot be nil")
	}
	return r.db.Create(price).Error
}

// SaveBatch inserts candles in batches, silently skipping rows that already
// exist for the same symbol, timeframe and open time.
func (r *PriceRepository) SaveBatch(prices []models.Price) error {
	if len(prices) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(prices, 500).Error
}

// FindByID retrieves a Price record by its ID
func (r *PriceRepository) FindByID(id uint) (*models.Price, error) {
	if id == 0 {
		return nil, errors.New("invalid id")
	}
	var price models.Price
	err := r.db.First(&price, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &price, err
}

// GetPricesByTimeFrame gets price data for a specific symbol and timeframe
func (r *PriceRepository) GetPricesByTimeFrame(symbol string, timeFrame string, start, end time.Time) ([]models.Price, error) {
	if symbol == "" || timeFrame == "" {
		return nil, errors.New("invalid symbol or timeframe")
	}

	var prices []models.Price
	err := r.db.Where("symbol = ? AND time_frame = ? AND open_time BETWEEN ? AND ?",
		symbol, timeFrame, start, end).
		Order("open_time ASC").
		Find(&prices).Error

	// Log the query results
	log.Printf("Got %d prices for %s from %s to %s",
		len(prices),
		symbol,
		start.Format("2006-01-02 15:04:05"),
		end.Format("2006-01-02 15:04:05"))

	return prices, err
}

// GetLatestPriceByTimeFrame gets the most recent price for a symbol and timeframe
func (r *PriceRepository) GetLatestPriceByTimeFrame(symbol, timeFrame string) (*models.Price, error) {
	if symbol == "" || timeFrame == "" {
		return nil, errors.New("invalid symbol or timeframe")
	}

	var price models.Price
	err := r.db.Where("symbol = ? AND time_frame = ?", symbol, timeFrame).
		Order("open_time DESC").
		First(&price).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &price, err
}

// CountByTimeFrame counts stored candles for a symbol and timeframe window
func (r *PriceRepository) CountByTimeFrame(symbol, timeFrame string, start, end time.Time) (int64, error) {
	if symbol == "" || timeFrame == "" {
		return 0, errors.New("invalid symbol or timeframe")
	}

	var count int64
	err := r.db.Model(&models.Price{}).
		Where("symbol = ? AND time_frame = ? AND open_time BETWEEN ? AND ?",
			symbol, timeFrame, start, end).
		Count(&count).Error
	return count, err
}
