package repositories

import (
	"errors"
	"time"

	"CryptoBacktester/internal/models"

	"gorm.io/gorm"
)

type BacktestRepository struct {
	db *gorm.DB
}

// NewBacktestRepository creates a new instance of BacktestRepository
func NewBacktestRepository(db *gorm.DB) *BacktestRepository {
	return &BacktestRepository{db: db}
}

// Create adds a new BacktestRecord to the database
func (r *BacktestRepository) Create(record *models.BacktestRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	return r.db.Create(record).Error
}

// Update modifies an existing BacktestRecord
func (r *BacktestRepository) Update(record *models.BacktestRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	return r.db.Save(record).Error
}

// FindByRunID retrieves a BacktestRecord by its run identifier
func (r *BacktestRepository) FindByRunID(runID string) (*models.BacktestRecord, error) {
	if runID == "" {
		return nil, errors.New("invalid run id")
	}
	var record models.BacktestRecord
	err := r.db.Where("run_id = ?", runID).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &record, err
}

// FindRecent retrieves the most recently created records, newest first
func (r *BacktestRepository) FindRecent(limit int) ([]models.BacktestRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []models.BacktestRecord
	err := r.db.Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

// FindByStrategy retrieves records for one strategy, newest first
func (r *BacktestRepository) FindByStrategy(strategy string, limit int) ([]models.BacktestRecord, error) {
	if strategy == "" {
		return nil, errors.New("invalid strategy")
	}
	if limit <= 0 {
		limit = 20
	}
	var records []models.BacktestRecord
	err := r.db.Where("strategy = ?", strategy).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// MarkRunning transitions a record to the running status
func (r *BacktestRepository) MarkRunning(runID string) error {
	if runID == "" {
		return errors.New("invalid run id")
	}
	return r.db.Model(&models.BacktestRecord{}).
		Where("run_id = ?", runID).
		Update("status", models.BacktestStatusRunning).Error
}

// MarkFailed transitions a record to the failed status with an error message
func (r *BacktestRepository) MarkFailed(runID, message string) error {
	if runID == "" {
		return errors.New("invalid run id")
	}
	now := time.Now()
	return r.db.Model(&models.BacktestRecord{}).
		Where("run_id = ?", runID).
		Updates(map[string]interface{}{
			"status":        models.BacktestStatusFailed,
			"error_message": message,
			"completed_at":  &now,
		}).Error
}
