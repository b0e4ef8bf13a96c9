package models

import (
	"time"
)

type BacktestRecord struct {
	ID       uint   `gorm:"primaryKey"`
	RunID    string `gorm:"uniqueIndex;not null"`
	Strategy string `gorm:"index;not null"`

	// Run configuration
	Symbol         string    `gorm:"not null"`
	TimeFrame      string    `gorm:"not null"`
	StartDate      time.Time `gorm:"not null"`
	EndDate        time.Time `gorm:"not null"`
	InitialBalance float64   `gorm:"type:decimal(20,8);not null"`
	ConfigYAML     string    `gorm:"type:text"`

	// Headline results
	FinalBalance      float64 `gorm:"type:decimal(20,8)"`
	TotalReturn       float64 `gorm:"type:decimal(20,8)"`
	TotalReturnAmount float64 `gorm:"type:decimal(20,8)"`

	// Trade statistics
	TotalTrades int `gorm:"not null;default:0"`
	WinTrades   int `gorm:"not null;default:0"`
	LossTrades  int `gorm:"not null;default:0"`
	WinRate     float64

	// Risk metrics
	MaxDrawdown       float64
	MaxDrawdownAmount float64 `gorm:"type:decimal(20,8)"`
	SharpeRatio       float64
	ProfitFactor      float64

	// Averages
	AvgWin         float64 `gorm:"type:decimal(20,8)"`
	AvgLoss        float64 `gorm:"type:decimal(20,8)"`
	AvgTradeReturn float64

	// Detail payloads, JSON encoded
	EquityCurve string `gorm:"type:text"`
	TradesData  string `gorm:"type:text"`
	PriceData   string `gorm:"type:text"`

	Status       string `gorm:"index;not null"`
	ErrorMessage string `gorm:"type:text"`

	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
	CompletedAt *time.Time
}

const (
	BacktestStatusPending   = "pending"
	BacktestStatusRunning   = "running"
	BacktestStatusCompleted = "completed"
	BacktestStatusFailed    = "failed"
)

// TableName sets the table name for BacktestRecord model
func (BacktestRecord) TableName() string {
	return "backtest_records"
}
