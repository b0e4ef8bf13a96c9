package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"CryptoBacktester/config"
	"CryptoBacktester/internal/models"
	"CryptoBacktester/internal/operations/backtest"
	"CryptoBacktester/internal/operations/candles"
	"CryptoBacktester/internal/operations/exchange"
	"CryptoBacktester/internal/operations/price"
	"CryptoBacktester/internal/repositories"
	"CryptoBacktester/internal/services/strategy"

	"github.com/google/uuid"
)

type BacktestHandler struct {
	// Data access
	priceLoader  *price.PriceLoader
	backtestRepo *repositories.BacktestRepository

	// Strategy construction
	registry *strategy.Registry
}

// NewBacktestHandler wires the run pipeline. backtestRepo may be nil, in
// which case runs execute without persistence.
func NewBacktestHandler(priceLoader *price.PriceLoader, backtestRepo *repositories.BacktestRepository) *BacktestHandler {
	return &BacktestHandler{
		priceLoader:  priceLoader,
		backtestRepo: backtestRepo,
		registry:     strategy.NewRegistry(),
	}
}

func (h *BacktestHandler) Registry() *strategy.Registry {
	return h.registry
}

// RunRequest describes one backtest invocation.
type RunRequest struct {
	Strategy       string
	Timeframe      string
	StartDate      time.Time
	EndDate        time.Time
	InitialBalance float64
	SubSample      bool

	Config     *config.StrategyConfig
	ConfigYAML string // raw document stored with the record
}

// Run executes a full backtest: load candles, replay the strategy, compute
// metrics and persist the outcome. The record tracks the run through
// pending, running and completed or failed.
func (h *BacktestHandler) Run(ctx context.Context, req RunRequest) (*models.BacktestRecord, *backtest.Results, error) {
	if req.Config == nil {
		return nil, nil, errors.New("strategy config is required")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, nil, errors.New("end date must be after start date")
	}

	strategyName := req.Strategy
	if strategyName == "" {
		strategyName = "martingale"
	}

	btConfig := backtest.NewConfig()
	btConfig.Symbol = req.Config.Trading.Symbol
	btConfig.SubSample = req.SubSample
	if req.Timeframe != "" {
		btConfig.Timeframe = req.Timeframe
	}
	if req.InitialBalance > 0 {
		btConfig.InitialBalance = req.InitialBalance
	}
	if err := btConfig.Validate(); err != nil {
		return nil, nil, err
	}

	record := &models.BacktestRecord{
		RunID:          uuid.NewString(),
		Strategy:       strategyName,
		Symbol:         btConfig.Symbol,
		TimeFrame:      btConfig.Timeframe,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		InitialBalance: btConfig.InitialBalance,
		ConfigYAML:     req.ConfigYAML,
		Status:         models.BacktestStatusPending,
	}
	if h.backtestRepo != nil {
		if err := h.backtestRepo.Create(record); err != nil {
			return nil, nil, fmt.Errorf("error creating backtest record: %w", err)
		}
	}
	log.Printf("Backtest %s created: %s %s on %s", record.RunID, strategyName, btConfig.Symbol, btConfig.Timeframe)

	h.markRunning(record)

	series, err := h.buildSeries(ctx, btConfig, req.StartDate, req.EndDate)
	if err != nil {
		h.markFailed(record, err)
		return record, nil, err
	}

	sim := exchange.NewSimulatedExchange(series, btConfig.InitialBalance)
	strat, err := h.registry.Build(strategyName, req.Config, strategy.Deps{
		Exchange: sim,
		Clock:    sim,
	})
	if err != nil {
		h.markFailed(record, err)
		return record, nil, err
	}

	engine := backtest.NewEngine(sim, strat, btConfig)
	results, err := engine.Run(ctx)
	if err != nil {
		h.markFailed(record, err)
		return record, nil, err
	}

	if report := strat.Report(); report.LastError != "" {
		log.Printf("Backtest %s finished with contained errors: %s", record.RunID, report.LastError)
	}

	h.complete(record, results)
	return record, results, nil
}

func (h *BacktestHandler) buildSeries(ctx context.Context, cfg backtest.Config, start, end time.Time) (*candles.Series, error) {
	prices, err := h.priceLoader.Load(ctx, cfg.Symbol, cfg.Timeframe, start, end)
	if err != nil {
		return nil, err
	}

	bars := candles.FromPrices(prices)
	if cfg.SubSample {
		bars, err = candles.ExpandToSeconds(bars, cfg.Timeframe)
		if err != nil {
			return nil, err
		}
		log.Printf("Sub-sampled %d candles into %d one-second ticks", len(prices), len(bars))
	}
	return candles.NewSeries(bars)
}

func (h *BacktestHandler) markRunning(record *models.BacktestRecord) {
	record.Status = models.BacktestStatusRunning
	if h.backtestRepo == nil {
		return
	}
	if err := h.backtestRepo.MarkRunning(record.RunID); err != nil {
		log.Printf("Error marking run %s running: %v", record.RunID, err)
	}
}

func (h *BacktestHandler) markFailed(record *models.BacktestRecord, cause error) {
	record.Status = models.BacktestStatusFailed
	record.ErrorMessage = cause.Error()
	if h.backtestRepo == nil {
		return
	}
	if err := h.backtestRepo.MarkFailed(record.RunID, cause.Error()); err != nil {
		log.Printf("Error marking run %s failed: %v", record.RunID, err)
	}
}

func (h *BacktestHandler) complete(record *models.BacktestRecord, results *backtest.Results) {
	now := time.Now()

	record.FinalBalance = results.FinalBalance
	record.TotalReturn = results.TotalReturn
	record.TotalReturnAmount = results.TotalReturnAmount
	record.TotalTrades = results.TotalTrades
	record.WinTrades = results.WinTrades
	record.LossTrades = results.LossTrades
	record.WinRate = results.WinRate
	record.MaxDrawdown = results.MaxDrawdown
	record.MaxDrawdownAmount = results.MaxDrawdownAmount
	record.SharpeRatio = results.SharpeRatio
	record.ProfitFactor = results.ProfitFactor
	record.AvgWin = results.AvgWin
	record.AvgLoss = results.AvgLoss
	record.AvgTradeReturn = results.AvgTradeReturn
	record.EquityCurve = marshalPayload(results.EquityCurve)
	record.TradesData = marshalPayload(results.Trades)
	record.PriceData = marshalPayload(results.PriceData)
	record.Status = models.BacktestStatusCompleted
	record.CompletedAt = &now

	if h.backtestRepo == nil {
		return
	}
	if err := h.backtestRepo.Update(record); err != nil {
		log.Printf("Error persisting run %s results: %v", record.RunID, err)
	}
}

func marshalPayload(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error encoding result payload: %v", err)
		return ""
	}
	return string(data)
}
