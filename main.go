package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CryptoBacktester/config"
	"CryptoBacktester/internal/handlers"
	"CryptoBacktester/internal/models"
	"CryptoBacktester/internal/operations/binance"
	"CryptoBacktester/internal/operations/price"
	"CryptoBacktester/internal/repositories"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	var (
		configPath   = flag.String("config", "strategies/martingale.yaml", "strategy config file")
		strategyName = flag.String("strategy", "martingale", "strategy to run")
		timeframe    = flag.String("timeframe", "1m", "candle timeframe")
		startDate    = flag.String("start", "", "start date (2006-01-02), default 7 days ago")
		endDate      = flag.String("end", "", "end date (2006-01-02), default now")
		balance      = flag.Float64("balance", 10000, "initial balance")
		subSample    = flag.Bool("subsample", false, "expand candles into per-second ticks")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	rawStrategyConfig, err := os.ReadFile(*configPath)
	if err != nil {
		log.Fatal("Failed to read strategy config:", err)
	}
	strategyConfig, err := config.LoadStrategyConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load strategy config:", err)
	}

	// Setup database
	db := setupDatabase(cfg.Database)

	// Initialize repositories
	priceRepo := repositories.NewPriceRepository(db)
	backtestRepo := repositories.NewBacktestRepository(db)

	// Initialize data pipeline
	binanceClient := binance.NewBinanceClient(cfg.Exchange.APIKey, cfg.Exchange.SecretKey)
	priceFetcher := price.NewPriceFetcher(binanceClient)
	priceLoader := price.NewPriceLoader(priceFetcher, priceRepo)

	backtestHandler := handlers.NewBacktestHandler(priceLoader, backtestRepo)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Println("Interrupt received, stopping after current tick...")
		cancel()
	}()

	end := parseDate(*endDate, time.Now())
	start := parseDate(*startDate, end.AddDate(0, 0, -7))

	record, results, err := backtestHandler.Run(ctx, handlers.RunRequest{
		Strategy:       *strategyName,
		Timeframe:      *timeframe,
		StartDate:      start,
		EndDate:        end,
		InitialBalance: *balance,
		SubSample:      *subSample,
		Config:         strategyConfig,
		ConfigYAML:     string(rawStrategyConfig),
	})
	if err != nil {
		log.Fatal("Backtest failed:", err)
	}

	// Print results
	fmt.Println("\n=== Backtest Results ===")
	fmt.Printf("Run ID: %s\n", record.RunID)
	fmt.Printf("Total Trades: %d (%d wins / %d losses)\n", results.TotalTrades, results.WinTrades, results.LossTrades)
	fmt.Printf("Win Rate: %.2f%%\n", results.WinRate)
	fmt.Printf("Total Return: %.2f%% ($%.2f)\n", results.TotalReturn, results.TotalReturnAmount)
	fmt.Printf("Max Drawdown: %.2f%% ($%.2f)\n", results.MaxDrawdown, results.MaxDrawdownAmount)
	fmt.Printf("Profit Factor: %.2f\n", results.ProfitFactor)
	fmt.Printf("Sharpe Ratio: %.2f\n", results.SharpeRatio)
	fmt.Printf("Final Balance: $%.2f\n", results.FinalBalance)

	// Show recent run history
	recent, err := backtestRepo.FindRecent(5)
	if err == nil && len(recent) > 1 {
		fmt.Println("\n=== Recent Runs ===")
		for _, r := range recent {
			fmt.Printf("%s  %-12s %-10s %-4s %-10s %+.2f%%\n",
				r.CreatedAt.Format("2006-01-02 15:04"),
				r.Strategy, r.Symbol, r.TimeFrame, r.Status, r.TotalReturn)
		}
	}
}

func parseDate(value string, fallback time.Time) time.Time {
	if value == "" {
		return fallback
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		log.Fatal("Invalid date:", err)
	}
	return t
}

func setupDatabase(dbConfig config.DatabaseConfig) *gorm.DB {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto migrate database schemas
	err = db.AutoMigrate(&models.Price{}, &models.BacktestRecord{})
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	return db
}
