package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"equity-sim/config"
	"equity-sim/internal/analytics"
	"equity-sim/internal/api"
	"equity-sim/internal/auth"
	"equity-sim/internal/database"
	"equity-sim/internal/events"
	"equity-sim/internal/logging"
	"equity-sim/internal/market"
	"equity-sim/internal/regime"
	"equity-sim/internal/risk"
	"equity-sim/internal/sim"
	"equity-sim/internal/strategy"
)

func main() {
	dataDir := flag.String("data", "data", "directory of OHLCV csv files (one per symbol)")
	tradeLogPath := flag.String("trade-log", "trade_log.json", "execution log file, empty to disable")
	markInterval := flag.Duration("mark-interval", 15*time.Second, "position mark-to-market refresh interval")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LoggingConfig)
	logger.Info().Msg("structured logging initialized")

	// Market data feed. Bars come from local CSV files; a vendor-backed
	// HistoryProvider/QuoteProvider can replace the SliceFeed without
	// touching anything downstream.
	feed := market.NewSliceFeed()
	loaded, err := market.LoadCSVDir(feed, *dataDir)
	if err != nil {
		logger.Warn().Err(err).Str("dir", *dataDir).Msg("historical data not loaded")
	} else {
		logger.Info().Int("symbols", loaded).Str("dir", *dataDir).Msg("historical data loaded")
	}

	var quotes market.QuoteProvider = feed
	if cfg.RedisConfig.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		quotes = market.NewQuoteCache(feed, client, time.Duration(cfg.RedisConfig.QuoteTTL)*time.Second, logger)
		logger.Info().Str("addr", cfg.RedisConfig.Addr).Msg("redis quote cache enabled")
	}

	eventBus := events.NewEventBus()

	// Shared risk subsystem for the paper trading session. Backtests get
	// fresh instances per run.
	account := sim.NewAccount(cfg.SimConfig.InitialCapital)
	drawdown := risk.NewDrawdownController(cfg.RiskConfig, logger)
	exposure := risk.NewExposureManager(cfg.RiskConfig, account, cfg.SimConfig.InitialCapital)

	var tradeLog *analytics.TradeLogger
	var recorder sim.ExecutionRecorder
	if *tradeLogPath != "" {
		tradeLog, err = analytics.NewTradeLogger(*tradeLogPath, logger)
		if err != nil {
			logger.Warn().Err(err).Str("path", *tradeLogPath).Msg("trade log disabled")
		} else {
			recorder = tradeLog
		}
	}

	trader := sim.NewPaperTrader(quotes, account, drawdown, exposure, eventBus, recorder, logger)

	// Macro regime detection. The static snapshot keeps the process
	// self-contained; a live indicator feed implements IndicatorSource.
	detector := regime.NewDetector(regime.StaticIndicators{
		Values: regime.Indicators{
			VIX:            20,
			SentimentScore: 50,
			SentimentLabel: "neutral",
		},
	}, 15*time.Minute, logger)

	providers := strategy.Providers{
		Regime:       detector,
		Fundamentals: strategy.StaticFundamentals{Pass: true},
		Sentiment:    strategy.StaticSentiment{Score: 50, Threshold: 40},
		Intermarket:  detector,
	}

	runBacktest := func(ctx context.Context, req sim.BacktestRequest) (*sim.BacktestResult, error) {
		btAccount := sim.NewAccount(cfg.SimConfig.InitialCapital)
		btDrawdown := risk.NewDrawdownController(cfg.RiskConfig, logger)
		btExposure := risk.NewExposureManager(cfg.RiskConfig, btAccount, cfg.SimConfig.InitialCapital)
		sizer := risk.NewPositionSizer(cfg.RiskConfig)
		engine := strategy.NewDecisionEngine(
			strategy.NewTrendFollowing(), sizer, btDrawdown, btExposure, providers, false, logger)
		bt := sim.NewBacktester(cfg.SimConfig, feed, engine, sizer, btDrawdown, btExposure, btAccount, logger)
		return bt.Run(ctx, req)
	}

	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		db, err := database.NewDB(ctx, cfg.DatabaseConfig)
		if err != nil {
			cancel()
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := db.Migrate(ctx); err != nil {
			cancel()
			log.Fatalf("Failed to run migrations: %v", err)
		}
		cancel()
		defer db.Close()
		repo = database.NewRepository(db)
		logger.Info().Msg("backtest persistence enabled")
	}

	authService := auth.NewService(cfg.AuthConfig)
	if cfg.AuthConfig.Enabled {
		logger.Info().Str("username", cfg.AuthConfig.Username).Msg("api authentication enabled")
	}

	server := api.NewServer(*cfg, trader, runBacktest, repo, authService, tradeLog, eventBus, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Periodically refresh marks so drawdown and exposure track the market
	// between orders.
	go func() {
		ticker := time.NewTicker(*markInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				trader.ProcessMarketData(ctx)
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("api server stopped")
		os.Exit(1)
	}
}
