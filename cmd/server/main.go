package main

import (
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/quantfold/papertrade/internal/advisor"
	"github.com/quantfold/papertrade/internal/api"
	"github.com/quantfold/papertrade/internal/autotrader"
	"github.com/quantfold/papertrade/internal/config"
	"github.com/quantfold/papertrade/internal/ledger"
	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/internal/market"
	"github.com/quantfold/papertrade/internal/news"
	"github.com/quantfold/papertrade/internal/order"
	"github.com/quantfold/papertrade/internal/pressure"
	"github.com/quantfold/papertrade/internal/report"
	"github.com/quantfold/papertrade/internal/repository"
	"github.com/quantfold/papertrade/internal/scan"
	"github.com/quantfold/papertrade/internal/session"
	"github.com/quantfold/papertrade/internal/signal"
	"github.com/quantfold/papertrade/internal/types"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// hubPublisher adapts the websocket hub to the scanner's publisher.
type hubPublisher struct {
	hub *api.Hub
}

func (p hubPublisher) Publish(eventType, symbol string, payload any) {
	p.hub.Publish(api.Event{Type: eventType, Symbol: symbol, Payload: payload})
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg := config.Default()

	if path := cmd.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}

		cfg = loaded
	}

	appLogger, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	store, err := repository.NewStore(appLogger, cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Initialize(); err != nil {
		return err
	}

	if err := seedAccount(store, cfg); err != nil {
		return err
	}

	window, err := session.NewWindow(cfg.Session)
	if err != nil {
		return err
	}

	adv := buildAdvisor(appLogger, cfg)
	quotes := buildQuoteSource(appLogger, cfg, window)

	analyzer := market.NewAnalyzer(appLogger, store)
	scorer := pressure.NewScorer(appLogger)
	sentiment := pressure.NewSentimentScorer(appLogger, adv)
	detector := signal.NewDetector(appLogger)

	guard := ledger.NewGuard(appLogger, store, window)
	costs := ledger.NewCostModel(cfg.Fees)
	engine := order.NewEngine(appLogger, store, guard, quotes, adv, cfg, cfg.AccountID)
	reporter := report.NewReporter(appLogger, store, adv)

	trader := autotrader.NewTrader(appLogger, store, guard, quotes, analyzer, window, cfg)
	trader.SetReporter(reporter)

	hub := api.NewHub(appLogger)
	go hub.Run()

	scanner := scan.NewScanner(appLogger, store, quotes, analyzer, scorer, sentiment, detector,
		buildTextSource(appLogger, cfg), hubPublisher{hub: hub})

	server := api.NewServer(appLogger, store, engine, guard, costs, reporter, hub, cfg.AccountID, cfg.HTTPPort)

	loopCtx, cancelLoops := context.WithCancel(ctx)
	defer cancelLoops()

	go scanLoop(loopCtx, scanner, cfg)
	go checkLoop(loopCtx, appLogger, engine, cfg)
	go tradeLoop(loopCtx, appLogger, trader, cfg)

	errCh := make(chan error, 1)

	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	ossignal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		appLogger.Info("Shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	cancelLoops()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

// seedAccount creates the simulated account on first run.
func seedAccount(store *repository.Store, cfg config.Config) error {
	accountOpt, err := store.GetAccount(cfg.AccountID)
	if err != nil {
		return err
	}

	if accountOpt.IsSome() {
		return nil
	}

	return store.SaveAccount(types.Account{
		ID:          cfg.AccountID,
		CashBalance: cfg.InitialCapital,
		EquityValue: 0,
		TotalValue:  cfg.InitialCapital,
		UpdatedAt:   time.Now(),
	})
}

// buildAdvisor returns the configured advisor, or the Noop advisor so every
// caller degrades to neutral defaults.
func buildAdvisor(log *logger.Logger, cfg config.Config) advisor.Advisor {
	apiKey := os.Getenv(cfg.Advisor.APIKeyEnv)
	if cfg.Advisor.Endpoint == "" || apiKey == "" {
		log.Warn("Advisor not configured, sentiment and annotations degrade to neutral")

		return advisor.NewNoop()
	}

	return advisor.NewOpenAIClient(log, cfg.Advisor.Endpoint, apiKey, cfg.Advisor.Model,
		cfg.Advisor.Timeout, cfg.Advisor.MinInterval)
}

// buildTextSource returns the headline scraper, or nil when news scraping
// is disabled; the scanner then scores sentiment as neutral.
func buildTextSource(log *logger.Logger, cfg config.Config) scan.TextSource {
	if !cfg.News.Enabled {
		log.Warn("News scraping disabled, sentiment degrades to neutral")

		return nil
	}

	return news.NewScraper(log, cfg.News)
}

// buildQuoteSource chains the configured providers behind the rate-limited
// fallback chain.
func buildQuoteSource(log *logger.Logger, cfg config.Config, window *session.Window) market.QuoteSource {
	var sources []market.QuoteSource

	if apiKey := os.Getenv(cfg.Quotes.PolygonAPIKeyEnv); apiKey != "" {
		polygonSource, err := market.NewPolygonSource(log, apiKey, window)
		if err == nil {
			sources = append(sources, market.NewRateLimitedSource(polygonSource, cfg.Quotes.MinInterval))
		}
	}

	if len(sources) == 0 {
		log.Warn("No quote providers configured; quotes will be unavailable")
	}

	return market.NewChainSource(log, sources...)
}

func scanLoop(ctx context.Context, scanner *scan.Scanner, cfg config.Config) {
	ticker := time.NewTicker(cfg.Pressure.RecalcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			scanner.ScanAll(ctx, cfg.Watchlist)
		}
	}
}

func checkLoop(ctx context.Context, log *logger.Logger, engine *order.Engine, cfg config.Config) {
	ticker := time.NewTicker(cfg.Orders.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := engine.CheckAll(ctx); err != nil {
				log.Warn("Order check pass failed", zap.Error(err))
			}
		}
	}
}

func tradeLoop(ctx context.Context, log *logger.Logger, trader *autotrader.Trader, cfg config.Config) {
	ticker := time.NewTicker(cfg.Pressure.SignalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := trader.Cycle(ctx); err != nil {
				log.Warn("Auto-trader cycle failed", zap.Error(err))
			}
		}
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "papertrade-server",
		Usage:  "Run the paper-trading engine and its HTTP API",
		Action: serveAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
