package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/rainman456/Dllm-Demo-Saros/internal/analyzer"
	"github.com/rainman456/Dllm-Demo-Saros/internal/config"
	"github.com/rainman456/Dllm-Demo-Saros/internal/datafetcher"
	"github.com/rainman456/Dllm-Demo-Saros/internal/logger"
	"github.com/rainman456/Dllm-Demo-Saros/internal/notify"
	"github.com/rainman456/Dllm-Demo-Saros/internal/planner"
	"github.com/rainman456/Dllm-Demo-Saros/internal/scheduler"
	"github.com/rainman456/Dllm-Demo-Saros/internal/staking"
	"github.com/rainman456/Dllm-Demo-Saros/internal/state"
	"github.com/rainman456/Dllm-Demo-Saros/internal/stoploss"
	"github.com/rainman456/Dllm-Demo-Saros/internal/vault"
	"github.com/rainman456/Dllm-Demo-Saros/internal/web"
)

const MOCK_SEED = 42

// eventStore is what both the Postgres store and the in-memory store provide.
type eventStore interface {
	scheduler.EventStore
	stoploss.ConfigStore
	web.EventReader
}

// executor is what both the paper and remote executors provide.
type executor interface {
	vault.Executor
	vault.Staker
}

// main is the entry point for the rebalancer.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	var extra []io.Writer
	if cfg.LogFile != "" {
		fw, err := logger.FileWriter(cfg.LogFile)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.LogFile).Msg("Failed to open log file")
		}
		extra = append(extra, fw)
	}
	logger.Initialize(cfg.LogLevel, cfg.LogFormat, extra...)
	log.Info().Str("mode", cfg.RunMode).Msg("DLMM rebalancer starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 2. Event store: Postgres when configured, memory otherwise ---
	var store eventStore
	if cfg.DB.Enabled() {
		db, err := state.Open(ctx, state.DBConfig{
			Host: cfg.DB.Host, Port: cfg.DB.Port,
			User: cfg.DB.User, Password: cfg.DB.Password,
			DBName: cfg.DB.Name, SSLMode: cfg.DB.SSLMode,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		pg := state.NewStore(db)
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		store = pg
	} else {
		log.Warn().Msg("DB_HOST not set; events and stop-loss configs are kept in memory only.")
		store = state.NewMemoryStore(0)
	}

	// --- 3. Provider and executor (with safety switch) ---
	var (
		provider datafetcher.Provider
		exec     executor
	)
	switch cfg.RunMode {
	case config.RunModeLive:
		log.Warn().Msg("Initializing in LIVE mode. Actions are sent to the signing service.")
		indexer, err := datafetcher.NewIndexerClient(datafetcher.IndexerConfig{
			BaseURL: cfg.Endpoints.IndexerAPI,
			APIKey:  cfg.Endpoints.IndexerAPIKey,
			RPS:     cfg.Endpoints.IndexerRPS,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize indexer client")
		}
		remote, err := vault.NewRemoteExecutor(cfg.Endpoints.ExecutorAPI, nil)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize remote executor")
		}
		provider, exec = indexer, remote
	default:
		log.Info().Msg("Initializing in MOCK mode with simulated pools and a paper executor.")
		provider, exec = datafetcher.NewMockProvider(MOCK_SEED), vault.NewPaperExecutor()
	}

	// --- 4. Core components ---
	engine, err := planner.NewEngine(cfg.Params)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid rebalance parameters")
	}

	monitor := stoploss.NewMonitor(exec, store)
	if err := monitor.Load(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to hydrate stop-loss registry; starting empty")
	}

	stakingManager := staking.NewManager(exec)
	notifier, closeNotifier := buildNotifier(ctx, cfg.Endpoints)
	tracker := analyzer.NewTracker(0)

	sched, err := scheduler.New(scheduler.Config{
		Provider:         provider,
		Executor:         exec,
		Events:           store,
		Engine:           engine,
		Notifier:         notifier,
		StopLoss:         monitor,
		Staking:          stakingManager,
		Tracker:          tracker,
		Interval:         cfg.Params.BackgroundInterval,
		AutoExecute:      cfg.AutoExecute,
		SampleMarginBins: cfg.Params.SampleMarginBins,
		MaxConcurrency:   cfg.MaxConcurrency,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	defer sched.Close()

	for _, wallet := range cfg.MonitoredWallets {
		if _, err := sched.Subscribe(wallet, cfg.MonitoredPool); err != nil {
			log.Fatal().Err(err).Str("wallet", wallet).Msg("Failed to subscribe wallet")
		}
	}
	log.Info().Int("wallets", len(cfg.MonitoredWallets)).Dur("interval", cfg.Params.BackgroundInterval).Msg("Background monitoring started")

	// --- 5. Web server ---
	webServer := web.NewWebServer(web.Config{
		Port:              cfg.WebPort,
		Events:            store,
		Subscriptions:     sched,
		StopLoss:          monitor,
		Staking:           stakingManager,
		Volatility:        tracker,
		DashboardInterval: cfg.Params.DashboardInterval,
	})
	go func() {
		log.Info().Str("port", cfg.WebPort).Str("url", "http://localhost:"+cfg.WebPort).Msg("Starting rebalancer API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed")
			stop()
		}
	}()

	// --- 6. Wait for shutdown ---
	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Web server shutdown failed")
	}
	sched.Close()
	closeNotifier()
	log.Info().Msg("Rebalancer stopped")
}

// buildNotifier registers every sender whose credentials are configured. The returned func
// releases the Redis connection, if one was opened.
func buildNotifier(ctx context.Context, ep config.EndpointConfig) (*notify.Notifier, func()) {
	var senders []notify.Sender
	closeFn := func() {}
	if ep.TelegramBotToken != "" && ep.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(ep.TelegramBotToken, ep.TelegramChatID))
	}
	if ep.RedisAddr != "" {
		rdb, err := notify.NewRedisClient(ctx, ep.RedisAddr, ep.RedisPassword, ep.RedisDB)
		if err != nil {
			log.Error().Err(err).Msg("Redis unavailable; event publishing disabled")
		} else {
			senders = append(senders, notify.NewRedisPublisher(rdb, ep.RedisChannel))
			closeFn = func() {
				if err := rdb.Close(); err != nil {
					log.Warn().Err(err).Msg("Failed to close Redis client")
				}
			}
		}
	}

	n := notify.NewNotifier(senders)
	log.Info().Strs("senders", n.Senders()).Msg("Notifier configured")
	return n, closeFn
}
