package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-wager/internal/api"
	"github.com/park285/cheese-wager/internal/archive"
	"github.com/park285/cheese-wager/internal/chain"
	appcfg "github.com/park285/cheese-wager/internal/config"
	"github.com/park285/cheese-wager/internal/eventhub"
	"github.com/park285/cheese-wager/internal/ledger"
	"github.com/park285/cheese-wager/internal/msgcat"
	"github.com/park285/cheese-wager/internal/obslog"
	"github.com/park285/cheese-wager/internal/rules"
	"github.com/park285/cheese-wager/internal/wager"
)

var version = "dev"

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(cfg.Log.Options()); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	// Ledger: Redis when configured, otherwise in-process.
	var (
		store   ledger.Store
		limiter *redis.Client
	)
	if cfg.RedisURL != "" {
		rs, err := ledger.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("ledger init error: %v", err)
		}
		store, limiter = rs, rs.Client()
	} else {
		logger.Warn("ledger_in_memory", zap.String("hint", "set REDIS_URL to persist state"))
		store = ledger.NewMemStore()
	}

	var repo *archive.Repository
	if cfg.DatabaseURL != "" {
		repo, err = archive.Open(ctx, cfg.ArchiveDialect, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
	}

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		log.Fatalf("messages init error: %v", err)
	}

	hub := eventhub.New(cfg.EventBuffer)
	opts := []chain.Option{chain.WithPublisher(hub)}
	if repo != nil {
		opts = append(opts, chain.WithArchive(repo))
	}
	host, err := chain.New(store, wager.New(rules.NewChessEngine()), cfg.ContractAddress, opts...)
	if err != nil {
		log.Fatalf("host init error: %v", err)
	}

	if cfg.GenesisFile != "" {
		g, err := appcfg.LoadGenesis(cfg.GenesisFile)
		if err != nil {
			log.Fatalf("genesis error: %v", err)
		}
		applied, err := host.ApplyGenesis(ctx, g)
		if err != nil {
			log.Fatalf("genesis error: %v", err)
		}
		logger.Info("genesis", zap.Bool("applied", applied), zap.Int("accounts", len(g.Accounts)))
	}

	router := api.NewRouter(api.Deps{
		Host:         host,
		Events:       hub,
		Messages:     msgs,
		RateLimiter:  limiter,
		TxRateLimit:  cfg.TxRateLimit,
		TxRateWindow: cfg.TxRateWindow,
		Version:      version,
	})
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: router}

	go func() {
		logger.Info("http_listen", zap.String("addr", cfg.ListenAddr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http_serve_error", zap.Error(err))
		}
	}()

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown", zap.String("signal", sig.String()))

	// Drop event subscribers before draining HTTP.
	hub.Close()
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http_shutdown_error", zap.Error(err))
	}
	_ = store.Close()
	if repo != nil {
		_ = repo.Close()
	}
}
