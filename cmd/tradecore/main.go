// Command tradecore runs the compliance trading core: the hash-chained audit
// ledger, the order lifecycle state machine and the pre-trade compliance gate
// behind an HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/quantrail/tradecore/internal/accounts"
	"github.com/quantrail/tradecore/internal/api"
	"github.com/quantrail/tradecore/internal/audit"
	"github.com/quantrail/tradecore/internal/compliance/gate"
	"github.com/quantrail/tradecore/internal/config"
	"github.com/quantrail/tradecore/internal/ledger"
	"github.com/quantrail/tradecore/internal/metrics"
	"github.com/quantrail/tradecore/internal/trading"
	"github.com/quantrail/tradecore/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("tradecore exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}

	m := metrics.New()

	store, err := ledger.NewStore(db, log.Named("ledger"))
	if err != nil {
		return err
	}
	auditSvc := audit.NewService(store, log.Named("audit"), m, nil)

	defaults, err := riskDefaults(cfg.Risk)
	if err != nil {
		return err
	}
	accts, err := accounts.NewService(db, log.Named("accounts"), auditSvc, defaults, nil)
	if err != nil {
		return err
	}

	referencePrice, err := decimal.NewFromString(cfg.Risk.MarketReferencePrice)
	if err != nil {
		return err
	}
	g, err := gate.New(log.Named("gate"), gate.Builtin(referencePrice)...)
	if err != nil {
		return err
	}

	orders, err := trading.NewService(db, log.Named("trading"), g, accts, auditSvc, m, nil)
	if err != nil {
		return err
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := api.NewServer(log.Named("api"), auditSvc, orders, accts, m)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

func openDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	switch cfg.Driver {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	default:
		return gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
	}
}

func riskDefaults(cfg config.RiskConfig) (accounts.Defaults, error) {
	ceiling, err := decimal.NewFromString(cfg.DefaultMaxOrderNotional)
	if err != nil {
		return accounts.Defaults{}, err
	}
	return accounts.Defaults{
		MaxOrderNotional: ceiling,
		DailyOrderLimit:  cfg.DefaultDailyOrderLimit,
	}, nil
}
