package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/papertrade/papertrade/internal/alerts"
	"github.com/papertrade/papertrade/internal/config"
	httphandler "github.com/papertrade/papertrade/internal/handler/http"
	"github.com/papertrade/papertrade/internal/marketdata"
	"github.com/papertrade/papertrade/internal/repository"
	"github.com/papertrade/papertrade/internal/service"
	"github.com/papertrade/papertrade/internal/websocket"
	"github.com/papertrade/papertrade/storage/postgres"
	"github.com/papertrade/papertrade/storage/redis"
	"github.com/shopspring/decimal"
)

type App struct {
	cfg             *config.Config
	log             *slog.Logger
	httpServer      *http.Server
	storage         *postgres.Storage
	redisClient     *redis.Client
	redisSubscriber *redis.Subscriber
	wsManager       *websocket.Manager
	ledgerService   service.LedgerService
	tokenService    service.TokenService
	alertsService   *alerts.Service

	ctx    context.Context
	cancel context.CancelFunc
}

func New(log *slog.Logger, cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())

	storage, err := postgres.New(cfg.Database)
	if err != nil {
		panic(fmt.Errorf("failed to init storage: %w", err))
	}

	startingCash, err := decimal.NewFromString(cfg.Ledger.StartingCash)
	if err != nil {
		panic(fmt.Errorf("invalid starting cash %q: %w", cfg.Ledger.StartingCash, err))
	}

	redisClient := redis.New(cfg.Redis, log)
	redisSubscriber := redis.NewSubscriber(redisClient, log)

	gateway := marketdata.NewClient(cfg.Market, log)
	locks := service.NewUserLocks()

	usersRepo := repository.NewUsersRepository(storage.DB)
	sessionsRepo := repository.NewSessionsRepository(storage.DB)
	portfoliosRepo := repository.NewPortfoliosRepository(storage.DB)
	transactionsRepo := repository.NewTransactionsRepository(storage.DB)

	usersService := service.NewUsersService(usersRepo, storage.DB, startingCash)
	tokenService := service.NewTokenService(sessionsRepo, usersRepo, storage.DB, cfg.Security)
	portfolioService := service.NewPortfolioService(portfoliosRepo, storage.DB, gateway, locks, log)
	ledgerService := service.NewLedgerService(transactionsRepo, storage.DB, gateway, redisClient, locks, log)
	alertsService := alerts.NewService(redisClient.Raw(), gateway, redisClient, log)

	wsManager := websocket.NewManager(log, redisSubscriber)

	ginEngine := gin.New()
	httpHandler := httphandler.NewHandler(
		usersService, tokenService, portfolioService, ledgerService,
		alertsService, gateway, wsManager, log,
		cfg.Security.JWTSecret, cfg.Security.RefreshTokenTTL,
	)
	httpHandler.RegisterRoutes(ginEngine)

	httpServer := &http.Server{
		Addr:    net.JoinHostPort("", strconv.FormatUint(uint64(cfg.HTTP.Port), 10)),
		Handler: ginEngine,
	}

	return &App{
		log:             log,
		cfg:             cfg,
		httpServer:      httpServer,
		storage:         storage,
		redisClient:     redisClient,
		redisSubscriber: redisSubscriber,
		wsManager:       wsManager,
		ledgerService:   ledgerService,
		tokenService:    tokenService,
		alertsService:   alertsService,
		ctx:             ctx,
		cancel:          cancel,
	}
}

func (a *App) Run() error {
	errChan := make(chan error, 2)
	a.log.Info("starting application components...")

	go func() {
		a.log.Info("websocket manager started")
		a.wsManager.Run(a.ctx)
		a.log.Info("websocket manager stopped")
	}()

	go func() {
		a.log.Info("sweeper started", "interval", a.cfg.Ledger.SweepInterval)
		a.runSweeper()
		a.log.Info("sweeper stopped")
	}()

	go func() {
		if err := a.runHTTP(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	err := <-errChan
	a.log.Warn("shutting down application due to an error", "error", err)

	a.Stop()
	return err
}

// runSweeper periodically settles conditional entries, reschedules recurring
// ones, fires due price alerts and drops expired sessions.
func (a *App) runSweeper() {
	ticker := time.NewTicker(a.cfg.Ledger.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			if err := a.ledgerService.SweepConditional(a.ctx); err != nil {
				a.log.Error("conditional sweep failed", "error", err)
			}
			if err := a.ledgerService.SweepRecurring(a.ctx); err != nil {
				a.log.Error("recurring sweep failed", "error", err)
			}
			a.alertsService.Check(a.ctx)
			if err := a.tokenService.DeleteExpired(); err != nil {
				a.log.Error("expired session cleanup failed", "error", err)
			}
		}
	}
}

func (a *App) Stop() {
	a.log.Info("stopping application components gracefully...")

	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.HTTP.Timeout)
	defer shutdownCancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("failed to gracefully shutdown HTTP server", "error", err)
	} else {
		a.log.Info("HTTP server stopped")
	}

	a.redisSubscriber.Close()

	if err := a.redisClient.Close(); err != nil {
		a.log.Warn("failed to close redis client", "error", err)
	}

	if err := a.storage.Stop(); err != nil {
		a.log.Error("failed to stop storage", "error", err)
	} else {
		a.log.Info("database connection closed")
	}
}

func (a *App) runHTTP() error {
	const op = "app.runHTTP"

	a.log.Info("HTTP server is running", "addr", a.httpServer.Addr)

	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
