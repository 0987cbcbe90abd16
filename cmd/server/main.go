package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/audit"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/config"
	cronrunner "github.com/Tomato007Tomats/crypto-analyst-agent/internal/cron"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/feed"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/handler"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/logger"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/opportunity"

	_ "github.com/Tomato007Tomats/crypto-analyst-agent/docs"
)

func main() {
	cfgPath := os.Getenv("CA_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("CA_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log, cfg.App.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := wire(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer app.close()

	manager := &opportunity.Manager{
		Store:  app.store,
		Board:  app.board,
		Cache:  app.board,
		Logger: logger,
	}
	if app.hub != nil {
		manager.Feed = app.hub
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	var auditWriter audit.Writer
	if c := audit.NewClient(cfg.Audit.BaseURL, cfg.Audit.APIKey, cfg.Audit.Agent); c != nil {
		auditWriter = c
		logger.Info("audit forwarding enabled", zap.String("base_url", cfg.Audit.BaseURL))
	}
	engine.Use(audit.WriteMiddleware(auditWriter, logger))

	healthHandler := &handler.HealthHandler{Checks: app.checks}
	healthHandler.Register(engine)
	oppHandler := &handler.OpportunityHandler{Service: manager, Logger: logger}
	oppHandler.Register(engine)
	if app.hub != nil {
		feedHandler := &feed.Handler{Hub: app.hub, Logger: logger, OriginPatterns: []string{"*"}}
		feedHandler.Register(engine)
	}
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	cronRunner := cronrunner.New(logger, ctx)
	if app.board.Cache != nil && strings.TrimSpace(cfg.Board.RefreshSpec) != "" {
		_, err := cronRunner.Add("board-refresh", cfg.Board.RefreshSpec, func(ctx context.Context) error {
			n, err := app.board.Refresh(ctx)
			if err != nil {
				return err
			}
			logger.Debug("board snapshot refreshed", zap.Int("opportunities", n))
			return nil
		})
		if err != nil {
			logger.Warn("cron register board refresh failed", zap.Error(err))
		}
		if cfg.Board.RefreshAtBoot {
			if _, err := app.board.Refresh(ctx); err != nil {
				logger.Warn("initial board refresh failed", zap.Error(err))
			}
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting",
			zap.String("addr", cfg.Server.HTTPAddr),
			zap.String("store", cfg.Store.Backend),
			zap.String("board_source", cfg.Board.Source),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
