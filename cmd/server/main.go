package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"empathos.app/relay/common/id"
	"empathos.app/relay/common/llm"
	"empathos.app/relay/common/logger"
	"empathos.app/relay/common/otel"
	"empathos.app/relay/core/config"
	"empathos.app/relay/core/db"
	"empathos.app/relay/internal/brain"
	"empathos.app/relay/internal/http/middleware"
	httprouter "empathos.app/relay/internal/http/router"
	"empathos.app/relay/internal/locale"
	"empathos.app/relay/internal/model"
	"empathos.app/relay/internal/service"
	"empathos.app/relay/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel, cfg.Env)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "empathos relay starting",
		"env", cfg.Env,
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"server_key", cfg.LLM.HasServerKey())
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	catalog, err := locale.Load(cfg.DefaultLocale)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load locale tables", "error", err)
		os.Exit(1)
	}

	sessions, err := store.NewSessionStore(ctx, cfg.SessionStore)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open session store", "error", err)
		os.Exit(1)
	}
	defer sessions.Close()

	var exchanges store.ExchangeStore
	var recorder brain.Recorder
	if cfg.DB.Enabled() {
		database, err := db.New(ctx, cfg.DB)
		if err != nil {
			slog.ErrorContext(ctx, "failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to migrate audit schema", "error", err)
			os.Exit(1)
		}
		exchanges = store.NewExchangeStore(database.Pool())
		recorder = exchanges
		slog.InfoContext(ctx, "exchange audit store enabled")
	}

	orch := brain.NewOrchestrator(
		brain.OrchestratorConfig{DevLog: cfg.Drafting.DevLog},
		llm.NewFactory(llm.FromConfig(cfg.LLM)),
		recorder,
	)

	services := service.NewServices(service.ServicesConfig{
		Sessions:     sessions,
		Exchanges:    exchanges,
		Orchestrator: orch,
		DefaultMode:  model.Mode(cfg.Drafting.DefaultMode),
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services, catalog)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services, catalog *locale.Catalog) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, catalog, httprouter.RouterConfig{
		DefaultMode: model.Mode(cfg.Drafting.DefaultMode),
		WordCeiling: cfg.Drafting.WordCeiling,
		ServerKey:   cfg.LLM.HasServerKey(),
	})

	return router
}

const banner = `
███████╗███╗   ███╗██████╗  █████╗ ████████╗██╗  ██╗ ██████╗ ███████╗
██╔════╝████╗ ████║██╔══██╗██╔══██╗╚══██╔══╝██║  ██║██╔═══██╗██╔════╝
█████╗  ██╔████╔██║██████╔╝███████║   ██║   ███████║██║   ██║███████╗
██╔══╝  ██║╚██╔╝██║██╔═══╝ ██╔══██║   ██║   ██╔══██║██║   ██║╚════██║
███████╗██║ ╚═╝ ██║██║     ██║  ██║   ██║   ██║  ██║╚██████╔╝███████║
╚══════╝╚═╝     ╚═╝╚═╝     ╚═╝  ╚═╝   ╚═╝   ╚═╝  ╚═╝ ╚═════╝ ╚══════╝
`
