package main

import (
	"context"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qmdx00/lifecycle"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"calendar-service/core"
	"calendar-service/pkg/auth"
	"calendar-service/pkg/resources"
	"calendar-service/pkg/servers"
)

func main() {
	name, version, env := "calendar-service", "1.0", "local"

	// 1. Config (logger base included)
	ctx := resources.Setup(context.Background(), name, version, env)
	startupLogger := log.Ctx(ctx).With().Str("stage", "startup").Str("component", "main").Logger()
	shutdownLogger := log.Ctx(ctx).With().Str("stage", "shut down").Str("component", "main").Logger()

	startupLogger.Info().Msg("application starting up")
	defer shutdownLogger.Info().Msg("application stopped")

	// 2. Telemetry (traces/metrics/logs), zerolog bridged into OTel
	ctx, stopTelemetryFn, err := resources.Observe(ctx, name, version, env)
	if err != nil {
		shutdownLogger.Fatal().Err(err).Msg("unable to setup otel telemetry")
	}
	defer stopTelemetryFn(ctx, 15*time.Second)

	// 3. Core resources
	pool, err := resources.CreateDatabaseConnectionPool(ctx)
	if err != nil {
		shutdownLogger.Fatal().Err(err).Msg("unable to create database connection pool")
	}

	// 4. Wiring
	tokens := auth.JWT{Secret: []byte(viper.GetString("AUTH_SECRET")), TokenTTL: resources.TokenTTL()}
	authHandlers := auth.NewHandlers(auth.NewUserStore(pool), tokens)

	repository := core.NewRepository(pool)
	handlers := core.NewHandlers(repository)

	// 5. HTTP surface
	gin.SetMode(gin.ReleaseMode)

	restHandler := gin.Default()
	restHandler.Use(resources.TracerMiddleware(name))
	restHandler.Use(resources.MeterMiddleware(name))

	restHandler.POST("/auth/register", authHandlers.PostRegister)
	restHandler.POST("/auth/login", authHandlers.PostLogin)

	events := restHandler.Group("/events", auth.Middleware(tokens))
	events.POST("", handlers.PostEvents)
	events.GET("", handlers.GetEvents)
	events.GET("/:id", handlers.GetEventById)
	events.PUT("/:id", handlers.PutEvents)
	events.DELETE("/:id", handlers.DeleteEvents)
	events.POST("/:id/cancel-occurrence", handlers.PostCancelOccurrence)

	debugHandler := http.NewServeMux()
	debugHandler.HandleFunc("/debug/pprof/", pprof.Index)
	debugHandler.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	debugHandler.HandleFunc("/debug/pprof/profile", pprof.Profile)
	debugHandler.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	debugHandler.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// 6. Server lifecycle
	app := lifecycle.NewApp(lifecycle.WithName(name), lifecycle.WithVersion(version))

	app.Attach("base-server", servers.NewBaseServer(pool))
	app.Attach("debug-server", servers.NewHttpServer(&http.Server{
		Addr:              net.JoinHostPort(viper.GetString("HTTP_HOST"), viper.GetString("DEBUG_PORT")),
		Handler:           debugHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}))
	app.Attach("rest-server", servers.NewHttpServer(&http.Server{
		Addr:              net.JoinHostPort(viper.GetString("HTTP_HOST"), viper.GetString("HTTP_PORT")),
		Handler:           restHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}))

	startupLogger.Info().Msg("application running")

	err = app.Run()
	if err != nil {
		shutdownLogger.Error().Err(err).Msg("runtime error")
	}
}
