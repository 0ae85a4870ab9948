package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	otelgin "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/bus"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/config"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/health"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/logging"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/middleware"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/party"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/ratelimit"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/tracing"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/pkg/sfu"
)

func main() {
	for _, path := range []string{".env", "../../../.env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	ctx := context.Background()

	cfg, err := config.ValidateEnv()
	if err != nil {
		// Logger isn't up yet; this is the one place we fall back to stderr.
		panic(err)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		panic(err)
	}
	defer logging.Sync()

	if collector := os.Getenv("OTEL_COLLECTOR_ADDR"); collector != "" {
		tp, err := tracing.InitTracer(ctx, "watchparty-backend", collector)
		if err != nil {
			logging.Warn(ctx, "tracing disabled: failed to init tracer", zap.Error(err))
		} else {
			defer func() { _ = tp.Shutdown(context.Background()) }()
		}
	}

	var busService *bus.Service
	var redisClient *redis.Client
	if cfg.BusRedisAddr != "" {
		busService, err = bus.NewService(cfg.BusRedisAddr, cfg.BusRedisPassword)
		if err != nil {
			logging.Warn(ctx, "bus disabled: failed to connect to redis", zap.Error(err))
			busService = nil
		} else {
			redisClient = busService.Client()
			defer func() { _ = busService.Close() }()
		}
	}

	sfuEngine, err := sfu.NewEngine(sfu.Config{
		NumWorkers:  cfg.MediasoupNumWorkers,
		AnnouncedIP: cfg.MediasoupAnnouncedIP,
		PortMin:     uint16(cfg.MediasoupMinPort),
		PortMax:     uint16(cfg.MediasoupMaxPort),
	})
	if err != nil {
		logging.Fatal(ctx, "failed to start SFU engine", zap.Error(err))
	}

	limiter, err := ratelimit.NewRateLimiter(cfg, redisClient)
	if err != nil {
		logging.Fatal(ctx, "failed to build rate limiter", zap.Error(err))
	}

	titleResolver := party.NewOEmbedResolver()
	registry := party.NewRegistry(cfg, sfuEngine, busService, titleResolver)
	registry.StartHeartbeat(ctx)

	healthHandler := health.NewHandler(busService, registry)
	httpHandlers := party.NewHTTPHandlers(registry, cfg, party.NewCommentsProxy(cfg.InvidiousInstances))

	if cfg.GoEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(otelgin.Middleware("watchparty-backend"))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = []string{cfg.CorsOrigin}
	corsCfg.AllowCredentials = true
	router.Use(cors.New(corsCfg))

	router.Use(limiter.GlobalMiddleware())

	router.GET("/health", httpHandlers.Health)
	router.GET("/healthz", healthHandler.Liveness)
	router.GET("/readyz", healthHandler.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ice-servers", httpHandlers.IceServers)
	router.GET("/rooms", limiter.RoomsMiddleware(), httpHandlers.Rooms)
	router.GET("/comments/:videoId", httpHandlers.Comments)

	router.GET("/ws", func(c *gin.Context) {
		if !limiter.CheckWebSocket(c) {
			return
		}
		httpHandlers.Ws(c)
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logging.Info(ctx, "watch party server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(ctx, "server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "server forced to shutdown", zap.Error(err))
	}
}
