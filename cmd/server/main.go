package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gekymedia/gekychat-sub007/internal/cache"
	"github.com/gekymedia/gekychat-sub007/internal/config"
	"github.com/gekymedia/gekychat-sub007/internal/handlers"
	"github.com/gekymedia/gekychat-sub007/internal/handlers/ws"
	"github.com/gekymedia/gekychat-sub007/internal/logger"
	"github.com/gekymedia/gekychat-sub007/internal/metrics"
	"github.com/gekymedia/gekychat-sub007/internal/realtime"
	"github.com/gekymedia/gekychat-sub007/internal/repository"
	"github.com/gekymedia/gekychat-sub007/internal/service"
	"github.com/gekymedia/gekychat-sub007/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.InitDB(cfg.Database)
	if err != nil {
		zl.Fatal("connect database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zl.Fatal("database handle", zap.Error(err))
	}
	store := repository.NewStore(db)
	pendingRepo := repository.NewPendingMessageRepository(db)

	// Redis is optional: caches degrade to direct store reads.
	redisCache := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := redisCache.Ping(ctx); err != nil {
		zl.Warn("redis unavailable, running without cache", zap.Error(err))
		_ = redisCache.Close()
		redisCache = nil
	} else {
		zl.Info("redis cache connected", zap.String("addr", cfg.Redis.Addr))
	}
	messageCache := cache.NewMessageCache(redisCache)
	userCache := cache.NewUserCache(redisCache)

	var s3Store *storage.S3Storage
	if cfg.Storage.Enabled() {
		s3Store, err = storage.NewS3Storage(cfg.Storage)
		if err != nil {
			zl.Fatal("init attachment storage", zap.Error(err))
		}
		zl.Info("attachment storage initialized", zap.String("bucket", cfg.Storage.Bucket))
	}

	hub := ws.NewHub(pendingRepo, zl.Named("hub"))
	hub.Run(ctx)

	transport, closers := buildTransports(cfg, hub, redisCache, zl)
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()

	fanout := service.NewFanoutService(transport, zl.Named("fanout"))
	identity := service.NewIdentityService(store, userCache, cfg.Messages.DefaultCountryCode, zl.Named("identity"))
	conversations := service.NewConversationService(store, messageCache, cfg.StoreRetryAttempts, zl.Named("conversations"))
	statuses := service.NewStatusService(store, messageCache, fanout, cfg.StoreRetryAttempts, zl.Named("statuses"))
	deps := service.MessageServiceDeps{
		Store:         store,
		Identity:      identity,
		Conversations: conversations,
		Statuses:      statuses,
		Fanout:        fanout,
		MaxLength:     cfg.Messages.MaxLength,
		RetryAttempts: cfg.StoreRetryAttempts,
		Logger:        zl.Named("messages"),
	}
	var signer handlers.AttachmentSigner
	if s3Store != nil {
		deps.Attachments = s3Store
		signer = s3Store
	}
	messages := service.NewMessageService(deps)

	app := fiber.New(fiber.Config{
		AppName:   cfg.Server.AppName,
		BodyLimit: cfg.Server.BodyLimit,
	})

	app.Use(requestid.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Client-Id, X-Client-Secret",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(func(c *fiber.Ctx) error {
		reqCtx, cancel := context.WithTimeout(c.UserContext(), cfg.Server.RequestTimeout)
		defer cancel()
		c.SetUserContext(reqCtx)
		return c.Next()
	})

	optional := map[string]handlers.Pinger{}
	if redisCache != nil {
		optional["redis"] = redisCache
	}
	if s3Store != nil {
		optional["storage"] = s3Store
	}

	handlers.Routes{
		JWTSecret:         cfg.JWTSecret,
		AllowedOrigins:    cfg.AllowedOrigins,
		PlatformRateLimit: cfg.PlatformRateLimit,
		Users:             identity,
		Clients:           identity,
		Messages:          handlers.NewMessageHandler(messages),
		Conversations:     handlers.NewConversationHandler(conversations),
		Platform:          handlers.NewPlatformHandler(messages),
		Admin:             handlers.NewAdminHandler(messages, zl.Named("admin")),
		Media:             handlers.NewMediaHandler(messages, signer, zl.Named("media")),
		Health: handlers.NewHealthHandler(cfg.Server.AppName,
			map[string]handlers.Pinger{"database": handlers.PingFunc(sqlDB.PingContext)},
			optional),
		WebSocket: handlers.NewWebSocketHandler(hub, messages, conversations, userCache, zl.Named("ws"), cfg.Log.Development),
		Metrics:   adaptor.HTTPHandler(metrics.Handler()),
	}.Register(app)

	go func() {
		<-ctx.Done()
		zl.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zl.Warn("shutdown", zap.Error(err))
		}
	}()

	zl.Info("server starting", zap.String("port", cfg.Server.Port), zap.Strings("transports", cfg.Realtime.Transports))
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

// buildTransports assembles the configured fan-out transports. Remote ones
// sit behind a circuit breaker so a dead broker cannot stall senders.
func buildTransports(cfg *config.Config, hub *ws.Hub, redisCache *cache.RedisCache, zl *zap.Logger) (realtime.Transport, []func() error) {
	var (
		multi   realtime.Multi
		closers []func() error
	)
	for _, name := range cfg.Realtime.Transports {
		switch strings.ToLower(name) {
		case "hub":
			multi = append(multi, hub)
		case "redis":
			if redisCache == nil {
				zl.Warn("redis transport requested but redis is unavailable")
				continue
			}
			multi = append(multi, realtime.NewBreakerTransport(
				realtime.NewRedisTransport(redisCache.Client(), "gekychat:"), zl))
		case "kafka":
			if len(cfg.Realtime.KafkaBrokers) == 0 {
				zl.Warn("kafka transport requested without KAFKA_BROKERS")
				continue
			}
			kt := realtime.NewKafkaTransport(cfg.Realtime.KafkaBrokers, cfg.Realtime.KafkaTopic)
			closers = append(closers, kt.Close)
			multi = append(multi, realtime.NewBreakerTransport(kt, zl))
		case "nats":
			nt, err := realtime.NewNATSTransport(cfg.Realtime.NATSURL, cfg.Server.AppName)
			if err != nil {
				zl.Warn("nats transport unavailable", zap.Error(err))
				continue
			}
			closers = append(closers, nt.Close)
			multi = append(multi, realtime.NewBreakerTransport(nt, zl))
		default:
			zl.Warn("unknown realtime transport", zap.String("name", name))
		}
	}
	if len(multi) == 0 {
		multi = append(multi, hub)
	}
	return multi, closers
}
