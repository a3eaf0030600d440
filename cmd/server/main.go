package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"color_shop/internal/auth"
	"color_shop/internal/config"
	"color_shop/internal/logger"
	"color_shop/internal/queue"
	"color_shop/internal/realtime"
	"color_shop/internal/router"
	"color_shop/internal/service"
	"color_shop/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	rd "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const tokenTTL = 24 * time.Hour

func main() {
	// .env 可选，已有环境变量优先
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("load .env")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	// 1. 数据库
	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logrus.WithError(err).Fatal("open database")
	}
	if err := store.Migrate(db); err != nil {
		logrus.WithError(err).Fatal("migrate database")
	}

	// 2. Redis：限流、幂等键、事件 outbox
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logrus.WithError(err).Warn("redis unreachable, rate limit and idempotency will fail open")
	}
	cancelPing()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 订单事件：outbox -> Relay -> Kafka -> 活动记录 + WebSocket
	var (
		events service.EventPublisher
		hub    *realtime.Hub
		wg     sync.WaitGroup
	)
	if cfg.EventsEnabled {
		hub = realtime.NewHub()
		events = queue.NewStreamPublisher(rdb, cfg.OrderEventStream)

		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		relay := queue.NewRelay(rdb, producer, queue.RelayConfig{
			Stream:    cfg.OrderEventStream,
			Group:     cfg.OrderEventGroup,
			Consumer:  cfg.OrderEventConsumer,
			ClaimIdle: time.Minute,
		})

		consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, queue.NewActivityRecorder(db, hub))
		defer consumer.Close()

		wg.Add(2)
		go func() {
			defer wg.Done()
			relay.Run(ctx)
		}()
		go func() {
			defer wg.Done()
			consumer.Run(ctx)
		}()
	}

	// 4. HTTP
	r := gin.New()
	r.Use(gin.Recovery(), logger.Middleware())
	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 || (len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	corsCfg.AddAllowHeaders("Authorization", "Idempotency-Key")
	corsCfg.AddExposeHeaders("Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Idempotent-Replayed")
	r.Use(cors.New(corsCfg))

	router.Setup(r, router.Deps{
		DB:     db,
		Redis:  rdb,
		Orders: service.NewOrderService(db, cfg.Pricing, events),
		Signer: auth.NewSigner(cfg.JWTSecret, tokenTTL),
		Hub:    hub,
		Config: cfg,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logrus.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("http shutdown")
	}
	if hub != nil {
		hub.Close()
	}
	wg.Wait()
}
