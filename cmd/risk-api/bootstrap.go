package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/RiskSync/config"
	"github.com/BearBump/RiskSync/internal/broker/kafka"
	"github.com/BearBump/RiskSync/internal/cache/rediscache"
	"github.com/BearBump/RiskSync/internal/hosting/wochttp"
	"github.com/BearBump/RiskSync/internal/integrations/riskwatch"
	"github.com/BearBump/RiskSync/internal/services/reviews"
	"github.com/BearBump/RiskSync/internal/storage/pgreview"
)

type riskAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     riskAPIOpts
	svc      *reviews.Service
	consumer *kafka.Consumer
	closers  []func()
}

func mustBootstrapRiskAPI() *riskAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	if cfg.RiskSync.DebugLog {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	httpAddr := cfg.RiskSync.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.RiskSync.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "risk-api"
	}
	topic := cfg.Kafka.OrderStatusTopicName
	if topic == "" {
		topic = "orders.status_changed"
	}
	eventsTopic := cfg.Kafka.ReviewUpdatedTopicName
	if eventsTopic == "" {
		eventsTopic = "reviews.updated"
	}

	cacheTTL := time.Duration(cfg.RiskSync.ReviewCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	lockTTL := time.Duration(cfg.RiskSync.OrderLockTTLSeconds) * time.Second

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)

	remote := riskwatch.New(cfg.RiskSync.RemoteBaseURL, cfg.RiskSync.APIKey,
		time.Duration(cfg.RiskSync.RemoteTimeoutSeconds)*time.Second)

	host := wochttp.New(cfg.RiskSync.HostAPIBaseURL, cfg.RiskSync.HostAPIToken)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)
	producer := kafka.NewProducer(brokers)

	svc := reviews.New(cfg.RiskSync, st, host, host, remote).
		WithCache(rc, cacheTTL).
		WithLocker(rc, lockTTL).
		WithRateLimiter(rc, int64(cfg.RiskSync.RemoteRateLimitPerMinute)).
		WithProducer(producer, eventsTopic)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &riskAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: riskAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   os.Getenv("swaggerPath"),
			topic:         topic,
			consumerGroup: consumerGroup,
			ready:         st.Ping,
		},
		svc:      svc,
		consumer: consumer,
		closers: []func(){
			func() { _ = consumer.Close() },
			st.Close,
		},
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgreview.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgreview.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *riskAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, c := range a.closers {
		c()
	}
}

func (a *riskAPIApp) Run() error {
	return runRiskAPI(a.ctx, a.opts, a.svc, a.consumer)
}
