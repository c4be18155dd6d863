package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/RiskSync/internal/api/postback"
	"github.com/BearBump/RiskSync/internal/broker/kafka"
	"github.com/BearBump/RiskSync/internal/services/reviews"
)

type riskAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	ready func(ctx context.Context) error

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler kafka.StatusHandler) error
}

func runRiskAPI(ctx context.Context, opts riskAPIOpts, svc *reviews.Service, consumer kafkaConsumer) error {
	api := postback.New(svc, svc.APIKey()).
		WithSwagger(opts.swaggerPath).
		WithReadiness(opts.ready)

	httpLis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}

	if opts.onListen != nil {
		opts.onListen(httpLis.Addr().String())
	}

	// Регистрация постбэк-адресов на антифроде — один раз при старте.
	if err := svc.RegisterPostbacks(ctx); err != nil {
		slog.Error("register postback urls", "error", err.Error())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, httpLis, api)
	}()

	go func() {
		slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
		if err := consumer.Consume(ctx, svc.HandleStatusChanged); err != nil && ctx.Err() == nil {
			// Поток статусов — единственный вход сверки: его остановка
			// не должна пройти незамеченной.
			slog.Error("kafka consumer stopped", "topic", opts.topic, "error", err.Error())
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

func runHTTPServer(ctx context.Context, lis net.Listener, api *postback.API) error {
	srv := &http.Server{Handler: api.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
