package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/api/adminapi"
	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	httpSwagger "github.com/swaggo/http-swagger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type botAPIOpts struct {
	grpcAddr    string
	httpAddr    string
	swaggerPath string

	verifyToken string
	appSecret   string

	topic         string
	consumerGroup string

	healthInterval time.Duration

	onListen func(grpcAddr, httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type scheduler interface {
	Run(ctx context.Context) error
}

type botAPIDeps struct {
	store   pinger
	machine messageHandler
	admin   *adminapi.AdminAPI
	sink    inboundSink

	// consumer is nil when inbound messages are handled inline.
	consumer kafkaConsumer
	// scheduler is set when the reconciler runs inside bot-api (memory store).
	scheduler scheduler
}

func runBotAPI(ctx context.Context, opts botAPIOpts, deps botAPIDeps) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	grpcLis, err := net.Listen("tcp", opts.grpcAddr)
	if err != nil {
		return err
	}
	httpLis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		_ = grpcLis.Close()
		return err
	}

	if opts.onListen != nil {
		opts.onListen(grpcLis.Addr().String(), httpLis.Addr().String())
	}

	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- runGRPCServer(ctx, grpcLis, deps.store, opts.healthInterval)
	}()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, httpLis, opts, deps)
	}()

	if deps.consumer != nil {
		go func() {
			slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
			if err := deps.consumer.Consume(ctx, consumeInbound(ctx, deps.machine)); err != nil && ctx.Err() == nil {
				slog.Error("kafka consumer stopped", "error", err.Error())
			}
		}()
	}

	if deps.scheduler != nil {
		go func() {
			slog.Info("embedded reconciler started")
			_ = deps.scheduler.Run(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-grpcErr:
		return err
	case err := <-httpErr:
		return err
	}
}

// runGRPCServer serves the standard health service. The overall status
// follows store reachability.
func runGRPCServer(ctx context.Context, lis net.Listener, store pinger, interval time.Duration) error {
	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)

	if interval <= 0 {
		interval = 10 * time.Second
	}
	go probeStore(ctx, hs, store, interval)

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		stopped := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			s.Stop()
		}
		_ = lis.Close()
	}()

	slog.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.Serve(lis)
}

func probeStore(ctx context.Context, hs *health.Server, store pinger, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		status := healthpb.HealthCheckResponse_SERVING
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := store.Ping(pctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			slog.Warn("store ping failed", "error", err.Error())
		}
		cancel()
		hs.SetServingStatus("", status)

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func runHTTPServer(ctx context.Context, lis net.Listener, opts botAPIOpts, deps botAPIDeps) error {
	r := chi.NewRouter()

	wh := webhookHandler{verifyToken: opts.verifyToken, appSecret: opts.appSecret, sink: deps.sink}
	r.Get("/webhook", wh.verify)
	r.Post("/webhook", wh.receive)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, opts.swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))

	mux := runtime.NewServeMux()
	if deps.admin != nil {
		if err := deps.admin.Register(mux); err != nil {
			return err
		}
	}
	r.Mount("/v1", mux)

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
