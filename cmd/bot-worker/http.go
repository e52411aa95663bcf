package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/config"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/services/notify"
	"github.com/Yash-kamdar/whatsapp-tracking-bot/internal/services/reconciler"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type sweeper interface {
	Stats() reconciler.Stats
	Trigger()
}

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	scheduler  sweeper
	dispatcher *notify.Dispatcher
	store      pinger
	cfg        *config.Config
}

type pinger interface {
	Ping(ctx context.Context) error
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}
	if opts.swaggerPath == "" {
		return fmt.Errorf("worker swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("worker swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if opts.store != nil {
			pctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := opts.store.Ping(pctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		if opts.scheduler == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "scheduler not wired"})
			return
		}
		out := map[string]any{"reconciler": opts.scheduler.Stats()}
		if opts.dispatcher != nil {
			out["notifications"] = opts.dispatcher.Stats()
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		if opts.cfg == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "config not wired"})
			return
		}
		// Operational settings only, no secrets.
		b := opts.cfg.Bot
		writeJSON(w, http.StatusOK, map[string]any{
			"minIntervalSeconds":          b.WorkerMinIntervalSeconds,
			"maxIntervalSeconds":          b.WorkerMaxIntervalSeconds,
			"batchSize":                   b.WorkerBatchSize,
			"concurrency":                 b.WorkerConcurrency,
			"fetchTimeoutSeconds":         b.WorkerFetchTimeoutSeconds,
			"rateLimitPerMinute":          b.WorkerRateLimitPerMinute,
			"rateLimitShipmozoPerMinute":  b.WorkerRateLimitShipmozoPerMinute,
			"rateLimitDelhiveryPerMinute": b.WorkerRateLimitDelhiveryPerMinute,
			"messageRetentionHours":       b.WorkerMessageRetentionHours,
			"backoffSeconds":              []int{b.WorkerBackoff1Seconds, b.WorkerBackoff2Seconds, b.WorkerBackoff3Seconds},
		})
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		if opts.scheduler == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "scheduler not wired"})
			return
		}
		opts.scheduler.Trigger()
		writeJSON(w, http.StatusAccepted, map[string]bool{"triggered": true})
	})

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})

	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	return srv.Serve(lis)
}
