package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Yash-kamdar/whatsapp-tracking-bot/config"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("config parse error, %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	swaggerPath := os.Getenv("workerSwaggerPath")
	onReady := func(run workerRun) {
		if swaggerPath == "" {
			slog.Warn("workerSwaggerPath not set, worker HTTP disabled")
			return
		}
		go func() {
			err := runWorkerHTTPServer(ctx, workerHTTPOpts{
				httpAddr:    cfg.Bot.WorkerHTTPAddr,
				swaggerPath: swaggerPath,
				scheduler:   run.scheduler,
				dispatcher:  run.dispatcher,
				store:       run.store,
				cfg:         cfg,
			})
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("worker http server stopped", "error", err.Error())
			}
		}()
	}

	if err := RunBotWorker(ctx, cfg, defaultWorkerFactories(), onReady); err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
