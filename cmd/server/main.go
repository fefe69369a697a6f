package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/Tyrowin/relaychat/internal/presence"
	"github.com/Tyrowin/relaychat/internal/relay"
	"github.com/Tyrowin/relaychat/internal/server"
	"github.com/Tyrowin/relaychat/internal/telemetry"
	"github.com/Tyrowin/relaychat/pkg/logger"
)

const serviceName = "relaychat"

func main() {
	cfg := server.NewConfigFromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(log)

	log.Info("Starting relaychat",
		"port", cfg.Port,
		"poll_timeout", cfg.PollTimeout,
		"online_timeout", cfg.OnlineTimeout,
	)

	shutdownTelemetry, err := telemetry.Init(context.Background(), serviceName)
	if err != nil {
		log.Error("Failed to initialise telemetry", "error", err)
		os.Exit(1)
	}

	messages := relay.NewRegistry(relay.WithLogger(log))
	people := presence.NewRegistry(
		presence.WithOnlineTimeout(cfg.OnlineTimeout),
		presence.WithLogger(log),
	)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		people.Run(sweepCtx, cfg.SweepInterval)
	}()

	srv := server.New(cfg, messages, people, log)
	httpServer := server.CreateServer(cfg, srv.Handler())

	go func() {
		if err := server.StartServer(httpServer, log); err != nil {
			log.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			serviceName: func(ctx context.Context) error {
				log.Info("Graceful shutdown initiated")

				err := srv.Shutdown(ctx, httpServer)

				stopSweeper()
				<-sweeperDone
				people.Close()

				if terr := shutdownTelemetry(ctx); terr != nil {
					log.Warn("Telemetry shutdown failed", "error", terr)
				}
				if err != nil {
					return fmt.Errorf("shutdown: %w", err)
				}
				return nil
			},
		},
	)

	exitCode := <-wait
	log.Info("Server exited", "code", exitCode)
	os.Exit(exitCode)
}
