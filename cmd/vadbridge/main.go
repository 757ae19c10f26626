// Command vadbridge runs the UDP-to-cloud audio bridge: dual UDP
// ingress, the affective VAD pipeline, the session orchestrator, the
// optional cloud speech bridge, and the persona control surface.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/xpanvictor/vadbridge/internal/app"
	"github.com/xpanvictor/vadbridge/internal/config"
	"github.com/xpanvictor/vadbridge/pkg/Logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := Logger.New(cfg.Debug)
	logger.Info("logger initialized")

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatalf("failed to initialize application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Infow("vadbridge starting",
		"audio_port", cfg.Ingress.AudioPort,
		"sensor_port", cfg.Ingress.SensorPort,
		"api_port", cfg.API.Port,
		"openai_realtime", cfg.OpenAI.Enabled,
	)

	if err := application.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatalf("application exited with error: %v", err)
	}

	logger.Info("vadbridge shut down cleanly")
}
