// Package app wires every subsystem into a runnable instance: ingress
// planes, the affective dispatcher, the session orchestrator, the
// optional cloud bridge, the reply sender, and the control-plane HTTP
// server. Grounded on the teacher's internal/app.App (a struct holding
// every dependency, built by a setupDependencies method).
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/xpanvictor/vadbridge/internal/affective"
	"github.com/xpanvictor/vadbridge/internal/api"
	"github.com/xpanvictor/vadbridge/internal/cloudbridge"
	"github.com/xpanvictor/vadbridge/internal/config"
	"github.com/xpanvictor/vadbridge/internal/dispatch"
	"github.com/xpanvictor/vadbridge/internal/ingress"
	"github.com/xpanvictor/vadbridge/internal/metrics"
	"github.com/xpanvictor/vadbridge/internal/orchestrator"
	"github.com/xpanvictor/vadbridge/internal/persona"
	"github.com/xpanvictor/vadbridge/internal/replysender"
	"github.com/xpanvictor/vadbridge/pkg/Logger"
)

// App holds every wired subsystem, ready to Run.
type App struct {
	Config  *config.Settings
	Logger  *Logger.Logger
	Metrics *metrics.Metrics

	Persona      *persona.State
	Engine       *affective.Engine
	Dispatcher   *dispatch.Dispatcher
	Addrs        *ingress.AddressMap
	AudioPlane   *ingress.AudioPlane
	SensorPlane  *ingress.SensorPlane
	Bridge       *cloudbridge.Bridge
	Orchestrator *orchestrator.Orchestrator
	ReplySender  *replysender.ReplySender
	APIRouter    *gin.Engine
}

// New builds an App with all dependencies wired, matching the given
// configuration. Ingress sockets are bound here; nothing receives until
// Run is called.
func New(cfg *config.Settings, logger *Logger.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
		Persona: persona.NewState(persona.Obedient),
	}

	a.Engine = affective.NewEngine(a.Persona)
	a.Dispatcher = dispatch.New(a.Engine, cfg.Dispatch.ChannelCapacity, a.Metrics, logger)
	a.Addrs = ingress.NewAddressMap()

	audioPlane, err := ingress.NewAudioPlane(
		cfg.Ingress.Host, cfg.Ingress.AudioPort, cfg.Ingress.ResolvedRecvThreads(),
		cfg.Ingress.RecvBufSize, nil /* handler installed below */, a.Metrics, logger,
	)
	if err != nil {
		return nil, fmt.Errorf("bind audio plane: %w", err)
	}
	a.AudioPlane = audioPlane

	sensorPlane, err := ingress.NewSensorPlane(
		cfg.Ingress.Host, cfg.Ingress.SensorPort, cfg.Ingress.ResolvedRecvThreads(),
		cfg.Ingress.RecvBufSize, a.Addrs, a.Dispatcher, a.Metrics, logger,
	)
	if err != nil {
		return nil, fmt.Errorf("bind sensor plane: %w", err)
	}
	a.SensorPlane = sensorPlane

	var bridgeHandle orchestrator.Bridge
	if cfg.OpenAI.Enabled {
		a.Bridge = cloudbridge.New(cfg.OpenAI, a.AudioPlane, a.Metrics, logger)
		bridgeHandle = a.Bridge
	}

	a.Orchestrator = orchestrator.New(a.AudioPlane, bridgeHandle, a.Dispatcher, cfg.AudioSaveDir, a.Metrics, logger)
	audioPlane.SetHandler(a.Orchestrator)

	a.ReplySender = replysender.New(a.Dispatcher, a.Addrs, a.SensorPlane, logger)
	a.APIRouter = api.Router(a.Persona, a.Metrics)

	return a, nil
}

// Run starts every subsystem and blocks until ctx is cancelled,
// shutting down cooperatively.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.AudioPlane.Run(ctx) })
	g.Go(func() error { return a.SensorPlane.Run(ctx) })
	g.Go(func() error { return a.Dispatcher.Run(ctx, a.Config.Dispatch.ResolvedProcThreads()) })

	g.Go(func() error {
		a.ReplySender.Run(ctx)
		return nil
	})

	g.Go(func() error {
		a.Metrics.Report(ctx, statsInterval(a.Config.Stats.IntervalSecs), a.Logger)
		return nil
	})

	if a.Bridge != nil {
		g.Go(func() error {
			a.Bridge.Run(ctx)
			return nil
		})
	}

	g.Go(func() error { return a.runAPIServer(ctx) })

	return g.Wait()
}

func (a *App) runAPIServer(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", a.Config.Ingress.Host, a.Config.API.Port)
	srv := &http.Server{Addr: addr, Handler: a.APIRouter.Handler()}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Infow("control surface listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func statsInterval(secs int) time.Duration {
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
