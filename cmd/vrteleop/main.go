package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli"

	"github.com/open-teleop/vrteleop/domain/diagnostic"
	"github.com/open-teleop/vrteleop/domain/teleop"
	"github.com/open-teleop/vrteleop/pkg/config"
	"github.com/open-teleop/vrteleop/pkg/input"
	customlog "github.com/open-teleop/vrteleop/pkg/log"
	"github.com/open-teleop/vrteleop/pkg/processing"
	"github.com/open-teleop/vrteleop/pkg/store"
	"github.com/open-teleop/vrteleop/pkg/telemetry"
)

const (
	shutdownTimeout = 5 * time.Second
	inputStaleAfter = 2 * time.Second
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	app := cli.NewApp()
	app.Name = "vrteleop"
	app.Usage = "teleoperate a quadruped robot from VR controllers"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config-dir",
			Value:  "./config",
			Usage:  "directory containing " + config.BootstrapFilename,
			EnvVar: "CONFIG_DIR",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "override logging.level (debug, info, warn, error)",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("vrteleop: %v", err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.LoadBootstrapConfig(c.String("config-dir"))
	if err != nil {
		return err
	}
	if level := c.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	baseLogger, err := customlog.NewLogrusLogger(cfg.Logging.Level, cfg.Logging.LogPath)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	mainLogger := baseLogger.WithField(customlog.ComponentKey, "main")
	mainLogger.Infof("Starting vrteleop (transport=%s, namespace=%s)", cfg.Bridge.Transport, cfg.Bridge.Namespace)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Event sinks
	fanout := processing.NewFanoutHandler(baseLogger.WithField(customlog.ComponentKey, "events"))

	var actionLog *store.ActionLog
	if cfg.Store.Enabled {
		actionLog, err = store.Open(cfg.Store, baseLogger.WithField(customlog.ComponentKey, "store"))
		if err != nil {
			return err
		}
		defer actionLog.Close()
		fanout.Add("store", actionLog)
	}

	if cfg.Telemetry.Enabled {
		publisher, err := telemetry.Connect(cfg.Telemetry, baseLogger.WithField(customlog.ComponentKey, "telemetry"))
		if err != nil {
			return err
		}
		defer publisher.Close()
		fanout.Add("telemetry", publisher)
	}

	var events teleop.EventSink
	var pool *processing.Pool
	if fanout.Len() > 0 {
		pool = processing.NewPool("events", cfg.Telemetry.Workers, cfg.Telemetry.QueueSize,
			baseLogger.WithField(customlog.ComponentKey, "events"))
		pool.SetHandler(fanout.CreateHandlerFunc())
		pool.Start()
		defer pool.Stop()
		events = pool
	}

	// Middleware bridge
	bridge, bridgeCheck, closeBridge, err := openBridge(ctx, cfg, baseLogger.WithField(customlog.ComponentKey, "bridge"))
	if err != nil {
		return err
	}
	defer closeBridge()

	// Teleop loop
	inputs := input.NewStore()
	teleopService := teleop.NewTeleopService(teleop.ServiceConfigFrom(cfg), inputs, bridge, events,
		baseLogger.WithField(customlog.ComponentKey, "teleop"))

	diagnosticService := diagnostic.NewDiagnosticService()
	diagnosticService.Register("bridge", bridgeCheck)
	diagnosticService.Register("input", diagnostic.InputFreshness(inputs.Stats, inputStaleAfter, time.Now))
	if pool != nil {
		diagnosticService.Register("events", func() (bool, string) {
			m := pool.GetMetrics()
			return pool.QueueLength() < pool.QueueCapacity(), fmt.Sprintf("processed=%d dropped=%d", m.ProcessedCount, m.DroppedCount)
		})
	}

	app := newHTTPApp(teleopService, diagnosticService, inputs, actionLog, baseLogger)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := teleopService.Run(ctx); err != nil {
			mainLogger.Errorf("Teleop loop failed: %v", err)
		}
	}()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
		mainLogger.Infof("Server starting on %s", addr)
		if err := app.Listen(addr); err != nil {
			mainLogger.Errorf("Failed to start server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	mainLogger.Infof("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		mainLogger.Warnf("Server forced to shutdown: %v", err)
	}
	<-loopDone

	mainLogger.Infof("Server exited properly")
	return nil
}
