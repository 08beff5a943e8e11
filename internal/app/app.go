package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	server "spectate/server"
	"spectate/server/internal/config"
	servernet "spectate/server/internal/net"
	"spectate/server/internal/store/sqlite"
	"spectate/server/internal/telemetry"
	"spectate/server/internal/world"
	"spectate/server/logging"
	loggingSinks "spectate/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Logger   telemetry.Logger
	Settings config.Config
	// Listener overrides Settings.Addr when set.
	Listener net.Listener
	// Console receives the console log sink; defaults to stdout.
	Console io.Writer
}

// Run wires the store, hub and HTTP surface and blocks until ctx is cancelled
// or one of them fails.
func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}
	settings := cfg.Settings

	router, closeSinks, err := newRouter(settings.Logging(), cfg.Console)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(context.Background()); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
		closeSinks()
	}()

	counters := &logging.Metrics{}
	metrics := telemetry.WrapMetrics(counters)

	cameraDefaults, err := settings.CameraDefaults()
	if err != nil {
		return err
	}

	hubCfg := server.DefaultHubConfig()
	hubCfg.World = world.Config{ID: settings.WorldID}
	hubCfg.Loop.TickRate = settings.TickRate
	hubCfg.Loop.PerActorLimit = settings.CommandLimit
	hubCfg.SyncRate = settings.SyncRate
	hubCfg.UpdateInterval = settings.UpdateInterval
	hubCfg.Camera = cameraDefaults
	hubCfg.DefaultDwell = settings.DefaultDwell
	hubCfg.Membership = settings.MembershipRule()
	hubCfg.Logger = telemetryLogger
	hubCfg.Metrics = counters
	hubCfg.Publisher = router

	var writer *sqlite.Writer
	if settings.DBPath != "" {
		store, err := sqlite.Open(settings.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()
		writer = sqlite.NewWriter(store, sqlite.DefaultWriterCapacity, telemetryLogger, metrics)
		hubCfg.Store = writer
	} else {
		telemetryLogger.Printf("SPECTATE_DB_PATH empty; points and resume state will not persist")
	}

	hub, err := server.NewHubWithConfig(hubCfg)
	if err != nil {
		return fmt.Errorf("construct hub: %w", err)
	}
	if n, err := hub.LoadPoints(ctx); err != nil {
		return fmt.Errorf("load points: %w", err)
	} else if n > 0 {
		telemetryLogger.Printf("restored %d named points", n)
	}

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		ClientDir:   settings.ClientDir,
		Logger:      telemetryLogger,
		EnablePprof: settings.EnablePprof,
	})

	listener := cfg.Listener
	if listener == nil {
		listener, err = net.Listen("tcp", settings.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", settings.Addr, err)
		}
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	telemetryLogger.Printf("server listening on %s", listener.Addr())

	g, gctx := errgroup.WithContext(ctx)

	// The writer outlives the tick loop so suspend descriptors written during
	// the last ticks still land.
	writerCtx, stopWriter := context.WithCancel(context.Background())
	defer stopWriter()
	if writer != nil {
		g.Go(func() error { return writer.Run(writerCtx) })
	}

	stop := make(chan struct{})
	simDone := make(chan struct{})
	g.Go(func() error {
		defer close(simDone)
		hub.RunSimulation(stop)
		return nil
	})

	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		close(stop)
		<-simDone
		hub.Shutdown()
		stopWriter()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	telemetryLogger.Printf("server stopped; %d log events routed", router.Stats().EventsTotal)
	return nil
}

// newRouter builds the event router with the sinks named in cfg. The returned
// func closes any files opened for sinks.
func newRouter(cfg logging.Config, console io.Writer) (*logging.Router, func(), error) {
	if console == nil {
		console = os.Stdout
	}
	var (
		named []logging.NamedSink
		files []*os.File
	)
	closeFiles := func() {
		for _, f := range files {
			f.Close()
		}
	}
	if cfg.HasSink("console") {
		named = append(named, logging.NamedSink{Name: "console", Sink: loggingSinks.NewConsoleSink(console, cfg.Console)})
	}
	if cfg.HasSink("json") {
		var out io.Writer = console
		if cfg.JSON.FilePath != "" {
			f, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, nil, fmt.Errorf("open json log: %w", err)
			}
			files = append(files, f)
			out = f
		}
		named = append(named, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(out, cfg.JSON.FlushInterval)})
	}
	router, err := logging.NewRouter(logging.SystemClock{}, cfg, named)
	if err != nil {
		closeFiles()
		return nil, nil, err
	}
	return router, closeFiles, nil
}
