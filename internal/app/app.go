package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	server "croissant/server"
	servernet "croissant/server/internal/net"
	"croissant/server/internal/observability"
	"croissant/server/internal/telemetry"
	"croissant/server/logging"
	loggingSinks "croissant/server/logging/sinks"
)

const (
	serviceName = "croissant"
	sinkConsole = "console"
	sinkJSON    = "json"
)

// Run listens on cfg.HTTPAddr and serves until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	return Serve(ctx, cfg, ln)
}

// Serve runs the session hub and HTTP server on ln. On cancellation it stops
// accepting requests, stops the hub (closing every connection) and flushes
// the logging router, all within cfg.ShutdownTimeout.
func Serve(ctx context.Context, cfg Config, ln net.Listener) error {
	stdLogger := log.Default()
	telemetryLogger := telemetry.WrapLogger(stdLogger)

	router, err := newRouter(cfg, stdLogger)
	if err != nil {
		ln.Close()
		return fmt.Errorf("failed to construct logging router: %w", err)
	}

	shutdownTracing, err := observability.SetupTracing(ctx, serviceName, cfg.Observability())
	if err != nil {
		telemetryLogger.Printf("tracing disabled: %v", err)
	}

	hubCfg := server.DefaultHubConfig()
	hubCfg.TickInterval = cfg.TickInterval
	hubCfg.PruneInterval = cfg.PruneInterval
	if cfg.Seed != 0 {
		hubCfg.Seed = cfg.Seed
	}
	hubCfg.Logger = stdLogger
	hub := server.NewHubWithConfig(hubCfg, router)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go func() {
		if err := hub.Run(hubCtx); err != nil {
			telemetryLogger.Printf("hub stopped: %v", err)
		}
	}()

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		Assets:        resolveAssets(cfg, telemetryLogger),
		Logger:        stdLogger,
		Observability: cfg.Observability(),
	})
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	serveErr := make(chan error, 1)
	go func() {
		telemetryLogger.Printf("server listening on %s", ln.Addr())
		serveErr <- srv.Serve(ln)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown; stopping
	// the hub closes them.
	stopHub()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		runErr = errors.Join(runErr, fmt.Errorf("shutdown http server: %w", err))
	}
	select {
	case <-hub.Done():
	case <-shutdownCtx.Done():
		runErr = errors.Join(runErr, fmt.Errorf("hub shutdown: %w", shutdownCtx.Err()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		telemetryLogger.Printf("failed to flush traces: %v", err)
	}
	if err := router.Close(shutdownCtx); err != nil {
		telemetryLogger.Printf("failed to close logging router: %v", err)
	}
	telemetryLogger.Printf("server stopped")
	return runErr
}

func newRouter(cfg Config, fallback *log.Logger) (*logging.Router, error) {
	logConfig := logging.DefaultConfig()
	logConfig.EnabledSinks = cfg.LogSinks
	logConfig.JSON.FilePath = cfg.LogJSONPath
	severity, err := logging.ParseSeverity(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logConfig.MinimumSeverity = severity
	logConfig.Fields = map[string]any{"service": serviceName}

	var sinks []logging.NamedSink
	if logConfig.HasSink(sinkConsole) {
		sinks = append(sinks, logging.NamedSink{Name: sinkConsole, Sink: loggingSinks.NewConsole(os.Stdout)})
	}
	if logConfig.HasSink(sinkJSON) {
		var w io.Writer = struct{ io.Writer }{os.Stdout}
		if path := logConfig.JSON.FilePath; path != "" {
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open json log %s: %w", path, err)
			}
			w = file
		}
		sinks = append(sinks, logging.NamedSink{Name: sinkJSON, Sink: loggingSinks.NewJSON(w, logConfig.JSON.FlushInterval)})
	}
	return logging.NewRouter(logging.SystemClock{}, logConfig, fallback, sinks)
}

func resolveAssets(cfg Config, logger telemetry.Logger) fs.FS {
	dir, err := server.ResolveAssetsDir(cfg.AssetsDir)
	if err != nil {
		logger.Printf("static pages unavailable, serving welcome page only: %v", err)
		return nil
	}
	logger.Printf("serving static pages from %s", dir)
	return os.DirFS(dir)
}
