package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rendis/mindflow/internal/convert"
	"github.com/rendis/mindflow/internal/expressions"
	"github.com/rendis/mindflow/internal/logging"
	"github.com/rendis/mindflow/internal/panel"
	"github.com/rendis/mindflow/internal/scheduler"
	"github.com/rendis/mindflow/internal/store"
	"github.com/rendis/mindflow/internal/streaming"
	"github.com/rendis/mindflow/internal/validation"
	"github.com/rendis/mindflow/pkg/mcp"
)

// services are the long-lived components shared by serve and mcp.
type services struct {
	store     *store.LibSQLStore
	converter *convert.Converter
	validator *validation.PayloadValidator
	querier   *expressions.Querier
	hub       *streaming.MemoryHub
}

func openServices(ctx context.Context, cfg Config, logger *slog.Logger) (*services, error) {
	if err := os.MkdirAll(mindflowDir(), 0o700); err != nil {
		return nil, fmt.Errorf("create %s: %w", mindflowDir(), err)
	}
	st, err := store.NewLibSQLStore(cfg.dsn())
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	validator, err := validation.NewPayloadValidator()
	if err != nil {
		st.Close()
		return nil, err
	}
	querier, err := expressions.NewQuerier()
	if err != nil {
		st.Close()
		return nil, err
	}
	return &services{
		store:     st,
		converter: convert.New(logger),
		validator: validator,
		querier:   querier,
		hub:       streaming.NewMemoryHub(),
	}, nil
}

func (s *services) panelHandler(cfg Config, logger *slog.Logger) http.Handler {
	deps := panel.PanelDeps{
		Converter:       s.converter,
		Validator:       s.validator,
		Querier:         s.querier,
		MermaidASCIIBin: cfg.MermaidASCIIBin,
		Logger:          logger,
	}
	// Leave the interfaces nil rather than holding nil pointers.
	if s.store != nil {
		deps.Store = s.store
	}
	if s.hub != nil {
		deps.Hub = s.hub
	}
	return panel.NewPanelServer(deps).Handler()
}

func (s *services) mcpServer(cfg Config, logger *slog.Logger) *mcp.MindflowServer {
	deps := mcp.ServerDeps{
		Converter:       s.converter,
		Validator:       s.validator,
		Querier:         s.querier,
		MermaidASCIIBin: cfg.MermaidASCIIBin,
		Version:         version,
		Logger:          logger,
	}
	if s.store != nil {
		deps.Store = s.store
	}
	if s.hub != nil {
		deps.Hub = s.hub
	}
	return mcp.NewMindflowServer(deps)
}

// serveMux mounts the MCP streamable HTTP transport at /mcp beside the panel.
func serveMux(panelHandler, mcpHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpHandler)
	mux.Handle("/", panelHandler)
	return mux
}

func runServe(args []string, stderr io.Writer) int {
	cfg := loadConfig()
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg.bindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := new(slog.LevelVar)
	level.Set(logging.ParseLevel(cfg.LogLevel))
	logger := logging.NewLeveled(stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := openServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer svc.store.Close()

	sched, err := scheduler.NewScheduler(svc.store, cfg.VacuumSchedule, cfg.RevisionKeep, logger)
	if err != nil {
		logger.Error("invalid maintenance schedule", "error", err)
		return 1
	}
	if err := sched.Start(ctx); err != nil {
		logger.Error("start scheduler", "error", err)
		return 1
	}
	defer sched.Stop()

	// HTTP edits and MCP sessions share svc.hub, so MCP clients connected
	// at /mcp are notified of panel saves and SSE streams see MCP saves.
	mcpSrv := svc.mcpServer(cfg, logger)
	mcpSrv.StartNotifier(ctx)

	swapper := newHandlerSwapper(svc.panelHandler(cfg, logger))
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           serveMux(swapper, mcpSrv.HTTPHandler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := os.WriteFile(pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		logger.Warn("cannot write pidfile", "path", pidPath(), "error", err)
	}
	defer os.Remove(pidPath())

	// SIGHUP reloads settings; handler-level changes apply without a restart.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func(current Config) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				current = reload(current, level, swapper, svc, logger)
			}
		}
	}(cfg)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mindflow listening", "addr", cfg.ListenAddr, "mcp", "/mcp", "db", cfg.DBPath, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			return 1
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
			return 1
		}
	}
	return 0
}

// reload applies a fresh configuration to the running server and returns the
// configuration now in effect.
func reload(old Config, level *slog.LevelVar, swapper *handlerSwapper, svc *services, logger *slog.Logger) Config {
	next := loadConfig()
	diff := diffConfigs(old, next)

	if diff.LogLevelChanged {
		level.Set(logging.ParseLevel(next.LogLevel))
		logger.Info("log level changed", "level", next.LogLevel)
	}
	if diff.RendererChanged {
		swapper.Swap(svc.panelHandler(next, logger))
		logger.Info("renderer reloaded", "mermaid_ascii_bin", next.MermaidASCIIBin)
	}
	if len(diff.RestartNeeded) > 0 {
		logger.Warn("settings changed that need a restart", "fields", diff.RestartNeeded)
		for _, f := range diff.RestartNeeded {
			switch f {
			case "listen_addr":
				next.ListenAddr = old.ListenAddr
			case "db_path":
				next.DBPath = old.DBPath
			case "vacuum_schedule":
				next.VacuumSchedule = old.VacuumSchedule
			case "revision_keep":
				next.RevisionKeep = old.RevisionKeep
			}
		}
	}
	return next
}

func runMCP(args []string, stderr io.Writer) int {
	cfg := loadConfig()
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg.bindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	// stdout carries the protocol; logs go to stderr only.
	logger := logging.New(stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := openServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer svc.store.Close()

	srv := svc.mcpServer(cfg, logger)
	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		logger.Error("mcp server failed", "error", err)
		return 1
	}
	return 0
}
