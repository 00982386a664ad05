// Command fibred runs a fibre session and serves its inspector.
//
// Usage:
//
//	fibred -demo                        # render the demo app into an in-memory DOM
//	fibred -config fibre.yaml -demo     # same, with host, store and sinks from YAML
//	fibred -config fibre.yaml -mcp      # also serve the MCP tools over stdio
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/fibre/inspect"
	"github.com/hazyhaar/fibre/session"
)

func main() {
	configPath := flag.String("config", "", "path to fibre.yaml config file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	demo := flag.Bool("demo", false, "render the demo app (clock and list, re-rendered every second)")
	serveMCP := flag.Bool("mcp", false, "serve the MCP tools over stdio")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *demo, *serveMCP); err != nil {
		logger.Error("fibred: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string, demo, serveMCP bool) error {
	cfg := session.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = session.LoadConfig(configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	serveMCP = serveMCP || cfg.MCP.Enabled
	if serveMCP {
		for _, sc := range cfg.Sinks {
			if sc.Type == "stdout" {
				return errors.New("stdout sink and MCP over stdio both write to stdout")
			}
		}
	}

	s := session.New(cfg, session.WithLogger(logger))
	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer s.Stop()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           inspect.Handler(s, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("fibred: inspector listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("fibred: inspector", "error", err)
		}
	}()
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	if serveMCP {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "fibre", Version: "1.0.0"}, nil)
		s.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("fibred: mcp", "error", err)
			}
		}()
	}

	if demo {
		return runDemo(ctx, s, logger)
	}
	<-ctx.Done()
	return nil
}
