// Command pilote is an MCP server that drives a controlled browser page
// step by step and returns a compact change report after every step.
//
// Usage:
//
//	pilote                          # serve MCP on stdio
//	pilote -config pilote.yaml      # file-driven configuration
//	pilote -listen :8791            # also serve MCP over HTTP
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pilote/browser"
	"github.com/hazyhaar/pilote/dbopen"
	"github.com/hazyhaar/pilote/drive"
	"github.com/hazyhaar/pilote/journal"
	"github.com/hazyhaar/pilote/mcpquic"
	"github.com/hazyhaar/pilote/shield"
)

func main() {
	configPath := flag.String("config", "", "path to pilote.yaml config file")
	listen := flag.String("listen", "", "HTTP listen address (overrides config; empty = stdio only)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
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
	// stdout carries the MCP protocol, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *listen); err != nil {
		logger.Error("pilote: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, listen string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if listen != "" {
		cfg.Listen = listen
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Headless:         cfg.Browser.Headless,
		Stealth:          cfg.Browser.Stealth,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		NavTimeout:       cfg.Browser.NavTimeout,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		Logger:           logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("browser start: %w", err)
	}
	defer mgr.Close()

	var opts []drive.ServiceOption
	if cfg.DataDir != "" {
		db, err := dbopen.Open(filepath.Join(cfg.DataDir, "journal.db"),
			dbopen.WithMkdirAll(), dbopen.WithSchema(journal.Schema))
		if err != nil {
			return fmt.Errorf("journal db: %w", err)
		}
		defer db.Close()

		store := journal.NewStore(db)
		defer store.Close()
		go store.RetentionLoop(ctx, cfg.Journal.SweepInterval, cfg.Journal.Retention)
		opts = append(opts, drive.WithJournal(store))
	}

	svc := drive.New(mgr, cfg, logger, opts...)
	defer svc.CloseAll("shutting down")

	mcpSrv := mcp.NewServer(&mcp.Implementation{
		Name:    "pilote",
		Version: "1.0.0",
	}, nil)
	svc.RegisterMCP(mcpSrv)

	// Optional MCP over QUIC.
	if env("MCP_TRANSPORT", "") == "quic" {
		quicAddr := env("MCP_QUIC_ADDR", ":9444")
		certFile := env("TLS_CERT", "")
		keyFile := env("TLS_KEY", "")

		var tlsCfg *tls.Config
		if certFile != "" && keyFile != "" {
			tlsCfg, err = mcpquic.ServerTLSConfig(certFile, keyFile)
		} else {
			tlsCfg, err = mcpquic.SelfSignedTLSConfig()
		}
		if err != nil {
			logger.Error("pilote: mcp quic tls", "error", err)
		} else {
			ql, qErr := mcpquic.NewListener(quicAddr, tlsCfg, mcpSrv, logger)
			if qErr != nil {
				logger.Error("pilote: mcp quic listener", "error", qErr)
			} else {
				defer ql.Close()
				go func() {
					if sErr := ql.Serve(ctx); sErr != nil && ctx.Err() == nil {
						logger.Error("pilote: mcp quic serve", "error", sErr)
					}
				}()
			}
		}
	}

	if cfg.Listen == "" {
		logger.Info("pilote: serving MCP on stdio")
		if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			return fmt.Errorf("mcp stdio: %w", err)
		}
		return nil
	}

	return serveHTTP(ctx, logger, cfg, mcpSrv)
}

func serveHTTP(ctx context.Context, logger *slog.Logger, cfg *drive.Config, mcpSrv *mcp.Server) error {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(shield.Config{
		Rate:      shield.Limit{MaxRequests: cfg.Rate.MaxRequests, Window: cfg.Rate.Window},
		TokenHash: cfg.AuthTokenHash,
		Exclude:   []string{"/healthz", "/metrics"},
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", drive.MetricsHandler())
	r.Handle("/mcp", mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return mcpSrv }, nil))

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("pilote: http listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("pilote: http server", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("pilote: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadConfig(path string) (*drive.Config, error) {
	if path == "" {
		path = os.Getenv("PILOTE_CONFIG")
	}
	if path == "" {
		cfg := &drive.Config{}
		cfg.ApplyDefaults()
		return cfg, nil
	}
	return drive.LoadFile(path)
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
