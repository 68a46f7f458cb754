package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/taskbridge/internal/api"
	"github.com/kalambet/taskbridge/internal/asana"
	"github.com/kalambet/taskbridge/internal/config"
	"github.com/kalambet/taskbridge/internal/projectcache"
)

var serveFlags struct {
	http bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Asana tools over MCP (stdio; --http adds an HTTP transport)",
	Long: `Serve the Asana tools to MCP clients over stdio. With --http, the same
tools are also exposed as a streamable HTTP endpoint at /mcp with a /health
probe, on the configured port.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveFlags.http, "http", false, "also serve MCP over HTTP")
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := setupLogging(&cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := asana.NewClient(cfg.Asana.BaseURL, cfg.Asana.AccessToken)
	cache := projectcache.New(cfg.Cache.Dir, client)

	mcpSrv := api.NewMCPServer(api.Deps{
		Client:    client,
		Projects:  cache,
		Workspace: cfg.Asana.DefaultWorkspace,
	})

	// HTTP transport, optional.
	var httpSrv *http.Server
	errCh := make(chan error, 1)
	if serveFlags.http {
		router := chi.NewRouter()
		router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
		router.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv))

		addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.HTTPPort)
		httpSrv = &http.Server{Addr: addr, Handler: router}
		go func() {
			slog.Info("MCP HTTP transport listening", "addr", addr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
			close(errCh)
		}()
	}

	// Stdio transport in a goroutine; the process lives until a signal or an
	// HTTP server failure.
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started", "transport", "stdio", "workspace", cfg.Asana.DefaultWorkspace)

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// setupLogging points slog at stderr, or at the configured log file, with the
// configured level. Stdout stays clean for the stdio MCP transport.
func setupLogging(cfg *config.Config) error {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var out io.Writer = os.Stderr
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		out = f
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return nil
}
