package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pupring/engrave/internal/compositor"
	"github.com/pupring/engrave/internal/server"
)

// serveCmd starts the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for the engraving API",
	Long: `Start an HTTP server that exposes the engraving pipeline.

Endpoints:
  POST /process     - process an uploaded pet photo
  POST /composite   - compose engravings into a pendant template
  GET  /styles      - list strategies and templates
  GET  /health      - health check
  GET  /metrics     - Prometheus metrics
  GET  /ws/process  - WebSocket processing with progress streaming

Examples:
  engrave serve
  engrave serve --port 8080
  engrave serve --host 0.0.0.0 --port 3000 --templates-dir ./artwork`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	host := cfg.Server.Host
	if cmd.Flags().Changed("host") {
		host, _ = cmd.Flags().GetString("host")
	}
	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port, _ = cmd.Flags().GetInt("port")
	}
	corsOrigin := cfg.Server.CORSOrigin
	if cmd.Flags().Changed("cors-origin") {
		corsOrigin, _ = cmd.Flags().GetString("cors-origin")
	}
	maxUploadMB := cfg.Server.MaxUploadMB
	if cmd.Flags().Changed("max-upload-size") {
		maxUploadMB, _ = cmd.Flags().GetInt("max-upload-size")
	}
	timeout := cfg.Server.TimeoutSec
	if cmd.Flags().Changed("timeout") {
		timeout, _ = cmd.Flags().GetInt("timeout")
	}
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if cmd.Flags().Changed("shutdown-timeout") {
		seconds, _ := cmd.Flags().GetInt("shutdown-timeout")
		shutdownTimeout = time.Duration(seconds) * time.Second
	}
	rateLimit := cfg.Server.RateLimitPerMin
	if cmd.Flags().Changed("rate-limit") {
		rateLimit, _ = cmd.Flags().GetInt("rate-limit")
	}
	strategy, _ := cmd.Flags().GetString("strategy")
	templatesDir := cfg.TemplatesDir
	if cmd.Flags().Changed("templates-dir") {
		templatesDir, _ = cmd.Flags().GetString("templates-dir")
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	arts := loadTemplateArtwork(templatesDir)
	var comp *compositor.Compositor
	if len(arts) > 0 {
		comp = compositor.New(cfg.Compositor, slog.Default())
	} else {
		slog.Warn("no pendant artwork found, compositing disabled", "templates_dir", templatesDir)
	}

	orch, err := buildOrchestrator(cfg, strategy, nil, comp, arts)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	srv, err := server.NewServer(server.Config{
		Host:            host,
		Port:            port,
		CORSOrigin:      corsOrigin,
		MaxUploadMB:     int64(maxUploadMB),
		TimeoutSec:      timeout,
		RateLimitPerMin: rateLimit,
	}, orch, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	if comp != nil {
		srv.WithCompositor(comp, arts)
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(timeout) * time.Second,
		WriteTimeout:      time.Duration(timeout) * time.Second,
	}

	go func() {
		slog.Info("Starting engraving server", "host", host, "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shutdown completed")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 25, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 120, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Int("rate-limit", 30, "maximum requests per minute per client (0 disables)")
	serveCmd.Flags().String("strategy", "", "engraving strategy (clean-simple, feature, uniform)")
	serveCmd.Flags().String("templates-dir", "", "directory with pendant template artwork (<name>.png)")
}
