package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/TomasB/isitchristmas/internal/capture"
	"github.com/TomasB/isitchristmas/internal/conf"
	"github.com/TomasB/isitchristmas/internal/data"
	"github.com/TomasB/isitchristmas/internal/geo"
	"github.com/TomasB/isitchristmas/internal/handler/health"
	"github.com/TomasB/isitchristmas/internal/handler/screenshot"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
)

func main() {
	// Initialize structured logging
	logLevel := getLogLevel(os.Getenv("LOG_LEVEL"))
	var logHandler slog.Handler
	if os.Getenv("LOG_FORMAT") == "text" {
		logHandler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel,
			TimeFormat: "2006-01-02 15:04:05.000",
		})
	} else {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	slog.Info("service starting", "log_level", logLevel.String())

	configPath := flag.String("config", "isitchristmas.yml", "path to isitchristmas.yml")
	flag.Parse()

	cfg, err := conf.ReadConfig(*configPath)
	if err != nil {
		slog.Error("failed to read config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	// PORT env overrides the config file
	port := os.Getenv("PORT")
	if port == "" {
		port = strconv.Itoa(cfg.Web.Port)
	}

	// Set Gin mode based on log level
	if logLevel == slog.LevelDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add middleware
	router.Use(ginLogger(logger))
	router.Use(gin.Recovery())

	// Load the geolocation database. Its absence is a degraded state, not a
	// startup failure: every lookup then falls back to the default country.
	var lookup data.CountryLookup
	reader, err := data.OpenFirst(cfg.Geo.DatabasePaths)
	if err != nil {
		slog.Warn("geolocation database not found, country detection degraded",
			"candidates", cfg.Geo.DatabasePaths, "fallback", geo.FallbackCountry)
	} else {
		slog.Info("geolocation database loaded", "path", reader.Path())
		lookup = reader
		defer reader.Close()
	}

	resolver := geo.NewResolver(lookup)
	targetURL := cfg.Capture.TargetURL
	if targetURL == "" {
		targetURL = capture.DefaultTargetURL
	}
	capturer := capture.New(capture.Config{
		TargetURL:      targetURL,
		ViewportWidth:  cfg.Capture.ViewportWidth,
		ViewportHeight: cfg.Capture.ViewportHeight,
		SettleDelay:    time.Duration(cfg.Capture.SettleDelay),
		Timeout:        time.Duration(cfg.Capture.Timeout),
		ChromePath:     cfg.Capture.ChromePath,
		Debug:          cfg.Debug,
	})

	// Register health endpoints
	healthHandler := health.NewHandler(nil)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// Register the screenshot endpoint
	shotHandler := screenshot.NewHandler(resolver, capturer)
	router.GET("/screenshot", shotHandler.Screenshot)

	// Landing page and stylesheets
	router.StaticFile("/", filepath.Join(cfg.WebDir, "templates", "index.html"))
	router.Static("/styles", filepath.Join(cfg.WebDir, "styles"))

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("service started", "port", port, "target", targetURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("service shutting down")

	// Graceful shutdown with 30s timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("service stopped")
}

// getLogLevel converts string log level to slog.Level
func getLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ginLogger creates a Gin middleware that logs using slog
func ginLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Process request
		c.Next()

		// Log request
		duration := time.Since(start)
		statusCode := c.Writer.Status()

		attrs := []any{
			"method", method,
			"path", path,
			"status", statusCode,
			"duration_ms", duration.Milliseconds(),
		}

		if len(c.Errors) > 0 {
			logger.Error("request completed with errors", append(attrs, "errors", c.Errors.String())...)
		} else if statusCode >= 500 {
			logger.Error("request completed", attrs...)
		} else if statusCode >= 400 {
			logger.Warn("request completed", attrs...)
		} else {
			logger.Info("request completed", attrs...)
		}
	}
}
