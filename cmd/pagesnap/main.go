// Package main wires together the page capture service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagesnap/internal/api"
	"github.com/JakeFAU/pagesnap/internal/browser"
	"github.com/JakeFAU/pagesnap/internal/capture"
	"github.com/JakeFAU/pagesnap/internal/clock/system"
	"github.com/JakeFAU/pagesnap/internal/config"
	"github.com/JakeFAU/pagesnap/internal/id/uuid"
	"github.com/JakeFAU/pagesnap/internal/logging"
	"github.com/JakeFAU/pagesnap/internal/metrics"
	"github.com/JakeFAU/pagesnap/internal/pool"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		logger.Fatal("create output directory failed", zap.String("dir", cfg.OutputDir), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	capturer := capture.NewCapturer(capture.CapturerConfig{
		OutputDir:       cfg.OutputDir,
		PageLoadTimeout: cfg.PageLoadTimeout(),
		CaptureTimeout:  cfg.CaptureTimeout(),
		ViewportWidth:   cfg.Viewport.Width,
		ViewportHeight:  cfg.Viewport.Height,
		UserAgent:       cfg.UserAgent,
		FullPage:        cfg.Screenshot.FullPage,
		Quality:         cfg.Screenshot.Quality,
	}, clock, logger.Named("capturer"))

	endpoints := make([]pool.BrowserEndpoint, 0, len(cfg.Browsers))
	for _, b := range cfg.Browsers {
		endpoints = append(endpoints, pool.BrowserEndpoint{
			Endpoint: b.Endpoint,
			SlowMo:   time.Duration(b.SlowMoMs) * time.Millisecond,
		})
	}
	workerPool, err := pool.New(ctx, pool.Config{
		Browsers:            endpoints,
		MaxRetries:          cfg.MaxRetries,
		QueuePollInterval:   cfg.QueuePollInterval(),
		RejectDuplicateURLs: cfg.RejectDuplicateURLs,
	}, browser.NewChromedpGateway(), capturer, clock, logger.Named("pool"))
	if err != nil {
		logger.Fatal("worker pool init failed", zap.Error(err))
	}
	workerPool.Start()

	apiServer := api.NewServer(workerPool, uuid.New(), logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	workerPool.Shutdown()
	logger.Info("shutdown complete")
}
