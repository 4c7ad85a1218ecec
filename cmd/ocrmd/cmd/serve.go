package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jo-hoe/ocrmd/internal/app"
	"github.com/jo-hoe/ocrmd/internal/common"
	"github.com/jo-hoe/ocrmd/internal/jobs"
	"github.com/jo-hoe/ocrmd/internal/metrics"
	"github.com/jo-hoe/ocrmd/internal/processor"
	"github.com/jo-hoe/ocrmd/internal/server"
	"github.com/jo-hoe/ocrmd/internal/storage"
	"github.com/jo-hoe/ocrmd/internal/transcribe"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP transcription service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		if err := cfg.EnsureStorageDir(); err != nil {
			return err
		}
		store, err := jobs.NewSQLiteStore(cfg.Server.DatabasePath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		rootCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		m := metrics.New()
		completer, err := app.NewCompleter(rootCtx, cfg.LLM, m)
		if err != nil {
			return err
		}
		reg, err := app.NewServerTargets(cfg)
		if err != nil {
			return err
		}

		worker := processor.New(logger, cfg, store, transcribe.New(completer), reg)
		worker.Metrics = m
		queue := jobs.NewQueue(logger, common.DefaultQueueCapacity, cfg.Server.WorkerCount)
		if err := queue.Start(rootCtx, worker); err != nil {
			return err
		}

		svc := &server.Service{
			Log:       logger,
			Cfg:       cfg,
			Store:     store,
			Queue:     queue,
			Uploader:  storage.NewUploader(cfg.Server.StorageDir),
			Processor: worker,
			Metrics:   m,
		}
		httpSrv := server.NewHTTPServer(svc)

		errCh := make(chan error, 1)
		go func() {
			logger.Info("http server starting", "address", cfg.Server.Addr, "provider", cfg.LLM.Provider, "model", cfg.LLM.Model(), "target", cfg.Target.Type)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		var serveErr error
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received")
		case serveErr = <-errCh:
			if serveErr != nil {
				logger.Error("server error", "err", serveErr)
			}
		}

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer cancelShutdown()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "err", err)
		}
		queue.Shutdown(cfg.Server.ShutdownGrace)
		logger.Info("server stopped")
		return serveErr
	},
}
