package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"llm-jukebox/internal/jukebox"
	"llm-jukebox/internal/logging"
	"llm-jukebox/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Serve the jukebox tools over stdio (default)",
	Args:        cobra.NoArgs,
	RunE:        runServe,
	Annotations: map[string]string{annotationStdio: "true"},
}

func runServe(cmd *cobra.Command, _ []string) error {
	// the protocol keeps these even while collaborator calls swap os.Stdout
	stdin, stdout := os.Stdin, os.Stdout

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	restoreStdLog := logging.CaptureStdLog(logger)
	defer restoreStdLog()

	if err := cfg.EnsureDownloadDir(); err != nil {
		logger.Error("download directory", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting llm-jukebox",
		zap.String("version", version),
		zap.String("download_path", cfg.DownloadPath),
		zap.String("audio_format", cfg.AudioFormat),
		zap.String("audio_quality", cfg.AudioQuality),
	)

	handler := jukebox.NewHandler(cfg, newClient(cfg), logger)
	srv := mcp.NewServer(mcp.ServerOptions{Handler: handler, Logger: logger, Version: version})

	if err := runUntilShutdown(ctx, stop, srv, stdin, stdout, logger); err != nil {
		logger.Error("llm-jukebox stopped with error", zap.Error(err))
		return err
	}
	logger.Info("llm-jukebox stopped")
	return nil
}

// runUntilShutdown serves until stdin closes or ctx is cancelled. On a
// shutdown signal it restores default signal handling, so a second signal
// kills a stuck collaborator, and flushes the log while the server winds down.
func runUntilShutdown(ctx context.Context, stop context.CancelFunc, srv *mcp.Server, in io.Reader, out io.Writer, logger *zap.Logger) error {
	serveDone := make(chan struct{})
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(serveDone)
		return srv.Serve(gCtx, in, out)
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-serveDone:
		}
		if ctx.Err() == nil {
			return nil
		}
		stop()
		logger.Info("shutdown signal received")
		_ = logger.Sync()
		return nil
	})
	return g.Wait()
}
