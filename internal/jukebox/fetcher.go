package jukebox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"llm-jukebox/internal/config"
	"llm-jukebox/internal/media"
)

const audioFormatSelector = "bestaudio/best"

// DownloadResult is the outcome of a completed fetch. Found is false when the
// collaborator finished without reporting a file; Path is empty then.
type DownloadResult struct {
	Path    string
	Message string
	Found   bool
}

// Fetcher downloads the audio of a resolved item into a per-track directory.
type Fetcher struct {
	cfg        *config.Config
	downloader media.Downloader
	guard      collaboratorGuard
	locks      *titleLocks
	logger     *zap.Logger
}

func NewFetcher(cfg *config.Config, downloader media.Downloader, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:        cfg,
		downloader: downloader,
		guard:      collaboratorGuard{timeout: cfg.Timeout()},
		locks:      newTitleLocks(),
		logger:     logger.Named("fetcher"),
	}
}

// Fetch downloads and transcodes item. query is used for the fallback search
// target and the ambiguous-completion message. Any collaborator failure is
// returned as *DownloadFailedError.
func (f *Fetcher) Fetch(ctx context.Context, item *media.Item, query string) (DownloadResult, error) {
	if item == nil {
		item = &media.Item{}
	}
	title := orPlaceholder(item.Title, unknownTitle)
	artist := orPlaceholder(item.Uploader, unknownArtist)

	dirName := TrackDirName(item.Title)
	unlock := f.locks.Lock(dirName)
	defer unlock()

	trackDir := filepath.Join(f.cfg.DownloadPath, dirName)
	if err := os.MkdirAll(trackDir, 0o755); err != nil {
		return DownloadResult{}, downloadFailed(fmt.Errorf("create track directory: %w", err))
	}

	req := media.DownloadRequest{
		Target:          fetchTarget(item, query),
		Dir:             trackDir,
		OutputTemplate:  outputTemplate(dirName),
		Format:          audioFormatSelector,
		AudioFormat:     f.cfg.AudioFormat,
		AudioQuality:    f.cfg.AudioQuality,
		WriteThumbnail:  f.cfg.WriteThumbnail,
		ForceOverwrites: true,
	}

	var finished string
	start := time.Now()
	err := f.guard.call(ctx, func(ctx context.Context) error {
		return f.downloader.Download(ctx, req, func(path string) {
			if finished == "" {
				finished = path
			}
		})
	})
	if err != nil {
		f.logger.Error("download failed",
			zap.String("query", query),
			zap.String("target", req.Target),
			zap.Error(err),
		)
		var failed *DownloadFailedError
		if errors.As(err, &failed) {
			return DownloadResult{}, failed
		}
		return DownloadResult{}, downloadFailed(err)
	}

	if finished == "" {
		f.logger.Warn("download reported no files", zap.String("query", query))
		return DownloadResult{
			Message: fmt.Sprintf("Download completed for: %s, but no files were reported", query),
		}, nil
	}

	path := NormalizeExtension(finished, f.cfg.AudioFormat)
	f.logger.Info("download completed",
		zap.String("title", title),
		zap.String("path", path),
		zap.Duration("elapsed", time.Since(start)),
	)
	return DownloadResult{
		Path:    path,
		Message: fmt.Sprintf("Successfully downloaded song: '%s' by %s\nFile saved as: %s", title, artist, filepath.Base(path)),
		Found:   true,
	}, nil
}

func fetchTarget(item *media.Item, query string) string {
	if u := item.WatchURL(); u != "" {
		return u
	}
	return media.SearchTarget(strings.TrimSpace(query))
}
