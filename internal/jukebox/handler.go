package jukebox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"llm-jukebox/internal/config"
	"llm-jukebox/internal/media"
)

const (
	notAvailable         = "N/A"
	descriptionMaxRunes  = 200
	downloadFailedPrefix = "Failed to download track: "
	infoFailedPrefix     = "Failed to get video info: "
)

// Handler maps the workflow outcomes to the plain-text results returned by
// the tools. Its methods never return errors.
type Handler struct {
	resolver  *Resolver
	fetcher   *Fetcher
	extractor media.Extractor
	guard     collaboratorGuard
	logger    *zap.Logger
}

func NewHandler(cfg *config.Config, client media.Client, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		resolver:  NewResolver(cfg, client, logger),
		fetcher:   NewFetcher(cfg, client, logger),
		extractor: client,
		guard:     collaboratorGuard{timeout: cfg.Timeout()},
		logger:    logger.Named("handler"),
	}
}

func noResults(query string) string {
	return "No results found for: " + query
}

// Download resolves query and fetches the first match.
func (h *Handler) Download(ctx context.Context, query string) string {
	item, ok := h.resolver.Resolve(ctx, query)
	if !ok {
		return noResults(query)
	}
	res, err := h.fetcher.Fetch(ctx, item, query)
	if err != nil {
		var failed *DownloadFailedError
		if errors.As(err, &failed) {
			return downloadFailedPrefix + failed.Message
		}
		return downloadFailedPrefix + err.Error()
	}
	return res.Message
}

// Search returns the watch URL of the first match.
func (h *Handler) Search(ctx context.Context, query string) string {
	item, ok := h.resolver.Resolve(ctx, query)
	if !ok {
		return noResults(query)
	}
	u := item.WatchURL()
	if u == "" {
		return noResults(query)
	}
	return u
}

// videoInfo keeps the key order of the rendered document.
type videoInfo struct {
	Title       string `json:"title"`
	Uploader    string `json:"uploader"`
	Duration    any    `json:"duration"`
	ViewCount   any    `json:"view_count"`
	UploadDate  string `json:"upload_date"`
	WebpageURL  string `json:"webpage_url"`
	Description string `json:"description"`
}

// Info renders the metadata of a single video as indented JSON.
func (h *Handler) Info(ctx context.Context, url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return infoFailedPrefix + "empty url"
	}

	var item media.Item
	err := h.guard.call(ctx, func(ctx context.Context) error {
		var err error
		item, err = h.extractor.Extract(ctx, url)
		return err
	})
	if err != nil {
		h.logger.Warn("info extraction failed", zap.String("url", url), zap.Error(err))
		return infoFailedPrefix + err.Error()
	}

	out, err := renderInfo(item)
	if err != nil {
		return infoFailedPrefix + err.Error()
	}
	return out
}

func renderInfo(item media.Item) (string, error) {
	info := videoInfo{
		Title:       orPlaceholder(item.Title, notAvailable),
		Uploader:    orPlaceholder(item.Uploader, notAvailable),
		Duration:    notAvailable,
		ViewCount:   notAvailable,
		UploadDate:  orPlaceholder(item.UploadDate, notAvailable),
		WebpageURL:  orPlaceholder(item.WebpageURL, notAvailable),
		Description: truncateDescription(item.Description),
	}
	if item.Duration != nil {
		info.Duration = *item.Duration
	}
	if item.ViewCount != nil {
		info.ViewCount = *item.ViewCount
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		return "", fmt.Errorf("encode info: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func truncateDescription(desc *string) string {
	if desc == nil {
		return notAvailable
	}
	if utf8.RuneCountInString(*desc) <= descriptionMaxRunes {
		return *desc
	}
	return string([]rune(*desc)[:descriptionMaxRunes]) + "..."
}
