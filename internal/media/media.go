// Package media defines the search, extraction and download collaborator used
// by the jukebox and implements it on top of yt-dlp (via
// github.com/lrstanley/go-ytdlp).
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoResults is returned by a Searcher when the platform yields no match.
var ErrNoResults = errors.New("media: no results")

const watchURLTemplate = "https://www.youtube.com/watch?v=%s"

// Item is the metadata of one matched video. Empty strings and nil pointers
// mean the field was absent in the extractor output; the pointer fields keep
// a reported zero or empty value apart from a missing one.
type Item struct {
	ID          string
	Title       string
	Uploader    string
	WebpageURL  string
	Duration    *float64
	ViewCount   *int64
	UploadDate  string
	Description *string
}

// WatchURL returns the canonical watch URL for the item, preferring the page
// URL reported by the extractor.
func (i Item) WatchURL() string {
	if u := strings.TrimSpace(i.WebpageURL); u != "" {
		return u
	}
	if id := strings.TrimSpace(i.ID); id != "" {
		return fmt.Sprintf(watchURLTemplate, id)
	}
	return ""
}

// SearchTarget turns free text into a first-result platform search.
func SearchTarget(query string) string {
	return "ytsearch1:" + query
}

// Searcher resolves free text to the single best match.
type Searcher interface {
	SearchFirst(ctx context.Context, query string) (Item, error)
}

// Extractor reads metadata for a URL or video id without downloading.
type Extractor interface {
	Extract(ctx context.Context, target string) (Item, error)
}

// DownloadRequest describes one audio download.
type DownloadRequest struct {
	// Target is a watch URL or a search target.
	Target string
	// Dir is the directory files are written to. It is passed to yt-dlp as a
	// plain path and never expanded as a template.
	Dir string
	// OutputTemplate is a yt-dlp output template relative to Dir, e.g.
	// "%(title)s.%(ext)s". A literal percent sign must be written as "%%".
	OutputTemplate string
	Format         string
	AudioFormat    string
	AudioQuality   string
	WriteThumbnail bool
	// ForceOverwrites replaces files left by an earlier download.
	ForceOverwrites bool
}

// FinishedFunc receives the path of each file the downloader finished.
// Implementations call it synchronously, before Download returns.
type FinishedFunc func(path string)

// Downloader fetches and transcodes audio.
type Downloader interface {
	Download(ctx context.Context, req DownloadRequest, onFinished FinishedFunc) error
}

// Client is the full collaborator surface.
type Client interface {
	Searcher
	Extractor
	Downloader
}
