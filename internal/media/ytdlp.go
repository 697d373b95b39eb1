package media

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

const progressInterval = 500 * time.Millisecond

// YTDLP implements Client by shelling out to yt-dlp.
type YTDLP struct {
	// Executable overrides the yt-dlp binary looked up on PATH.
	Executable string
}

// NewYTDLP returns a Client that runs the given yt-dlp executable, or the one
// on PATH when executable is empty.
func NewYTDLP(executable string) *YTDLP {
	return &YTDLP{Executable: strings.TrimSpace(executable)}
}

func (y *YTDLP) command() *ytdlp.Command {
	cmd := ytdlp.New().NoWarnings()
	if y.Executable != "" {
		cmd.SetExecutable(y.Executable)
	}
	return cmd
}

// SearchFirst runs a "ytsearch1:" lookup and returns the full metadata of the
// first entry.
func (y *YTDLP) SearchFirst(ctx context.Context, query string) (Item, error) {
	res, err := y.command().
		NoPlaylist().
		SkipDownload().
		DumpJSON().
		Run(ctx, SearchTarget(query))
	if err != nil {
		return Item{}, fmt.Errorf("search %q: %w", query, err)
	}
	items, err := ParseInfoLines(res.Stdout)
	if err != nil {
		return Item{}, err
	}
	if len(items) == 0 {
		return Item{}, ErrNoResults
	}
	return items[0], nil
}

// Extract reads metadata for a single video without downloading it.
func (y *YTDLP) Extract(ctx context.Context, target string) (Item, error) {
	res, err := y.command().
		NoPlaylist().
		SkipDownload().
		DumpJSON().
		Run(ctx, target)
	if err != nil {
		return Item{}, fmt.Errorf("extract %q: %w", target, err)
	}
	items, err := ParseInfoLines(res.Stdout)
	if err != nil {
		return Item{}, err
	}
	if len(items) == 0 {
		return Item{}, fmt.Errorf("extract %q: %w", target, ErrNoResults)
	}
	return items[0], nil
}

// Download fetches the best audio stream and converts it. onFinished is called
// once per file yt-dlp reports as finished; if none is reported through
// progress updates the info record printed after the download is used instead.
func (y *YTDLP) Download(ctx context.Context, req DownloadRequest, onFinished FinishedFunc) error {
	cmd := y.command().
		NoPlaylist().
		PrintJSON().
		Format(req.Format).
		ExtractAudio().
		AudioFormat(req.AudioFormat).
		AudioQuality(req.AudioQuality).
		Output(req.OutputTemplate)
	if req.Dir != "" {
		cmd.Paths(req.Dir)
	}
	if req.WriteThumbnail {
		cmd.WriteThumbnail()
	}
	if req.ForceOverwrites {
		cmd.ForceOverwrites()
	}

	var (
		mu       sync.Mutex
		reported = map[string]struct{}{}
	)
	report := func(path string) {
		path = strings.TrimSpace(path)
		if path == "" || onFinished == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if _, ok := reported[path]; ok {
			return
		}
		reported[path] = struct{}{}
		onFinished(path)
	}

	cmd.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
		if update.Status == ytdlp.ProgressStatusFinished {
			report(update.Filename)
		}
	})

	res, err := cmd.Run(ctx, req.Target)
	if err != nil {
		return fmt.Errorf("download %q: %w", req.Target, err)
	}

	mu.Lock()
	none := len(reported) == 0
	mu.Unlock()
	if none && res != nil {
		info, infoErr := res.GetExtractedInfo()
		if infoErr == nil {
			for _, it := range info {
				if it == nil {
					continue
				}
				if it.Filename != nil {
					report(*it.Filename)
				} else if it.AltFilename != nil {
					report(*it.AltFilename)
				}
			}
		}
	}
	return nil
}

// infoRecord is the subset of yt-dlp's info JSON the jukebox reads. Numeric
// fields are pointers so that absent and zero can be told apart on decode.
type infoRecord struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Uploader    string       `json:"uploader"`
	Channel     string       `json:"channel"`
	WebpageURL  string       `json:"webpage_url"`
	URL         string       `json:"url"`
	Duration    *float64     `json:"duration"`
	ViewCount   *float64     `json:"view_count"`
	UploadDate  string       `json:"upload_date"`
	Description *string      `json:"description"`
	Type        string       `json:"_type"`
	Entries     []infoRecord `json:"entries"`
}

func (r infoRecord) item() Item {
	it := Item{
		ID:          r.ID,
		Title:       r.Title,
		Uploader:    r.Uploader,
		WebpageURL:  r.WebpageURL,
		UploadDate:  r.UploadDate,
		Duration:    r.Duration,
		Description: r.Description,
	}
	if it.Uploader == "" {
		it.Uploader = r.Channel
	}
	// flat entries carry the watch URL in "url"
	if it.WebpageURL == "" && strings.HasPrefix(r.URL, "http") && strings.Contains(r.URL, "watch") {
		it.WebpageURL = r.URL
	}
	if r.ViewCount != nil {
		views := int64(*r.ViewCount)
		it.ViewCount = &views
	}
	return it
}

// ParseInfoLines decodes yt-dlp --dump-json output (one JSON object per line).
// Non-JSON lines are ignored. Playlist records are flattened into their
// entries.
func ParseInfoLines(stdout string) ([]Item, error) {
	var (
		items   []Item
		lastErr error
	)
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var rec infoRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			lastErr = err
			continue
		}
		items = append(items, flatten(rec)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read yt-dlp output: %w", err)
	}
	if len(items) == 0 && lastErr != nil {
		return nil, fmt.Errorf("decode yt-dlp output: %w", lastErr)
	}
	return items, nil
}

func flatten(rec infoRecord) []Item {
	if rec.Type == "playlist" || len(rec.Entries) > 0 {
		out := make([]Item, 0, len(rec.Entries))
		for _, e := range rec.Entries {
			out = append(out, flatten(e)...)
		}
		return out
	}
	if rec.ID == "" && rec.Title == "" {
		return nil
	}
	return []Item{rec.item()}
}
