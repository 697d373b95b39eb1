package config

import (
	"fmt"
	"strings"
	"time"
)

// AudioFormats are the codecs yt-dlp can extract audio to.
var AudioFormats = []string{"mp3", "m4a", "opus", "vorbis", "wav", "flac", "aac", "alac"}

// LogLevels accepted by log_level.
var LogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks required fields and enum constraints.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("CONFIG_INVALID: nil config")
	}
	if strings.TrimSpace(cfg.DownloadPath) == "" {
		return fmt.Errorf("CONFIG_INVALID: download_path must not be empty")
	}
	if !stringIn(cfg.AudioFormat, AudioFormats) {
		return fmt.Errorf("CONFIG_INVALID: audio_format=%q; allowed: %s", cfg.AudioFormat, strings.Join(AudioFormats, ", "))
	}
	if strings.TrimSpace(cfg.AudioQuality) == "" {
		return fmt.Errorf("CONFIG_INVALID: audio_quality must not be empty")
	}
	if !stringIn(cfg.LogLevel, LogLevels) {
		return fmt.Errorf("CONFIG_INVALID: log_level=%q; allowed: %s", cfg.LogLevel, strings.Join(LogLevels, ", "))
	}
	if _, err := parseTimeout(cfg.CallTimeout); err != nil {
		return fmt.Errorf("CONFIG_INVALID: call_timeout=%q: %w", cfg.CallTimeout, err)
	}
	return nil
}

func parseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}

func stringIn(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
