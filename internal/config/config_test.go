package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearJukeboxEnv(t *testing.T) {
	t.Helper()
	for _, fd := range fieldDefs {
		t.Setenv(fd.EnvVar, "")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func isolatedOptions(t *testing.T) (Options, string) {
	t.Helper()
	tmp := t.TempDir()
	return Options{
		ConfigPath: filepath.Join(tmp, "config.toml"),
		DotEnvDir:  tmp,
	}, tmp
}

func TestLoad_Defaults(t *testing.T) {
	clearJukeboxEnv(t)
	opts, _ := isolatedOptions(t)

	cfg, err := Load(opts)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DownloadPath != DefaultDownloadPath {
		t.Fatalf("unexpected download path: %q", cfg.DownloadPath)
	}
	if cfg.AudioFormat != "mp3" || cfg.AudioQuality != "192" {
		t.Fatalf("unexpected audio settings: %q %q", cfg.AudioFormat, cfg.AudioQuality)
	}
	if !cfg.WriteThumbnail {
		t.Fatal("expected thumbnails to be written by default")
	}
	if cfg.Timeout() != 0 {
		t.Fatalf("expected no call timeout, got %s", cfg.Timeout())
	}
}

func TestLoad_DownloadPathFromEnv(t *testing.T) {
	clearJukeboxEnv(t)
	opts, _ := isolatedOptions(t)
	t.Setenv("DOWNLOAD_PATH", "/srv/music")

	cfg, err := Load(opts)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DownloadPath != "/srv/music" {
		t.Fatalf("unexpected download path: %q", cfg.DownloadPath)
	}
}

func TestLoad_ConfigFileThenEnvThenOverrides(t *testing.T) {
	clearJukeboxEnv(t)
	opts, _ := isolatedOptions(t)
	writeFile(t, opts.ConfigPath, `
download_path = "/from/file"
audio_quality = "320"
log_level = "debug"
call_timeout = "90s"
`)
	t.Setenv("JUKEBOX_AUDIO_QUALITY", "128")
	flagPath := "/from/flag"
	opts.Overrides = &Overrides{DownloadPath: &flagPath}

	cfg, err := Load(opts)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DownloadPath != "/from/flag" {
		t.Fatalf("flag should win, got %q", cfg.DownloadPath)
	}
	if cfg.AudioQuality != "128" {
		t.Fatalf("env should win over file, got %q", cfg.AudioQuality)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("file value should apply, got %q", cfg.LogLevel)
	}
	if cfg.Timeout() != 90*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.Timeout())
	}
}

func TestLoad_DotEnvLocalOverridesDotEnv(t *testing.T) {
	clearJukeboxEnv(t)
	opts, tmp := isolatedOptions(t)
	writeFile(t, filepath.Join(tmp, ".env"), "DOWNLOAD_PATH=/from/env-file\nJUKEBOX_LOG_LEVEL=warn\n")
	writeFile(t, filepath.Join(tmp, ".env.local"), "DOWNLOAD_PATH=/from/env-local\n")

	cfg, err := Load(opts)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DownloadPath != "/from/env-local" {
		t.Fatalf("unexpected download path: %q", cfg.DownloadPath)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("unexpected log level: %q", cfg.LogLevel)
	}
}

func TestLoad_EnvOverridesDotEnv(t *testing.T) {
	clearJukeboxEnv(t)
	opts, tmp := isolatedOptions(t)
	writeFile(t, filepath.Join(tmp, ".env"), "DOWNLOAD_PATH=/from/env-file\n")
	t.Setenv("DOWNLOAD_PATH", "/from/env")

	cfg, err := Load(opts)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DownloadPath != "/from/env" {
		t.Fatalf("unexpected download path: %q", cfg.DownloadPath)
	}
}

func TestLoad_MalformedConfigFile(t *testing.T) {
	clearJukeboxEnv(t)
	opts, _ := isolatedOptions(t)
	writeFile(t, opts.ConfigPath, "download_path = [\n")

	_, err := Load(opts)
	if err == nil {
		t.Fatal("expected error for malformed toml")
	}
	if !strings.HasPrefix(err.Error(), "CONFIG_INVALID:") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"audio format": func(c *Config) { c.AudioFormat = "ogg" },
		"log level":    func(c *Config) { c.LogLevel = "trace" },
		"timeout":      func(c *Config) { c.CallTimeout = "-5s" },
		"garbage":      func(c *Config) { c.CallTimeout = "soon" },
		"empty path":   func(c *Config) { c.DownloadPath = " " },
		"quality":      func(c *Config) { c.AudioQuality = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := Validate(&cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestEnsureDownloadDir_Idempotent(t *testing.T) {
	cfg := Default()
	cfg.DownloadPath = filepath.Join(t.TempDir(), "nested", "music")

	for i := 0; i < 2; i++ {
		if err := cfg.EnsureDownloadDir(); err != nil {
			t.Fatalf("EnsureDownloadDir #%d: %v", i+1, err)
		}
	}
	info, err := os.Stat(cfg.DownloadPath)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory at %s: %v", cfg.DownloadPath, err)
	}
}

func TestEffectiveFields_ReportsSources(t *testing.T) {
	clearJukeboxEnv(t)
	opts, _ := isolatedOptions(t)
	writeFile(t, opts.ConfigPath, "audio_quality = \"320\"\n")
	t.Setenv("DOWNLOAD_PATH", "/from/env")
	level := "error"
	opts.Overrides = &Overrides{LogLevel: &level}

	cfg, err := Load(opts)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	sources := map[string]FieldSource{}
	for _, fi := range EffectiveFields(*cfg, opts) {
		sources[fi.Key] = fi.Source
	}
	want := map[string]FieldSource{
		"download_path": SourceEnv,
		"audio_quality": SourceConfigFile,
		"audio_format":  SourceDefault,
		"log_level":     SourceFlag,
	}
	for key, src := range want {
		if sources[key] != src {
			t.Fatalf("%s: expected source %q, got %q", key, src, sources[key])
		}
	}
}
