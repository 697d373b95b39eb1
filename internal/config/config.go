package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultDownloadPath = "./"
	DefaultAudioFormat  = "mp3"
	DefaultAudioQuality = "192"
	DefaultLogLevel     = "info"

	appDirName     = "llm-jukebox"
	configFileName = "config.toml"
)

// FieldSource indicates where a config value originates.
type FieldSource string

const (
	SourceDefault     FieldSource = "default"
	SourceConfigFile  FieldSource = "config.toml"
	SourceDotEnv      FieldSource = ".env"
	SourceDotEnvLocal FieldSource = ".env.local"
	SourceEnv         FieldSource = "env"
	SourceFlag        FieldSource = "flag"
)

// FieldInfo describes a single configurable field and its provenance.
type FieldInfo struct {
	Key    string
	EnvVar string
	Value  string
	Source FieldSource
}

// Config is built once at startup and shared by pointer with the resolver,
// the fetcher and the server.
type Config struct {
	DownloadPath   string `toml:"download_path"`
	AudioFormat    string `toml:"audio_format"`
	AudioQuality   string `toml:"audio_quality"`
	WriteThumbnail bool   `toml:"write_thumbnail"`
	YTDLPPath      string `toml:"ytdlp_path"`
	LogFile        string `toml:"log_file"`
	LogLevel       string `toml:"log_level"`
	// CallTimeout bounds a single collaborator call ("90s", "5m").
	// Empty or "0" disables the bound.
	CallTimeout string `toml:"call_timeout"`
}

// Options controls where Load looks for its layers. Zero value uses the
// user config dir and the working directory.
type Options struct {
	// ConfigPath overrides the config.toml location.
	ConfigPath string
	// DotEnvDir is the directory searched for .env and .env.local.
	DotEnvDir string
	// Overrides apply last (flags > env > dotenv > file > defaults).
	Overrides *Overrides
}

// Overrides holds CLI flag values. Only non-nil fields are applied.
type Overrides struct {
	DownloadPath *string
	LogFile      *string
	LogLevel     *string
	YTDLPPath    *string
}

func Default() Config {
	return Config{
		DownloadPath:   DefaultDownloadPath,
		AudioFormat:    DefaultAudioFormat,
		AudioQuality:   DefaultAudioQuality,
		WriteThumbnail: true,
		YTDLPPath:      "",
		LogFile:        "",
		LogLevel:       DefaultLogLevel,
		CallTimeout:    "",
	}
}

// Load builds the config: defaults, then config.toml, then .env.local and
// .env (never overriding variables already set), then env vars, then flags.
func Load(opts Options) (*Config, error) {
	if err := loadDotEnvPrecedence(dotEnvDir(opts)); err != nil {
		return nil, fmt.Errorf("CONFIG_INVALID: load dotenv files: %w", err)
	}

	cfg := Default()
	path, err := resolveConfigPath(opts)
	if err != nil {
		return nil, fmt.Errorf("CONFIG_INVALID: %w", err)
	}
	if err := mergeConfigFile(&cfg, path); err != nil {
		return nil, fmt.Errorf("CONFIG_INVALID: parse %s: %w", path, err)
	}
	mergeEnv(&cfg)
	if opts.Overrides != nil {
		applyOverrides(&cfg, opts.Overrides)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Path returns the default location of config.toml.
func Path() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDirName, configFileName), nil
}

// Timeout returns the parsed CallTimeout. Invalid values are rejected by
// Validate, so callers after Load can ignore the zero fallback.
func (c *Config) Timeout() time.Duration {
	d, err := parseTimeout(c.CallTimeout)
	if err != nil {
		return 0
	}
	return d
}

// EnsureDownloadDir creates the download root if missing.
func (c *Config) EnsureDownloadDir() error {
	if err := os.MkdirAll(c.DownloadPath, 0o755); err != nil {
		return fmt.Errorf("create download directory %s: %w", c.DownloadPath, err)
	}
	return nil
}

func resolveConfigPath(opts Options) (string, error) {
	if strings.TrimSpace(opts.ConfigPath) != "" {
		return opts.ConfigPath, nil
	}
	return Path()
}

func dotEnvDir(opts Options) string {
	if strings.TrimSpace(opts.DotEnvDir) == "" {
		return "."
	}
	return opts.DotEnvDir
}

func mergeConfigFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	_, err := toml.DecodeFile(path, cfg)
	return err
}

func mergeEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("DOWNLOAD_PATH")); v != "" {
		cfg.DownloadPath = v
	}
	if v := strings.TrimSpace(os.Getenv("JUKEBOX_AUDIO_FORMAT")); v != "" {
		cfg.AudioFormat = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("JUKEBOX_AUDIO_QUALITY")); v != "" {
		cfg.AudioQuality = v
	}
	if v := strings.TrimSpace(os.Getenv("JUKEBOX_WRITE_THUMBNAIL")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.WriteThumbnail = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("JUKEBOX_YTDLP_PATH")); v != "" {
		cfg.YTDLPPath = v
	}
	if v := strings.TrimSpace(os.Getenv("JUKEBOX_LOG_FILE")); v != "" {
		cfg.LogFile = v
	}
	if v := strings.TrimSpace(os.Getenv("JUKEBOX_LOG_LEVEL")); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("JUKEBOX_CALL_TIMEOUT")); v != "" {
		cfg.CallTimeout = v
	}
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o.DownloadPath != nil {
		cfg.DownloadPath = *o.DownloadPath
	}
	if o.LogFile != nil {
		cfg.LogFile = *o.LogFile
	}
	if o.LogLevel != nil {
		cfg.LogLevel = strings.ToLower(*o.LogLevel)
	}
	if o.YTDLPPath != nil {
		cfg.YTDLPPath = *o.YTDLPPath
	}
}

// fieldDef describes a configurable field for EffectiveFields.
type fieldDef struct {
	Key    string
	EnvVar string
}

var fieldDefs = []fieldDef{
	{Key: "download_path", EnvVar: "DOWNLOAD_PATH"},
	{Key: "audio_format", EnvVar: "JUKEBOX_AUDIO_FORMAT"},
	{Key: "audio_quality", EnvVar: "JUKEBOX_AUDIO_QUALITY"},
	{Key: "write_thumbnail", EnvVar: "JUKEBOX_WRITE_THUMBNAIL"},
	{Key: "ytdlp_path", EnvVar: "JUKEBOX_YTDLP_PATH"},
	{Key: "log_file", EnvVar: "JUKEBOX_LOG_FILE"},
	{Key: "log_level", EnvVar: "JUKEBOX_LOG_LEVEL"},
	{Key: "call_timeout", EnvVar: "JUKEBOX_CALL_TIMEOUT"},
}

func fieldValue(cfg Config, key string) string {
	switch key {
	case "download_path":
		return cfg.DownloadPath
	case "audio_format":
		return cfg.AudioFormat
	case "audio_quality":
		return cfg.AudioQuality
	case "write_thumbnail":
		return strconv.FormatBool(cfg.WriteThumbnail)
	case "ytdlp_path":
		return cfg.YTDLPPath
	case "log_file":
		return cfg.LogFile
	case "log_level":
		return cfg.LogLevel
	case "call_timeout":
		return cfg.CallTimeout
	default:
		return ""
	}
}

// EffectiveFields reports each field of cfg with the layer that provided it,
// checked in precedence order: env var → .env.local → .env → config.toml →
// default. Values that match none of those came from a flag.
func EffectiveFields(cfg Config, opts Options) []FieldInfo {
	dir := dotEnvDir(opts)
	dotEnvLocal := readDotFile(filepath.Join(dir, ".env.local"))
	dotEnv := readDotFile(filepath.Join(dir, ".env"))

	def := Default()
	fileCfg := def
	if path, err := resolveConfigPath(opts); err == nil {
		if mergeErr := mergeConfigFile(&fileCfg, path); mergeErr != nil {
			fileCfg = def
		}
	}

	out := make([]FieldInfo, 0, len(fieldDefs))
	for _, fd := range fieldDefs {
		fi := FieldInfo{Key: fd.Key, EnvVar: fd.EnvVar, Value: fieldValue(cfg, fd.Key)}
		envVal, envSet := os.LookupEnv(fd.EnvVar)
		switch {
		case envSet && strings.TrimSpace(envVal) != "" && envMatches(cfg, fd.Key, envVal):
			if _, ok := dotEnvLocal[fd.EnvVar]; ok {
				fi.Source = SourceDotEnvLocal
			} else if _, ok := dotEnv[fd.EnvVar]; ok {
				fi.Source = SourceDotEnv
			} else {
				fi.Source = SourceEnv
			}
		case fi.Value == fieldValue(fileCfg, fd.Key) && fieldValue(fileCfg, fd.Key) != fieldValue(def, fd.Key):
			fi.Source = SourceConfigFile
		case fi.Value == fieldValue(def, fd.Key):
			fi.Source = SourceDefault
		default:
			fi.Source = SourceFlag
		}
		out = append(out, fi)
	}
	return out
}

func envMatches(cfg Config, key, envVal string) bool {
	envVal = strings.TrimSpace(envVal)
	current := fieldValue(cfg, key)
	if key == "write_thumbnail" {
		parsed, err := strconv.ParseBool(envVal)
		return err == nil && strconv.FormatBool(parsed) == current
	}
	return strings.EqualFold(envVal, current)
}
