package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"llm-jukebox/internal/config"
	"llm-jukebox/internal/media"
)

const (
	ExitSuccess       = 0
	ExitGenericError  = 1
	ExitConfigInvalid = 2
)

// annotationStdio marks commands that own stdout/stderr for the protocol.
// Errors from them are never printed.
const annotationStdio = "stdio"

// GlobalFlags holds flags shared across all commands.
type GlobalFlags struct {
	ConfigPath   string
	DownloadPath string
	LogFile      string
	LogLevel     string
	YTDLPPath    string
}

var globalFlags GlobalFlags

// newClient builds the media collaborator. Tests replace it.
var newClient = func(cfg *config.Config) media.Client {
	return media.NewYTDLP(cfg.YTDLPPath)
}

var rootCmd = &cobra.Command{
	Use:   "llm-jukebox",
	Short: "MCP tool server that finds music on YouTube and saves it as audio",
	Long: "llm-jukebox exposes YouTube music search and audio download as MCP tools over stdio.\n" +
		"Run without a subcommand to serve; use download/search/info for one-shot runs.",
	Args:          cobra.NoArgs,
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
	Annotations:   map[string]string{annotationStdio: "true"},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globalFlags.ConfigPath, "config", "", "config.toml path (default: <user config dir>/llm-jukebox/config.toml)")
	pf.StringVar(&globalFlags.DownloadPath, "download-path", "", "root directory for downloaded tracks (env DOWNLOAD_PATH)")
	pf.StringVar(&globalFlags.LogFile, "log-file", "", "write JSON logs to this file; logging is off when empty")
	pf.StringVar(&globalFlags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&globalFlags.YTDLPPath, "ytdlp-path", "", "yt-dlp executable (default: looked up on PATH)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the command tree. Errors are printed to stderr except for the
// stdio server, whose streams belong to the protocol.
func Execute() error {
	cmd, err := rootCmd.ExecuteContextC(context.Background())
	if err != nil && (cmd == nil || cmd.Annotations[annotationStdio] != "true") {
		st := newStyles(os.Stderr)
		fmt.Fprintln(os.Stderr, st.errPrefix(), err)
	}
	return err
}

// exitError carries the process exit code for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configInvalid(err error) error {
	return &exitError{code: ExitConfigInvalid, err: err}
}

// ExitCodeFor maps an error returned by Execute to a process exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitGenericError
}

// loadConfig applies only the flags the user actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, config.Options, error) {
	opts := configOptions(cmd)
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, opts, configInvalid(err)
	}
	return cfg, opts, nil
}

func configOptions(cmd *cobra.Command) config.Options {
	flags := cmd.Flags()
	o := &config.Overrides{}
	if flags.Changed("download-path") {
		v := globalFlags.DownloadPath
		o.DownloadPath = &v
	}
	if flags.Changed("log-file") {
		v := globalFlags.LogFile
		o.LogFile = &v
	}
	if flags.Changed("log-level") {
		v := globalFlags.LogLevel
		o.LogLevel = &v
	}
	if flags.Changed("ytdlp-path") {
		v := globalFlags.YTDLPPath
		o.YTDLPPath = &v
	}
	return config.Options{
		ConfigPath: globalFlags.ConfigPath,
		Overrides:  o,
	}
}
