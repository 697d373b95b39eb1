package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"llm-jukebox/internal/jukebox"
	"llm-jukebox/internal/logging"
)

var downloadCmd = &cobra.Command{
	Use:   "download <query...>",
	Short: "Search YouTube and download the first result as audio",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneShot(cmd, func(ctx context.Context, h *jukebox.Handler) string {
			return h.Download(ctx, strings.Join(args, " "))
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Print the watch URL of the first YouTube result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneShot(cmd, func(ctx context.Context, h *jukebox.Handler) string {
			return h.Search(ctx, strings.Join(args, " "))
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <url>",
	Short: "Print metadata of a YouTube video without downloading it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneShot(cmd, func(ctx context.Context, h *jukebox.Handler) string {
			return h.Info(ctx, args[0])
		})
	},
}

// runOneShot runs one handler method outside the stdio server and prints the
// text the matching tool would have returned.
func runOneShot(cmd *cobra.Command, run func(ctx context.Context, h *jukebox.Handler) string) error {
	out := cmd.OutOrStdout()

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	if err := cfg.EnsureDownloadDir(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := jukebox.NewHandler(cfg, newClient(cfg), logger)
	printResult(out, run(ctx, h))
	return nil
}

type resultOutcome int

const (
	outcomePlain resultOutcome = iota
	outcomeSuccess
	outcomeFailure
	outcomeURL
)

func classifyResult(text string) resultOutcome {
	switch {
	case strings.HasPrefix(text, "Successfully downloaded"):
		return outcomeSuccess
	case strings.HasPrefix(text, "Failed to"), strings.HasPrefix(text, "No results found"):
		return outcomeFailure
	case strings.HasPrefix(text, "https://"):
		return outcomeURL
	default:
		return outcomePlain
	}
}

func printResult(w io.Writer, text string) {
	st := newStyles(w)
	fmt.Fprintln(w, st.result(text, classifyResult(text)))
}
