package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fireworks-assets/internal/archive"
	"fireworks-assets/internal/config"
	"fireworks-assets/internal/logger"
	"fireworks-assets/internal/metrics"
	"fireworks-assets/internal/mover"

	"github.com/manifoldco/promptui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type mode int

const (
	modeOnce  mode = 1
	modeWatch mode = 2
)

var ErrInvalidMode = errors.New("invalid option")

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "fireworks-mover",
		Short: "Move fireworks*.png out of Downloads into the project folder",
		Long: `Without a subcommand an interactive prompt asks for the mode:

  1. move the existing images once
  2. keep watching and move new images as they arrive

Paths, pattern and poll interval come from FIREWORKS_MOVER_* environment variables.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := promptMode(cmd.InOrStdin(), cmd.OutOrStdout())
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			if err != nil {
				return err
			}
			return run(cmd.Context(), m, cmd.OutOrStdout())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "once",
			Short: "Move matching files once and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), modeOnce, cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Poll the source directory and move new files until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), modeWatch, cmd.OutOrStdout())
			},
		},
	)
	return root
}

func promptMode(in io.Reader, out io.Writer) (mode, error) {
	fmt.Fprintln(out, "Select mode:")
	fmt.Fprintln(out, "1. Move existing images once")
	fmt.Fprintln(out, "2. Watch and move new images automatically")

	prompt := promptui.Prompt{Label: "Enter option (1 or 2)"}
	// cmd 에 다른 입출력이 설정된 경우만 넘긴다. nil 이면 promptui 가 os.Stdin/Stdout 을 쓴다.
	if in != os.Stdin {
		prompt.Stdin = io.NopCloser(in)
	}
	if out != os.Stdout {
		prompt.Stdout = nopWriteCloser{out}
	}
	answer, err := prompt.Run()
	if err != nil {
		return 0, err
	}
	return parseMode(answer)
}

func parseMode(s string) (mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "once":
		return modeOnce, nil
	case "2", "watch":
		return modeWatch, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, strings.TrimSpace(s))
}

func run(parent context.Context, m mode, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(cfg)

	met := metrics.New(prometheus.NewRegistry())

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	journal, err := archive.Open(ctx, cfg, met, log)
	if err != nil {
		return fmt.Errorf("open archive journal: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Archive.S3Timeout)
		defer cancel()
		if err := journal.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("archive journal shutdown")
		}
	}()

	mv := mover.New(cfg.Mover, met, journal, log.With().Str("component", "mover").Logger())

	switch m {
	case modeOnce:
		n, err := mv.Relocate()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Moved %d file(s) to %s\n", n, cfg.Mover.DestDir)
		return nil

	case modeWatch:
		fmt.Fprintf(out, "Watching %s for %s\n", cfg.Mover.SourceDir, cfg.Mover.Pattern)
		fmt.Fprintf(out, "Images will be moved to %s\n", cfg.Mover.DestDir)
		fmt.Fprintln(out, "Press Ctrl+C to stop watching")
		if err := mv.Watch(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "\nWatch stopped.")
		return nil
	}
	return fmt.Errorf("%w: %d", ErrInvalidMode, m)
}

// promptui 는 WriteCloser 를 받는다. cmd 출력은 닫지 않는다.
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
