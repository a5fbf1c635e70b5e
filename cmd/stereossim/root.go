package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/stereossim"
	"github.com/gogpu/stereossim/internal/config"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	// cfg is loaded before every command and then overridden by flags.
	cfg = config.DefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "stereossim",
	Short: "Detect stereoscopic frame layouts with global SSIM",
	Long: `stereossim compares the two eye regions of a raw NV12 frame under a
candidate stereo layout (2D, side-by-side or top-bottom) and reports
whether they are similar enough for the layout to be correct.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return usagef("%w", err)
		}
		cfg = loaded
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.Log.Format = logFormat
		}

		logger, err := newLogger(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return usagef("%w", err)
		}
		slog.SetDefault(logger)
		stereossim.SetLogger(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "stereossim.yaml", "Config file (defaults apply when missing)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
}

// newLogger builds the stderr logger. Stdout carries the report only.
func newLogger(level, format string) (*slog.Logger, error) {
	var lv slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lv = slog.LevelDebug
	case "info":
		lv = slog.LevelInfo
	case "", "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lv}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}
