package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/fang"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ketabi/ketabi/internal/command"
	"github.com/ketabi/ketabi/internal/config"
	"github.com/ketabi/ketabi/internal/export"
	"github.com/ketabi/ketabi/internal/store"
)

// Version is set via -ldflags.
var Version = "dev"

type cliOptions struct {
	Config     *config.Config
	ConfigPath string // config file that was read, empty for defaults
	Logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ketabi",
		Short: "Read, write and export Ketabi documents",
		Long: `ketabi works with the documents of the Ketabi book editor.

It reads and writes .ketabi files (gzip-compressed JSON) and exports
authored books as EPUB 3.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file (default: $XDG_CONFIG_HOME/ketabi/config.{yaml,toml,json})")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default from config: info)")
	root.PersistentFlags().String("log-format", "", "Log format: text, json, pretty (default from config: text)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging (overrides --log-level)")

	root.AddCommand(
		newReadCmd(),
		newSyncCmd(),
		newEpubCmd(),
		newInspectCmd(),
		newConfigCmd(),
	)
	return root
}

// readCLIOptions loads the configuration and applies the global flags on top.
func readCLIOptions(cmd *cobra.Command) (*cliOptions, error) {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	logLevel, _ := flags.GetString("log-level")
	logFormat, _ := flags.GetString("log-format")
	verbose, _ := flags.GetBool("verbose")

	cfg, usedPath, err := config.Load(config.LoadOptions{ConfigFilePath: configPath})
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		logLevel = strings.ToLower(logLevel)
		if _, ok := slogLevels[logLevel]; !ok {
			return nil, fmt.Errorf("invalid --log-level %q: must be debug, info, warn, or error", logLevel)
		}
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		logFormat = strings.ToLower(logFormat)
		if logFormat != "text" && logFormat != "json" && logFormat != "pretty" {
			return nil, fmt.Errorf("invalid --log-format %q: must be text, json, or pretty", logFormat)
		}
		cfg.Log.Format = logFormat
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	return &cliOptions{
		Config:     cfg,
		ConfigPath: usedPath,
		Logger:     buildLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format),
	}, nil
}

var slogLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// buildLogger creates a logger writing to w. Unknown levels fall back to
// info and unknown formats to text.
func buildLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, ok := slogLevels[strings.ToLower(level)]
	if !ok {
		lvl = slog.LevelInfo
	}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	case "pretty":
		return slog.New(charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(lvl),
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
		}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	}
}

// newCommands wires the command surface from the effective configuration.
func newCommands(opts *cliOptions) *command.Commands {
	cfg := opts.Config
	s := store.New(store.Options{
		Extension:        cfg.Store.Extension,
		MaxSize:          cfg.Store.MaxSize,
		MaxDecodedSize:   cfg.Store.MaxDecodedSize,
		CompressionLevel: cfg.Store.CompressionLevel,
		Logger:           opts.Logger,
	})
	e := export.New(export.Options{
		Generator:      cfg.Export.Generator,
		CoverMaxWidth:  cfg.Export.CoverMaxWidth,
		CoverMaxHeight: cfg.Export.CoverMaxHeight,
		CoverQuality:   cfg.Export.CoverQuality,
		Logger:         opts.Logger,
	})
	return command.New(s, e, opts.Logger)
}

// defaultOutputPath replaces the extension of inputPath with ext.
func defaultOutputPath(inputPath, ext string) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "." + ext
}

func main() {
	if err := fang.Execute(context.Background(), newRootCmd(), fang.WithVersion(Version)); err != nil {
		os.Exit(1)
	}
}
