package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/vango-dev/localstate/internal/config"
	"github.com/vango-dev/localstate/internal/errors"
	"github.com/vango-dev/localstate/pkg/codec"
	"github.com/vango-dev/localstate/pkg/storage"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	a := &app{}
	if err := newRootCmd(a).Execute(); err != nil {
		a.report(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what every command needs once the config is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	codec  codec.Codec

	// flag overrides
	kind     string
	dir      string
	path      string
	logLevel  string
	logFormat string
	color     string
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "localstate",
		Short: "Inspect and edit persisted UI state",
		Long: `localstate reads and writes the key-value stores that back
persisted UI state, and watches keys for changes made elsewhere.

The store is configured in localstate.json (searched for from the
working directory upwards) or with LOCALSTATE_* environment variables:

  • memory   in-process, for experiments
  • file     one file per key in a directory
  • sqlite   a table in a SQLite database
  • s3       objects under a bucket prefix
  • null     no store, as during server-side rendering`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch a.color {
			case "", "auto", "always", "never":
			default:
				return errors.Newf(errors.CategoryCLI, "--color must be auto, always or never, got %q", a.color)
			}
			if cmd.Name() == "version" || cmd.Name() == "init" {
				return nil
			}
			return a.load(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.kind, "store", "", "Store kind (default from localstate.json)")
	rootCmd.PersistentFlags().StringVar(&a.dir, "dir", "", "File store directory")
	rootCmd.PersistentFlags().StringVar(&a.path, "db", "", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log and error format: text, json")
	rootCmd.PersistentFlags().StringVar(&a.color, "color", "auto", "Colored errors: auto, always, never")

	rootCmd.AddCommand(
		initCmd(),
		getCmd(a),
		setCmd(a),
		rmCmd(a),
		clearCmd(a),
		keysCmd(a),
		watchCmd(a),
		versionCmd(),
	)

	return rootCmd
}

// load reads the configuration, applies flag overrides and builds the
// logger.
func (a *app) load(logOut io.Writer) error {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}

	if a.kind != "" {
		cfg.Store.Kind = a.kind
	}
	if a.dir != "" {
		cfg.Store.Dir = a.dir
	}
	if a.path != "" {
		cfg.Store.Path = a.path
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	cd, err := cfg.CodecValue()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.codec = cd
	a.logger = newLogger(logOut, level, cfg.Log.Format)
	return nil
}

// open opens the configured store. The returned function closes it.
func (a *app) open() (storage.Store, func(), error) {
	store, err := a.cfg.OpenStore(a.logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if c, ok := store.(io.Closer); ok {
			if err := c.Close(); err != nil {
				a.logger.Warn("close store", "error", err)
			}
		}
	}
	a.logger.Debug("store opened", "kind", a.cfg.Store.Kind)
	return store, closeFn, nil
}

func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// report writes err to w. JSON logging gets JSON errors; otherwise errors
// are boxed for terminals and kept to one line when w is redirected.
func (a *app) report(w io.Writer, err error) {
	format := a.logFormat
	if format == "" && a.cfg != nil {
		format = a.cfg.Log.Format
	}

	switch {
	case strings.EqualFold(format, "json"):
		errors.PrintJSON(w, err)
	case a.color == "always":
		errors.EnableColors()
		errors.Print(w, err)
	case a.color == "never":
		errors.DisableColors()
		errors.Print(w, err)
	case isTerminal(w):
		errors.EnableColors()
		errors.Print(w, err)
	default:
		errors.PrintCompact(w, err)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}
