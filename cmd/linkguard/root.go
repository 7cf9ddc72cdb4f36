package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/linkguard/classify"
	"github.com/hazyhaar/linkguard/guard"
	"github.com/hazyhaar/linkguard/store"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkguard",
		Short: "Classify the links on a web page and act on dangerous ones",
		Long: `linkguard sends every link on a page to a URL classification service and,
depending on which features are switched on, hides or disables malicious links,
explains a link under the pointer or a selected piece of text, or writes a report.

Feature flags live in a small SQLite store; a running session follows them, so
"linkguard flags set hide on" takes effect in an open "linkguard run".`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Configuration file (default "+guard.DefaultConfigPath()+")")
	cmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().String("endpoint", "", "Classifier endpoint (overrides the configuration)")
	cmd.PersistentFlags().String("store", "", "Flag store path (overrides the configuration)")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewClassifyCmd())
	cmd.AddCommand(NewFlagsCmd())
	cmd.AddCommand(NewMCPCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is the configuration and logger shared by every subcommand.
type env struct {
	cfg    *guard.Config
	logger *slog.Logger
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := guard.LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("endpoint"); v != "" {
		cfg.Classifier.Endpoint = v
	}
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Store.Path = v
	}
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(cmd.ErrOrStderr(), level)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return &env{cfg: cfg, logger: logger}, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func (e *env) classifier() *classify.Client {
	return classify.New(e.cfg.Classifier.Endpoint,
		classify.WithTimeout(e.cfg.Classifier.Timeout),
		classify.WithLogger(e.logger),
	)
}

func (e *env) openStore() (*store.Store, error) {
	return store.Open(e.cfg.Store.Path, store.Options{
		PollInterval: e.cfg.Store.PollInterval,
		Logger:       e.logger,
	})
}
