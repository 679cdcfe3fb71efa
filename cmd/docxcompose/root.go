package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/benjaminschreck/go-docxcompose/pkg/docxcompose"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app holds what every subcommand shares: the merged configuration and the
// logger built from it.
type app struct {
	v        *viper.Viper
	cfgFile  string
	log      *zap.Logger
	closeLog func() error
}

func newRootCmd() *cobra.Command {
	a := &app{v: docxcompose.NewEnvViper(), log: zap.NewNop()}
	a.v.SetDefault("log.max_size", 10)
	a.v.SetDefault("log.max_backups", 3)
	a.v.SetDefault("log.max_age", 28)
	a.v.SetDefault("log.compress", false)

	cmd := &cobra.Command{
		Use:          "docxcompose",
		Short:        "Compose .docx documents from a style template and a content stream",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (YAML, TOML or JSON)")
	flags.String("log-level", "", "log level: debug, info, warn, error or off")
	flags.String("log-file", "", "write logs to this rotating file instead of stderr")
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.file", flags.Lookup("log-file"))

	cmd.AddCommand(buildCmd(a), inspectCmd(a), versionCmd())
	return cmd
}

// setup reads the config file, if any, and builds the logger.
func (a *app) setup(stderr io.Writer) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
	}
	log, closeLog, err := newLogger(a.v, stderr)
	if err != nil {
		return err
	}
	a.log, a.closeLog = log, closeLog
	if a.cfgFile != "" {
		a.log.Debug("config loaded", zap.String("file", a.v.ConfigFileUsed()))
	}
	return nil
}

func (a *app) close() error {
	_ = a.log.Sync()
	if a.closeLog == nil {
		return nil
	}
	err := a.closeLog()
	a.closeLog = nil
	return err
}

// newLogger logs to stderr, or to a lumberjack-rotated file when log.file
// is set.
func newLogger(v *viper.Viper, stderr io.Writer) (*zap.Logger, func() error, error) {
	level := v.GetString("log.level")
	file := v.GetString("log.file")
	if file == "" {
		l, err := docxcompose.NewLogger(level, stderr)
		return l, nil, err
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	w := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    v.GetInt("log.max_size"), // MB
		MaxBackups: v.GetInt("log.max_backups"),
		MaxAge:     v.GetInt("log.max_age"), // days
		Compress:   v.GetBool("log.compress"),
	}
	l, err := docxcompose.NewLogger(level, w)
	if err != nil {
		w.Close()
		return nil, nil, err
	}
	return l, w.Close, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docxcompose %s\n", version)
		},
	}
}
