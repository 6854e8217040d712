// Command authstate-demo runs the reference session API with guarded pages,
// signs in from the command line, and measures sign-out propagation across
// simulated tabs.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/MrEthical07/authstate"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "authstate-demo"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Session state propagation demo",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "YAML config file (defaults to AUTHSTATE_* environment)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd(g), signinCmd(g), tabsCmd(g))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func (g *globalFlags) logger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(g.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// config loads the file given with --config, or the environment otherwise,
// and prints lint warnings.
func (g *globalFlags) config(logger *slog.Logger) (authstate.Config, error) {
	var (
		cfg authstate.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = authstate.LoadConfigFile(g.configPath)
	} else {
		cfg, err = authstate.LoadConfigFromEnv()
	}
	if err != nil {
		return authstate.Config{}, err
	}
	for _, w := range cfg.Lint() {
		logger.Debug("config lint", slog.String("code", w.Code), slog.String("severity", w.Severity.String()), slog.String("message", w.Message))
	}
	return cfg, nil
}
