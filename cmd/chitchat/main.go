package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/msniranjan18/chit-chat-client/config"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type rootOptions struct {
	apiURL    string
	socketURL string
	env       string
	logLevel  string
}

// load reads the environment and applies flag overrides.
func (o *rootOptions) load() (*config.Config, error) {
	cfg := config.Load()
	if o.apiURL != "" {
		cfg.API.URL = o.apiURL
	}
	if o.socketURL != "" {
		cfg.API.SocketURL = o.socketURL
	}
	if o.env != "" {
		cfg.Env = o.env
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "chitchat",
		Short: "Terminal client for ChitChat",
		Long: `chitchat is a terminal client for the ChitChat one-to-one chat service.

It keeps your session, the open conversation and your theme preference,
and receives messages live over the service's socket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api", "", "API base URL (overrides API_URL)")
	flags.StringVar(&opts.socketURL, "socket", "", "socket URL (overrides SOCKET_URL)")
	flags.StringVar(&opts.env, "env", "", "environment name (overrides ENV)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level for diagnostics on stderr")

	rootCmd.AddCommand(
		chatCmd(opts),
		themeCmd(opts),
		versionCmd(),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Error:"), err)
		stop()
		os.Exit(1)
	}
}
