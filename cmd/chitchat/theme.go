package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/msniranjan18/chit-chat-client/pkg/kv"
	"github.com/msniranjan18/chit-chat-client/pkg/logging"
	"github.com/msniranjan18/chit-chat-client/pkg/state"
)

// themeColors tints the prompt. Unknown themes use the default.
var themeColors = map[string]color.Attribute{
	"forest":    color.FgGreen,
	"dracula":   color.FgMagenta,
	"retro":     color.FgYellow,
	"synthwave": color.FgHiMagenta,
	"aqua":      color.FgCyan,
	"valentine": color.FgHiRed,
	"night":     color.FgBlue,
	"light":     color.FgHiBlack,
}

func themeColor(theme string) *color.Color {
	if attr, ok := themeColors[theme]; ok {
		return color.New(attr, color.Bold)
	}
	return color.New(color.FgCyan, color.Bold)
}

func themeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "theme [name]",
		Short: "Show or set the chat theme",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Env, cfg.LogLevel)
			ctx := cmd.Context()

			store, err := kv.Open(ctx, cfg.Storage, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			pref, err := state.NewPreference(ctx, store)
			if err != nil {
				return err
			}
			defer pref.Close()

			if len(args) == 1 {
				if err := pref.SetTheme(ctx, args[0]); err != nil {
					return err
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), themeColor(pref.Theme()).Sprint(pref.Theme()))
			return nil
		},
	}
}
