// Package cmd implements the sessionbridge command line.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/felixgeelhaar/sessionbridge/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sessionbridge",
	Short: "Keep one identity session consistent across desktop windows",
	Long: `sessionbridge connects the windows of a desktop application to a native
host that owns the identity session. The host performs frontend API requests
on behalf of the windows, keeps the client token and a cached client, and
relays auth events so every window converges on the same session.

Run the host once per application, then attach windows to it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sessionbridge/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text, json")
	rootCmd.PersistentFlags().String("log-backend", "", "logger: slog, zerolog")
}

// loadConfig reads configuration with the named flags of cmd bound to keys.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	flags := map[string]*pflag.Flag{
		"log.level":   cmd.Flags().Lookup("log-level"),
		"log.format":  cmd.Flags().Lookup("log-format"),
		"log.backend": cmd.Flags().Lookup("log-backend"),
	}
	for key, name := range bindings {
		flags[key] = cmd.Flags().Lookup(name)
	}
	return config.Load(cfgFile, flags)
}
