package cli

import (
	"github.com/spf13/cobra"

	"github.com/lazypower/tabpulse/internal/config"
	"github.com/lazypower/tabpulse/internal/hooks"
)

var (
	configPath string
	daemonURL  string
)

var rootCmd = &cobra.Command{
	Use:   "tabpulse",
	Short: "Tab memory monitor and keep predictor",
	Long: "tabpulse watches per-tab memory, flags tabs whose memory keeps growing, " +
		"scores tab health and predicts which tabs you will come back to.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.tabpulse/config.toml)")
	rootCmd.PersistentFlags().StringVar(&daemonURL, "url", "", "daemon URL for client commands (default $TABPULSE_URL or http://127.0.0.1:37778)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tabsCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(domainsCmd)
	rootCmd.AddCommand(leaksCmd)
	rootCmd.AddCommand(importCmd)
}

// loadConfig reads the config from --config or the default path.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return config.Config{}, err
		}
	}
	return config.Load(path)
}

// daemonClient returns a client for the running daemon.
func daemonClient() *hooks.Client {
	if daemonURL != "" {
		return hooks.NewClientURL(daemonURL)
	}
	return hooks.NewClient()
}
