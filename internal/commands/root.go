// Package commands implements the aether CLI commands.
package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"aether-service/internal/config"
)

const apiTimeout = 10 * time.Second

var versionInfo struct {
	version string
	commit  string
	date    string
}

// SetVersionInfo sets version information from main
func SetVersionInfo(version, commit, date string) {
	versionInfo.version = version
	versionInfo.commit = commit
	versionInfo.date = date
}

var (
	clientConfig config.ClientConfig

	relayURL string
	apiURL   string
	username string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "aether",
	Short: "Headless client for the Aether collaborative relay",
	Long: `aether joins a shared spatial desktop from the terminal.

Commands:
  aether join              - Connect to the relay and edit the shared desktop
  aether workspaces        - List saved workspaces
  aether ask <message>     - Send a natural language command to the server
  aether discover          - Find relays on the local network

Environment variables:
  AETHER_RELAY_URL   - Relay websocket URL (default: ws://localhost:8080/ws)
  AETHER_API_URL     - Persistence API base URL (default: http://localhost:8080)
  AETHER_USERNAME    - Display name shown next to your cursor`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&relayURL, "relay", "", "Relay websocket URL (overrides AETHER_RELAY_URL)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Persistence API base URL (overrides AETHER_API_URL)")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "Display name (overrides AETHER_USERNAME)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(workspacesCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command
func Execute() error {
	clientConfig = config.LoadClient()
	return rootCmd.Execute()
}

func resolvedRelayURL() string {
	if relayURL != "" {
		return relayURL
	}
	return clientConfig.RelayURL
}

func resolvedAPIURL() string {
	if apiURL != "" {
		return apiURL
	}
	return clientConfig.APIURL
}

func resolvedUsername() string {
	if username != "" {
		return username
	}
	return clientConfig.Username
}

// newLogger builds a console logger at Warn, or Debug with --verbose
func newLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "aether %s (commit %s, built %s)\n",
			versionInfo.version, versionInfo.commit, versionInfo.date)
	},
}
