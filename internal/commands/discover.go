package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"aether-service/internal/discovery"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find relays on the local network",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		defer logger.Sync()

		found, err := discoverRelays(cmd.Context(), discoverTimeout, logger)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d relays\n", len(found))
		for _, ep := range found {
			fmt.Fprintf(out, "  %s %s\n", ep.Instance, ep.URL())
		}
		return nil
	},
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 3*time.Second, "How long to listen for announcements")
}

func discoverRelays(ctx context.Context, timeout time.Duration, logger *zap.Logger) ([]discovery.Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return discovery.Browse(ctx, logger)
}
