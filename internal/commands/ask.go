package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apiclient "aether-service/internal/client"
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send a natural language command to the server",
	Long: `Send a natural language command and print the interpreted action.

Nothing is applied to a desktop; use "ask" inside "aether join" for that.

Examples:
  aether ask open a terminal
  aether ask switch to the dark theme`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		defer logger.Sync()

		url := strings.TrimRight(resolvedAPIURL(), "/") + "/api/ai/command"
		result, err := apiclient.NewCommandClient(url, 30*time.Second, logger, nil).
			Interpret(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "action: %s\n", result.Action)
		if result.WindowType != "" {
			fmt.Fprintf(out, "window: %s %q\n", result.WindowType, result.WindowTitle)
		}
		if result.Theme != "" {
			fmt.Fprintf(out, "theme: %s\n", result.Theme)
		}
		if result.Message != "" {
			fmt.Fprintln(out, result.Message)
		}
		return nil
	},
}
