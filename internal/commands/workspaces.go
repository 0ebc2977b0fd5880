package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"aether-service/internal/gateway"
)

var workspacesCmd = &cobra.Command{
	Use:   "workspaces",
	Short: "List saved workspaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		defer logger.Sync()

		g := gateway.NewHTTPGateway(resolvedAPIURL(), apiTimeout, logger, nil)
		list, err := g.List(cmd.Context())
		if err != nil {
			return err
		}
		printWorkspaces(cmd.OutOrStdout(), list, "")
		return nil
	},
}

var workspacesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		defer logger.Sync()

		g := gateway.NewHTTPGateway(resolvedAPIURL(), apiTimeout, logger, nil)
		deleted, err := g.Delete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("no workspace %s", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted workspace %s\n", args[0])
		return nil
	},
}

func init() {
	workspacesCmd.AddCommand(workspacesDeleteCmd)
}
