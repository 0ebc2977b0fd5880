package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apiclient "aether-service/internal/client"
	"aether-service/internal/gateway"
	"aether-service/internal/session"
	"aether-service/internal/transport"
)

var (
	joinWorkspace string
	joinDiscover  bool
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join the shared desktop",
	Long: `Connect to the relay and edit the shared desktop interactively.

Windows you add, move or remove are sent to every other participant, and
their changes are applied to your copy. Once a workspace is saved or loaded,
changes are autosaved to it.

Examples:
  aether join --username alice
  aether join --workspace 3f2c...  # start from a saved workspace
  aether join --discover           # use the first relay found on the LAN`,
	RunE: runJoin,
}

func init() {
	joinCmd.Flags().StringVar(&joinWorkspace, "workspace", "", "Load this workspace after connecting")
	joinCmd.Flags().BoolVar(&joinDiscover, "discover", false, "Find the relay over mDNS instead of --relay")
}

func runJoin(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	url := resolvedRelayURL()
	if joinDiscover {
		found, err := discoverRelays(ctx, 3*time.Second, logger)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return fmt.Errorf("no relay found on the local network")
		}
		url = found[0].URL()
	}

	name := resolvedUsername()
	if name == "" {
		name = "guest-" + strings.Split(uuid.NewString(), "-")[0]
	}
	self := session.NewParticipant(name)

	conn := transport.New(url, transport.Options{Logger: logger})
	store := session.New(session.Config{
		Self:        self,
		Broadcaster: conn,
		Gateway:     gateway.NewHTTPGateway(resolvedAPIURL(), apiTimeout, logger, nil),
		Logger:      logger,
	})
	unsubscribe := conn.OnMessage(store.HandleRemoteMessage)

	conn.Connect()
	store.Start()
	defer func() {
		unsubscribe()
		conn.Disconnect()
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("Session close incomplete", zap.Error(err))
		}
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "joined %s as %s (%s)\n", url, self.Username, self.Color)

	if joinWorkspace != "" {
		ws, err := store.LoadWorkspace(ctx, joinWorkspace)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "loaded workspace %s %q\n", ws.ID, ws.Name)
	}
	fmt.Fprintln(out, `type "help" for commands`)

	interpreter := apiclient.NewCommandClient(strings.TrimRight(resolvedAPIURL(), "/")+"/api/ai/command", 30*time.Second, logger, nil)
	return newREPL(store, interpreter, out).run(ctx, cmd.InOrStdin())
}
