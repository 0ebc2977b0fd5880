// aether is the headless collaborative client.
//
// It joins the relay as one participant, applies the other participants'
// window and cursor updates to a local desktop, and saves that desktop
// through the workspace API.
package main

import (
	"fmt"
	"os"

	"aether-service/internal/commands"
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
