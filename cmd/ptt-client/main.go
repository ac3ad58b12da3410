// ptt-client is a push-to-talk dispatch client.
//
// It registers with a dispatch server, keeps the registration alive,
// accepts sessions pushed by the server and optionally records the voice
// received on them.
//
// Usage:
//
//	ptt-client run --config ptt.yaml
//	ptt-client decode 0200001c...
//	ptt-client version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ptt-client",
		Short: "Push-to-talk dispatch client",
		Long: `ptt-client speaks the dispatch signaling protocol over UDP.

It logs in with digest authentication, keeps the registration alive,
fails over to the secondary server and accepts server-initiated
sessions. Received voice can be decoded with ffmpeg and stored.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		decodeCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
