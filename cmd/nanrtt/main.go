// Nanrtt runs a device of a peer-to-peer indoor positioning network.
//
// Devices find each other with publish/subscribe discovery, exchange a
// name handshake, keep each other alive with pings and range each other
// continuously. A device that knows the positions of enough anchors
// trilaterates its own position.
//
// Usage:
//
//	nanrtt simulate [flags]   # anchors and a walker on a simulated radio
//	nanrtt lan [flags]        # one device on the local network
//	nanrtt config init        # write a default configuration
//
// See 'nanrtt --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gangulaabhinav/ARWalking/internal/logging"
	"github.com/gangulaabhinav/ARWalking/internal/version"
)

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath  string
	logLevel    string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "nanrtt",
	Short: "Peer-to-peer discovery, ranging and positioning",
	Long: `Run a device of a peer-to-peer indoor positioning network.

Anchors publish a service at known positions. Walkers subscribe, complete a
name handshake with every anchor they discover, range them continuously and
trilaterate their own position from the measured distances.

Logging is silent unless --log-level, NANRTT_LOG_LEVEL or the config file's
log.level is set.`,
	Version:       version.Get().Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9100")

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(lanCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
