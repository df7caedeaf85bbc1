// termdriver drives interactive terminal sessions over SSH or a local PTY,
// from the command line or as an MCP server.
package main

import "os"

// Version information - set at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
