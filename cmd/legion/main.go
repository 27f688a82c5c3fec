// Command legion is the LEGION network reconnaissance engine.
package main

import "github.com/NubleX/LEGION2/cmd/cli"

// Build information, set by ldflags.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
