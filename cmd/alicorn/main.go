// Command alicorn serves and manages scan comparisons.
package main

import (
	"github.com/anstrom/alicorn/cmd/cli"
)

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
