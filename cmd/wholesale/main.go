// Command wholesale replays wholesale-supplier transaction scripts against a
// row store and reports per-kind latency.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/wholesale/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wholesale: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
