// Command puffing runs and checks Puffing programs from the terminal. The
// docker backend execs `puffing run --json` inside its sandbox containers.
package main

import (
	"os"

	"github.com/sakif/puffing-runner/cmd/puffing/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
