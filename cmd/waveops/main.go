// Command waveops coordinates multi-team delivery through wave barriers
// over a hosted code forge.
package main

import (
	"os"

	"github.com/flyingrobots/waveops/cmd/waveops/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
