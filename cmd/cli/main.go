// Command stratabisim-cli drives the refine/condense/quotient/serve
// subcommands defined in cmd/cli/cmd.
package main

import (
	"github.com/stratabisim/stratabisim/cmd/cli/cmd"
)

func main() {
	cmd.Execute()
}
