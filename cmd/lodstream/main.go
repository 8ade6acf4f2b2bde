// Command lodstream streams, inspects and synthesizes progressive LOD
// containers.
//
// Usage:
//
//	lodstream [flags] <command> [args]
//
// Commands:
//
//	stream   - stream assets to a required level of detail
//	inspect  - print the headers of a container
//	synth    - write a synthetic mesh or texture container
package main

import (
	"fmt"
	"os"

	"github.com/viant/lodstream/cmd/lodstream/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
