// Command dialogmesh is an interactive terminal client for the dialog
// engine. "chat" talks to the conversation controller, "flow" walks the
// structured slot-filling flows.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
