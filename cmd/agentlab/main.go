// Command agentlab runs the workflow executor, the multi-agent
// simulations, planning, RAG and evaluation from the command line, and
// serves the HTTP API.
package main

import (
	"fmt"
	"os"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
