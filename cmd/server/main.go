// Package main is the entry point of the chatrelay API server, which runs
// LLM chat and title generation tasks in the background and relays their
// output to a single observer over server-sent events.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
