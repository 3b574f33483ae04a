// Command skald is the reference host for the Skald narrative-scripting
// engine: a line-oriented player (run), a diagnostics checker (parse), and
// a recorded-session viewer (trace).
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "skald",
		Short:         "Play, parse, and inspect Skald narrative modules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newParseCmd())
	root.AddCommand(newTraceCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configureLogging redirects the default logger to logFile, matching the
// reference server's log-to-file behavior when stdio is otherwise busy
// carrying the play session.
func configureLogging(logFile string) func() {
	if logFile == "" {
		return func() {}
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("could not open log file %s, logging to stderr: %v", logFile, err)
		return func() {}
	}
	log.SetOutput(f)
	return func() { f.Close() }
}
