package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skald-lang/skald/internal/trace"
)

func newTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace <trace-file.jsonl>",
		Short: "Replay a recorded session trace to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(args[0])
		},
	}
	return cmd
}

func runTrace(path string) error {
	events, err := trace.ReadAll(path)
	if err != nil {
		return fmt.Errorf("reading trace %s: %w", path, err)
	}

	for _, evt := range events {
		data, err := json.Marshal(evt.Data)
		if err != nil {
			data = []byte(fmt.Sprintf("%v", evt.Data))
		}
		fmt.Printf("[%s] %-10s session=%s %s\n",
			evt.Timestamp.Format("15:04:05.000"), evt.Type, evt.SessionID, data)
	}
	fmt.Printf("%d event(s)\n", len(events))
	return nil
}
