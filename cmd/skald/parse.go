package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skald-lang/skald/internal/ast"
	"github.com/skald-lang/skald/internal/grammar"
)

func newParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file.ska>",
		Short: "Parse a module and report diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(args[0])
		},
	}
	return cmd
}

func runParse(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	mod, diags := grammar.Parse(src, path)

	errCount := 0
	for _, d := range diags {
		kind := "warning"
		if d.Kind == ast.DiagError {
			kind = "error"
			errCount++
		}
		fmt.Printf("%s:%d: %s: %s\n", path, d.Line, kind, d.Message)
	}

	if len(diags) == 0 {
		fmt.Printf("%s: ok (%d blocks)\n", path, len(mod.Blocks))
	}
	if errCount > 0 {
		return fmt.Errorf("%s: %d parse error(s)", path, errCount)
	}
	return nil
}
