package engine

import (
	"github.com/skald-lang/skald/internal/ast"
	"github.com/skald-lang/skald/internal/value"
)

// collectFromValue walks v looking for method calls that need a host
// answer before v can be resolved. Nested method-call arguments are
// collected before the call that contains them (post-order), so the
// scheduler always asks about a dependency before the call that needs it.
// Non-method-call values (literals, variables) contribute nothing: those
// resolve straight from state with no suspension.
func collectFromValue(v value.Value, line int, expectsResponse bool) []pendingQuery {
	if v.Kind() != value.KindMethodCall {
		return nil
	}
	call := v.MethodCallValue()
	var out []pendingQuery
	for _, arg := range call.Args {
		out = append(out, collectFromValue(arg, line, true)...)
	}
	return append(out, pendingQuery{Call: call, ExpectsResponse: expectsResponse, Line: line})
}

// collectFromConditionalItem walks a Conditional's clause tree left to
// right, pre-order through nested clauses, matching Phase Conditional's
// enqueue order (spec §4.5).
func collectFromConditionalItem(item ast.ConditionalItem, line int) []pendingQuery {
	switch it := item.(type) {
	case ast.Atom:
		out := collectFromValue(it.Left, line, true)
		if it.Op.IsComparator() {
			out = append(out, collectFromValue(it.Right, line, true)...)
		}
		return out
	case ast.Clause:
		var out []pendingQuery
		for _, sub := range it.Items {
			out = append(out, collectFromConditionalItem(sub, line)...)
		}
		return out
	default:
		return nil
	}
}

func collectFromConditional(c *ast.Conditional, line int) []pendingQuery {
	if c == nil {
		return nil
	}
	return collectFromConditionalItem(c.Root, line)
}

// collectFromTextContent walks a beat or choice's rendered text looking
// for method calls its insertions depend on. Spec §4.5 enumerates
// operations and choice conditions explicitly as Phase Resolution sources;
// text insertions are resolved the same way the evaluator resolves
// everything else (resolve_rvalue_to_simple, cache-only, §4.4), so their
// method calls must be lifted to queries here too or a non-default
// insertion would silently and permanently resolve to false.
func collectFromTextContent(tc ast.TextContent, line int) []pendingQuery {
	var out []pendingQuery
	for _, part := range tc.Parts {
		switch p := part.(type) {
		case ast.SimpleInsertion:
			out = append(out, collectFromValue(p.Value, line, true)...)
		case ast.TernaryInsertion:
			out = append(out, collectFromValue(p.Check, line, true)...)
			for _, opt := range p.Options {
				if !opt.IsDefault {
					out = append(out, collectFromValue(opt.Match, line, true)...)
				}
				out = append(out, collectFromTextContent(opt.Result, line)...)
			}
		}
	}
	return out
}

// collectFromOperation collects the queries one operation needs before it
// can be applied. A bare MethodCall operation's own return value is
// discarded by applyOperations, so it is the one case with
// expectsResponse=false; its arguments (if they are themselves method
// calls) still need real answers.
func collectFromOperation(op ast.Operation) []pendingQuery {
	switch op.Kind {
	case ast.OpMethodCall:
		return collectFromValue(value.Call(op.Call.Name, op.Call.Args), op.Line, false)
	case ast.OpMutation:
		if op.HasRValue {
			return collectFromValue(op.MutationRValue, op.Line, true)
		}
	case ast.OpExit:
		if op.HasExitArgument {
			return collectFromValue(op.ExitArgument, op.Line, true)
		}
	}
	return nil
}
