package engine

import (
	"strings"

	"github.com/skald-lang/skald/internal/ast"
	"github.com/skald-lang/skald/internal/callkey"
	"github.com/skald-lang/skald/internal/value"
)

// resolveToSimple implements resolve_rvalue_to_simple (spec §4.4): a
// literal resolves to itself, a variable resolves against engine state
// (false if unset), and a method call resolves against the query cache
// (false if its answer hasn't arrived). Nested method-call arguments are
// resolved recursively rather than dispatched as new queries here; by the
// time this runs, the scheduler has already drained every query this call
// tree depends on.
func (e *Engine) resolveToSimple(v value.Value) value.Value {
	switch v.Kind() {
	case value.KindVariable:
		if sv, ok := e.state[v.VariableName()]; ok {
			return sv
		}
		return value.Bool(false)
	case value.KindMethodCall:
		if sv, ok := e.cache[e.callKey(v.MethodCallValue())]; ok {
			return sv
		}
		return value.Bool(false)
	default:
		return v
	}
}

// callKey derives the cache key for a method call by resolving each
// argument to a SimpleValue first, so "get_price(:discount_tier())" and a
// literal-equivalent call collapse to the same cache entry.
func (e *Engine) callKey(call value.MethodCall) string {
	args := make([]string, len(call.Args))
	for i, a := range call.Args {
		args[i] = e.resolveToSimple(a).CallKeyArg()
	}
	return callkey.BuildFromParts(call.Name, args)
}

func (e *Engine) resolveAtom(atom ast.Atom) bool {
	switch atom.Op {
	case value.OpTruthy:
		return e.resolveToSimple(atom.Left).IsTruthy()
	case value.OpNotTruthy:
		return !e.resolveToSimple(atom.Left).IsTruthy()
	default:
		left := e.resolveToSimple(atom.Left)
		right := e.resolveToSimple(atom.Right)
		return value.Compare(atom.Op, left, right)
	}
}

func (e *Engine) resolveConditionalItem(item ast.ConditionalItem) bool {
	switch it := item.(type) {
	case ast.Atom:
		return e.resolveAtom(it)
	case ast.Clause:
		return e.resolveClause(it)
	default:
		return false
	}
}

// resolveClause implements resolve_conditional's connector semantics: an
// empty AND clause is vacuously true, an empty OR clause is vacuously
// false, and both short-circuit on the first deciding item.
func (e *Engine) resolveClause(c ast.Clause) bool {
	if c.Mode == ast.ModeOr {
		for _, item := range c.Items {
			if e.resolveConditionalItem(item) {
				return true
			}
		}
		return false
	}
	for _, item := range c.Items {
		if !e.resolveConditionalItem(item) {
			return false
		}
	}
	return true
}

// resolveConditional evaluates a Beat or Choice's guard; a nil Conditional
// is unconditionally true.
func (e *Engine) resolveConditional(c *ast.Conditional) bool {
	if c == nil {
		return true
	}
	return e.resolveClause(c.Root)
}

func (e *Engine) resolveSimpleInsertion(v value.Value) string {
	return e.resolveToSimple(v).String()
}

// resolveTernary implements resolve_ternary_insertion for both the
// check-truthy two-option form and the switch form with its `_` default.
func (e *Engine) resolveTernary(t ast.TernaryInsertion) string {
	if t.CheckTruthy {
		if e.resolveToSimple(t.Check).IsTruthy() {
			return e.resolveTextString(t.Options[0].Result)
		}
		return e.resolveTextString(t.Options[1].Result)
	}

	check := e.resolveToSimple(t.Check)
	var fallback *ast.TernaryOption
	for i := range t.Options {
		opt := &t.Options[i]
		if opt.IsDefault {
			fallback = opt
			continue
		}
		if value.Equal(check, e.resolveToSimple(opt.Match)) {
			return e.resolveTextString(opt.Result)
		}
	}
	if fallback != nil {
		return e.resolveTextString(fallback.Result)
	}
	return ""
}

// resolveTextChunks implements resolve_text: each TextPart maps to one
// chunk; concatenating them is the host's concern.
func (e *Engine) resolveTextChunks(tc ast.TextContent) []string {
	chunks := make([]string, 0, len(tc.Parts))
	for _, part := range tc.Parts {
		switch p := part.(type) {
		case ast.Literal:
			chunks = append(chunks, p.Text)
		case ast.SimpleInsertion:
			chunks = append(chunks, e.resolveSimpleInsertion(p.Value))
		case ast.TernaryInsertion:
			chunks = append(chunks, e.resolveTernary(p))
		}
	}
	return chunks
}

// resolveTextString joins a TextContent's chunks; used internally where a
// single string is needed (a ternary's chosen branch), not as a public
// concatenation policy.
func (e *Engine) resolveTextString(tc ast.TextContent) string {
	var sb strings.Builder
	for _, c := range e.resolveTextChunks(tc) {
		sb.WriteString(c)
	}
	return sb.String()
}
