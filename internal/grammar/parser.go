package grammar

import (
	"fmt"
	"strings"

	"github.com/skald-lang/skald/internal/ast"
	"github.com/skald-lang/skald/internal/value"
)

// Parse turns module source bytes into an ast.Module plus a diagnostics
// list. Parsing never fails outright: a line that matches no rule becomes
// a skipped_line warning and the driver resumes at the next line, per the
// grammar's tolerant-recovery contract.
func Parse(source []byte, filename string) (*ast.Module, []ast.Diagnostic) {
	lines := splitLines(string(source))
	mod := &ast.Module{Filename: filename, BlockIndex: map[string]int{}}
	var diags []ast.Diagnostic

	inBlocks := false
	var testbed *ast.Testbed

	i := 0
	for i < len(lines) {
		raw := lines[i]
		lineNo := i + 1
		trimmed := strings.TrimSpace(raw)

		switch {
		case trimmed == "":
			i++

		case strings.HasPrefix(trimmed, "--"):
			i++

		case testbed != nil && trimmed == "@end":
			mod.Testbeds = append(mod.Testbeds, *testbed)
			testbed = nil
			i++

		case testbed != nil:
			entry, err := parseTestbedEntry(trimmed, lineNo)
			if err != nil {
				diags = append(diags, warnDiag(lineNo, err.Error()))
			} else {
				testbed.Entries = append(testbed.Entries, entry)
			}
			i++

		case strings.HasPrefix(trimmed, "@testbed"):
			name := strings.TrimSpace(strings.TrimPrefix(trimmed, "@testbed"))
			testbed = &ast.Testbed{Name: name, Line: lineNo}
			i++

		case strings.HasPrefix(trimmed, "#"):
			tag := strings.TrimSpace(trimmed[1:])
			if tag == "" {
				diags = append(diags, errDiag(lineNo, "block tag must not be empty"))
				i++
				continue
			}
			if _, exists := mod.BlockIndex[tag]; exists {
				diags = append(diags, warnDiag(lineNo, fmt.Sprintf("duplicate block tag %q; last definition wins", tag)))
			}
			mod.Blocks = append(mod.Blocks, ast.Block{Tag: tag})
			mod.BlockIndex[tag] = len(mod.Blocks) - 1
			inBlocks = true
			i++

		case !inBlocks && (strings.HasPrefix(trimmed, "~") || strings.HasPrefix(trimmed, "<")):
			decl, err := parseDeclaration(trimmed, lineNo)
			if err != nil {
				diags = append(diags, errDiag(lineNo, err.Error()))
			} else {
				mod.Declarations = append(mod.Declarations, decl)
			}
			i++

		case inBlocks && strings.HasPrefix(trimmed, ">"):
			choice, next := parseChoiceAndOps(lines, i, &diags)
			blk := &mod.Blocks[len(mod.Blocks)-1]
			if len(blk.Beats) == 0 {
				diags = append(diags, errDiag(lineNo, "choice line with no preceding beat in block"))
			} else {
				last := &blk.Beats[len(blk.Beats)-1]
				last.Choices = append(last.Choices, choice)
			}
			i = next

		case inBlocks && strings.HasPrefix(trimmed, "*"):
			beat, next := parseLogicBeat(lines, i, &diags)
			blk := &mod.Blocks[len(mod.Blocks)-1]
			blk.Beats = append(blk.Beats, beat)
			i = next

		case inBlocks && isOperationLine(raw):
			diags = append(diags, errDiag(lineNo, "operation line with no enclosing beat or choice"))
			i++

		case inBlocks:
			beat, next := parseBeat(lines, i, &diags)
			blk := &mod.Blocks[len(mod.Blocks)-1]
			blk.Beats = append(blk.Beats, beat)
			i = next

		default:
			diags = append(diags, warnDiag(lineNo, "skipped line: "+trimmed))
			i++
		}
	}

	if testbed != nil {
		diags = append(diags, errDiag(testbed.Line, "unterminated @testbed block"))
	}

	return mod, diags
}

func errDiag(line int, msg string) ast.Diagnostic {
	return ast.Diagnostic{Kind: ast.DiagError, Line: line, Message: msg}
}

func warnDiag(line int, msg string) ast.Diagnostic {
	return ast.Diagnostic{Kind: ast.DiagWarning, Line: line, Message: msg}
}

func hasWordPrefix(s, word string) bool {
	return strings.HasPrefix(s, word) && !identByte(byteAt(s, len(word)))
}

// isOperationLine reports whether raw is indented (two-plus spaces, or a
// leading tab) and begins with one of the five operation-line markers.
func isOperationLine(raw string) bool {
	if raw == "" || (raw[0] != '\t' && indentOf(raw) < 2) {
		return false
	}
	t := strings.TrimLeft(raw, " \t")
	return strings.HasPrefix(t, "->") ||
		strings.HasPrefix(t, ":") ||
		strings.HasPrefix(t, "~") ||
		hasWordPrefix(t, "GO") ||
		hasWordPrefix(t, "EXIT")
}

// parseConditionalPrefix recognizes a leading "(? CLAUSE)" span in line,
// returning the parsed Conditional and the remainder of line after the
// closing paren. Returns (nil, line, nil) if line has no conditional
// prefix.
func parseConditionalPrefix(line string, lineNo int) (*ast.Conditional, string, error) {
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, "(?") {
		return nil, line, nil
	}
	offset := len(line) - len(trimmed)
	p := newExprParser(line, offset+2, lineNo)
	p.skipBlank()
	clause, err := p.parseClause()
	if err != nil {
		return nil, line, err
	}
	p.skipBlank()
	if !p.consume(')') {
		return nil, line, p.errorf("expected ')' to close conditional")
	}
	return &ast.Conditional{Root: clause}, line[p.pos:], nil
}

// parseAttribution recognizes a leading "NAME:" span, returning the name
// and the remainder of s after the colon. Returns ("", s) if absent.
func parseAttribution(s string) (string, string) {
	trimmed := strings.TrimLeft(s, " \t")
	name, next := scanIdentifier(trimmed, 0)
	if name != "" && next < len(trimmed) && trimmed[next] == ':' {
		return name, trimmed[next+1:]
	}
	return "", s
}

func parseDeclaration(trimmed string, lineNo int) (ast.Declaration, error) {
	isImported := strings.HasPrefix(trimmed, "<")
	rest := strings.TrimLeft(trimmed[1:], " \t")
	name, next := scanIdentifier(rest, 0)
	if name == "" {
		return ast.Declaration{}, fmt.Errorf("line %d: expected a name after declaration marker", lineNo)
	}
	rest = strings.TrimLeft(rest[next:], " \t")
	if !strings.HasPrefix(rest, "=") {
		return ast.Declaration{}, fmt.Errorf("line %d: expected '=' in declaration of %q", lineNo, name)
	}
	rest = strings.TrimLeft(rest[1:], " \t")

	p := newExprParser(rest, 0, lineNo)
	v, err := p.parseRValue()
	if err != nil {
		return ast.Declaration{}, err
	}
	if !v.IsSimple() {
		return ast.Declaration{}, fmt.Errorf("line %d: declaration of %q must be a literal value", lineNo, name)
	}
	return ast.Declaration{Name: name, Initial: v, IsImported: isImported, Line: lineNo}, nil
}

func parseTestbedEntry(trimmed string, lineNo int) (ast.TestbedEntry, error) {
	name, next := scanIdentifier(trimmed, 0)
	if name == "" {
		return ast.TestbedEntry{}, fmt.Errorf("line %d: expected a variable name in testbed entry", lineNo)
	}
	rest := strings.TrimLeft(trimmed[next:], " \t")
	if !strings.HasPrefix(rest, "=") {
		return ast.TestbedEntry{}, fmt.Errorf("line %d: expected '=' in testbed entry for %q", lineNo, name)
	}
	rest = strings.TrimLeft(rest[1:], " \t")

	p := newExprParser(rest, 0, lineNo)
	v, err := p.parseRValue()
	if err != nil {
		return ast.TestbedEntry{}, err
	}
	if !v.IsSimple() {
		return ast.TestbedEntry{}, fmt.Errorf("line %d: testbed value for %q must be a literal value", lineNo, name)
	}
	return ast.TestbedEntry{Variable: name, TestValue: v}, nil
}

// parseBeat parses a non-logic beat line at lines[start], plus any
// immediately-following beat-owned operation lines and attached choices.
// It returns the assembled Beat and the index of the first unconsumed
// line.
func parseBeat(lines []string, start int, diags *[]ast.Diagnostic) (ast.Beat, int) {
	raw := lines[start]
	lineNo := start + 1

	cond, rest, err := parseConditionalPrefix(raw, lineNo)
	if err != nil {
		*diags = append(*diags, errDiag(lineNo, err.Error()))
		cond, rest = nil, raw
	}
	attribution, rest2 := parseAttribution(rest)
	content, _ := parseTextContent(strings.TrimLeft(rest2, " \t"), lineNo, false)

	beat := ast.Beat{Condition: cond, Attribution: attribution, Content: content, Line: lineNo}

	idx := consumeOperationLines(lines, start+1, &beat.Operations, diags)

	for idx < len(lines) {
		t := strings.TrimLeft(lines[idx], " \t")
		if !strings.HasPrefix(t, ">") {
			break
		}
		choice, next := parseChoiceAndOps(lines, idx, diags)
		beat.Choices = append(beat.Choices, choice)
		idx = next
	}

	return beat, idx
}

// parseLogicBeat parses a "*"-prefixed logic beat: an optional condition or
// "(else)" marker, then either a single inline operation or a run of
// indented operation lines.
func parseLogicBeat(lines []string, start int, diags *[]ast.Diagnostic) (ast.Beat, int) {
	raw := lines[start]
	lineNo := start + 1
	trimmed := strings.TrimLeft(raw, " \t")
	rest := strings.TrimLeft(trimmed[1:], " \t")

	var cond *ast.Conditional
	isElse := false
	switch {
	case strings.HasPrefix(rest, "(else)"):
		isElse = true
		rest = rest[len("(else)"):]
	case strings.HasPrefix(rest, "(?"):
		c, r, err := parseConditionalPrefix(rest, lineNo)
		if err != nil {
			*diags = append(*diags, errDiag(lineNo, err.Error()))
		} else {
			cond, rest = c, r
		}
	}
	rest = strings.TrimSpace(rest)

	beat := ast.Beat{Condition: cond, IsLogic: true, IsElse: isElse, Line: lineNo}

	if rest != "" {
		op, err := parseOperationLine(rest, lineNo)
		if err != nil {
			*diags = append(*diags, errDiag(lineNo, err.Error()))
		} else {
			beat.Operations = append(beat.Operations, op)
		}
		return beat, start + 1
	}

	idx := consumeOperationLines(lines, start+1, &beat.Operations, diags)
	return beat, idx
}

// consumeOperationLines gathers a run of operation lines sharing a single
// indent level starting at idx, appending parsed Operations to ops, and
// returns the index of the first line that doesn't belong to the run.
func consumeOperationLines(lines []string, idx int, ops *[]ast.Operation, diags *[]ast.Diagnostic) int {
	baseIndent := -1
	for idx < len(lines) {
		l := lines[idx]
		if strings.TrimSpace(l) == "" || !isOperationLine(l) {
			break
		}
		ind := indentOf(l)
		if baseIndent == -1 {
			baseIndent = ind
		} else if ind != baseIndent {
			break
		}
		op, err := parseOperationLine(strings.TrimSpace(l), idx+1)
		if err != nil {
			*diags = append(*diags, errDiag(idx+1, err.Error()))
		} else {
			*ops = append(*ops, op)
		}
		idx++
	}
	return idx
}

// parseChoiceAndOps parses a ">"-prefixed choice line at lines[idx] plus
// any more-deeply-indented operation lines that follow it.
func parseChoiceAndOps(lines []string, idx int, diags *[]ast.Diagnostic) (ast.Choice, int) {
	raw := lines[idx]
	lineNo := idx + 1
	choiceIndent := indentOf(raw)
	trimmed := strings.TrimLeft(raw, " \t")
	rest := strings.TrimLeft(trimmed[1:], " \t")

	cond, rest2, err := parseConditionalPrefix(rest, lineNo)
	if err != nil {
		*diags = append(*diags, errDiag(lineNo, err.Error()))
		cond, rest2 = nil, rest
	}

	content, moveRest := parseTextContent(rest2, lineNo, true)
	choice := ast.Choice{Condition: cond, Content: content, Line: lineNo}

	if moveRest = strings.TrimSpace(moveRest); moveRest != "" {
		op, err := parseOperationLine(moveRest, lineNo)
		if err != nil {
			*diags = append(*diags, errDiag(lineNo, err.Error()))
		} else {
			choice.Operations = append(choice.Operations, op)
		}
	}

	next := idx + 1
	for next < len(lines) {
		l := lines[next]
		if strings.TrimSpace(l) == "" || indentOf(l) <= choiceIndent || !isOperationLine(l) {
			break
		}
		op, err := parseOperationLine(strings.TrimSpace(l), next+1)
		if err != nil {
			*diags = append(*diags, errDiag(next+1, err.Error()))
		} else {
			choice.Operations = append(choice.Operations, op)
		}
		next++
	}

	return choice, next
}

func parseOperationLine(trimmed string, lineNo int) (ast.Operation, error) {
	switch {
	case strings.HasPrefix(trimmed, "->"):
		rest := strings.TrimLeft(trimmed[2:], " \t")
		tag, _ := scanIdentifier(rest, 0)
		if tag == "" {
			return ast.Operation{}, fmt.Errorf("line %d: expected a tag after '->'", lineNo)
		}
		return ast.Operation{Kind: ast.OpMove, Line: lineNo, TargetTag: tag}, nil

	case strings.HasPrefix(trimmed, ":"):
		p := newExprParser(trimmed, 0, lineNo)
		v, err := p.parseMethodCall()
		if err != nil {
			return ast.Operation{}, err
		}
		return ast.Operation{Kind: ast.OpMethodCall, Line: lineNo, Call: v.MethodCallValue()}, nil

	case strings.HasPrefix(trimmed, "~"):
		return parseMutationOperation(trimmed, lineNo)

	case hasWordPrefix(trimmed, "GO"):
		return parseGoModuleOperation(trimmed, lineNo)

	case hasWordPrefix(trimmed, "EXIT"):
		return parseExitOperation(trimmed, lineNo)

	default:
		return ast.Operation{}, fmt.Errorf("line %d: unrecognized operation %q", lineNo, trimmed)
	}
}

// parseMutationOperation handles "~ NAME = RVAL", "~ NAME =!",
// "~ NAME += RVAL", and "~ NAME -= RVAL". The lvalue identifier is
// captured up front, before any rvalue parsing, so the mutation target
// can never be confused with text appearing in its own rvalue.
func parseMutationOperation(trimmed string, lineNo int) (ast.Operation, error) {
	rest := strings.TrimLeft(trimmed[1:], " \t")
	name, next := scanIdentifier(rest, 0)
	if name == "" {
		return ast.Operation{}, fmt.Errorf("line %d: expected a variable name after '~'", lineNo)
	}
	rest = strings.TrimLeft(rest[next:], " \t")

	switch {
	case strings.HasPrefix(rest, "=!"):
		return ast.Operation{Kind: ast.OpMutation, Line: lineNo, MutationLValue: name, MutationType: ast.MutateSwitch}, nil
	case strings.HasPrefix(rest, "+="):
		rv, err := parseRValueTail(rest[2:], lineNo)
		if err != nil {
			return ast.Operation{}, err
		}
		return ast.Operation{Kind: ast.OpMutation, Line: lineNo, MutationLValue: name, MutationType: ast.MutateAdd, MutationRValue: rv, HasRValue: true}, nil
	case strings.HasPrefix(rest, "-="):
		rv, err := parseRValueTail(rest[2:], lineNo)
		if err != nil {
			return ast.Operation{}, err
		}
		return ast.Operation{Kind: ast.OpMutation, Line: lineNo, MutationLValue: name, MutationType: ast.MutateSubtract, MutationRValue: rv, HasRValue: true}, nil
	case strings.HasPrefix(rest, "="):
		rv, err := parseRValueTail(rest[1:], lineNo)
		if err != nil {
			return ast.Operation{}, err
		}
		return ast.Operation{Kind: ast.OpMutation, Line: lineNo, MutationLValue: name, MutationType: ast.MutateEquate, MutationRValue: rv, HasRValue: true}, nil
	default:
		return ast.Operation{}, fmt.Errorf("line %d: expected a mutation operator after %q", lineNo, name)
	}
}

func parseRValueTail(s string, lineNo int) (value.Value, error) {
	p := newExprParser(s, 0, lineNo)
	p.skipBlank()
	return p.parseRValue()
}

func parseGoModuleOperation(trimmed string, lineNo int) (ast.Operation, error) {
	rest := strings.TrimLeft(trimmed[len("GO"):], " \t")
	// The module path is a bare unstructured span, so unlike the other
	// operation parsers (which stop naturally at the first character their
	// value grammar can't consume) it needs its own trailing "-- comment"
	// stripped before the path/move split, whether or not a "-> TAG" is
	// also present.
	if idx := strings.Index(rest, "--"); idx != -1 {
		rest = strings.TrimRight(rest[:idx], " \t")
	}
	pathPart, movePart := rest, ""
	if idx := strings.Index(rest, "->"); idx != -1 {
		pathPart = strings.TrimSpace(rest[:idx])
		movePart = strings.TrimLeft(rest[idx+2:], " \t")
	} else {
		pathPart = strings.TrimSpace(pathPart)
	}
	if pathPart == "" {
		return ast.Operation{}, fmt.Errorf("line %d: expected a module path after 'GO'", lineNo)
	}
	tag, _ := scanIdentifier(movePart, 0)
	return ast.Operation{Kind: ast.OpGoModule, Line: lineNo, ModulePath: pathPart, StartTag: tag}, nil
}

func parseExitOperation(trimmed string, lineNo int) (ast.Operation, error) {
	rest := strings.TrimSpace(trimmed[len("EXIT"):])
	op := ast.Operation{Kind: ast.OpExit, Line: lineNo}
	if rest == "" {
		return op, nil
	}
	p := newExprParser(rest, 0, lineNo)
	v, err := p.parseRValue()
	if err != nil {
		return ast.Operation{}, err
	}
	op.ExitArgument = v
	op.HasExitArgument = true
	return op, nil
}
