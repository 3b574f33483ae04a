package grammar

import (
	"strings"
	"unicode/utf8"

	"github.com/skald-lang/skald/internal/ast"
	"github.com/skald-lang/skald/internal/value"
)

// parseTextContent scans s for text parts up to (but not including) a
// trailing `-- comment`, an inline `-> TAG` move marker, or end of string,
// whichever comes first. It returns the assembled TextContent and the
// unconsumed remainder of s (empty unless a move marker was found).
//
// Adjacent literal runs are coalesced into a single Literal, matching the
// parse-time text queue's literal-coalescing rule.
func parseTextContent(s string, lineNo int, stopAtMove bool) (ast.TextContent, string) {
	var parts []ast.TextPart
	var lit strings.Builder
	i := 0

	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, ast.Literal{Text: lit.String()})
			lit.Reset()
		}
	}

	for i < len(s) {
		switch {
		case strings.HasPrefix(s[i:], "{--"):
			end := strings.Index(s[i+3:], "--}")
			if end == -1 {
				i = len(s)
			} else {
				i = i + 3 + end + 3
			}
			// An inline comment usually sits between two real spaces
			// ("a {-- note --} b"); removing it would otherwise leave the
			// space before and the space after both in place. Drop the
			// second one so the join collapses to a single space.
			if strings.HasSuffix(lit.String(), " ") && i < len(s) && s[i] == ' ' {
				i++
			}
			continue
		case strings.HasPrefix(s[i:], "{"):
			closeIdx := findInsertionClose(s, i)
			if closeIdx == -1 {
				// Unterminated insertion: treat the rest of the line as
				// literal text rather than dropping it silently.
				lit.WriteString(s[i:])
				i = len(s)
				continue
			}
			flush()
			if part, ok := parseInsertion(s[i+1:closeIdx], lineNo); ok {
				parts = append(parts, part)
			}
			i = closeIdx + 1
			continue
		case strings.HasPrefix(s[i:], "--"):
			flush()
			return ast.TextContent{Parts: parts}, ""
		case stopAtMove && strings.HasPrefix(s[i:], "->"):
			flush()
			return ast.TextContent{Parts: parts}, s[i:]
		default:
			r, size := utf8.DecodeRuneInString(s[i:])
			lit.WriteRune(r)
			i += size
		}
	}
	flush()
	return ast.TextContent{Parts: parts}, ""
}

// findInsertionClose finds the '}' matching the '{' at openIdx, skipping
// over quoted-string contents so a literal '}' inside a method-call string
// argument doesn't terminate the insertion early.
func findInsertionClose(s string, openIdx int) int {
	i := openIdx + 1
	inString := false
	for i < len(s) {
		c := s[i]
		switch {
		case inString && c == '\\':
			i += 2
			continue
		case c == '"':
			inString = !inString
		case !inString && c == '}':
			return i
		}
		i++
	}
	return -1
}

// parseInsertion parses the contents of a `{...}` span: a bare rvalue, a
// truthy ternary `check ? a : b`, or a switch ternary `check ? [m: v, ...]`.
func parseInsertion(inner string, lineNo int) (ast.TextPart, bool) {
	p := newExprParser(inner, 0, lineNo)
	check, err := p.parseRValue()
	if err != nil {
		return nil, false
	}
	p.skipBlank()
	if !p.consume('?') {
		p.skipBlank()
		return ast.SimpleInsertion{Value: check}, true
	}
	p.skipBlank()
	if p.consume('[') {
		return parseSwitchTernary(p, check)
	}
	return parseSimpleTernary(p, check)
}

func wrapAsResult(v value.Value) ast.TextContent {
	return ast.TextContent{Parts: []ast.TextPart{ast.SimpleInsertion{Value: v}}}
}

func parseSimpleTernary(p *exprParser, check value.Value) (ast.TextPart, bool) {
	truthy, err := p.parseRValue()
	if err != nil {
		return nil, false
	}
	p.skipBlank()
	if !p.consume(':') {
		return nil, false
	}
	p.skipBlank()
	falsy, err := p.parseRValue()
	if err != nil {
		return nil, false
	}
	return ast.TernaryInsertion{
		Check:       check,
		CheckTruthy: true,
		Options: []ast.TernaryOption{
			{Result: wrapAsResult(truthy)},
			{Result: wrapAsResult(falsy)},
		},
	}, true
}

func parseSwitchTernary(p *exprParser, check value.Value) (ast.TextPart, bool) {
	var options []ast.TernaryOption
	for {
		p.skipBlank()
		if p.peek() == ']' {
			p.pos++
			break
		}
		var opt ast.TernaryOption
		if p.peek() == '_' && !identByte(byteAt(p.s, p.pos+1)) {
			p.pos++
			opt.IsDefault = true
		} else {
			m, err := p.parseRValue()
			if err != nil {
				return nil, false
			}
			opt.Match = m
		}
		p.skipBlank()
		if !p.consume(':') {
			return nil, false
		}
		p.skipBlank()
		v, err := p.parseRValue()
		if err != nil {
			return nil, false
		}
		opt.Result = wrapAsResult(v)
		options = append(options, opt)

		p.skipBlank()
		if p.consume(',') {
			continue
		}
		if p.consume(']') {
			break
		}
		return nil, false
	}
	return ast.TernaryInsertion{
		Check:       check,
		CheckTruthy: false,
		Options:     options,
	}, true
}
