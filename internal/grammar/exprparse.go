package grammar

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/skald-lang/skald/internal/ast"
	"github.com/skald-lang/skald/internal/value"
)

// exprParser is a small recursive-descent parser over a single line's worth
// of text, used for rvalues, conditional clauses, and argument lists — the
// sub-grammars the line-level driver delegates to once it has isolated the
// relevant span of a line.
type exprParser struct {
	s    string
	pos  int
	line int
}

func newExprParser(s string, pos, line int) *exprParser {
	return &exprParser{s: s, pos: pos, line: line}
}

func (p *exprParser) atEnd() bool { return p.pos >= len(p.s) }

func (p *exprParser) peek() byte {
	if p.atEnd() {
		return 0
	}
	return p.s[p.pos]
}

func (p *exprParser) skipBlank() {
	p.pos = skipBlankBytes(p.s, p.pos)
}

func (p *exprParser) hasPrefix(tok string) bool {
	return strings.HasPrefix(p.s[p.pos:], tok)
}

// consume advances past exactly one byte b if it is next, reporting success.
func (p *exprParser) consume(b byte) bool {
	if p.peek() != b {
		return false
	}
	p.pos++
	return true
}

func (p *exprParser) errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("line %d: %s", p.line, msg)
}

// parseRValue parses a single bool/string/number/variable/method-call term.
func (p *exprParser) parseRValue() (value.Value, error) {
	p.skipBlank()
	if p.atEnd() {
		return value.Value{}, p.errorf("expected a value, found end of line")
	}

	switch {
	case p.peek() == '"':
		return p.parseQuotedString()
	case p.hasPrefix("true") && !identByte(byteAt(p.s, p.pos+4)):
		p.pos += 4
		return value.Bool(true), nil
	case p.hasPrefix("false") && !identByte(byteAt(p.s, p.pos+5)):
		p.pos += 5
		return value.Bool(false), nil
	case p.peek() == ':':
		return p.parseMethodCall()
	case p.peek() == '+' || p.peek() == '-' || isDigit(p.peek()):
		return p.parseNumber()
	case identByte(p.peek()):
		name, next := scanIdentifier(p.s, p.pos)
		p.pos = next
		return value.Variable(name), nil
	default:
		return value.Value{}, p.errorf("unexpected character %q in value position", p.peek())
	}
}

func byteAt(s string, i int) byte {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func (p *exprParser) parseQuotedString() (value.Value, error) {
	if !p.consume('"') {
		return value.Value{}, p.errorf("expected opening quote")
	}
	var sb strings.Builder
	for {
		if p.atEnd() {
			return value.Value{}, p.errorf("unterminated string literal")
		}
		c := p.s[p.pos]
		if c == '"' {
			p.pos++
			break
		}
		if c == '\\' && p.pos+1 < len(p.s) {
			switch p.s[p.pos+1] {
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(p.s[p.pos+1])
			}
			p.pos += 2
			continue
		}
		sb.WriteByte(c)
		p.pos++
	}
	return value.String(sb.String()), nil
}

func (p *exprParser) parseNumber() (value.Value, error) {
	start := p.pos
	if p.peek() == '+' || p.peek() == '-' {
		p.pos++
	}
	digitsStart := p.pos
	for !p.atEnd() && isDigit(p.peek()) {
		p.pos++
	}
	if p.pos == digitsStart {
		return value.Value{}, p.errorf("expected digits in number literal")
	}
	isFloat := false
	if p.peek() == '.' {
		isFloat = true
		p.pos++
		fracStart := p.pos
		for !p.atEnd() && isDigit(p.peek()) {
			p.pos++
		}
		if p.pos == fracStart {
			return value.Value{}, p.errorf("expected digits after decimal point")
		}
	}
	text := p.s[start:p.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return value.Value{}, p.errorf("malformed float literal %q", text)
		}
		return value.Float(float32(f)), nil
	}
	i, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return value.Value{}, p.errorf("malformed int literal %q", text)
	}
	return value.Int(int32(i)), nil
}

func (p *exprParser) parseMethodCall() (value.Value, error) {
	if !p.consume(':') {
		return value.Value{}, p.errorf("expected ':' to start a method call")
	}
	name, next := scanIdentifier(p.s, p.pos)
	if name == "" {
		return value.Value{}, p.errorf("expected method name after ':'")
	}
	p.pos = next
	p.skipBlank()
	if !p.consume('(') {
		return value.Value{}, p.errorf("expected '(' after method name %q", name)
	}
	args, err := p.parseArgList()
	if err != nil {
		return value.Value{}, err
	}
	p.skipBlank()
	if !p.consume(')') {
		return value.Value{}, p.errorf("expected ')' to close call to %q", name)
	}
	return value.Call(name, args), nil
}

// parseArgList parses a comma-separated rvalue list, stopping at ')'. An
// empty list (immediately followed by ')') is valid.
func (p *exprParser) parseArgList() ([]value.Value, error) {
	p.skipBlank()
	if p.peek() == ')' {
		return nil, nil
	}
	var args []value.Value
	for {
		v, err := p.parseRValue()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		p.skipBlank()
		if p.consume(',') {
			p.skipBlank()
			continue
		}
		break
	}
	return args, nil
}

var comparators = []struct {
	tok string
	op  value.Comparator
}{
	{">=", value.OpGreaterEqual},
	{"<=", value.OpLessEqual},
	{"!=", value.OpNotEqual},
	{"=", value.OpEqual},
	{">", value.OpGreater},
	{"<", value.OpLess},
}

// tryParseComparator consumes one of the binary comparator tokens if the
// cursor is positioned at one, longest-match first so ">=" isn't mistaken
// for ">".
func (p *exprParser) tryParseComparator() (value.Comparator, bool) {
	for _, c := range comparators {
		if p.hasPrefix(c.tok) {
			p.pos += len(c.tok)
			return c.op, true
		}
	}
	return 0, false
}

// tryParseConnector consumes a whole-word "and" or "or" keyword.
func (p *exprParser) tryParseConnector() (string, bool) {
	for _, word := range []string{"and", "or"} {
		if p.hasPrefix(word) && !identByte(byteAt(p.s, p.pos+len(word))) {
			p.pos += len(word)
			return word, true
		}
	}
	return "", false
}

// parseAtom parses a single conditional item: a parenthesized subclause, or
// `[!] RVAL [ OP RVAL ]`.
func (p *exprParser) parseAtom() (ast.ConditionalItem, error) {
	p.skipBlank()
	if p.consume('(') {
		clause, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		p.skipBlank()
		if !p.consume(')') {
			return nil, p.errorf("expected ')' to close subclause")
		}
		return clause, nil
	}

	negate := false
	if p.peek() == '!' {
		negate = true
		p.pos++
		p.skipBlank()
	}

	left, err := p.parseRValue()
	if err != nil {
		return nil, err
	}
	p.skipBlank()

	if negate {
		return ast.Atom{Left: left, Op: value.OpNotTruthy}, nil
	}

	op, ok := p.tryParseComparator()
	if !ok {
		return ast.Atom{Left: left, Op: value.OpTruthy}, nil
	}
	p.skipBlank()
	right, err := p.parseRValue()
	if err != nil {
		return nil, err
	}
	return ast.Atom{Left: left, Op: op, Right: right}, nil
}

// parseClause parses `ATOM ( (and|or) ATOM )*`. The connector observed
// first fixes the clause's mode; a differing connector at the same level
// is an error, since mixed and/or must be split into parenthesized
// subclauses.
func (p *exprParser) parseClause() (ast.Clause, error) {
	clause := ast.Clause{Mode: ast.ModeAnd}
	modeSet := false

	for {
		item, err := p.parseAtom()
		if err != nil {
			return clause, err
		}
		clause.Items = append(clause.Items, item)
		p.skipBlank()

		word, ok := p.tryParseConnector()
		if !ok {
			break
		}
		if !modeSet {
			if word == "or" {
				clause.Mode = ast.ModeOr
			}
			modeSet = true
		} else if (word == "or") != (clause.Mode == ast.ModeOr) {
			return clause, p.errorf("mixed 'and'/'or' at one level; parenthesize the subclause")
		}
		p.skipBlank()
	}
	return clause, nil
}
