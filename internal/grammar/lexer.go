// Package grammar implements Skald's tolerant, line-oriented recursive-
// descent parser: it turns module source bytes into an ast.Module plus a
// list of diagnostics, replacing the original PEG grammar's callback-driven
// stack machine with direct AST construction (per spec's own note that this
// substitution is the idiomatic Go move).
package grammar

import "strings"

// splitLines breaks source into lines, accepting both LF and CRLF
// terminators and tolerating a missing trailing newline.
func splitLines(source string) []string {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	source = strings.ReplaceAll(source, "\r", "\n")
	if source == "" {
		return nil
	}
	lines := strings.Split(source, "\n")
	// A trailing newline produces one extra empty element; drop it so line
	// numbers line up with the conventional 1-indexed count of real lines.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// indentOf counts leading whitespace bytes (spaces and tabs count equally
// as one indent unit each). isOperationLine builds the grammar's "two-plus
// spaces or tab" rule for operation lines on top of this count.
func indentOf(line string) int {
	n := 0
	for n < len(line) && (line[n] == ' ' || line[n] == '\t') {
		n++
	}
	return n
}

func isBlank(b byte) bool {
	return b == ' ' || b == '\t'
}

// skipBlankBytes advances past a run of spaces/tabs starting at i, returning
// the new index.
func skipBlankBytes(s string, i int) int {
	for i < len(s) && isBlank(s[i]) {
		i++
	}
	return i
}

// identByte reports whether b may appear in an identifier: letters,
// digits, and underscore, matching the original grammar's identifier_other.
func identByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// scanIdentifier reads an identifier starting at i, returning it and the
// index immediately after it. Returns "" if i does not start an
// identifier.
func scanIdentifier(s string, i int) (string, int) {
	start := i
	for i < len(s) && identByte(s[i]) {
		i++
	}
	return s[start:i], i
}
