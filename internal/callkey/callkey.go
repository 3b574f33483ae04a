// Package callkey builds the canonical cache key for a query: the
// composite identity the scheduler uses to look up and store host-answered
// values, keyed by method name and stringified arguments (GLOSSARY, §4.4).
package callkey

import (
	"strings"

	"github.com/skald-lang/skald/internal/value"
)

const separator = "|"

// Build renders the canonical call key "method|arg1|arg2|..." for a method
// call, stringifying each argument as it stands with the value model's
// canonical form (value.Value.CallKeyArg). Variable and method-call
// arguments are not resolved first, so only for literal arguments does the
// key equal the one the engine builds after resolving them.
func Build(call value.MethodCall) string {
	return BuildFromParts(call.Name, argStrings(call.Args))
}

// BuildFromParts joins a method name and already-stringified argument parts
// into a canonical call key. Exposed separately so callers that only have
// stringified arguments on hand (e.g. replaying a trace) need not
// reconstruct Values.
func BuildFromParts(method string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, method)
	parts = append(parts, args...)
	return strings.Join(parts, separator)
}

func argStrings(args []value.Value) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = a.CallKeyArg()
	}
	return out
}

// Split reverses Build/BuildFromParts: it returns the method name and the
// argument parts from a canonical call key. Returns ok=false if key is
// empty (which cannot occur for a key built from a non-empty method name,
// but guards against malformed replay input).
func Split(key string) (method string, args []string, ok bool) {
	if key == "" {
		return "", nil, false
	}
	fields := strings.Split(key, separator)
	return fields[0], fields[1:], true
}

// Dedupe removes duplicate call keys while preserving first-seen order,
// used when the scheduler flattens a beat's queued method calls into a
// resolution list — the same call (e.g. the same method+args appearing on
// both sides of a condition) should only ever be queried once.
func Dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
