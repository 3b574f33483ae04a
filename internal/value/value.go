// Package value implements Skald's tagged value universe: RValue and its
// SimpleValue subset, used uniformly across the AST, engine state, and the
// host-facing query protocol.
package value

import (
	"fmt"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	// KindInvalid marks a zero-value Value; it should never escape a
	// correctly-constructed AST.
	KindInvalid Kind = iota
	KindString
	KindBool
	KindInt
	KindFloat
	KindVariable
	KindMethodCall
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindVariable:
		return "variable"
	case KindMethodCall:
		return "method_call"
	default:
		return "invalid"
	}
}

// MethodCall is the payload of a KindMethodCall value: a method name and its
// (possibly nested) argument values.
type MethodCall struct {
	Name string
	Args []Value
}

// Value is Skald's RValue: a tagged union of {string, bool, int, float,
// variable reference, method call}. The zero Value is KindInvalid.
//
// The method-call payload is held behind a pointer rather than embedded
// directly: MethodCall.Args is a slice, and a slice field would make Value
// itself non-comparable, breaking the plain == comparisons the evaluator,
// the grammar, and most tests use for SimpleValues.
type Value struct {
	kind   Kind
	str    string
	bl     bool
	i      int32
	f      float32
	method *MethodCall
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// String constructs a string-kind Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool constructs a bool-kind Value.
func Bool(b bool) Value { return Value{kind: KindBool, bl: b} }

// Int constructs an int-kind Value. Ints are signed 32-bit minimum per spec.
func Int(i int32) Value { return Value{kind: KindInt, i: i} }

// Float constructs a float-kind Value. Floats are 32-bit per spec.
func Float(f float32) Value { return Value{kind: KindFloat, f: f} }

// Variable constructs a variable-reference Value naming a state slot.
func Variable(name string) Value { return Value{kind: KindVariable, str: name} }

// Call constructs a method-call Value.
func Call(name string, args []Value) Value {
	return Value{kind: KindMethodCall, method: &MethodCall{Name: name, Args: args}}
}

// StrValue returns the underlying string for KindString; panics otherwise.
func (v Value) StrValue() string {
	if v.kind != KindString {
		panic("value: StrValue on non-string Value")
	}
	return v.str
}

// BoolValue returns the underlying bool for KindBool; panics otherwise.
func (v Value) BoolValue() bool {
	if v.kind != KindBool {
		panic("value: BoolValue on non-bool Value")
	}
	return v.bl
}

// IntValue returns the underlying int for KindInt; panics otherwise.
func (v Value) IntValue() int32 {
	if v.kind != KindInt {
		panic("value: IntValue on non-int Value")
	}
	return v.i
}

// FloatValue returns the underlying float for KindFloat; panics otherwise.
func (v Value) FloatValue() float32 {
	if v.kind != KindFloat {
		panic("value: FloatValue on non-float Value")
	}
	return v.f
}

// VariableName returns the underlying name for KindVariable; panics
// otherwise.
func (v Value) VariableName() string {
	if v.kind != KindVariable {
		panic("value: VariableName on non-variable Value")
	}
	return v.str
}

// MethodCallValue returns the underlying call for KindMethodCall; panics
// otherwise.
func (v Value) MethodCallValue() MethodCall {
	if v.kind != KindMethodCall {
		panic("value: MethodCallValue on non-method-call Value")
	}
	return *v.method
}

// IsSimple reports whether v belongs to the SimpleValue subset: string,
// bool, int, or float.
func (v Value) IsSimple() bool {
	switch v.kind {
	case KindString, KindBool, KindInt, KindFloat:
		return true
	default:
		return false
	}
}

// CastToSimple succeeds iff v is not a variable reference or method call.
func CastToSimple(v Value) (Value, bool) {
	if !v.IsSimple() {
		return Value{}, false
	}
	return v, true
}

// IsTruthy implements is_truthy for a SimpleValue: bool -> itself, int/float
// -> non-zero, string -> non-empty. Calling this on a non-simple Value
// panics; callers resolve to simple first.
func (v Value) IsTruthy() bool {
	switch v.kind {
	case KindBool:
		return v.bl
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.str != ""
	default:
		panic("value: IsTruthy on non-simple Value")
	}
}

// String stringifies v per §4.1: bool -> "true"/"false"; int/float -> full
// decimal precision; string -> verbatim; variable/method-call -> a debug
// form used only for authoring output, never for state or cache keys.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindBool:
		if v.bl {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(int64(v.i), 10)
	case KindFloat:
		return strconv.FormatFloat(float64(v.f), 'g', -1, 32)
	case KindVariable:
		return "$" + v.str
	case KindMethodCall:
		return v.method.debugString()
	default:
		return "<invalid>"
	}
}

// DebugString stringifies v the way authoring tools display it: floats use
// fixed two-fraction-digit precision, everything else matches String.
func (v Value) DebugString() string {
	if v.kind == KindFloat {
		return strconv.FormatFloat(float64(v.f), 'f', 2, 32)
	}
	return v.String()
}

func (m MethodCall) debugString() string {
	s := ":" + m.Name + "("
	for i, a := range m.Args {
		if i > 0 {
			s += ", "
		}
		s += a.DebugString()
	}
	return s + ")"
}

// CallKeyArg renders v the way the evaluator stringifies call arguments when
// building a query cache key: canonical, not the debug form.
func (v Value) CallKeyArg() string {
	return v.String()
}

// Comparator enumerates the conditional-atom operators from spec §3.
type Comparator int

const (
	OpTruthy Comparator = iota
	OpNotTruthy
	OpEqual
	OpNotEqual
	OpGreater
	OpLess
	OpGreaterEqual
	OpLessEqual
)

// IsComparator reports whether op compares two sides (as opposed to the
// unary truthy/not-truthy tests).
func (op Comparator) IsComparator() bool {
	switch op {
	case OpEqual, OpNotEqual, OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		return true
	default:
		return false
	}
}

func (op Comparator) String() string {
	switch op {
	case OpTruthy:
		return "truthy"
	case OpNotTruthy:
		return "not_truthy"
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreater:
		return ">"
	case OpLess:
		return "<"
	case OpGreaterEqual:
		return ">="
	case OpLessEqual:
		return "<="
	default:
		return fmt.Sprintf("Comparator(%d)", int(op))
	}
}

// Equal reports whether v and other hold the same kind and payload,
// recursing into method-call arguments. Unlike the package-level Equal
// (which implements §4.1's SimpleValue equality and treats variables and
// method calls as always unequal), this method gives Value a full
// structural equality usable on any Value, including inside a larger AST
// node — in particular, it lets github.com/google/go-cmp compare structs
// holding a Value despite its unexported fields, since cmp defers to an
// Equal(T) bool method where one is defined.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString, KindVariable:
		return v.str == other.str
	case KindBool:
		return v.bl == other.bl
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindMethodCall:
		if (v.method == nil) != (other.method == nil) {
			return false
		}
		if v.method == nil {
			return true
		}
		if v.method.Name != other.method.Name || len(v.method.Args) != len(other.method.Args) {
			return false
		}
		for i := range v.method.Args {
			if !v.method.Args[i].Equal(other.method.Args[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Equal reports whether two SimpleValues are equal per §4.1: equality
// across mismatched tags is always false.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindString:
		return a.str == b.str
	case KindBool:
		return a.bl == b.bl
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	default:
		return false
	}
}

// Compare evaluates a binary comparator over two SimpleValues per §4.1.
// Mismatched tags (including int-vs-float) are never equal, so "=" and
// every ordered comparator yield false for them and "!=" yields true,
// matching the spec's strict-typing rule.
func Compare(op Comparator, a, b Value) bool {
	switch op {
	case OpEqual:
		return Equal(a, b)
	case OpNotEqual:
		return !Equal(a, b)
	}

	if a.kind != b.kind {
		return false
	}

	switch a.kind {
	case KindInt:
		return compareOrdered(op, a.i < b.i, a.i > b.i)
	case KindFloat:
		return compareOrdered(op, a.f < b.f, a.f > b.f)
	case KindString:
		return compareOrdered(op, a.str < b.str, a.str > b.str)
	default:
		return false
	}
}

// compareOrdered maps a precomputed (less, greater) pair onto the requested
// ordered comparator, so int/float/string all share one switch.
func compareOrdered(op Comparator, less, greater bool) bool {
	switch op {
	case OpGreater:
		return greater
	case OpLess:
		return less
	case OpGreaterEqual:
		return !less
	case OpLessEqual:
		return !greater
	default:
		return false
	}
}
