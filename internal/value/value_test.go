package value

import "testing"

func TestCastToSimple(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		ok   bool
	}{
		{"string", String("hi"), true},
		{"bool", Bool(true), true},
		{"int", Int(3), true},
		{"float", Float(1.5), true},
		{"variable", Variable("x"), false},
		{"method call", Call("foo", nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CastToSimple(tt.v)
			if ok != tt.ok {
				t.Fatalf("CastToSimple(%v) ok = %v, want %v", tt.v, ok, tt.ok)
			}
			if ok && got != tt.v {
				t.Fatalf("CastToSimple(%v) = %v, want same value", tt.v, got)
			}
		})
	}
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"true bool", Bool(true), true},
		{"false bool", Bool(false), false},
		{"nonzero int", Int(5), true},
		{"zero int", Int(0), false},
		{"nonzero float", Float(0.1), true},
		{"zero float", Float(0), false},
		{"nonempty string", String("a"), true},
		{"empty string", String(""), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.IsTruthy(); got != tt.want {
				t.Fatalf("IsTruthy(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"int", Int(-42), "-42"},
		{"float", Float(3.5), "3.5"},
		{"string verbatim", String("hello world"), "hello world"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.String(); got != tt.want {
				t.Fatalf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDebugStringFloatFixedPrecision(t *testing.T) {
	got := Float(3.5).DebugString()
	if got != "3.50" {
		t.Fatalf("DebugString() = %q, want %q", got, "3.50")
	}
}

func TestEqualMismatchedTagsFalse(t *testing.T) {
	if Equal(Int(1), Float(1)) {
		t.Fatal("Equal(int(1), float(1)) should be false: mismatched tags")
	}
	if Equal(String("1"), Int(1)) {
		t.Fatal("Equal(string, int) should be false")
	}
	if !Equal(Int(1), Int(1)) {
		t.Fatal("Equal(int(1), int(1)) should be true")
	}
}

func TestCompareNumericMismatchedTypesFalse(t *testing.T) {
	// Per spec §4.1/§9: int vs float ordered comparisons are mismatched
	// types and always yield false, even when numerically equivalent.
	ops := []Comparator{OpGreater, OpLess, OpGreaterEqual, OpLessEqual}
	for _, op := range ops {
		if Compare(op, Int(1), Float(1)) {
			t.Fatalf("Compare(%v, int(1), float(1)) = true, want false", op)
		}
	}
}

func TestCompareOrdered(t *testing.T) {
	if !Compare(OpGreater, Int(5), Int(3)) {
		t.Fatal("5 > 3 should be true")
	}
	if Compare(OpGreater, Int(3), Int(5)) {
		t.Fatal("3 > 5 should be false")
	}
	if !Compare(OpGreaterEqual, Int(5), Int(5)) {
		t.Fatal("5 >= 5 should be true")
	}
	if !Compare(OpLessEqual, String("a"), String("b")) {
		t.Fatal(`"a" <= "b" should be true`)
	}
}

func TestCallKeyArgUsesCanonicalForm(t *testing.T) {
	if got := Float(3.5).CallKeyArg(); got != "3.5" {
		t.Fatalf("CallKeyArg() = %q, want %q (canonical, not debug precision)", got, "3.5")
	}
}
