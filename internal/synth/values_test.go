package synth

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"gauntlet/internal/anatomy"
)

func TestPolicyValues(t *testing.T) {
	tests := []struct {
		typ  string
		pos  int
		want string
	}{
		{"int", 0, "2"},
		{"int", 1, "3"},
		{"uint8", 2, "4"},
		{"float64", 0, "2.5"},
		{"float32", 1, "3.5"},
		{"string", 0, `"alpha"`},
		{"string", 1, `"beta"`},
		{"string", 4, `"alpha"`},
		{"bool", 0, "true"},
		{"any", 0, `"value"`},
		{"interface{}", 1, `"value"`},
		{"time.Duration", 0, "time.Second"},
		{"[]int", 0, "[]int{2, 3, 4}"},
		{"[]string", 0, `[]string{"alpha", "beta", "gamma"}`},
		{"map[string]int", 0, `map[string]int{"alpha": 2}`},
	}
	for _, tt := range tests {
		if got := valueFor(tt.typ, tt.pos, modePolicy); got.Literal != tt.want {
			t.Errorf("valueFor(%q, %d) = %q, want %q", tt.typ, tt.pos, got.Literal, tt.want)
		}
	}
}

func TestZeroBattery(t *testing.T) {
	tests := []struct {
		typ  string
		want string
	}{
		{"int", "0"},
		{"float64", "0"},
		{"string", `""`},
		{"bool", "false"},
		{"any", "nil"},
		{"time.Duration", "0"},
		{"[]int", "[]int{}"},
		{"map[string]int", "map[string]int{}"},
		{"*int", "nil"},
	}
	for _, tt := range tests {
		if got := valueFor(tt.typ, 0, modeZero); got.Literal != tt.want {
			t.Errorf("valueFor(%q, zero) = %q, want %q", tt.typ, got.Literal, tt.want)
		}
	}
}

func TestNegativeBattery(t *testing.T) {
	tests := []struct {
		typ  string
		want string
	}{
		{"int", "-1"},
		{"uint", "0"},
		{"byte", "0"},
		{"float64", "-1"},
		{"string", `""`},
		{"time.Duration", "-time.Second"},
		{"[]int", "[]int{}"},
		{"*string", "nil"},
	}
	for _, tt := range tests {
		if got := valueFor(tt.typ, 0, modeNegative); got.Literal != tt.want {
			t.Errorf("valueFor(%q, negative) = %q, want %q", tt.typ, got.Literal, tt.want)
		}
	}
}

func TestExtremeBattery(t *testing.T) {
	tests := []struct {
		typ         string
		want        string
		wantImports []string
	}{
		{"int", "math.MaxInt32", []string{"math"}},
		{"int8", "math.MaxInt8", []string{"math"}},
		{"int16", "math.MaxInt16", []string{"math"}},
		{"uint8", "math.MaxUint8", []string{"math"}},
		{"uint64", "math.MaxUint32", []string{"math"}},
		{"float64", "math.MaxFloat32", []string{"math"}},
		{"string", `strings.Repeat("x", 256)`, []string{"strings"}},
		{"[]int", "make([]int, 64)", nil},
		{"time.Duration", "time.Duration(math.MaxInt64)", []string{"time", "math"}},
	}
	for _, tt := range tests {
		got := valueFor(tt.typ, 0, modeExtreme)
		if got.Literal != tt.want {
			t.Errorf("valueFor(%q, extreme) = %q, want %q", tt.typ, got.Literal, tt.want)
		}
		if diff := cmp.Diff(tt.wantImports, got.Imports); diff != "" {
			t.Errorf("valueFor(%q, extreme) imports (-want +got):\n%s", tt.typ, diff)
		}
	}
}

func TestPointerValuesDeclareHelpers(t *testing.T) {
	got := valueFor("*int", 0, modePolicy)
	if got.Literal != "&ptr0" {
		t.Errorf("Literal = %q, want %q", got.Literal, "&ptr0")
	}
	if got.Prelude != "var ptr0 int = 2" {
		t.Errorf("Prelude = %q", got.Prelude)
	}

	// Sibling positions and nested elements must not collide.
	sibling := valueFor("*int", 1, modePolicy)
	if sibling.Literal != "&ptr1" {
		t.Errorf("sibling Literal = %q, want %q", sibling.Literal, "&ptr1")
	}

	nested := valueFor("[]*int", 0, modePolicy)
	if nested.Literal != "[]*int{&ptr0_0, &ptr0_1, &ptr0_2}" {
		t.Errorf("nested Literal = %q", nested.Literal)
	}
	wantPrelude := "var ptr0_0 int = 2\nvar ptr0_1 int = 3\nvar ptr0_2 int = 4"
	if nested.Prelude != wantPrelude {
		t.Errorf("nested Prelude = %q, want %q", nested.Prelude, wantPrelude)
	}
}

func TestPointerToPointerOrdersDeclarations(t *testing.T) {
	got := valueFor("**int", 0, modePolicy)
	if got.Literal != "&ptr0" {
		t.Errorf("Literal = %q, want %q", got.Literal, "&ptr0")
	}
	want := "var ptr0p int = 2\nvar ptr0 *int = &ptr0p"
	if got.Prelude != want {
		t.Errorf("Prelude = %q, want %q", got.Prelude, want)
	}
}

func TestHostileValues(t *testing.T) {
	tests := []struct {
		typ  string
		want string
		ok   bool
	}{
		{"float64", "math.NaN()", true},
		{"float32", "math.NaN()", true},
		{"int", "math.MinInt32", true},
		{"int8", "math.MinInt8", true},
		{"int16", "math.MinInt16", true},
		{"uint", "math.MaxUint32", true},
		{"string", `"\x00\xff"`, true},
		{"any", "struct{}{}", true},
		{"[]int", "nil", true},
		{"map[string]int", "nil", true},
		{"*int", "nil", true},
		{"bool", "", false},
		{"time.Duration", "", false},
	}
	for _, tt := range tests {
		got, ok := hostileValue(tt.typ)
		if ok != tt.ok {
			t.Errorf("hostileValue(%q) ok = %v, want %v", tt.typ, ok, tt.ok)
			continue
		}
		if ok && got.Literal != tt.want {
			t.Errorf("hostileValue(%q) = %q, want %q", tt.typ, got.Literal, tt.want)
		}
	}
}

func TestSolveGuard(t *testing.T) {
	tests := []struct {
		name string
		op   string
		val  string
		typ  string
		pos  int
		want string
		ok   bool
	}{
		{"eq takes the literal", "==", "0", "int", 0, "0", true},
		{"neq takes policy", "!=", "0", "int", 0, "2", true},
		{"neq avoids collision", "!=", `"alpha"`, "string", 0, `"beta"`, true},
		{"lt steps below", "<", "0", "int", 0, "-1", true},
		{"lt unsigned unsolvable", "<", "0", "uint", 0, "", false},
		{"le takes the literal", "<=", "0", "int", 0, "0", true},
		{"gt steps above", ">", "0", "int", 0, "1", true},
		{"ge takes the literal", ">=", "5", "int", 0, "5", true},
		{"gt float", ">", "2.5", "float64", 0, "3.5", true},
		{"eq nil on pointer", "==", "nil", "*int", 0, "nil", true},
		{"eq nil on int unsolvable", "==", "nil", "int", 0, "", false},
		{"neq nil takes policy", "!=", "nil", "[]int", 0, "[]int{2, 3, 4}", true},
		{"lt empty string unsolvable", "<", `""`, "string", 0, "", false},
		{"lt string shortens", "<", `"abc"`, "string", 0, `""`, true},
		{"gt string extends", ">", `"abc"`, "string", 0, `"abcx"`, true},
		{"neq bool flips", "!=", "true", "bool", 0, "false", true},
		{"negative literal on uint unsolvable", "==", "-1", "uint", 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &anatomy.Guard{Param: "x", Op: tt.op, Value: tt.val}
			got, ok := solveGuard(g, tt.typ, tt.pos)
			if ok != tt.ok {
				t.Fatalf("solveGuard(%s %s, %s) ok = %v, want %v", tt.op, tt.val, tt.typ, ok, tt.ok)
			}
			if ok && got.Literal != tt.want {
				t.Errorf("solveGuard(%s %s, %s) = %q, want %q", tt.op, tt.val, tt.typ, got.Literal, tt.want)
			}
		})
	}
}

func TestFormatFloatLiteral(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{2.5, "2.5"},
		{3, "3.0"},
		{-1.5, "-1.5"},
		{1e21, "1e+21"},
	}
	for _, tt := range tests {
		if got := formatFloatLiteral(tt.in); got != tt.want {
			t.Errorf("formatFloatLiteral(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNilableTypes(t *testing.T) {
	for _, typ := range []string{"[]int", "map[string]int", "*int", "any", "interface{}"} {
		if !isNilable(typ) {
			t.Errorf("isNilable(%q) = false, want true", typ)
		}
	}
	for _, typ := range []string{"int", "string", "bool", "float64", "time.Duration"} {
		if isNilable(typ) {
			t.Errorf("isNilable(%q) = true, want false", typ)
		}
	}
}
