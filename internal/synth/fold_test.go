package synth

import (
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"
	"testing"
)

func parseFunc(t *testing.T, src string) *ast.FuncDecl {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "fold_test.go", "package p\n"+src, 0)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok {
			return fn
		}
	}
	t.Fatal("no function declaration in fixture")
	return nil
}

func bind(t *testing.T, pairs map[string]string) map[string]constant.Value {
	t.Helper()
	bindings := make(map[string]constant.Value, len(pairs))
	for name, lit := range pairs {
		v, ok := bindLiteral(lit)
		if !ok {
			t.Fatalf("bindLiteral(%q) failed", lit)
		}
		bindings[name] = v
	}
	return bindings
}

func TestFoldArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		bindings map[string]string
		typ      string
		want     string
	}{
		{
			name:     "addition",
			src:      "func Add(a, b int) int { return a + b }",
			bindings: map[string]string{"a": "2", "b": "3"},
			typ:      "int",
			want:     "5",
		},
		{
			name:     "subtraction with negative result",
			src:      "func Sub(a, b int) int { return a - b }",
			bindings: map[string]string{"a": "2", "b": "5"},
			typ:      "int",
			want:     "-3",
		},
		{
			name:     "multiplication",
			src:      "func Mul(a, b int) int { return a * b }",
			bindings: map[string]string{"a": "4", "b": "5"},
			typ:      "int",
			want:     "20",
		},
		{
			name:     "integer division truncates",
			src:      "func Div(a, b int) int { return a / b }",
			bindings: map[string]string{"a": "7", "b": "2"},
			typ:      "int",
			want:     "3",
		},
		{
			name:     "float division stays exact",
			src:      "func Div(a, b float64) float64 { return a / b }",
			bindings: map[string]string{"a": "5.0", "b": "2.0"},
			typ:      "float64",
			want:     "2.5",
		},
		{
			name:     "remainder",
			src:      "func Rem(a, b int) int { return a % b }",
			bindings: map[string]string{"a": "7", "b": "3"},
			typ:      "int",
			want:     "1",
		},
		{
			name:     "unary negation",
			src:      "func Neg(a int) int { return -a }",
			bindings: map[string]string{"a": "2"},
			typ:      "int",
			want:     "-2",
		},
		{
			name:     "parenthesized expression",
			src:      "func Calc(a, b int) int { return (a + b) * 2 }",
			bindings: map[string]string{"a": "2", "b": "3"},
			typ:      "int",
			want:     "10",
		},
		{
			name:     "string concatenation",
			src:      `func Greet(name string) string { return "hello " + name }`,
			bindings: map[string]string{"name": `"alpha"`},
			typ:      "string",
			want:     `"hello alpha"`,
		},
		{
			name: "literal only",
			src:  `func Version() string { return "v1" }`,
			typ:  "string",
			want: `"v1"`,
		},
		{
			name:     "mixed int and float promotes",
			src:      "func Scale(f float64) float64 { return f * 2 }",
			bindings: map[string]string{"f": "2.5"},
			typ:      "float64",
			want:     "5.0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := parseFunc(t, tt.src)
			v, ok := fold(fn, bind(t, tt.bindings))
			if !ok {
				t.Fatal("fold reported not foldable")
			}
			if got := formatConstant(v, tt.typ); got != tt.want {
				t.Errorf("fold = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFoldRejects(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		bindings map[string]string
	}{
		{
			name: "multiple statements",
			src:  "func F(a int) int { x := a + 1; return x }",
		},
		{
			name:     "division by zero",
			src:      "func F(a, b int) int { return a / b }",
			bindings: map[string]string{"a": "7", "b": "0"},
		},
		{
			name:     "call expression",
			src:      "func F(s string) int { return len(s) }",
			bindings: map[string]string{"s": `"abc"`},
		},
		{
			name: "unbound parameter",
			src:  "func F(a int) int { return a + 1 }",
		},
		{
			name: "conditional body",
			src:  "func F(a int) int { if a > 0 { return a }; return 0 }",
		},
		{
			name:     "two results",
			src:      `func F(a int) (int, int) { return a, a }`,
			bindings: map[string]string{"a": "2"},
		},
		{
			name:     "selector expression",
			src:      "func F(d struct{ n int }) int { return d.n }",
			bindings: map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := parseFunc(t, tt.src)
			if _, ok := fold(fn, bind(t, tt.bindings)); ok {
				t.Error("fold reported foldable, want not foldable")
			}
		})
	}
}

func TestBindLiteral(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		kind constant.Kind
	}{
		{"2", true, constant.Int},
		{"-1", true, constant.Int},
		{"+7", true, constant.Int},
		{"2.5", true, constant.Float},
		{"-1.5", true, constant.Float},
		{`"alpha"`, true, constant.String},
		{"'x'", true, constant.Int},
		{"true", true, constant.Bool},
		{"false", true, constant.Bool},
		{"nil", false, 0},
		{"", false, 0},
		{"math.MaxInt32", false, 0},
		{"make([]int, 64)", false, 0},
		{"[]int{}", false, 0},
		{`strings.Repeat("x", 256)`, false, 0},
	}
	for _, tt := range tests {
		v, ok := bindLiteral(tt.in)
		if ok != tt.ok {
			t.Errorf("bindLiteral(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && v.Kind() != tt.kind {
			t.Errorf("bindLiteral(%q) kind = %v, want %v", tt.in, v.Kind(), tt.kind)
		}
	}
}

func TestCompareConstants(t *testing.T) {
	num := func(s string) constant.Value {
		v, ok := bindLiteral(s)
		if !ok {
			t.Fatalf("bindLiteral(%q) failed", s)
		}
		return v
	}
	tests := []struct {
		x, op, y string
		want     bool
	}{
		{"0", "==", "0", true},
		{"2", "==", "3", false},
		{"2", "<", "3", true},
		{"3", "<=", "3", true},
		{"3", ">", "3", false},
		{"2.5", ">", "2", true},
		{"-1", "<", "0", true},
		{`"alpha"`, "==", `"alpha"`, true},
		{`"alpha"`, "!=", `"beta"`, true},
	}
	for _, tt := range tests {
		if got := compareConstants(num(tt.x), tt.op, num(tt.y)); got != tt.want {
			t.Errorf("compareConstants(%s %s %s) = %v, want %v", tt.x, tt.op, tt.y, got, tt.want)
		}
	}

	// Incomparable kinds stay conservative.
	if !compareConstants(num(`"alpha"`), "<", num("2")) {
		t.Error("mixed kinds should report satisfied")
	}
	if !compareConstants(num("true"), "<", num("false")) {
		t.Error("unordered kinds should report satisfied")
	}
}
