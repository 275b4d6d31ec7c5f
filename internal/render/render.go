// Package render turns synthesized test case specs into one
// self-contained, gofmt-clean _test.go source file. Rendering is pure
// text assembly; the output always re-parses with go/parser.
package render

import (
	"fmt"
	"go/format"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"gauntlet/internal/anatomy"
	"gauntlet/internal/logging"
	"gauntlet/internal/synth"
)

// GeneratedTestModule is the rendered artifact: the test source, the
// specs it came from, and the unique test function names in emission
// order.
type GeneratedTestModule struct {
	ModuleName string               `json:"module_name"`
	Specs      []synth.TestCaseSpec `json:"specs"`
	Source     string               `json:"source"`
	TestNames  []string             `json:"test_names"`
}

// Render emits the test file for specs against the extracted model.
// The package clause matches the analyzed source so the sandbox can
// co-locate the two files.
func Render(mod *anatomy.Module, specs []synth.TestCaseSpec, moduleName string) (*GeneratedTestModule, error) {
	callables := make(map[string]*anatomy.CallableSignature, len(mod.Callables))
	for i := range mod.Callables {
		c := &mod.Callables[i]
		callables[c.QualifiedName()] = c
	}

	imports := map[string]bool{}
	if len(specs) > 0 {
		imports["testing"] = true
	}
	seen := map[string]bool{}
	var funcs []string
	var names []string

	for _, spec := range specs {
		key := spec.Target.Name
		if spec.Target.Receiver != "" {
			key = spec.Target.Receiver + "." + spec.Target.Name
		}
		c, ok := callables[key]
		if !ok {
			return nil, fmt.Errorf("spec %s references unknown callable %s", spec.ID, key)
		}
		name := testFuncName(spec)
		if seen[name] {
			return nil, fmt.Errorf("duplicate test name %s (spec %s)", name, spec.ID)
		}
		seen[name] = true
		funcs = append(funcs, renderTestFunc(c, spec, name, imports))
		names = append(names, name)
	}

	var b strings.Builder
	b.WriteString("// Code generated by gauntlet. DO NOT EDIT.\n")
	fmt.Fprintf(&b, "//\n// Synthesized tests for %s: %d cases.\n\n", moduleName, len(specs))
	fmt.Fprintf(&b, "package %s\n\n", mod.Package)
	b.WriteString(renderImports(imports))
	for _, fn := range funcs {
		b.WriteString(fn)
	}

	formatted, err := format.Source([]byte(b.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to format generated tests: %w", err)
	}

	logging.Render("module %s: rendered %d test funcs (%d bytes)",
		moduleName, len(names), len(formatted))

	return &GeneratedTestModule{
		ModuleName: moduleName,
		Specs:      specs,
		Source:     string(formatted),
		TestNames:  names,
	}, nil
}

func renderImports(imports map[string]bool) string {
	paths := make([]string, 0, len(imports))
	for p := range imports {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return ""
	}
	if len(paths) == 1 {
		return fmt.Sprintf("import %q\n\n", paths[0])
	}
	var b strings.Builder
	b.WriteString("import (\n")
	for _, p := range paths {
		fmt.Fprintf(&b, "\t%q\n", p)
	}
	b.WriteString(")\n\n")
	return b.String()
}

func testFuncName(spec synth.TestCaseSpec) string {
	var b strings.Builder
	b.WriteString("Test")
	if spec.Target.Receiver != "" {
		b.WriteString(pascalCase(spec.Target.Receiver))
		b.WriteString("_")
	}
	b.WriteString(pascalCase(spec.Target.Name))
	b.WriteString("_")
	b.WriteString(spec.Category)
	b.WriteString("_")
	b.WriteString(strconv.Itoa(spec.Ordinal))
	return b.String()
}

func pascalCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return string(unicode.ToUpper(r[0])) + string(r[1:])
}

func renderTestFunc(c *anatomy.CallableSignature, spec synth.TestCaseSpec, name string, imports map[string]bool) string {
	for _, in := range spec.Inputs {
		for _, imp := range in.Imports {
			imports[imp] = true
		}
	}

	var lines []string
	lines = append(lines, "// "+spec.Rationale)

	// Recovery scaffolding registers before anything else runs.
	switch spec.Expected.Kind {
	case synth.OutcomePanic:
		lines = append(lines,
			"defer func() {",
			"\tif recover() == nil {",
			`		t.Errorf("expected a panic, none occurred")`,
			"\t}",
			"}()")
	case synth.OutcomeCompletes:
		lines = append(lines,
			"defer func() {",
			"\tif r := recover(); r != nil {",
			`		t.Logf("recovered: %v", r)`,
			"\t}",
			"}()")
	}

	for _, in := range spec.Inputs {
		if in.Prelude != "" {
			lines = append(lines, strings.Split(in.Prelude, "\n")...)
		}
	}

	if c.Receiver != "" {
		lit := c.Receiver + "{}"
		if c.MethodKind == anatomy.MethodPointer {
			lit = "&" + lit
		}
		lines = append(lines, "recv := "+lit)
	}

	call := callExpr(c, spec)
	lines = append(lines, assertionLines(c, spec, call, imports)...)

	var b strings.Builder
	fmt.Fprintf(&b, "func %s(t *testing.T) {\n", name)
	for _, ln := range lines {
		b.WriteString("\t")
		b.WriteString(ln)
		b.WriteString("\n")
	}
	b.WriteString("}\n\n")
	return b.String()
}

func callExpr(c *anatomy.CallableSignature, spec synth.TestCaseSpec) string {
	args := make([]string, len(spec.Inputs))
	for i, in := range spec.Inputs {
		args[i] = in.Literal
	}
	target := c.Name
	if c.Receiver != "" {
		target = "recv." + c.Name
	}
	return fmt.Sprintf("%s(%s)", target, strings.Join(args, ", "))
}

func assertionLines(c *anatomy.CallableSignature, spec synth.TestCaseSpec, call string, imports map[string]bool) []string {
	var lines []string
	switch spec.Expected.Kind {
	case synth.OutcomeValue:
		lines = append(lines, "got := "+call)
		want := spec.Expected.Value
		if isFloatType(spec.Expected.ValueType) {
			imports["math"] = true
			lines = append(lines,
				fmt.Sprintf("if math.Abs(float64(got)-(%s)) > 1e-9 {", want),
				fmt.Sprintf(`	t.Errorf("got %%v, want %%v", got, %s)`, want),
				"}")
		} else {
			lines = append(lines,
				fmt.Sprintf("if got != %s {", want),
				fmt.Sprintf(`	t.Errorf("got %%v, want %%v", got, %s)`, want),
				"}")
		}

	case synth.OutcomeError:
		lines = append(lines, errBinding(len(c.Results), c.ErrorIndex())+call)
		if spec.Expected.NilError {
			lines = append(lines,
				"if err != nil {",
				`	t.Fatalf("unexpected error: %v", err)`,
				"}")
			break
		}
		if spec.Expected.Sentinel != "" {
			imports["errors"] = true
			lines = append(lines,
				"if err == nil {",
				`	t.Errorf("expected an error, got nil")`,
				fmt.Sprintf("} else if !errors.Is(err, %s) {", spec.Expected.Sentinel),
				fmt.Sprintf(`	t.Errorf("expected %s, got %%v", err)`, spec.Expected.Sentinel),
				"}")
			break
		}
		lines = append(lines,
			"if err == nil {",
			`	t.Errorf("expected an error, got nil")`,
			"}")

	case synth.OutcomePanic:
		lines = append(lines, call)

	default: // completes
		lines = append(lines, discardCall(len(c.Results), call))
	}
	return lines
}

func errBinding(resultCount, errIndex int) string {
	if errIndex < 0 || errIndex >= resultCount {
		errIndex = resultCount - 1
	}
	parts := make([]string, resultCount)
	for i := range parts {
		parts[i] = "_"
	}
	parts[errIndex] = "err"
	return strings.Join(parts, ", ") + " := "
}

func discardCall(resultCount int, call string) string {
	if resultCount == 0 {
		return call
	}
	blanks := make([]string, resultCount)
	for i := range blanks {
		blanks[i] = "_"
	}
	return strings.Join(blanks, ", ") + " = " + call
}

func isFloatType(typ string) bool {
	return typ == "float32" || typ == "float64"
}
