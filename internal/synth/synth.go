// Package synth turns an extracted module model into deterministic test
// case specifications. Four categories are emitted in fixed order per
// callable: happy path, edge batteries, one exception case per raise
// site, and per-parameter type validation. Synthesis is pure; the same
// model and config always produce byte-identical specs.
package synth

import (
	"fmt"
	"go/constant"
	"strconv"
	"strings"

	"gauntlet/internal/anatomy"
	"gauntlet/internal/logging"
)

// Test case categories, in emission order.
const (
	CategoryHappy          = "happy"
	CategoryEdge           = "edge"
	CategoryException      = "exception"
	CategoryTypeValidation = "type_validation"
)

// Categories lists every category in canonical order.
var Categories = []string{CategoryHappy, CategoryEdge, CategoryException, CategoryTypeValidation}

// Expected outcome kinds.
const (
	OutcomeValue     = "value"
	OutcomeError     = "error"
	OutcomePanic     = "panic"
	OutcomeCompletes = "completes"
)

// Value is one rendered argument: the literal text plus any helper
// declaration and imports the literal needs to compile.
type Value struct {
	Literal string   `json:"literal"`
	Prelude string   `json:"prelude,omitempty"`
	Imports []string `json:"-"`
}

// Outcome describes the observable behavior a rendered test asserts.
// Kind value carries the folded literal and its declared type; kind
// error distinguishes must-be-nil from must-be-non-nil, with an
// optional sentinel name for errors.Is; kind completes asserts only
// that the call returns under control.
type Outcome struct {
	Kind      string `json:"kind"`
	Value     string `json:"value,omitempty"`
	ValueType string `json:"value_type,omitempty"`
	NilError  bool   `json:"nil_error,omitempty"`
	Sentinel  string `json:"sentinel,omitempty"`
}

// Target names the callable a spec exercises.
type Target struct {
	Name     string `json:"name"`
	Receiver string `json:"receiver,omitempty"`
}

// TestCaseSpec is one synthesized test case. IDs follow
// callable_category_ordinal and are unique within a module.
type TestCaseSpec struct {
	ID        string  `json:"id"`
	Category  string  `json:"category"`
	Target    Target  `json:"target"`
	Inputs    []Value `json:"inputs"`
	Expected  Outcome `json:"expected"`
	Rationale string  `json:"rationale"`

	// Ordinal is 1-based within (callable, category).
	Ordinal int `json:"-"`
}

// Config narrows synthesis to a subset of categories. Empty enables
// all of them.
type Config struct {
	Categories []string
}

func (c Config) enabled(category string) bool {
	if len(c.Categories) == 0 {
		return true
	}
	for _, cat := range c.Categories {
		if cat == category {
			return true
		}
	}
	return false
}

// Synthesize walks the model's callables in source order and emits
// specs for every enabled category, skipping callables the extractor
// marked unsynthesizable.
func Synthesize(mod *anatomy.Module, cfg Config) []TestCaseSpec {
	specs := []TestCaseSpec{}
	synthesized := 0
	for i := range mod.Callables {
		c := &mod.Callables[i]
		if c.Skip {
			continue
		}
		synthesized++
		if cfg.enabled(CategoryHappy) {
			specs = append(specs, happyCase(c))
		}
		if cfg.enabled(CategoryEdge) {
			specs = append(specs, edgeCases(c)...)
		}
		if cfg.enabled(CategoryException) {
			specs = append(specs, exceptionCases(c)...)
		}
		if cfg.enabled(CategoryTypeValidation) {
			specs = append(specs, typeValidationCases(c)...)
		}
	}
	logging.Synth("module %s: %d specs from %d callables", mod.Name, len(specs), synthesized)
	return specs
}

func happyCase(c *anatomy.CallableSignature) TestCaseSpec {
	inputs := policyInputs(c.Params)
	rationale := "happy path: every parameter at its policy value"
	for _, p := range c.Params {
		if isAny(p.Type) {
			rationale += "; interface-typed parameters receive a string stand-in"
			break
		}
	}
	return TestCaseSpec{
		ID:        specID(c, CategoryHappy, 1),
		Category:  CategoryHappy,
		Target:    targetOf(c),
		Inputs:    inputs,
		Expected:  happyOutcome(c, inputs),
		Rationale: rationale,
		Ordinal:   1,
	}
}

// happyOutcome prefers an exact folded value, falls back to asserting
// a nil error for error-returning shapes, and otherwise only requires
// the call to complete.
func happyOutcome(c *anatomy.CallableSignature, inputs []Value) Outcome {
	if v, ok := foldCall(c, inputs); ok {
		return valueOutcome(v, c.Results[0].Type)
	}
	if c.ReturnsError() {
		return Outcome{Kind: OutcomeError, NilError: true}
	}
	return Outcome{Kind: OutcomeCompletes}
}

func edgeCases(c *anatomy.CallableSignature) []TestCaseSpec {
	// Nothing to vary without parameters.
	if len(c.Params) == 0 {
		return nil
	}
	batteries := []struct {
		mode      valueMode
		rationale string
	}{
		{modeZero, "edge: all parameters at zero values"},
		{modeNegative, "edge: negative numerics, empty strings and containers"},
		{modeExtreme, "edge: extreme magnitudes (32-bit bounds, 256-rune string, 64-element slice)"},
	}

	var specs []TestCaseSpec
	for i, b := range batteries {
		inputs := inputsWith(c.Params, b.mode)
		specs = append(specs, TestCaseSpec{
			ID:        specID(c, CategoryEdge, i+1),
			Category:  CategoryEdge,
			Target:    targetOf(c),
			Inputs:    inputs,
			Expected:  edgeOutcome(c, inputs),
			Rationale: b.rationale,
			Ordinal:   i + 1,
		})
	}
	if anyNilable(c.Params) {
		inputs := nilInputs(c.Params)
		specs = append(specs, TestCaseSpec{
			ID:        specID(c, CategoryEdge, 4),
			Category:  CategoryEdge,
			Target:    targetOf(c),
			Inputs:    inputs,
			Expected:  edgeOutcome(c, inputs),
			Rationale: "edge: nil for every nilable parameter",
			Ordinal:   4,
		})
	}
	return specs
}

// edgeOutcome asserts the folded value only when no raise-site guard
// is satisfied by the inputs. Edge inputs may legitimately take error
// paths, so everything else asserts controlled completion: a non-nil
// error here is data, not failure.
func edgeOutcome(c *anatomy.CallableSignature, inputs []Value) Outcome {
	if v, ok := foldCall(c, inputs); ok && !guardSatisfiedByInputs(c, inputs) {
		return valueOutcome(v, c.Results[0].Type)
	}
	return Outcome{Kind: OutcomeCompletes}
}

func exceptionCases(c *anatomy.CallableSignature) []TestCaseSpec {
	var specs []TestCaseSpec
	for i, site := range c.Raises {
		ordinal := i + 1
		spec := TestCaseSpec{
			ID:       specID(c, CategoryException, ordinal),
			Category: CategoryException,
			Target:   targetOf(c),
			Ordinal:  ordinal,
		}

		solved := false
		if site.Guard != nil {
			if idx := paramIndex(c.Params, site.Guard.Param); idx >= 0 {
				if v, ok := solveGuard(site.Guard, c.Params[idx].Type, idx); ok {
					inputs := policyInputs(c.Params)
					inputs[idx] = v
					spec.Inputs = inputs
					spec.Expected = raiseOutcome(site)
					spec.Rationale = fmt.Sprintf(
						"exception: inputs satisfy guard %s at line %d", site.Guard.Expr, site.Line)
					solved = true
				}
			}
		}
		if !solved {
			spec.Inputs = inputsWith(c.Params, modeExtreme)
			spec.Expected = Outcome{Kind: OutcomeCompletes}
			spec.Rationale = fmt.Sprintf(
				"raise site at line %d has no solvable guard; adversarial inputs assert controlled behavior only", site.Line)
		}
		specs = append(specs, spec)
	}
	return specs
}

func raiseOutcome(site anatomy.RaiseSite) Outcome {
	if site.Kind == anatomy.RaisePanic {
		return Outcome{Kind: OutcomePanic}
	}
	out := Outcome{Kind: OutcomeError}
	if site.ExceptionType != "" && site.ExceptionType != "error" {
		out.Sentinel = site.ExceptionType
	}
	return out
}

func typeValidationCases(c *anatomy.CallableSignature) []TestCaseSpec {
	var specs []TestCaseSpec
	ordinal := 0
	for i, p := range c.Params {
		hostile, ok := hostileValue(p.Type)
		if !ok {
			continue
		}
		ordinal++
		inputs := policyInputs(c.Params)
		inputs[i] = hostile
		label := p.Name
		if label == "" || label == "_" {
			label = fmt.Sprintf("#%d", i+1)
		}
		specs = append(specs, TestCaseSpec{
			ID:       specID(c, CategoryTypeValidation, ordinal),
			Category: CategoryTypeValidation,
			Target:   targetOf(c),
			Inputs:   inputs,
			Expected: Outcome{Kind: OutcomeCompletes},
			Rationale: fmt.Sprintf(
				"type validation: hostile value %s for parameter %s; behavior is implementation-defined, the call must stay controlled",
				hostile.Literal, label),
			Ordinal: ordinal,
		})
	}
	return specs
}

// foldCall binds whatever inputs parse as exact constants and folds
// the body. Only single-result, non-error, non-variadic shapes can
// carry a value assertion.
func foldCall(c *anatomy.CallableSignature, inputs []Value) (constant.Value, bool) {
	if c.Decl == nil || len(c.Results) != 1 || c.Results[0].IsError {
		return nil, false
	}
	for _, p := range c.Params {
		if p.Kind == anatomy.ParamVariadic {
			return nil, false
		}
	}
	bindings := make(map[string]constant.Value, len(c.Params))
	for i, p := range c.Params {
		if p.Name == "" || p.Name == "_" || i >= len(inputs) {
			continue
		}
		if v, ok := bindLiteral(inputs[i].Literal); ok {
			bindings[p.Name] = v
		}
	}
	return fold(c.Decl, bindings)
}

func valueOutcome(v constant.Value, resultType string) Outcome {
	return Outcome{
		Kind:      OutcomeValue,
		Value:     formatConstant(v, resultType),
		ValueType: resultType,
	}
}

// guardSatisfiedByInputs reports whether any raise-site guard could be
// satisfied by the given inputs. Guards that cannot be evaluated count
// as satisfied so value assertions stay conservative.
func guardSatisfiedByInputs(c *anatomy.CallableSignature, inputs []Value) bool {
	for _, site := range c.Raises {
		g := site.Guard
		if g == nil {
			continue
		}
		idx := paramIndex(c.Params, g.Param)
		if idx < 0 || idx >= len(inputs) {
			return true
		}
		lit := inputs[idx].Literal
		if g.Value == "nil" || lit == "nil" {
			switch g.Op {
			case "==":
				if lit == g.Value {
					return true
				}
			case "!=":
				if lit != g.Value {
					return true
				}
			default:
				return true
			}
			continue
		}
		x, okX := bindLiteral(lit)
		y, okY := bindLiteral(g.Value)
		if !okX || !okY {
			return true
		}
		if compareConstants(x, g.Op, y) {
			return true
		}
	}
	return false
}

func paramIndex(params []anatomy.Param, name string) int {
	if name == "" {
		return -1
	}
	for i, p := range params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func specID(c *anatomy.CallableSignature, category string, ordinal int) string {
	callable := strings.ReplaceAll(c.QualifiedName(), ".", "_")
	return callable + "_" + category + "_" + strconv.Itoa(ordinal)
}

func targetOf(c *anatomy.CallableSignature) Target {
	return Target{Name: c.Name, Receiver: c.Receiver}
}

func inputsWith(params []anatomy.Param, mode valueMode) []Value {
	inputs := make([]Value, len(params))
	for i, p := range params {
		inputs[i] = valueFor(p.Type, i, mode)
	}
	return inputs
}

func policyInputs(params []anatomy.Param) []Value {
	return inputsWith(params, modePolicy)
}

// nilInputs puts nil in every nilable position and policy values in
// the rest. Variadic parameters stay at policy: omitting them is the
// caller-side nil.
func nilInputs(params []anatomy.Param) []Value {
	inputs := make([]Value, len(params))
	for i, p := range params {
		if p.Kind != anatomy.ParamVariadic && isNilable(p.Type) {
			inputs[i] = Value{Literal: "nil"}
			continue
		}
		inputs[i] = valueFor(p.Type, i, modePolicy)
	}
	return inputs
}

func anyNilable(params []anatomy.Param) bool {
	for _, p := range params {
		if p.Kind != anatomy.ParamVariadic && isNilable(p.Type) {
			return true
		}
	}
	return false
}
