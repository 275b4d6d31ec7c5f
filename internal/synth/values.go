package synth

import (
	"fmt"
	"strconv"
	"strings"

	"gauntlet/internal/anatomy"
)

// valueMode selects which battery a literal belongs to.
type valueMode int

const (
	modePolicy valueMode = iota
	modeZero
	modeNegative
	modeExtreme
)

// policyStrings rotate through string-typed positions.
var policyStrings = []string{"alpha", "beta", "gamma", "delta"}

func isSignedInt(typ string) bool {
	switch typ {
	case "int", "int8", "int16", "int32", "int64", "rune":
		return true
	}
	return false
}

func isUnsignedInt(typ string) bool {
	switch typ {
	case "uint", "uint8", "uint16", "uint32", "uint64", "uintptr", "byte":
		return true
	}
	return false
}

func isInteger(typ string) bool {
	return isSignedInt(typ) || isUnsignedInt(typ)
}

func isFloat(typ string) bool {
	return typ == "float32" || typ == "float64"
}

func isAny(typ string) bool {
	return typ == "any" || typ == "interface{}"
}

func isNilable(typ string) bool {
	return isAny(typ) ||
		strings.HasPrefix(typ, "[]") ||
		strings.HasPrefix(typ, "map[") ||
		strings.HasPrefix(typ, "*")
}

func splitMapType(typ string) (key, elem string, ok bool) {
	rest := strings.TrimPrefix(typ, "map[")
	idx := strings.Index(rest, "]")
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// valueFor renders the deterministic literal for a parameter type at
// argument position pos under the given battery.
func valueFor(typ string, pos int, mode valueMode) Value {
	return valueAt(typ, pos, strconv.Itoa(pos), mode)
}

// valueAt carries a seed string that keeps generated helper variable
// names unique through nested containers and pointers.
func valueAt(typ string, pos int, seed string, mode valueMode) Value {
	switch {
	case typ == "time.Duration":
		return durationValue(mode)
	case isAny(typ):
		return anyValue(mode)
	case typ == "string":
		return stringValue(pos, mode)
	case isFloat(typ):
		return floatValue(pos, mode)
	case isInteger(typ):
		return integerValue(typ, pos, mode)
	case typ == "bool":
		return boolValue(mode)
	case strings.HasPrefix(typ, "[]"):
		return sliceValue(typ, pos, seed, mode)
	case strings.HasPrefix(typ, "map["):
		return mapValue(typ, pos, seed, mode)
	case strings.HasPrefix(typ, "*"):
		return pointerValue(typ, pos, seed, mode)
	default:
		// Extraction never lets an unknown type reach synthesis; a zero
		// composite literal keeps the renderer safe if one does.
		return Value{Literal: typ + "{}"}
	}
}

func integerValue(typ string, pos int, mode valueMode) Value {
	switch mode {
	case modeZero:
		return Value{Literal: "0"}
	case modeNegative:
		if isUnsignedInt(typ) {
			return Value{Literal: "0"}
		}
		return Value{Literal: "-1"}
	case modeExtreme:
		return Value{Literal: integerExtreme(typ), Imports: []string{"math"}}
	default:
		return Value{Literal: strconv.Itoa(2 + pos)}
	}
}

// integerExtreme picks the largest constant that still fits the
// declared width; wider types stay at the 32-bit bound.
func integerExtreme(typ string) string {
	switch typ {
	case "int8":
		return "math.MaxInt8"
	case "int16":
		return "math.MaxInt16"
	case "uint8", "byte":
		return "math.MaxUint8"
	case "uint16":
		return "math.MaxUint16"
	case "uint", "uint32", "uint64", "uintptr":
		return "math.MaxUint32"
	default:
		return "math.MaxInt32"
	}
}

func floatValue(pos int, mode valueMode) Value {
	switch mode {
	case modeZero:
		return Value{Literal: "0"}
	case modeNegative:
		return Value{Literal: "-1"}
	case modeExtreme:
		return Value{Literal: "math.MaxFloat32", Imports: []string{"math"}}
	default:
		return Value{Literal: formatFloatLiteral(2.5 + float64(pos))}
	}
}

func stringValue(pos int, mode valueMode) Value {
	switch mode {
	case modeZero, modeNegative:
		return Value{Literal: `""`}
	case modeExtreme:
		return Value{Literal: `strings.Repeat("x", 256)`, Imports: []string{"strings"}}
	default:
		return Value{Literal: strconv.Quote(policyStrings[pos%len(policyStrings)])}
	}
}

func boolValue(mode valueMode) Value {
	switch mode {
	case modeZero, modeNegative:
		return Value{Literal: "false"}
	default:
		return Value{Literal: "true"}
	}
}

func anyValue(mode valueMode) Value {
	switch mode {
	case modeZero:
		return Value{Literal: "nil"}
	case modeNegative:
		return Value{Literal: `""`}
	case modeExtreme:
		return Value{Literal: `strings.Repeat("x", 256)`, Imports: []string{"strings"}}
	default:
		return Value{Literal: `"value"`}
	}
}

func durationValue(mode valueMode) Value {
	switch mode {
	case modeZero:
		return Value{Literal: "0"}
	case modeNegative:
		return Value{Literal: "-time.Second", Imports: []string{"time"}}
	case modeExtreme:
		return Value{Literal: "time.Duration(math.MaxInt64)", Imports: []string{"time", "math"}}
	default:
		return Value{Literal: "time.Second", Imports: []string{"time"}}
	}
}

func sliceValue(typ string, pos int, seed string, mode valueMode) Value {
	switch mode {
	case modeZero, modeNegative:
		return Value{Literal: typ + "{}"}
	case modeExtreme:
		return Value{Literal: fmt.Sprintf("make(%s, 64)", typ)}
	default:
		elem := typ[2:]
		var (
			lits    []string
			prelude string
			imports []string
		)
		for k := 0; k < 3; k++ {
			v := valueAt(elem, pos+k, fmt.Sprintf("%s_%d", seed, k), mode)
			lits = append(lits, v.Literal)
			prelude = joinPreludes(prelude, v.Prelude)
			imports = mergeImports(imports, v.Imports)
		}
		return Value{
			Literal: fmt.Sprintf("%s{%s}", typ, strings.Join(lits, ", ")),
			Prelude: prelude,
			Imports: imports,
		}
	}
}

func mapValue(typ string, pos int, seed string, mode valueMode) Value {
	key, elem, ok := splitMapType(typ)
	if !ok {
		return Value{Literal: typ + "{}"}
	}
	switch mode {
	case modeZero, modeNegative:
		return Value{Literal: typ + "{}"}
	default:
		k := valueAt(key, pos, seed+"_k", mode)
		v := valueAt(elem, pos, seed+"_v", mode)
		return Value{
			Literal: fmt.Sprintf("%s{%s: %s}", typ, k.Literal, v.Literal),
			Prelude: joinPreludes(k.Prelude, v.Prelude),
			Imports: mergeImports(k.Imports, v.Imports),
		}
	}
}

func pointerValue(typ string, pos int, seed string, mode valueMode) Value {
	if mode == modeZero || mode == modeNegative {
		return Value{Literal: "nil"}
	}
	elem := valueAt(typ[1:], pos, seed+"p", mode)
	name := "ptr" + seed
	decl := fmt.Sprintf("var %s %s = %s", name, typ[1:], elem.Literal)
	return Value{
		Literal: "&" + name,
		Prelude: joinPreludes(elem.Prelude, decl),
		Imports: elem.Imports,
	}
}

func formatFloatLiteral(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func joinPreludes(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + "\n" + b
}

func mergeImports(a, b []string) []string {
	out := a
	for _, imp := range b {
		if !containsString(out, imp) {
			out = append(out, imp)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// hostileValue picks the same-type surrogate used for type validation.
// Types with no meaningful hostile value (bool, time.Duration) produce
// no case.
func hostileValue(typ string) (Value, bool) {
	switch {
	case isFloat(typ):
		return Value{Literal: "math.NaN()", Imports: []string{"math"}}, true
	case isSignedInt(typ):
		lit := "math.MinInt32"
		switch typ {
		case "int8":
			lit = "math.MinInt8"
		case "int16":
			lit = "math.MinInt16"
		}
		return Value{Literal: lit, Imports: []string{"math"}}, true
	case isUnsignedInt(typ):
		return Value{Literal: integerExtreme(typ), Imports: []string{"math"}}, true
	case typ == "string":
		return Value{Literal: `"\x00\xff"`}, true
	case isAny(typ):
		return Value{Literal: "struct{}{}"}, true
	case strings.HasPrefix(typ, "[]"), strings.HasPrefix(typ, "map["), strings.HasPrefix(typ, "*"):
		return Value{Literal: "nil"}, true
	default:
		return Value{}, false
	}
}

// solveGuard picks an input that satisfies the guard comparison, per
// the fixed mapping: ==v takes v, !=v takes a differing policy value,
// <v takes v-1, <=v takes v, >v takes v+1, >=v takes v. A guard the
// parameter's type cannot express reports false and the site is
// treated as unguarded.
func solveGuard(g *anatomy.Guard, typ string, pos int) (Value, bool) {
	switch g.Op {
	case "==", "<=", ">=":
		return guardLiteral(g.Value, typ)
	case "!=":
		return differingValue(g.Value, typ, pos)
	case "<":
		return adjacentValue(g.Value, typ, -1)
	case ">":
		return adjacentValue(g.Value, typ, +1)
	}
	return Value{}, false
}

func guardLiteral(lit, typ string) (Value, bool) {
	if lit == "nil" {
		if isNilable(typ) {
			return Value{Literal: "nil"}, true
		}
		return Value{}, false
	}
	if isUnsignedInt(typ) && strings.HasPrefix(lit, "-") {
		return Value{}, false
	}
	return Value{Literal: lit}, true
}

func differingValue(lit, typ string, pos int) (Value, bool) {
	if lit == "nil" {
		if isNilable(typ) {
			return valueFor(typ, pos, modePolicy), true
		}
		return Value{}, false
	}
	if typ == "bool" {
		if lit == "true" {
			return Value{Literal: "false"}, true
		}
		return Value{Literal: "true"}, true
	}
	v := valueFor(typ, pos, modePolicy)
	if v.Literal != lit {
		return v, true
	}
	alt := valueFor(typ, pos+1, modePolicy)
	if alt.Literal != lit {
		return alt, true
	}
	return Value{}, false
}

func adjacentValue(lit, typ string, delta int) (Value, bool) {
	switch {
	case isInteger(typ) || typ == "time.Duration":
		n, err := strconv.ParseInt(lit, 0, 64)
		if err != nil {
			return Value{}, false
		}
		n += int64(delta)
		if isUnsignedInt(typ) && n < 0 {
			return Value{}, false
		}
		return Value{Literal: strconv.FormatInt(n, 10)}, true

	case isFloat(typ):
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return Value{}, false
		}
		return Value{Literal: formatFloatLiteral(f + float64(delta))}, true

	case typ == "string":
		s, err := strconv.Unquote(lit)
		if err != nil {
			return Value{}, false
		}
		if delta > 0 {
			return Value{Literal: strconv.Quote(s + "x")}, true
		}
		if s != "" {
			return Value{Literal: `""`}, true
		}
		return Value{}, false
	}
	return Value{}, false
}
