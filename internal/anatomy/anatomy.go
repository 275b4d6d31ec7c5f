// Package anatomy extracts the structural model of Go source that test
// synthesis works from. It parses with go/parser, never executes the
// submitted code, and degrades per callable rather than failing the
// whole analysis.
package anatomy

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"strings"

	"gauntlet/internal/logging"
)

// MethodKind distinguishes free functions from methods.
type MethodKind string

const (
	FuncFree      MethodKind = "function"
	MethodValue   MethodKind = "value_method"
	MethodPointer MethodKind = "pointer_method"
)

// ParamKind distinguishes positional parameters from the trailing
// variadic one.
type ParamKind string

const (
	ParamPositional ParamKind = "positional"
	ParamVariadic   ParamKind = "variadic"
)

// RaiseKind distinguishes panic sites from error-constructing returns.
type RaiseKind string

const (
	RaisePanic RaiseKind = "panic"
	RaiseError RaiseKind = "error"
)

// Param is one declared parameter after grouped names are expanded.
// For variadic parameters Type holds the element type.
type Param struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Kind        ParamKind `json:"kind"`
	Unsupported bool      `json:"unsupported,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

// ResultField is one declared result position.
type ResultField struct {
	Type     string `json:"type"`
	Position int    `json:"position"`
	IsError  bool   `json:"is_error,omitempty"`
}

// Guard is the comparison read off the if condition gating a raise
// site: parameter name, operator, and the literal it is compared to.
type Guard struct {
	Param string `json:"param"`
	Op    string `json:"op"`
	Value string `json:"value"`
	Expr  string `json:"expr"`
}

// RaiseSite is an explicit panic call or error-constructing return
// found in a callable body.
type RaiseSite struct {
	Kind          RaiseKind `json:"kind"`
	ExceptionType string    `json:"exception_type"`
	Line          int       `json:"line"`
	Guard         *Guard    `json:"guard,omitempty"`
}

// CallableSignature models one top-level callable. Immutable after
// extraction, never persisted.
type CallableSignature struct {
	Name       string        `json:"name"`
	Receiver   string        `json:"receiver,omitempty"`
	MethodKind MethodKind    `json:"method_kind"`
	Params     []Param       `json:"params"`
	Results    []ResultField `json:"results"`
	Raises     []RaiseSite   `json:"raises,omitempty"`
	Exported   bool          `json:"exported"`
	Doc        string        `json:"doc,omitempty"`
	Line       int           `json:"line"`
	Skip       bool          `json:"skip,omitempty"`
	SkipReason string        `json:"skip_reason,omitempty"`

	// Decl keeps the parsed declaration for downstream constant folding.
	Decl *ast.FuncDecl `json:"-"`
}

// ErrorIndex returns the position of the trailing error result, or -1.
func (c *CallableSignature) ErrorIndex() int {
	if n := len(c.Results); n > 0 && c.Results[n-1].IsError {
		return n - 1
	}
	return -1
}

// ReturnsError reports whether the callable's last result is an error.
func (c *CallableSignature) ReturnsError() bool {
	return c.ErrorIndex() >= 0
}

// QualifiedName is Receiver.Name for methods, Name otherwise.
func (c *CallableSignature) QualifiedName() string {
	if c.Receiver != "" {
		return c.Receiver + "." + c.Name
	}
	return c.Name
}

// Module is the extracted model for one source unit.
type Module struct {
	Name      string
	Package   string
	Source    string
	Callables []CallableSignature

	Fset *token.FileSet
	File *ast.File
}

// Options controls extraction.
type Options struct {
	// ModuleName labels the unit and seeds the injected package clause.
	// Empty defaults to "module".
	ModuleName string

	// IncludeUnexported also models lowercase callables for synthesis.
	IncludeUnexported bool
}

// Extract parses src and builds the structural model. Extraction is a
// pure function of its inputs and runs no submitted code.
func Extract(src string, opts Options) (*Module, error) {
	name := SanitizeName(opts.ModuleName)
	normalized := EnsurePackageClause(src, name)

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, name+".go", normalized, parser.ParseComments)
	if err != nil {
		return nil, newParseError(err)
	}

	mod := &Module{
		Name:    name,
		Package: file.Name.Name,
		Source:  normalized,
		Fset:    fset,
		File:    file,
	}

	structTypes := collectStructTypes(file)

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		// init and blank funcs cannot be referenced from a test.
		if fn.Name.Name == "init" || fn.Name.Name == "_" {
			continue
		}
		mod.Callables = append(mod.Callables, buildSignature(fset, fn, structTypes, opts))
	}

	logging.Anatomy("extracted module %s: %d callables, %d skipped",
		name, len(mod.Callables), countSkipped(mod.Callables))

	return mod, nil
}

func countSkipped(callables []CallableSignature) int {
	n := 0
	for _, c := range callables {
		if c.Skip {
			n++
		}
	}
	return n
}

func buildSignature(fset *token.FileSet, fn *ast.FuncDecl, structTypes map[string]bool, opts Options) CallableSignature {
	sig := CallableSignature{
		Name:       fn.Name.Name,
		MethodKind: FuncFree,
		Exported:   ast.IsExported(fn.Name.Name),
		Line:       fset.Position(fn.Pos()).Line,
		Decl:       fn,
	}
	if fn.Doc != nil {
		sig.Doc = strings.TrimSpace(fn.Doc.Text())
	}

	var genericReceiver bool
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		sig.Receiver, sig.MethodKind, genericReceiver = receiverInfo(fn.Recv.List[0].Type)
	}

	sig.Params = extractParams(fn.Type.Params)
	sig.Results = extractResults(fn.Type.Results)

	if fn.Body != nil {
		sig.Raises = collectRaises(fset, fn, paramSet(sig.Params), sig.ErrorIndex(), len(sig.Results))
	}

	// Partial-result policy: a callable that cannot be synthesized stays
	// in the model with its reason, siblings are unaffected.
	switch {
	case !sig.Exported && !opts.IncludeUnexported:
		sig.Skip = true
		sig.SkipReason = "unexported callable (enable include_unexported to model it)"
	case fn.Type.TypeParams != nil && len(fn.Type.TypeParams.List) > 0, genericReceiver:
		sig.Skip = true
		sig.SkipReason = "generic callable: type parameters cannot be bound to literal values"
	case sig.MethodKind != FuncFree && !structTypes[sig.Receiver]:
		sig.Skip = true
		sig.SkipReason = fmt.Sprintf("method receiver %s is not a struct type declared in this source", sig.Receiver)
	case fn.Body == nil:
		sig.Skip = true
		sig.SkipReason = "callable has no body (external or assembly implementation)"
	default:
		for i, p := range sig.Params {
			if p.Unsupported {
				label := p.Name
				if label == "" || label == "_" {
					label = fmt.Sprintf("#%d", i+1)
				}
				sig.Skip = true
				sig.SkipReason = fmt.Sprintf("parameter %s: %s", label, p.Reason)
				break
			}
		}
	}

	return sig
}

func receiverInfo(expr ast.Expr) (name string, kind MethodKind, generic bool) {
	kind = MethodValue
	if star, ok := expr.(*ast.StarExpr); ok {
		kind = MethodPointer
		expr = star.X
	}
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name, kind, false
	case *ast.IndexExpr:
		// Generic receiver, e.g. (s *Stack[T]).
		if ident, ok := t.X.(*ast.Ident); ok {
			return ident.Name, kind, true
		}
	case *ast.IndexListExpr:
		if ident, ok := t.X.(*ast.Ident); ok {
			return ident.Name, kind, true
		}
	}
	return "", kind, false
}

func extractParams(fields *ast.FieldList) []Param {
	if fields == nil {
		return nil
	}
	var params []Param
	for _, field := range fields.List {
		typ := field.Type
		kind := ParamPositional
		if ell, ok := typ.(*ast.Ellipsis); ok {
			kind = ParamVariadic
			typ = ell.Elt
		}
		text := types.ExprString(typ)
		reason := paramTypeReason(typ)

		build := func(name string) Param {
			p := Param{Name: name, Type: text, Kind: kind}
			if reason != "" {
				p.Unsupported = true
				p.Reason = reason
			}
			return p
		}

		if len(field.Names) == 0 {
			params = append(params, build(""))
			continue
		}
		// Grouped names share one type: func f(a, b int).
		for _, ident := range field.Names {
			params = append(params, build(ident.Name))
		}
	}
	return params
}

func extractResults(fields *ast.FieldList) []ResultField {
	if fields == nil {
		return nil
	}
	var results []ResultField
	for _, field := range fields.List {
		text := types.ExprString(field.Type)
		n := len(field.Names)
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			results = append(results, ResultField{
				Type:     text,
				Position: len(results),
				IsError:  text == "error",
			})
		}
	}
	return results
}

// paramTypeReason reports why a parameter type cannot be populated from
// literals, or "" when the value policy covers it.
func paramTypeReason(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		if literalKinds[t.Name] {
			return ""
		}
		if t.Name == "error" {
			return "error-typed parameter has no literal value policy"
		}
		return fmt.Sprintf("named type %s has no literal value policy", t.Name)
	case *ast.InterfaceType:
		if t.Methods == nil || len(t.Methods.List) == 0 {
			return ""
		}
		return "non-empty interface parameter cannot be populated from literals"
	case *ast.ArrayType:
		if t.Len != nil {
			return "fixed-size array parameter has no literal value policy"
		}
		return paramTypeReason(t.Elt)
	case *ast.MapType:
		if reason := paramTypeReason(t.Key); reason != "" {
			return reason
		}
		return paramTypeReason(t.Value)
	case *ast.StarExpr:
		return paramTypeReason(t.X)
	case *ast.SelectorExpr:
		if isTimeDuration(t) {
			return ""
		}
		return fmt.Sprintf("external type %s cannot be populated from literals", types.ExprString(t))
	case *ast.FuncType:
		return "function-typed parameter cannot be populated from literals"
	case *ast.ChanType:
		return "channel-typed parameter cannot be populated from literals"
	default:
		return fmt.Sprintf("unsupported parameter type %s", types.ExprString(expr))
	}
}

// literalKinds are the builtin type names the value policy can populate
// with plain literals.
var literalKinds = map[string]bool{
	"bool":    true,
	"string":  true,
	"int":     true,
	"int8":    true,
	"int16":   true,
	"int32":   true,
	"int64":   true,
	"uint":    true,
	"uint8":   true,
	"uint16":  true,
	"uint32":  true,
	"uint64":  true,
	"uintptr": true,
	"float32": true,
	"float64": true,
	"byte":    true,
	"rune":    true,
	"any":     true,
}

func isTimeDuration(sel *ast.SelectorExpr) bool {
	ident, ok := sel.X.(*ast.Ident)
	return ok && ident.Name == "time" && sel.Sel.Name == "Duration"
}

func paramSet(params []Param) map[string]bool {
	set := make(map[string]bool, len(params))
	for _, p := range params {
		if p.Name != "" && p.Name != "_" {
			set[p.Name] = true
		}
	}
	return set
}

func collectStructTypes(file *ast.File) map[string]bool {
	structs := map[string]bool{}
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok || ts.TypeParams != nil {
				continue
			}
			if _, ok := ts.Type.(*ast.StructType); ok {
				structs[ts.Name.Name] = true
			}
		}
	}
	return structs
}
