package synth

import (
	"go/ast"
	"go/constant"
	"go/token"
	"strconv"
	"strings"
)

// fold evaluates a callable body of the shape `return <expr>` where the
// expression combines bound parameters, basic literals, parens, unary
// sign, and + - * / % (plus string concatenation). Anything else is not
// foldable. Folding interprets the expression structurally; no user
// code runs.
func fold(fn *ast.FuncDecl, bindings map[string]constant.Value) (val constant.Value, ok bool) {
	// go/constant panics on operand kinds it does not model; any such
	// body is simply not foldable.
	defer func() {
		if recover() != nil {
			val, ok = nil, false
		}
	}()

	if fn.Body == nil || len(fn.Body.List) != 1 {
		return nil, false
	}
	ret, isReturn := fn.Body.List[0].(*ast.ReturnStmt)
	if !isReturn || len(ret.Results) != 1 {
		return nil, false
	}
	return evalConst(ret.Results[0], bindings)
}

func evalConst(expr ast.Expr, bindings map[string]constant.Value) (constant.Value, bool) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		switch e.Kind {
		case token.INT, token.FLOAT, token.STRING, token.CHAR:
			v := constant.MakeFromLiteral(e.Value, e.Kind, 0)
			return v, v.Kind() != constant.Unknown
		}
		return nil, false

	case *ast.Ident:
		if v, bound := bindings[e.Name]; bound {
			return v, true
		}
		switch e.Name {
		case "true":
			return constant.MakeBool(true), true
		case "false":
			return constant.MakeBool(false), true
		}
		return nil, false

	case *ast.ParenExpr:
		return evalConst(e.X, bindings)

	case *ast.UnaryExpr:
		x, okX := evalConst(e.X, bindings)
		if !okX || !isNumericConst(x) {
			return nil, false
		}
		switch e.Op {
		case token.ADD:
			return x, true
		case token.SUB:
			return constant.UnaryOp(token.SUB, x, 0), true
		}
		return nil, false

	case *ast.BinaryExpr:
		x, okX := evalConst(e.X, bindings)
		if !okX {
			return nil, false
		}
		y, okY := evalConst(e.Y, bindings)
		if !okY {
			return nil, false
		}
		return applyBinary(e.Op, x, y)
	}
	return nil, false
}

func applyBinary(op token.Token, x, y constant.Value) (constant.Value, bool) {
	bothStrings := x.Kind() == constant.String && y.Kind() == constant.String
	bothNumeric := isNumericConst(x) && isNumericConst(y)

	switch op {
	case token.ADD:
		if !bothStrings && !bothNumeric {
			return nil, false
		}
		return constant.BinaryOp(x, token.ADD, y), true

	case token.SUB, token.MUL:
		if !bothNumeric {
			return nil, false
		}
		return constant.BinaryOp(x, op, y), true

	case token.QUO:
		if !bothNumeric || constant.Sign(y) == 0 {
			return nil, false
		}
		// Two ints divide like Go ints: truncated.
		if x.Kind() == constant.Int && y.Kind() == constant.Int {
			return constant.BinaryOp(x, token.QUO_ASSIGN, y), true
		}
		return constant.BinaryOp(x, token.QUO, y), true

	case token.REM:
		if x.Kind() != constant.Int || y.Kind() != constant.Int || constant.Sign(y) == 0 {
			return nil, false
		}
		return constant.BinaryOp(x, token.REM, y), true
	}
	return nil, false
}

func isNumericConst(v constant.Value) bool {
	return v.Kind() == constant.Int || v.Kind() == constant.Float
}

// bindLiteral parses a rendered input literal back into a constant for
// folding and guard evaluation. Expressions (make, math.MaxInt32,
// composite literals) are not constants here and report false.
func bindLiteral(text string) (constant.Value, bool) {
	text = strings.TrimSpace(text)
	switch text {
	case "", "nil":
		return nil, false
	case "true":
		return constant.MakeBool(true), true
	case "false":
		return constant.MakeBool(false), true
	}

	neg := false
	if strings.HasPrefix(text, "-") || strings.HasPrefix(text, "+") {
		neg = text[0] == '-'
		text = text[1:]
	}

	var v constant.Value
	switch {
	case strings.HasPrefix(text, `"`):
		v = constant.MakeFromLiteral(text, token.STRING, 0)
	case strings.HasPrefix(text, "'"):
		v = constant.MakeFromLiteral(text, token.CHAR, 0)
	case strings.ContainsAny(text, ".eE") && !strings.HasPrefix(text, "0x") && !strings.HasPrefix(text, "0X"):
		v = constant.MakeFromLiteral(text, token.FLOAT, 0)
	case isDigits(text):
		v = constant.MakeFromLiteral(text, token.INT, 0)
	default:
		return nil, false
	}
	if v == nil || v.Kind() == constant.Unknown {
		return nil, false
	}
	if neg {
		v = constant.UnaryOp(token.SUB, v, 0)
	}
	return v, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var comparisonOps = map[string]token.Token{
	"==": token.EQL,
	"!=": token.NEQ,
	"<":  token.LSS,
	"<=": token.LEQ,
	">":  token.GTR,
	">=": token.GEQ,
}

// compareConstants evaluates x op y. Incomparable kinds report true so
// callers stay conservative about whether a guard could fire.
func compareConstants(x constant.Value, op string, y constant.Value) (satisfied bool) {
	defer func() {
		if recover() != nil {
			satisfied = true
		}
	}()

	tok, known := comparisonOps[op]
	if !known {
		return true
	}
	comparable := x.Kind() == y.Kind() || (isNumericConst(x) && isNumericConst(y))
	if !comparable {
		return true
	}
	return constant.Compare(x, tok, y)
}

// formatConstant renders a folded constant as Go literal text suitable
// for comparison against a result of the declared type.
func formatConstant(v constant.Value, resultType string) string {
	switch v.Kind() {
	case constant.String:
		return strconv.Quote(constant.StringVal(v))
	case constant.Bool:
		if constant.BoolVal(v) {
			return "true"
		}
		return "false"
	case constant.Float:
		f, _ := constant.Float64Val(v)
		return formatFloatLiteral(f)
	default:
		if isFloat(resultType) {
			f, _ := constant.Float64Val(v)
			return formatFloatLiteral(f)
		}
		return v.ExactString()
	}
}
