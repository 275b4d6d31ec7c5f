package anatomy

import (
	"go/ast"
	"go/token"
	"go/types"
	"strings"
)

// collectRaises walks a callable body for explicit panic calls and
// error-constructing returns. Raises inside nested function literals
// belong to the literal, not the callable, and are not collected.
func collectRaises(fset *token.FileSet, fn *ast.FuncDecl, params map[string]bool, errIndex, resultCount int) []RaiseSite {
	var (
		stack []ast.Node
		sites []RaiseSite
	)

	ast.Inspect(fn.Body, func(n ast.Node) bool {
		if n == nil {
			stack = stack[:len(stack)-1]
			return true
		}
		if _, ok := n.(*ast.FuncLit); ok {
			return false
		}

		switch node := n.(type) {
		case *ast.CallExpr:
			if isPanicCall(node) {
				sites = append(sites, RaiseSite{
					Kind:          RaisePanic,
					ExceptionType: panicArgKind(node),
					Line:          fset.Position(node.Pos()).Line,
					Guard:         guardFromStack(stack, n, params),
				})
			}
		case *ast.ReturnStmt:
			if errIndex >= 0 && len(node.Results) == resultCount {
				if name := errorConstruction(node.Results[errIndex]); name != "" {
					sites = append(sites, RaiseSite{
						Kind:          RaiseError,
						ExceptionType: name,
						Line:          fset.Position(node.Pos()).Line,
						Guard:         guardFromStack(stack, n, params),
					})
				}
			}
		}

		stack = append(stack, n)
		return true
	})

	return sites
}

// guardFromStack reads the comparison off the innermost if statement
// whose then-branch contains the raise site. This is pattern matching,
// not control-flow analysis: a condition that is anything other than a
// parameter-vs-literal comparison yields no guard.
func guardFromStack(stack []ast.Node, site ast.Node, params map[string]bool) *Guard {
	child := site
	for i := len(stack) - 1; i >= 0; i-- {
		if ifStmt, ok := stack[i].(*ast.IfStmt); ok && ifStmt.Body == child {
			return parseGuard(ifStmt.Cond, params)
		}
		child = stack[i]
	}
	return nil
}

func parseGuard(cond ast.Expr, params map[string]bool) *Guard {
	be, ok := cond.(*ast.BinaryExpr)
	if !ok || !isComparison(be.Op) {
		return nil
	}
	if g := guardOperands(be.X, be.Y, be.Op, params); g != nil {
		g.Expr = types.ExprString(cond)
		return g
	}
	// Literal on the left: 0 > b reads as b < 0.
	if g := guardOperands(be.Y, be.X, flipComparison(be.Op), params); g != nil {
		g.Expr = types.ExprString(cond)
		return g
	}
	return nil
}

func guardOperands(paramSide, literalSide ast.Expr, op token.Token, params map[string]bool) *Guard {
	ident, ok := paramSide.(*ast.Ident)
	if !ok || !params[ident.Name] {
		return nil
	}
	value, ok := literalText(literalSide)
	if !ok {
		return nil
	}
	return &Guard{Param: ident.Name, Op: op.String(), Value: value}
}

func literalText(expr ast.Expr) (string, bool) {
	switch t := expr.(type) {
	case *ast.BasicLit:
		return t.Value, true
	case *ast.UnaryExpr:
		if t.Op == token.SUB || t.Op == token.ADD {
			if lit, ok := t.X.(*ast.BasicLit); ok {
				return t.Op.String() + lit.Value, true
			}
		}
	case *ast.Ident:
		switch t.Name {
		case "nil", "true", "false":
			return t.Name, true
		}
	}
	return "", false
}

func isComparison(op token.Token) bool {
	switch op {
	case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ:
		return true
	}
	return false
}

func flipComparison(op token.Token) token.Token {
	switch op {
	case token.LSS:
		return token.GTR
	case token.LEQ:
		return token.GEQ
	case token.GTR:
		return token.LSS
	case token.GEQ:
		return token.LEQ
	default:
		return op
	}
}

func isPanicCall(call *ast.CallExpr) bool {
	ident, ok := call.Fun.(*ast.Ident)
	return ok && ident.Name == "panic" && len(call.Args) == 1
}

// panicArgKind classifies the panic argument: string literal, error
// construction, or anything else.
func panicArgKind(call *ast.CallExpr) string {
	switch arg := call.Args[0].(type) {
	case *ast.BasicLit:
		if arg.Kind == token.STRING {
			return "string"
		}
	case *ast.CallExpr:
		if isErrorFactory(arg) {
			return "error"
		}
	}
	return "other"
}

// errorConstruction names the exception type of a returned expression:
// "error" for a fresh errors.New or fmt.Errorf, the identifier itself
// for Err-prefixed sentinels, "" when the expression does not construct
// an error. Propagating a plain err variable is not a raise site.
func errorConstruction(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.CallExpr:
		if isErrorFactory(t) {
			return "error"
		}
	case *ast.Ident:
		if t.Name == "err" || t.Name == "nil" {
			return ""
		}
		if strings.HasPrefix(t.Name, "Err") || strings.HasPrefix(t.Name, "err") {
			return t.Name
		}
	}
	return ""
}

func isErrorFactory(call *ast.CallExpr) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok {
		return false
	}
	return (pkg.Name == "errors" && sel.Sel.Name == "New") ||
		(pkg.Name == "fmt" && sel.Sel.Name == "Errorf")
}
