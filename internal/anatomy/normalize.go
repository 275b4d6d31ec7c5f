package anatomy

import (
	"errors"
	"fmt"
	"go/scanner"
	"go/token"
	"strings"
	"unicode"
)

// ParseError reports the first location at which source failed to
// parse. No partial model accompanies it.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Col, e.Msg)
	}
	return fmt.Sprintf("parse error: %s", e.Msg)
}

func newParseError(err error) *ParseError {
	var list scanner.ErrorList
	if errors.As(err, &list) && list.Len() > 0 {
		first := list[0]
		return &ParseError{Line: first.Pos.Line, Col: first.Pos.Column, Msg: first.Msg}
	}
	return &ParseError{Msg: err.Error()}
}

// EnsurePackageClause prepends a package clause when the source has
// none, so snippet-level input analyzes like a full file. Detection
// scans tokens rather than guessing from text.
func EnsurePackageClause(src, pkg string) string {
	if hasPackageClause(src) {
		return src
	}
	return "package " + pkg + "\n\n" + src
}

func hasPackageClause(src string) bool {
	fset := token.NewFileSet()
	file := fset.AddFile("probe.go", fset.Base(), len(src))

	var s scanner.Scanner
	s.Init(file, []byte(src), nil, 0)

	_, tok, _ := s.Scan()
	return tok == token.PACKAGE
}

// SanitizeName makes a module name safe to use as a package identifier
// and file stem. Empty names default to "module".
func SanitizeName(name string) string {
	if name == "" {
		return "module"
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case unicode.IsLetter(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.ToLower(b.String())
	if token.IsKeyword(out) {
		out = "_" + out
	}
	return out
}
