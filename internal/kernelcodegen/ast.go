package kernelcodegen

import (
	"fmt"
	"strings"
)

// expression is a tiny C++ expression AST, just expressive enough for
// the kernel object initializers this package emits.
type expression interface {
	String() string
}

type litUnsigned uint64

func (e litUnsigned) String() string { return fmt.Sprintf("%#x", uint64(e)) }

type litString string

func (e litString) String() string { return fmt.Sprintf("%q", string(e)) }

type identifier string

func (e identifier) String() string { return string(e) }

type addressOf struct{ of expression }

func (e addressOf) String() string { return fmt.Sprintf("&(%s)", e.of) }

func pointerTo(name string) expression {
	return addressOf{of: identifier(name)}
}

func joinExprs(exprs []expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// statement is a tiny C++ top-level statement AST.
type statement interface {
	String() string
}

type pragmaOnce struct{}

func (s pragmaOnce) String() string { return "#pragma once" }

type include struct{ header string }

func (s include) String() string { return fmt.Sprintf("#include %q", s.header) }

type arrayFwdDeclaration struct {
	typ   string
	name  string
	count int
}

func (s arrayFwdDeclaration) String() string {
	return fmt.Sprintf("extern %s %s[%d];", s.typ, s.name, s.count)
}

type arrayDefinition struct {
	typ      string
	name     string
	initArgs []expression
}

func (s arrayDefinition) String() string {
	return fmt.Sprintf("%s %s[%d] {%s};", s.typ, s.name, len(s.initArgs), joinExprs(s.initArgs))
}

type variableDefinition struct {
	typ      string
	name     string
	initArgs []expression
}

func (s variableDefinition) String() string {
	return fmt.Sprintf("%s %s {%s};", s.typ, s.name, joinExprs(s.initArgs))
}

type anonNamespace struct{ statements []statement }

func (s anonNamespace) String() string {
	lines := make([]string, len(s.statements))
	for i, st := range s.statements {
		lines[i] = st.String()
	}
	return fmt.Sprintf("namespace {\n%s\n}", strings.Join(lines, "\n"))
}

func renderStatements(statements []statement) string {
	lines := make([]string, len(statements))
	for i, s := range statements {
		lines[i] = s.String()
	}
	return strings.Join(lines, "\n") + "\n"
}

// identifierIterator hands out successive "id_N" names, mirroring the
// original code generator's fresh-identifier scheme.
type identifierIterator struct {
	next int
}

func (it *identifierIterator) Next() string {
	name := fmt.Sprintf("id_%d", it.next)
	it.next++
	return name
}
