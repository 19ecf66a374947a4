// Package jsast wraps a JavaScript parser behind the small surface the module
// graph needs: parse a source file, find its require() call sites, rewrite
// their first argument, and print the file back to text.
//
// Printing preserves the original text, comments and formatting included,
// and substitutes only the rewritten string literals. When the argument
// literals cannot be located in the text unambiguously, the file is
// reprinted from the syntax tree instead.
package jsast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

// RequireCallee is the identifier whose calls are treated as static imports.
const RequireCallee = "require"

// ParseError reports source text that is not valid JavaScript.
type ParseError struct {
	// Path is the file the source came from, if known.
	Path string

	// Line and Column locate the error (1-based), when the parser reports them.
	Line   int
	Column int

	Err error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s:%d:%d: %s", e.Path, e.Line, e.Column, parseMessage(e.Err))
	}
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// File is a parsed source file. It owns its syntax tree; callers pass the
// File explicitly from extraction through rewriting to printing.
type File struct {
	path  string
	src   string
	tree  *js.AST
	calls []*Call
	spans []span // literal spans in src, parallel to calls; nil if unknown
}

// Call is one require() call site whose first argument is a string literal.
type Call struct {
	request string
	lit     *js.LiteralExpr
	raw     string // original literal text, quotes included
	rewrite string // replacement literal text, quotes included; empty if unchanged
}

// Request returns the string value of the call's first argument as written
// in the source.
func (c *Call) Request() string {
	return c.request
}

// Rewrite replaces the call's first argument with the string value.
func (c *Call) Rewrite(value string) {
	c.rewrite = Quote(value)
	c.lit.Data = []byte(c.rewrite)
}

// Parse parses src. path is used only in error messages.
func Parse(path, src string) (*File, error) {
	tree, err := js.Parse(parse.NewInputString(src), js.Options{})
	if err != nil {
		pe := &ParseError{Path: path, Err: err}
		if perr, ok := err.(*parse.Error); ok {
			pe.Line, pe.Column = perr.Line, perr.Column
		}
		return nil, pe
	}

	f := &File{path: path, src: src, tree: tree}
	f.calls = collectCalls(tree)
	f.spans = locateLiterals(src, f.calls)
	return f, nil
}

// Path returns the path the file was parsed under.
func (f *File) Path() string {
	return f.path
}

// RequireCalls returns the require() call sites in source order, outer calls
// before the calls nested in their arguments.
func (f *File) RequireCalls() []*Call {
	return f.calls
}

// Unparse returns the file's text with every rewritten argument substituted.
func (f *File) Unparse() string {
	if f.spans == nil {
		return f.tree.JSString()
	}

	var b strings.Builder
	b.Grow(len(f.src))
	last := 0
	for i, call := range f.calls {
		if call.rewrite == "" {
			continue
		}
		sp := f.spans[i]
		b.WriteString(f.src[last:sp.start])
		b.WriteString(call.rewrite)
		last = sp.end
	}
	b.WriteString(f.src[last:])
	return b.String()
}

// unquote returns the value of a JavaScript string literal, quotes included.
// Escapes that Go does not share with JavaScript are kept verbatim.
func unquote(lit string) string {
	if len(lit) < 2 {
		return lit
	}
	inner := lit[1 : len(lit)-1]
	if !strings.ContainsRune(inner, '\\') {
		return inner
	}
	if lit[0] == '\'' {
		inner = strings.ReplaceAll(inner, `\'`, `'`)
		inner = strings.ReplaceAll(inner, `"`, `\"`)
	}
	if v, err := strconv.Unquote(`"` + inner + `"`); err == nil {
		return v
	}
	return inner
}

// parseMessage strips the source context the parser appends to its messages.
func parseMessage(err error) string {
	if perr, ok := err.(*parse.Error); ok {
		return perr.Message
	}
	return err.Error()
}
