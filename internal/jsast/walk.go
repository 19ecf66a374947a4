package jsast

import (
	"github.com/tdewolff/parse/v2/js"
)

// collectCalls returns the require() calls of tree in source order.
func collectCalls(tree *js.AST) []*Call {
	v := &callVisitor{}
	js.Walk(v, tree)
	return v.calls
}

// callVisitor records require() calls. js.Walk visits some children out of
// source order (bodies before conditions, arguments before callees), so
// those nodes are walked here explicitly and skipped by js.Walk.
type callVisitor struct {
	calls []*Call
}

func (v *callVisitor) Enter(n js.INode) js.IVisitor {
	switch n := n.(type) {
	case *js.CallExpr:
		v.record(n)
		js.Walk(v, n.X)
		js.Walk(v, &n.Args)
	case *js.NewExpr:
		js.Walk(v, n.X)
		if n.Args != nil {
			js.Walk(v, n.Args)
		}
	case *js.IfStmt:
		js.Walk(v, n.Cond)
		js.Walk(v, n.Body)
		js.Walk(v, n.Else)
	case *js.WhileStmt:
		js.Walk(v, n.Cond)
		js.Walk(v, n.Body)
	case *js.WithStmt:
		js.Walk(v, n.Cond)
		js.Walk(v, n.Body)
	case *js.ForStmt:
		js.Walk(v, n.Init)
		js.Walk(v, n.Cond)
		js.Walk(v, n.Post)
		if n.Body != nil {
			js.Walk(v, n.Body)
		}
	case *js.ForInStmt:
		js.Walk(v, n.Init)
		js.Walk(v, n.Value)
		if n.Body != nil {
			js.Walk(v, n.Body)
		}
	case *js.ForOfStmt:
		js.Walk(v, n.Init)
		js.Walk(v, n.Value)
		if n.Body != nil {
			js.Walk(v, n.Body)
		}
	case *js.SwitchStmt:
		js.Walk(v, n.Init)
		for i := range n.List {
			js.Walk(v, &n.List[i])
		}
	case *js.CaseClause:
		js.Walk(v, n.Cond)
		for _, stmt := range n.List {
			js.Walk(v, stmt)
		}
	case *js.TryStmt:
		if n.Body != nil {
			js.Walk(v, n.Body)
		}
		js.Walk(v, n.Binding)
		if n.Catch != nil {
			js.Walk(v, n.Catch)
		}
		if n.Finally != nil {
			js.Walk(v, n.Finally)
		}
	case *js.FuncDecl:
		js.Walk(v, &n.Params)
		js.Walk(v, &n.Body)
	case *js.MethodDecl:
		js.Walk(v, &n.Name.PropertyName)
		js.Walk(v, &n.Params)
		js.Walk(v, &n.Body)
	case *js.ArrowFunc:
		js.Walk(v, &n.Params)
		js.Walk(v, &n.Body)
	case *js.TemplateExpr:
		js.Walk(v, n.Tag)
		for i := range n.List {
			js.Walk(v, &n.List[i])
		}
	default:
		return v
	}
	return nil
}

func (v *callVisitor) Exit(js.INode) {}

// record appends call if it is require("literal").
func (v *callVisitor) record(call *js.CallExpr) {
	callee, ok := call.X.(*js.Var)
	if !ok || string(callee.Data) != RequireCallee {
		return
	}
	if len(call.Args.List) == 0 || call.Args.List[0].Rest {
		return
	}
	lit, ok := call.Args.List[0].Value.(*js.LiteralExpr)
	if !ok || lit.TokenType != js.StringToken {
		return
	}
	raw := string(lit.Data)
	v.calls = append(v.calls, &Call{
		request: unquote(raw),
		lit:     lit,
		raw:     raw,
	})
}
