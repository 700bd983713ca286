package main

import (
	"strconv"
	"strings"
)

// NodeKind represents different types of AST nodes
type NodeKind string

const (
	NodeNumber  NodeKind = "NodeNumber"
	NodeIdent   NodeKind = "NodeIdent"
	NodeBinary  NodeKind = "NodeBinary"
	NodeVar     NodeKind = "NodeVar"
	NodeBinding NodeKind = "NodeBinding"
	NodeCall    NodeKind = "NodeCall"
	NodeIf      NodeKind = "NodeIf"
	NodeFor     NodeKind = "NodeFor"
	NodeBlock   NodeKind = "NodeBlock"
)

// ASTNode represents a node in the Abstract Syntax Tree.
//
// Child layout per kind:
//
//	NodeBinary:  [lhs, rhs]
//	NodeVar:     bindings, each a NodeBinding
//	NodeBinding: [] or [initializer]
//	NodeCall:    arguments
//	NodeIf:      [cond, then NodeBlock] or [cond, then NodeBlock, else NodeBlock]
//	NodeFor:     [start, end, body NodeBlock] or [start, end, step, body NodeBlock]
//	NodeBlock:   statements
type ASTNode struct {
	Kind NodeKind
	// NodeNumber:
	Number float64
	// NodeIdent, NodeBinding: variable name. NodeCall: callee. NodeFor: loop variable.
	String string
	// NodeBinary:
	Op       string // "=", "<", ">", "+", "-", "*", "/"
	Children []*ASTNode

	Pos Position
}

// Prototype is a function's name and parameter names. Every parameter and
// the result are doubles.
type Prototype struct {
	Name   string
	Params []string
	Pos    Position
}

// FunctionDef is a prototype plus a non-empty body. The function's value is
// the value of its last statement.
type FunctionDef struct {
	Proto *Prototype
	Body  []*ASTNode
}

// anonName is the function a bare top-level expression is compiled into.
const anonName = "__anon_expr"

// AnonymousFunction wraps a bare top-level expression into a zero-argument
// function.
func AnonymousFunction(expr *ASTNode) *FunctionDef {
	return &FunctionDef{
		Proto: &Prototype{Name: anonName, Pos: expr.Pos},
		Body:  []*ASTNode{expr},
	}
}

// IsAnonymous reports whether fn came from a bare top-level expression.
func (fn *FunctionDef) IsAnonymous() bool {
	return fn.Proto.Name == anonName
}

// Then returns the then-block of a NodeIf.
func (n *ASTNode) Then() *ASTNode {
	return n.Children[1]
}

// Else returns the else-block of a NodeIf, or nil if there is none.
func (n *ASTNode) Else() *ASTNode {
	if len(n.Children) < 3 {
		return nil
	}
	return n.Children[2]
}

// Step returns the step expression of a NodeFor, or nil if there is none.
func (n *ASTNode) Step() *ASTNode {
	if len(n.Children) < 4 {
		return nil
	}
	return n.Children[2]
}

// Body returns the body block of a NodeFor.
func (n *ASTNode) Body() *ASTNode {
	return n.Children[len(n.Children)-1]
}

// Init returns the initializer of a NodeBinding, or nil if there is none.
func (n *ASTNode) Init() *ASTNode {
	if len(n.Children) == 0 {
		return nil
	}
	return n.Children[0]
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ToSExpr converts an AST node to s-expression string representation
func ToSExpr(node *ASTNode) string {
	switch node.Kind {
	case NodeNumber:
		return "(number " + formatNumber(node.Number) + ")"
	case NodeIdent:
		return "(ident " + strconv.Quote(node.String) + ")"
	case NodeBinary:
		left := ToSExpr(node.Children[0])
		right := ToSExpr(node.Children[1])
		return "(binary " + strconv.Quote(node.Op) + " " + left + " " + right + ")"
	case NodeVar:
		result := "(var"
		for _, binding := range node.Children {
			result += " " + ToSExpr(binding)
		}
		return result + ")"
	case NodeBinding:
		result := "(binding " + strconv.Quote(node.String)
		if init := node.Init(); init != nil {
			result += " " + ToSExpr(init)
		}
		return result + ")"
	case NodeCall:
		result := "(call " + strconv.Quote(node.String)
		for _, arg := range node.Children {
			result += " " + ToSExpr(arg)
		}
		return result + ")"
	case NodeIf:
		result := "(if"
		for _, child := range node.Children {
			result += " " + ToSExpr(child)
		}
		return result + ")"
	case NodeFor:
		result := "(for " + strconv.Quote(node.String)
		for _, child := range node.Children {
			result += " " + ToSExpr(child)
		}
		return result + ")"
	case NodeBlock:
		result := "(block"
		for _, child := range node.Children {
			result += " " + ToSExpr(child)
		}
		return result + ")"
	default:
		return ""
	}
}

// PrototypeSExpr renders a prototype as (proto "name" "param"...).
func PrototypeSExpr(proto *Prototype) string {
	parts := []string{"proto", strconv.Quote(proto.Name)}
	for _, param := range proto.Params {
		parts = append(parts, strconv.Quote(param))
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// FunctionSExpr renders a definition as (def (proto ...) stmt...).
func FunctionSExpr(fn *FunctionDef) string {
	result := "(def " + PrototypeSExpr(fn.Proto)
	for _, stmt := range fn.Body {
		result += " " + ToSExpr(stmt)
	}
	return result + ")"
}
