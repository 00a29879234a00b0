package parser

import (
	"github.com/leapstack-labs/sqlgrammar/pkg/grammar"
	"github.com/leapstack-labs/sqlgrammar/pkg/token"
)

// Tree is the abstract view of a parse tree consumed by tree-building and
// editor layers.
type Tree interface {
	Kind() string
	Range() token.Span
	Len() int
	Child(i int) Tree
}

// NodeKind classifies parse tree nodes.
type NodeKind uint8

// Node kinds.
const (
	NodeDocument NodeKind = iota
	NodeComposite
	NodeToken
	NodeRegion
	NodeError
)

var nodeKindNames = [...]string{
	NodeDocument:  "document",
	NodeComposite: "composite",
	NodeToken:     "token",
	NodeRegion:    "region",
	NodeError:     "error",
}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "unknown"
}

// Node is a parse tree node.
type Node struct {
	Type    NodeKind
	Element *grammar.Element // nil for document and error nodes
	Token   *token.Token     // NodeToken and NodeError
	Region  *Region          // NodeRegion
	Span    token.Span
	Parent  *Node

	children []*Node
}

// Kind returns the element name, or the node kind for nodes without one.
func (n *Node) Kind() string {
	if n.Element != nil {
		return n.Element.Name()
	}
	return n.Type.String()
}

// Range returns the source span of the node.
func (n *Node) Range() token.Span { return n.Span }

// Len returns the number of children.
func (n *Node) Len() int { return len(n.children) }

// Child returns child i as a Tree.
func (n *Node) Child(i int) Tree { return n.children[i] }

// Children returns the child nodes.
func (n *Node) Children() []*Node { return n.children }

func (n *Node) add(child *Node) {
	if child == nil {
		return
	}
	child.Parent = n
	if len(n.children) == 0 || !n.Span.Start.IsValid() {
		n.Span.Start = child.Span.Start
	}
	n.Span.End = child.Span.End
	n.children = append(n.children, child)
}

// Walk calls fn for n and its descendants depth first. Returning false
// skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// Text returns the source text covered by the node's tokens, joined by
// single spaces.
func (n *Node) Text() string {
	var out []byte
	n.Walk(func(c *Node) bool {
		if c.Token != nil {
			if len(out) > 0 {
				out = append(out, ' ')
			}
			out = append(out, c.Token.Literal...)
		}
		return true
	})
	return string(out)
}
