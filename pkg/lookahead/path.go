// Package lookahead answers "which tokens may come next" for a position in
// an in-progress parse, described by the chain of open grammar elements.
package lookahead

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/sqlgrammar/pkg/grammar"
)

// Slot numbers used by iterations: the repeated element and its separator.
const (
	IterationElement   = 0
	IterationSeparator = 1
)

// Path is one open scope of a parse, linked to its enclosing scope.
//
// Index is the slot of Element the cursor sits after: -1 when nothing has
// been matched yet, otherwise the last completed slot. On an enclosing node
// Index is the slot that is currently open. For an iteration Index is
// IterationElement or IterationSeparator, whichever was matched last.
//
// A path is owned by the parse or completion operation that built it and is
// never shared between goroutines.
type Path struct {
	Element *grammar.Element
	Index   int
	Parent  *Path
}

// NewPath starts a path at the root scope e.
func NewPath(e *grammar.Element) *Path {
	return &Path{Element: e, Index: -1}
}

// SlotElement returns the element in slot i of e, counting an iteration's
// separator as slot IterationSeparator. It returns nil for slots e does not
// have.
func SlotElement(e *grammar.Element, i int) *grammar.Element {
	if e == nil || i < 0 {
		return nil
	}
	if e.Kind() == grammar.KindIteration {
		switch i {
		case IterationElement:
			return e.Child(0)
		case IterationSeparator:
			return e.Separator()
		}
		return nil
	}
	if i >= len(e.Children()) {
		return nil
	}
	return e.Child(i)
}

// Enter opens slot i of p and returns the scope of the child element.
func (p *Path) Enter(i int) *Path {
	p.Index = i
	return &Path{Element: SlotElement(p.Element, i), Index: -1, Parent: p}
}

// Advance records slot i of p as completed.
func (p *Path) Advance(i int) *Path {
	p.Index = i
	return p
}

// Depth returns the number of scopes from p to the root.
func (p *Path) Depth() int {
	n := 0
	seen := make(map[*Path]struct{})
	for cur := p; cur != nil; cur = cur.Parent {
		if _, ok := seen[cur]; ok {
			break
		}
		seen[cur] = struct{}{}
		n++
	}
	return n
}

// Root returns the outermost scope.
func (p *Path) Root() *Path {
	seen := make(map[*Path]struct{})
	cur := p
	for cur != nil && cur.Parent != nil {
		if _, ok := seen[cur]; ok {
			break
		}
		seen[cur] = struct{}{}
		cur = cur.Parent
	}
	return cur
}

// IsAncestor reports whether e is open in a scope enclosing p.
func (p *Path) IsAncestor(e *grammar.Element) bool {
	if p == nil || e == nil {
		return false
	}
	seen := map[*Path]struct{}{p: {}}
	for cur := p.Parent; cur != nil; cur = cur.Parent {
		if _, ok := seen[cur]; ok {
			return false
		}
		seen[cur] = struct{}{}
		if cur.Element == e {
			return true
		}
	}
	return false
}

// IsRecursive reports whether p's own element is also open in an enclosing
// scope.
func (p *Path) IsRecursive() bool {
	return p != nil && p.IsAncestor(p.Element)
}

// Detach unlinks every scope of the chain so nothing outlives the operation
// that owned it.
func (p *Path) Detach() {
	seen := make(map[*Path]struct{})
	for cur := p; cur != nil; {
		if _, ok := seen[cur]; ok {
			return
		}
		seen[cur] = struct{}{}
		next := cur.Parent
		cur.Parent = nil
		cur = next
	}
}

// String renders the chain outermost first, e.g. "stmt[1] > columns[0]".
func (p *Path) String() string {
	var parts []string
	seen := make(map[*Path]struct{})
	for cur := p; cur != nil; cur = cur.Parent {
		if _, ok := seen[cur]; ok {
			parts = append(parts, "<cycle>")
			break
		}
		seen[cur] = struct{}{}
		parts = append(parts, cur.Element.String()+"["+strconv.Itoa(cur.Index)+"]")
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}
